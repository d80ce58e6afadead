package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	workshop "github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// HTTPProvider forwards actions to a remote device agent that owns the
	// USB connection, for benches where devices hang off another host
	HTTPProvider struct {
		httpClient *http.Client
		endpoint   string
		timeout    time.Duration
	}

	// ActionRequest is the body posted to a remote device agent
	ActionRequest struct {
		Serial  api.Serial `json:"serial"`
		Command string     `json:"command"`
		Args    []string   `json:"args,omitempty"`
	}
)

// RemoteProviderName is the catalog provider name of the remote agent
const RemoteProviderName = "remote"

var ErrHTTPError = errors.New("remote agent returned HTTP error")

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider posting to baseURL/actions
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: strings.TrimRight(baseURL, "/") + "/actions",
		timeout:  timeout,
	}
}

// Execute posts the action and decodes the agent's result
func (p *HTTPProvider) Execute(
	ctx context.Context, serial api.Serial, command string, args []string,
) (*api.ActionResult, error) {
	if serial == "" {
		return nil, ErrSerialRequired
	}

	body, err := json.Marshal(ActionRequest{
		Serial:  serial,
		Command: command,
		Args:    args,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		slog.Error("Failed to create agent request",
			log.Serial(serial),
			log.Error(err))
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", workshop.Name+"/"+workshop.Version)

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		slog.Error("Agent request failed",
			log.Serial(serial),
			slog.String("command", command),
			slog.Duration("duration", dur),
			log.Error(err))
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrActionTimeout, command)
		}
		return nil, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error").String()
		slog.Error("Agent HTTP error",
			log.Serial(serial),
			slog.Int("status_code", resp.StatusCode),
			log.ErrorString(msg))
		return nil, fmt.Errorf("%w: HTTP %d %s",
			ErrHTTPError, resp.StatusCode, msg)
	}

	var res api.ActionResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}
	if res.DurationMs == 0 {
		res.DurationMs = dur.Milliseconds()
	}
	if !res.Success && res.Error == "" {
		res.Error = res.Failure()
	}
	return &res, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &te) && te.Timeout())
}
