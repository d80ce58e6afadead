package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// ExecProvider runs a local command-line device tool without a shell
	ExecProvider struct {
		name    string
		argv    argvFunc
		run     Runner
		timeout time.Duration
	}

	// Runner starts a process and collects its output. It returns a nil
	// error for a process that ran and exited, whatever its exit code
	Runner func(
		ctx context.Context, name string, args ...string,
	) (stdout, stderr []byte, exitCode int, err error)

	// ExecOption configures an ExecProvider
	ExecOption func(*ExecProvider)

	argvFunc func(
		serial api.Serial, command string, args []string,
	) (string, []string, error)
)

// DefaultTimeout bounds a single tool invocation when none is configured
const DefaultTimeout = 30 * time.Second

const iosToolPrefix = "idevice"

// shellMeta holds characters never passed to a device tool
const shellMeta = ";|&`$<>\n\r"

// WithRunner replaces process execution, typically in tests
func WithRunner(run Runner) ExecOption {
	return func(p *ExecProvider) {
		p.run = run
	}
}

// WithTimeout sets the per-invocation time limit
func WithTimeout(timeout time.Duration) ExecOption {
	return func(p *ExecProvider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewADB creates a provider that runs "adb -s <serial> <command> <args>"
func NewADB(path string, opts ...ExecOption) *ExecProvider {
	return newExec("adb", serialFlagArgv(path, "-s"), opts...)
}

// NewFastboot creates a provider that runs
// "fastboot -s <serial> <command> <args>"
func NewFastboot(path string, opts ...ExecOption) *ExecProvider {
	return newExec("fastboot", serialFlagArgv(path, "-s"), opts...)
}

// NewIOS creates a provider for the libimobiledevice tools. The command
// names the tool binary, which is looked up in toolDir when set, and the
// device is selected with "-u <udid>"
func NewIOS(toolDir string, opts ...ExecOption) *ExecProvider {
	argv := func(
		serial api.Serial, command string, args []string,
	) (string, []string, error) {
		if !strings.HasPrefix(command, iosToolPrefix) ||
			strings.ContainsAny(command, `/\`) {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidCommand, command)
		}
		bin := command
		if toolDir != "" {
			bin = filepath.Join(toolDir, command)
		}
		return bin, append([]string{"-u", string(serial)}, args...), nil
	}
	return newExec("ios", argv, opts...)
}

func newExec(name string, argv argvFunc, opts ...ExecOption) *ExecProvider {
	p := &ExecProvider{
		name:    name,
		argv:    argv,
		run:     runProcess,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs the tool and reports a timeout as ErrActionTimeout. A
// cancelled parent context is returned as-is so the caller can tell
// cancellation from failure
func (p *ExecProvider) Execute(
	ctx context.Context, serial api.Serial, command string, args []string,
) (*api.ActionResult, error) {
	if serial == "" {
		return nil, ErrSerialRequired
	}
	if err := checkArgs(string(serial), command, args); err != nil {
		return nil, err
	}
	bin, argv, err := p.argv(serial, command, args)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, code, err := p.run(callCtx, bin, argv...)
	res := &api.ActionResult{
		Stdout:     strings.TrimSpace(string(stdout)),
		Stderr:     strings.TrimSpace(string(stderr)),
		ExitCode:   code,
		DurationMs: time.Since(start).Milliseconds(),
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return res, ctx.Err()
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		slog.Warn("Device tool timed out",
			slog.String("provider", p.name),
			log.Serial(serial),
			slog.String("command", command),
			slog.Duration("timeout", p.timeout))
		res.Error = fmt.Sprintf("%s %s timed out after %s",
			p.name, command, p.timeout)
		return res, fmt.Errorf("%w: %s %s", ErrActionTimeout, p.name, command)
	case err != nil:
		res.Error = err.Error()
		return res, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}

	res.Success = code == 0
	if !res.Success {
		res.Error = res.Failure()
	}
	slog.Debug("Device tool finished",
		slog.String("provider", p.name),
		log.Serial(serial),
		slog.String("command", command),
		slog.Int("exit_code", code),
		slog.Int64("duration_ms", res.DurationMs))
	return res, nil
}

// Name returns the tool family this provider runs
func (p *ExecProvider) Name() string {
	return p.name
}

func serialFlagArgv(path, flag string) argvFunc {
	return func(
		serial api.Serial, command string, args []string,
	) (string, []string, error) {
		argv := append([]string{flag, string(serial), command}, args...)
		return path, argv, nil
	}
}

func checkArgs(serial, command string, args []string) error {
	if command == "" {
		return ErrInvalidCommand
	}
	for _, a := range append([]string{serial, command}, args...) {
		if strings.ContainsAny(a, shellMeta) {
			return fmt.Errorf("%w: %q", ErrInvalidArgument, a)
		}
	}
	return nil
}

func runProcess(
	ctx context.Context, name string, args ...string,
) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
