package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/provider"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

func TestHTTPProviderSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/actions", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req provider.ActionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, api.Serial("SN1"), req.Serial)
			assert.Equal(t, "shell", req.Command)
			assert.Equal(t, []string{"getprop", "ro.product.model"}, req.Args)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(api.ActionResult{
				Success: true,
				Stdout:  "Pixel 8",
				Outputs: map[string]string{"deviceModel": "Pixel 8"},
			})
		},
	))
	defer server.Close()

	p := provider.NewHTTPProvider(server.URL+"/", 5*time.Second)
	res, err := p.Execute(context.Background(), "SN1", "shell",
		[]string{"getprop", "ro.product.model"},
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Pixel 8", res.Outputs["deviceModel"])
}

func TestHTTPProviderUnsuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(api.ActionResult{
				Success: false, Stderr: "device offline", ExitCode: 1,
			})
		},
	))
	defer server.Close()

	p := provider.NewHTTPProvider(server.URL, 5*time.Second)
	res, err := p.Execute(context.Background(), "SN1", "get-state", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "device offline", res.Error)
}

func TestHTTPProviderStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"usb hub offline"}`))
		},
	))
	defer server.Close()

	p := provider.NewHTTPProvider(server.URL, 5*time.Second)
	_, err := p.Execute(context.Background(), "SN1", "devices", nil)
	assert.ErrorIs(t, err, provider.ErrHTTPError)
	assert.Contains(t, err.Error(), "usb hub offline")
}

func TestHTTPProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
	))
	defer server.Close()
	defer close(release)

	p := provider.NewHTTPProvider(server.URL, 50*time.Millisecond)
	_, err := p.Execute(context.Background(), "SN1", "devices", nil)
	assert.ErrorIs(t, err, provider.ErrActionTimeout)
}
