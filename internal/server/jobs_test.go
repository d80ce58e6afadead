package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert/helpers"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/lock"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

const blockedLine = "shell getprop ro.build.version.release"

func diagnosticsRequest(wait bool) *api.StartJobRequest {
	return &api.StartJobRequest{
		WorkflowID:   "adb-diagnostics",
		DeviceSerial: "SN123",
		DeviceName:   "Pixel 8",
		Context:      &api.ExecutionContext{Actor: "tech"},
		Wait:         wait,
	}
}

// startBlocked starts a diagnostics run that holds on its third step until
// release is closed
func startBlocked(
	t *testing.T, env *testServerEnv, release chan struct{},
) api.ExecutionID {
	t.Helper()
	env.Provider.SetBlocking(blockedLine, release)

	w := env.do("POST", "/api/v1/jobs", diagnosticsRequest(false))
	assert.Equal(t, http.StatusAccepted, w.Code)

	res := decode[api.JobStartedResponse](t, w)
	assert.NotEmpty(t, res.ExecutionID)
	assert.True(t,
		env.Provider.WaitForCall(blockedLine, 1, helpers.DefaultWaitTimeout),
	)
	return res.ExecutionID
}

func TestStartJobAsync(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	release := make(chan struct{})
	id := startBlocked(t, env, release)

	w := env.do("GET", "/api/v1/jobs/"+string(id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.ExecutionResult](t, w)
	assert.Equal(t, api.ExecutionRunning, res.Status)
	assert.Equal(t, "Pixel 8", res.DeviceName)

	w = env.do("GET", "/api/v1/jobs?active=true", nil)
	list := decode[api.JobsListResponse](t, w)
	assert.Equal(t, 1, list.Count)

	close(release)
	env.Events.WaitFor(t, id, api.EventExecutionCompleted)

	w = env.do("GET", "/api/v1/jobs?active=true", nil)
	list = decode[api.JobsListResponse](t, w)
	assert.Zero(t, list.Count)

	w = env.do("GET", "/api/v1/jobs", nil)
	list = decode[api.JobsListResponse](t, w)
	assert.Equal(t, 1, list.Count)
}

func TestStartJobWait(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	w := env.do("POST", "/api/v1/jobs", diagnosticsRequest(true))
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.ExecutionResult](t, w)
	assert.Equal(t, api.ExecutionCompleted, res.Status)
	assert.True(t, res.Success)
	assert.Equal(t, res.TotalSteps, res.CompletedSteps)
}

func TestStartJobWaitClientDisconnect(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	release := make(chan struct{})
	env.Provider.SetBlocking(blockedLine, release)

	var body bytes.Buffer
	assert.NoError(t, json.NewEncoder(&body).Encode(diagnosticsRequest(true)))
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/api/v1/jobs", &body).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		defer close(served)
		env.Router.ServeHTTP(w, req)
	}()
	assert.True(t,
		env.Provider.WaitForCall(blockedLine, 1, helpers.DefaultWaitTimeout),
	)
	cancel()
	<-served

	assert.Equal(t, http.StatusAccepted, w.Code)
	started := decode[api.JobStartedResponse](t, w)

	w = env.do("GET", "/api/v1/jobs/"+string(started.ExecutionID), nil)
	res := decode[api.ExecutionResult](t, w)
	assert.Equal(t, api.ExecutionRunning, res.Status)

	close(release)
	env.Events.WaitFor(t, started.ExecutionID, api.EventExecutionCompleted)

	w = env.do("GET", "/api/v1/jobs/"+string(started.ExecutionID), nil)
	res = decode[api.ExecutionResult](t, w)
	assert.Equal(t, api.ExecutionCompleted, res.Status)
	assert.True(t, res.Success)
}

func TestStartJobAuthorizationRequired(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	w := env.do("POST", "/api/v1/jobs", &api.StartJobRequest{
		WorkflowID:   "fastboot-unlock",
		DeviceSerial: "SN123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	res := decode[api.ErrorResponse](t, w)
	assert.Equal(t, api.AuthorizationRequired, res.Error)
	if assert.NotNil(t, res.Result) {
		assert.Equal(t, api.ResultAuthorizationRequired, res.Result.Kind)
		assert.NotNil(t, res.Result.AuthorizationPrompt)
	}
	assert.Empty(t, env.Provider.Calls())
}

func TestStartJobDeviceLocked(t *testing.T) {
	locks := lock.NewMemoryManager(lock.DefaultTimeout)
	_, err := locks.Acquire(context.Background(), "SN123", "flash")
	assert.NoError(t, err)

	env := testServer(t, helpers.WithLocks(locks))
	defer env.Cleanup()

	w := env.do("POST", "/api/v1/jobs", diagnosticsRequest(false))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "300", w.Header().Get("Retry-After"))

	res := decode[api.ErrorResponse](t, w)
	if assert.NotNil(t, res.Result) {
		assert.Equal(t, api.ResultDeviceLocked, res.Result.Kind)
		assert.Equal(t, "flash", res.Result.LockedBy)
	}
}

func TestStartJobErrors(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"bad json", "{not json", http.StatusBadRequest},
		{
			"missing serial",
			&api.StartJobRequest{WorkflowID: "adb-diagnostics"},
			http.StatusBadRequest,
		},
		{
			"unknown workflow",
			&api.StartJobRequest{WorkflowID: "nope", DeviceSerial: "SN1"},
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do("POST", "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.status, w.Code)
			res := decode[api.ErrorResponse](t, w)
			assert.Equal(t, tt.status, res.Status)
		})
	}
}

func TestStartJobEngineStopped(t *testing.T) {
	env := testServer(t)
	env.Cleanup()

	w := env.do("POST", "/api/v1/jobs", diagnosticsRequest(false))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetJobNotFound(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	w := env.do("GET", "/api/v1/jobs/exec_nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobControl(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	release := make(chan struct{})
	defer close(release)
	id := startBlocked(t, env, release)
	path := "/api/v1/jobs/" + string(id)

	w := env.do("POST", path+"/pause", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", path+"/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", path+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", path, nil)
	res := decode[api.ExecutionResult](t, w)
	assert.Equal(t, api.ExecutionCancelled, res.Status)
	assert.False(t, env.Locks.Held("SN123"))

	w = env.do("POST", path+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("POST", path+"/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJobControlNotFound(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	for _, op := range []string{"pause", "resume", "cancel"} {
		w := env.do("POST", "/api/v1/jobs/exec_nope/"+op, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, op)
	}
}
