package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// Wrapper wraps testify assertions with workshop-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus workshop-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.LockTimeout() > 0)
	w.True(cfg.ProviderTimeout() > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// ExecutionStatus asserts the status of an execution result
func (w *Wrapper) ExecutionStatus(
	res *api.ExecutionResult, expected api.ExecutionStatus,
) {
	w.Helper()
	if w.NotNil(res) {
		w.Equal(expected, res.Status, "execution error: %s", res.Error)
	}
}

// StepStatuses asserts the status of every step, in definition order
func (w *Wrapper) StepStatuses(
	res *api.ExecutionResult, expected ...api.StepStatus,
) {
	w.Helper()
	if !w.NotNil(res) || !w.Len(res.Steps, len(expected)) {
		return
	}
	for i, s := range res.Steps {
		w.Equal(expected[i], s.Status, "step %s", s.ID)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
