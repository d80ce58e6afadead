package assert_test

import (
	"testing"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/config"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

func TestNew(t *testing.T) {
	w := assert.New(t)
	if w.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if w.Assertions == nil || w.Require == nil {
		t.Error("Wrapper assertions should be initialized")
	}
}

func TestConfigAssertions(t *testing.T) {
	w := assert.New(t)
	w.ConfigValid(config.NewDefaultConfig())

	cfg := config.NewDefaultConfig()
	cfg.APIPort = 0
	w.ConfigInvalid(cfg, "invalid API port")
}

func TestExecutionAssertions(t *testing.T) {
	w := assert.New(t)
	res := &api.ExecutionResult{
		Status: api.ExecutionFailed,
		Steps: []*api.StepResult{
			{ID: "a", Status: api.StepCompleted},
			{ID: "b", Status: api.StepFailed},
			{ID: "c", Status: api.StepSkipped},
		},
	}
	w.ExecutionStatus(res, api.ExecutionFailed)
	w.StepStatuses(res, api.StepCompleted, api.StepFailed, api.StepSkipped)
}

func TestEventually(t *testing.T) {
	w := assert.New(t)
	start := time.Now()
	w.Eventually(func() bool {
		return time.Since(start) > 20*time.Millisecond
	}, time.Second, "condition should pass")
}
