package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

const (
	msgExecutionStarted  = "execution started"
	msgExecutionPaused   = "execution paused"
	msgExecutionResumed  = "execution resumed"
	msgExecutionCanceled = "execution cancelled"
)

func (s *Server) listJobs(c *gin.Context) {
	var jobs []*api.ExecutionResult
	if c.Query("active") == "true" {
		jobs = s.engine.Active()
	} else {
		jobs = s.engine.List()
	}
	if jobs == nil {
		jobs = []*api.ExecutionResult{}
	}
	c.JSON(http.StatusOK, api.JobsListResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

func (s *Server) startJob(c *gin.Context) {
	var req api.StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	if req.DeviceSerial == "" {
		abort(c, http.StatusBadRequest, ErrSerialRequired)
		return
	}

	er := &engine.Request{
		Context:    req.Context,
		WorkflowID: req.WorkflowID,
		Serial:     req.DeviceSerial,
		DeviceName: req.DeviceName,
	}

	run, err := s.engine.Start(c.Request.Context(), er)
	if err != nil {
		startError(c, err)
		return
	}
	if req.Wait {
		// A client that disconnects stops waiting. The run carries on
		select {
		case <-run.Done():
		case <-c.Request.Context().Done():
		}
	}
	select {
	case <-run.Done():
		res := run.Result()
		if !rejected(c, res) {
			c.JSON(http.StatusOK, res)
		}
	default:
		c.JSON(http.StatusAccepted, api.JobStartedResponse{
			Message:     msgExecutionStarted,
			ExecutionID: run.ID(),
		})
	}
}

// rejected writes the refusal response for a run turned away by its gates
// or the device lock, and reports whether it did
func rejected(c *gin.Context, res *api.ExecutionResult) bool {
	switch res.Kind {
	case api.ResultAuthorizationRequired:
		c.JSON(http.StatusForbidden, api.ErrorResponse{
			Result: res,
			Error:  res.Error,
			Status: http.StatusForbidden,
		})
		return true
	case api.ResultDeviceLocked:
		if res.RetryAfter > 0 {
			c.Header("Retry-After", strconv.FormatInt(res.RetryAfter, 10))
		}
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Result: res,
			Error:  res.Error,
			Status: http.StatusConflict,
		})
		return true
	default:
		return false
	}
}

func startError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrWorkflowNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrSerialRequired):
		abort(c, http.StatusBadRequest, err)
	case errors.Is(err, engine.ErrEngineStopped):
		abort(c, http.StatusServiceUnavailable, err)
	default:
		abort(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrStartExecution, err),
		)
	}
}

func (s *Server) getJob(c *gin.Context) {
	id := api.ExecutionID(c.Param("jobID"))
	res, err := s.engine.Lookup(id)
	if err != nil {
		controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) pauseJob(c *gin.Context) {
	id := api.ExecutionID(c.Param("jobID"))
	if err := s.engine.Pause(id); err != nil {
		controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgExecutionPaused})
}

func (s *Server) resumeJob(c *gin.Context) {
	id := api.ExecutionID(c.Param("jobID"))
	if err := s.engine.Resume(id); err != nil {
		controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgExecutionResumed})
}

func (s *Server) cancelJob(c *gin.Context) {
	id := api.ExecutionID(c.Param("jobID"))
	if err := s.engine.Cancel(c.Request.Context(), id); err != nil {
		controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgExecutionCanceled})
}

func controlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrExecutionNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrExecutionFinished),
		errors.Is(err, engine.ErrInvalidTransition):
		abort(c, http.StatusConflict, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}
