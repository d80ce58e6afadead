package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/progress"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type jobCall func(api.JobID) (*api.Job, error)

func (s *Server) listFlashJobs(c *gin.Context) {
	var jobs []*api.Job
	if c.Query("active") == "true" {
		jobs = s.progress.Active()
	} else {
		jobs = s.progress.List()
	}
	if jobs == nil {
		jobs = []*api.Job{}
	}
	c.JSON(http.StatusOK, api.FlashJobsResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

func (s *Server) startFlashJob(c *gin.Context) {
	var req api.FlashStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	job, err := s.progress.Start(&req)
	if err != nil {
		flashError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) getFlashJob(c *gin.Context) {
	s.flashCall(c, s.progress.Get)
}

func (s *Server) reportFlashProgress(c *gin.Context) {
	var upd api.JobUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		abort(c, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	s.flashCall(c, func(id api.JobID) (*api.Job, error) {
		return s.progress.Progress(id, &upd)
	})
}

func (s *Server) pauseFlashJob(c *gin.Context) {
	s.flashCall(c, s.progress.Pause)
}

func (s *Server) resumeFlashJob(c *gin.Context) {
	s.flashCall(c, s.progress.Resume)
}

func (s *Server) completeFlashJob(c *gin.Context) {
	s.flashCall(c, s.progress.Complete)
}

func (s *Server) cancelFlashJob(c *gin.Context) {
	s.flashCall(c, s.progress.Cancel)
}

func (s *Server) failFlashJob(c *gin.Context) {
	var req api.FlashFailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	s.flashCall(c, func(id api.JobID) (*api.Job, error) {
		return s.progress.Fail(id, req.Error)
	})
}

func (s *Server) flashCall(c *gin.Context, call jobCall) {
	job, err := call(api.JobID(c.Param("jobID")))
	if err != nil {
		flashError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func flashError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, progress.ErrJobNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, progress.ErrJobExists),
		errors.Is(err, progress.ErrJobFinished),
		errors.Is(err, progress.ErrInvalidTransition):
		abort(c, http.StatusConflict, err)
	case errors.Is(err, progress.ErrDeviceRequired),
		errors.Is(err, progress.ErrNegativeBytes):
		abort(c, http.StatusBadRequest, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}
