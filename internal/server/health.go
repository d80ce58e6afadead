package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	workshop "github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

const statusHealthy = "healthy"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service:     workshop.Name,
		Version:     workshop.Version,
		Status:      statusHealthy,
		ActiveJobs:  len(s.engine.Active()) + len(s.progress.Active()),
		Subscribers: s.progress.Subscribers(),
	})
}

func errorBody(status int, msg string) api.ErrorResponse {
	return api.ErrorResponse{
		Error:  msg,
		Status: status,
	}
}
