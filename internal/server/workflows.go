package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/workflow"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

func (s *Server) listWorkflows(c *gin.Context) {
	reg := s.engine.Workflows()
	var defs []*api.WorkflowDefinition
	if category := c.Query("category"); category != "" {
		defs = reg.ByCategory(category)
	} else {
		defs = reg.List()
	}
	if defs == nil {
		defs = []*api.WorkflowDefinition{}
	}
	c.JSON(http.StatusOK, api.WorkflowsListResponse{
		Workflows: defs,
		Count:     len(defs),
	})
}

func (s *Server) getWorkflow(c *gin.Context) {
	id := api.WorkflowID(c.Param("workflowID"))
	def, err := s.engine.Workflows().Get(id)
	if errors.Is(err, workflow.ErrWorkflowNotFound) {
		abort(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, def)
}
