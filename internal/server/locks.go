package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

const msgLockReleased = "lock released"

func (s *Server) listLocks(c *gin.Context) {
	locks, err := s.engine.Locks().List(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrListLocks, err),
		)
		return
	}
	if locks == nil {
		locks = []*api.DeviceLock{}
	}
	c.JSON(http.StatusOK, api.LocksListResponse{
		Locks: locks,
		Count: len(locks),
	})
}

// releaseLock force-releases a device lock. Operators use it to recover a
// device whose owning execution died without releasing
func (s *Server) releaseLock(c *gin.Context) {
	serial := api.Serial(c.Param("serial"))
	if err := s.engine.Locks().Release(c.Request.Context(), serial); err != nil {
		abort(c, http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrReleaseLock, err),
		)
		return
	}
	slog.Warn("Device lock force-released", log.Serial(serial))
	c.JSON(http.StatusOK, api.MessageResponse{Message: msgLockReleased})
}
