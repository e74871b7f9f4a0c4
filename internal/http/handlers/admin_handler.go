// README: Administrative trigger for the COD expiry sweep.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/types"
)

type Expirer interface {
	ExpireStaleRequests(ctx context.Context, actor types.Actor, now time.Time) (int, error)
}

type AdminHandler struct {
	svc Expirer
	log zerolog.Logger
	now func() time.Time
}

func NewAdminHandler(svc Expirer, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (h *AdminHandler) Expire(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.svc.ExpireStaleRequests(c.Request.Context(), actor, h.now())
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"expired": n})
}
