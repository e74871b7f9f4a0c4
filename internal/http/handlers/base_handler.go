// README: Base handler utilities (JSON helpers, caller lookup, workflow error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/http/middleware"
	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeWorkflowError maps workflow sentinels to status codes; the wrapped
// reason is returned to the caller, anything unmapped is logged and hidden.
func writeWorkflowError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrInfeasiblePairing), errors.Is(err, workflow.ErrNotPriced):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrPermissionDenied):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(c, 499, "request cancelled")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func caller(c *gin.Context) (types.Actor, bool) {
	a, ok := middleware.Caller(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing principal")
	}
	return a, ok
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func parseDecision(raw string) (workflow.Decision, bool) {
	return workflow.ParseDecision(strings.ToUpper(strings.TrimSpace(raw)))
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type moneyReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m moneyReq) money(defaultCurrency string) types.Money {
	cur := strings.ToUpper(strings.TrimSpace(m.Currency))
	if cur == "" {
		cur = defaultCurrency
	}
	return types.Money{Amount: m.Amount, Currency: cur}
}
