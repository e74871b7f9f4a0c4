// README: Street-turn request handlers (create, get, decide, complete).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

type StreetTurns interface {
	CreateStreetTurnRequest(ctx context.Context, cmd workflow.CreateStreetTurnCommand) (*workflow.StreetTurnRequest, error)
	DecideStreetTurnRequest(ctx context.Context, cmd workflow.DecideStreetTurnCommand) (*workflow.StreetTurnRequest, error)
	GetStreetTurnRequest(ctx context.Context, actor types.Actor, id types.ID) (*workflow.StreetTurnRequest, error)
	AdvanceDepotProcessing(ctx context.Context, actor types.Actor, kind workflow.EntityKind, id types.ID) (any, error)
}

type StreetTurnHandler struct {
	svc      StreetTurns
	log      zerolog.Logger
	currency string
}

func NewStreetTurnHandler(svc StreetTurns, currency string, log zerolog.Logger) *StreetTurnHandler {
	return &StreetTurnHandler{svc: svc, log: log, currency: currency}
}

type streetTurnView struct {
	*workflow.StreetTurnRequest
	StatusLabel string `json:"status_label"`
}

func viewStreetTurn(r *workflow.StreetTurnRequest) streetTurnView {
	return streetTurnView{StreetTurnRequest: r, StatusLabel: workflow.Label(workflow.KindStreetTurn, r.Status)}
}

type createStreetTurnReq struct {
	ContainerID          string   `json:"import_container_id" binding:"required"`
	BookingID            string   `json:"export_booking_id" binding:"required"`
	EstimatedCostSaving  moneyReq `json:"estimated_cost_saving"`
	EstimatedCo2SavingKg float64  `json:"estimated_co2_saving_kg"`
}

func (h *StreetTurnHandler) Create(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req createStreetTurnReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.svc.CreateStreetTurnRequest(c.Request.Context(), workflow.CreateStreetTurnCommand{
		Actor:                actor,
		ContainerID:          types.ID(req.ContainerID),
		BookingID:            types.ID(req.BookingID),
		EstimatedCostSaving:  req.EstimatedCostSaving.money(h.currency),
		EstimatedCo2SavingKg: req.EstimatedCo2SavingKg,
	})
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewStreetTurn(r))
}

func (h *StreetTurnHandler) Get(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.svc.GetStreetTurnRequest(c.Request.Context(), actor, types.ID(c.Param("id")))
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, viewStreetTurn(r))
}

type decisionReq struct {
	Decision string    `json:"decision" binding:"required"`
	Reason   string    `json:"reason"`
	Fee      *moneyReq `json:"cod_fee"`
}

func (h *StreetTurnHandler) Decide(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	d, ok := parseDecision(req.Decision)
	if !ok || d == workflow.DecisionRequestInfo {
		writeError(c, http.StatusBadRequest, "decision must be APPROVE or DECLINE")
		return
	}
	r, err := h.svc.DecideStreetTurnRequest(c.Request.Context(), workflow.DecideStreetTurnCommand{
		Actor:     actor,
		RequestID: types.ID(c.Param("id")),
		Decision:  d,
		Reason:    req.Reason,
	})
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, viewStreetTurn(r))
}

func (h *StreetTurnHandler) Complete(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	out, err := h.svc.AdvanceDepotProcessing(c.Request.Context(), actor, workflow.KindStreetTurn, types.ID(c.Param("id")))
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	r, _ := out.(*workflow.StreetTurnRequest)
	if r == nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, viewStreetTurn(r))
}
