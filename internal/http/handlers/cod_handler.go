// README: Change-of-destination handlers (quote, create, decide, info, payment, advance, reverse).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/modules/feematrix"
	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

type CodRequests interface {
	QuoteCodFee(ctx context.Context, origin, destination types.ID) (feematrix.Quote, error)
	CreateCodRequest(ctx context.Context, cmd workflow.CreateCodCommand) (*workflow.CodRequest, error)
	DecideCodRequest(ctx context.Context, cmd workflow.DecideCodCommand) (*workflow.CodRequest, error)
	GetCodRequest(ctx context.Context, actor types.Actor, id types.ID) (*workflow.CodRequest, error)
	SupplyCodInfo(ctx context.Context, actor types.Actor, id types.ID, info string) (*workflow.CodRequest, error)
	ConfirmCodPayment(ctx context.Context, actor types.Actor, id types.ID) (*workflow.CodRequest, error)
	AdvanceDepotProcessing(ctx context.Context, actor types.Actor, kind workflow.EntityKind, id types.ID) (any, error)
	ReverseCodRequest(ctx context.Context, actor types.Actor, id types.ID, reason string) (*workflow.CodRequest, error)
}

type CodHandler struct {
	svc      CodRequests
	log      zerolog.Logger
	currency string
}

func NewCodHandler(svc CodRequests, currency string, log zerolog.Logger) *CodHandler {
	return &CodHandler{svc: svc, log: log, currency: currency}
}

type codView struct {
	*workflow.CodRequest
	StatusLabel string `json:"status_label"`
}

func (h *CodHandler) respond(c *gin.Context, status int, r *workflow.CodRequest, err error) {
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, status, codView{CodRequest: r, StatusLabel: workflow.Label(workflow.KindCod, r.Status)})
}

func (h *CodHandler) Quote(c *gin.Context) {
	origin, destination := c.Query("origin"), c.Query("destination")
	if origin == "" || destination == "" {
		writeError(c, http.StatusBadRequest, "origin and destination are required")
		return
	}
	q, err := h.svc.QuoteCodFee(c.Request.Context(), types.ID(origin), types.ID(destination))
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

type createCodReq struct {
	ContainerID        string `json:"dropoff_order_id" binding:"required"`
	DestinationDepotID string `json:"requested_depot_id" binding:"required"`
	Reason             string `json:"reason_for_request" binding:"required"`
}

func (h *CodHandler) Create(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req createCodReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.svc.CreateCodRequest(c.Request.Context(), workflow.CreateCodCommand{
		Actor:              actor,
		ContainerID:        types.ID(req.ContainerID),
		DestinationDepotID: types.ID(req.DestinationDepotID),
		Reason:             req.Reason,
	})
	h.respond(c, http.StatusCreated, r, err)
}

func (h *CodHandler) Get(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.svc.GetCodRequest(c.Request.Context(), actor, types.ID(c.Param("id")))
	h.respond(c, http.StatusOK, r, err)
}

func (h *CodHandler) Decide(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	d, ok := parseDecision(req.Decision)
	if !ok {
		writeError(c, http.StatusBadRequest, "decision must be APPROVE, DECLINE or REQUEST_INFO")
		return
	}
	cmd := workflow.DecideCodCommand{
		Actor:     actor,
		RequestID: types.ID(c.Param("id")),
		Decision:  d,
		Reason:    req.Reason,
	}
	if req.Fee != nil {
		fee := req.Fee.money(h.currency)
		cmd.Fee = &fee
	}
	r, err := h.svc.DecideCodRequest(c.Request.Context(), cmd)
	h.respond(c, http.StatusOK, r, err)
}

type supplyInfoReq struct {
	Info string `json:"additional_info" binding:"required"`
}

func (h *CodHandler) SupplyInfo(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req supplyInfoReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.svc.SupplyCodInfo(c.Request.Context(), actor, types.ID(c.Param("id")), req.Info)
	h.respond(c, http.StatusOK, r, err)
}

func (h *CodHandler) ConfirmPayment(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.svc.ConfirmCodPayment(c.Request.Context(), actor, types.ID(c.Param("id")))
	h.respond(c, http.StatusOK, r, err)
}

func (h *CodHandler) Advance(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	out, err := h.svc.AdvanceDepotProcessing(c.Request.Context(), actor, workflow.KindCod, types.ID(c.Param("id")))
	r, _ := out.(*workflow.CodRequest)
	if err == nil && r == nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	h.respond(c, http.StatusOK, r, err)
}

type reverseReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *CodHandler) Reverse(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req reverseReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.svc.ReverseCodRequest(c.Request.Context(), actor, types.ID(c.Param("id")), req.Reason)
	h.respond(c, http.StatusOK, r, err)
}
