// README: Handlers for container/booking registration and reuse suggestions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/modules/matching"
	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

type Registry interface {
	RegisterContainer(ctx context.Context, cmd workflow.RegisterContainerCommand) (*workflow.Container, error)
	RegisterBooking(ctx context.Context, cmd workflow.RegisterBookingCommand) (*workflow.Booking, error)
	GetSuggestions(ctx context.Context, actor types.Actor) ([]matching.Suggestion, error)
}

type RegistryHandler struct {
	svc Registry
	log zerolog.Logger
}

func NewRegistryHandler(svc Registry, log zerolog.Logger) *RegistryHandler {
	return &RegistryHandler{svc: svc, log: log}
}

type registerContainerReq struct {
	Number            string `json:"container_number" binding:"required"`
	Type              string `json:"container_type" binding:"required"`
	OriginDepotID     string `json:"origin_depot_id" binding:"required"`
	AvailableFrom     string `json:"available_from" binding:"required"`
	ShippingLineID    string `json:"shipping_line_id" binding:"required"`
	MarketplaceListed bool   `json:"marketplace_listed"`
}

func (h *RegistryHandler) RegisterContainer(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req registerContainerReq
	if !bindJSON(c, &req) {
		return
	}
	from, ok := parseTime(req.AvailableFrom)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid available_from")
		return
	}
	ctr, err := h.svc.RegisterContainer(c.Request.Context(), workflow.RegisterContainerCommand{
		Actor:             actor,
		Number:            req.Number,
		Type:              req.Type,
		OriginDepotID:     types.ID(req.OriginDepotID),
		AvailableFrom:     from,
		ShippingLineID:    types.ID(req.ShippingLineID),
		MarketplaceListed: req.MarketplaceListed,
	})
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, ctr)
}

type registerBookingReq struct {
	Number           string `json:"booking_number" binding:"required"`
	RequiredType     string `json:"required_container_type" binding:"required"`
	PickupLocationID string `json:"pickup_location_id" binding:"required"`
	NeededBy         string `json:"needed_by" binding:"required"`
	ShippingLineID   string `json:"shipping_line_id" binding:"required"`
}

func (h *RegistryHandler) RegisterBooking(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req registerBookingReq
	if !bindJSON(c, &req) {
		return
	}
	neededBy, ok := parseTime(req.NeededBy)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid needed_by")
		return
	}
	b, err := h.svc.RegisterBooking(c.Request.Context(), workflow.RegisterBookingCommand{
		Actor:            actor,
		Number:           req.Number,
		RequiredType:     req.RequiredType,
		PickupLocationID: types.ID(req.PickupLocationID),
		NeededBy:         neededBy,
		ShippingLineID:   types.ID(req.ShippingLineID),
	})
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *RegistryHandler) Suggestions(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	out, err := h.svc.GetSuggestions(c.Request.Context(), actor)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	if out == nil {
		out = []matching.Suggestion{}
	}
	writeJSON(c, http.StatusOK, gin.H{"suggestions": out})
}
