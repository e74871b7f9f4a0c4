// README: Read-only listing of a carrier's auto-approval rules.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reposition/internal/modules/rules"
	"reposition/internal/types"
)

type RuleLister interface {
	List(ctx context.Context, carrierID types.ID) ([]rules.Rule, error)
}

type RulesHandler struct {
	rules RuleLister
	log   zerolog.Logger
}

func NewRulesHandler(r RuleLister, log zerolog.Logger) *RulesHandler {
	return &RulesHandler{rules: r, log: log}
}

type ruleView struct {
	ID                   types.ID   `json:"id"`
	Name                 string     `json:"rule_name"`
	Priority             int        `json:"priority"`
	IsActive             bool       `json:"is_active"`
	ContainerTypes       []string   `json:"container_types"`
	AllTruckingCompanies bool       `json:"all_trucking_companies"`
	TruckingCompanies    []types.ID `json:"trucking_company_ids"`
	MaxDistanceKm        *float64   `json:"max_distance_km"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// List returns the caller's own rules; only carrier admins own rules.
func (h *RulesHandler) List(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	if actor.Role != types.RoleCarrierAdmin {
		writeError(c, http.StatusForbidden, "only carrier admins can list rules")
		return
	}
	list, err := h.rules.List(c.Request.Context(), actor.OrgID)
	if err != nil {
		h.log.Error().Err(err).Str("carrier_id", string(actor.OrgID)).Msg("list rules")
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]ruleView, 0, len(list))
	for _, r := range list {
		v := ruleView{
			ID:                   r.ID,
			Name:                 r.Name,
			Priority:             r.Priority,
			IsActive:             r.IsActive,
			ContainerTypes:       r.ContainerTypes.Types,
			AllTruckingCompanies: r.TruckingCompanies.AllCompanies,
			TruckingCompanies:    r.TruckingCompanies.Allowed,
			UpdatedAt:            r.UpdatedAt,
		}
		if r.Distance.Enabled {
			km := r.Distance.MaxKm
			v.MaxDistanceKm = &km
		}
		out = append(out, v)
	}
	writeJSON(c, http.StatusOK, gin.H{"rules": out})
}
