// README: Workflow aggregates: import containers, export bookings, street-turn and COD requests.
package workflow

import (
	"time"

	"reposition/internal/types"
)

type Container struct {
	ID                types.ID        `json:"id"`
	Number            string          `json:"container_number"`
	Type              string          `json:"container_type"`
	OriginDepotID     types.ID        `json:"origin_depot_id"`
	AvailableFrom     time.Time       `json:"available_from"`
	ShippingLineID    types.ID        `json:"shipping_line_id"`
	TruckingCompanyID types.ID        `json:"trucking_company_id"`
	Status            ContainerStatus `json:"status"`
	MarketplaceListed bool            `json:"marketplace_listed"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Booking struct {
	ID                types.ID      `json:"id"`
	Number            string        `json:"booking_number"`
	RequiredType      string        `json:"required_container_type"`
	PickupLocationID  types.ID      `json:"pickup_location_id"`
	NeededBy          time.Time     `json:"needed_by"`
	TruckingCompanyID types.ID      `json:"trucking_company_id"`
	ShippingLineID    types.ID      `json:"shipping_line_id"`
	Status            BookingStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

type StreetTurnRequest struct {
	ID                   types.ID         `json:"id"`
	ContainerID          types.ID         `json:"import_container_id"`
	BookingID            types.ID         `json:"export_booking_id"`
	RequestingOrgID      types.ID         `json:"requesting_org_id"`
	ApprovingOrgID       types.ID         `json:"approving_org_id"`
	Status               StreetTurnStatus `json:"status"`
	StatusVersion        int              `json:"status_version"`
	EstimatedCostSaving  types.Money      `json:"estimated_cost_saving"`
	EstimatedCo2SavingKg float64          `json:"estimated_co2_saving_kg"`
	AutoApprovedRuleID   *types.ID        `json:"auto_approved_rule_id,omitempty"`
	ReasonForDecision    string           `json:"reason_for_decision,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	DecidedAt            *time.Time       `json:"decided_at,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`
}

type CodRequest struct {
	ID                       types.ID     `json:"id"`
	ContainerID              types.ID     `json:"dropoff_order_id"`
	RequestingOrgID          types.ID     `json:"requesting_org_id"`
	ApprovingOrgID           types.ID     `json:"approving_org_id"`
	OriginalDepotID          types.ID     `json:"original_depot_id"`
	OriginalDepotAddress     string       `json:"original_depot_address"`
	RequestedDepotID         types.ID     `json:"requested_depot_id"`
	QuotedFee                types.Money  `json:"quoted_fee"`
	DistanceKm               float64      `json:"distance_km"`
	Fee                      *types.Money `json:"cod_fee,omitempty"`
	Status                   CodStatus    `json:"status"`
	StatusVersion            int          `json:"status_version"`
	ReasonForRequest         string       `json:"reason_for_request"`
	ReasonForDecision        string       `json:"reason_for_decision,omitempty"`
	AdditionalInfo           string       `json:"additional_info,omitempty"`
	ExpiresAt                time.Time    `json:"expires_at"`
	PaymentConfirmedAt       *time.Time   `json:"payment_confirmed_at,omitempty"`
	DepotProcessingStartedAt *time.Time   `json:"depot_processing_started_at,omitempty"`
	CompletedAt              *time.Time   `json:"completed_at,omitempty"`
	CreatedAt                time.Time    `json:"created_at"`
}

type EntityKind string

const (
	KindContainer  EntityKind = "container"
	KindBooking    EntityKind = "booking"
	KindStreetTurn EntityKind = "street_turn"
	KindCod        EntityKind = "cod"
)

// Event is one row of the workflow state log.
type Event struct {
	ID         int64
	EntityKind EntityKind
	EntityID   types.ID
	FromStatus string
	ToStatus   string
	ActorOrgID types.ID
	ActorRole  types.Role
	Reason     string
	CreatedAt  time.Time
}

type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionDecline     Decision = "DECLINE"
	DecisionRequestInfo Decision = "REQUEST_INFO"
)

// ParseDecision accepts REJECT as a synonym of DECLINE.
func ParseDecision(raw string) (Decision, bool) {
	switch Decision(raw) {
	case DecisionApprove, DecisionDecline, DecisionRequestInfo:
		return Decision(raw), true
	case "REJECT":
		return DecisionDecline, true
	default:
		return "", false
	}
}
