// README: Matching inputs (available containers and open bookings) and derived suggestions.
package matching

import (
	"time"

	"reposition/internal/types"
)

type Container struct {
	ID                types.ID  `json:"id"`
	Number            string    `json:"container_number"`
	Type              string    `json:"container_type"`
	DepotID           types.ID  `json:"depot_id"`
	AvailableFrom     time.Time `json:"available_from"`
	ShippingLineID    types.ID  `json:"shipping_line_id"`
	TruckingCompanyID types.ID  `json:"trucking_company_id"`
	MarketplaceListed bool      `json:"marketplace_listed"`
}

type Booking struct {
	ID                types.ID  `json:"id"`
	Number            string    `json:"booking_number"`
	RequiredType      string    `json:"required_container_type"`
	PickupLocationID  types.ID  `json:"pickup_location_id"`
	NeededBy          time.Time `json:"needed_by"`
	ShippingLineID    types.ID  `json:"shipping_line_id"`
	TruckingCompanyID types.ID  `json:"trucking_company_id"`
}

type ScenarioType string

const (
	ScenarioSameTruckingCompany ScenarioType = "SAME_TRUCKING_COMPANY"
	ScenarioSameShippingLine    ScenarioType = "SAME_SHIPPING_LINE"
	ScenarioMarketplace         ScenarioType = "MARKETPLACE"
)

// Point caps of the four score components; they sum to 100.
const (
	maxDistanceScore   = 40.0
	maxTimeScore       = 20.0
	maxComplexityScore = 15.0
	maxQualityScore    = 25.0
)

var complexityScores = map[ScenarioType]float64{
	ScenarioSameTruckingCompany: 15,
	ScenarioSameShippingLine:    10,
	ScenarioMarketplace:         5,
}

type MatchScore struct {
	Distance   float64 `json:"distance_score"`
	Time       float64 `json:"time_score"`
	Complexity float64 `json:"complexity_score"`
	Quality    float64 `json:"quality_score"`
	Total      float64 `json:"total_score"`
}

type Fee struct {
	Label  string      `json:"label"`
	Amount types.Money `json:"amount"`
}

type Candidate struct {
	Booking         Booking      `json:"booking"`
	Score           MatchScore   `json:"score"`
	Scenario        ScenarioType `json:"scenario_type"`
	DistanceKm      float64      `json:"distance_km"`
	DistanceKnown   bool         `json:"distance_known"`
	RequiredActions []string     `json:"required_actions"`
	AdditionalFees  []Fee        `json:"additional_fees"`
}

// Suggestion is derived on every query and never persisted.
type Suggestion struct {
	Container Container   `json:"import_container"`
	Matches   []Candidate `json:"matching_bookings"`
}

type OrgReputation struct {
	OrgID             types.ID
	RatingAverage     float64 // 0..5
	ReviewCount       int
	CompletedRequests int
	TotalRequests     int
}

const (
	actionCrossDepot      = "Cross-depot inspection required"
	actionHandOver        = "Trucking company hand-over required"
	actionInterchange     = "Marketplace interchange agreement required"
	actionLineInterchange = "Shipping line interchange approval required"
	actionUnknownDistance = "Distance unavailable; confirm route manually"
	feeLabelRelocation    = "Depot relocation fee"
	feeLabelMarketplace   = "Marketplace fee"
)
