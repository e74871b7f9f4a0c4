// README: Fee/distance matrix entries keyed by (origin depot, destination depot).
package feematrix

import "reposition/internal/types"

// Route is directional: (A,B) and (B,A) are priced independently.
type Route struct {
	Origin      types.ID
	Destination types.ID
}

type Entry struct {
	Route      Route
	Fee        types.Money
	DistanceKm float64
}

type Quote struct {
	Origin      types.ID    `json:"origin_depot_id"`
	Destination types.ID    `json:"destination_depot_id"`
	Fee         types.Money `json:"fee"`
	DistanceKm  float64     `json:"distance_km"`
}
