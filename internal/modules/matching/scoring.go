// README: Feasibility filter and the four bounded score components.
package matching

import (
	"errors"
	"fmt"
	"math"
	"time"

	"reposition/internal/config"
	"reposition/internal/types"
)

var (
	ErrTypeMismatch = errors.New("container type does not match booking")
	ErrTooLate      = errors.New("container is not available before the booking needs it")
)

// Feasible reports why a pair can never be matched; it is applied before scoring.
func Feasible(c Container, b Booking) error {
	if c.Type != b.RequiredType {
		return fmt.Errorf("%w: container %s is %s, booking %s needs %s", ErrTypeMismatch, c.ID, c.Type, b.ID, b.RequiredType)
	}
	if c.AvailableFrom.After(b.NeededBy) {
		return fmt.Errorf("%w: available %s, needed by %s", ErrTooLate,
			c.AvailableFrom.UTC().Format(time.RFC3339), b.NeededBy.UTC().Format(time.RFC3339))
	}
	return nil
}

func Scenario(c Container, b Booking) ScenarioType {
	switch {
	case c.TruckingCompanyID == b.TruckingCompanyID:
		return ScenarioSameTruckingCompany
	case c.ShippingLineID == b.ShippingLineID:
		return ScenarioSameShippingLine
	default:
		return ScenarioMarketplace
	}
}

// distanceScore decays linearly from 40 at 0 km to 0 at cfg.MaxDistanceKm.
func distanceScore(km float64, known bool, cfg config.MatchingConfig) float64 {
	if !known || cfg.MaxDistanceKm <= 0 {
		return 0
	}
	return round2(maxDistanceScore * clamp01(1-km/cfg.MaxDistanceKm))
}

// timeScore decays linearly from 20 at zero idle time to 0 at cfg.IdleHorizon.
func timeScore(availableFrom, neededBy time.Time, cfg config.MatchingConfig) float64 {
	idle := neededBy.Sub(availableFrom)
	if idle < 0 || cfg.IdleHorizon <= 0 {
		return 0
	}
	return round2(maxTimeScore * clamp01(1-float64(idle)/float64(cfg.IdleHorizon)))
}

func complexityScore(s ScenarioType) float64 {
	return complexityScores[s]
}

// neutralShare is the fraction of a quality component granted to an
// organization with no history.
const neutralShare = 0.6

// qualityScore blends rating (15 pts) and completion ratio (10 pts) with a
// neutral baseline, weighted by how much history the organization has.
func qualityScore(rep *OrgReputation, cfg config.MatchingConfig) float64 {
	confidence := float64(cfg.ReviewConfidence)
	if confidence <= 0 {
		confidence = 1
	}
	if rep == nil {
		return round2(maxQualityScore * neutralShare)
	}

	ratingWeight := math.Min(float64(rep.ReviewCount)/confidence, 1)
	rating := clamp01(rep.RatingAverage / 5)
	ratingPart := 15 * (ratingWeight*rating + (1-ratingWeight)*neutralShare)

	completionPart := 10 * neutralShare
	if rep.TotalRequests > 0 {
		w := math.Min(float64(rep.TotalRequests)/confidence, 1)
		ratio := clamp01(float64(rep.CompletedRequests) / float64(rep.TotalRequests))
		completionPart = 10 * (w*ratio + (1-w)*neutralShare)
	}
	return round2(math.Min(ratingPart+completionPart, maxQualityScore))
}

// Score composes the four components; Total is their exact sum, within [0,100].
func Score(c Container, b Booking, km float64, known bool, rep *OrgReputation, cfg config.MatchingConfig) MatchScore {
	s := MatchScore{
		Distance:   distanceScore(km, known, cfg),
		Time:       timeScore(c.AvailableFrom, b.NeededBy, cfg),
		Complexity: complexityScore(Scenario(c, b)),
		Quality:    qualityScore(rep, cfg),
	}
	s.Total = s.Distance + s.Time + s.Complexity + s.Quality
	if s.Total < 0 {
		s.Total = 0
	}
	if s.Total > 100 {
		s.Total = 100
	}
	return s
}

// Counterparty is the organization whose reliability the quality score rates:
// the booking's trucking company, or the carrier when both legs share a trucker.
func Counterparty(c Container, b Booking) types.ID {
	if c.TruckingCompanyID != b.TruckingCompanyID {
		return b.TruckingCompanyID
	}
	return b.ShippingLineID
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
