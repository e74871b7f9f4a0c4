// README: Auto-approval rule definitions; each condition dimension states "no restriction" explicitly.
package rules

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"reposition/internal/types"
)

var ErrMalformedRule = errors.New("malformed auto-approval rule")

type Rule struct {
	ID        types.ID
	CarrierID types.ID
	Name      string
	// Lower priority is evaluated first.
	Priority          int
	IsActive          bool
	ContainerTypes    ContainerTypeFilter
	TruckingCompanies TruckingFilter
	Distance          DistanceLimit
	UpdatedAt         time.Time
}

// ContainerTypeFilter with no types is a wildcard, not a reject-all.
type ContainerTypeFilter struct {
	Types []string
}

func (f ContainerTypeFilter) Any() bool {
	return len(f.Types) == 0
}

func (f ContainerTypeFilter) Allows(containerType string) bool {
	return f.Any() || slices.Contains(f.Types, containerType)
}

// TruckingFilter ignores Allowed when AllCompanies is set.
type TruckingFilter struct {
	AllCompanies bool
	Allowed      []types.ID
}

func (f TruckingFilter) Allows(truckingCoID types.ID) bool {
	return f.AllCompanies || slices.Contains(f.Allowed, truckingCoID)
}

type DistanceLimit struct {
	Enabled bool
	MaxKm   float64
}

// Allows treats an unknown distance as exceeding any enabled limit.
func (l DistanceLimit) Allows(km float64, known bool) bool {
	if !l.Enabled {
		return true
	}
	return known && km <= l.MaxKm
}

func (r Rule) Validate() error {
	if r.Distance.Enabled && (math.IsNaN(r.Distance.MaxKm) || r.Distance.MaxKm < 0) {
		return fmt.Errorf("%w: rule %s has invalid max distance %v", ErrMalformedRule, r.ID, r.Distance.MaxKm)
	}
	if !r.TruckingCompanies.AllCompanies && len(r.TruckingCompanies.Allowed) == 0 {
		return fmt.Errorf("%w: rule %s has an empty trucking company allow-list", ErrMalformedRule, r.ID)
	}
	return nil
}

func (r Rule) Matches(in Input) bool {
	return r.ContainerTypes.Allows(in.ContainerType) &&
		r.TruckingCompanies.Allows(in.TruckingCompanyID) &&
		r.Distance.Allows(in.DistanceKm, in.DistanceKnown)
}

type Input struct {
	ContainerType     string
	TruckingCompanyID types.ID
	DistanceKm        float64
	DistanceKnown     bool
}

type Decision struct {
	AutoApprove bool
	RuleID      types.ID
	RuleName    string
	Priority    int
}

var NoMatch = Decision{}
