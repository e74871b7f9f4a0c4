// README: First-match-wins evaluation of priority-ordered auto-approval rules.
package rules

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"reposition/internal/types"
)

type Store interface {
	// ListRules returns one consistent snapshot of a carrier's rules.
	ListRules(ctx context.Context, carrierID types.ID) ([]Rule, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) List(ctx context.Context, carrierID types.ID) ([]Rule, error) {
	return s.store.ListRules(ctx, carrierID)
}

// Evaluate loads the carrier's rule snapshot and returns the first full match.
// A store failure is returned to the caller, who treats it as NoMatch.
func (s *Service) Evaluate(ctx context.Context, carrierID types.ID, in Input) (Decision, error) {
	snapshot, err := s.store.ListRules(ctx, carrierID)
	if err != nil {
		return NoMatch, err
	}
	return Evaluate(snapshot, in, s.log), nil
}

// Evaluate filters active rules, orders them by priority and returns the
// first rule whose every condition holds. Malformed rules are logged and skipped.
func Evaluate(snapshot []Rule, in Input, log zerolog.Logger) Decision {
	active := make([]Rule, 0, len(snapshot))
	for _, r := range snapshot {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	for _, r := range active {
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Str("rule_id", string(r.ID)).Msg("skipping malformed auto-approval rule")
			continue
		}
		if r.Matches(in) {
			return Decision{AutoApprove: true, RuleID: r.ID, RuleName: r.Name, Priority: r.Priority}
		}
	}
	return NoMatch
}
