// Package booking maps accepted quotes into booking drafts.
//
// Mapping is strategy-based: each strategy produces a draft from a quote
// (optionally merging an in-progress draft) and carries its own validation
// rules. Validation distinguishes errors, which must block persisting the
// draft, from warnings, which are surfaced for human confirmation.
package booking

import (
	"sync"

	"freightline/internal/domain"
)

// Strategy is a named, swappable quote-to-booking transformation.
type Strategy interface {
	Name() string
	Map(quote domain.Quote, existing *domain.BookingDraft) domain.BookingDraft
	Validate(quote domain.Quote, draft domain.BookingDraft) domain.ValidationResult
}

// Result pairs a mapped draft with its validation outcome.
type Result struct {
	Booking    domain.BookingDraft     `json:"booking"`
	Validation domain.ValidationResult `json:"validation"`
}

// Engine holds the strategy registry. Built-ins "standard" and "legacy" are
// registered at construction. Register is meant for one-time startup wiring;
// the mutex only makes late registration safe, not cheap.
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewEngine() *Engine {
	e := &Engine{strategies: map[string]Strategy{}}
	e.Register("standard", NewStandardStrategy())
	e.Register("legacy", NewLegacyStrategy())
	return e
}

// Register inserts or overwrites a strategy entry.
func (e *Engine) Register(name string, s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[name] = s
}

// strategy resolves a name, falling back silently to "standard" for
// unregistered names. Callers needing strict selection must inspect
// mapping_metadata.strategy on the result.
func (e *Engine) strategy(name string) Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.strategies[name]; ok {
		return s
	}
	return e.strategies["standard"]
}

// Map produces a booking draft from the quote using the named strategy and
// validates it in the same call.
func (e *Engine) Map(quote domain.Quote, strategyName string, existing *domain.BookingDraft) Result {
	s := e.strategy(strategyName)
	draft := s.Map(quote, existing)
	return Result{Booking: draft, Validation: s.Validate(quote, draft)}
}

// Validate checks an existing draft against its source quote using the named
// strategy.
func (e *Engine) Validate(quote domain.Quote, draft domain.BookingDraft, strategyName string) domain.ValidationResult {
	return e.strategy(strategyName).Validate(quote, draft)
}
