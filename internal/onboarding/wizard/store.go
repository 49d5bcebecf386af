package wizard

import (
	"sync"

	"onboard/internal/onboarding/models"
)

// Effect derives follow-up actions from a state transition. Effects run inside
// the dispatch critical section, once per Dispatch call, and the actions they
// return are reduced without re-running effects.
type Effect func(prev, next models.WizardState) []Action

// Store is the single owner of a session's WizardState. Dispatches are
// serialized; readers receive deep copies.
type Store struct {
	mu      sync.RWMutex
	state   models.WizardState
	effects []Effect
}

type StoreOption func(*Store)

// WithEffect registers an effect, e.g. the business-type rules of the sequencer.
func WithEffect(e Effect) StoreOption {
	return func(s *Store) {
		if e != nil {
			s.effects = append(s.effects, e)
		}
	}
}

// WithInitialState seeds the store, e.g. from a persisted snapshot.
func WithInitialState(state models.WizardState) StoreOption {
	return func(s *Store) {
		s.state = Reduce(state, SetStepStatus{})
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{state: models.NewWizardState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch reduces actions in order, runs effects against the combined
// transition and returns the resulting state.
func (s *Store) Dispatch(actions ...Action) models.WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next := ReduceAll(prev, actions...)
	for _, effect := range s.effects {
		if follow := effect(prev, next); len(follow) > 0 {
			next = ReduceAll(next, follow...)
		}
	}
	s.state = next
	return next.Clone()
}

// State returns a copy of the current state.
func (s *Store) State() models.WizardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}
