// Package completion implements the terminal review step: a read-only summary
// of the collected data and a finalize action guarded against double submit.
package completion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

// DefaultDisplayDelay is how long the confirmation stays visible before the
// success callback runs.
const DefaultDisplayDelay = 1500 * time.Millisecond

// Outcome of a Finalize call.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeIgnored means a finalize was already running or had already
	// succeeded. It is not an error.
	OutcomeIgnored Outcome = "ignored"
)

// Gate is the pending → completed state machine of one session.
type Gate struct {
	backend   ports.CompletionBackend
	store     *wizard.Store
	delay     time.Duration
	onSuccess func(id.BusinessID)
	schedule  func(time.Duration, func())
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   ports.AuditPublisher
	sessionID string

	mu       sync.Mutex
	state    models.CompletionState
	inFlight bool
}

type Option func(*Gate)

// WithDisplayDelay sets the delay before the success callback. Zero runs it
// right after the transition.
func WithDisplayDelay(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.delay = d
		}
	}
}

// WithOnSuccess registers the callback run once after a successful finalize.
func WithOnSuccess(fn func(id.BusinessID)) Option {
	return func(g *Gate) {
		g.onSuccess = fn
	}
}

// WithScheduler replaces time.AfterFunc, for tests.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(g *Gate) {
		g.schedule = schedule
	}
}

// WithInitialState restores a gate from a snapshot.
func WithInitialState(state models.CompletionState) Option {
	return func(g *Gate) {
		if state == models.CompletionCompleted {
			g.state = state
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(g *Gate) {
		g.auditor = a
	}
}

func WithSessionID(sessionID string) Option {
	return func(g *Gate) {
		g.sessionID = sessionID
	}
}

func New(backend ports.CompletionBackend, store *wizard.Store, opts ...Option) *Gate {
	g := &Gate{
		backend: backend,
		store:   store,
		delay:   DefaultDisplayDelay,
		state:   models.CompletionPending,
		logger:  slog.Default(),
	}
	g.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// State returns the current gate state.
func (g *Gate) State() models.CompletionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// InFlight reports whether a finalize call is running.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Finalize performs the terminal call at most once. Calls made while one is
// in flight, or after the gate completed, return OutcomeIgnored without
// contacting the backend. On failure the gate stays pending and may be retried.
func (g *Gate) Finalize(ctx context.Context) (Outcome, error) {
	g.mu.Lock()
	if g.state == models.CompletionCompleted || g.inFlight {
		g.mu.Unlock()
		g.metrics.ObserveFinalize(metrics.OutcomeIgnored)
		g.logger.DebugContext(ctx, "duplicate finalize ignored", "session_id", g.sessionID)
		return OutcomeIgnored, nil
	}
	g.inFlight = true
	g.mu.Unlock()

	businessID := g.store.State().BusinessID
	if businessID.IsZero() {
		g.release()
		return "", dErrors.New(dErrors.CodeConflict, "onboarding cannot be completed before a draft exists")
	}

	if _, err := g.backend.CompleteOnboarding(ctx, businessID); err != nil {
		g.release()
		g.metrics.ObserveFinalize(metrics.OutcomeFailed)
		g.emit(ctx, audit.EventOnboardingFinalizeFail, businessID)
		g.logger.WarnContext(ctx, "finalize failed",
			"session_id", g.sessionID,
			"business_id", businessID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return "", ports.TranslateError(err, "failed to complete onboarding")
	}

	g.mu.Lock()
	g.state = models.CompletionCompleted
	g.inFlight = false
	g.mu.Unlock()

	g.store.Dispatch(wizard.StatusPatch(models.StepReview, true))
	g.metrics.ObserveFinalize(metrics.OutcomeCompleted)
	g.emit(ctx, audit.EventOnboardingCompleted, businessID)
	g.logger.InfoContext(ctx, "onboarding completed",
		"session_id", g.sessionID,
		"business_id", businessID.String(),
	)

	if g.onSuccess != nil {
		cb := g.onSuccess
		g.schedule(g.delay, func() { cb(businessID) })
	}
	return OutcomeCompleted, nil
}

func (g *Gate) release() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

func (g *Gate) emit(ctx context.Context, event audit.AuditEvent, businessID id.BusinessID) {
	if g.auditor == nil {
		return
	}
	err := g.auditor.Emit(ctx, audit.Event{
		Action:     string(event),
		SessionID:  g.sessionID,
		BusinessID: businessID.String(),
		Step:       string(models.StepReview),
		OperatorID: requestcontext.OperatorID(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  requestcontext.Now(ctx),
	})
	if err != nil {
		g.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}
