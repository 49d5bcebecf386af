// Package draftsync persists one step at a time to the onboarding backend and
// folds the authoritative record back into the session's form state.
package draftsync

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

// Submission is one step's data. Data is the full step record (typed or loose).
type Submission struct {
	Step models.StepKey
	Data any
}

// Result describes a successful save.
type Result struct {
	BusinessID id.BusinessID
	// Assigned is true when this save obtained the business id.
	Assigned bool
	State    models.WizardState
	// Refetching is true when a background refetch-and-reconcile was started.
	Refetching bool
}

// Syncer is bound to one session's store. Saves run on the caller's goroutine;
// the refetch that follows runs in the background and is drained by Wait.
type Syncer struct {
	backend    ports.DraftBackend
	store      *wizard.Store
	normalizer *Normalizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditor    ports.AuditPublisher
	sessionID  string

	onReconcileError func(error)
	onReconciled     func(models.WizardState)

	mu      sync.Mutex
	issued  uint64
	applied uint64
	epoch   uint64
	// holdDocs keeps server document records out of refetches after a
	// business type change, until the catalog for the new type is loaded.
	holdDocs bool
	wg       sync.WaitGroup
}

type Option func(*Syncer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(s *Syncer) {
		s.auditor = a
	}
}

func WithNormalizer(n *Normalizer) Option {
	return func(s *Syncer) {
		s.normalizer = n
	}
}

func WithSessionID(sessionID string) Option {
	return func(s *Syncer) {
		s.sessionID = sessionID
	}
}

// WithReconcileErrorHandler receives failures of background refetches.
func WithReconcileErrorHandler(fn func(error)) Option {
	return func(s *Syncer) {
		s.onReconcileError = fn
	}
}

// WithReconciledHandler is called after a refetch was folded into the store.
func WithReconciledHandler(fn func(models.WizardState)) Option {
	return func(s *Syncer) {
		s.onReconciled = fn
	}
}

func New(backend ports.DraftBackend, store *wizard.Store, opts ...Option) *Syncer {
	s := &Syncer{
		backend:    backend,
		store:      store,
		normalizer: NewNormalizer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Submit saves one step. On failure nothing in the store changes. On success
// the business id is assigned if this was the first save, the step data is
// merged and the step is marked done, all in one dispatch. A refetch of the
// whole record is then started in the background.
func (s *Syncer) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if !sub.Step.IsFormKey() || sub.Step == models.StepMeta {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown step: "+string(sub.Step))
	}
	before := s.store.State()
	current := before.BusinessID
	req := ports.SaveDraftRequest{
		BusinessID: current,
		Step:       StepName(sub.Step),
		Data:       s.normalizer.Outbound(sub.Step, sub.Data),
	}

	resp, err := s.backend.SaveDraft(ctx, req)
	if err != nil {
		s.metrics.ObserveStepSave(string(sub.Step), false)
		s.logger.WarnContext(ctx, "draft save failed",
			"session_id", s.sessionID,
			"business_id", current.String(),
			"step", string(sub.Step),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, ports.TranslateError(err, "failed to save "+string(sub.Step))
	}

	actions := make([]wizard.Action, 0, 3)
	assigned := false
	if current.IsZero() && resp != nil && !resp.BusinessID.IsZero() {
		actions = append(actions, wizard.SetBusinessID{ID: resp.BusinessID})
		assigned = true
	}
	actions = append(actions,
		wizard.FormPatch(sub.Step, sub.Data),
		wizard.StatusPatch(sub.Step, true),
	)
	// A refetch issued before this save may carry older data for the step.
	s.mu.Lock()
	s.issued++
	s.applied = s.issued
	state := s.store.Dispatch(actions...)
	if typeChanged(before.FormData.BusinessType(), state.FormData.BusinessType()) {
		s.holdDocs = true
	}
	s.mu.Unlock()
	s.metrics.ObserveStepSave(string(sub.Step), true)

	s.logger.InfoContext(ctx, "draft saved",
		"session_id", s.sessionID,
		"business_id", state.BusinessID.String(),
		"step", string(sub.Step),
		"assigned", assigned,
		"request_id", requestcontext.RequestID(ctx),
	)
	if assigned {
		s.emit(ctx, audit.EventBusinessIDAssigned, state.BusinessID, sub.Step)
	}
	s.emit(ctx, audit.EventStepSaved, state.BusinessID, sub.Step)

	result := &Result{BusinessID: state.BusinessID, Assigned: assigned, State: state}
	if !state.BusinessID.IsZero() {
		s.refetchAsync(requestcontext.Detach(ctx), state.BusinessID)
		result.Refetching = true
	}
	return result, nil
}

// Reconcile fetches the full record and folds every recognized field into the
// store. A failed fetch leaves the store untouched. A response is discarded
// when a later refetch or a later save was already applied, or when it was
// issued before Invalidate. After a business type change, uploaded documents
// are left out until ReconcileDocuments runs.
func (s *Syncer) Reconcile(ctx context.Context, businessID id.BusinessID) (models.WizardState, error) {
	return s.reconcile(ctx, businessID, false)
}

// ReconcileDocuments is Reconcile for a caller that is loading the document
// catalog of the current business type: uploaded documents are always folded
// and the hold set by a type change is lifted.
func (s *Syncer) ReconcileDocuments(ctx context.Context, businessID id.BusinessID) (models.WizardState, error) {
	return s.reconcile(ctx, businessID, true)
}

func (s *Syncer) reconcile(ctx context.Context, businessID id.BusinessID, withDocs bool) (models.WizardState, error) {
	if businessID.IsZero() {
		return s.store.State(), dErrors.New(dErrors.CodeInvalidInput, "business id is required to reconcile")
	}
	s.mu.Lock()
	s.issued++
	seq, epoch := s.issued, s.epoch
	s.mu.Unlock()

	record, err := s.backend.GetBusiness(ctx, businessID)
	if err != nil {
		s.metrics.IncrementReconcileFailure()
		s.logger.WarnContext(ctx, "refetch failed",
			"session_id", s.sessionID,
			"business_id", businessID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return s.store.State(), ports.TranslateError(err, "failed to refresh business record")
	}

	s.mu.Lock()
	if epoch != s.epoch || seq < s.applied {
		s.mu.Unlock()
		s.metrics.IncrementReconcileDropped()
		s.logger.DebugContext(ctx, "discarding stale refetch",
			"session_id", s.sessionID,
			"business_id", businessID.String(),
		)
		return s.store.State(), nil
	}
	s.applied = seq
	partial := s.normalizer.Inbound(record)
	if withDocs {
		s.holdDocs = false
	} else if s.holdDocs {
		delete(partial, models.StepKYCDocuments)
	}
	actions := []wizard.Action{wizard.SetBusinessID{ID: businessID}}
	if len(partial) > 0 {
		actions = append(actions, wizard.SetFormData{Partial: partial})
	}
	state := s.store.Dispatch(actions...)
	s.mu.Unlock()

	if s.onReconciled != nil {
		s.onReconciled(state)
	}
	return state, nil
}

// Refresh reconciles synchronously and also reports a failure to the
// reconcile error handler, the same way a background refetch would.
func (s *Syncer) Refresh(ctx context.Context, businessID id.BusinessID) (models.WizardState, error) {
	state, err := s.Reconcile(ctx, businessID)
	if err != nil && s.onReconcileError != nil {
		s.onReconcileError(err)
	}
	return state, err
}

// Invalidate discards every refetch still in flight. Used before a reset.
func (s *Syncer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// Wait blocks until background refetches have finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// Normalizer exposes the field translation used by this syncer.
func (s *Syncer) Normalizer() *Normalizer {
	return s.normalizer
}

func (s *Syncer) refetchAsync(ctx context.Context, businessID id.BusinessID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Refresh(ctx, businessID); err != nil {
			s.logger.DebugContext(ctx, "background refetch failed", "session_id", s.sessionID, "error", err)
		}
	}()
}

func (s *Syncer) emit(ctx context.Context, event audit.AuditEvent, businessID id.BusinessID, step models.StepKey) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Action:     string(event),
		SessionID:  s.sessionID,
		BusinessID: businessID.String(),
		Step:       string(step),
		OperatorID: requestcontext.OperatorID(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  requestcontext.Now(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}

// typeChanged mirrors the catalog rule: only a change away from an already
// chosen type counts.
func typeChanged(prev, next string) bool {
	prev, next = strings.ToLower(strings.TrimSpace(prev)), strings.ToLower(strings.TrimSpace(next))
	return prev != "" && prev != next
}
