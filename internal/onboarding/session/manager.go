package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"onboard/internal/onboarding/completion"
	"onboard/internal/onboarding/draftsync"
	"onboard/internal/onboarding/kyc"
	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/steps"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	audit "onboard/pkg/platform/audit"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// Backend is the onboarding backend as seen by a session.
type Backend interface {
	ports.DraftBackend
	ports.KYCBackend
	ports.CompletionBackend
}

// SnapshotStore persists session snapshots so sessions survive a restart.
type SnapshotStore interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context, sessionID id.SessionID) (models.Snapshot, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	List(ctx context.Context) ([]id.SessionID, error)
}

// Manager owns the open sessions of this process.
type Manager struct {
	backend     Backend
	catalog     *steps.Catalog
	snapshots   SnapshotStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     ports.AuditPublisher
	delay       time.Duration
	onFinalized func(*Session, id.BusinessID)

	mu       sync.Mutex
	sessions map[id.SessionID]*Session
}

type Option func(*Manager)

func WithSnapshotStore(store SnapshotStore) Option {
	return func(m *Manager) {
		m.snapshots = store
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(m *Manager) {
		m.auditor = a
	}
}

// WithFinalizeDelay sets how long the success message is shown before the
// finalized handler runs.
func WithFinalizeDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.delay = d
	}
}

// WithOnFinalized replaces the post-completion handler. The default closes
// the session.
func WithOnFinalized(fn func(*Session, id.BusinessID)) Option {
	return func(m *Manager) {
		m.onFinalized = fn
	}
}

func WithCatalog(c *steps.Catalog) Option {
	return func(m *Manager) {
		m.catalog = c
	}
}

func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:  backend,
		delay:    completion.DefaultDisplayDelay,
		logger:   slog.Default(),
		sessions: make(map[id.SessionID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.catalog == nil {
		m.catalog = steps.NewCatalog(nil)
	}
	if m.onFinalized == nil {
		m.onFinalized = func(s *Session, _ id.BusinessID) {
			m.Close(context.Background(), s.ID())
		}
	}
	return m
}

// Catalog is the step catalog shared by every session.
func (m *Manager) Catalog() *steps.Catalog {
	return m.catalog
}

// Open starts a fresh session with an empty form.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	now := requestcontext.Now(ctx)
	s := m.build(ctx, models.Snapshot{
		SessionID:  id.NewSessionID(),
		OperatorID: requestcontext.OperatorID(ctx),
		State:      models.NewWizardState(),
		ActiveStep: models.StepBusinessDetails,
		Completion: models.CompletionPending,
		OpenedAt:   now,
		UpdatedAt:  now,
	})
	m.register(ctx, s)
	return s, nil
}

// Resume opens a session for an existing draft. The record is fetched, the
// completed steps are taken from its meta, and the first step not yet done
// becomes active.
func (m *Manager) Resume(ctx context.Context, businessID id.BusinessID) (*Session, error) {
	if businessID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "business id is required")
	}
	now := requestcontext.Now(ctx)
	state := models.NewWizardState()
	state.BusinessID = businessID
	s := m.build(ctx, models.Snapshot{
		SessionID:  id.NewSessionID(),
		OperatorID: requestcontext.OperatorID(ctx),
		State:      state,
		ActiveStep: models.StepBusinessDetails,
		Completion: models.CompletionPending,
		OpenedAt:   now,
		UpdatedAt:  now,
	})

	state, err := s.syncer.Reconcile(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if done := draftsync.CompletedSteps(state.FormData.Meta); len(done) > 0 {
		actions := make([]wizard.Action, 0, len(done))
		for _, key := range done {
			actions = append(actions, wizard.StatusPatch(key, true))
		}
		state = s.store.Dispatch(actions...)
	}
	if complete, _ := state.FormData.Meta["isOnboardingComplete"].(bool); complete {
		s.gate = m.gate(s.id.String(), s.store, models.CompletionCompleted, s)
	}

	visible := m.catalog.VisibleSteps(state.FormData)
	active := len(visible) - 1
	for i, d := range visible {
		if !state.StepStatus.IsDone(d.Key) {
			active = i
			break
		}
	}
	s.mu.Lock()
	if active >= 0 {
		s.activeKey = visible[active].Key
	}
	s.mu.Unlock()

	m.register(ctx, s)
	m.logger.InfoContext(ctx, "session resumed",
		"session_id", s.id.String(),
		"business_id", businessID.String(),
		"active_step", string(s.activeKey),
		"request_id", requestcontext.RequestID(ctx),
	)
	return s, nil
}

// Get returns an open session, restoring it from the snapshot store when it
// is not held in memory.
func (m *Manager) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		return s, nil
	}
	if m.snapshots == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	snap, err := m.snapshots.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	s = m.build(ctx, snap)
	s.onChange = m.persist
	m.sessions[sessionID] = s
	m.metrics.SessionOpened()
	m.logger.InfoContext(ctx, "session restored",
		"session_id", sessionID.String(),
		"business_id", snap.State.BusinessID.String(),
	)
	return s, nil
}

// List returns the ids of resumable sessions: every persisted snapshot, plus
// sessions held only in memory.
func (m *Manager) List(ctx context.Context) ([]id.SessionID, error) {
	var out []id.SessionID
	if m.snapshots != nil {
		stored, err := m.snapshots.List(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
		}
		out = stored
	}
	seen := make(map[id.SessionID]struct{}, len(out))
	for _, sid := range out {
		seen[sid] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid := range m.sessions {
		if _, ok := seen[sid]; !ok {
			out = append(out, sid)
		}
	}
	return out, nil
}

// Close resets and forgets a session.
func (m *Manager) Close(ctx context.Context, sessionID id.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		businessID := s.State().BusinessID
		s.close()
		m.metrics.SessionClosed()
		m.emit(ctx, s, audit.EventSessionClosed, businessID)
		m.logger.InfoContext(ctx, "session closed",
			"session_id", sessionID.String(),
			"business_id", businessID.String(),
		)
	}
	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session snapshot")
		}
	}
	if !ok && m.snapshots == nil {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return nil
}

// Shutdown waits for background refetches and persists every open session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.syncer.Wait()
		m.persist(ctx, s)
	}
}

// Len is the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) register(ctx context.Context, s *Session) {
	s.onChange = m.persist
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()
	m.emit(ctx, s, audit.EventSessionOpened, s.State().BusinessID)
	m.persist(ctx, s)
	m.logger.InfoContext(ctx, "session opened",
		"session_id", s.id.String(),
		"operator_id", s.operator,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (m *Manager) build(ctx context.Context, snap models.Snapshot) *Session {
	sessionID := snap.SessionID.String()
	s := &Session{
		id:        snap.SessionID,
		operator:  snap.OperatorID,
		catalog:   m.catalog,
		logger:    m.logger,
		openedAt:  snap.OpenedAt,
		updatedAt: snap.UpdatedAt,
		activeKey: snap.ActiveStep,
		inFlight:  make(map[models.StepKey]bool),
	}
	if s.activeKey == "" {
		s.activeKey = models.StepBusinessDetails
	}
	s.store = wizard.NewStore(
		wizard.WithInitialState(snap.State),
		wizard.WithEffect(m.catalog.Effect()),
	)
	s.syncer = draftsync.New(m.backend, s.store,
		draftsync.WithLogger(m.logger),
		draftsync.WithMetrics(m.metrics),
		draftsync.WithAuditor(m.auditor),
		draftsync.WithSessionID(sessionID),
		draftsync.WithReconcileErrorHandler(func(err error) {
			s.recordReconcileError(requestcontext.Detach(ctx), err)
			m.persist(context.Background(), s)
		}),
		draftsync.WithReconciledHandler(s.reconciled),
	)
	s.kyc = kyc.New(m.backend, s.store, s.syncer,
		kyc.WithLogger(m.logger),
		kyc.WithMetrics(m.metrics),
		kyc.WithAuditor(m.auditor),
		kyc.WithSessionID(sessionID),
	)
	completionState := snap.Completion
	if completionState == "" {
		completionState = models.CompletionPending
	}
	s.gate = m.gate(sessionID, s.store, completionState, s)
	return s
}

func (m *Manager) gate(sessionID string, store *wizard.Store, state models.CompletionState, s *Session) *completion.Gate {
	return completion.New(m.backend, store,
		completion.WithDisplayDelay(m.delay),
		completion.WithInitialState(state),
		completion.WithOnSuccess(func(businessID id.BusinessID) {
			m.onFinalized(s, businessID)
		}),
		completion.WithLogger(m.logger),
		completion.WithMetrics(m.metrics),
		completion.WithAuditor(m.auditor),
		completion.WithSessionID(sessionID),
	)
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.snapshots == nil {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if err := m.snapshots.Save(ctx, s.Snapshot()); err != nil {
		m.logger.WarnContext(ctx, "failed to persist session snapshot",
			"session_id", s.id.String(),
			"error", err,
		)
	}
}

func (m *Manager) emit(ctx context.Context, s *Session, event audit.AuditEvent, businessID id.BusinessID) {
	if m.auditor == nil {
		return
	}
	err := m.auditor.Emit(ctx, audit.Event{
		Action:     string(event),
		SessionID:  s.id.String(),
		BusinessID: businessID.String(),
		OperatorID: s.operator,
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  requestcontext.Now(ctx),
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}
