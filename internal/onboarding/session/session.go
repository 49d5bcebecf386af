// Package session hosts wizard sessions: one form state store per session plus
// the navigation, submission guards and services that act on it.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"onboard/internal/onboarding/completion"
	"onboard/internal/onboarding/draftsync"
	"onboard/internal/onboarding/kyc"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/steps"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// ReconcileError is a failed refetch or catalog load, shown until dismissed
// or retried.
type ReconcileError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StepView is one visible step with its navigation flags.
type StepView struct {
	Index       int            `json:"index"`
	Key         models.StepKey `json:"key"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Component   string         `json:"component"`
	Done        bool           `json:"done"`
	Reachable   bool           `json:"reachable"`
	Submitting  bool           `json:"submitting"`
}

// View is everything a console needs to render the wizard.
type View struct {
	SessionID      id.SessionID           `json:"sessionId"`
	BusinessID     id.BusinessID          `json:"businessId"`
	FormData       models.FormData        `json:"formData"`
	StepStatus     models.StepStatusMap   `json:"stepStatus"`
	Steps          []StepView             `json:"steps"`
	ActiveIndex    int                    `json:"activeIndex"`
	ActiveStep     models.StepKey         `json:"activeStep"`
	Completion     models.CompletionState `json:"completion"`
	ReconcileError *ReconcileError        `json:"reconcileError,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// SubmitResult describes a successful step submission.
type SubmitResult struct {
	View View `json:"session"`
	// Advanced is false when the operator navigated away while the save was
	// in flight.
	Advanced           bool `json:"advanced"`
	BusinessIDAssigned bool `json:"businessIdAssigned"`
}

// KYCSubmitResult describes a completed KYC step.
type KYCSubmitResult struct {
	View     View      `json:"session"`
	KYC      *kyc.View `json:"kyc"`
	Skipped  bool      `json:"skipped"`
	Uploaded int       `json:"uploaded"`
	Advanced bool      `json:"advanced"`
}

// Session owns one WizardState. It is safe for concurrent use: mutations go
// through the store, and each step admits one submission at a time.
type Session struct {
	id       id.SessionID
	operator string
	catalog  *steps.Catalog
	store    *wizard.Store
	syncer   *draftsync.Syncer
	kyc      *kyc.Engine
	gate     *completion.Gate
	logger   *slog.Logger
	onChange func(context.Context, *Session)
	openedAt time.Time

	mu           sync.Mutex
	activeKey    models.StepKey
	generation   uint64
	inFlight     map[models.StepKey]bool
	reconcileErr *ReconcileError
	kycView      *kyc.View
	kycKey       string
	updatedAt    time.Time
	closed       bool
}

func (s *Session) ID() id.SessionID {
	return s.id
}

// OperatorID is the console operator who opened the session.
func (s *Session) OperatorID() string {
	return s.operator
}

// State returns a copy of the wizard state.
func (s *Session) State() models.WizardState {
	return s.store.State()
}

// View renders the session. The active step is re-resolved against the
// current visible list first.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(s.store.State())
}

func (s *Session) viewLocked(state models.WizardState) View {
	visible := s.catalog.VisibleSteps(state.FormData)
	active := s.activeIndexLocked(visible)
	views := make([]StepView, len(visible))
	for i, d := range visible {
		views[i] = StepView{
			Index:       i,
			Key:         d.Key,
			Label:       d.Label,
			Description: d.Description,
			Component:   d.Component,
			Done:        state.StepStatus.IsDone(d.Key),
			Reachable:   steps.CanNavigateTo(i, state.StepStatus, visible),
			Submitting:  s.inFlight[d.Key],
		}
	}
	var reconcileErr *ReconcileError
	if s.reconcileErr != nil {
		e := *s.reconcileErr
		reconcileErr = &e
	}
	v := View{
		SessionID:      s.id,
		BusinessID:     state.BusinessID,
		FormData:       state.FormData,
		StepStatus:     state.StepStatus,
		Steps:          views,
		ActiveIndex:    active,
		Completion:     s.gate.State(),
		ReconcileError: reconcileErr,
		UpdatedAt:      s.updatedAt,
	}
	if len(visible) > 0 {
		v.ActiveStep = visible[active].Key
	}
	return v
}

// activeIndexLocked keeps the active step when it is still visible and
// otherwise redirects to the next applicable step.
func (s *Session) activeIndexLocked(visible []steps.Definition) int {
	if len(visible) == 0 {
		return 0
	}
	if i := steps.IndexOf(s.activeKey, visible); i >= 0 {
		return i
	}
	i := s.catalog.ResolveActiveIndexAfterFilterChange(s.activeKey, visible)
	s.activeKey = visible[i].Key
	s.generation++
	return i
}

// GoTo opens the step at index of the visible list if the navigation rule
// allows it.
func (s *Session) GoTo(ctx context.Context, index int) (View, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	state := s.store.State()
	visible := s.catalog.VisibleSteps(state.FormData)
	if index < 0 || index >= len(visible) {
		s.mu.Unlock()
		return View{}, dErrors.New(dErrors.CodeInvalidInput, "step index out of range")
	}
	if !steps.CanNavigateTo(index, state.StepStatus, visible) {
		s.mu.Unlock()
		return View{}, dErrors.New(dErrors.CodeConflict, "complete "+visible[index-1].Label+" first")
	}
	if s.activeKey != visible[index].Key {
		s.activeKey = visible[index].Key
		s.generation++
	}
	s.touchLocked(ctx)
	view := s.viewLocked(state)
	s.mu.Unlock()

	s.changed(ctx)
	return view, nil
}

// Next moves one step forward.
func (s *Session) Next(ctx context.Context) (View, error) {
	return s.GoTo(ctx, s.View().ActiveIndex+1)
}

// Previous moves one step back.
func (s *Session) Previous(ctx context.Context) (View, error) {
	return s.GoTo(ctx, s.View().ActiveIndex-1)
}

// Submit validates and saves one data step. Navigation advances only after the
// save succeeded, and only if the step is still the active one.
func (s *Session) Submit(ctx context.Context, key models.StepKey, data any) (*SubmitResult, error) {
	switch key {
	case models.StepKYCDocuments:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "KYC documents are submitted as a document upload")
	case models.StepReview:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "the review step is completed with finalize")
	}
	if _, ok := wizard.StrategyFor(key); !ok || key == models.StepMeta {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown step: "+string(key))
	}

	gen, err := s.begin(key)
	if err != nil {
		return nil, err
	}
	defer s.end(key)

	candidate := wizard.Reduce(s.store.State(), wizard.FormPatch(key, data))
	if err := s.catalog.Validate(key, candidate.FormData); err != nil {
		return nil, err
	}

	res, err := s.syncer.Submit(ctx, draftsync.Submission{Step: key, Data: recordOf(candidate.FormData, key)})
	if err != nil {
		return nil, err
	}

	advanced := s.advance(ctx, key, gen)
	s.changed(ctx)
	return &SubmitResult{View: s.View(), Advanced: advanced, BusinessIDAssigned: res.Assigned}, nil
}

// KYC returns the reconciled document list. The catalog and record are
// reloaded when the business id or business type changed since the last load.
func (s *Session) KYC(ctx context.Context) (*kyc.View, error) {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if err := s.checkOpenLocked(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		key := kycKeyOf(s.store.State())
		if s.kycView != nil && s.kycKey == key {
			catalog := s.kycView.Catalog
			s.mu.Unlock()
			return s.kyc.Rebuild(ctx, catalog), nil
		}
		s.mu.Unlock()

		view, err := s.kyc.Load(ctx)
		if err != nil {
			s.recordReconcileError(ctx, err)
			return nil, err
		}

		s.mu.Lock()
		current := kycKeyOf(s.store.State())
		if current == key || attempt > 0 {
			s.kycView, s.kycKey = view, current
			s.mu.Unlock()
			return view, nil
		}
		// The business type changed while loading; the catalog may be wrong.
		s.mu.Unlock()
	}
}

// ReloadKYC drops the cached catalog and loads it again.
func (s *Session) ReloadKYC(ctx context.Context) (*kyc.View, error) {
	s.mu.Lock()
	s.kycView, s.kycKey = nil, ""
	s.mu.Unlock()
	return s.KYC(ctx)
}

// SubmitKYC completes the KYC step with the given attachments.
func (s *Session) SubmitKYC(ctx context.Context, attachments []kyc.Attachment) (*KYCSubmitResult, error) {
	gen, err := s.begin(models.StepKYCDocuments)
	if err != nil {
		return nil, err
	}
	defer s.end(models.StepKYCDocuments)

	view, err := s.KYC(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.kyc.Submit(ctx, view.Catalog, attachments)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if key := kycKeyOf(res.State); key == kycKeyOf(s.store.State()) {
		s.kycView, s.kycKey = res.View, key
	}
	s.mu.Unlock()

	advanced := s.advance(ctx, models.StepKYCDocuments, gen)
	s.changed(ctx)
	return &KYCSubmitResult{
		View:     s.View(),
		KYC:      res.View,
		Skipped:  res.Skipped,
		Uploaded: res.Uploaded,
		Advanced: advanced,
	}, nil
}

// RetryReconcile refetches the business record on demand and clears the
// reconcile error when it succeeds.
func (s *Session) RetryReconcile(ctx context.Context) (View, error) {
	businessID := s.store.State().BusinessID
	if businessID.IsZero() {
		return View{}, dErrors.New(dErrors.CodeConflict, "nothing to reconcile before the first save")
	}
	if _, err := s.syncer.Reconcile(ctx, businessID); err != nil {
		s.recordReconcileError(ctx, err)
		return View{}, err
	}
	s.mu.Lock()
	s.reconcileErr = nil
	s.kycView, s.kycKey = nil, ""
	s.mu.Unlock()
	s.changed(ctx)
	return s.View(), nil
}

// DismissReconcileError hides the reconcile error without retrying.
func (s *Session) DismissReconcileError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileErr = nil
}

// Summary is the read-only review projection.
func (s *Session) Summary() completion.Summary {
	return completion.Summarize(s.catalog, s.store.State())
}

// Finalize completes onboarding once every step before review is done.
// Duplicate calls return completion.OutcomeIgnored.
func (s *Session) Finalize(ctx context.Context) (completion.Outcome, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.mu.Unlock()

	state := s.store.State()
	visible := s.catalog.VisibleSteps(state.FormData)
	review := steps.IndexOf(models.StepReview, visible)
	if review < 0 || !steps.CanNavigateTo(review, state.StepStatus, visible) {
		return "", dErrors.New(dErrors.CodeConflict, "complete every step before finalizing")
	}

	outcome, err := s.gate.Finalize(ctx)
	if err != nil {
		return "", err
	}
	s.changed(ctx)
	return outcome, nil
}

// Snapshot captures the persisted form of the session.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.store.State()
	visible := s.catalog.VisibleSteps(state.FormData)
	var active models.StepKey
	if len(visible) > 0 {
		active = visible[s.activeIndexLocked(visible)].Key
	}
	return models.Snapshot{
		SessionID:  s.id,
		OperatorID: s.operator,
		State:      state,
		ActiveStep: active,
		Completion: s.gate.State(),
		OpenedAt:   s.openedAt,
		UpdatedAt:  s.updatedAt,
	}
}

// close resets the state and discards refetches still in flight. A closed
// session rejects further operations.
func (s *Session) close() {
	s.syncer.Invalidate()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.store.Dispatch(wizard.ResetForm{})
	s.kycView, s.kycKey = nil, ""
	s.reconcileErr = nil
	s.activeKey = models.StepBusinessDetails
	s.generation++
}

func (s *Session) begin(key models.StepKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return 0, err
	}
	state := s.store.State()
	visible := s.catalog.VisibleSteps(state.FormData)
	idx := steps.IndexOf(key, visible)
	if idx < 0 {
		return 0, dErrors.New(dErrors.CodeConflict, "step "+string(key)+" does not apply to this business")
	}
	if !steps.CanNavigateTo(idx, state.StepStatus, visible) {
		return 0, dErrors.New(dErrors.CodeConflict, "complete "+visible[idx-1].Label+" first")
	}
	if s.inFlight[key] {
		return 0, dErrors.New(dErrors.CodeConflict, "a submission for this step is already in progress")
	}
	s.inFlight[key] = true
	return s.generation, nil
}

func (s *Session) end(key models.StepKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// advance moves past key when nothing changed the active step since the
// submission started.
func (s *Session) advance(ctx context.Context, key models.StepKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(ctx)
	visible := s.catalog.VisibleSteps(s.store.State().FormData)
	s.activeIndexLocked(visible)
	if s.generation != gen || s.activeKey != key {
		s.logger.DebugContext(ctx, "stale submission, not advancing",
			"session_id", s.id.String(),
			"step", string(key),
			"active_step", string(s.activeKey),
		)
		return false
	}
	idx := steps.IndexOf(key, visible)
	if idx < 0 || idx+1 >= len(visible) {
		return false
	}
	s.activeKey = visible[idx+1].Key
	s.generation++
	return true
}

func (s *Session) recordReconcileError(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reconcileErr = &ReconcileError{
		Code:       string(dErrors.CodeOf(err)),
		Message:    dErrors.MessageOf(err),
		OccurredAt: requestcontext.Now(ctx),
	}
}

// reconciled runs after a background refetch was applied.
func (s *Session) reconciled(state models.WizardState) {
	ctx := context.Background()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.reconcileErr = nil
	s.activeIndexLocked(s.catalog.VisibleSteps(state.FormData))
	s.touchLocked(ctx)
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return dErrors.New(dErrors.CodeNotFound, "session is closed")
	}
	return nil
}

func (s *Session) touchLocked(ctx context.Context) {
	s.updatedAt = requestcontext.Now(ctx)
}

func (s *Session) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx, s)
	}
}

func kycKeyOf(state models.WizardState) string {
	return state.BusinessID.String() + "|" + strings.ToLower(state.FormData.BusinessType())
}

// recordOf returns the full record of a data step.
func recordOf(fd models.FormData, key models.StepKey) any {
	switch key {
	case models.StepBusinessDetails:
		return fd.BusinessDetails
	case models.StepBusinessAddress:
		return fd.BusinessAddress
	case models.StepDirectors:
		return fd.Directors
	case models.StepFinancialInfo:
		return fd.FinancialInfo
	case models.StepKYCDocuments:
		return fd.KYCDocuments
	case models.StepAdmins:
		return fd.Admins
	case models.StepDeclaration:
		return fd.Declaration
	default:
		return nil
	}
}
