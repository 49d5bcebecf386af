package kyc

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"onboard/internal/onboarding/draftsync"
	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/steps"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

// View is the reconciled KYC step for one business id and business type.
type View struct {
	BusinessID   id.BusinessID         `json:"businessId"`
	BusinessType string                `json:"businessType"`
	Catalog      []models.DocumentType `json:"-"`
	Items        []Item                `json:"documents"`
	Ready        bool                  `json:"ready"`
	LoadedAt     time.Time             `json:"loadedAt"`
}

// Requirements returns the bare requirement list of the view.
func (v *View) Requirements() []models.DocumentRequirement {
	out := make([]models.DocumentRequirement, len(v.Items))
	for i, item := range v.Items {
		out[i] = item.DocumentRequirement
	}
	return out
}

// Attachment is a file, an expiry date or both entered for one catalog entry.
type Attachment struct {
	DocTypeID string
	File      *models.LocalFile
	ExpiresOn string
}

// SubmitResult describes a completed KYC submission.
type SubmitResult struct {
	// Skipped is true when nothing new was attached and the backend was not called.
	Skipped  bool
	Uploaded int
	State    models.WizardState
	View     *View
}

// Engine loads and submits the KYC step of one session.
type Engine struct {
	backend   ports.KYCBackend
	store     *wizard.Store
	syncer    *draftsync.Syncer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   ports.AuditPublisher
	sessionID string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditor(a ports.AuditPublisher) Option {
	return func(e *Engine) {
		e.auditor = a
	}
}

func WithSessionID(sessionID string) Option {
	return func(e *Engine) {
		e.sessionID = sessionID
	}
}

func New(backend ports.KYCBackend, store *wizard.Store, syncer *draftsync.Syncer, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		store:   store,
		syncer:  syncer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Load fetches the document catalog and refetches the business record
// concurrently, then reconciles the two. Either failure fails the load and
// leaves previously collected form data as it was.
func (e *Engine) Load(ctx context.Context) (*View, error) {
	businessID := e.store.State().BusinessID
	if businessID.IsZero() {
		return nil, dErrors.New(dErrors.CodeConflict, "business details must be saved before KYC documents")
	}

	var entries []ports.DocumentTypeEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = e.backend.DocumentTypes(gctx, businessID)
		if err != nil {
			return ports.TranslateError(err, "failed to load KYC document types")
		}
		return nil
	})
	g.Go(func() error {
		_, err := e.syncer.ReconcileDocuments(gctx, businessID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.WarnContext(ctx, "kyc load failed",
			"session_id", e.sessionID,
			"business_id", businessID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}

	view := e.buildView(ctx, e.store.State(), CatalogFromEntries(entries))
	e.logger.InfoContext(ctx, "kyc documents reconciled",
		"session_id", e.sessionID,
		"business_id", businessID.String(),
		"business_type", view.BusinessType,
		"documents", len(view.Items),
		"ready", view.Ready,
	)
	return view, nil
}

// Rebuild recomputes a view from a known catalog and the current uploaded
// records without calling the backend.
func (e *Engine) Rebuild(ctx context.Context, catalog []models.DocumentType) *View {
	return e.buildView(ctx, e.store.State(), catalog)
}

// Submit attaches files to the reconciled requirements and completes the
// step. When nothing new is attached and every required document is already
// satisfied the backend is not called. Otherwise all documents are sent in
// one batched upload and the record is refetched.
func (e *Engine) Submit(ctx context.Context, catalog []models.DocumentType, attachments []Attachment) (*SubmitResult, error) {
	state := e.store.State()
	businessID := state.BusinessID
	if businessID.IsZero() {
		return nil, dErrors.New(dErrors.CodeConflict, "business details must be saved before KYC documents")
	}
	now := requestcontext.Now(ctx)

	reqs := Reconcile(catalog, state.FormData.KYCDocuments.Docs)
	if err := attach(reqs, attachments, now); err != nil {
		return nil, err
	}

	if missing := Missing(reqs); len(missing) > 0 {
		fields := make([]steps.FieldError, len(missing))
		for i, docID := range missing {
			fields[i] = steps.FieldError{Field: "docs." + docID, Reason: "is required"}
		}
		return nil, &steps.ValidationError{Step: models.StepKYCDocuments, Fields: fields}
	}

	if !HasNewFiles(reqs) {
		state = e.store.Dispatch(wizard.StatusPatch(models.StepKYCDocuments, true))
		e.metrics.IncrementKYCSkipped()
		e.emit(ctx, audit.EventKYCSubmissionSkipped, businessID, nil)
		e.logger.InfoContext(ctx, "kyc submission skipped, documents already on file",
			"session_id", e.sessionID,
			"business_id", businessID.String(),
		)
		return &SubmitResult{Skipped: true, State: state, View: e.buildView(ctx, state, catalog)}, nil
	}

	upload := ports.UploadRequest{BusinessID: businessID, Docs: make([]ports.UploadDocument, len(reqs))}
	uploaded := 0
	for i, r := range reqs {
		doc := ports.UploadDocument{DocID: r.DocTypeID, File: r.PendingLocalFile}
		if r.PendingExpiresOn != nil {
			doc.ExpiresOn = r.PendingExpiresOn.Format(time.DateOnly)
		}
		if r.HasNewFile() {
			uploaded++
		}
		upload.Docs[i] = doc
	}

	if _, err := e.backend.UploadDocuments(ctx, upload); err != nil {
		e.logger.WarnContext(ctx, "kyc upload failed",
			"session_id", e.sessionID,
			"business_id", businessID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, ports.TranslateError(err, "failed to upload KYC documents")
	}
	e.metrics.IncrementKYCUpload()
	e.emit(ctx, audit.EventKYCDocumentsSubmitted, businessID, map[string]string{"files": strconv.Itoa(uploaded)})

	// A failed refetch is recorded on the session; the upload itself succeeded.
	if _, err := e.syncer.Refresh(ctx, businessID); err != nil {
		e.logger.WarnContext(ctx, "refetch after kyc upload failed", "business_id", businessID.String(), "error", err)
	}
	state = e.store.Dispatch(wizard.StatusPatch(models.StepKYCDocuments, true))

	e.logger.InfoContext(ctx, "kyc documents uploaded",
		"session_id", e.sessionID,
		"business_id", businessID.String(),
		"files", uploaded,
	)
	return &SubmitResult{Uploaded: uploaded, State: state, View: e.buildView(ctx, state, catalog)}, nil
}

// attach copies attachments onto the matching requirements and validates
// their expiry dates.
func attach(reqs []models.DocumentRequirement, attachments []Attachment, now time.Time) error {
	index := make(map[string]int, len(reqs))
	for i, r := range reqs {
		index[r.DocTypeID] = i
	}
	today := now.UTC().Truncate(24 * time.Hour)

	var fields []steps.FieldError
	for _, a := range attachments {
		i, ok := index[a.DocTypeID]
		if !ok {
			fields = append(fields, steps.FieldError{Field: "docs." + a.DocTypeID, Reason: "is not a document type for this business"})
			continue
		}
		field := "docs." + a.DocTypeID
		if a.File != nil && len(a.File.Content) > 0 {
			file := *a.File
			reqs[i].PendingLocalFile = &file
		}
		if a.ExpiresOn != "" {
			t, ok := wizard.ParseDate(a.ExpiresOn)
			switch {
			case !ok:
				fields = append(fields, steps.FieldError{Field: field + ".expiresOn", Reason: "must be a date (YYYY-MM-DD)"})
				continue
			case !t.After(today):
				fields = append(fields, steps.FieldError{Field: field + ".expiresOn", Reason: "must be in the future"})
				continue
			}
			reqs[i].PendingExpiresOn = &t
		}
		if reqs[i].HasNewFile() && reqs[i].ExpiryPolicy == models.ExpiryDate && reqs[i].PendingExpiresOn == nil {
			fields = append(fields, steps.FieldError{Field: field + ".expiresOn", Reason: "is required for this document"})
		}
	}
	if len(fields) > 0 {
		return &steps.ValidationError{Step: models.StepKYCDocuments, Fields: fields}
	}
	return nil
}

func (e *Engine) buildView(ctx context.Context, state models.WizardState, catalog []models.DocumentType) *View {
	now := requestcontext.Now(ctx)
	reqs := Reconcile(catalog, state.FormData.KYCDocuments.Docs)
	return &View{
		BusinessID:   state.BusinessID,
		BusinessType: state.FormData.BusinessType(),
		Catalog:      catalog,
		Items:        Items(reqs, now),
		Ready:        Ready(reqs),
		LoadedAt:     now,
	}
}

func (e *Engine) emit(ctx context.Context, event audit.AuditEvent, businessID id.BusinessID, details map[string]string) {
	if e.auditor == nil {
		return
	}
	err := e.auditor.Emit(ctx, audit.Event{
		Action:     string(event),
		SessionID:  e.sessionID,
		BusinessID: businessID.String(),
		Step:       string(models.StepKYCDocuments),
		OperatorID: requestcontext.OperatorID(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  requestcontext.Now(ctx),
		Details:    details,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}
