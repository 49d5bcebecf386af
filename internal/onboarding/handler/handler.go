// Package handler exposes wizard sessions to the admin console over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/onboarding/completion"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/session"
	"onboard/internal/onboarding/steps"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

// DefaultMaxUploadBytes bounds one batched KYC upload.
const DefaultMaxUploadBytes = 32 << 20

// Handler serves the /onboarding/sessions API.
type Handler struct {
	manager        *session.Manager
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(manager *session.Manager, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		manager:        manager,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts the routes on r. Authentication and request-scoped
// middleware are applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/onboarding/sessions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleOpen)
		r.Post("/resume", h.handleResume)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleClose)
			r.Put("/steps/{step}", h.handleSubmitStep)
			r.Post("/navigate", h.handleNavigate)
			r.Get("/kyc", h.handleGetKYC)
			r.Post("/kyc", h.handleSubmitKYC)
			r.Post("/reconcile", h.handleRetryReconcile)
			r.Delete("/reconcile-error", h.handleDismissReconcileError)
			r.Get("/summary", h.handleSummary)
			r.Post("/finalize", h.handleFinalize)
		})
	})
}

type resumeRequest struct {
	BusinessID any `json:"businessId"`

	parsed id.BusinessID
}

func (r *resumeRequest) Validate() error {
	bid, ok := id.BusinessIDFromAny(r.BusinessID)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "businessId is required")
	}
	r.parsed = bid
	return nil
}

type submitStepRequest struct {
	Data any `json:"data"`
}

func (r *submitStepRequest) Validate() error {
	if r.Data == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "data is required")
	}
	return nil
}

type navigateRequest struct {
	Index     *int   `json:"index"`
	Direction string `json:"direction"`
}

func (r *navigateRequest) Validate() error {
	switch {
	case r.Index != nil && r.Direction != "":
		return dErrors.New(dErrors.CodeInvalidInput, "use either index or direction")
	case r.Index != nil:
		return nil
	case r.Direction == "next", r.Direction == "previous":
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "direction must be next or previous")
	}
}

type finalizeResponse struct {
	Outcome completion.Outcome `json:"outcome"`
	Session session.View       `json:"session"`
}

// validationResponse adds the failing fields to the usual error body.
type validationResponse struct {
	httputil.ErrorResponse
	Step   models.StepKey     `json:"step"`
	Fields []steps.FieldError `json:"fields"`
}

type listResponse struct {
	Sessions []id.SessionID `json:"sessions"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.List(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list sessions", err)
		return
	}
	if ids == nil {
		ids = []id.SessionID{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Sessions: ids})
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.manager.Open(ctx)
	if err != nil {
		h.fail(w, r, "failed to open session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess.View())
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[resumeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sess, err := h.manager.Resume(ctx, req.parsed)
	if err != nil {
		h.fail(w, r, "failed to resume session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess.View())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.manager.Close(r.Context(), sessionID); err != nil {
		h.fail(w, r, "failed to close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	key, ok := models.ParseStepKey(chi.URLParam(r, "step"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown step"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[submitStepRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := sess.Submit(ctx, key, req.Data)
	if err != nil {
		h.fail(w, r, "step submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[navigateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	var (
		view session.View
		err  error
	)
	switch {
	case req.Index != nil:
		view, err = sess.GoTo(ctx, *req.Index)
	case req.Direction == "next":
		view, err = sess.Next(ctx)
	default:
		view, err = sess.Previous(ctx)
	}
	if err != nil {
		h.fail(w, r, "navigation rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetKYC(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	load := sess.KYC
	if r.URL.Query().Get("reload") == "true" {
		load = sess.ReloadKYC
	}
	view, err := load(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load KYC documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSubmitKYC(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	attachments, err := h.readAttachments(w, r)
	if err != nil {
		h.fail(w, r, "invalid KYC upload", err)
		return
	}
	res, err := sess.SubmitKYC(r.Context(), attachments)
	if err != nil {
		h.fail(w, r, "KYC submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRetryReconcile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := sess.RetryReconcile(r.Context())
	if err != nil {
		h.fail(w, r, "reconcile failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDismissReconcileError(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.DismissReconcileError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Summary())
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	outcome, err := sess.Finalize(r.Context())
	if err != nil {
		h.fail(w, r, "finalize failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, finalizeResponse{Outcome: outcome, Session: sess.View()})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	sess, err := h.manager.Get(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "session lookup failed", err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"error", err,
		"code", string(dErrors.CodeOf(err)),
		"session_id", chi.URLParam(r, "sessionID"),
		"request_id", requestcontext.RequestID(ctx),
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}

	var verr *steps.ValidationError
	if errors.As(err, &verr) {
		httputil.WriteJSON(w, http.StatusBadRequest, validationResponse{
			ErrorResponse: httputil.ErrorResponse{
				Error:            string(dErrors.CodeValidation),
				ErrorDescription: verr.Error(),
			},
			Step:   verr.Step,
			Fields: verr.Fields,
		})
		return
	}
	httputil.WriteError(w, err)
}
