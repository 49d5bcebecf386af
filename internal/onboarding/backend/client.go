// Package backend is the HTTP client for the onboarding backend. Every call is
// traced, timed and guarded by a circuit breaker.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/ports"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

const (
	EndpointSaveDraft          = "save-draft"
	EndpointGetBusiness        = "get-business"
	EndpointDocumentTypes      = "kyc-doc-types"
	EndpointUploadDocuments    = "upload-kyc-documents"
	EndpointCompleteOnboarding = "complete-onboarding"
)

const (
	maxResponseBody = 1 << 20
	maxErrorMessage = 512
)

// TokenSource supplies the bearer token for backend calls. Authentication
// itself is handled outside this service.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// envelope is the {success, data, message} wrapper of every response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	tokens  TokenSource
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTimeout bounds every call. It applies to the client given by
// WithHTTPClient too, whatever the option order, without mutating it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client for baseURL, e.g. https://api.example.com/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: circuit.New("onboarding-backend"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("onboard/backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// SaveDraft upserts one step. A zero business id creates the record.
func (c *Client) SaveDraft(ctx context.Context, req ports.SaveDraftRequest) (*ports.SaveDraftResult, error) {
	body := map[string]any{
		"business_id": nil,
		"step":        req.Step,
		"data":        req.Data,
	}
	if !req.BusinessID.IsZero() {
		body["business_id"] = req.BusinessID.String()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode save-draft request: %w", err)
	}

	env, err := c.do(ctx, EndpointSaveDraft, http.MethodPost, "/onboarding/save-draft", nil,
		"application/json", bytes.NewReader(payload), attribute.String("step", req.Step))
	if err != nil {
		return nil, err
	}
	result := &ports.SaveDraftResult{Message: env.Message}
	var data map[string]any
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &data) == nil {
		for _, k := range []string{"business_id", "businessId", "id"} {
			if bid, ok := id.BusinessIDFromAny(data[k]); ok {
				result.BusinessID = bid
				break
			}
		}
	}
	return result, nil
}

// GetBusiness fetches the full record keyed in backend field names.
func (c *Client) GetBusiness(ctx context.Context, businessID id.BusinessID) (map[string]any, error) {
	env, err := c.do(ctx, EndpointGetBusiness, http.MethodGet,
		"/onboarding/business/"+url.PathEscape(businessID.String()), nil, "", nil,
		attribute.String("business_id", businessID.String()))
	if err != nil {
		return nil, err
	}
	record := map[string]any{}
	if err := decodeData(env.Data, &record); err != nil {
		return nil, c.malformed(EndpointGetBusiness, err)
	}
	return record, nil
}

// DocumentTypes fetches the document catalog for the business's current type.
func (c *Client) DocumentTypes(ctx context.Context, businessID id.BusinessID) ([]ports.DocumentTypeEntry, error) {
	query := url.Values{"business_id": {businessID.String()}}
	env, err := c.do(ctx, EndpointDocumentTypes, http.MethodGet, "/onboarding/kyc-doc-types", query, "", nil,
		attribute.String("business_id", businessID.String()))
	if err != nil {
		return nil, err
	}
	entries, err := decodeCatalog(env.Data)
	if err != nil {
		return nil, c.malformed(EndpointDocumentTypes, err)
	}
	return entries, nil
}

// UploadDocuments sends every document of the step in one multipart request.
func (c *Client) UploadDocuments(ctx context.Context, req ports.UploadRequest) (*ports.Ack, error) {
	body, contentType, err := encodeUpload(req)
	if err != nil {
		return nil, fmt.Errorf("encode upload request: %w", err)
	}
	env, err := c.do(ctx, EndpointUploadDocuments, http.MethodPost, "/onboarding/upload-kyc-documents", nil,
		contentType, body,
		attribute.String("business_id", req.BusinessID.String()),
		attribute.Int("documents", len(req.Docs)),
	)
	if err != nil {
		return nil, err
	}
	return &ports.Ack{Message: env.Message}, nil
}

// CompleteOnboarding is the terminal finalize call.
func (c *Client) CompleteOnboarding(ctx context.Context, businessID id.BusinessID) (*ports.Ack, error) {
	payload, err := json.Marshal(map[string]string{"business_id": businessID.String()})
	if err != nil {
		return nil, err
	}
	env, err := c.do(ctx, EndpointCompleteOnboarding, http.MethodPost, "/onboarding/complete-onboarding", nil,
		"application/json", bytes.NewReader(payload), attribute.String("business_id", businessID.String()))
	if err != nil {
		return nil, err
	}
	return &ports.Ack{Message: env.Message}, nil
}

// BreakerOpen reports whether calls currently fail fast.
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, contentType string, body io.Reader, attrs ...attribute.KeyValue) (*envelope, error) {
	ctx, span := c.tracer.Start(ctx, "backend."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			attribute.String("http.request.method", method),
			attribute.String("request_id", requestcontext.RequestID(ctx)),
		)...),
	)
	defer span.End()

	if !c.breaker.Allow() {
		err := &ports.BackendError{Endpoint: endpoint, Message: "circuit open", Err: sentinel.ErrUnavailable}
		span.RecordError(err)
		span.SetStatus(codes.Error, "circuit open")
		return nil, err
	}

	start := time.Now()
	env, err := c.roundTrip(ctx, endpoint, method, path, query, contentType, body, span)
	c.metrics.ObserveBackendCall(endpoint, start, err == nil)
	c.record(ctx, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, endpoint+" failed")
		c.logger.WarnContext(ctx, "backend call failed",
			"endpoint", endpoint,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}
	c.logger.DebugContext(ctx, "backend call",
		"endpoint", endpoint,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, contentType string, body io.Reader, span trace.Span) (*envelope, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &ports.BackendError{Endpoint: endpoint, Message: err.Error(), Err: sentinel.ErrUnavailable}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, &ports.BackendError{Endpoint: endpoint, Message: "no backend token", Err: fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ports.BackendError{Endpoint: endpoint, Err: ctxErr}
		}
		return nil, &ports.BackendError{Endpoint: endpoint, Message: err.Error(), Err: sentinel.ErrUnavailable}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ports.BackendError{Endpoint: endpoint, Status: resp.StatusCode, Message: err.Error(), Err: sentinel.ErrUnavailable}
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ports.BackendError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Message, Err: sentinel.ErrNotFound}
	case resp.StatusCode >= 500:
		return nil, &ports.BackendError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Message, Err: sentinel.ErrUnavailable}
	case resp.StatusCode >= 400:
		msg := env.Message
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw[:min(len(raw), maxErrorMessage)]))
		}
		return nil, &ports.BackendError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg, Err: sentinel.ErrRejected}
	case decodeErr != nil:
		return nil, c.malformed(endpoint, decodeErr)
	case !env.Success:
		return nil, &ports.BackendError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Message, Err: sentinel.ErrRejected}
	}
	return &env, nil
}

// record feeds the breaker. Only outages count as failures; a rejection means
// the backend is up. Calls cancelled by the caller are not counted.
func (c *Client) record(ctx context.Context, err error) {
	var change circuit.StateChange
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err == nil, errors.Is(err, sentinel.ErrRejected), errors.Is(err, sentinel.ErrNotFound):
		_, change = c.breaker.RecordSuccess()
	default:
		_, change = c.breaker.RecordFailure()
	}
	if change.Opened {
		c.metrics.SetCircuitOpen(c.breaker.Name(), true)
		c.logger.WarnContext(ctx, "backend circuit opened", "breaker", c.breaker.Name())
	}
	if change.Closed {
		c.metrics.SetCircuitOpen(c.breaker.Name(), false)
		c.logger.InfoContext(ctx, "backend circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Client) malformed(endpoint string, err error) error {
	return &ports.BackendError{Endpoint: endpoint, Message: "malformed response", Err: fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)}
}

// decodeCatalog reads document-type rows loosely: ids and flags may arrive as
// strings, numbers or booleans.
func decodeCatalog(data json.RawMessage) ([]ports.DocumentTypeEntry, error) {
	var rows []map[string]any
	if err := decodeData(data, &rows); err != nil {
		return nil, err
	}
	entries := make([]ports.DocumentTypeEntry, 0, len(rows))
	for i, row := range rows {
		var entry ports.DocumentTypeEntry
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &entry,
			WeaklyTypedInput: true,
			TagName:          "json",
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, fmt.Errorf("document type %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
