package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/v1", append([]Option{WithTokenSource(StaticToken("secret"))}, opts...)...)
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "data": data, "message": message})
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestSaveDraft(t *testing.T) {
	t.Run("first save sends a null business id and reads the assigned one", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/onboarding/save-draft", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Nil(t, body["business_id"])
			assert.Equal(t, "business_details", body["step"])
			writeEnvelope(w, http.StatusOK, true, map[string]any{"business_id": 1017}, "saved")
		})

		res, err := c.SaveDraft(context.Background(), ports.SaveDraftRequest{
			Step: "business_details",
			Data: map[string]any{"business_name": "Acme"},
		})
		require.NoError(t, err)
		assert.Equal(t, id.BusinessID("1017"), res.BusinessID)
		assert.Equal(t, "saved", res.Message)
	})

	t.Run("success=false is a rejection carrying the backend message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusOK, false, nil, "email already registered")
		})

		_, err := c.SaveDraft(context.Background(), ports.SaveDraftRequest{BusinessID: "1017", Step: "business_details"})
		require.ErrorIs(t, err, sentinel.ErrRejected)
		var be *ports.BackendError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "email already registered", be.Message)
		assert.Equal(t, EndpointSaveDraft, be.Endpoint)
	})

	t.Run("unprocessable entity is a rejection", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusUnprocessableEntity, false, nil, "bad pan number")
		})
		_, err := c.SaveDraft(context.Background(), ports.SaveDraftRequest{Step: "business_details"})
		assert.ErrorIs(t, err, sentinel.ErrRejected)
	})
}

func TestGetBusiness(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/onboarding/business/1017":
			writeEnvelope(w, http.StatusOK, true, map[string]any{"business_name": "Acme", "city": "Pune"}, "")
		default:
			writeEnvelope(w, http.StatusNotFound, false, nil, "no such business")
		}
	})

	record, err := c.GetBusiness(context.Background(), "1017")
	require.NoError(t, err)
	assert.Equal(t, "Acme", record["business_name"])

	_, err = c.GetBusiness(context.Background(), "404")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDocumentTypes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/onboarding/kyc-doc-types", r.URL.Path)
		assert.Equal(t, "1017", r.URL.Query().Get("business_id"))
		writeEnvelope(w, http.StatusOK, true, []map[string]any{
			{"id": "pan", "doc_name": "PAN card", "requirement_level": "required", "expires_type": "never"},
		}, "")
	})

	entries, err := c.DocumentTypes(context.Background(), "1017")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ports.DocumentTypeEntry{ID: "pan", DocName: "PAN card", RequirementLevel: "required", ExpiresType: "never"}, entries[0])
}

func TestDocumentTypesAcceptsNumericFields(t *testing.T) {
	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []map[string]any{
			{"id": 7, "doc_name": "PAN card", "requirement_level": true, "expires_type": "never"},
			{"id": 12, "doc_name": "Trade licence", "requirement_level": 0, "expires_type": 1},
		}, "")
	}, WithBreaker(breaker))

	entries, err := c.DocumentTypes(context.Background(), "1017")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ports.DocumentTypeEntry{ID: "7", DocName: "PAN card", RequirementLevel: "1", ExpiresType: "never"}, entries[0])
	assert.Equal(t, ports.DocumentTypeEntry{ID: "12", DocName: "Trade licence", RequirementLevel: "0", ExpiresType: "1"}, entries[1])
	assert.False(t, c.BreakerOpen())
}

func TestUploadDocumentsSendsIndexedMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "1017", r.FormValue("business_id"))
		assert.Equal(t, "pan", r.FormValue("docs[0][doc_id]"))
		assert.Empty(t, r.FormValue("docs[0][expires_on]"))
		assert.Equal(t, "incorporation", r.FormValue("docs[1][doc_id]"))
		assert.Equal(t, "2027-01-31", r.FormValue("docs[1][expires_on]"))

		_, hasFirst := r.MultipartForm.File["docs[0][file]"]
		assert.False(t, hasFirst)
		file, header, err := r.FormFile("docs[1][file]")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "coi.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.7", string(content))

		writeEnvelope(w, http.StatusOK, true, nil, "uploaded")
	})

	ack, err := c.UploadDocuments(context.Background(), ports.UploadRequest{
		BusinessID: "1017",
		Docs: []ports.UploadDocument{
			{DocID: "pan"},
			{DocID: "incorporation", ExpiresOn: "2027-01-31", File: &models.LocalFile{
				Name: "coi.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.7"),
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "uploaded", ack.Message)
}

func TestCompleteOnboarding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1017", body["business_id"])
		writeEnvelope(w, http.StatusOK, true, nil, "onboarding complete")
	})

	ack, err := c.CompleteOnboarding(context.Background(), "1017")
	require.NoError(t, err)
	assert.Equal(t, "onboarding complete", ack.Message)
}

func TestMalformedResponseIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})
	_, err := c.GetBusiness(context.Background(), "1017")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestCircuitOpensAfterOutagesAndFailsFast(t *testing.T) {
	var calls atomic.Int32
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	breaker := circuit.New("test-backend",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadGateway, false, nil, "upstream down")
	}, WithBreaker(breaker), WithMetrics(m))

	for i := 0; i < 2; i++ {
		_, err := c.GetBusiness(context.Background(), "1017")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, c.BreakerOpen())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackendCircuitState.WithLabelValues("test-backend")))

	_, err := c.GetBusiness(context.Background(), "1017")
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the server")
}

func TestRejectionsDoNotOpenCircuit(t *testing.T) {
	breaker := circuit.New("test-backend", circuit.WithFailureThreshold(1))
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "invalid")
	}, WithBreaker(breaker))

	for i := 0; i < 3; i++ {
		_, err := c.SaveDraft(context.Background(), ports.SaveDraftRequest{Step: "business_details"})
		require.ErrorIs(t, err, sentinel.ErrRejected)
	}
	assert.False(t, c.BreakerOpen())
}

func TestTimeoutAppliesRegardlessOfOptionOrder(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	before, err := New("https://backend.test/v1", WithTimeout(2*time.Second), WithHTTPClient(shared))
	require.NoError(t, err)
	after, err := New("https://backend.test/v1", WithHTTPClient(shared), WithTimeout(3*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, before.http.Timeout)
	assert.Equal(t, 3*time.Second, after.http.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout)

	plain, err := New("https://backend.test/v1", WithHTTPClient(shared))
	require.NoError(t, err)
	assert.Same(t, shared, plain.http)
}
