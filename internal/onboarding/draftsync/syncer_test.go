package draftsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/ports/mocks"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	audit "onboard/pkg/platform/audit"
	"onboard/pkg/platform/audit/publisher"
	"onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/platform/sentinel"
)

type SyncerSuite struct {
	suite.Suite
	ctx         context.Context
	backend     *mocks.MockDraftBackend
	store       *wizard.Store
	auditStore  *memory.InMemoryStore
	reconcileMu sync.Mutex
	reconcileEr []error
	syncer      *Syncer
}

func TestSyncerSuite(t *testing.T) {
	suite.Run(t, new(SyncerSuite))
}

func (s *SyncerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.backend = mocks.NewMockDraftBackend(ctrl)
	s.store = wizard.NewStore()
	s.auditStore = memory.NewInMemoryStore()
	s.reconcileEr = nil
	s.syncer = New(s.backend, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
		WithAuditor(publisher.NewPublisher(s.auditStore)),
		WithSessionID("session-1"),
		WithReconcileErrorHandler(func(err error) {
			s.reconcileMu.Lock()
			defer s.reconcileMu.Unlock()
			s.reconcileEr = append(s.reconcileEr, err)
		}),
	)
}

func (s *SyncerSuite) reconcileErrors() []error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()
	return append([]error(nil), s.reconcileEr...)
}

func (s *SyncerSuite) TestFirstSaveAssignsBusinessIDAndReconciles() {
	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.SaveDraftRequest) (*ports.SaveDraftResult, error) {
			s.True(req.BusinessID.IsZero(), "first save creates the record")
			s.Equal("business_details", req.Step)
			s.Equal("Acme", req.Data["business_name"])
			return &ports.SaveDraftResult{BusinessID: "1017"}, nil
		})
	s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).Return(map[string]any{
		"business_id":   "1017",
		"business_name": "Acme",
		"business_type": "llc",
		"website":       "https://acme.example",
	}, nil)

	result, err := s.syncer.Submit(s.ctx, Submission{
		Step: models.StepBusinessDetails,
		Data: models.BusinessDetails{BusinessName: "Acme", BusinessType: "llc"},
	})
	s.Require().NoError(err)
	s.True(result.Assigned)
	s.True(result.Refetching)
	s.Equal(id.BusinessID("1017"), result.BusinessID)
	s.True(result.State.StepStatus.IsDone(models.StepBusinessDetails))

	s.syncer.Wait()
	state := s.store.State()
	s.Equal("https://acme.example", state.FormData.BusinessDetails.Website)
	s.Empty(s.reconcileErrors())

	events, err := s.auditStore.ListByBusiness(s.ctx, "1017")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventBusinessIDAssigned), events[0].Action)
	s.Equal(string(audit.EventStepSaved), events[1].Action)
}

func (s *SyncerSuite) TestLaterSavesTargetExistingBusiness() {
	s.store.Dispatch(wizard.SetBusinessID{ID: "1017"})

	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.SaveDraftRequest) (*ports.SaveDraftResult, error) {
			s.Equal(id.BusinessID("1017"), req.BusinessID)
			return &ports.SaveDraftResult{BusinessID: "2048"}, nil
		})
	s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).Return(map[string]any{}, nil)

	result, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepFinancialInfo, Data: models.FinancialInfo{BankName: "First"}})
	s.Require().NoError(err)
	s.False(result.Assigned)
	s.syncer.Wait()
	s.Equal(id.BusinessID("1017"), s.store.State().BusinessID, "business id never changes once set")
}

func (s *SyncerSuite) TestSaveFailureLeavesStateUntouched() {
	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).
		Return(nil, &ports.BackendError{Endpoint: "save-draft", Err: sentinel.ErrUnavailable})

	before := s.store.State()
	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: models.BusinessDetails{BusinessName: "Acme"}})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	after := s.store.State()
	s.Equal(before, after)
	s.False(after.StepStatus.IsDone(models.StepBusinessDetails))
	s.True(after.BusinessID.IsZero())
}

func (s *SyncerSuite) TestRejectedSaveSurfacesBackendMessage() {
	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).
		Return(nil, &ports.BackendError{Endpoint: "save-draft", Status: 422, Message: "tax id already registered", Err: sentinel.ErrRejected})

	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: map[string]any{"taxId": "T"}})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal("tax id already registered", dErrors.MessageOf(err))
}

func (s *SyncerSuite) TestUnknownStepIsRejectedLocally() {
	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepReview})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *SyncerSuite) TestBackgroundRefetchFailureIsReported() {
	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).Return(&ports.SaveDraftResult{BusinessID: "1017"}, nil)
	s.backend.EXPECT().GetBusiness(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: models.BusinessDetails{BusinessName: "Acme"}})
	s.Require().NoError(err)
	s.syncer.Wait()

	errs := s.reconcileErrors()
	s.Require().Len(errs, 1)
	s.True(dErrors.HasCode(errs[0], dErrors.CodeUnavailable))
	s.Equal("Acme", s.store.State().FormData.BusinessDetails.BusinessName, "failed refetch keeps prior data")
}

func (s *SyncerSuite) TestOutOfOrderRefetchIsDiscarded() {
	s.store.Dispatch(wizard.SetBusinessID{ID: "1017"})

	release := make(chan struct{})
	started := make(chan struct{})
	gomock.InOrder(
		s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).
			DoAndReturn(func(context.Context, id.BusinessID) (map[string]any, error) {
				close(started)
				<-release
				return map[string]any{"business_name": "Old Name"}, nil
			}),
		s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).
			Return(map[string]any{"business_name": "New Name"}, nil),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.syncer.Reconcile(s.ctx, "1017")
		s.NoError(err)
	}()
	<-started

	_, err := s.syncer.Reconcile(s.ctx, "1017")
	s.Require().NoError(err)
	close(release)
	<-done

	s.Equal("New Name", s.store.State().FormData.BusinessDetails.BusinessName)
}

func (s *SyncerSuite) TestRefetchIssuedBeforeSaveIsDiscarded() {
	s.store.Dispatch(wizard.SetBusinessID{ID: "1017"})

	release := make(chan struct{})
	started := make(chan struct{})
	s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).
		DoAndReturn(func(context.Context, id.BusinessID) (map[string]any, error) {
			close(started)
			<-release
			return map[string]any{"business_name": "Stale"}, nil
		})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.syncer.Reconcile(s.ctx, "1017")
	}()
	<-started

	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).Return(&ports.SaveDraftResult{}, nil)
	s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).Return(map[string]any{"business_name": "Fresh"}, nil)
	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: map[string]any{"businessName": "Fresh"}})
	s.Require().NoError(err)
	s.syncer.Wait()

	close(release)
	<-done
	s.Equal("Fresh", s.store.State().FormData.BusinessDetails.BusinessName)
}

func (s *SyncerSuite) TestInvalidateDropsInFlightRefetch() {
	s.store.Dispatch(wizard.SetBusinessID{ID: "1017"})

	release := make(chan struct{})
	started := make(chan struct{})
	s.backend.EXPECT().GetBusiness(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, id.BusinessID) (map[string]any, error) {
			close(started)
			<-release
			return map[string]any{"business_name": "Leaked"}, nil
		})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.syncer.Reconcile(s.ctx, "1017")
	}()
	<-started
	s.syncer.Invalidate()
	s.store.Dispatch(wizard.ResetForm{})
	close(release)
	<-done

	state := s.store.State()
	s.True(state.BusinessID.IsZero())
	s.Empty(state.FormData.BusinessDetails.BusinessName)
}

func TestReconcile_RequiresBusinessID(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := New(mocks.NewMockDraftBackend(ctrl), wizard.NewStore())

	_, err := syncer.Reconcile(context.Background(), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *SyncerSuite) TestTypeChangeHoldsDocumentsUntilCatalogReconcile() {
	docs := []any{map[string]any{"doc_id": "pan", "id": "r1"}}
	s.backend.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).Return(&ports.SaveDraftResult{BusinessID: "1017"}, nil).Times(2)
	s.backend.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("1017")).
		DoAndReturn(func(context.Context, id.BusinessID) (map[string]any, error) {
			return map[string]any{"kyc_documents": docs}, nil
		}).AnyTimes()

	_, err := s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: map[string]any{"businessType": "llc"}})
	s.Require().NoError(err)
	s.syncer.Wait()
	s.Len(s.store.State().FormData.KYCDocuments.Docs, 1)

	docs = append(docs, map[string]any{"doc_id": "coi", "id": "r2"})
	_, err = s.syncer.Submit(s.ctx, Submission{Step: models.StepBusinessDetails, Data: map[string]any{"businessType": "partnership"}})
	s.Require().NoError(err)
	s.syncer.Wait()
	s.Len(s.store.State().FormData.KYCDocuments.Docs, 1, "refetch after a type change leaves documents out")

	_, err = s.syncer.Reconcile(s.ctx, "1017")
	s.Require().NoError(err)
	s.Len(s.store.State().FormData.KYCDocuments.Docs, 1)

	_, err = s.syncer.ReconcileDocuments(s.ctx, "1017")
	s.Require().NoError(err)
	s.Len(s.store.State().FormData.KYCDocuments.Docs, 2)

	_, err = s.syncer.Reconcile(s.ctx, "1017")
	s.Require().NoError(err)
	s.Len(s.store.State().FormData.KYCDocuments.Docs, 2)
}

func TestTypeChanged(t *testing.T) {
	assert.False(t, typeChanged("", "llc"))
	assert.False(t, typeChanged("LLC", " llc "))
	assert.True(t, typeChanged("llc", "partnership"))
	assert.True(t, typeChanged("llc", ""))
}
