package completion

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/ports/mocks"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

type GateSuite struct {
	suite.Suite
	ctx       context.Context
	backend   *mocks.MockCompletionBackend
	store     *wizard.Store
	metrics   *metrics.Metrics
	scheduled []time.Duration
	callbacks []func()
	succeeded []id.BusinessID
	gate      *Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.backend = mocks.NewMockCompletionBackend(ctrl)
	s.store = wizard.NewStore()
	s.store.Dispatch(wizard.SetBusinessID{ID: "1017"})
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.scheduled, s.callbacks, s.succeeded = nil, nil, nil

	s.gate = New(s.backend, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithDisplayDelay(2*time.Second),
		WithOnSuccess(func(bid id.BusinessID) { s.succeeded = append(s.succeeded, bid) }),
		WithScheduler(func(d time.Duration, fn func()) {
			s.scheduled = append(s.scheduled, d)
			s.callbacks = append(s.callbacks, fn)
		}),
	)
}

func (s *GateSuite) TestFinalizeTransitionsOnce() {
	s.backend.EXPECT().CompleteOnboarding(gomock.Any(), id.BusinessID("1017")).Return(&ports.Ack{Message: "done"}, nil)

	outcome, err := s.gate.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Equal(OutcomeCompleted, outcome)
	s.Equal(models.CompletionCompleted, s.gate.State())
	s.True(s.store.State().StepStatus.IsDone(models.StepReview))

	s.Require().Len(s.scheduled, 1)
	s.Equal(2*time.Second, s.scheduled[0])
	s.Empty(s.succeeded, "callback waits for the display delay")
	s.callbacks[0]()
	s.Equal([]id.BusinessID{"1017"}, s.succeeded)

	outcome, err = s.gate.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Equal(OutcomeIgnored, outcome)
	s.Len(s.scheduled, 1)
}

func (s *GateSuite) TestConcurrentFinalizeCallsBackendOnce() {
	release := make(chan struct{})
	s.backend.EXPECT().CompleteOnboarding(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, id.BusinessID) (*ports.Ack, error) {
			<-release
			return &ports.Ack{}, nil
		}).Times(1)

	first := make(chan Outcome, 1)
	go func() {
		outcome, _ := s.gate.Finalize(s.ctx)
		first <- outcome
	}()
	s.Eventually(s.gate.InFlight, time.Second, 5*time.Millisecond)

	outcome, err := s.gate.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Equal(OutcomeIgnored, outcome)

	close(release)
	s.Equal(OutcomeCompleted, <-first)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FinalizeOutcomes.WithLabelValues(metrics.OutcomeIgnored)))
}

func (s *GateSuite) TestManyRapidFinalizeCalls() {
	var calls sync.WaitGroup
	release := make(chan struct{})
	s.backend.EXPECT().CompleteOnboarding(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, id.BusinessID) (*ports.Ack, error) {
			<-release
			return &ports.Ack{}, nil
		}).Times(1)

	outcomes := make(chan Outcome, 10)
	for range 10 {
		calls.Add(1)
		go func() {
			defer calls.Done()
			outcome, err := s.gate.Finalize(s.ctx)
			s.NoError(err)
			outcomes <- outcome
		}()
	}
	s.Eventually(s.gate.InFlight, time.Second, 5*time.Millisecond)
	close(release)
	calls.Wait()
	close(outcomes)

	completed := 0
	for o := range outcomes {
		if o == OutcomeCompleted {
			completed++
		}
	}
	s.Equal(1, completed)
}

func (s *GateSuite) TestFailureStaysPendingAndAllowsRetry() {
	gomock.InOrder(
		s.backend.EXPECT().CompleteOnboarding(gomock.Any(), gomock.Any()).
			Return(nil, &ports.BackendError{Endpoint: "complete-onboarding", Message: "declaration missing", Err: sentinel.ErrRejected}),
		s.backend.EXPECT().CompleteOnboarding(gomock.Any(), gomock.Any()).Return(&ports.Ack{}, nil),
	)

	_, err := s.gate.Finalize(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal("declaration missing", dErrors.MessageOf(err))
	s.Equal(models.CompletionPending, s.gate.State())
	s.False(s.store.State().StepStatus.IsDone(models.StepReview))
	s.Empty(s.scheduled)

	outcome, err := s.gate.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Equal(OutcomeCompleted, outcome)
}

func (s *GateSuite) TestFinalizeRequiresBusinessID() {
	s.store.Dispatch(wizard.ResetForm{})
	_, err := s.gate.Finalize(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.False(s.gate.InFlight())
}

func (s *GateSuite) TestRestoredCompletedGateIgnoresFinalize() {
	gate := New(s.backend, s.store, WithInitialState(models.CompletionCompleted))
	outcome, err := gate.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Equal(OutcomeIgnored, outcome)
}
