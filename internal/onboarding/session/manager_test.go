package session

import (
	"context"

	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/sentinel"
)

func (s *SessionSuite) TestResumeStartsAtFirstUnfinishedStep() {
	s.draft.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("88")).Return(map[string]any{
		"business_id": 88,
		"business_details": map[string]any{
			"business_name": "Acme Traders",
			"business_type": "llc",
		},
		"city":            "Pune",
		"completed_steps": []any{"business_details", "business_address"},
	}, nil)

	sess, err := s.manager.Resume(s.ctx, "88")
	s.Require().NoError(err)

	view := sess.View()
	s.Equal(id.BusinessID("88"), view.BusinessID)
	s.Equal(models.StepDirectors, view.ActiveStep)
	s.Equal("Acme Traders", view.FormData.BusinessDetails.BusinessName)
	s.Equal("Pune", view.FormData.BusinessAddress.City)
	s.True(view.StepStatus.IsDone(models.StepBusinessAddress))
	s.Equal(models.CompletionPending, view.Completion)
	s.Equal(1, s.manager.Len())
}

func (s *SessionSuite) TestResumeCompletedRecord() {
	s.draft.EXPECT().GetBusiness(gomock.Any(), id.BusinessID("88")).Return(map[string]any{
		"is_onboarding_complete": true,
	}, nil)

	sess, err := s.manager.Resume(s.ctx, "88")
	s.Require().NoError(err)
	s.Equal(models.CompletionCompleted, sess.View().Completion)
}

func (s *SessionSuite) TestResumeFailureOpensNothing() {
	s.draft.EXPECT().GetBusiness(gomock.Any(), gomock.Any()).
		Return(nil, &ports.BackendError{Endpoint: "get-business", Status: 404, Err: sentinel.ErrNotFound})

	_, err := s.manager.Resume(s.ctx, "404")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(0, s.manager.Len())

	_, err = s.manager.Resume(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *SessionSuite) TestGetRestoresFromSnapshot() {
	sess := s.open()
	s.draft.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).Return(&ports.SaveDraftResult{BusinessID: "1017"}, nil)
	s.expectRefetch()
	_, err := sess.Submit(s.ctx, models.StepBusinessDetails, validDetails("llc"))
	s.Require().NoError(err)
	sess.syncer.Wait()

	// a fresh manager over the same store stands in for a restart
	restarted := NewManager(backend{s.draft, s.kyc, s.completion}, WithSnapshotStore(s.snapshots))
	restored, err := restarted.Get(s.ctx, sess.ID())
	s.Require().NoError(err)

	view := restored.View()
	s.Equal(id.BusinessID("1017"), view.BusinessID)
	s.Equal(models.StepBusinessAddress, view.ActiveStep)
	s.Equal("Acme Traders", view.FormData.BusinessDetails.BusinessName)

	again, err := restarted.Get(s.ctx, sess.ID())
	s.Require().NoError(err)
	s.Same(restored, again)
}

func (s *SessionSuite) TestListIncludesPersistedSessions() {
	first := s.open()
	second := s.open()
	s.Require().NoError(s.manager.Close(s.ctx, first.ID()))

	ids, err := s.manager.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]id.SessionID{second.ID()}, ids)

	restarted := NewManager(backend{s.draft, s.kyc, s.completion}, WithSnapshotStore(s.snapshots))
	ids, err = restarted.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]id.SessionID{second.ID()}, ids)

	memoryOnly := NewManager(backend{s.draft, s.kyc, s.completion})
	opened, err := memoryOnly.Open(s.ctx)
	s.Require().NoError(err)
	ids, err = memoryOnly.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]id.SessionID{opened.ID()}, ids)
}

func (s *SessionSuite) TestGetUnknownSession() {
	_, err := s.manager.Get(s.ctx, id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SessionSuite) TestOpenAndCloseAreAudited() {
	auditor := newRecordingAuditor()
	manager := NewManager(backend{s.draft, s.kyc, s.completion}, WithAuditor(auditor))

	ctx := context.Background()
	sess, err := manager.Open(ctx)
	s.Require().NoError(err)
	s.Require().NoError(manager.Close(ctx, sess.ID()))

	s.Equal([]string{string(audit.EventSessionOpened), string(audit.EventSessionClosed)}, auditor.actions())
	s.True(dErrors.HasCode(manager.Close(ctx, sess.ID()), dErrors.CodeNotFound))
}
