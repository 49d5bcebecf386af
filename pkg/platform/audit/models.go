package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events for retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as
	// finalization of an onboarding record or a KYC document submission.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine wizard activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from wizard services to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory     `json:"category"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     string            `json:"action"`
	SessionID  string            `json:"session_id,omitempty"`
	BusinessID string            `json:"business_id,omitempty"`
	Step       string            `json:"step,omitempty"`
	OperatorID string            `json:"operator_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	EventSessionOpened          AuditEvent = "session_opened"
	EventSessionClosed          AuditEvent = "session_closed"
	EventBusinessIDAssigned     AuditEvent = "business_id_assigned"
	EventStepSaved              AuditEvent = "step_saved"
	EventKYCDocumentsSubmitted  AuditEvent = "kyc_documents_submitted"
	EventKYCSubmissionSkipped   AuditEvent = "kyc_submission_skipped"
	EventOnboardingCompleted    AuditEvent = "onboarding_completed"
	EventOnboardingFinalizeFail AuditEvent = "onboarding_finalize_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventBusinessIDAssigned:     CategoryCompliance,
	EventKYCDocumentsSubmitted:  CategoryCompliance,
	EventOnboardingCompleted:    CategoryCompliance,
	EventOnboardingFinalizeFail: CategoryCompliance,
}

// Category returns the category of an audit event; unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists events. Sinks that cannot be queried return an empty list.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByBusiness(ctx context.Context, businessID string) ([]Event, error)
}
