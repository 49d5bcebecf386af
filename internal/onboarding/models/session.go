package models

import (
	"time"

	id "onboard/pkg/domain"
)

// CompletionState is the one-way state of the completion gate.
type CompletionState string

const (
	CompletionPending   CompletionState = "pending"
	CompletionCompleted CompletionState = "completed"
)

// Snapshot is the persisted form of a wizard session.
type Snapshot struct {
	SessionID  id.SessionID    `json:"sessionId"`
	OperatorID string          `json:"operatorId,omitempty"`
	State      WizardState     `json:"state"`
	ActiveStep StepKey         `json:"activeStep"`
	Completion CompletionState `json:"completion"`
	OpenedAt   time.Time       `json:"openedAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
