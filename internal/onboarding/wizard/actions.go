package wizard

import (
	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
)

// Action is the closed set of state transitions understood by Reduce.
type Action interface {
	actionName() string
}

// SetBusinessID assigns the backend identifier. It only takes effect while the
// state has no identifier.
type SetBusinessID struct {
	ID id.BusinessID
}

// SetFormData merges partial step records into FormData. Values are either
// loose maps (map[string]any, index-keyed maps for list steps) or typed records.
type SetFormData struct {
	Partial map[models.StepKey]any
}

// SetStepStatus shallow-merges completion flags.
type SetStepStatus struct {
	Partial models.StepStatusMap
}

// ResetForm restores the initial empty state, including the business id.
type ResetForm struct{}

func (SetBusinessID) actionName() string { return "SET_BUSINESS_ID" }
func (SetFormData) actionName() string   { return "SET_FORM_DATA" }
func (SetStepStatus) actionName() string { return "SET_STEP_STATUS" }
func (ResetForm) actionName() string     { return "RESET_FORM" }

// Name returns the wire name of an action, for logs.
func Name(a Action) string {
	if a == nil {
		return "NIL"
	}
	return a.actionName()
}

// FormPatch builds a SetFormData for a single step.
func FormPatch(key models.StepKey, value any) SetFormData {
	return SetFormData{Partial: map[models.StepKey]any{key: value}}
}

// StatusPatch builds a SetStepStatus for a single step.
func StatusPatch(key models.StepKey, done bool) SetStepStatus {
	return SetStepStatus{Partial: models.StepStatusMap{key: {IsDone: done}}}
}
