package models

// StepKey names one wizard step and, for data-collecting steps, its slice of FormData.
type StepKey string

const (
	StepBusinessDetails StepKey = "businessDetails"
	StepBusinessAddress StepKey = "businessAddress"
	StepDirectors       StepKey = "directors"
	StepFinancialInfo   StepKey = "financialInfo"
	StepKYCDocuments    StepKey = "kycDocuments"
	StepAdmins          StepKey = "admins"
	StepDeclaration     StepKey = "declaration"
	StepMeta            StepKey = "meta"

	// StepReview is the terminal completion step. It owns no form data.
	StepReview StepKey = "review"
)

// FormKeys lists every FormData slice in declaration order.
var FormKeys = []StepKey{
	StepBusinessDetails,
	StepBusinessAddress,
	StepDirectors,
	StepFinancialInfo,
	StepKYCDocuments,
	StepAdmins,
	StepDeclaration,
	StepMeta,
}

// IsFormKey reports whether k addresses a FormData slice.
func (k StepKey) IsFormKey() bool {
	for _, fk := range FormKeys {
		if fk == k {
			return true
		}
	}
	return false
}

// IsStepKey reports whether k can carry a completion flag.
func (k StepKey) IsStepKey() bool {
	return k == StepReview || (k.IsFormKey() && k != StepMeta)
}

func (k StepKey) String() string {
	return string(k)
}

// ParseStepKey accepts only keys that can be submitted or navigated to.
func ParseStepKey(s string) (StepKey, bool) {
	k := StepKey(s)
	if !k.IsStepKey() {
		return "", false
	}
	return k, true
}

// StepStatus is the per-step completion flag.
type StepStatus struct {
	IsDone bool `json:"isDone"`
}

// StepStatusMap maps step keys to completion flags. Absent keys are not done.
type StepStatusMap map[StepKey]StepStatus

func (m StepStatusMap) IsDone(k StepKey) bool {
	return m[k].IsDone
}

func (m StepStatusMap) Clone() StepStatusMap {
	out := make(StepStatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Done is a convenience constructor for SET_STEP_STATUS payloads.
func Done(keys ...StepKey) StepStatusMap {
	out := make(StepStatusMap, len(keys))
	for _, k := range keys {
		out[k] = StepStatus{IsDone: true}
	}
	return out
}
