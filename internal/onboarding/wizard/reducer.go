package wizard

import (
	"strconv"
	"strings"

	"onboard/internal/onboarding/models"
)

// Reduce applies one action and returns the next state. It never mutates its
// input and never panics: malformed payloads fall back to empty records/lists.
func Reduce(state models.WizardState, action Action) models.WizardState {
	next := state.Clone()
	if next.StepStatus == nil {
		next.StepStatus = models.StepStatusMap{}
	}
	normalizeShape(&next.FormData)

	switch a := action.(type) {
	case SetBusinessID:
		if next.BusinessID.IsZero() && !a.ID.IsZero() {
			next.BusinessID = a.ID
		}
	case *SetBusinessID:
		if a != nil {
			return Reduce(state, *a)
		}
	case SetFormData:
		for key, value := range a.Partial {
			applyFormData(&next.FormData, key, value)
		}
	case *SetFormData:
		if a != nil {
			return Reduce(state, *a)
		}
	case SetStepStatus:
		for key, status := range a.Partial {
			if !key.IsStepKey() {
				continue
			}
			next.StepStatus[key] = status
		}
	case *SetStepStatus:
		if a != nil {
			return Reduce(state, *a)
		}
	case ResetForm, *ResetForm:
		return models.NewWizardState()
	}
	return next
}

// ReduceAll folds actions left to right.
func ReduceAll(state models.WizardState, actions ...Action) models.WizardState {
	for _, a := range actions {
		state = Reduce(state, a)
	}
	return state
}

func applyFormData(fd *models.FormData, key models.StepKey, value any) {
	strategy, ok := StrategyFor(key)
	if !ok {
		return
	}
	switch strategy {
	case StrategyReplaceList:
		switch key {
		case models.StepDirectors:
			fd.Directors = toDirectors(value)
		case models.StepAdmins:
			fd.Admins = toAdmins(value)
		}
	case StrategyNormalizeList:
		applyDocuments(fd, value)
	case StrategyReplace:
		meta := models.Meta{}
		if fields, ok := fieldMap(value); ok {
			for k, v := range fields {
				meta[k] = v
			}
		}
		fd.Meta = meta
	case StrategyShallowMerge:
		fields, ok := fieldMap(value)
		if !ok {
			return
		}
		switch key {
		case models.StepBusinessDetails:
			decodeOnto(&fd.BusinessDetails, fields)
		case models.StepBusinessAddress:
			decodeOnto(&fd.BusinessAddress, fields)
		case models.StepFinancialInfo:
			decodeOnto(&fd.FinancialInfo, fields)
		case models.StepDeclaration:
			decodeOnto(&fd.Declaration, fields)
		}
	}
}

// applyDocuments accepts {docs: [...]}, the bare list, or an index-keyed map.
// A record without a docs field leaves the list unchanged.
func applyDocuments(fd *models.FormData, value any) {
	if value == nil {
		fd.KYCDocuments.Docs = []models.DocumentRecord{}
		return
	}
	if fields, ok := fieldMap(value); ok {
		if docs, present := fields["docs"]; present {
			fd.KYCDocuments.Docs = toDocuments(docs)
			return
		}
		if isIndexKeyed(fields) {
			fd.KYCDocuments.Docs = toDocuments(fields)
		}
		return
	}
	fd.KYCDocuments.Docs = toDocuments(value)
}

func isIndexKeyed(fields map[string]any) bool {
	if len(fields) == 0 {
		return false
	}
	for k := range fields {
		if _, err := strconv.Atoi(strings.TrimSpace(k)); err != nil {
			return false
		}
	}
	return true
}

func normalizeShape(fd *models.FormData) {
	if fd.Directors == nil {
		fd.Directors = []models.Director{}
	}
	if fd.Admins == nil {
		fd.Admins = []models.Admin{}
	}
	if fd.KYCDocuments.Docs == nil {
		fd.KYCDocuments.Docs = []models.DocumentRecord{}
	}
	if fd.Meta == nil {
		fd.Meta = models.Meta{}
	}
}
