// Package steps holds the static step catalog and the sequencing rules that
// derive the visible step list, navigation reachability and the business-type
// side effects.
package steps

import (
	"strings"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/wizard"
)

// Definition is one static catalog entry.
type Definition struct {
	Key         models.StepKey `json:"key"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	// Component names the console component that renders the step.
	Component    string                       `json:"component"`
	IsApplicable func(models.FormData) bool `json:"-"`
}

func always(models.FormData) bool { return true }

// DefaultNoDirectorTypes are the sole-proprietorship-like business types that
// have no board of directors.
var DefaultNoDirectorTypes = []string{
	"sole_proprietorship",
	"sole_proprietor",
	"individual",
	"freelancer",
}

// Catalog is the ordered step list. It is built once and never mutated.
type Catalog struct {
	defs            []Definition
	noDirectorTypes map[string]struct{}
}

// NewCatalog builds the catalog. An empty noDirectorTypes uses DefaultNoDirectorTypes.
func NewCatalog(noDirectorTypes []string) *Catalog {
	if len(noDirectorTypes) == 0 {
		noDirectorTypes = DefaultNoDirectorTypes
	}
	c := &Catalog{noDirectorTypes: make(map[string]struct{}, len(noDirectorTypes))}
	for _, t := range noDirectorTypes {
		if t = normalizeType(t); t != "" {
			c.noDirectorTypes[t] = struct{}{}
		}
	}
	c.defs = []Definition{
		{Key: models.StepBusinessDetails, Label: "Business details", Description: "Legal name, type and contact details", Component: "BusinessDetailsStep", IsApplicable: always},
		{Key: models.StepBusinessAddress, Label: "Business address", Description: "Registered office and operating address", Component: "BusinessAddressStep", IsApplicable: always},
		{Key: models.StepDirectors, Label: "Directors", Description: "Directors and partners of the business", Component: "DirectorsStep", IsApplicable: func(fd models.FormData) bool {
			return !c.IsNoDirectorType(fd.BusinessType())
		}},
		{Key: models.StepFinancialInfo, Label: "Financial information", Description: "Settlement bank account and turnover", Component: "FinancialInfoStep", IsApplicable: always},
		{Key: models.StepKYCDocuments, Label: "KYC documents", Description: "Compliance documents for the business type", Component: "KYCDocumentsStep", IsApplicable: always},
		{Key: models.StepAdmins, Label: "Admins", Description: "Console administrators for the business", Component: "AdminsStep", IsApplicable: always},
		{Key: models.StepDeclaration, Label: "Declaration", Description: "Terms acceptance and signatory", Component: "DeclarationStep", IsApplicable: always},
		{Key: models.StepReview, Label: "Review", Description: "Review and complete onboarding", Component: "ReviewStep", IsApplicable: always},
	}
	return c
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// IsNoDirectorType reports whether businessType excludes the directors step.
func (c *Catalog) IsNoDirectorType(businessType string) bool {
	_, ok := c.noDirectorTypes[normalizeType(businessType)]
	return ok
}

// All returns the full catalog in order.
func (c *Catalog) All() []Definition {
	return append([]Definition(nil), c.defs...)
}

// Definition looks up a catalog entry by key.
func (c *Catalog) Definition(key models.StepKey) (Definition, bool) {
	for _, d := range c.defs {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// VisibleSteps filters the catalog by applicability, keeping catalog order.
func (c *Catalog) VisibleSteps(fd models.FormData) []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		if d.IsApplicable == nil || d.IsApplicable(fd) {
			out = append(out, d)
		}
	}
	return out
}

// BusinessTypeChangeActions returns the reducer actions implied by a business
// type transition:
//   - a no-directors type marks directors done;
//   - leaving the no-directors set clears the directors flag;
//   - any change of an already-set type clears the KYC flag and the collected documents.
func (c *Catalog) BusinessTypeChangeActions(previousType, nextType string) []wizard.Action {
	prev, next := normalizeType(previousType), normalizeType(nextType)
	var actions []wizard.Action

	switch {
	case c.IsNoDirectorType(next):
		actions = append(actions, wizard.StatusPatch(models.StepDirectors, true))
	case c.IsNoDirectorType(prev):
		actions = append(actions, wizard.StatusPatch(models.StepDirectors, false))
	}

	if prev != "" && prev != next {
		actions = append(actions,
			wizard.StatusPatch(models.StepKYCDocuments, false),
			wizard.FormPatch(models.StepKYCDocuments, map[string]any{"docs": []any{}}),
		)
	}
	return actions
}

// Effect adapts BusinessTypeChangeActions to the store's effect hook. The
// directors rule also applies when the type is unchanged, so a restored state
// with a no-directors type never blocks navigation.
func (c *Catalog) Effect() wizard.Effect {
	return func(prev, next models.WizardState) []wizard.Action {
		prevType, nextType := prev.FormData.BusinessType(), next.FormData.BusinessType()
		if prevType == nextType {
			if c.IsNoDirectorType(nextType) && !next.StepStatus.IsDone(models.StepDirectors) {
				return []wizard.Action{wizard.StatusPatch(models.StepDirectors, true)}
			}
			return nil
		}
		return c.BusinessTypeChangeActions(prevType, nextType)
	}
}
