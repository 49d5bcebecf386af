package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/wizard"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

func formWithType(businessType string) models.FormData {
	fd := models.NewFormData()
	fd.BusinessDetails.BusinessType = businessType
	return fd
}

func TestVisibleSteps(t *testing.T) {
	catalog := NewCatalog(nil)

	testutil.Given(t, "a company type", func(t *testing.T) {
		visible := catalog.VisibleSteps(formWithType("private_limited"))
		assert.Equal(t, []models.StepKey{
			models.StepBusinessDetails, models.StepBusinessAddress, models.StepDirectors,
			models.StepFinancialInfo, models.StepKYCDocuments, models.StepAdmins,
			models.StepDeclaration, models.StepReview,
		}, Keys(visible))
	})

	testutil.Given(t, "a sole proprietorship", func(t *testing.T) {
		visible := catalog.VisibleSteps(formWithType(" Sole_Proprietorship "))
		assert.Equal(t, -1, IndexOf(models.StepDirectors, visible))
		assert.Len(t, visible, len(catalog.All())-1)
	})

	testutil.Given(t, "a configured exclusion set", func(t *testing.T) {
		custom := NewCatalog([]string{"trust"})
		assert.Equal(t, -1, IndexOf(models.StepDirectors, custom.VisibleSteps(formWithType("trust"))))
		assert.NotEqual(t, -1, IndexOf(models.StepDirectors, custom.VisibleSteps(formWithType("sole_proprietorship"))))
	})
}

func TestCanNavigateTo(t *testing.T) {
	visible := []Definition{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	status := models.StepStatusMap{"a": {IsDone: true}}

	assert.True(t, CanNavigateTo(0, status, visible), "first step")
	assert.True(t, CanNavigateTo(1, status, visible), "left sibling done")
	assert.False(t, CanNavigateTo(2, status, visible), "left sibling not done")
	assert.False(t, CanNavigateTo(3, status, visible), "out of range")
	assert.False(t, CanNavigateTo(-1, status, visible))

	t.Run("done steps stay reachable for revisits", func(t *testing.T) {
		status := models.StepStatusMap{"c": {IsDone: true}}
		assert.True(t, CanNavigateTo(2, status, visible))
	})
}

func TestResolveActiveIndexAfterFilterChange(t *testing.T) {
	catalog := NewCatalog(nil)

	t.Run("visible step keeps its position", func(t *testing.T) {
		visible := catalog.VisibleSteps(formWithType("private_limited"))
		assert.Equal(t, 3, catalog.ResolveActiveIndexAfterFilterChange(models.StepFinancialInfo, visible))
	})

	t.Run("hidden directors redirects to financial info", func(t *testing.T) {
		visible := catalog.VisibleSteps(formWithType("sole_proprietorship"))
		idx := catalog.ResolveActiveIndexAfterFilterChange(models.StepDirectors, visible)
		assert.Equal(t, models.StepFinancialInfo, visible[idx].Key)
	})

	t.Run("unknown key clamps to last", func(t *testing.T) {
		visible := []Definition{{Key: models.StepBusinessDetails}, {Key: models.StepBusinessAddress}}
		assert.Equal(t, 1, catalog.ResolveActiveIndexAfterFilterChange(models.StepKey("gone"), visible))
		assert.Equal(t, 1, catalog.ResolveActiveIndexAfterFilterChange(models.StepReview, visible))
	})

	t.Run("clamp", func(t *testing.T) {
		visible := []Definition{{Key: "a"}, {Key: "b"}}
		assert.Equal(t, 1, ClampIndex(7, visible))
		assert.Equal(t, 0, ClampIndex(-2, visible))
		assert.Equal(t, 0, ClampIndex(3, nil))
	})
}

func TestBusinessTypeEffect(t *testing.T) {
	catalog := NewCatalog(nil)
	store := wizard.NewStore(wizard.WithEffect(catalog.Effect()))
	setType := func(bt string) models.WizardState {
		return store.Dispatch(wizard.FormPatch(models.StepBusinessDetails, map[string]any{"businessType": bt}))
	}

	setType("private_limited")
	store.Dispatch(
		wizard.FormPatch(models.StepKYCDocuments, map[string]any{"docs": []any{map[string]any{"docId": "1", "id": "9"}}}),
		wizard.SetStepStatus{Partial: models.Done(models.StepDirectors, models.StepKYCDocuments)},
	)

	testutil.When(t, "the type becomes a no-directors type", func(t *testing.T) {
		state := setType("sole_proprietorship")
		assert.True(t, state.StepStatus.IsDone(models.StepDirectors))
		assert.False(t, state.StepStatus.IsDone(models.StepKYCDocuments))
		assert.Empty(t, state.FormData.KYCDocuments.Docs)
		assert.NotNil(t, state.FormData.KYCDocuments.Docs)
	})

	testutil.When(t, "the type changes back", func(t *testing.T) {
		state := setType("private_limited")
		assert.False(t, state.StepStatus.IsDone(models.StepDirectors), "round trip forces re-completion")
	})

	testutil.When(t, "switching between two company types", func(t *testing.T) {
		store.Dispatch(wizard.SetStepStatus{Partial: models.Done(models.StepDirectors, models.StepKYCDocuments)})
		state := setType("llp")
		assert.True(t, state.StepStatus.IsDone(models.StepDirectors), "directors flag is kept")
		assert.False(t, state.StepStatus.IsDone(models.StepKYCDocuments), "kyc is always cleared")
	})

	testutil.When(t, "the type is set for the first time", func(t *testing.T) {
		fresh := wizard.NewStore(wizard.WithEffect(catalog.Effect()))
		fresh.Dispatch(wizard.StatusPatch(models.StepKYCDocuments, true))
		state := fresh.Dispatch(wizard.FormPatch(models.StepBusinessDetails, map[string]any{"businessType": "llp"}))
		assert.True(t, state.StepStatus.IsDone(models.StepKYCDocuments), "hydration does not count as a change")
	})

	testutil.When(t, "a restored state already has a no-directors type", func(t *testing.T) {
		seed := models.NewWizardState()
		seed.FormData.BusinessDetails.BusinessType = "freelancer"
		restored := wizard.NewStore(wizard.WithInitialState(seed), wizard.WithEffect(catalog.Effect()))
		state := restored.Dispatch(wizard.StatusPatch(models.StepBusinessDetails, true))
		assert.True(t, state.StepStatus.IsDone(models.StepDirectors))
	})
}

func TestValidate(t *testing.T) {
	catalog := NewCatalog(nil)

	t.Run("business details lists every missing field", func(t *testing.T) {
		fd := models.NewFormData()
		fd.BusinessDetails.Email = "not-an-email"
		err := catalog.Validate(models.StepBusinessDetails, fd)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields := map[string]bool{}
		for _, f := range verr.Fields {
			fields[f.Field] = true
		}
		assert.True(t, fields["businessName"])
		assert.True(t, fields["businessType"])
		assert.True(t, fields["email"])
		assert.True(t, fields["mobileNumber"])
	})

	t.Run("operating address is conditional", func(t *testing.T) {
		fd := models.NewFormData()
		fd.BusinessAddress = models.BusinessAddress{
			RegisteredOfficeAddress: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN",
			OperatingAddressSame: true,
		}
		assert.NoError(t, catalog.Validate(models.StepBusinessAddress, fd))

		fd.BusinessAddress.OperatingAddressSame = false
		assert.Error(t, catalog.Validate(models.StepBusinessAddress, fd))
	})

	t.Run("directors are not required for no-directors types", func(t *testing.T) {
		assert.NoError(t, catalog.Validate(models.StepDirectors, formWithType("sole_proprietorship")))
		assert.Error(t, catalog.Validate(models.StepDirectors, formWithType("private_limited")))
	})

	t.Run("declaration must be accepted", func(t *testing.T) {
		fd := models.NewFormData()
		fd.Declaration.SignatoryName = "Asha Rao"
		assert.Error(t, catalog.Validate(models.StepDeclaration, fd))
		fd.Declaration.Accepted = true
		assert.NoError(t, catalog.Validate(models.StepDeclaration, fd))
	})
}
