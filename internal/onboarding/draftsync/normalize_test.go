package draftsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
)

func TestCaseConversion(t *testing.T) {
	cases := []struct {
		camel string
		snake string
	}{
		{"businessName", "business_name"},
		{"registeredOfficeAddress", "registered_office_address"},
		{"taxId", "tax_id"},
		{"docId", "doc_id"},
		{"kycDocuments", "kyc_documents"},
		{"email", "email"},
	}
	for _, tc := range cases {
		t.Run(tc.camel, func(t *testing.T) {
			assert.Equal(t, tc.snake, ToSnake(tc.camel))
			assert.Equal(t, tc.camel, ToCamel(tc.snake))
		})
	}
	assert.Equal(t, "doc_id", ToSnake("docID"))
	assert.Equal(t, "businessName", ToCamel("businessName"), "camelCase input is kept")
}

func TestNormalizer_InboundFlatRecord(t *testing.T) {
	n := NewNormalizer()
	partial := n.Inbound(map[string]any{
		"business_id":               "1017",
		"business_name":             "Acme Traders",
		"business_type":             "llc",
		"incorporation_date":        "2019-04-01T00:00:00Z",
		"registered_office_address": "12 High Street",
		"city":                      "Pune",
		"bank_name":                 "First Bank",
		"status":                    "draft",
		"completed_steps":           []any{"business_details"},
		"unknown_backend_field":     "ignored",
	})

	require.Contains(t, partial, models.StepBusinessDetails)
	details := partial[models.StepBusinessDetails].(map[string]any)
	assert.Equal(t, "Acme Traders", details["businessName"])
	assert.Equal(t, "llc", details["businessType"])
	assert.Equal(t, "2019-04-01", details["incorporationDate"])

	address := partial[models.StepBusinessAddress].(map[string]any)
	assert.Equal(t, "12 High Street", address["registeredOfficeAddress"])
	assert.Equal(t, "Pune", address["city"])
	assert.NotContains(t, address, "country", "absent fields must not appear")

	assert.Equal(t, "First Bank", partial[models.StepFinancialInfo].(map[string]any)["bankName"])

	meta := partial[models.StepMeta].(map[string]any)
	assert.Equal(t, "draft", meta["status"])
	assert.Equal(t, []any{"business_details"}, meta["completedSteps"])

	for _, v := range partial {
		if m, ok := v.(map[string]any); ok {
			assert.NotContains(t, m, "unknownBackendField")
		}
	}
}

func TestNormalizer_InboundNestedStepsAndDocuments(t *testing.T) {
	n := NewNormalizer()
	partial := n.Inbound(map[string]any{
		"directors": []any{
			map[string]any{"name": "Asha", "email": "asha@example.com", "mobile_number": "9000000001"},
		},
		"kyc_documents": map[string]any{
			"docs": []any{
				map[string]any{"doc_id": "pan", "id": "d-1", "approval_status": "approved", "file_url": "https://files/pan.pdf", "expires_on": "2030-01-01"},
			},
		},
		"meta": map[string]any{"onboarding_status": "in_progress"},
	})

	state := wizard.Reduce(models.NewWizardState(), wizard.SetFormData{Partial: partial})

	require.Len(t, state.FormData.Directors, 1)
	assert.Equal(t, "9000000001", state.FormData.Directors[0].MobileNumber)

	require.Len(t, state.FormData.KYCDocuments.Docs, 1)
	doc := state.FormData.KYCDocuments.Docs[0]
	assert.Equal(t, "pan", doc.DocID)
	assert.Equal(t, models.ApprovalApproved, doc.ApprovalStatus)
	assert.Equal(t, "https://files/pan.pdf", doc.URL)
	assert.Equal(t, "2030-01-01", doc.ExpiresOn)

	assert.Equal(t, "in_progress", state.FormData.Meta["onboardingStatus"])
}

func TestNormalizer_Outbound(t *testing.T) {
	n := NewNormalizer()

	t.Run("object step is flattened to snake_case", func(t *testing.T) {
		out := n.Outbound(models.StepBusinessDetails, models.BusinessDetails{
			BusinessName: "Acme",
			TaxID:        "TAX-1",
		})
		assert.Equal(t, "Acme", out["business_name"])
		assert.Equal(t, "TAX-1", out["tax_id"])
		assert.Contains(t, out, "mobile_number")
	})

	t.Run("list step is wrapped under the step name", func(t *testing.T) {
		out := n.Outbound(models.StepDirectors, []models.Director{{Name: "Asha", IDNumber: "X1"}})
		items, ok := out["directors"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
		assert.Equal(t, "X1", items[0].(map[string]any)["id_number"])
	})

	t.Run("loose maps are converted too", func(t *testing.T) {
		out := n.Outbound(models.StepFinancialInfo, map[string]any{"accountNumber": "001"})
		assert.Equal(t, map[string]any{"account_number": "001"}, out)
	})

	t.Run("nil list becomes empty", func(t *testing.T) {
		out := n.Outbound(models.StepAdmins, nil)
		assert.Equal(t, []any{}, out["admins"])
	})
}

func TestBusinessIDOf(t *testing.T) {
	bid, ok := BusinessIDOf(map[string]any{"business_id": float64(1017)})
	require.True(t, ok)
	assert.Equal(t, id.BusinessID("1017"), bid)

	_, ok = BusinessIDOf(map[string]any{"name": "x"})
	assert.False(t, ok)
}

func TestCompletedSteps(t *testing.T) {
	steps := CompletedSteps(models.Meta{"completedSteps": []any{"business_details", "directors", "bogus", "meta"}})
	assert.Equal(t, []models.StepKey{models.StepBusinessDetails, models.StepDirectors}, steps)

	steps = CompletedSteps(models.Meta{"completedSteps": map[string]any{"financial_info": true, "admins": false}})
	assert.Equal(t, []models.StepKey{models.StepFinancialInfo}, steps)

	assert.Empty(t, CompletedSteps(models.Meta{}))
}
