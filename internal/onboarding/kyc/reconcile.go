// Package kyc reconciles the backend's document-type catalog with the
// documents already uploaded for a business and drives the KYC upload step.
package kyc

import (
	"strings"
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/ports"
	"onboard/internal/onboarding/wizard"
)

// CatalogFromEntries converts backend catalog rows, keeping their order.
// Rows without an id are dropped and repeated ids keep their first row.
func CatalogFromEntries(entries []ports.DocumentTypeEntry) []models.DocumentType {
	out := make([]models.DocumentType, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		docID := strings.TrimSpace(e.ID)
		if docID == "" {
			continue
		}
		if _, dup := seen[docID]; dup {
			continue
		}
		seen[docID] = struct{}{}
		out = append(out, models.DocumentType{
			ID:               docID,
			DocName:          strings.TrimSpace(e.DocName),
			RequirementLevel: parseRequirementLevel(e.RequirementLevel),
			ExpiryPolicy:     parseExpiryPolicy(e.ExpiresType),
		})
	}
	return out
}

func parseRequirementLevel(s string) models.RequirementLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "required", "mandatory", "1", "true":
		return models.RequirementRequired
	default:
		return models.RequirementOptional
	}
}

func parseExpiryPolicy(s string) models.ExpiryPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date", "expiry", "expires", "1", "true":
		return models.ExpiryDate
	default:
		return models.ExpiryNever
	}
}

// Reconcile builds one requirement per catalog entry, in catalog order. An
// uploaded record matches when its docId equals the entry id; when several
// records match, the last one wins as the most recent upload. Records for
// types outside the catalog are ignored.
func Reconcile(catalog []models.DocumentType, uploaded []models.DocumentRecord) []models.DocumentRequirement {
	byType := make(map[string]models.DocumentRecord, len(uploaded))
	for _, rec := range uploaded {
		byType[rec.DocID] = rec
	}

	out := make([]models.DocumentRequirement, 0, len(catalog))
	for _, dt := range catalog {
		req := models.DocumentRequirement{
			DocTypeID:        dt.ID,
			DocName:          dt.DocName,
			RequirementLevel: dt.RequirementLevel,
			ExpiryPolicy:     dt.ExpiryPolicy,
		}
		if rec, ok := byType[dt.ID]; ok {
			req.UploadedRecordID = rec.ID
			req.ApprovalStatus = rec.ApprovalStatus
			req.StoredFileReference = rec.URL
			if t, ok := wizard.ParseDate(rec.ExpiresOn); ok {
				req.ExpiresOn = &t
			}
		}
		out = append(out, req)
	}
	return out
}

// Ready reports whether every required document satisfies the gate.
func Ready(reqs []models.DocumentRequirement) bool {
	return len(Missing(reqs)) == 0
}

// Missing lists the catalog ids of required documents that do not satisfy
// the gate.
func Missing(reqs []models.DocumentRequirement) []string {
	var out []string
	for _, r := range reqs {
		if !r.Satisfied() {
			out = append(out, r.DocTypeID)
		}
	}
	return out
}

// HasNewFiles reports whether any requirement carries a file attached in
// this session.
func HasNewFiles(reqs []models.DocumentRequirement) bool {
	for _, r := range reqs {
		if r.HasNewFile() {
			return true
		}
	}
	return false
}

// Item is a requirement with its derived flags, as shown on the KYC step.
type Item struct {
	models.DocumentRequirement
	ShowUpload bool `json:"showUpload"`
	Satisfied  bool `json:"satisfied"`
	Expired    bool `json:"expired"`
}

// Items evaluates the visibility and readiness rules at now.
func Items(reqs []models.DocumentRequirement, now time.Time) []Item {
	out := make([]Item, len(reqs))
	for i, r := range reqs {
		out[i] = Item{
			DocumentRequirement: r,
			ShowUpload:          r.ShowUpload(now),
			Satisfied:           r.Satisfied(),
			Expired:             r.ExpiryPolicy == models.ExpiryDate && r.ExpiresOn != nil && !r.ExpiresOn.After(now),
		}
	}
	return out
}
