// Package ports defines the interfaces the onboarding services consume. The
// backend is reached over HTTP in production and mocked in tests.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/audit"
)

// SaveDraftRequest is a partial upsert of one step. A zero BusinessID asks the
// backend to create the record. Data is keyed in backend field names.
type SaveDraftRequest struct {
	BusinessID id.BusinessID
	Step       string
	Data       map[string]any
}

// SaveDraftResult carries the identifier assigned by the backend, if any.
type SaveDraftResult struct {
	BusinessID id.BusinessID
	Message    string
}

// DocumentTypeEntry is one row of the backend document-type catalog.
type DocumentTypeEntry struct {
	ID               string `json:"id"`
	DocName          string `json:"doc_name"`
	RequirementLevel string `json:"requirement_level"`
	ExpiresType      string `json:"expires_type"`
}

// UploadDocument is one indexed part of the batched KYC upload. File and
// ExpiresOn are optional.
type UploadDocument struct {
	DocID     string
	File      *models.LocalFile
	ExpiresOn string
}

type UploadRequest struct {
	BusinessID id.BusinessID
	Docs       []UploadDocument
}

// Ack is the {success, message} acknowledgement returned by write endpoints.
type Ack struct {
	Message string
}

// DraftBackend persists step drafts and serves the authoritative record.
type DraftBackend interface {
	SaveDraft(ctx context.Context, req SaveDraftRequest) (*SaveDraftResult, error)
	// GetBusiness returns the full record keyed in backend field names.
	GetBusiness(ctx context.Context, businessID id.BusinessID) (map[string]any, error)
}

// KYCBackend serves the document catalog and accepts document uploads.
type KYCBackend interface {
	DocumentTypes(ctx context.Context, businessID id.BusinessID) ([]DocumentTypeEntry, error)
	UploadDocuments(ctx context.Context, req UploadRequest) (*Ack, error)
}

// CompletionBackend performs the terminal finalize call.
type CompletionBackend interface {
	CompleteOnboarding(ctx context.Context, businessID id.BusinessID) (*Ack, error)
}

// AuditPublisher emits audit events for significant wizard actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
