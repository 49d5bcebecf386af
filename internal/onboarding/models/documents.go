package models

import "time"

// RequirementLevel says whether a document type is mandatory for a business type.
type RequirementLevel string

const (
	RequirementRequired RequirementLevel = "required"
	RequirementOptional RequirementLevel = "optional"
)

// ExpiryPolicy says whether a document type carries an expiry date.
type ExpiryPolicy string

const (
	ExpiryNever ExpiryPolicy = "never"
	ExpiryDate  ExpiryPolicy = "date"
)

// DocumentType is one entry of the backend's document-type catalog.
type DocumentType struct {
	ID               string           `json:"id"`
	DocName          string           `json:"docName"`
	RequirementLevel RequirementLevel `json:"requirementLevel"`
	ExpiryPolicy     ExpiryPolicy     `json:"expiryPolicy"`
}

// LocalFile is a file attached in this session and not yet uploaded.
type LocalFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"-"`
}

// DocumentRequirement is the reconciled view of one catalog entry. It is
// recomputed whenever the business type or the uploaded records change.
type DocumentRequirement struct {
	DocTypeID           string           `json:"docTypeId"`
	DocName             string           `json:"docName"`
	RequirementLevel    RequirementLevel `json:"requirementLevel"`
	ExpiryPolicy        ExpiryPolicy     `json:"expiryPolicy"`
	UploadedRecordID    string           `json:"uploadedRecordId,omitempty"`
	ApprovalStatus      ApprovalStatus   `json:"approvalStatus,omitempty"`
	StoredFileReference string           `json:"storedFileReference,omitempty"`
	ExpiresOn           *time.Time       `json:"expiresOn,omitempty"`
	PendingLocalFile    *LocalFile       `json:"pendingLocalFile,omitempty"`
	// PendingExpiresOn is the expiry entered alongside a new file.
	PendingExpiresOn *time.Time `json:"pendingExpiresOn,omitempty"`
}

func (r DocumentRequirement) IsRequired() bool {
	return r.RequirementLevel == RequirementRequired
}

// HasNewFile reports whether a file was attached in this session.
func (r DocumentRequirement) HasNewFile() bool {
	return r.PendingLocalFile != nil
}

// ShowUpload reports whether the upload control is offered. An approved
// document hides it unless its expiry date has passed or is missing.
func (r DocumentRequirement) ShowUpload(now time.Time) bool {
	if r.ApprovalStatus != ApprovalApproved {
		return true
	}
	if r.ExpiryPolicy != ExpiryDate {
		return false
	}
	return r.ExpiresOn == nil || !r.ExpiresOn.After(now)
}

// Satisfied reports whether the document lets the KYC step be submitted.
// Optional documents always do.
func (r DocumentRequirement) Satisfied() bool {
	if !r.IsRequired() {
		return true
	}
	return r.HasNewFile() || r.UploadedRecordID != "" || r.ApprovalStatus == ApprovalPending
}
