package models

import (
	"strings"

	id "onboard/pkg/domain"
)

// BusinessDetails is the businessDetails step record.
type BusinessDetails struct {
	BusinessName       string `json:"businessName" mapstructure:"businessName"`
	BusinessType       string `json:"businessType" mapstructure:"businessType"`
	RegistrationNumber string `json:"registrationNumber" mapstructure:"registrationNumber"`
	TaxID              string `json:"taxId" mapstructure:"taxId"`
	IncorporationDate  string `json:"incorporationDate" mapstructure:"incorporationDate"`
	Email              string `json:"email" mapstructure:"email"`
	MobileNumber       string `json:"mobileNumber" mapstructure:"mobileNumber"`
	Website            string `json:"website" mapstructure:"website"`
	Industry           string `json:"industry" mapstructure:"industry"`
}

// BusinessAddress is the businessAddress step record.
type BusinessAddress struct {
	RegisteredOfficeAddress string `json:"registeredOfficeAddress" mapstructure:"registeredOfficeAddress"`
	City                    string `json:"city" mapstructure:"city"`
	State                   string `json:"state" mapstructure:"state"`
	PostalCode              string `json:"postalCode" mapstructure:"postalCode"`
	Country                 string `json:"country" mapstructure:"country"`
	OperatingAddressSame    bool   `json:"operatingAddressSame" mapstructure:"operatingAddressSame"`
	OperatingAddress        string `json:"operatingAddress" mapstructure:"operatingAddress"`
}

// Director is one entry of the directors list.
type Director struct {
	Name         string `json:"name" mapstructure:"name"`
	Email        string `json:"email" mapstructure:"email"`
	MobileNumber string `json:"mobileNumber" mapstructure:"mobileNumber"`
	IDNumber     string `json:"idNumber" mapstructure:"idNumber"`
	Nationality  string `json:"nationality" mapstructure:"nationality"`
	DateOfBirth  string `json:"dateOfBirth" mapstructure:"dateOfBirth"`
}

// FinancialInfo is the financialInfo step record.
type FinancialInfo struct {
	BankName          string `json:"bankName" mapstructure:"bankName"`
	AccountNumber     string `json:"accountNumber" mapstructure:"accountNumber"`
	AccountHolderName string `json:"accountHolderName" mapstructure:"accountHolderName"`
	RoutingCode       string `json:"routingCode" mapstructure:"routingCode"`
	AnnualTurnover    string `json:"annualTurnover" mapstructure:"annualTurnover"`
	SourceOfFunds     string `json:"sourceOfFunds" mapstructure:"sourceOfFunds"`
}

// ApprovalStatus is the review state of an uploaded document. Empty means none.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// ParseApprovalStatus lower-cases s and maps unknown values to ApprovalNone.
// "rejected" is accepted as an alias of declined.
func ParseApprovalStatus(s string) ApprovalStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return ApprovalPending
	case "approved":
		return ApprovalApproved
	case "declined", "rejected":
		return ApprovalDeclined
	default:
		return ApprovalNone
	}
}

// DocumentRecord is an already-uploaded KYC document as known to the backend.
type DocumentRecord struct {
	DocID          string         `json:"docId" mapstructure:"docId"`
	ID             string         `json:"id" mapstructure:"id"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus" mapstructure:"approvalStatus"`
	URL            string         `json:"url" mapstructure:"url"`
	ExpiresOn      string         `json:"expiresOn" mapstructure:"expiresOn"`
}

// KYCDocuments is the kycDocuments step record.
type KYCDocuments struct {
	Docs []DocumentRecord `json:"docs" mapstructure:"docs"`
}

// Admin is one entry of the admins list.
type Admin struct {
	Name         string `json:"name" mapstructure:"name"`
	Email        string `json:"email" mapstructure:"email"`
	MobileNumber string `json:"mobileNumber" mapstructure:"mobileNumber"`
	Role         string `json:"role" mapstructure:"role"`
}

// Declaration is the declaration step record.
type Declaration struct {
	Accepted             bool   `json:"accepted" mapstructure:"accepted"`
	SignatoryName        string `json:"signatoryName" mapstructure:"signatoryName"`
	SignatoryDesignation string `json:"signatoryDesignation" mapstructure:"signatoryDesignation"`
	Place                string `json:"place" mapstructure:"place"`
}

// Meta carries backend bookkeeping (record status, timestamps, completed steps).
// It is always replaced wholesale.
type Meta map[string]any

// FormData holds every collected step record. Lists and maps are never nil.
type FormData struct {
	BusinessDetails BusinessDetails `json:"businessDetails"`
	BusinessAddress BusinessAddress `json:"businessAddress"`
	Directors       []Director      `json:"directors"`
	FinancialInfo   FinancialInfo   `json:"financialInfo"`
	KYCDocuments    KYCDocuments    `json:"kycDocuments"`
	Admins          []Admin         `json:"admins"`
	Declaration     Declaration     `json:"declaration"`
	Meta            Meta            `json:"meta"`
}

// NewFormData returns the empty initial shape.
func NewFormData() FormData {
	return FormData{
		Directors:    []Director{},
		KYCDocuments: KYCDocuments{Docs: []DocumentRecord{}},
		Admins:       []Admin{},
		Meta:         Meta{},
	}
}

// Clone deep-copies the slices and the meta map.
func (f FormData) Clone() FormData {
	out := f
	out.Directors = append(make([]Director, 0, len(f.Directors)), f.Directors...)
	out.Admins = append(make([]Admin, 0, len(f.Admins)), f.Admins...)
	out.KYCDocuments.Docs = append(make([]DocumentRecord, 0, len(f.KYCDocuments.Docs)), f.KYCDocuments.Docs...)
	out.Meta = make(Meta, len(f.Meta))
	for k, v := range f.Meta {
		out.Meta[k] = v
	}
	return out
}

// BusinessType is the type driving step applicability and the KYC catalog.
func (f FormData) BusinessType() string {
	return strings.TrimSpace(f.BusinessDetails.BusinessType)
}

// WizardState is the whole state owned by the form state store.
type WizardState struct {
	BusinessID id.BusinessID `json:"businessId"`
	FormData   FormData      `json:"formData"`
	StepStatus StepStatusMap `json:"stepStatus"`
}

// NewWizardState returns the initial empty state.
func NewWizardState() WizardState {
	return WizardState{
		FormData:   NewFormData(),
		StepStatus: StepStatusMap{},
	}
}

func (s WizardState) Clone() WizardState {
	return WizardState{
		BusinessID: s.BusinessID,
		FormData:   s.FormData.Clone(),
		StepStatus: s.StepStatus.Clone(),
	}
}
