package steps

import (
	"fmt"
	"net/mail"
	"strings"

	"onboard/internal/onboarding/models"
	dErrors "onboard/pkg/domain-errors"
)

// FieldError names one failed field of a step.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every failed field of a step. It carries
// CodeValidation so transports report it as a client error.
type ValidationError struct {
	Step   models.StepKey
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return fmt.Sprintf("%s: %s", e.Step, strings.Join(parts, "; "))
}

// Unwrap exposes the coded error so dErrors.CodeOf sees CodeValidation.
func (e *ValidationError) Unwrap() error {
	return dErrors.New(dErrors.CodeValidation, e.Error())
}

type checker struct {
	fields []FieldError
}

func (c *checker) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.fields = append(c.fields, FieldError{Field: field, Reason: "is required"})
	}
}

func (c *checker) email(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		c.fields = append(c.fields, FieldError{Field: field, Reason: "must be a valid email"})
	}
}

func (c *checker) fail(field, reason string) {
	c.fields = append(c.fields, FieldError{Field: field, Reason: reason})
}

// Validate checks the local validation contract of one step against the
// candidate form data. It never contacts the backend. The kycDocuments and
// review steps are gated by the KYC engine and the completion gate instead.
func (c *Catalog) Validate(key models.StepKey, fd models.FormData) error {
	var ck checker
	switch key {
	case models.StepBusinessDetails:
		bd := fd.BusinessDetails
		ck.required("businessName", bd.BusinessName)
		ck.required("businessType", bd.BusinessType)
		ck.required("email", bd.Email)
		ck.email("email", bd.Email)
		ck.required("mobileNumber", bd.MobileNumber)
	case models.StepBusinessAddress:
		ba := fd.BusinessAddress
		ck.required("registeredOfficeAddress", ba.RegisteredOfficeAddress)
		ck.required("city", ba.City)
		ck.required("postalCode", ba.PostalCode)
		ck.required("country", ba.Country)
		if !ba.OperatingAddressSame {
			ck.required("operatingAddress", ba.OperatingAddress)
		}
	case models.StepDirectors:
		if c.IsNoDirectorType(fd.BusinessType()) {
			break
		}
		if len(fd.Directors) == 0 {
			ck.fail("directors", "must list at least one director")
		}
		for i, d := range fd.Directors {
			ck.required(fmt.Sprintf("directors[%d].name", i), d.Name)
			ck.required(fmt.Sprintf("directors[%d].email", i), d.Email)
			ck.email(fmt.Sprintf("directors[%d].email", i), d.Email)
		}
	case models.StepFinancialInfo:
		fi := fd.FinancialInfo
		ck.required("bankName", fi.BankName)
		ck.required("accountNumber", fi.AccountNumber)
		ck.required("accountHolderName", fi.AccountHolderName)
	case models.StepAdmins:
		if len(fd.Admins) == 0 {
			ck.fail("admins", "must list at least one admin")
		}
		for i, a := range fd.Admins {
			ck.required(fmt.Sprintf("admins[%d].name", i), a.Name)
			ck.required(fmt.Sprintf("admins[%d].email", i), a.Email)
			ck.email(fmt.Sprintf("admins[%d].email", i), a.Email)
		}
	case models.StepDeclaration:
		if !fd.Declaration.Accepted {
			ck.fail("accepted", "must be confirmed")
		}
		ck.required("signatoryName", fd.Declaration.SignatoryName)
	}
	if len(ck.fields) == 0 {
		return nil
	}
	return &ValidationError{Step: key, Fields: ck.fields}
}
