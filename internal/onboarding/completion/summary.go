package completion

import (
	"reflect"
	"strings"
	"unicode"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/steps"
	id "onboard/pkg/domain"
)

// Field is one labelled value of the summary.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section summarizes one visible step. Object steps fill Fields, list steps
// fill Items.
type Section struct {
	Step   models.StepKey `json:"step"`
	Label  string         `json:"label"`
	Done   bool           `json:"done"`
	Fields []Field        `json:"fields,omitempty"`
	Items  [][]Field      `json:"items,omitempty"`
}

// Summary is the read-only projection shown on the review step.
type Summary struct {
	BusinessID id.BusinessID `json:"businessId"`
	Sections   []Section     `json:"sections"`
}

// Summarize projects every visible data step, in catalog order.
func Summarize(catalog *steps.Catalog, state models.WizardState) Summary {
	fd := state.FormData
	out := Summary{BusinessID: state.BusinessID, Sections: []Section{}}
	for _, def := range catalog.VisibleSteps(fd) {
		sec := Section{Step: def.Key, Label: def.Label, Done: state.StepStatus.IsDone(def.Key)}
		switch def.Key {
		case models.StepBusinessDetails:
			sec.Fields = fieldsOf(fd.BusinessDetails)
		case models.StepBusinessAddress:
			sec.Fields = fieldsOf(fd.BusinessAddress)
		case models.StepDirectors:
			sec.Items = itemsOf(fd.Directors)
		case models.StepFinancialInfo:
			sec.Fields = fieldsOf(fd.FinancialInfo)
		case models.StepKYCDocuments:
			sec.Items = itemsOf(fd.KYCDocuments.Docs)
		case models.StepAdmins:
			sec.Items = itemsOf(fd.Admins)
		case models.StepDeclaration:
			sec.Fields = fieldsOf(fd.Declaration)
		default:
			continue
		}
		out.Sections = append(out.Sections, sec)
	}
	return out
}

func itemsOf[T any](list []T) [][]Field {
	out := make([][]Field, 0, len(list))
	for _, item := range list {
		out = append(out, fieldsOf(item))
	}
	return out
}

// fieldsOf lists the fields of a step record in declaration order.
func fieldsOf(record any) []Field {
	rv := reflect.ValueOf(record)
	rt := rv.Type()
	out := make([]Field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		key := rt.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		out = append(out, Field{Key: key, Label: humanize(key), Value: display(rv.Field(i))})
	}
	return out
}

func display(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return "Yes"
		}
		return "No"
	case reflect.String:
		return v.String()
	default:
		return ""
	}
}

// humanize turns "registeredOfficeAddress" into "Registered office address".
func humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
