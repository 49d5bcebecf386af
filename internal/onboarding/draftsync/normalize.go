package draftsync

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/wizard"
	id "onboard/pkg/domain"
)

type fieldRef struct {
	step  models.StepKey
	field string
}

// metaFields are backend bookkeeping fields folded into formData.meta.
var metaFields = map[string]struct{}{
	"status":                 {},
	"onboarding_status":      {},
	"created_at":             {},
	"updated_at":             {},
	"completed_steps":        {},
	"is_onboarding_complete": {},
}

// fieldAliases maps backend names that differ from the snake_case form of a
// wizard field.
var fieldAliases = map[string]fieldRef{
	"registered_address":   {models.StepBusinessAddress, "registeredOfficeAddress"},
	"business_email":       {models.StepBusinessDetails, "email"},
	"business_phone":       {models.StepBusinessDetails, "mobileNumber"},
	"gst_number":           {models.StepBusinessDetails, "taxId"},
	"ifsc_code":            {models.StepFinancialInfo, "routingCode"},
	"declaration_accepted": {models.StepDeclaration, "accepted"},
}

var stepAliases = map[string]models.StepKey{
	"documents":       models.StepKYCDocuments,
	"kyc_docs":        models.StepKYCDocuments,
	"directors_names": models.StepDirectors,
	"business_admins": models.StepAdmins,
}

var documentAliases = map[string]string{
	"fileUrl":        "url",
	"documentUrl":    "url",
	"status":         "approvalStatus",
	"docTypeId":      "docId",
	"documentTypeId": "docId",
	"expiryDate":     "expiresOn",
}

// Normalizer is the only place that knows both naming conventions: backend
// records use snake_case business names, formData uses camelCase step-scoped
// names.
type Normalizer struct {
	fields map[string]fieldRef
	steps  map[string]models.StepKey
}

// NewNormalizer derives the top-level field table from the step record types.
// When two steps share a field name the earlier step wins.
func NewNormalizer() *Normalizer {
	n := &Normalizer{
		fields: make(map[string]fieldRef),
		steps:  make(map[string]models.StepKey),
	}
	records := []struct {
		step   models.StepKey
		record any
	}{
		{models.StepBusinessDetails, models.BusinessDetails{}},
		{models.StepBusinessAddress, models.BusinessAddress{}},
		{models.StepFinancialInfo, models.FinancialInfo{}},
		{models.StepDeclaration, models.Declaration{}},
	}
	for _, r := range records {
		t := reflect.TypeOf(r.record)
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("mapstructure")
			if tag == "" || tag == "-" {
				continue
			}
			snake := ToSnake(tag)
			if _, taken := n.fields[snake]; !taken {
				n.fields[snake] = fieldRef{step: r.step, field: tag}
			}
		}
	}
	for k, ref := range fieldAliases {
		n.fields[k] = ref
	}
	for _, key := range models.FormKeys {
		n.steps[ToSnake(string(key))] = key
	}
	for k, step := range stepAliases {
		n.steps[k] = step
	}
	return n
}

// StepName is the backend name of a step.
func StepName(step models.StepKey) string {
	return ToSnake(string(step))
}

// Outbound converts one step record into the backend payload. Object steps
// become a flat snake_case map; list steps are wrapped under the step name.
func (n *Normalizer) Outbound(step models.StepKey, record any) map[string]any {
	loose := toLoose(record)
	strategy, _ := wizard.StrategyFor(step)
	switch strategy {
	case wizard.StrategyReplaceList:
		items, _ := loose.([]any)
		if items == nil {
			items = []any{}
		}
		return map[string]any{StepName(step): snakeize(items)}
	case wizard.StrategyNormalizeList:
		if m, ok := loose.(map[string]any); ok {
			if docs, ok := m["docs"]; ok {
				return map[string]any{"docs": snakeize(docs)}
			}
		}
		return map[string]any{"docs": snakeize(loose)}
	default:
		m, _ := snakeize(loose).(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		return m
	}
}

// Inbound folds a backend record into per-step partials ready for
// SET_FORM_DATA. Only fields present in the record appear in the result, so a
// reconcile never clears data the response did not mention. Unknown fields are
// dropped.
func (n *Normalizer) Inbound(record map[string]any) map[models.StepKey]any {
	out := make(map[models.StepKey]any)
	objects := make(map[models.StepKey]map[string]any)
	object := func(step models.StepKey) map[string]any {
		if objects[step] == nil {
			objects[step] = make(map[string]any)
		}
		return objects[step]
	}
	meta := make(map[string]any)
	metaSeen := false

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := record[k]
		snake := ToSnake(k)

		if step, ok := n.steps[snake]; ok {
			switch strategy, _ := wizard.StrategyFor(step); strategy {
			case wizard.StrategyReplace:
				if m, ok := v.(map[string]any); ok {
					for mk, mv := range m {
						meta[ToCamel(mk)] = camelize(mk, mv)
					}
					metaSeen = true
				}
			case wizard.StrategyNormalizeList:
				out[step] = map[string]any{"docs": documents(v)}
			case wizard.StrategyReplaceList:
				out[step] = camelize(snake, v)
			default:
				if m, ok := camelize(snake, v).(map[string]any); ok {
					dst := object(step)
					for fk, fv := range m {
						dst[fk] = fv
					}
				}
			}
			continue
		}
		if _, ok := metaFields[snake]; ok {
			meta[ToCamel(snake)] = camelize(snake, v)
			metaSeen = true
			continue
		}
		if ref, ok := n.fields[snake]; ok {
			object(ref.step)[ref.field] = camelize(ref.field, v)
		}
	}

	for step, fields := range objects {
		out[step] = fields
	}
	if metaSeen {
		out[models.StepMeta] = meta
	}
	return out
}

// BusinessIDOf extracts the record identifier, accepting business_id or id.
func BusinessIDOf(record map[string]any) (id.BusinessID, bool) {
	for _, k := range []string{"business_id", "businessId", "id"} {
		if v, ok := record[k]; ok {
			if bid, ok := id.BusinessIDFromAny(v); ok {
				return bid, true
			}
		}
	}
	return "", false
}

// CompletedSteps reads meta.completedSteps, given either as a list of step
// names or as a name-to-bool map. Unknown names are skipped.
func CompletedSteps(meta models.Meta) []models.StepKey {
	var names []string
	switch v := meta["completedSteps"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	case []string:
		names = v
	case map[string]any:
		for name, done := range v {
			if b, ok := done.(bool); ok && b {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}
	out := make([]models.StepKey, 0, len(names))
	for _, name := range names {
		if key, ok := models.ParseStepKey(ToCamel(strings.TrimSpace(name))); ok {
			out = append(out, key)
		}
	}
	return out
}

func documents(v any) any {
	if m, ok := v.(map[string]any); ok {
		if docs, ok := m["docs"]; ok {
			v = docs
		}
	}
	converted := camelize("docs", v)
	switch list := converted.(type) {
	case []any:
		for _, item := range list {
			if doc, ok := item.(map[string]any); ok {
				aliasDocument(doc)
			}
		}
	case map[string]any:
		for _, item := range list {
			if doc, ok := item.(map[string]any); ok {
				aliasDocument(doc)
			}
		}
	}
	return converted
}

func aliasDocument(doc map[string]any) {
	for from, to := range documentAliases {
		if v, ok := doc[from]; ok {
			if _, taken := doc[to]; !taken {
				doc[to] = v
			}
			delete(doc, from)
		}
	}
}

// toLoose turns typed records into maps and slices keyed by mapstructure tags.
func toLoose(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		var m map[string]any
		if err := mapstructure.Decode(rv.Interface(), &m); err != nil {
			return map[string]any{}
		}
		for k, val := range m {
			m[k] = toLoose(val)
		}
		return m
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = toLoose(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = toLoose(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

func snakeize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[ToSnake(k)] = snakeize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = snakeize(val)
		}
		return out
	default:
		return v
	}
}

// camelize converts keys recursively and reduces date-like fields to their
// calendar date.
func camelize(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ck := ToCamel(k)
			out[ck] = camelize(ck, val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = camelize(key, val)
		}
		return out
	case string:
		if isDateField(ToCamel(key)) {
			return wizard.NormalizeDate(t)
		}
		return t
	default:
		return v
	}
}

func isDateField(camel string) bool {
	return strings.HasSuffix(camel, "Date") || camel == "dateOfBirth" || camel == "expiresOn"
}

// ToSnake converts camelCase to snake_case. Acronyms stay together:
// "docID" becomes "doc_id".
func ToSnake(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamel converts snake_case to camelCase. Input without underscores is
// returned with its first letter lowered.
func ToCamel(s string) string {
	if s == "" {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		runes := []rune(p)
		if first {
			runes[0] = unicode.ToLower(runes[0])
			first = false
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
