package wizard

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"onboard/internal/onboarding/models"
)

// Strategy is how incoming data for one step is folded into FormData.
type Strategy string

const (
	// StrategyShallowMerge overlays incoming fields on the existing record.
	StrategyShallowMerge Strategy = "shallow-merge"
	// StrategyReplaceList replaces the whole list.
	StrategyReplaceList Strategy = "replace-list"
	// StrategyNormalizeList rebuilds the document list entry by entry.
	StrategyNormalizeList Strategy = "normalize-list"
	// StrategyReplace swaps the record wholesale.
	StrategyReplace Strategy = "replace"
)

var strategies = map[models.StepKey]Strategy{
	models.StepBusinessDetails: StrategyShallowMerge,
	models.StepBusinessAddress: StrategyShallowMerge,
	models.StepDirectors:       StrategyReplaceList,
	models.StepFinancialInfo:   StrategyShallowMerge,
	models.StepKYCDocuments:    StrategyNormalizeList,
	models.StepAdmins:          StrategyReplaceList,
	models.StepDeclaration:     StrategyShallowMerge,
	models.StepMeta:            StrategyReplace,
}

// StrategyFor returns the merge strategy of a form key; ok is false for keys
// that own no form data.
func StrategyFor(key models.StepKey) (Strategy, bool) {
	s, ok := strategies[key]
	return s, ok
}

// decodeOnto overlays input onto target. Keys absent from input leave fields
// untouched, explicit nulls zero them, unknown keys are ignored and values of
// the wrong type are skipped while the rest of the record still decodes.
func decodeOnto(target any, input map[string]any) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return
	}
	_ = dec.Decode(input)
}

// fieldMap turns a loose map or a typed record into a field map. ok is false
// for values that cannot describe a record.
func fieldMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return t, true
	case models.Meta:
		return map[string]any(t), true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		out := map[string]any{}
		if err := mapstructure.Decode(rv.Interface(), &out); err != nil {
			return nil, false
		}
		return out, true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	default:
		return nil, false
	}
}

// listItems converts a list or an index-keyed map into an ordered slice.
// Numeric keys sort numerically and come first; other keys follow lexically.
func listItems(v any) []any {
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
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.SliceStable(keys, func(i, j int) bool {
			ni, errI := strconv.Atoi(strings.TrimSpace(keys[i]))
			nj, errJ := strconv.Atoi(strings.TrimSpace(keys[j]))
			switch {
			case errI == nil && errJ == nil:
				return ni < nj
			case errI == nil:
				return true
			case errJ == nil:
				return false
			default:
				return keys[i] < keys[j]
			}
		})
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
		}
		return out
	default:
		return nil
	}
}

func toDirectors(v any) []models.Director {
	items := listItems(v)
	out := make([]models.Director, 0, len(items))
	for _, item := range items {
		// a bare name is accepted for the legacy names-only list
		if name, ok := item.(string); ok {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, models.Director{Name: name})
			}
			continue
		}
		fields, ok := fieldMap(item)
		if !ok {
			continue
		}
		var d models.Director
		decodeOnto(&d, fields)
		out = append(out, d)
	}
	return out
}

func toAdmins(v any) []models.Admin {
	items := listItems(v)
	out := make([]models.Admin, 0, len(items))
	for _, item := range items {
		fields, ok := fieldMap(item)
		if !ok {
			continue
		}
		var a models.Admin
		decodeOnto(&a, fields)
		out = append(out, a)
	}
	return out
}

// toDocuments normalizes document entries field by field. Entries without a
// document-type id cannot be matched against the catalog and are dropped.
func toDocuments(v any) []models.DocumentRecord {
	items := listItems(v)
	out := make([]models.DocumentRecord, 0, len(items))
	for _, item := range items {
		fields, ok := fieldMap(item)
		if !ok {
			continue
		}
		var raw struct {
			DocID          string `mapstructure:"docId"`
			ID             string `mapstructure:"id"`
			ApprovalStatus string `mapstructure:"approvalStatus"`
			URL            string `mapstructure:"url"`
			ExpiresOn      string `mapstructure:"expiresOn"`
		}
		decodeOnto(&raw, fields)
		doc := models.DocumentRecord{
			DocID:          strings.TrimSpace(raw.DocID),
			ID:             strings.TrimSpace(raw.ID),
			ApprovalStatus: models.ParseApprovalStatus(raw.ApprovalStatus),
			URL:            strings.TrimSpace(raw.URL),
			ExpiresOn:      NormalizeDate(raw.ExpiresOn),
		}
		if doc.DocID == "" {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// NormalizeDate reduces timestamps to their calendar date (YYYY-MM-DD).
// Unparseable input is returned trimmed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

// ParseDate parses a normalized date; ok is false for empty or invalid input.
func ParseDate(s string) (time.Time, bool) {
	s = NormalizeDate(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
