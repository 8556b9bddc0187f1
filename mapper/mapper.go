// Package mapper classifies raw form fields into a fixed vocabulary of
// semantic types (email, first_name, phone, ...) using label aliases
// confirmed by value validation, with a value-shape fallback.
package mapper

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"syncq/common"
)

const (
	// metadata keys added to every mapping result:
	MappedFieldsKey   = "_mapped_fields"
	OriginalFieldsKey = "_original_fields"
)

type fieldTypeConfig struct {
	name     string
	patterns []string
	validate func(any) bool
}

// Order matters: the first label match wins, so more specific types
// come before full_name (whose "name" alias matches almost anything).
var fieldTypes = []fieldTypeConfig{
	{"email", []string{"email", "e-mail", "email_address", "emailaddress", "mail"}, isEmailValue},
	{"first_name", []string{"first_name", "firstname", "first name", "fname", "given_name"}, isTextValue},
	{"last_name", []string{"last_name", "lastname", "last name", "lname", "surname", "family_name"}, isTextValue},
	{"full_name", []string{"name", "full_name", "fullname", "full name", "display_name"}, isTextValue},
	{"phone", []string{"phone", "telephone", "mobile", "cell", "phone_number"}, isPhoneValue},
	{"company", []string{"company", "organization", "business", "employer"}, isTextValue},
	{"address", []string{"address", "street", "address_line_1", "street_address"}, isTextValue},
	{"city", []string{"city", "town", "locality"}, isTextValue},
	{"state", []string{"state", "province", "region", "administrative_area"}, isTextValue},
	{"zip", []string{"zip", "postal_code", "postcode", "zip_code"}, isTextValue},
	{"country", []string{"country", "nation"}, isTextValue},
}

var (
	emailRe       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nonDigitRe    = regexp.MustCompile(`[^0-9]`)
	nonPhoneRe    = regexp.MustCompile(`[^0-9+\s()-]`)
	nonKeyCharRe  = regexp.MustCompile(`[^a-z0-9_-]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Map classifies each scalar field of raw and returns the union of
// sanitized original keys and mapped semantic keys, plus the
// _mapped_fields and _original_fields metadata lists. Empty values are
// dropped; nothing else is.
func Map(raw map[string]any) map[string]any {
	fields := collectFields(raw)

	mapped := map[string]any{}
	original := map[string]any{}

	for _, f := range fields {
		if isEmpty(f.value) {
			continue
		}

		if mappedType, ok := detectFieldType(f.label, f.value); ok {
			if sanitized, ok := sanitizeValue(f.value, mappedType); ok {
				mapped[mappedType] = sanitized
			}
		}
		original[SanitizeKey(f.label)] = f.value
	}

	result := make(map[string]any, len(mapped)+len(original)+2)
	for k, v := range original {
		result[k] = v
	}
	for k, v := range mapped {
		result[k] = v
	}
	result[MappedFieldsKey] = sortedKeys(mapped)
	result[OriginalFieldsKey] = sortedKeys(original)

	return result
}

// Suggestions produces human-reviewable mapping candidates for a set of
// form fields, sorted by descending confidence.
func Suggestions(fields []common.SubmissionField) []common.MappingSuggestion {
	var suggestions []common.MappingSuggestion

	for _, field := range fields {
		label := field.Label
		if label == "" {
			label = field.Id
		}

		detected, ok := detectFieldType(label, field.Value)
		if !ok {
			continue
		}

		suggestions = append(suggestions, common.MappingSuggestion{
			FieldId:       field.Id,
			OriginalName:  label,
			SuggestedType: detected,
			Confidence:    confidence(label, field.Value, detected),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

type labeledValue struct {
	label string
	value any
}

// collectFields gathers direct scalar entries plus the nested "fields"
// collection of {label, value} pairs. Direct keys are visited in sorted
// order to keep the output deterministic.
func collectFields(raw map[string]any) []labeledValue {
	var fields []labeledValue

	directKeys := make([]string, 0, len(raw))
	for key := range raw {
		if key == common.FieldsKey {
			continue
		}
		directKeys = append(directKeys, key)
	}
	sort.Strings(directKeys)

	for _, key := range directKeys {
		if isScalar(raw[key]) {
			fields = append(fields, labeledValue{label: key, value: raw[key]})
		}
	}

	switch nested := raw[common.FieldsKey].(type) {
	case []any:
		for _, entry := range nested {
			if lv, ok := labeledEntry(entry); ok {
				fields = append(fields, lv)
			}
		}
	case map[string]any:
		nestedKeys := make([]string, 0, len(nested))
		for key := range nested {
			nestedKeys = append(nestedKeys, key)
		}
		sort.Strings(nestedKeys)
		for _, key := range nestedKeys {
			if lv, ok := labeledEntry(nested[key]); ok {
				fields = append(fields, lv)
			}
		}
	}

	return fields
}

func labeledEntry(entry any) (labeledValue, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return labeledValue{}, false
	}
	label, ok := m["label"].(string)
	if !ok {
		return labeledValue{}, false
	}
	value, ok := m["value"]
	if !ok {
		return labeledValue{}, false
	}
	return labeledValue{label: label, value: value}, true
}

func detectFieldType(label string, value any) (string, bool) {
	labelLower := strings.ToLower(strings.TrimSpace(label))

	// name-pattern pass: a label match counts only if the value also
	// passes the type's validator
	for _, ft := range fieldTypes {
		for _, pattern := range ft.patterns {
			if strings.Contains(labelLower, pattern) {
				if ft.validate(value) {
					return ft.name, true
				}
			}
		}
	}

	// value-pattern fallback
	if isEmailValue(value) {
		return "email", true
	}
	if isPhoneValue(value) {
		return "phone", true
	}

	return "", false
}

func confidence(label string, value any, detectedType string) float64 {
	score := 0.5

	var config *fieldTypeConfig
	for i := range fieldTypes {
		if fieldTypes[i].name == detectedType {
			config = &fieldTypes[i]
			break
		}
	}
	if config == nil {
		return score
	}

	labelLower := strings.ToLower(strings.TrimSpace(label))
	for _, pattern := range config.patterns {
		if labelLower == pattern {
			score += 0.4
			break
		}
		if strings.Contains(labelLower, pattern) {
			score += 0.2
			break
		}
	}

	if config.validate(value) {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func sanitizeValue(value any, mappedType string) (any, bool) {
	switch mappedType {
	case "email":
		sanitized := strings.ToLower(strings.TrimSpace(ToString(value)))
		if !emailRe.MatchString(sanitized) {
			return nil, false
		}
		return sanitized, true
	case "phone":
		sanitized := strings.TrimSpace(nonPhoneRe.ReplaceAllString(ToString(value), ""))
		if sanitized == "" {
			return nil, false
		}
		return sanitized, true
	default:
		return SanitizeText(ToString(value)), true
	}
}

// SanitizeKey lowercases a field name and strips everything outside
// [a-z0-9_-], with spaces becoming underscores first.
func SanitizeKey(key string) string {
	sanitized := strings.ToLower(strings.TrimSpace(key))
	sanitized = whitespaceRe.ReplaceAllString(sanitized, "_")
	return nonKeyCharRe.ReplaceAllString(sanitized, "")
}

// SanitizeText trims and collapses internal whitespace.
func SanitizeText(value string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(value), " ")
}

func ToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isEmailValue(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return emailRe.MatchString(strings.TrimSpace(s))
}

func isPhoneValue(value any) bool {
	switch value.(type) {
	case string, float64, int, int64:
	default:
		return false
	}
	digits := nonDigitRe.ReplaceAllString(ToString(value), "")
	return len(digits) >= 7 && len(digits) <= 15
}

func isTextValue(value any) bool {
	if isEmpty(value) {
		return false
	}
	switch value.(type) {
	case string, float64, int, int64:
		return true
	default:
		return false
	}
}

func isScalar(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
