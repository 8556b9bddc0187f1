// Package transform shapes mapped form data into each destination's
// wire format and validates the result before it is handed to an
// adapter.
package transform

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"syncq/common"
	"syncq/mapper"
)

const (
	campaignMonitorKeyMaxLen = 200
	quickbaseKeyMaxLen       = 255
)

var (
	cmKeyRe          = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	qbKeyInvalidRe   = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	underscoreRunRe  = regexp.MustCompile(`_+`)
	startsWithLetter = regexp.MustCompile(`^[a-zA-Z]`)
	zapierKeyRe      = regexp.MustCompile(`[^a-z0-9_]`)
	emailRe          = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ForDestination maps raw payload data through the field mapper and
// shapes it for the given destination.
func ForDestination(data map[string]any, destination string) (map[string]any, error) {
	switch destination {
	case common.ZapierDestination:
		return ForZapier(data), nil
	case common.CampaignMonitorDestination:
		return ForCampaignMonitor(data)
	case common.QuickbaseDestination:
		return ForQuickbase(data), nil
	default:
		return nil, common.ErrBadRequestUnknownDestination
	}
}

// ForCampaignMonitor builds a subscriber payload. A mapped email is
// required; the display name falls back from full_name to
// first_name+last_name to first_name alone.
func ForCampaignMonitor(data map[string]any) (map[string]any, error) {
	mapped := mapper.Map(data)

	subscriber := map[string]any{}

	email, ok := mapped["email"].(string)
	if !ok || email == "" {
		return nil, common.ErrMissingRequiredEmail
	}
	subscriber["EmailAddress"] = email

	firstName, _ := mapped["first_name"].(string)
	lastName, _ := mapped["last_name"].(string)
	if fullName, ok := mapped["full_name"].(string); ok && fullName != "" {
		subscriber["Name"] = fullName
	} else if firstName != "" && lastName != "" {
		subscriber["Name"] = strings.TrimSpace(firstName + " " + lastName)
	} else if firstName != "" {
		subscriber["Name"] = firstName
	}

	excluded := map[string]bool{
		"email":                  true,
		"full_name":              true,
		"first_name":             true,
		"last_name":              true,
		mapper.MappedFieldsKey:   true,
		mapper.OriginalFieldsKey: true,
	}

	var customFields []map[string]any
	for _, key := range sortedKeys(mapped) {
		value := mapped[key]
		if excluded[key] || isEmptyValue(value) {
			continue
		}

		fieldName := formatCampaignMonitorKey(key)
		if fieldName == "" {
			continue
		}

		customFields = append(customFields, map[string]any{
			"Key":   fieldName,
			"Value": formatValue(value),
		})
	}
	if len(customFields) > 0 {
		subscriber["CustomFields"] = customFields
	}

	subscriber["ConsentToTrack"] = "Yes"
	subscriber["Resubscribe"] = true

	return subscriber, nil
}

// ForQuickbase builds a record payload: every non-empty field becomes a
// {value: ...} cell under a sanitized field name, plus fixed metadata
// fields for the source form, entry, submission date and sync time.
func ForQuickbase(data map[string]any) map[string]any {
	mapped := mapper.Map(data)

	record := map[string]any{}

	for _, key := range sortedKeys(mapped) {
		value := mapped[key]
		if strings.HasPrefix(key, "_") || isEmptyValue(value) {
			continue
		}

		fieldName := formatQuickbaseKey(key)
		if fieldName == "" {
			continue
		}

		record[fieldName] = map[string]any{"value": formatQuickbaseValue(value, key)}
	}

	if formId, ok := data[common.FormIdKey]; ok {
		record["Source_Form_ID"] = map[string]any{"value": toInt(formId)}
	}
	if entryId, ok := data[common.EntryIdKey]; ok {
		record["Source_Entry_ID"] = map[string]any{"value": mapper.SanitizeText(mapper.ToString(entryId))}
	}
	if dateCreated, ok := data[common.DateCreatedKey]; ok {
		record["Submission_Date"] = map[string]any{"value": formatQuickbaseDate(dateCreated)}
	}
	record["Sync_Timestamp"] = map[string]any{"value": time.Now().Format(time.RFC3339)}

	return record
}

// ForZapier builds a flat snake_case payload with a _metadata block
// recording the sync time, component version and mapped field names.
func ForZapier(data map[string]any) map[string]any {
	mapped := mapper.Map(data)

	payload := map[string]any{}
	for _, key := range sortedKeys(mapped) {
		if strings.HasPrefix(key, "_") {
			continue
		}
		payload[formatZapierKey(key)] = formatValue(mapped[key])
	}

	mappedFields, _ := mapped[mapper.MappedFieldsKey].([]string)
	if mappedFields == nil {
		mappedFields = []string{}
	}
	payload["_metadata"] = map[string]any{
		"sync_timestamp": time.Now().Format(time.RFC3339),
		"version":        common.Version,
		"mapped_fields":  mappedFields,
	}

	return payload
}

// Validate is the final guard before a payload reaches an adapter.
func Validate(payload map[string]any, destination string) error {
	switch destination {
	case common.CampaignMonitorDestination:
		email, ok := payload["EmailAddress"].(string)
		if !ok || !isEmail(email) {
			return common.ErrMissingRequiredEmail
		}
		return nil
	case common.QuickbaseDestination, common.ZapierDestination:
		if len(payload) == 0 {
			return common.ErrBadRequestEmptyPayload
		}
		return nil
	default:
		return common.ErrBadRequestUnknownDestination
	}
}

func formatCampaignMonitorKey(key string) string {
	formatted := strings.TrimSpace(cmKeyRe.ReplaceAllString(key, ""))
	formatted = titleCaseWords(strings.NewReplacer("-", " ", "_", " ").Replace(formatted))
	return truncate(formatted, campaignMonitorKeyMaxLen)
}

func formatQuickbaseKey(key string) string {
	formatted := qbKeyInvalidRe.ReplaceAllString(key, "_")
	formatted = underscoreRunRe.ReplaceAllString(formatted, "_")
	formatted = strings.Trim(formatted, "_")
	if !startsWithLetter.MatchString(formatted) {
		formatted = "Field_" + formatted
	}

	parts := strings.Split(formatted, "_")
	for i, part := range parts {
		parts[i] = upperFirst(part)
	}
	return truncate(strings.Join(parts, "_"), quickbaseKeyMaxLen)
}

func formatZapierKey(key string) string {
	formatted := strings.ToLower(key)
	formatted = zapierKeyRe.ReplaceAllString(formatted, "_")
	formatted = underscoreRunRe.ReplaceAllString(formatted, "_")
	return strings.Trim(formatted, "_")
}

func formatValue(value any) any {
	switch v := value.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, mapper.SanitizeText(mapper.ToString(item)))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	default:
		return mapper.SanitizeText(mapper.ToString(value))
	}
}

func formatQuickbaseValue(value any, key string) any {
	switch v := value.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, mapper.SanitizeText(mapper.ToString(item)))
		}
		return strings.Join(parts, "; ")
	case bool:
		return v
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}

	s := mapper.ToString(value)
	if num, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return num
	}
	if strings.Contains(key, "date") {
		return formatQuickbaseDate(value)
	}
	return mapper.SanitizeText(s)
}

// formatQuickbaseDate renders a parseable date as ISO-8601 and passes
// anything else through as sanitized text.
func formatQuickbaseDate(value any) string {
	s := strings.TrimSpace(mapper.ToString(value))
	if s == "" {
		return ""
	}

	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC().Format(time.RFC3339)
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return mapper.SanitizeText(s)
}

func titleCaseWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = upperFirst(word)
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

func toInt(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return parsed
	default:
		return 0
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func isEmail(s string) bool {
	return emailRe.MatchString(s)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// deterministic output order
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
