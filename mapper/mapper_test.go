package mapper

import (
	"reflect"
	"testing"

	"syncq/common"
)

func TestMapDetectsCommonFieldsByLabel(t *testing.T) {
	raw := map[string]any{
		"Email Address": "USER@Example.COM ",
		"First Name":    "Jane",
		"Last Name":     "Doe",
		"Company":       "Acme  Corp",
	}

	result := Map(raw)

	if got := result["email"]; got != "user@example.com" {
		t.Errorf("expected lowercased trimmed email, got %v", got)
	}
	if got := result["first_name"]; got != "Jane" {
		t.Errorf("expected first_name Jane, got %v", got)
	}
	if got := result["last_name"]; got != "Doe" {
		t.Errorf("expected last_name Doe, got %v", got)
	}
	if got := result["company"]; got != "Acme Corp" {
		t.Errorf("expected collapsed whitespace in company, got %v", got)
	}

	// originals are kept under sanitized keys
	if got := result["email_address"]; got != "USER@Example.COM " {
		t.Errorf("expected original value preserved, got %v", got)
	}

	mapped, ok := result[MappedFieldsKey].([]string)
	if !ok {
		t.Fatalf("expected %s to be []string, got %T", MappedFieldsKey, result[MappedFieldsKey])
	}
	want := []string{"company", "email", "first_name", "last_name"}
	if !reflect.DeepEqual(mapped, want) {
		t.Errorf("expected mapped fields %v, got %v", want, mapped)
	}
}

func TestMapFallsBackToValueShape(t *testing.T) {
	// "Contact" matches no label alias, but the value looks like a phone number
	result := Map(map[string]any{"Contact": "555-123-4567"})

	if got := result["phone"]; got != "555-123-4567" {
		t.Errorf("expected phone fallback from value shape, got %v", got)
	}
}

func TestMapLabelMatchRequiresValidValue(t *testing.T) {
	// label says email but the value is not one, so no email mapping
	result := Map(map[string]any{"Email Field": "not-an-address"})

	if _, ok := result["email"]; ok {
		t.Errorf("expected no email mapping for invalid value, got %v", result["email"])
	}
	if got := result["email_field"]; got != "not-an-address" {
		t.Errorf("expected original value preserved, got %v", got)
	}
}

func TestMapSkipsEmptyValues(t *testing.T) {
	result := Map(map[string]any{
		"Email":   "a@b.com",
		"Comment": "   ",
	})

	if _, ok := result["comment"]; ok {
		t.Error("expected blank field to be dropped")
	}
	originals, _ := result[OriginalFieldsKey].([]string)
	if !reflect.DeepEqual(originals, []string{"email"}) {
		t.Errorf("expected only email in originals, got %v", originals)
	}
}

func TestMapCollectsNestedFields(t *testing.T) {
	raw := map[string]any{
		"form_id": int64(7),
		"fields": []any{
			map[string]any{"label": "Email", "value": "jane@acme.test"},
			map[string]any{"label": "Phone Number", "value": "(020) 7946 0958"},
		},
	}

	result := Map(raw)

	if got := result["email"]; got != "jane@acme.test" {
		t.Errorf("expected nested email mapped, got %v", got)
	}
	if got := result["phone"]; got != "(020) 7946 0958" {
		t.Errorf("expected nested phone mapped, got %v", got)
	}
}

func TestFullNameDoesNotShadowFirstName(t *testing.T) {
	// "First Name" contains "name" too; the more specific type must win.
	result := Map(map[string]any{"First Name": "Jane"})

	if got := result["first_name"]; got != "Jane" {
		t.Errorf("expected first_name, got %v", got)
	}
	if _, ok := result["full_name"]; ok {
		t.Error("expected no full_name mapping for a first-name label")
	}
}

func TestSuggestionsOrderedByConfidence(t *testing.T) {
	fields := []common.SubmissionField{
		{Id: "3", Label: "Work Email", Value: "jane@acme.test"},
		{Id: "1", Label: "email", Value: "jane@acme.test"},
		{Id: "5", Label: "Notes", Value: "free text"},
	}

	suggestions := Suggestions(fields)

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	// exact alias match + valid value: 0.5 + 0.4 + 0.1
	if suggestions[0].FieldId != "1" || suggestions[0].Confidence != 1.0 {
		t.Errorf("expected exact match first at 1.0, got %+v", suggestions[0])
	}
	// partial alias match + valid value: 0.5 + 0.2 + 0.1
	if suggestions[1].FieldId != "3" || suggestions[1].Confidence != 0.8 {
		t.Errorf("expected partial match at 0.8, got %+v", suggestions[1])
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"Email Address":  "email_address",
		"  Phone  No.  ": "phone_no",
		"zip-code":       "zip-code",
		"Field(1)":       "field1",
	}
	for in, want := range cases {
		if got := SanitizeKey(in); got != want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhoneValueBounds(t *testing.T) {
	if isPhoneValue("12345") {
		t.Error("5 digits should not pass as a phone")
	}
	if !isPhoneValue("+44 20 7946 0958") {
		t.Error("international number should pass")
	}
	if isPhoneValue("1234567890123456") {
		t.Error("16 digits should not pass as a phone")
	}
}
