package transform

import (
	"errors"
	"strings"
	"testing"

	"syncq/common"
)

func TestForCampaignMonitorRequiresEmail(t *testing.T) {
	_, err := ForCampaignMonitor(map[string]any{"First Name": "Jane"})
	if !errors.Is(err, common.ErrMissingRequiredEmail) {
		t.Fatalf("expected missing-email error, got %v", err)
	}
}

func TestForCampaignMonitorSubscriberShape(t *testing.T) {
	subscriber, err := ForCampaignMonitor(map[string]any{
		"Email":      "jane@acme.test",
		"First Name": "Jane",
		"Last Name":  "Doe",
		"Company":    "Acme",
	})
	if err != nil {
		t.Fatal(err)
	}

	if subscriber["EmailAddress"] != "jane@acme.test" {
		t.Errorf("expected EmailAddress, got %v", subscriber["EmailAddress"])
	}
	if subscriber["Name"] != "Jane Doe" {
		t.Errorf("expected Name derived from first+last, got %v", subscriber["Name"])
	}
	if subscriber["ConsentToTrack"] != "Yes" {
		t.Errorf("expected ConsentToTrack Yes, got %v", subscriber["ConsentToTrack"])
	}
	if subscriber["Resubscribe"] != true {
		t.Errorf("expected Resubscribe true, got %v", subscriber["Resubscribe"])
	}

	customFields, ok := subscriber["CustomFields"].([]map[string]any)
	if !ok {
		t.Fatalf("expected CustomFields slice, got %T", subscriber["CustomFields"])
	}
	foundCompany := false
	for _, cf := range customFields {
		key, _ := cf["Key"].(string)
		if key == "Company" && cf["Value"] == "Acme" {
			foundCompany = true
		}
		if strings.Contains(key, "Name") {
			t.Errorf("reserved field leaked into custom fields: %v", cf)
		}
	}
	if !foundCompany {
		t.Errorf("expected Company custom field, got %v", customFields)
	}
}

func TestForCampaignMonitorNoNameFields(t *testing.T) {
	subscriber, err := ForCampaignMonitor(map[string]any{"Email": "jane@acme.test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := subscriber["Name"]; ok {
		t.Errorf("expected no Name key without name fields, got %v", subscriber["Name"])
	}
}

func TestForCampaignMonitorFullNameWins(t *testing.T) {
	subscriber, err := ForCampaignMonitor(map[string]any{
		"Email":      "jane@acme.test",
		"Name":       "Jane Q. Doe",
		"First Name": "Jane",
	})
	if err != nil {
		t.Fatal(err)
	}
	if subscriber["Name"] != "Jane Q. Doe" {
		t.Errorf("expected full name to win, got %v", subscriber["Name"])
	}
}

func TestForQuickbaseRecordShape(t *testing.T) {
	record := ForQuickbase(map[string]any{
		"form_id":      int64(12),
		"entry_id":     "345",
		"date_created": "2026-08-20 10:30:00",
		"Email":        "jane@acme.test",
		"Order Total":  "42.50",
	})

	cell, ok := record["Email"].(map[string]any)
	if !ok || cell["value"] != "jane@acme.test" {
		t.Errorf("expected Email cell, got %v", record["Email"])
	}

	total, ok := record["Order_Total"].(map[string]any)
	if !ok {
		t.Fatalf("expected Order_Total cell, got %v", record["Order_Total"])
	}
	if total["value"] != 42.50 {
		t.Errorf("expected numeric coercion to 42.5, got %v", total["value"])
	}

	if cell, _ := record["Source_Form_ID"].(map[string]any); cell["value"] != int64(12) {
		t.Errorf("expected Source_Form_ID 12, got %v", record["Source_Form_ID"])
	}
	if cell, _ := record["Source_Entry_ID"].(map[string]any); cell["value"] != "345" {
		t.Errorf("expected Source_Entry_ID 345, got %v", record["Source_Entry_ID"])
	}
	if cell, _ := record["Submission_Date"].(map[string]any); cell["value"] != "2026-08-20T10:30:00Z" {
		t.Errorf("expected ISO submission date, got %v", record["Submission_Date"])
	}
	if _, ok := record["Sync_Timestamp"]; !ok {
		t.Error("expected Sync_Timestamp cell")
	}
}

func TestQuickbaseKeySanitization(t *testing.T) {
	cases := map[string]string{
		"order total":   "Order_Total",
		"email":         "Email",
		"1st_choice":    "Field_1st_Choice",
		"weird!!key":    "Weird_Key",
		"__padded__":    "Padded",
		"multi  spaces": "Multi_Spaces",
	}
	for in, want := range cases {
		if got := formatQuickbaseKey(in); got != want {
			t.Errorf("formatQuickbaseKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestForZapierPayloadShape(t *testing.T) {
	payload := ForZapier(map[string]any{
		"form_id":    int64(3),
		"form_title": "Contact Us",
		"Email":      "jane@acme.test",
	})

	if payload["email"] != "jane@acme.test" {
		t.Errorf("expected snake_case email key, got %v", payload["email"])
	}
	if payload["form_title"] != "Contact Us" {
		t.Errorf("expected form_title passthrough, got %v", payload["form_title"])
	}

	meta, ok := payload["_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected _metadata block, got %T", payload["_metadata"])
	}
	if meta["version"] != common.Version {
		t.Errorf("expected version %s, got %v", common.Version, meta["version"])
	}
	mappedFields, ok := meta["mapped_fields"].([]string)
	if !ok {
		t.Fatalf("expected mapped_fields list, got %T", meta["mapped_fields"])
	}
	found := false
	for _, f := range mappedFields {
		if f == "email" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected email among mapped fields, got %v", mappedFields)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(map[string]any{"EmailAddress": "jane@acme.test"}, common.CampaignMonitorDestination); err != nil {
		t.Errorf("expected valid subscriber, got %v", err)
	}
	if err := Validate(map[string]any{"EmailAddress": "nope"}, common.CampaignMonitorDestination); !errors.Is(err, common.ErrMissingRequiredEmail) {
		t.Errorf("expected missing-email error, got %v", err)
	}
	if err := Validate(map[string]any{}, common.ZapierDestination); !errors.Is(err, common.ErrBadRequestEmptyPayload) {
		t.Errorf("expected empty-payload error, got %v", err)
	}
	if err := Validate(map[string]any{"k": "v"}, "nope"); !errors.Is(err, common.ErrBadRequestUnknownDestination) {
		t.Errorf("expected unknown-destination error, got %v", err)
	}
}

func TestForDestinationDispatch(t *testing.T) {
	if _, err := ForDestination(map[string]any{"Email": "a@b.co"}, "bogus"); !errors.Is(err, common.ErrBadRequestUnknownDestination) {
		t.Errorf("expected unknown-destination error, got %v", err)
	}
	payload, err := ForDestination(map[string]any{"Email": "a@b.co"}, common.ZapierDestination)
	if err != nil || payload["email"] != "a@b.co" {
		t.Errorf("expected zapier payload, got %v (%v)", payload, err)
	}
}
