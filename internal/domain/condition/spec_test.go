package condition

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pain_level", "pain_level"},
		{"painLevel", "pain_level"},
		{"PainLevel", "pain_level"},
		{"bloodPressureSystolic", "blood_pressure_systolic"},
		{"patientID", "patient_id"},
		{"HTTPServer", "http_server"},
		{"burn-care", "burn_care"},
		{"Pain Level", "pain_level"},
		{"day2Post", "day2_post"},
		{"_leading", "leading"},
		{"trailing_", "trailing"},
		{"double__underscore", "double_underscore"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SnakeCase(tt.in); got != tt.want {
			t.Errorf("SnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-11-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.November || d.Day() != 5 {
		t.Errorf("unexpected date %v", d)
	}

	for _, bad := range []string{"", "2025-1-05", "2025/11/05", "05-11-2025", "2025-11-05T10:00:00Z", "2025-13-01", "2025-02-30"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q): expected error", bad)
		}
	}
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2025, time.November, 5)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-11-05"` {
		t.Errorf("expected \"2025-11-05\", got %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip mismatch: %v vs %v", back, d)
	}
	if err := json.Unmarshal([]byte(`"11/05/2025"`), &back); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := DateOf(time.Date(2025, 11, 6, 3, 0, 0, 0, loc))
	if got.String() != "2025-11-05" {
		t.Errorf("expected UTC day 2025-11-05, got %s", got)
	}
}

func TestParseUrgencyAndStatus(t *testing.T) {
	if u, ok := ParseUrgency(" HIGH "); !ok || u != UrgencyHigh {
		t.Errorf("expected high, got %q %v", u, ok)
	}
	if _, ok := ParseUrgency("critical"); ok {
		t.Error("expected critical to be rejected")
	}
	if s, ok := ParseStatus("Urgent"); !ok || s != StatusUrgent {
		t.Errorf("expected urgent, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("bad"); ok {
		t.Error("expected bad status to be rejected")
	}
}

func TestConditionSpec_Canonical(t *testing.T) {
	reg := MustRegistry(Catalog()...)
	spec, _ := reg.Lookup("kidney")

	tests := map[string]string{
		"systolic":              "blood_pressure_systolic",
		"bloodPressureSystolic": "blood_pressure_systolic",
		"bpDiastolic":           "blood_pressure_diastolic",
		"spo2":                  "oxygen_saturation",
		"surgery":               "surgery_type",
		"conditionSpecific":     "condition_data",
		"swellingLevel":         "swelling_level",
		"entryDate":             "submission_date",
	}
	for in, want := range tests {
		if got := spec.Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConditionSpec_MatchesTag(t *testing.T) {
	reg := MustRegistry(Catalog()...)
	spec, _ := reg.Lookup("burn_care")
	for _, v := range []string{"burn_care", "burn-care", "BurnCare", " Burn-Care "} {
		if !spec.matchesTag(v) {
			t.Errorf("expected %q to match burn_care", v)
		}
	}
	if spec.matchesTag("cardiac") {
		t.Error("cardiac must not match burn_care")
	}
}
