package progress

import (
	"time"

	"github.com/ehr/healthprogress/internal/domain/condition"
)

// Entry is one daily self-report by one patient for one condition.
type Entry struct {
	ID             int64                  `json:"id"`
	PatientID      int64                  `json:"patient_id"`
	PatientName    string                 `json:"patient_name"`
	ConditionType  string                 `json:"condition_type"`
	SubmissionDate condition.Date         `json:"submission_date"`
	SubmittedAt    time.Time              `json:"submitted_at"`
	UrgencyStatus  condition.Urgency      `json:"urgency_status"`
	UrgencyScore   int                    `json:"urgency_score"`
	Status         condition.Status       `json:"status"`
	CommonData     map[string]interface{} `json:"common_data"`
	ConditionData  map[string]interface{} `json:"condition_data"`
	// UrgencyTrail is only populated on the submit response.
	UrgencyTrail []condition.Contribution `json:"urgency_trail,omitempty"`
}

func newEntry(d *condition.Draft, a condition.Assessment) *Entry {
	return &Entry{
		PatientID:      d.PatientID,
		PatientName:    d.PatientName,
		ConditionType:  d.ConditionType,
		SubmissionDate: d.SubmissionDate,
		UrgencyStatus:  a.Urgency,
		UrgencyScore:   a.Score,
		Status:         d.Status,
		CommonData:     d.CommonData,
		ConditionData:  d.ConditionData,
		UrgencyTrail:   a.Trail,
	}
}

// Filter narrows a listing. Zero fields do not filter.
type Filter struct {
	PatientID int64
	Date      *condition.Date
}

// Tally is one (status, urgency) bucket of a condition's entry counts.
type Tally struct {
	Status  condition.Status
	Urgency condition.Urgency
	Count   int
}

// Listing is the per-condition entries response.
type Listing struct {
	Entries       []*Entry `json:"entries"`
	Total         int      `json:"total"`
	ConditionType string   `json:"condition_type"`
}

// PatientHistory is one patient's entries for one condition.
type PatientHistory struct {
	Entries   []*Entry `json:"entries"`
	Total     int      `json:"total"`
	PatientID int64    `json:"patient_id"`
}

// Existence answers the client's idempotency check.
type Existence struct {
	Exists  bool   `json:"exists"`
	EntryID *int64 `json:"entry_id,omitempty"`
}

// Feed is the merged cross-condition listing.
type Feed struct {
	Entries     []*Entry       `json:"entries"`
	Total       int            `json:"total"`
	ByCondition map[string]int `json:"by_condition"`
}

// Stats summarises every stored entry.
type Stats struct {
	TotalEntries   int            `json:"total_entries"`
	UrgentEntries  int            `json:"urgent_entries"`
	MonitorEntries int            `json:"monitor_entries"`
	ByCondition    map[string]int `json:"by_condition"`
	ByUrgency      map[string]int `json:"by_urgency"`
}

// ConditionSummary describes one condition a patient has reported.
type ConditionSummary struct {
	ConditionType  string         `json:"condition_type"`
	Count          int            `json:"count"`
	LastSubmission condition.Date `json:"last_submission"`
}

// PatientOverview lists the conditions a patient reports on.
type PatientOverview struct {
	PatientID  int64              `json:"patient_id"`
	Conditions []ConditionSummary `json:"conditions"`
	Recent     []*Entry           `json:"recent"`
}
