package condition

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the value kind a schema field accepts.
type Kind int

const (
	// KindText is a free-form string.
	KindText Kind = iota + 1
	// KindNumericString is a numeric reading kept in string form (BP, HR,
	// temperature) to match what existing clients send.
	KindNumericString
	KindInteger
	KindNumber
	KindBool
	KindEnum
	KindEnumList
	// KindStructured is an opaque nested object or list (medications,
	// symptoms).
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumericString:
		return "numeric-string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindEnumList:
		return "enum-list"
	case KindStructured:
		return "structured"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field declares one schema key.
type Field struct {
	Key      string
	Kind     Kind
	Min, Max float64
	Values   []string
	Required bool
}

// Require returns a copy of f marked required.
func (f Field) Require() Field {
	f.Required = true
	return f
}

func (f Field) allows(v string) bool {
	for _, a := range f.Values {
		if a == v {
			return true
		}
	}
	return false
}

func Text(key string) Field          { return Field{Key: key, Kind: KindText} }
func NumericString(key string) Field { return Field{Key: key, Kind: KindNumericString} }
func Bool(key string) Field          { return Field{Key: key, Kind: KindBool} }
func Structured(key string) Field    { return Field{Key: key, Kind: KindStructured} }

func Int(key string, min, max float64) Field {
	return Field{Key: key, Kind: KindInteger, Min: min, Max: max}
}

func Number(key string, min, max float64) Field {
	return Field{Key: key, Kind: KindNumber, Min: min, Max: max}
}

func Enum(key string, values ...string) Field {
	return Field{Key: key, Kind: KindEnum, Values: values}
}

func EnumList(key string, values ...string) Field {
	return Field{Key: key, Kind: KindEnumList, Values: values}
}

// Schema is an ordered list of fields.
type Schema []Field

// Partition names the payload map a field is stored in.
type Partition int

const (
	PartCommon Partition = iota + 1
	PartCondition
)

func (p Partition) String() string {
	if p == PartCommon {
		return "common_data"
	}
	return "condition_data"
}

// UrgencySource says whether urgency is computed or taken from the payload.
type UrgencySource string

const (
	UrgencyComputed UrgencySource = "computed"
	UrgencyClient   UrgencySource = "client"
)

// Urgency is the server-side triage category.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency accepts low, medium or high in any case.
func ParseUrgency(s string) (Urgency, bool) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return u, true
	}
	return "", false
}

// Status is the patient's own coarse self-report.
type Status string

const (
	StatusGood    Status = "good"
	StatusMonitor Status = "monitor"
	StatusUrgent  Status = "urgent"
)

// DefaultStatus is stored when a payload carries no status.
const DefaultStatus = StatusMonitor

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusGood, StatusMonitor, StatusUrgent:
		return st, true
	}
	return "", false
}

// DateLayout is the only accepted submission date format.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time component.
type Date struct{ time.Time }

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if len(s) != len(DateLayout) {
		return Date{}, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ConditionSpec declares everything the pipeline knows about one condition.
// Specs are immutable once registered.
type ConditionSpec struct {
	Type string
	// Prefix is the HTTP route prefix the condition's router is mounted at.
	Prefix        string
	Common        Schema
	Condition     Schema
	Aliases       map[string]string
	Rule          *Rule
	UrgencySource UrgencySource
	// Strict rejects keys that neither schema declares.
	Strict bool

	fields  map[string]placedField
	groups  map[string]bool
	aliases map[string]string
}

type placedField struct {
	Field
	part Partition
}

// IdentityKey is the per-condition identity of an entry.
func (s *ConditionSpec) IdentityKey() []string {
	return []string{"patient_id", "submission_date"}
}

// Lookup returns the declared field for a canonical key and the partition it
// lives in.
func (s *ConditionSpec) Lookup(key string) (Field, Partition, bool) {
	pf, ok := s.fields[key]
	return pf.Field, pf.part, ok
}

// Canonical maps an inbound key to its canonical snake_case form.
func (s *ConditionSpec) Canonical(key string) string {
	if a, ok := s.aliases[key]; ok {
		return a
	}
	k := SnakeCase(key)
	if a, ok := s.aliases[k]; ok {
		return a
	}
	return k
}

// routeTag is the last segment of the route prefix, e.g. "burn-care".
func (s *ConditionSpec) routeTag() string {
	if i := strings.LastIndex(s.Prefix, "/"); i >= 0 {
		return s.Prefix[i+1:]
	}
	return s.Prefix
}

func (s *ConditionSpec) matchesTag(v string) bool {
	v = strings.TrimSpace(v)
	return SnakeCase(v) == s.Type || strings.EqualFold(v, s.routeTag())
}

// SnakeCase converts camelCase, PascalCase, kebab-case and spaced keys to
// snake_case. Acronym runs stay together: "patientID" becomes "patient_id".
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	lastUnderscore := true
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case r >= 'A' && r <= 'Z':
			if i > 0 && !lastUnderscore {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if isLowerOrDigit(prev) || (prev >= 'A' && prev <= 'Z' && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
		lastUnderscore = false
	}
	return strings.TrimSuffix(b.String(), "_")
}

func isLowerOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
