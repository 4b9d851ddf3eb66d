package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// FieldError names one rejected field.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError is returned when a payload fails schema checks.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Reason)
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// Draft is a normalized entry that has not been scored or stored.
type Draft struct {
	PatientID      int64
	PatientName    string
	ConditionType  string
	SubmissionDate Date
	Status         Status
	// ClaimedUrgency is only read for client-sourced conditions.
	ClaimedUrgency Urgency
	CommonData     map[string]interface{}
	ConditionData  map[string]interface{}
}

// Envelope keys lifted out of the payload maps wherever they appear.
const (
	keyPatientID      = "patient_id"
	keyPatientName    = "patient_name"
	keySubmissionDate = "submission_date"
	keyStatus         = "status"
	keyUrgency        = "urgency_status"
	keyConditionType  = "condition_type"
	keySurgeryType    = "surgery_type"
	keyCommonData     = "common_data"
	keyConditionData  = "condition_data"
)

var envelopeKeys = map[string]bool{
	keyPatientID:      true,
	keyPatientName:    true,
	keySubmissionDate: true,
	keyStatus:         true,
	keyUrgency:        true,
	keyConditionType:  true,
	keySurgeryType:    true,
}

// Server-assigned keys that clients echo back; they are never stored.
var serverKeys = map[string]bool{
	"id":           true,
	"submitted_at": true,
	"created_at":   true,
	"updated_at":   true,
}

type candidate struct {
	value interface{}
	from  string
}

type normalizer struct {
	spec     *ConditionSpec
	envelope map[string]candidate
	data     map[Partition]map[string]interface{}
	origins  map[string]string
	errs     []FieldError
}

// Normalize maps a raw payload in flat, nested or mixed shape onto the
// canonical partitioned draft for spec.
func Normalize(spec *ConditionSpec, raw map[string]interface{}) (*Draft, error) {
	n := &normalizer{
		spec:     spec,
		envelope: make(map[string]candidate),
		data: map[Partition]map[string]interface{}{
			PartCommon:    {},
			PartCondition: {},
		},
		origins: make(map[string]string),
	}

	for _, key := range sortedKeys(raw) {
		n.top(key, raw[key])
	}
	return n.finish()
}

func (n *normalizer) fail(path, reason string) {
	n.errs = append(n.errs, FieldError{Path: path, Reason: reason})
}

func (n *normalizer) top(key string, v interface{}) {
	canon := n.spec.Canonical(key)

	if canon == keyCommonData || canon == keyConditionData {
		if v == nil {
			return
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			n.fail(canon, "must be an object")
			return
		}
		// Declared keys are placed by the schema whichever map carried them.
		for _, sub := range sortedKeys(m) {
			n.field(key+"."+sub, n.spec.Canonical(sub), m[sub])
		}
		return
	}

	// Grouped objects such as {"primarySymptom": {"severity": 7}} flatten
	// into declared keys through dotted aliases.
	if m, ok := v.(map[string]interface{}); ok && n.spec.groups[canon] {
		for _, sub := range sortedKeys(m) {
			dotted := canon + "." + SnakeCase(sub)
			target, ok := n.spec.aliases[dotted]
			if !ok {
				target = canon + "_" + SnakeCase(sub)
			}
			n.field(key+"."+sub, target, m[sub])
		}
		return
	}

	n.field(key, canon, v)
}

func (n *normalizer) field(path, canon string, v interface{}) {
	if v == nil || serverKeys[canon] {
		return
	}
	if envelopeKeys[canon] {
		n.lift(path, canon, v)
		return
	}

	f, part, known := n.spec.Lookup(canon)
	if !known {
		if n.spec.Strict {
			n.fail(path, "unknown field")
			return
		}
		// Undeclared keys always land in condition data so the flat and
		// nested shapes of one entry normalize alike.
		n.put(path, PartCondition, canon, v)
		return
	}

	val, drop, reason := coerce(f, v)
	if reason != "" {
		n.fail(part.String()+"."+canon, reason)
		return
	}
	if drop {
		return
	}
	n.put(path, part, canon, val)
}

func (n *normalizer) put(path string, part Partition, key string, v interface{}) {
	slot := part.String() + "." + key
	m := n.data[part]
	if prev, ok := m[key]; ok {
		if !reflect.DeepEqual(prev, v) {
			n.fail(slot, fmt.Sprintf("conflicting values supplied by %s and %s", n.origins[slot], path))
		}
		return
	}
	m[key] = v
	n.origins[slot] = path
}

func (n *normalizer) lift(path, key string, v interface{}) {
	if key == keySurgeryType {
		key = keyConditionType
	}
	if prev, ok := n.envelope[key]; ok {
		if !reflect.DeepEqual(prev.value, v) {
			n.fail(key, fmt.Sprintf("conflicting values supplied by %s and %s", prev.from, path))
		}
		return
	}
	n.envelope[key] = candidate{value: v, from: path}
}

func (n *normalizer) finish() (*Draft, error) {
	d := &Draft{
		ConditionType: n.spec.Type,
		Status:        DefaultStatus,
		CommonData:    n.data[PartCommon],
		ConditionData: n.data[PartCondition],
	}

	if c, ok := n.envelope[keyPatientID]; ok {
		if id, ok := patientID(c.value); ok {
			d.PatientID = id
		} else {
			n.fail(keyPatientID, "must be a positive integer")
		}
	} else {
		n.fail(keyPatientID, "is required")
	}

	if c, ok := n.envelope[keyPatientName]; ok {
		if s, ok := c.value.(string); ok {
			d.PatientName = strings.TrimSpace(s)
		} else {
			n.fail(keyPatientName, "must be a string")
		}
	}

	if c, ok := n.envelope[keySubmissionDate]; ok {
		s, _ := c.value.(string)
		date, err := ParseDate(strings.TrimSpace(s))
		if err != nil {
			n.fail(keySubmissionDate, err.Error())
		} else {
			d.SubmissionDate = date
		}
	} else {
		n.fail(keySubmissionDate, "is required")
	}

	if c, ok := n.envelope[keyStatus]; ok {
		s, _ := c.value.(string)
		if s != "" {
			st, ok := ParseStatus(s)
			if !ok {
				n.fail(keyStatus, "must be one of good, monitor, urgent")
			} else {
				d.Status = st
			}
		}
	}

	if c, ok := n.envelope[keyConditionType]; ok {
		s, _ := c.value.(string)
		if !n.spec.matchesTag(s) {
			n.fail(keyConditionType, fmt.Sprintf("does not match %s", n.spec.Type))
		}
	}

	if c, ok := n.envelope[keyUrgency]; ok && n.spec.UrgencySource == UrgencyClient {
		s, _ := c.value.(string)
		if s != "" {
			u, ok := ParseUrgency(s)
			if !ok {
				n.fail(keyUrgency, "must be one of low, medium, high")
			} else {
				d.ClaimedUrgency = u
			}
		}
	}

	for _, key := range sortedFieldKeys(n.spec.fields) {
		pf := n.spec.fields[key]
		if !pf.Required {
			continue
		}
		if _, ok := n.data[pf.part][key]; !ok {
			n.fail(pf.part.String()+"."+key, "is required")
		}
	}

	if len(n.errs) > 0 {
		sort.SliceStable(n.errs, func(i, j int) bool { return n.errs[i].Path < n.errs[j].Path })
		return nil, &ValidationError{Fields: n.errs}
	}
	return d, nil
}

// coerce converts v to the canonical Go type for f. drop reports an empty
// value that is treated as absent; a non-empty reason rejects the value.
func coerce(f Field, v interface{}) (out interface{}, drop bool, reason string) {
	switch f.Kind {
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, false, "must be a string"
		}
		return s, false, ""

	case KindNumericString:
		switch x := v.(type) {
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return "", false, ""
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return nil, false, "must be numeric"
			}
			return s, false, ""
		default:
			n, ok := numeric(v)
			if !ok {
				return nil, false, "must be numeric"
			}
			return strconv.FormatFloat(n, 'f', -1, 64), false, ""
		}

	case KindInteger:
		if s, ok := v.(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				return nil, true, ""
			}
			if s == "none" {
				v = 0
			}
		}
		n, ok := numeric(v)
		if !ok || n != math.Trunc(n) {
			return nil, false, "must be an integer"
		}
		if n < f.Min || n > f.Max {
			return nil, false, fmt.Sprintf("must be between %s and %s", fmtBound(f.Min), fmtBound(f.Max))
		}
		return int64(n), false, ""

	case KindNumber:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, true, ""
		}
		n, ok := numeric(v)
		if !ok {
			return nil, false, "must be a number"
		}
		if n < f.Min || n > f.Max {
			return nil, false, fmt.Sprintf("must be between %s and %s", fmtBound(f.Min), fmtBound(f.Max))
		}
		return n, false, ""

	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, false, ""
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes":
				return true, false, ""
			case "false", "no":
				return false, false, ""
			case "":
				return nil, true, ""
			}
		}
		return nil, false, "must be a boolean"

	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, false, "must be a string"
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return nil, true, ""
		}
		if !f.allows(s) {
			return nil, false, "must be one of " + strings.Join(f.Values, ", ")
		}
		return s, false, ""

	case KindEnumList:
		var items []interface{}
		switch x := v.(type) {
		case []interface{}:
			items = x
		case []string:
			for _, s := range x {
				items = append(items, s)
			}
		case string:
			items = []interface{}{x}
		default:
			return nil, false, "must be a list"
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, false, "must be a list of strings"
			}
			s = strings.ToLower(strings.TrimSpace(s))
			if !f.allows(s) {
				return nil, false, fmt.Sprintf("contains %q; allowed values are %s", s, strings.Join(f.Values, ", "))
			}
			out = append(out, s)
		}
		return out, false, ""

	case KindStructured:
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return v, false, ""
		}
		return nil, false, "must be an object or a list"
	}
	return nil, false, "unsupported field kind"
}

// maxExactID is 2^63, the first float64 that no longer fits an int64.
const maxExactID = 9.223372036854775807e18

func patientID(v interface{}) (int64, bool) {
	var text string
	switch x := v.(type) {
	case json.Number:
		text = x.String()
	case string:
		text = strings.TrimSpace(x)
	}
	if text != "" {
		if id, err := strconv.ParseInt(text, 10, 64); err == nil {
			return id, id > 0
		}
	}

	n, ok := numeric(v)
	if !ok || n != math.Trunc(n) || n <= 0 || n >= maxExactID {
		return 0, false
	}
	return int64(n), true
}

func fmtBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldKeys(m map[string]placedField) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
