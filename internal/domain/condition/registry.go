package condition

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is the read-only catalog of condition specs. It is built once at
// startup and never mutated afterwards, so it is safe for concurrent use.
type Registry struct {
	specs map[string]*ConditionSpec
	order []string
}

// Aliases applied to every condition unless a spec overrides the same key.
var sharedAliases = map[string]string{
	"systolic":           "blood_pressure_systolic",
	"bp_systolic":        "blood_pressure_systolic",
	"systolic_bp":        "blood_pressure_systolic",
	"diastolic":          "blood_pressure_diastolic",
	"bp_diastolic":       "blood_pressure_diastolic",
	"diastolic_bp":       "blood_pressure_diastolic",
	"hr":                 "heart_rate",
	"pulse":              "heart_rate",
	"rr":                 "respiratory_rate",
	"temp":               "temperature",
	"spo2":               "oxygen_saturation",
	"o2_saturation":      "oxygen_saturation",
	"date":               "submission_date",
	"entry_date":         "submission_date",
	"name":               "patient_name",
	"surgery":            "surgery_type",
	"urgency":            "urgency_status",
	"common":             "common_data",
	"condition":          "condition_data",
	"condition_specific": "condition_data",
}

// NewRegistry validates and indexes specs. Types and route prefixes must be
// unique, enum fields must list their values, and every field an urgency
// rule reads must be declared by the spec.
func NewRegistry(specs ...ConditionSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*ConditionSpec, len(specs))}
	prefixes := make(map[string]string)

	for i := range specs {
		s := specs[i]
		if s.Type == "" || s.Type != SnakeCase(s.Type) {
			return nil, fmt.Errorf("condition type %q must be non-empty snake_case", s.Type)
		}
		if _, dup := r.specs[s.Type]; dup {
			return nil, fmt.Errorf("condition %q registered twice", s.Type)
		}
		if !strings.HasPrefix(s.Prefix, "/") {
			return nil, fmt.Errorf("condition %q: route prefix %q must start with /", s.Type, s.Prefix)
		}
		if other, dup := prefixes[s.Prefix]; dup {
			return nil, fmt.Errorf("conditions %q and %q share route prefix %s", other, s.Type, s.Prefix)
		}
		prefixes[s.Prefix] = s.Type
		if s.UrgencySource == "" {
			s.UrgencySource = UrgencyComputed
		}
		if s.UrgencySource == UrgencyClient && s.Rule != nil {
			return nil, fmt.Errorf("condition %q: client-sourced urgency cannot carry a rule", s.Type)
		}
		if err := s.index(); err != nil {
			return nil, fmt.Errorf("condition %q: %w", s.Type, err)
		}
		if err := s.checkRule(); err != nil {
			return nil, fmt.Errorf("condition %q: %w", s.Type, err)
		}

		r.specs[s.Type] = &s
		r.order = append(r.order, s.Type)
	}

	sort.Strings(r.order)
	return r, nil
}

// MustRegistry is NewRegistry for package-level catalogs; it panics on an
// invalid spec.
func MustRegistry(specs ...ConditionSpec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (s *ConditionSpec) index() error {
	s.fields = make(map[string]placedField)
	for _, part := range []struct {
		schema Schema
		part   Partition
	}{{s.Common, PartCommon}, {s.Condition, PartCondition}} {
		for _, f := range part.schema {
			if f.Key != SnakeCase(f.Key) {
				return fmt.Errorf("field %q must be snake_case", f.Key)
			}
			if envelopeKeys[f.Key] || serverKeys[f.Key] {
				return fmt.Errorf("field %q collides with an envelope key", f.Key)
			}
			if (f.Kind == KindEnum || f.Kind == KindEnumList) && len(f.Values) == 0 {
				return fmt.Errorf("enum field %q has no values", f.Key)
			}
			// Condition fields override a common field of the same key.
			s.fields[f.Key] = placedField{Field: f, part: part.part}
		}
	}

	s.aliases = make(map[string]string, len(sharedAliases)+len(s.Aliases))
	for k, v := range sharedAliases {
		s.aliases[k] = v
	}
	s.groups = make(map[string]bool)
	for k, v := range s.Aliases {
		s.aliases[k] = v
		if group, _, ok := strings.Cut(k, "."); ok {
			s.groups[group] = true
		}
	}
	return nil
}

func (s *ConditionSpec) checkRule() error {
	if s.Rule == nil {
		return nil
	}
	if s.Rule.Medium <= 0 || s.Rule.High < s.Rule.Medium {
		return fmt.Errorf("rule thresholds must satisfy 0 < medium <= high")
	}
	for _, p := range s.Rule.Predicates {
		if _, ok := s.fields[p.Field]; !ok {
			return fmt.Errorf("rule reads undeclared field %q", p.Field)
		}
		if len(p.Steps) == 0 {
			return fmt.Errorf("rule predicate on %q has no steps", p.Field)
		}
		for _, st := range p.Steps {
			if st.Points < 0 {
				return fmt.Errorf("rule predicate on %q has negative points", p.Field)
			}
		}
	}
	return nil
}

// Lookup returns the spec for a condition type.
func (r *Registry) Lookup(conditionType string) (*ConditionSpec, bool) {
	s, ok := r.specs[conditionType]
	return s, ok
}

// Types returns every registered condition type in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns every registered spec sorted by type.
func (r *Registry) Specs() []*ConditionSpec {
	out := make([]*ConditionSpec, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.specs[t])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
