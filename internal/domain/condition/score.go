package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op is how a predicate compares a field against its steps.
type Op int

const (
	// OpAtLeast matches the first step whose Bound is <= the value.
	OpAtLeast Op = iota + 1
	// OpAtMost matches the first step whose Bound is >= the value.
	OpAtMost
	// OpEquals matches the first step listing the value verbatim.
	OpEquals
	// OpContains matches the first step with a phrase contained in the value.
	OpContains
)

// Step is one rung of a predicate. Numeric ops use Bound, text ops use
// Phrases.
type Step struct {
	Bound   float64
	Phrases []string
	Points  int
}

// Predicate contributes the points of its first matching step. A missing or
// unparseable field contributes nothing.
type Predicate struct {
	Field string
	Op    Op
	Steps []Step
}

// Rule is an ordered predicate list plus the score thresholds for the
// medium and high categories.
type Rule struct {
	Predicates []Predicate
	High       int
	Medium     int
}

// Contribution is one line of the urgency audit trail.
type Contribution struct {
	Field  string      `json:"field"`
	Value  interface{} `json:"value"`
	Points int         `json:"points"`
	Reason string      `json:"reason"`
}

// Assessment is the scorer's result.
type Assessment struct {
	Urgency Urgency        `json:"urgency_status"`
	Score   int            `json:"score"`
	Trail   []Contribution `json:"trail"`
}

// Score evaluates rule against the union of both payload maps. A nil rule
// scores low. Score performs no I/O and depends on nothing but its inputs.
func Score(rule *Rule, common, cond map[string]interface{}) Assessment {
	a := Assessment{Urgency: UrgencyLow, Trail: []Contribution{}}
	if rule == nil {
		return a
	}

	for _, p := range rule.Predicates {
		v, ok := cond[p.Field]
		if !ok {
			v, ok = common[p.Field]
		}
		if !ok || v == nil {
			continue
		}
		if c, hit := p.evaluate(v); hit {
			a.Score += c.Points
			a.Trail = append(a.Trail, c)
		}
	}

	switch {
	case a.Score >= rule.High:
		a.Urgency = UrgencyHigh
	case a.Score >= rule.Medium:
		a.Urgency = UrgencyMedium
	}
	return a
}

// Assess produces the urgency for a normalized draft: scored for computed
// conditions, copied from the payload for client-sourced ones.
func Assess(spec *ConditionSpec, d *Draft) Assessment {
	if spec.UrgencySource == UrgencyClient {
		u := d.ClaimedUrgency
		if u == "" {
			u = UrgencyLow
		}
		return Assessment{
			Urgency: u,
			Trail: []Contribution{{
				Field:  "urgency_status",
				Value:  string(u),
				Reason: "supplied by client",
			}},
		}
	}
	return Score(spec.Rule, d.CommonData, d.ConditionData)
}

func (p Predicate) evaluate(v interface{}) (Contribution, bool) {
	switch p.Op {
	case OpAtLeast, OpAtMost:
		n, ok := numeric(v)
		if !ok {
			return Contribution{}, false
		}
		for _, s := range p.Steps {
			if (p.Op == OpAtLeast && n >= s.Bound) || (p.Op == OpAtMost && n <= s.Bound) {
				sym := ">="
				if p.Op == OpAtMost {
					sym = "<="
				}
				return Contribution{
					Field:  p.Field,
					Value:  v,
					Points: s.Points,
					Reason: fmt.Sprintf("%s %s %s", p.Field, sym, strconv.FormatFloat(s.Bound, 'f', -1, 64)),
				}, true
			}
		}
	case OpEquals, OpContains:
		text, ok := v.(string)
		if !ok {
			return Contribution{}, false
		}
		text = strings.ToLower(strings.TrimSpace(text))
		for _, s := range p.Steps {
			for _, phrase := range s.Phrases {
				if (p.Op == OpEquals && text == phrase) || (p.Op == OpContains && strings.Contains(text, phrase)) {
					verb := "is"
					if p.Op == OpContains {
						verb = "mentions"
					}
					return Contribution{
						Field:  p.Field,
						Value:  v,
						Points: s.Points,
						Reason: fmt.Sprintf("%s %s %q", p.Field, verb, phrase),
					}, true
				}
			}
		}
	}
	return Contribution{}, false
}

// numeric reads a number from the shapes stored payloads hold: Go numbers
// from the normalizer, float64 or json.Number after a JSON round trip, and
// numeric strings for readings such as blood pressure.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
