package assignment

import (
	"strconv"
	"strings"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// Matches reports whether the lead document satisfies every condition of
// the rule. An empty criteria list matches unconditionally. Conditions
// are ANDed; the first failing condition short-circuits. The function is
// deterministic and has no side effects.
func Matches(rule *models.AssignmentRule, doc map[string]any) bool {
	for _, c := range rule.Criteria {
		if !evalCondition(c, doc) {
			return false
		}
	}
	return true
}

func evalCondition(c models.Condition, doc map[string]any) bool {
	op, err := models.NormalizeOperator(string(c.Operator))
	if err != nil {
		// Rules with unknown operators are rejected at decode time; a
		// condition that still carries one must not match anything.
		return false
	}

	val, ok := resolvePath(doc, c.Field)

	switch op {
	case models.OpEquals:
		return ok && looseEqual(val, c.Value)
	case models.OpNotEquals:
		return !ok || !looseEqual(val, c.Value)
	case models.OpContains:
		s, isStr := val.(string)
		want, wantStr := c.Value.(string)
		if !ok || !isStr || !wantStr {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(want))
	case models.OpGreaterThan:
		a, aok := toFloat(val)
		b, bok := toFloat(c.Value)
		return ok && aok && bok && a > b
	case models.OpLessThan:
		a, aok := toFloat(val)
		b, bok := toFloat(c.Value)
		return ok && aok && bok && a < b
	case models.OpIn:
		if !ok {
			return false
		}
		list, isList := c.Value.([]any)
		if !isList {
			return false
		}
		for _, item := range list {
			if looseEqual(val, item) {
				return true
			}
		}
		return false
	}
	return false
}

// resolvePath walks a dot-separated path through nested maps. A missing
// segment yields absent, not an error.
func resolvePath(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// looseEqual compares two scalars the way criteria authors expect:
// numbers compare numerically regardless of Go type, everything else
// compares by string form.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return toString(a) == toString(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case nil:
		return ""
	default:
		return ""
	}
}
