package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talentmanager/talentmanager/pkg/types"
)

// condition is a parsed "column op value" expression.
//
// Supported expressions:
//
//	PerformanceRating <= 2
//	WorkLifeBalance < 3
//	YearsAtCompany >= 10
//	OverTime == Yes
//	Attrition != No
//
// Ordering operators compare numerically and never match a missing or
// non-numeric cell. == and != compare numerically when both sides are
// numbers, and as text otherwise.
type condition struct {
	field string
	op    string
	rhs   string

	num    float64
	hasNum bool
}

func parseCondition(s string) (condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"column op value\"", s)
	}
	c := condition{field: parts[0], op: parts[1], rhs: parts[2]}

	switch c.op {
	case "<", "<=", ">", ">=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.op)
	}

	if f, err := strconv.ParseFloat(c.rhs, 64); err == nil {
		c.num, c.hasNum = f, true
	} else if c.op != "==" && c.op != "!=" {
		return condition{}, fmt.Errorf("condition %q: %s needs a numeric value", s, c.op)
	}
	return c, nil
}

// eval reports whether rec satisfies the condition.
func (c condition) eval(rec types.Record) bool {
	v, _ := rec.Get(c.field)

	switch c.op {
	case "==", "!=":
		var eq bool
		if n, ok := types.Number(v); ok && c.hasNum {
			eq = n == c.num
		} else {
			eq = types.Text(v) == c.rhs
		}
		return eq == (c.op == "==")
	default:
		n, ok := types.Number(v)
		if !ok {
			return false
		}
		return compareFloat(n, c.op, c.num)
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	default:
		return false
	}
}
