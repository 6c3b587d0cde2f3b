package filter

import (
	"strconv"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// value is the evaluator's runtime value: a null-able union of string,
// float64, and bool. Identifiers that don't resolve produce a null value
// (spec.md §4.B: "A missing property resolves to null").
type value struct {
	isNull bool
	isBool bool
	b      bool
	// for non-bool values, s holds the literal/string form and numOK/num
	// hold the parsed numeric form when the literal looks numeric.
	s     string
	numOK bool
	num   float64
}

func nullValue() value      { return value{isNull: true} }
func boolValue(b bool) value { return value{isBool: true, b: b} }

func stringValue(s string) value {
	v := value{s: s}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v.numOK = true
		v.num = f
	}
	return v
}

func numberValue(f float64) value {
	return value{s: strconv.FormatFloat(f, 'g', -1, 64), numOK: true, num: f}
}

// toStringForCompare renders a value for string-equality / IN comparisons.
func toStringForCompare(v value) string {
	if v.isBool {
		if v.b {
			return "true"
		}
		return "false"
	}
	return v.s
}

// compare implements spec.md §4.B: "Comparisons attempt numeric comparison
// first if both sides parse as numbers (with boolean treated as
// non-numeric); otherwise fall back to string comparison. Null participates
// in equality only by failing the predicate."
func compare(l, r value, op string) bool {
	if l.isNull || r.isNull {
		return false
	}
	if !l.isBool && !r.isBool && l.numOK && r.numOK {
		return numCompare(l.num, r.num, op)
	}
	return strCompare(toStringForCompare(l), toStringForCompare(r), op)
}

func numCompare(l, r float64, op string) bool {
	switch op {
	case "=", "==":
		return l == r
	case "!=", "<>":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	default:
		return false
	}
}

func strCompare(l, r, op string) bool {
	switch op {
	case "=", "==":
		return l == r
	case "!=", "<>":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	default:
		return false
	}
}

// env resolves identifiers against the two-scope environment spec.md §4.B
// describes: a "sys." prefix addresses system fields, anything else
// addresses user properties.
type env struct {
	msg *model.Message
}

func newEnv(msg *model.Message) *env { return &env{msg: msg} }

func (e *env) lookup(name string) value {
	if len(name) > 4 && (name[:4] == "sys." || name[:4] == "Sys.") {
		return e.lookupSys(name[4:])
	}
	// Case-insensitive match against the canonical "sys." prefix form too,
	// in case of mixed-case dotted prefixes like "SYS.Label".
	if len(name) > 4 && eqFold(name[:4], "sys.") {
		return e.lookupSys(name[4:])
	}
	if v, ok := e.msg.UserProperties[name]; ok {
		return stringValue(v)
	}
	return nullValue()
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (e *env) lookupSys(field string) value {
	m := e.msg
	switch field {
	case "Label":
		return stringValue(m.Label)
	case "MessageId":
		return stringValue(m.ID)
	case "ContentType":
		return stringValue(m.ContentType)
	case "CorrelationId":
		return stringValue(m.CorrelationID)
	case "To":
		return stringValue(m.To)
	case "ReplyTo":
		return stringValue(m.ReplyTo)
	case "SessionId":
		return stringValue(m.SessionID)
	default:
		return nullValue()
	}
}
