package filter

import (
	"sync"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Evaluate decides whether msg matches f, implementing spec.md §4.B in
// full: always-true/false are trivial; correlation is an AND over
// non-null constraints; SQL expressions are parsed and evaluated by the
// grammar in parser.go. Parse or evaluation failures yield false — the
// evaluator is total and never panics or returns an error.
func Evaluate(f model.Filter, msg *model.Message) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	switch f.Kind {
	case model.FilterTrue:
		return true
	case model.FilterFalse:
		return false
	case model.FilterCorrelation:
		return evaluateCorrelation(f.CorrelationFilter, msg)
	case model.FilterSQL:
		return evaluateSQL(f.SQLExpression, msg)
	default:
		return false
	}
}

func evaluateCorrelation(cf *model.CorrelationFilter, msg *model.Message) bool {
	if cf == nil {
		return true
	}
	if cf.CorrelationID != nil && *cf.CorrelationID != msg.CorrelationID {
		return false
	}
	if cf.ContentType != nil && *cf.ContentType != msg.ContentType {
		return false
	}
	if cf.Label != nil && *cf.Label != msg.Label {
		return false
	}
	if cf.MessageID != nil && *cf.MessageID != msg.ID {
		return false
	}
	if cf.ReplyTo != nil && *cf.ReplyTo != msg.ReplyTo {
		return false
	}
	if cf.SessionID != nil && *cf.SessionID != msg.SessionID {
		return false
	}
	if cf.To != nil && *cf.To != msg.To {
		return false
	}
	for k, want := range cf.UserProperties {
		got, ok := msg.UserProperties[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// exprCache memoizes parsed expressions by their source string: rules are
// evaluated repeatedly (once per publish per subscription), and the SQL
// text rarely changes once a rule is created.
var exprCache sync.Map // map[string]expr

func evaluateSQL(expression string, msg *model.Message) bool {
	if expression == "" {
		return true
	}
	var e expr
	if cached, ok := exprCache.Load(expression); ok {
		e = cached.(expr)
	} else {
		parsed, err := parse(expression)
		if err != nil {
			return false
		}
		exprCache.Store(expression, parsed)
		e = parsed
	}
	return toBool(e.eval(newEnv(msg)))
}
