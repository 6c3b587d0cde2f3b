package filter

import (
	"testing"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

func msgWith(label string, props map[string]string) *model.Message {
	return &model.Message{Label: label, UserProperties: props}
}

func TestEvaluate_AlwaysTrueFalse(t *testing.T) {
	m := msgWith("order", nil)
	if !Evaluate(model.Filter{Kind: model.FilterTrue}, m) {
		t.Error("always-true filter should match")
	}
	if Evaluate(model.Filter{Kind: model.FilterFalse}, m) {
		t.Error("always-false filter should not match")
	}
}

// TestEvaluate_S6 exercises spec.md scenario S6 verbatim.
func TestEvaluate_S6(t *testing.T) {
	m := &model.Message{Label: "order", UserProperties: map[string]string{"qty": "150"}}

	f1 := model.Filter{Kind: model.FilterSQL, SQLExpression: "sys.Label = 'order' AND qty > 100"}
	if !Evaluate(f1, m) {
		t.Error("expected sys.Label = 'order' AND qty > 100 to match")
	}

	f2 := model.Filter{Kind: model.FilterSQL, SQLExpression: "color IN ('red','blue')"}
	if Evaluate(f2, m) {
		t.Error("expected color IN (...) to not match when property absent")
	}

	f3 := model.Filter{Kind: model.FilterSQL, SQLExpression: "this is not sql"}
	if Evaluate(f3, m) {
		t.Error("expected unparsable expression to evaluate to false, not panic")
	}
}

func TestEvaluate_NumericVsStringComparison(t *testing.T) {
	m := &model.Message{UserProperties: map[string]string{"qty": "150", "color": "red"}}

	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "qty > 100"}, m) {
		t.Error("numeric comparison 150 > 100 should be true")
	}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "color = 'red'"}, m) {
		t.Error("string comparison should be true")
	}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "color > 100"}, m) {
		t.Error("comparing a non-numeric string to a number should fall back to string compare, where \"red\" > \"100\" is true")
	}
}

func TestEvaluate_NullAlwaysFailsEquality(t *testing.T) {
	m := &model.Message{}
	if Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "missing = 'x'"}, m) {
		t.Error("comparison against a missing (null) property must be false")
	}
	if Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "missing != 'x'"}, m) {
		t.Error("null must fail != too, not just =")
	}
}

func TestEvaluate_NotAndParens(t *testing.T) {
	m := &model.Message{UserProperties: map[string]string{"a": "1", "b": "2"}}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "NOT (a = 2)"}, m) {
		t.Error("NOT (a = 2) should be true since a is 1")
	}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "(a = 1 OR b = 1) AND NOT (a = 2)"}, m) {
		t.Error("expected complex parenthesized expression to evaluate true")
	}
}

func TestEvaluate_OperatorPrecedence(t *testing.T) {
	m := &model.Message{UserProperties: map[string]string{"a": "1", "b": "2", "c": "3"}}
	// AND binds tighter than OR: "a=9 OR b=2 AND c=9" => a=9 OR (b=2 AND c=9) => false OR false => false
	if Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "a = 9 OR b = 2 AND c = 9"}, m) {
		t.Error("AND should bind tighter than OR")
	}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "a = 9 OR b = 2 AND c = 3"}, m) {
		t.Error("expected a = 9 OR (b = 2 AND c = 3) to be true")
	}
}

func TestEvaluate_CaseInsensitiveKeywords(t *testing.T) {
	m := &model.Message{UserProperties: map[string]string{"a": "1"}}
	if !Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: "a = 1 and not (a = 2)"}, m) {
		t.Error("lowercase keywords should parse the same as uppercase")
	}
}

func TestEvaluate_Correlation(t *testing.T) {
	label := "order"
	cf := &model.CorrelationFilter{Label: &label, UserProperties: map[string]string{"priority": "high"}}
	f := model.Filter{Kind: model.FilterCorrelation, CorrelationFilter: cf}

	match := &model.Message{Label: "order", UserProperties: map[string]string{"priority": "high"}}
	if !Evaluate(f, match) {
		t.Error("expected correlation filter to match")
	}

	noMatch := &model.Message{Label: "order", UserProperties: map[string]string{"priority": "low"}}
	if Evaluate(f, noMatch) {
		t.Error("expected correlation filter to reject mismatched property")
	}

	missingProp := &model.Message{Label: "order"}
	if Evaluate(f, missingProp) {
		t.Error("expected correlation filter to reject when user property absent")
	}
}

func TestEvaluate_Total_NeverPanics(t *testing.T) {
	inputs := []string{
		"", "(", ")", "AND", "a = ", "= 1", "a IN", "a IN (", "((((",
		"1 = 1 = 1", "NOT", "a IN (1,2,", "\"unterminated",
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Evaluate panicked on input %q: %v", in, r)
				}
			}()
			Evaluate(model.Filter{Kind: model.FilterSQL, SQLExpression: in}, &model.Message{})
		}()
	}
}
