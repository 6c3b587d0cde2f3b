package filter

// expr is the AST node interface for the SQL-subset grammar in spec.md
// §4.B. Evaluation happens against an env built from a model.Message.
type expr interface {
	eval(env *env) value
}

type orExpr struct{ left, right expr }
type andExpr struct{ left, right expr }
type notExpr struct{ operand expr }

type cmpExpr struct {
	left, right expr
	op          string
}

type inExpr struct {
	operand expr
	set     []value
}

type identExpr struct{ name string }

type litExpr struct{ v value }

func (e *orExpr) eval(env *env) value {
	l := e.left.eval(env)
	r := e.right.eval(env)
	return boolValue(toBool(l) || toBool(r))
}

func (e *andExpr) eval(env *env) value {
	l := e.left.eval(env)
	r := e.right.eval(env)
	return boolValue(toBool(l) && toBool(r))
}

func (e *notExpr) eval(env *env) value {
	return boolValue(!toBool(e.operand.eval(env)))
}

func (e *cmpExpr) eval(env *env) value {
	l := e.left.eval(env)
	r := e.right.eval(env)
	return boolValue(compare(l, r, e.op))
}

func (e *inExpr) eval(env *env) value {
	v := e.operand.eval(env)
	if v.isNull {
		return boolValue(false)
	}
	s := toStringForCompare(v)
	for _, candidate := range e.set {
		if toStringForCompare(candidate) == s {
			return boolValue(true)
		}
	}
	return boolValue(false)
}

func (e *identExpr) eval(env *env) value {
	return env.lookup(e.name)
}

func (e *litExpr) eval(env *env) value {
	return e.v
}

func toBool(v value) bool {
	if v.isNull {
		return false
	}
	if v.isBool {
		return v.b
	}
	return false
}
