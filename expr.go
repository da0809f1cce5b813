package mqlc

import (
	"github.com/couchbase/mqlc/base"
)

// ExprCatalog is the default registry of known expression functions.
var ExprCatalog = map[string]base.ExprCatalogFunc{
	"json":      ExprJson,
	"val":       ExprVal,
	"nothing":   ExprNothing,
	"slot":      ExprSlot,
	"var":       ExprVar,
	"param":     ExprParam,
	"let":       ExprLet,
	"if":        ExprIf,
	"fillEmpty": ExprFillEmpty,
	"and":       ExprAnd,
	"or":        ExprOr,
	"not":       ExprNot,
}

// -----------------------------------------------------

func MakeExprFunc(vars *base.Vars, expr base.Expr) base.ExprFunc {
	return vars.Ctx.ExprCatalog[expr[0].(string)](vars, expr[1:])
}

// MakeParamFunc compiles one param of an expr, which must itself be
// a nested expr.
func MakeParamFunc(vars *base.Vars, param interface{}) base.ExprFunc {
	return MakeExprFunc(vars, param.(base.Expr))
}

// -----------------------------------------------------

func ExprJson(vars *base.Vars, params []interface{}) base.ExprFunc {
	val := base.Val(params[0].(string))

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return val
	}
}

// ExprVal is like ExprJson, but for a constant that is already held
// as Val bytes.
func ExprVal(vars *base.Vars, params []interface{}) base.ExprFunc {
	val := params[0].(base.Val)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return val
	}
}

func ExprNothing(vars *base.Vars, params []interface{}) base.ExprFunc {
	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return base.ValMissing
	}
}

// -----------------------------------------------------

func ExprSlot(vars *base.Vars, params []interface{}) base.ExprFunc {
	slot := params[0].(base.SlotID)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return env.Slots[slot]
	}
}

func ExprVar(vars *base.Vars, params []interface{}) base.ExprFunc {
	frame := params[0].(base.FrameID)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return env.Frames[frame]
	}
}

// ExprParam reads an input param slot of a parameterized plan.
func ExprParam(vars *base.Vars, params []interface{}) base.ExprFunc {
	idx := params[0].(int)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		if v, ok := vars.Param(idx); ok {
			if val, ok := v.(base.Val); ok {
				return val
			}
		}

		return base.ValMissing
	}
}

// -----------------------------------------------------

func ExprLet(vars *base.Vars, params []interface{}) base.ExprFunc {
	frame := params[0].(base.FrameID)
	bindFunc := MakeParamFunc(vars, params[1])
	bodyFunc := MakeParamFunc(vars, params[2])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		prev, hadPrev := env.Frames[frame]

		env.Frames[frame] = bindFunc(env, yieldErr)

		rv := bodyFunc(env, yieldErr)

		if hadPrev {
			env.Frames[frame] = prev
		} else {
			delete(env.Frames, frame)
		}

		return rv
	}
}

// MakeLambdaFunc compiles a one-param lambda expr, such as the 2nd
// param of a traverseF.
func MakeLambdaFunc(vars *base.Vars, param interface{}) base.LambdaFunc {
	expr := param.(base.Expr)
	if expr[0].(string) != "lambda" {
		Panic(200100) // A traversal needs a lambda here.
	}

	frame := expr[1].(base.FrameID)
	bodyFunc := MakeParamFunc(vars, expr[2])

	return func(env *base.Env, yieldErr base.YieldErr,
		arg base.Val) base.Val {
		prev, hadPrev := env.Frames[frame]

		env.Frames[frame] = arg

		rv := bodyFunc(env, yieldErr)

		if hadPrev {
			env.Frames[frame] = prev
		} else {
			delete(env.Frames, frame)
		}

		return rv
	}
}

// -----------------------------------------------------

// ExprIf implements a 3-way conditional, where a condition that is
// neither true nor false yields Missing.
func ExprIf(vars *base.Vars, params []interface{}) base.ExprFunc {
	condFunc := MakeParamFunc(vars, params[0])
	thenFunc := MakeParamFunc(vars, params[1])
	elseFunc := MakeParamFunc(vars, params[2])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		cond := condFunc(env, yieldErr)

		if !isBoolVal(cond) {
			return base.ValMissing
		}

		if cond[0] == 't' {
			return thenFunc(env, yieldErr)
		}

		return elseFunc(env, yieldErr)
	}
}

func ExprFillEmpty(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])
	fillFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		rv := exprFunc(env, yieldErr)
		if len(rv) == 0 {
			rv = fillFunc(env, yieldErr)
		}

		return rv
	}
}

// -----------------------------------------------------

// ExprAnd / ExprOr implement 3-valued, short-circuiting logic. An
// operand that is not a bool poisons the result to Missing, but the
// 2nd operand is never evaluated when the 1st already decides.
func ExprAnd(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprLogic(vars, params, 'f')
}

func ExprOr(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprLogic(vars, params, 't')
}

func exprLogic(vars *base.Vars, params []interface{},
	deciding byte) base.ExprFunc {
	aFunc := MakeParamFunc(vars, params[0])
	bFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		a := aFunc(env, yieldErr)

		if !isBoolVal(a) {
			return base.ValMissing
		}

		if a[0] == deciding {
			return base.ValBool(deciding == 't')
		}

		b := bFunc(env, yieldErr)

		if !isBoolVal(b) {
			return base.ValMissing
		}

		return b
	}
}

func ExprNot(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if !isBoolVal(v) {
			return base.ValMissing
		}

		return base.ValBool(v[0] != 't')
	}
}

// -----------------------------------------------------

// preparedParam resolves a prepared Go value -- a set, a mask, a
// regex list -- that is held either inline in the expr or, for a
// parameterized plan, in an input param slot named by an int.
func preparedParam(vars *base.Vars, p interface{}) interface{} {
	if idx, ok := p.(int); ok {
		v, _ := vars.Param(idx)

		return v
	}

	return p
}

// -----------------------------------------------------

func isBoolVal(v base.Val) bool {
	return len(v) > 0 && (v[0] == 't' || v[0] == 'f')
}
