//  Copyright (c) 2019 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the
//  License. You may obtain a copy of the License at
//  http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing,
//  software distributed under the License is distributed on an "AS
//  IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
//  express or implied. See the License for the specific language
//  governing permissions and limitations under the License.

package mqlc

import (
	"math"

	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

func init() {
	ExprCatalog["exists"] = ExprExists
	ExprCatalog["isNullOrMissing"] = ExprIsNullOrMissing
	ExprCatalog["isArray"] = exprTypeCheck(base.TypeArray)
	ExprCatalog["isObject"] = exprTypeCheck(base.TypeObject)
	ExprCatalog["isBinData"] = exprTypeCheck(base.TypeBinData)
	ExprCatalog["isMinKey"] = exprTypeCheck(base.TypeMinKey)
	ExprCatalog["isMaxKey"] = exprTypeCheck(base.TypeMaxKey)
	ExprCatalog["isNaN"] = ExprIsNaN
	ExprCatalog["isInfinity"] = ExprIsInfinity
	ExprCatalog["typeMatch"] = ExprTypeMatch
	ExprCatalog["coerceToBool"] = ExprCoerceToBool
	ExprCatalog["runPredicate"] = ExprRunPredicate
	ExprCatalog["evalExpr"] = ExprEvalExpr
}

// -----------------------------------------------------

// ExprExists is the only type check that is total: it yields a bool
// for every input, Missing included.
func ExprExists(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		return base.ValBool(len(exprFunc(env, yieldErr)) > 0)
	}
}

// ExprIsNullOrMissing is likewise total, folding missing, null and
// undefined into one bucket.
func ExprIsNullOrMissing(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValTrue
		}

		switch base.ValTypeMask(v) {
		case base.TypeNull, base.TypeUndefined:
			return base.ValTrue
		}

		return base.ValFalse
	}
}

// -----------------------------------------------------

func exprTypeCheck(mask base.TypeMask) base.ExprCatalogFunc {
	return func(vars *base.Vars, params []interface{}) base.ExprFunc {
		exprFunc := MakeParamFunc(vars, params[0])

		return func(env *base.Env, yieldErr base.YieldErr) base.Val {
			v := exprFunc(env, yieldErr)

			if len(v) == 0 {
				return base.ValMissing
			}

			return base.ValBool(base.ValTypeMask(v) == mask)
		}
	}
}

func ExprIsNaN(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprFloatCheck(vars, params, math.IsNaN)
}

func ExprIsInfinity(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprFloatCheck(vars, params, func(f float64) bool {
		return math.IsInf(f, 0)
	})
}

func exprFloatCheck(vars *base.Vars, params []interface{},
	check func(float64) bool) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValMissing
		}

		f, ok := base.ParseNumber(v)
		if !ok {
			return base.ValFalse
		}

		return base.ValBool(check(f))
	}
}

// ExprTypeMatch tests the input's type against a mask, which is held
// as a prepared base.TypeMask, inline or in an input param slot.
func ExprTypeMatch(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	mask, ok := preparedParam(vars, params[1]).(base.TypeMask)
	if !ok {
		return ExprNothing(vars, nil) // An unbound param slot.
	}

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValMissing
		}

		return base.ValBool(base.ValTypeMask(v)&mask != 0)
	}
}

// -----------------------------------------------------

// ExprCoerceToBool applies the truthiness rule of the embedded
// scalar-expression language: false, null, missing and 0 are false,
// everything else is true.
func ExprCoerceToBool(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValFalse
		}

		switch base.JsonTypes[v[0]] {
		case "null":
			return base.ValFalse
		case "bool":
			return base.ValBool(v[0] == 't')
		case "number":
			f, _ := base.ParseNumber(v)
			return base.ValBool(f != 0)
		}

		return base.ValTrue
	}
}

// -----------------------------------------------------

// ExprRunPredicate invokes a prepared host predicate, as supplied to
// a $where node, against its input value.
func ExprRunPredicate(vars *base.Vars, params []interface{}) base.ExprFunc {
	fn := params[0].(match.WhereFn)
	exprFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		ok, err := fn(exprFunc(env, yieldErr))
		if err != nil {
			yieldErr(err)

			return base.ValMissing
		}

		return base.ValBool(ok)
	}
}

// ExprEvalExpr invokes a prepared evaluator for an embedded scalar
// sub-expression, as supplied to a $expr node.
func ExprEvalExpr(vars *base.Vars, params []interface{}) base.ExprFunc {
	fn := params[0].(match.ExprEvalFn)
	exprFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v, err := fn(exprFunc(env, yieldErr))
		if err != nil {
			yieldErr(err)

			return base.ValMissing
		}

		return v
	}
}
