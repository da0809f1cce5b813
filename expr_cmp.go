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
	"regexp"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

func init() {
	ExprCatalog["eq"] = ExprEQ
	ExprCatalog["lt"] = ExprLT
	ExprCatalog["le"] = ExprLE
	ExprCatalog["gt"] = ExprGT
	ExprCatalog["ge"] = ExprGE
	ExprCatalog["isMember"] = ExprIsMember
	ExprCatalog["regexMatch"] = ExprRegexMatch
	ExprCatalog["regexMatchAny"] = ExprRegexMatchAny
}

// -----------------------------------------------------

func ExprEQ(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprCmp(vars, params, func(cmp int) bool { return cmp == 0 })
}

func ExprLT(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprCmp(vars, params, func(cmp int) bool { return cmp < 0 })
}

func ExprLE(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprCmp(vars, params, func(cmp int) bool { return cmp <= 0 })
}

func ExprGT(vars *base.Vars, params []interface{}) base.ExprFunc {
	return ExprLT(vars, []interface{}{params[1], params[0]})
}

func ExprGE(vars *base.Vars, params []interface{}) base.ExprFunc {
	return ExprLE(vars, []interface{}{params[1], params[0]})
}

// exprCmp compiles a comparison, which yields Missing rather than
// false when the operands are of different value classes, when
// either is missing, or when NaN is involved -- the enclosing
// fillEmpty decides what a Missing comparison means.
func exprCmp(vars *base.Vars, params []interface{},
	decide func(cmp int) bool) base.ExprFunc {
	aFunc := MakeParamFunc(vars, params[0])
	bFunc := MakeParamFunc(vars, params[1])

	cmp := vars.Ctx.ValComparer

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		rv, ok := cmp.CompareSameClass(
			aFunc(env, yieldErr), bFunc(env, yieldErr))
		if !ok {
			return base.ValMissing
		}

		return base.ValBool(decide(rv))
	}
}

// -----------------------------------------------------

// ExprIsMember tests the input against a prepared membership set --
// see MakeInSet. The set is held inline or in an input param slot.
func ExprIsMember(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	set, ok := preparedParam(vars, params[1]).(*InSet)
	if !ok {
		return ExprNothing(vars, nil) // An unbound param slot.
	}

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValMissing
		}

		return base.ValBool(set.Contains(v))
	}
}

// -----------------------------------------------------

func ExprRegexMatch(vars *base.Vars, params []interface{}) base.ExprFunc {
	re := params[0].(*regexp.Regexp)

	return exprRegexMatch(vars, params[1], []*regexp.Regexp{re})
}

// ExprRegexMatchAny tests the input string against a prepared list
// of regexes, as used by a $in with regex items.
func ExprRegexMatchAny(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprRegexMatch(vars, params[1], params[0].([]*regexp.Regexp))
}

func exprRegexMatch(vars *base.Vars, param interface{},
	regexps []*regexp.Regexp) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, param)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValMissing
		}

		if v[0] != '"' {
			return base.ValFalse
		}

		s, err := jsonparser.ParseString(v[1 : len(v)-1])
		if err != nil {
			return base.ValFalse
		}

		for _, re := range regexps {
			if re.MatchString(s) {
				return base.ValTrue
			}
		}

		return base.ValFalse
	}
}
