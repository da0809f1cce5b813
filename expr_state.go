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
	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

func init() {
	ExprCatalog["indexState"] = ExprIndexState
	ExprCatalog["stateBool"] = ExprStateBool
	ExprCatalog["stateIndex"] = ExprStateIndex
}

// -----------------------------------------------------

// An index-tracking plan threads a [matched, index] pair through the
// traversal fold instead of a bare bool. ExprIndexState builds the
// pair, and ExprStateBool / ExprStateIndex read it back out.

func ExprIndexState(vars *base.Vars, params []interface{}) base.ExprFunc {
	boolFunc := MakeParamFunc(vars, params[0])
	idxFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		b := boolFunc(env, yieldErr)
		if len(b) == 0 {
			return base.ValMissing
		}

		idx := idxFunc(env, yieldErr)
		if len(idx) == 0 {
			idx = base.Val("-1")
		}

		rv := make(base.Val, 0, len(b)+len(idx)+3)
		rv = append(rv, '[')
		rv = append(rv, b...)
		rv = append(rv, ',')
		rv = append(rv, idx...)
		rv = append(rv, ']')

		return rv
	}
}

// ExprStateBool passes a bare bool through unchanged, so the same
// plan fragments work whether or not an index is being tracked.
func ExprStateBool(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprStateElem(vars, params, 0, true)
}

func ExprStateIndex(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprStateElem(vars, params, 1, false)
}

func exprStateElem(vars *base.Vars, params []interface{},
	idx int, passBool bool) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		v := exprFunc(env, yieldErr)

		if len(v) == 0 {
			return base.ValMissing
		}

		if v[0] != '[' {
			if passBool && isBoolVal(v) {
				return v
			}

			return base.ValMissing
		}

		elem, eT, _, err := jsonparser.Get(v, "["+string('0'+byte(idx))+"]")
		if err != nil {
			return base.ValMissing
		}

		return rejoin(elem, eT)
	}
}
