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
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

func init() {
	ExprCatalog["getField"] = ExprGetField
	ExprCatalog["getArraySize"] = ExprGetArraySize
	ExprCatalog["traverseF"] = ExprTraverseF
}

// -----------------------------------------------------

// ExprGetField reads a field out of an object, yielding Missing when
// the input is not a plain object or the field is absent. A tagged
// extended-JSON object is a scalar here, not an object.
func ExprGetField(vars *base.Vars, params []interface{}) base.ExprFunc {
	objFunc := MakeParamFunc(vars, params[0])
	field := params[1].(string)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		obj := objFunc(env, yieldErr)

		if base.ValTypeMask(obj) != base.TypeObject {
			return base.ValMissing
		}

		v, vT, _, err := jsonparser.Get(obj, field)
		if err != nil {
			return base.ValMissing
		}

		return rejoin(v, vT)
	}
}

func ExprGetArraySize(vars *base.Vars, params []interface{}) base.ExprFunc {
	arrFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		arr := arrFunc(env, yieldErr)

		if len(arr) == 0 || arr[0] != '[' {
			return base.ValMissing
		}

		var n int64

		_, _ = jsonparser.ArrayEach(arr,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				n++
			})

		return base.Val(strconv.AppendInt(nil, n, 10))
	}
}

// -----------------------------------------------------

// ExprTraverseF applies a lambda across the input: to each element
// when the input is an array, once to the input itself otherwise --
// Missing included, which is what lets a predicate against a missing
// field still see the miss. The result is true as soon as any one
// application is true, with the remaining elements unvisited. The
// 3rd param asks for one extra application to the whole array, for
// predicates where an array can match as a single value.
func ExprTraverseF(vars *base.Vars, params []interface{}) base.ExprFunc {
	inputFunc := MakeParamFunc(vars, params[0])
	lambda := MakeLambdaFunc(vars, params[1])
	wholeArray := params[2].(bool)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		input := inputFunc(env, yieldErr)

		if len(input) == 0 || input[0] != '[' {
			return lambda(env, yieldErr, input)
		}

		found := false

		_, _ = jsonparser.ArrayEach(input,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				if !found &&
					base.ValEqualTrue(lambda(env, yieldErr, rejoin(v, vT))) {
					found = true
				}
			})

		if !found && wholeArray {
			found = base.ValEqualTrue(lambda(env, yieldErr, input))
		}

		return base.ValBool(found)
	}
}

// -----------------------------------------------------

// rejoin undoes jsonparser's habit of handing string values to
// callers with their surrounding quotes stripped.
func rejoin(v []byte, vT jsonparser.ValueType) base.Val {
	if vT == jsonparser.String {
		rv := make([]byte, 0, len(v)+2)
		rv = append(rv, '"')
		rv = append(rv, v...)
		rv = append(rv, '"')
		return rv
	}

	if vT == jsonparser.Null {
		return base.ValNull
	}

	return base.Val(v)
}
