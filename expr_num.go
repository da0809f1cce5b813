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
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

func init() {
	ExprCatalog["trunc"] = ExprTrunc
	ExprCatalog["toInt64"] = ExprToInt64
	ExprCatalog["mod"] = ExprMod
	ExprCatalog["add"] = ExprAdd
	ExprCatalog["bitTestMask"] = ExprBitTestMask
	ExprCatalog["bitTestZero"] = ExprBitTestZero
	ExprCatalog["bitTestPosition"] = ExprBitTestPosition
}

// -----------------------------------------------------

func ExprTrunc(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		f, ok := base.ParseNumber(exprFunc(env, yieldErr))
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return base.ValMissing
		}

		return formatFloat(math.Trunc(f))
	}
}

// ExprToInt64 converts losslessly or not at all: a number with a
// fractional part, or one outside the int64 range, yields Missing.
func ExprToInt64(vars *base.Vars, params []interface{}) base.ExprFunc {
	exprFunc := MakeParamFunc(vars, params[0])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		n, ok := valInt64(exprFunc(env, yieldErr))
		if !ok {
			return base.ValMissing
		}

		return base.Val(strconv.AppendInt(nil, n, 10))
	}
}

func ExprMod(vars *base.Vars, params []interface{}) base.ExprFunc {
	aFunc := MakeParamFunc(vars, params[0])
	bFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		a, aOk := valInt64(aFunc(env, yieldErr))
		b, bOk := valInt64(bFunc(env, yieldErr))

		if !aOk || !bOk || b == 0 {
			return base.ValMissing
		}

		return base.Val(strconv.AppendInt(nil, a%b, 10))
	}
}

func ExprAdd(vars *base.Vars, params []interface{}) base.ExprFunc {
	aFunc := MakeParamFunc(vars, params[0])
	bFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		a, aOk := base.ParseNumber(aFunc(env, yieldErr))
		b, bOk := base.ParseNumber(bFunc(env, yieldErr))

		if !aOk || !bOk {
			return base.ValMissing
		}

		return formatFloat(a + b)
	}
}

// -----------------------------------------------------

func ExprBitTestMask(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprBitTestNumeric(vars, params, false)
}

func ExprBitTestZero(vars *base.Vars, params []interface{}) base.ExprFunc {
	return exprBitTestNumeric(vars, params, true)
}

func exprBitTestNumeric(vars *base.Vars, params []interface{},
	wantZero bool) base.ExprFunc {
	maskFunc := MakeParamFunc(vars, params[0])
	valFunc := MakeParamFunc(vars, params[1])

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		mask, maskOk := valInt64(maskFunc(env, yieldErr))
		v, vOk := valInt64(valFunc(env, yieldErr))

		if !maskOk || !vOk {
			return base.ValMissing
		}

		if wantZero {
			return base.ValBool(v&mask == 0)
		}

		return base.ValBool(v&mask == mask)
	}
}

// ExprBitTestPosition tests individual bit positions of a binData
// value, with positions past the end of the data reading as clear.
// The positions come in as an expr yielding an array of ints, so a
// parameterized plan can swap them at runtime.
func ExprBitTestPosition(vars *base.Vars, params []interface{}) base.ExprFunc {
	posFunc := MakeParamFunc(vars, params[0])
	valFunc := MakeParamFunc(vars, params[1])
	kind := params[2].(match.Kind)

	return func(env *base.Env, yieldErr base.YieldErr) base.Val {
		positions, ok := valInt64s(posFunc(env, yieldErr))
		if !ok {
			return base.ValMissing
		}

		raw, _, ok := base.BinDataBytes(valFunc(env, yieldErr))
		if !ok {
			return base.ValMissing
		}

		anySet, anyClear := false, false

		for _, pos := range positions {
			set := false

			if byteAt := pos / 8; pos >= 0 && byteAt < int64(len(raw)) {
				set = raw[byteAt]&(1<<uint(pos%8)) != 0
			}

			if set {
				anySet = true
			} else {
				anyClear = true
			}
		}

		switch kind {
		case match.KindBitsAllSet:
			return base.ValBool(!anyClear)
		case match.KindBitsAllClear:
			return base.ValBool(!anySet)
		case match.KindBitsAnySet:
			return base.ValBool(anySet)
		}

		return base.ValBool(anyClear)
	}
}

// -----------------------------------------------------

func formatFloat(f float64) base.Val {
	return base.Val(strconv.AppendFloat(nil, f, 'f', -1, 64))
}

func valInt64(v base.Val) (int64, bool) {
	f, ok := base.ParseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) ||
		f != math.Trunc(f) ||
		f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

func valInt64s(v base.Val) (rv []int64, ok bool) {
	if len(v) == 0 || v[0] != '[' {
		return nil, false
	}

	ok = true

	_, _ = jsonparser.ArrayEach(v,
		func(item []byte, vT jsonparser.ValueType, o int, vErr error) {
			n, itemOk := valInt64(rejoin(item, vT))
			if !itemOk {
				ok = false
				return
			}

			rv = append(rv, n)
		})

	return rv, ok
}
