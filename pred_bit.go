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

	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

// generateBitTest lowers the four $bits predicates. A binData leaf
// is tested bit-by-bit against the position list; a numeric leaf is
// tested against the equivalent mask, where a non-integral number
// never matches.
func (c *visitCtx) generateBitTest(n *match.Node) {
	posExpr := exprJson(int64sJson(n.BitPositions))
	if n.BitPositionsParam != 0 {
		posExpr = exprFn("param", n.BitPositionsParam)
	}

	maskExpr := exprJson(strconv.FormatInt(n.BitMask, 10))
	if n.BitMaskParam != 0 {
		maskExpr = exprFn("param", n.BitMaskParam)
	}

	numericFn, negate := "bitTestMask", false

	switch n.Kind {
	case match.KindBitsAllClear:
		numericFn = "bitTestZero"
	case match.KindBitsAnySet:
		numericFn, negate = "bitTestZero", true
	case match.KindBitsAnyClear:
		negate = true
	}

	makeExpr := func(in base.Expr) base.Expr {
		numeric := exprFn(numericFn, maskExpr, in)
		if negate {
			numeric = exprNot(numeric)
		}

		return exprIf(
			fillEmptyFalse(exprFn("isBinData", in)),
			fillEmptyFalse(exprFn("bitTestPosition",
				posExpr, in, n.Kind)),
			fillEmptyFalse(numeric))
	}

	c.generatePredicate(n.Path, makeExpr, nil,
		traverseElements, false, true)
}

func int64sJson(nums []int64) string {
	rv := []byte{'['}

	for i, num := range nums {
		if i > 0 {
			rv = append(rv, ',')
		}

		rv = strconv.AppendInt(rv, num, 10)
	}

	return string(append(rv, ']'))
}
