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

var cmpFnNames = map[match.Kind]string{
	match.KindEq:  "eq",
	match.KindLT:  "lt",
	match.KindLTE: "le",
	match.KindGT:  "gt",
	match.KindGTE: "ge",
}

// generateComparison lowers the five comparison predicates. Most
// become one cmp expr under a fillEmpty, but a handful of RHS value
// classes have their own truth tables: MinKey / MaxKey order around
// everything, null also matches a missing leaf, and NaN equals only
// itself.
func (c *visitCtx) generateComparison(n *match.Node) {
	rhsExpr := exprVal(n.Value)
	if n.ParamSlot != 0 {
		// Parameterization never covers the special classes below,
		// so a param RHS always takes the general form.
		rhsExpr = exprFn("param", n.ParamSlot)
	}

	mode := traverseElements
	matchesNothing := false

	var makeExpr func(input base.Expr) base.Expr

	if n.ParamSlot == 0 {
		switch base.ValTypeMask(n.Value) {
		case base.TypeArray:
			// An array RHS can match an array leaf as one value.
			mode = traverseArrayAndItself

		case base.TypeMinKey:
			mode = traverseArrayAndItself
			makeExpr = extremeKeyExpr(n.Kind, "isMinKey", false)

		case base.TypeMaxKey:
			mode = traverseArrayAndItself
			makeExpr = extremeKeyExpr(n.Kind, "isMaxKey", true)

		case base.TypeNull, base.TypeUndefined:
			switch n.Kind {
			case match.KindEq, match.KindLTE, match.KindGTE:
				matchesNothing = true

				makeExpr = func(in base.Expr) base.Expr {
					return exprFn("isNullOrMissing", in)
				}

			default: // Nothing orders strictly around null.
				makeExpr = func(in base.Expr) base.Expr {
					return exprJson("false")
				}
			}

		case base.TypeNumber:
			if f, ok := base.ParseNumber(n.Value); ok && math.IsNaN(f) {
				switch n.Kind {
				case match.KindEq, match.KindLTE, match.KindGTE:
					makeExpr = func(in base.Expr) base.Expr {
						return fillEmptyFalse(exprFn("isNaN", in))
					}

				default:
					makeExpr = func(in base.Expr) base.Expr {
						return exprJson("false")
					}
				}
			}
		}
	}

	if makeExpr == nil {
		op := cmpFnNames[n.Kind]

		makeExpr = func(in base.Expr) base.Expr {
			return fillEmptyFalse(exprFn(op, in, rhsExpr))
		}
	}

	c.generatePredicate(n.Path, makeExpr, nil, mode,
		matchesNothing, true)
}

// extremeKeyExpr is the truth table for comparisons against MinKey.
// MaxKey mirrors it with the comparison direction flipped.
func extremeKeyExpr(kind match.Kind, isFn string,
	mirror bool) func(base.Expr) base.Expr {
	if mirror {
		switch kind {
		case match.KindLT:
			kind = match.KindGT
		case match.KindLTE:
			kind = match.KindGTE
		case match.KindGT:
			kind = match.KindLT
		case match.KindGTE:
			kind = match.KindLTE
		}
	}

	return func(in base.Expr) base.Expr {
		switch kind {
		case match.KindEq, match.KindLTE:
			return fillEmptyFalse(exprFn(isFn, in))

		case match.KindLT:
			return exprJson("false")

		case match.KindGT:
			return fillEmptyFalse(exprNot(exprFn(isFn, in)))

		default: // KindGTE: everything present compares >= MinKey.
			return exprFn("exists", in)
		}
	}
}
