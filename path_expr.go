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
	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

// traverseMode says what a leaf predicate applies to when the last
// path component lands on an array.
type traverseMode int

const (
	// traverseNone applies the predicate to the leaf value as-is,
	// arrays included, as $size and $exists want.
	traverseNone traverseMode = iota

	// traverseElements applies the predicate to each array element.
	traverseElements

	// traverseArrayAndItself additionally tries the whole array as
	// one value, as an equality against an array literal wants.
	traverseArrayAndItself
)

// makePredicateFn builds the leaf predicate over a slot holding the
// leaf value, optionally extending the stage under construction.
type makePredicateFn func(inputSlot base.SlotID,
	inputStage *base.Stage) (base.Expr, *base.Stage)

// -----------------------------------------------------

// generatePredicate is the common entry for every path predicate. It
// routes between the expr form -- a single traverseF-based expr,
// preferred when the predicate is expressible as one and the state
// is a plain bool -- and the stage form of generateTraverseStage.
//
// A nil makeExpr forces the stage form; a nil makePred is derived
// from makeExpr. matchesNothing marks predicates that hold for a
// missing leaf, such as an equality to null, which changes how a
// scalar met mid-path is treated.
func (c *visitCtx) generatePredicate(path match.Path,
	makeExpr func(input base.Expr) base.Expr, makePred makePredicateFn,
	mode traverseMode, matchesNothing, useCombinator bool) {
	frame := c.topFrame()

	if makePred == nil {
		makePred = func(inputSlot base.SlotID,
			inputStage *base.Stage) (base.Expr, *base.Stage) {
			return makeExpr(exprSlot(inputSlot)), inputStage
		}
	}

	// Under a value $elemMatch the predicate applies straight to
	// the element slot, with no path of its own.
	if frame.childOfElemMatchValue {
		PanicIf(frame.inputSlot == 0, 100010)

		expr, stage := makePred(frame.inputSlot, frame.takeStage())

		if useCombinator {
			expr = c.state.MakeState(expr)
		}

		frame.stage = stage
		frame.pushExpr(expr)

		return
	}

	PanicIf(path.Empty(), 100011)

	var topSlot base.SlotID

	if c.fieldSlots != nil && frame.inputSlot == c.inputSlot {
		if c.overScan {
			// Over an index scan the full dotted path is a slot the
			// scan fills exactly, so no traversal happens at all.
			if slot, ok := c.fieldSlots[path.Dotted()]; ok {
				expr, stage := makePred(slot, frame.takeStage())

				if useCombinator {
					expr = c.state.MakeState(expr)
				}

				frame.stage = stage
				frame.pushExpr(expr)

				return
			}
		}

		topSlot = c.fieldSlots[path.Part(0)]
	}

	if makeExpr != nil && !c.state.StateContainsValue() {
		var input base.Expr

		if topSlot == 0 {
			PanicIf(frame.inputSlot == 0, 100012)

			input = exprSlot(frame.inputSlot)
		}

		expr := c.generateTraverseExpr(input, topSlot, path, 0,
			makeExpr, mode, matchesNothing)

		frame.pushExpr(c.state.MakeState(expr))

		return
	}

	expr, stage := c.generateTraverseStage(frame.takeStage(),
		frame.inputSlot, topSlot, path, 0, makePred, mode,
		useCombinator)

	frame.stage = stage
	frame.pushExpr(expr)
}

// -----------------------------------------------------

// generateTraverseExpr lowers one path component into nested
// traverseF applications, recursing a level deeper per component.
// The input expr is the enclosing document, or nil at level 0 when
// topSlot already holds the top-level field's value.
func (c *visitCtx) generateTraverseExpr(input base.Expr,
	topSlot base.SlotID, path match.Path, level int,
	makeExpr func(input base.Expr) base.Expr,
	mode traverseMode, matchesNothing bool) base.Expr {
	// A trailing empty component, as in "a.", collapses into its
	// parent level: an array at the parent traverses as usual, and
	// anything else reads its ""-named field.
	childIsLeafEmpty := level == path.NumParts()-2 &&
		path.Part(level+1) == ""

	isLeaf := level == path.NumParts()-1 || childIsLeafEmpty

	var fieldExpr base.Expr

	if topSlot != 0 {
		fieldExpr = exprSlot(topSlot)
	} else {
		fieldExpr = exprFn("getField", input, path.Part(level))
	}

	if childIsLeafEmpty {
		f := base.NextFrameID()

		fieldExpr = exprLet(f, fieldExpr,
			exprIf(fillEmptyFalse(exprFn("isArray", exprVarRef(f))),
				exprVarRef(f),
				exprFn("getField", exprVarRef(f), "")))
	}

	if isLeaf && mode == traverseNone {
		f := base.NextFrameID()

		return exprLet(f, fieldExpr, makeExpr(exprVarRef(f)))
	}

	lambdaFrame := base.NextFrameID()
	lambdaVar := exprVarRef(lambdaFrame)

	var resultExpr base.Expr

	if isLeaf {
		resultExpr = makeExpr(lambdaVar)
	} else {
		resultExpr = c.generateTraverseExpr(lambdaVar, 0, path,
			level+1, makeExpr, mode, matchesNothing)

		if matchesNothing {
			// A predicate that holds for a missing leaf must not
			// hold for a scalar array element mid-path, only for
			// elements the deeper levels can descend into.
			resultExpr = exprIf(
				fillEmptyFalse(exprFn("isObject", lambdaVar)),
				resultExpr,
				exprJson("false"))
		}
	}

	needsArrayCheck := isLeaf && mode == traverseArrayAndItself
	needsNothingCheck := !isLeaf && matchesNothing

	var bindFrame base.FrameID
	boundField := fieldExpr

	if needsNothingCheck {
		bindFrame = base.NextFrameID()
		fieldExpr = exprVarRef(bindFrame)
	}

	rv := fillEmptyFalse(exprFn("traverseF", fieldExpr,
		exprLambda(lambdaFrame, resultExpr), needsArrayCheck))

	if needsNothingCheck {
		// A mid-path miss -- a scalar or a missing field -- matches,
		// unless the enclosing value is an array, whose scalar
		// elements never do.
		alt := exprJson("true")

		if input != nil {
			alt = exprNot(fillEmptyFalse(exprFn("isArray", input)))
		}

		rv = exprIf(
			fillEmptyFalse(exprFn("typeMatch", fieldExpr,
				base.TypeObject|base.TypeArray)),
			rv,
			alt)

		rv = exprLet(bindFrame, boundField, rv)
	}

	return rv
}
