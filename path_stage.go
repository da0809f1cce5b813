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

// generateTraverseStage is the stage-form counterpart of
// generateTraverseExpr, used when the predicate needs stages of its
// own ($elemMatch) or when the state carries an array index, which a
// pure expr can't thread through a traversal. One path component
// becomes one traverse stage, whose inner branch recurses a level
// deeper over the rebound element slot.
func (c *visitCtx) generateTraverseStage(inputStage *base.Stage,
	inputDocSlot, topSlot base.SlotID, path match.Path, level int,
	makePred makePredicateFn, mode traverseMode,
	useCombinator bool) (base.Expr, *base.Stage) {
	childIsLeafEmpty := level == path.NumParts()-2 &&
		path.Part(level+1) == ""

	isLeaf := level == path.NumParts()-1 || childIsLeafEmpty

	needsArrayCheck := isLeaf && mode == traverseArrayAndItself

	var fieldExpr base.Expr

	if topSlot != 0 {
		fieldExpr = exprSlot(topSlot)
	} else {
		PanicIf(inputDocSlot == 0, 100030)

		fieldExpr = exprFn("getField", exprSlot(inputDocSlot),
			path.Part(level))
	}

	if childIsLeafEmpty {
		f := base.NextFrameID()

		fieldExpr = exprLet(f, fieldExpr,
			exprIf(fillEmptyFalse(exprFn("isArray", exprVarRef(f))),
				exprVarRef(f),
				exprFn("getField", exprVarRef(f), "")))
	}

	inputSlot := base.NextSlotID()

	fromBranch := makeProject(inputStage, inputSlot, fieldExpr)

	if isLeaf && mode == traverseNone {
		expr, stage := makePred(inputSlot, fromBranch)

		if useCombinator {
			expr = c.state.MakeState(expr)
		}

		return expr, stage
	}

	traverseInputSlot := inputSlot

	// The whole-array case doubles the row: the first copy carries
	// the value for the element-wise pass, the second a Nothing
	// placeholder under which the predicate sees the whole array.
	// The limit 1 below keeps the second copy from running when the
	// element-wise pass already matched.
	var loopJoinFrom *base.Stage

	if needsArrayCheck {
		loopJoinFrom = fromBranch

		slotA := base.NextSlotID()
		branchA := makeProject(nil, slotA, exprSlot(inputSlot))

		slotB := base.NextSlotID()
		branchB := makeProject(nil, slotB, exprFn("nothing"))

		traverseInputSlot = base.NextSlotID()

		fromBranch = makeUnion(branchA, branchB,
			traverseInputSlot, slotA, slotB)
	}

	var isArrSlot base.SlotID

	if needsArrayCheck || !isLeaf || c.state.StateContainsValue() {
		isArrSlot = base.NextSlotID()

		fromBranch = makeProject(fromBranch, isArrSlot,
			fillEmptyFalse(exprFn("isArray",
				exprSlot(traverseInputSlot))))
	}

	innerInputSlot := traverseInputSlot

	var innerBranch *base.Stage

	if needsArrayCheck {
		// Per inner row, pick the current element, or the whole
		// array for the placeholder copy.
		innerInputSlot = base.NextSlotID()

		innerBranch = makeProject(nil, innerInputSlot,
			exprIf(exprSlot(isArrSlot),
				exprSlot(traverseInputSlot),
				exprSlot(inputSlot)))
	}

	if !isLeaf {
		// Mid-path only objects can be descended into; scalar array
		// elements contribute nothing. A non-array input passes
		// whole, so a deeper miss is still seen by the predicate.
		innerBranch = makeFilter(innerBranch,
			exprOr(exprNot(exprSlot(isArrSlot)),
				fillEmptyFalse(exprFn("isObject",
					exprSlot(innerInputSlot)))))
	}

	var innerExpr base.Expr

	if isLeaf {
		innerExpr, innerBranch = makePred(innerInputSlot, innerBranch)

		if useCombinator {
			innerExpr = c.state.MakeState(innerExpr)
		}
	} else {
		innerExpr, innerBranch = c.generateTraverseStage(innerBranch,
			innerInputSlot, 0, path, level+1, makePred, mode,
			useCombinator)
	}

	if c.state.StateContainsValue() {
		// Entering an array starts this level's element count over.
		f := base.NextFrameID()

		innerExpr = exprLet(f, innerExpr,
			exprIf(exprSlot(isArrSlot),
				c.state.MakeInitialState(
					c.state.GetBool(exprVarRef(f))),
				exprVarRef(f)))
	}

	innerResultSlot, innerBranch := projectExprToSlot(
		innerExpr, innerBranch)

	outSlot := base.NextSlotID()

	outputStage := makeTraverse(fromBranch, innerBranch,
		traverseInputSlot, outSlot, innerResultSlot,
		c.state.FoldExpr(outSlot, innerResultSlot),
		c.state.EarlyExitExpr(outSlot))

	resultExpr := fillEmpty(exprSlot(outSlot),
		c.state.MakeStateConst(false))

	if !needsArrayCheck {
		return resultExpr, outputStage
	}

	finalSlot := base.NextSlotID()

	outputStage = makeProject(outputStage, finalSlot, resultExpr)

	outputStage = makeFilter(outputStage,
		exprOr(exprNot(exprSlot(isArrSlot)),
			c.state.GetBool(exprSlot(finalSlot))))

	outputStage = makeLimit(outputStage, 1)

	outputStage = makeLoopJoin(loopJoinFrom, outputStage)

	return exprSlot(finalSlot), outputStage
}
