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

// generateElemMatch lowers both $elemMatch forms. The children were
// built into their own frames over a fresh element slot; here those
// frames collapse into one per-element plan, which then runs under a
// traverse over the leaf array. Only an actual array can match, and
// one element must satisfy the whole per-element plan at once.
func (c *visitCtx) generateElemMatch(n *match.Node) {
	PanicIf(len(n.Children) == 0, 100050)

	childInputSlot := c.topFrame().inputSlot

	var childExpr base.Expr
	var childStage *base.Stage

	if n.Kind == match.KindElemMatchValue && len(n.Children) > 1 {
		branches := make([]logicBranch, len(n.Children))

		for i := len(n.Children) - 1; i >= 0; i-- {
			expr, stage := c.popFrame()

			branches[i] = logicBranch{expr: expr, stage: stage}
		}

		childExpr, childStage = c.shortCircuitLogicalOp(false, branches)
	} else {
		childExpr, childStage = c.popFrame()
	}

	filterSlot, filterStage := projectExprToSlot(childExpr, childStage)

	if n.Kind == match.KindElemMatchObject {
		// The sub-filter's paths only mean anything inside a
		// document element.
		filterStage = makeCFilter(filterStage,
			fillEmptyFalse(exprOr(
				exprFn("isObject", exprSlot(childInputSlot)),
				exprFn("isArray", exprSlot(childInputSlot)))))
	}

	makePred := func(inputSlot base.SlotID,
		inputStage *base.Stage) (base.Expr, *base.Stage) {
		return c.elemMatchTraverse(inputSlot, inputStage,
			childInputSlot, filterSlot, filterStage)
	}

	c.generatePredicate(n.Path, nil, makePred,
		traverseNone, false, false)
}

// elemMatchTraverse runs the per-element plan under a traverse over
// the leaf value, which must be an array for any element to count.
func (c *visitCtx) elemMatchTraverse(inputSlot base.SlotID,
	inputStage *base.Stage, childInputSlot, filterSlot base.SlotID,
	filterStage *base.Stage) (base.Expr, *base.Stage) {
	isArrSlot := base.NextSlotID()

	fromBranch := makeProject(inputStage,
		childInputSlot, exprSlot(inputSlot),
		isArrSlot, fillEmptyFalse(
			exprFn("isArray", exprSlot(inputSlot))))

	innerResultSlot := filterSlot
	innerBranch := filterStage

	if c.state.StateContainsValue() {
		innerResultSlot = base.NextSlotID()

		innerBranch = makeProject(innerBranch, innerResultSlot,
			c.state.MakeInitialState(
				c.state.GetBool(exprSlot(filterSlot))))
	}

	innerBranch = makeCFilter(innerBranch, exprSlot(isArrSlot))

	outSlot := base.NextSlotID()

	stage := makeTraverse(fromBranch, innerBranch,
		childInputSlot, outSlot, innerResultSlot,
		c.state.FoldExpr(outSlot, innerResultSlot),
		c.state.EarlyExitExpr(outSlot))

	return fillEmpty(exprSlot(outSlot),
		c.state.MakeStateConst(false)), stage
}
