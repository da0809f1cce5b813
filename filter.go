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

// Package mqlc lowers match predicates into dataflow plans: a stage
// tree over value slots, plus scalar exprs compiled to closures. The
// produced plan filters the rows of an input stage down to the rows
// whose document matches the predicate.
package mqlc

import (
	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

// MaxTopLevelAndChildren caps how many children of a top-level $and
// are lowered as a chain of separate filters, which keeps plans flat
// and lets each conjunct fail independently. A wider $and falls back
// to one combined predicate.
const MaxTopLevelAndChildren = 25

// GenerateFilter lowers a match tree into a filter over the rows of
// the input stage.
//
// The inputSlot, when non-zero, holds each row's document. A filter
// whose predicates never touch the whole document -- no $where, no
// $expr, no deep paths outside fieldSlots -- can pass zero and rely
// on fieldSlots alone, which maps top-level field names (and, when
// overScan is set, whole dotted paths) to slots the input stage
// already fills.
//
// With trackIndex set, the returned indexSlot (non-zero only then)
// carries the array index of the first matching element for the one
// index-producing predicate in the filter, or Missing when no array
// element decided the match. Index tracking and fieldSlots are
// mutually exclusive.
//
// An unsupported predicate kind surfaces as *UnsupportedError, with
// the expectation that the caller falls back to match.NewMatcher.
func GenerateFilter(vars *base.Vars, root *match.Node,
	input *base.Stage, inputSlot base.SlotID,
	fieldSlots map[string]base.SlotID, overScan, trackIndex bool) (
	stage *base.Stage, indexSlot base.SlotID, err error) {
	PanicIf(trackIndex && fieldSlots != nil, 100000)

	if root == nil {
		return input, 0, nil
	}

	c := &visitCtx{
		vars:       vars,
		state:      makeFilterState(trackIndex),
		inputSlot:  inputSlot,
		fieldSlots: fieldSlots,
		overScan:   overScan,
		frames: []*evalFrame{
			{stage: input, inputSlot: inputSlot},
		},
	}

	if root.Kind == match.KindAnd &&
		len(root.Children) <= MaxTopLevelAndChildren {
		c.topLevelAnd = root
	}

	if err := c.walk(root); err != nil {
		return nil, 0, err
	}

	return c.done()
}

// -----------------------------------------------------

// evalFrame pairs a stage under construction with a stack of pending
// exprs over that stage's slots. Logical operators and $elemMatch
// push frames so each branch builds its plan fragment in isolation.
type evalFrame struct {
	stage *base.Stage
	exprs []base.Expr

	// inputSlot holds the document, or the current element under an
	// $elemMatch, that this frame's predicates apply to.
	inputSlot base.SlotID

	// childOfElemMatchValue marks frames whose predicates apply
	// straight to the inputSlot value, with no path traversal.
	childOfElemMatchValue bool
}

func (f *evalFrame) pushExpr(e base.Expr) {
	f.exprs = append(f.exprs, e)
}

func (f *evalFrame) popExpr() base.Expr {
	PanicIf(len(f.exprs) == 0, 100001)

	e := f.exprs[len(f.exprs)-1]
	f.exprs = f.exprs[:len(f.exprs)-1]

	return e
}

// takeStage detaches the frame's stage, leaving nil, for callers
// that rebuild it around a new root.
func (f *evalFrame) takeStage() *base.Stage {
	stage := f.stage
	f.stage = nil

	return stage
}

// -----------------------------------------------------

type visitCtx struct {
	vars  *base.Vars
	state filterState

	frames []*evalFrame

	inputSlot  base.SlotID
	fieldSlots map[string]base.SlotID
	overScan   bool

	topLevelAnd *match.Node

	// outputSlot is where the index-carrying state lands, set once
	// by projectCurrentExprToOutputSlot.
	outputSlot base.SlotID
}

func (c *visitCtx) topFrame() *evalFrame {
	return c.frames[len(c.frames)-1]
}

func (c *visitCtx) pushFrame(f *evalFrame) {
	c.frames = append(c.frames, f)
}

// popFrame removes the top frame, which must have settled into
// exactly one result expr.
func (c *visitCtx) popFrame() (base.Expr, *base.Stage) {
	f := c.topFrame()
	c.frames = c.frames[:len(c.frames)-1]

	e := f.popExpr()
	PanicIf(len(f.exprs) != 0, 100002)

	return e, f.stage
}

// -----------------------------------------------------

func (c *visitCtx) done() (*base.Stage, base.SlotID, error) {
	PanicIf(len(c.frames) != 1, 100003)

	frame := c.frames[0]

	if len(frame.exprs) > 0 {
		if c.state.StateContainsValue() && c.outputSlot == 0 {
			c.projectCurrentExprToOutputSlot(frame)
		}

		e := frame.popExpr()
		PanicIf(len(frame.exprs) != 0, 100004)

		frame.stage = makeFilter(frame.stage, c.state.GetBool(e))
	}

	var indexSlot base.SlotID

	if c.outputSlot != 0 && c.state.StateContainsValue() {
		indexSlot, frame.stage = c.state.ProjectValue(
			c.outputSlot, frame.stage)
	}

	return frame.stage, indexSlot, nil
}

// projectCurrentExprToOutputSlot lands the pending state expr in a
// slot, so its value part survives the bool filtering that follows.
// At most one predicate per filter may produce an index.
func (c *visitCtx) projectCurrentExprToOutputSlot(frame *evalFrame) {
	PanicIf(c.outputSlot != 0, 100005)

	slot, stage := projectExprToSlot(frame.popExpr(), frame.stage)

	frame.stage = stage

	c.outputSlot = slot

	frame.pushExpr(exprSlot(slot))
}

// -----------------------------------------------------

// pushFrameForLogicalChild sets up the frame an upcoming branch of a
// logical operator will build into. Single-child operators reuse the
// current frame.
func (c *visitCtx) pushFrameForLogicalChild(n *match.Node) {
	if len(n.Children) <= 1 {
		return
	}

	c.pushFrame(&evalFrame{inputSlot: c.topFrame().inputSlot})
}

// buildLogical combines the branch frames of an $and / $or back into
// one state expr on the enclosing frame. $nor builds an $or here and
// negates it in the caller.
func (c *visitCtx) buildLogical(isOr bool, n *match.Node) {
	if len(n.Children) == 0 {
		c.topFrame().pushExpr(c.state.MakeStateConst(!isOr))

		return
	}

	if len(n.Children) == 1 {
		return // The child's expr is already on the current frame.
	}

	branches := make([]logicBranch, len(n.Children))

	for i := len(n.Children) - 1; i >= 0; i-- {
		expr, stage := c.popFrame()

		branches[i] = logicBranch{expr: expr, stage: stage}
	}

	expr, stage := c.shortCircuitLogicalOp(isOr, branches)

	frame := c.topFrame()

	frame.stage = makeLoopJoin(frame.stage, stage)

	frame.pushExpr(expr)
}

// -----------------------------------------------------

type logicBranch struct {
	expr  base.Expr
	stage *base.Stage
}

// shortCircuitLogicalOp evaluates branches in order and stops at the
// first deciding one. Pure expr branches fold into the expr-level
// and/or, which is already short-circuiting. Branches that carry
// stages become a union of guarded branches under a limit 1: every
// branch but the last is filtered down to "I decide the result", so
// the first row out of the union is the answer, and the limit keeps
// later branches from ever running.
func (c *visitCtx) shortCircuitLogicalOp(isOr bool,
	branches []logicBranch) (base.Expr, *base.Stage) {
	allExprs := !c.state.StateContainsValue()

	for _, b := range branches {
		if b.stage != nil {
			allExprs = false
		}
	}

	if allExprs {
		rv := branches[len(branches)-1].expr

		for i := len(branches) - 2; i >= 0; i-- {
			if isOr {
				rv = exprOr(branches[i].expr, rv)
			} else {
				rv = exprAnd(branches[i].expr, rv)
			}
		}

		return rv, nil
	}

	slots := make([]base.SlotID, len(branches))
	stages := make([]*base.Stage, len(branches))

	for i, b := range branches {
		slots[i], stages[i] = projectExprToSlot(b.expr, b.stage)

		if i < len(branches)-1 {
			deciding := c.state.GetBool(exprSlot(slots[i]))
			if !isOr {
				deciding = exprNot(deciding)
			}

			stages[i] = makeFilter(stages[i], fillEmptyFalse(deciding))
		}
	}

	union := stages[len(branches)-1]
	out := slots[len(branches)-1]

	for i := len(branches) - 2; i >= 0; i-- {
		next := base.NextSlotID()

		union = makeUnion(stages[i], union, next, slots[i], out)

		out = next
	}

	return exprSlot(out), makeLimit(union, 1)
}
