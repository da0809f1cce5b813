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
)

// filterState abstracts over what plan generation threads through
// traversal folds and logical combinators: a plain bool normally, or
// a [matched, index] pair when the caller asked for the matching
// array index. Keeping the difference behind this interface lets the
// rest of plan generation not care which one it's building.
type filterState interface {
	// StateContainsValue is true when the state carries more than
	// the bool, which forces traversals into stage form.
	StateContainsValue() bool

	// MakeState lifts a bool-valued expr into a state.
	MakeState(b base.Expr) base.Expr

	MakeStateConst(b bool) base.Expr

	// MakeInitialState builds the state for the first fold step of
	// one traversal level, resetting any per-level bookkeeping.
	MakeInitialState(b base.Expr) base.Expr

	// GetBool projects a state back down to its bool.
	GetBool(state base.Expr) base.Expr

	// FoldExpr combines the accumulated state in the out slot with
	// the next inner result. EarlyExitExpr, checked after each fold,
	// stops a traversal that can't change anymore.
	FoldExpr(out, innerResult base.SlotID) base.Expr

	EarlyExitExpr(out base.SlotID) base.Expr

	// ProjectValue turns the final state into the caller-visible
	// value slot, such as the matched array index.
	ProjectValue(stateSlot base.SlotID,
		stage *base.Stage) (base.SlotID, *base.Stage)
}

func makeFilterState(trackIndex bool) filterState {
	if trackIndex {
		return indexState{}
	}

	return boolState{}
}

// -----------------------------------------------------

type boolState struct{}

func (boolState) StateContainsValue() bool { return false }

func (boolState) MakeState(b base.Expr) base.Expr { return b }

func (boolState) MakeStateConst(b bool) base.Expr { return exprBool(b) }

func (boolState) MakeInitialState(b base.Expr) base.Expr { return b }

func (boolState) GetBool(state base.Expr) base.Expr { return state }

func (boolState) FoldExpr(out, innerResult base.SlotID) base.Expr {
	return exprOr(exprSlot(out), exprSlot(innerResult))
}

func (boolState) EarlyExitExpr(out base.SlotID) base.Expr {
	return exprSlot(out)
}

func (boolState) ProjectValue(stateSlot base.SlotID,
	stage *base.Stage) (base.SlotID, *base.Stage) {
	Panic(200300) // A bool state has no value to project.

	return 0, nil
}

// -----------------------------------------------------

// indexState threads [matched, index] pairs, where the index counts
// elements visited at the outermost traversal level, so that the
// final state knows which element matched first. An index of -1
// stands for "no array position", as for a match outside any array.
type indexState struct{}

func (indexState) StateContainsValue() bool { return true }

func (indexState) MakeState(b base.Expr) base.Expr {
	return exprFn("indexState", b, exprJson("-1"))
}

func (s indexState) MakeStateConst(b bool) base.Expr {
	return s.MakeState(exprBool(b))
}

func (indexState) MakeInitialState(b base.Expr) base.Expr {
	return exprFn("indexState", b, exprJson("0"))
}

func (indexState) GetBool(state base.Expr) base.Expr {
	return exprFn("stateBool", state)
}

func (indexState) FoldExpr(out, innerResult base.SlotID) base.Expr {
	return exprFn("indexState",
		exprFn("stateBool", exprSlot(innerResult)),
		exprFn("add",
			exprFn("stateIndex", exprSlot(out)), exprJson("1")))
}

func (indexState) EarlyExitExpr(out base.SlotID) base.Expr {
	return exprFn("stateBool", exprSlot(out))
}

func (indexState) ProjectValue(stateSlot base.SlotID,
	stage *base.Stage) (base.SlotID, *base.Stage) {
	idx := exprFn("stateIndex", exprSlot(stateSlot))

	value := exprIf(
		fillEmptyFalse(exprAnd(
			exprFn("stateBool", exprSlot(stateSlot)),
			exprFn("ge", idx, exprJson("0")))),
		idx,
		exprFn("nothing"))

	slot := base.NextSlotID()

	return slot, makeProject(stage, slot, value)
}
