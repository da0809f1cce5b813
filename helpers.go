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

// Small constructors over the stage & expr IR, so plan generation
// reads closer to the shape of the plans it makes.

func makeProject(input *base.Stage,
	slotExprPairs ...interface{}) *base.Stage {
	return &base.Stage{
		Kind: "project", Params: slotExprPairs, ParentA: input,
	}
}

func makeFilter(input *base.Stage, pred base.Expr) *base.Stage {
	return &base.Stage{
		Kind: "filter", Params: []interface{}{pred}, ParentA: input,
	}
}

func makeCFilter(input *base.Stage, pred base.Expr) *base.Stage {
	return &base.Stage{
		Kind: "cfilter", Params: []interface{}{pred}, ParentA: input,
	}
}

func makeLimit(input *base.Stage, n int64) *base.Stage {
	return &base.Stage{
		Kind: "limit", Params: []interface{}{n}, ParentA: input,
	}
}

func makeUnion(a, b *base.Stage,
	out, inA, inB base.SlotID) *base.Stage {
	return &base.Stage{
		Kind: "union", Params: []interface{}{out, inA, inB},
		ParentA: a, ParentB: b,
	}
}

// makeLoopJoin reruns the b side per row of the a side. Either side
// being nil degenerates to the other, since a nil stage is the
// one-row input.
func makeLoopJoin(a, b *base.Stage) *base.Stage {
	if a == nil {
		return b
	}

	if b == nil {
		return a
	}

	return &base.Stage{Kind: "loopjoin", ParentA: a, ParentB: b}
}

func makeTraverse(from, inner *base.Stage,
	in, out, innerResult base.SlotID, fold, early base.Expr) *base.Stage {
	return &base.Stage{
		Kind: "traverse",
		Params: []interface{}{
			in, out, innerResult, fold, early,
		},
		ParentA: from,
		ParentB: inner,
	}
}

// -----------------------------------------------------

func exprFn(name string, params ...interface{}) base.Expr {
	return append(base.Expr{name}, params...)
}

func exprJson(s string) base.Expr {
	return base.Expr{"json", s}
}

func exprVal(v base.Val) base.Expr {
	return base.Expr{"val", v}
}

func exprSlot(slot base.SlotID) base.Expr {
	return base.Expr{"slot", slot}
}

func exprVarRef(frame base.FrameID) base.Expr {
	return base.Expr{"var", frame}
}

func exprBool(b bool) base.Expr {
	if b {
		return exprJson("true")
	}

	return exprJson("false")
}

func exprNot(e base.Expr) base.Expr {
	return base.Expr{"not", e}
}

func exprAnd(a, b base.Expr) base.Expr {
	return base.Expr{"and", a, b}
}

func exprOr(a, b base.Expr) base.Expr {
	return base.Expr{"or", a, b}
}

func exprIf(cond, then, els base.Expr) base.Expr {
	return base.Expr{"if", cond, then, els}
}

func exprLet(frame base.FrameID, bind, body base.Expr) base.Expr {
	return base.Expr{"let", frame, bind, body}
}

func exprLambda(frame base.FrameID, body base.Expr) base.Expr {
	return base.Expr{"lambda", frame, body}
}

func fillEmpty(e, fill base.Expr) base.Expr {
	return base.Expr{"fillEmpty", e, fill}
}

func fillEmptyFalse(e base.Expr) base.Expr {
	return fillEmpty(e, exprJson("false"))
}

// -----------------------------------------------------

// projectExprToSlot lands an expr's value in a slot, reusing the
// slot when the expr already is a plain slot reference.
func projectExprToSlot(e base.Expr,
	stage *base.Stage) (base.SlotID, *base.Stage) {
	if e[0].(string) == "slot" {
		return e[1].(base.SlotID), stage
	}

	slot := base.NextSlotID()

	return slot, makeProject(stage, slot, e)
}
