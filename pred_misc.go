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

// generateMod lowers $mod: the leaf must be a finite number, is
// truncated toward zero, and its remainder compared. The remainder
// keeps the dividend's sign, as in Go and C.
func (c *visitCtx) generateMod(n *match.Node) {
	divisor := exprJson(strconv.FormatInt(n.Divisor, 10))
	if n.DivisorParam != 0 {
		divisor = exprFn("param", n.DivisorParam)
	}

	remainder := exprJson(strconv.FormatInt(n.Remainder, 10))
	if n.RemainderParam != 0 {
		remainder = exprFn("param", n.RemainderParam)
	}

	makeExpr := func(in base.Expr) base.Expr {
		numeric := fillEmptyFalse(
			exprFn("typeMatch", in, base.TypeNumber))

		finite := exprNot(fillEmptyFalse(exprOr(
			exprFn("isNaN", in), exprFn("isInfinity", in))))

		f := base.NextFrameID()

		truncated := exprLet(f,
			exprFn("toInt64", exprFn("trunc", in)),
			exprAnd(
				exprNot(exprFn("isNullOrMissing", exprVarRef(f))),
				fillEmptyFalse(exprFn("eq",
					exprFn("mod", exprVarRef(f), divisor),
					remainder))))

		return exprAnd(exprAnd(numeric, finite), truncated)
	}

	c.generatePredicate(n.Path, makeExpr, nil,
		traverseElements, false, true)
}

// -----------------------------------------------------

// generateRegex lowers $regex, which matches both strings and stored
// regex values whose source is identical.
func (c *visitCtx) generateRegex(n *match.Node) error {
	re, err := match.CompileRegex(n.Pattern, n.Options)
	if err != nil {
		return err
	}

	literal := exprVal(regexVal(n.Pattern, n.Options))

	makeExpr := func(in base.Expr) base.Expr {
		return exprOr(
			fillEmptyFalse(exprFn("eq", in, literal)),
			fillEmptyFalse(exprFn("regexMatch", re, in)))
	}

	c.generatePredicate(n.Path, makeExpr, nil,
		traverseElements, false, true)

	return nil
}

// -----------------------------------------------------

func (c *visitCtx) generateSize(n *match.Node) {
	if n.ParamSlot == 0 && n.Size < 0 {
		c.topFrame().pushExpr(c.state.MakeStateConst(false))

		return // Without even touching the field.
	}

	size := exprJson(strconv.FormatInt(n.Size, 10))
	if n.ParamSlot != 0 {
		size = exprFn("param", n.ParamSlot)
	}

	makeExpr := func(in base.Expr) base.Expr {
		return fillEmptyFalse(exprFn("eq",
			exprFn("getArraySize", in), size))
	}

	// $size tests the array itself, never its elements.
	c.generatePredicate(n.Path, makeExpr, nil,
		traverseNone, false, true)
}

// -----------------------------------------------------

func (c *visitCtx) generateExists(n *match.Node) {
	makeExpr := func(in base.Expr) base.Expr {
		return exprFn("exists", in)
	}

	c.generatePredicate(n.Path, makeExpr, nil,
		traverseNone, false, true)

	if !n.ExistsVal {
		frame := c.topFrame()

		frame.pushExpr(c.state.MakeState(
			exprNot(c.state.GetBool(frame.popExpr()))))
	}
}

// -----------------------------------------------------

func (c *visitCtx) generateType(n *match.Node) {
	var mask interface{} = n.TypeSet
	if n.ParamSlot != 0 {
		mask = n.ParamSlot
	}

	mode := traverseElements
	if n.TypeSet&base.TypeArray != 0 {
		// Asking for arrays must also see the array itself.
		mode = traverseArrayAndItself
	}

	makeExpr := func(in base.Expr) base.Expr {
		return fillEmptyFalse(exprFn("typeMatch", in, mask))
	}

	c.generatePredicate(n.Path, makeExpr, nil, mode, false, true)
}

// -----------------------------------------------------

func (c *visitCtx) generateWhere(n *match.Node) {
	frame := c.topFrame()

	slot := frame.inputSlot
	PanicIf(slot == 0, 100040) // $where needs the whole document.

	frame.pushExpr(c.state.MakeState(
		exprFn("runPredicate", n.Where, exprSlot(slot))))
}

func (c *visitCtx) generateExprPred(n *match.Node) {
	frame := c.topFrame()

	slot := frame.inputSlot
	PanicIf(slot == 0, 100041) // $expr needs the whole document.

	frame.pushExpr(c.state.MakeState(
		exprFn("coerceToBool",
			exprFn("evalExpr", n.Expr, exprSlot(slot)))))
}
