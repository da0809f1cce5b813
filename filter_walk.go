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

// walk drives plan generation over the match tree: pre before a
// node's children, in between consecutive children, post after.
func (c *visitCtx) walk(n *match.Node) error {
	if err := c.pre(n); err != nil {
		return err
	}

	for i, child := range n.Children {
		if i > 0 {
			if err := c.in(n); err != nil {
				return err
			}
		}

		if err := c.walk(child); err != nil {
			return err
		}
	}

	return c.post(n)
}

// -----------------------------------------------------

func (c *visitCtx) pre(n *match.Node) error {
	switch n.Kind {
	case match.KindAnd:
		if n != c.topLevelAnd {
			c.pushFrameForLogicalChild(n)
		}

	case match.KindOr, match.KindNor:
		c.pushFrameForLogicalChild(n)

	case match.KindElemMatchValue:
		c.pushFrame(&evalFrame{
			inputSlot:             base.NextSlotID(),
			childOfElemMatchValue: true,
		})

	case match.KindElemMatchObject:
		PanicIf(len(n.Children) != 1, 100006)

		c.pushFrame(&evalFrame{inputSlot: base.NextSlotID()})

	case match.KindText, match.KindGeoWithin:
		return &UnsupportedError{Kind: n.Kind}
	}

	return nil
}

func (c *visitCtx) in(n *match.Node) error {
	switch n.Kind {
	case match.KindAnd:
		if n == c.topLevelAnd {
			// Each conjunct of the top-level $and becomes its own
			// filter, so rows drop out at the earliest conjunct.
			frame := c.topFrame()

			if c.state.StateContainsValue() && c.outputSlot == 0 {
				c.projectCurrentExprToOutputSlot(frame)
			}

			frame.stage = makeFilter(frame.stage,
				c.state.GetBool(frame.popExpr()))

			return nil
		}

		c.pushFrameForLogicalChild(n)

	case match.KindOr, match.KindNor:
		c.pushFrameForLogicalChild(n)

	case match.KindElemMatchValue:
		// All value branches apply to the same element slot.
		c.pushFrame(&evalFrame{
			inputSlot:             c.topFrame().inputSlot,
			childOfElemMatchValue: true,
		})
	}

	return nil
}

func (c *visitCtx) post(n *match.Node) error {
	switch n.Kind {
	case match.KindAlwaysTrue:
		c.topFrame().pushExpr(c.state.MakeStateConst(true))

	case match.KindAlwaysFalse:
		c.topFrame().pushExpr(c.state.MakeStateConst(false))

	case match.KindEq, match.KindLT, match.KindLTE,
		match.KindGT, match.KindGTE:
		c.generateComparison(n)

	case match.KindIn:
		return c.generateIn(n)

	case match.KindBitsAllSet, match.KindBitsAllClear,
		match.KindBitsAnySet, match.KindBitsAnyClear:
		c.generateBitTest(n)

	case match.KindMod:
		c.generateMod(n)

	case match.KindRegex:
		return c.generateRegex(n)

	case match.KindSize:
		c.generateSize(n)

	case match.KindExists:
		c.generateExists(n)

	case match.KindType:
		c.generateType(n)

	case match.KindWhere:
		c.generateWhere(n)

	case match.KindExpr:
		c.generateExprPred(n)

	case match.KindElemMatchValue, match.KindElemMatchObject:
		c.generateElemMatch(n)

	case match.KindAnd:
		if n == c.topLevelAnd {
			if len(n.Children) == 0 {
				return nil // An empty $and matches everything.
			}

			frame := c.topFrame()

			if c.state.StateContainsValue() && c.outputSlot == 0 {
				c.projectCurrentExprToOutputSlot(frame)
			}

			frame.stage = makeFilter(frame.stage,
				c.state.GetBool(frame.popExpr()))

			return nil
		}

		c.buildLogical(false, n)

	case match.KindOr:
		c.buildLogical(true, n)

	case match.KindNor:
		// NOR is NOT of OR. The negation, like $not below, keeps
		// only the bool -- any index state inside is discarded.
		c.buildLogical(true, n)

		frame := c.topFrame()
		frame.pushExpr(c.state.MakeState(
			exprNot(c.state.GetBool(frame.popExpr()))))

	case match.KindNot:
		frame := c.topFrame()
		frame.pushExpr(c.state.MakeState(
			exprNot(c.state.GetBool(frame.popExpr()))))

	default:
		Panic(100007) // Unreachable kind, as pre already rejected it.
	}

	return nil
}
