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

package match

import (
	"fmt"

	"github.com/couchbase/mqlc/base"
)

// Kind enumerates every predicate node. The set is closed -- plan
// generation switches over all of them exhaustively.
type Kind int

const (
	KindUnknown Kind = iota

	KindAlwaysTrue
	KindAlwaysFalse

	KindEq
	KindLT
	KindLTE
	KindGT
	KindGTE

	KindIn

	KindBitsAllSet
	KindBitsAllClear
	KindBitsAnySet
	KindBitsAnyClear

	KindMod
	KindRegex
	KindSize
	KindExists
	KindType

	KindWhere
	KindExpr

	KindElemMatchValue
	KindElemMatchObject

	KindAnd
	KindOr
	KindNor
	KindNot

	// Recognized but not plan-compiled -- see errors.UnsupportedError.
	KindText
	KindGeoWithin
)

var kindNames = map[Kind]string{
	KindAlwaysTrue:      "alwaysTrue",
	KindAlwaysFalse:     "alwaysFalse",
	KindEq:              "$eq",
	KindLT:              "$lt",
	KindLTE:             "$lte",
	KindGT:              "$gt",
	KindGTE:             "$gte",
	KindIn:              "$in",
	KindBitsAllSet:      "$bitsAllSet",
	KindBitsAllClear:    "$bitsAllClear",
	KindBitsAnySet:      "$bitsAnySet",
	KindBitsAnyClear:    "$bitsAnyClear",
	KindMod:             "$mod",
	KindRegex:           "$regex",
	KindSize:            "$size",
	KindExists:          "$exists",
	KindType:            "$type",
	KindWhere:           "$where",
	KindExpr:            "$expr",
	KindElemMatchValue:  "$elemMatch",
	KindElemMatchObject: "$elemMatch",
	KindAnd:             "$and",
	KindOr:              "$or",
	KindNor:             "$nor",
	KindNot:             "$not",
	KindText:            "$text",
	KindGeoWithin:       "$geoWithin",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// -----------------------------------------------------

// WhereFn is a host predicate applied to the whole document. The func
// is supplied by value when the node is made, so a node is never left
// holding a dangling reference to caller state.
type WhereFn func(doc base.Val) (bool, error)

// ExprEvalFn evaluates an embedded scalar sub-expression (the $expr
// language, which is outside the match language) against the whole
// document.
type ExprEvalFn func(doc base.Val) (base.Val, error)

// -----------------------------------------------------

// Regex is a regex source as it appears in a predicate.
type Regex struct {
	Pattern string
	Options string
}

// -----------------------------------------------------

// Node is one predicate in a parsed match tree. Which fields are
// meaningful depends on the Kind.
type Node struct {
	Kind Kind

	// Path is the dotted field path for path predicates. Logical
	// nodes and $where / $expr have an empty Path.
	Path Path

	Children []*Node

	// Value is the RHS literal for comparison predicates.
	Value base.Val

	// Equalities and Regexes together hold a $in list.
	Equalities []base.Val
	Regexes    []Regex

	// Bit tests store both forms of the operand -- a position list
	// and the equivalent numeric mask.
	BitPositions []int64
	BitMask      int64

	Divisor   int64 // $mod.
	Remainder int64

	Pattern string // $regex.
	Options string

	Size int64 // $size. May be negative, which can never match.

	TypeSet base.TypeMask // $type.

	ExistsVal bool // $exists.

	Where WhereFn
	Expr  ExprEvalFn

	// Param slots, when non-zero, tell the plan generator to read
	// the constant from the runtime params table instead of baking
	// it into the plan. See base.Vars.Params.
	ParamSlot         int // Comparison RHS, $in list, $size, $type.
	BitPositionsParam int
	BitMaskParam      int
	DivisorParam      int
	RemainderParam    int
}

// -----------------------------------------------------

func NewAlwaysTrue() *Node  { return &Node{Kind: KindAlwaysTrue} }
func NewAlwaysFalse() *Node { return &Node{Kind: KindAlwaysFalse} }

func NewComparison(kind Kind, path string, rhs base.Val) *Node {
	return &Node{Kind: kind, Path: NewPath(path), Value: rhs}
}

func NewIn(path string, equalities []base.Val, regexes []Regex) *Node {
	return &Node{
		Kind: KindIn, Path: NewPath(path),
		Equalities: equalities, Regexes: regexes,
	}
}

// NewBitTest builds one of the four bit-test predicates from a
// position list. Positions are deduplicated, keeping first-occurrence
// order, and the numeric mask is derived from them.
func NewBitTest(kind Kind, path string, positions []int64) (*Node, error) {
	seen := map[int64]bool{}

	var deduped []int64
	var mask int64

	for _, pos := range positions {
		if pos < 0 {
			return nil, fmt.Errorf("match: bit position %d is negative", pos)
		}

		if !seen[pos] {
			seen[pos] = true
			deduped = append(deduped, pos)

			maskPos := pos
			if maskPos > 63 {
				maskPos = 63 // The sign bit repeats forever.
			}

			mask |= int64(1) << uint(maskPos)
		}
	}

	return &Node{
		Kind: kind, Path: NewPath(path),
		BitPositions: deduped, BitMask: mask,
	}, nil
}

// NewBitTestMask builds a bit-test predicate from a numeric mask.
func NewBitTestMask(kind Kind, path string, mask int64) (*Node, error) {
	if mask < 0 {
		return nil, fmt.Errorf("match: bit mask %d is negative", mask)
	}

	var positions []int64
	for i := 0; i < 64; i++ {
		if mask&(int64(1)<<uint(i)) != 0 {
			positions = append(positions, int64(i))
		}
	}

	return &Node{
		Kind: kind, Path: NewPath(path),
		BitPositions: positions, BitMask: mask,
	}, nil
}

func NewMod(path string, divisor, remainder int64) (*Node, error) {
	if divisor == 0 {
		return nil, fmt.Errorf("match: $mod divisor is zero")
	}

	return &Node{
		Kind: KindMod, Path: NewPath(path),
		Divisor: divisor, Remainder: remainder,
	}, nil
}

func NewRegex(path, pattern, options string) *Node {
	return &Node{
		Kind: KindRegex, Path: NewPath(path),
		Pattern: pattern, Options: options,
	}
}

func NewSize(path string, size int64) *Node {
	return &Node{Kind: KindSize, Path: NewPath(path), Size: size}
}

func NewExists(path string, exists bool) *Node {
	return &Node{Kind: KindExists, Path: NewPath(path), ExistsVal: exists}
}

func NewType(path string, typeSet base.TypeMask) *Node {
	return &Node{Kind: KindType, Path: NewPath(path), TypeSet: typeSet}
}

func NewWhere(fn WhereFn) *Node {
	return &Node{Kind: KindWhere, Where: fn}
}

func NewExpr(fn ExprEvalFn) *Node {
	return &Node{Kind: KindExpr, Expr: fn}
}

func NewElemMatchValue(path string, children ...*Node) *Node {
	return &Node{
		Kind: KindElemMatchValue, Path: NewPath(path), Children: children,
	}
}

func NewElemMatchObject(path string, child *Node) *Node {
	return &Node{
		Kind: KindElemMatchObject, Path: NewPath(path),
		Children: []*Node{child},
	}
}

func NewAnd(children ...*Node) *Node {
	return &Node{Kind: KindAnd, Children: children}
}

func NewOr(children ...*Node) *Node {
	return &Node{Kind: KindOr, Children: children}
}

func NewNor(children ...*Node) *Node {
	return &Node{Kind: KindNor, Children: children}
}

func NewNot(child *Node) *Node {
	return &Node{Kind: KindNot, Children: []*Node{child}}
}
