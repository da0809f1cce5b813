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
	"math"
	"regexp"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

// Matcher evaluates a match tree directly against documents, with no
// plan in between. It's the fallback when plan generation reports an
// unsupported predicate, and it doubles as an independent check of
// what a compiled plan produces.
type Matcher struct {
	root *Node
	cmp  *base.ValComparer

	regexps   map[*Node]*regexp.Regexp
	inRegexps map[*Node][]*regexp.Regexp
}

func NewMatcher(root *Node) (*Matcher, error) {
	m := &Matcher{
		root:      root,
		cmp:       base.NewValComparer(),
		regexps:   map[*Node]*regexp.Regexp{},
		inRegexps: map[*Node][]*regexp.Regexp{},
	}

	if err := m.compileRegexps(root); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Matcher) compileRegexps(n *Node) error {
	switch n.Kind {
	case KindRegex:
		re, err := CompileRegex(n.Pattern, n.Options)
		if err != nil {
			return err
		}

		m.regexps[n] = re

	case KindIn:
		for _, r := range n.Regexes {
			re, err := CompileRegex(r.Pattern, r.Options)
			if err != nil {
				return err
			}

			m.inRegexps[n] = append(m.inRegexps[n], re)
		}
	}

	for _, child := range n.Children {
		if err := m.compileRegexps(child); err != nil {
			return err
		}
	}

	return nil
}

// CompileRegex translates a regex source with match-language options
// (i, m, s, and the unsupported x) into a Go regexp.
func CompileRegex(pattern, options string) (*regexp.Regexp, error) {
	flags := ""

	for _, opt := range options {
		switch opt {
		case 'i', 'm', 's':
			flags += string(opt)
		default:
			return nil, fmt.Errorf("match: unsupported regex option: %c", opt)
		}
	}

	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}

	return regexp.Compile(pattern)
}

// -----------------------------------------------------

func (m *Matcher) Matches(doc base.Val) (bool, error) {
	return m.matches(m.root, doc)
}

func (m *Matcher) matches(n *Node, doc base.Val) (bool, error) {
	switch n.Kind {
	case KindAlwaysTrue:
		return true, nil

	case KindAlwaysFalse:
		return false, nil

	case KindAnd:
		for _, child := range n.Children {
			ok, err := m.matches(child, doc)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil

	case KindOr, KindNor:
		for _, child := range n.Children {
			ok, err := m.matches(child, doc)
			if err != nil {
				return false, err
			}

			if ok {
				return n.Kind == KindOr, nil
			}
		}

		return n.Kind == KindNor, nil

	case KindNot:
		ok, err := m.matches(n.Children[0], doc)

		return !ok && err == nil, err

	case KindWhere:
		return n.Where(doc)

	case KindExpr:
		v, err := n.Expr(doc)
		if err != nil {
			return false, err
		}

		return coercesToTrue(v), nil

	case KindExists:
		ok := m.walkPath(n.Path, doc,
			leafPred{mode: leafNoTraverse, pred: func(v base.Val) bool {
				return len(v) > 0
			}})

		if !n.ExistsVal {
			ok = !ok
		}

		return ok, nil

	case KindText, KindGeoWithin:
		return false, fmt.Errorf("match: %s is not supported", n.Kind)
	}

	lp, err := m.leafPredFor(n)
	if err != nil {
		return false, err
	}

	if n.Path.Empty() {
		// Direct application, as for a child of a value $elemMatch.
		return lp.pred(doc), nil
	}

	return m.walkPath(n.Path, doc, lp), nil
}

// -----------------------------------------------------

type leafMode int

const (
	leafElements leafMode = iota // Elements of a leaf array.
	leafArrayAndElements
	leafNoTraverse
)

type leafPred struct {
	mode leafMode
	pred func(v base.Val) bool

	// matchesNothing preds, like an equality to null, also match
	// when a non-leaf path component lands on a scalar or missing
	// value -- unless that happens under array traversal.
	matchesNothing bool
}

// walkPath applies a leaf predicate through the path's implicit
// array traversal. The input at each level is the enclosing document
// or, under traversal, the current array element.
func (m *Matcher) walkPath(p Path, input base.Val, lp leafPred) bool {
	return m.walkLevel(p, 0, input, false, lp)
}

func (m *Matcher) walkLevel(p Path, level int, input base.Val,
	inputIsElem bool, lp leafPred) bool {
	childIsLeafEmpty := level == p.NumParts()-2 && p.Part(level+1) == ""
	isLeaf := level == p.NumParts()-1 || childIsLeafEmpty

	f := getField(input, p.Part(level))

	// A trailing empty path component reaches both the "" field of a
	// subdocument and, via traversal, the elements of an array.
	if childIsLeafEmpty && !isArray(f) {
		f = getField(f, "")
	}

	if isLeaf {
		if lp.mode == leafNoTraverse {
			return lp.pred(f)
		}

		if !isArray(f) {
			return lp.pred(f)
		}

		found := false

		_, _ = jsonparser.ArrayEach(f,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				if !found && lp.pred(rejoin(v, vT)) {
					found = true
				}
			})

		if !found && lp.mode == leafArrayAndElements {
			found = lp.pred(f)
		}

		return found
	}

	if isArray(f) {
		found := false

		_, _ = jsonparser.ArrayEach(f,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				elem := rejoin(v, vT)

				if !found && isObject(elem) &&
					m.walkLevel(p, level+1, elem, true, lp) {
					found = true
				}
			})

		return found
	}

	if isObject(f) {
		return m.walkLevel(p, level+1, f, false, lp)
	}

	// The path stops early on a scalar or missing value, which a
	// matches-nothing predicate accepts, except when the enclosing
	// input was itself an array element that is an array.
	return lp.matchesNothing && !isArray(input)
}

// -----------------------------------------------------

func (m *Matcher) leafPredFor(n *Node) (leafPred, error) {
	switch n.Kind {
	case KindEq, KindLT, KindLTE, KindGT, KindGTE:
		return m.comparisonPred(n), nil

	case KindIn:
		return m.inPred(n), nil

	case KindBitsAllSet, KindBitsAllClear, KindBitsAnySet, KindBitsAnyClear:
		return leafPred{pred: func(v base.Val) bool {
			return bitTestMatches(n.Kind, n.BitPositions, v)
		}}, nil

	case KindMod:
		return leafPred{pred: func(v base.Val) bool {
			f, ok := base.ParseNumber(v)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}

			t := math.Trunc(f)
			if t < math.MinInt64 || t >= math.MaxInt64 {
				return false
			}

			return int64(t)%n.Divisor == n.Remainder
		}}, nil

	case KindRegex:
		re := m.regexps[n]

		return leafPred{pred: func(v base.Val) bool {
			return regexMatches(re, n.Pattern, n.Options, v)
		}}, nil

	case KindSize:
		return leafPred{mode: leafNoTraverse, pred: func(v base.Val) bool {
			if n.Size < 0 || !isArray(v) {
				return false
			}

			return arrayLen(v) == n.Size
		}}, nil

	case KindType:
		mode := leafElements
		if n.TypeSet&base.TypeArray != 0 {
			mode = leafNoTraverse
		}

		return leafPred{mode: mode, pred: func(v base.Val) bool {
			return base.ValTypeMask(v)&n.TypeSet != 0
		}}, nil

	case KindElemMatchValue:
		return leafPred{mode: leafNoTraverse, pred: func(v base.Val) bool {
			return m.anyElem(v, func(elem base.Val) bool {
				for _, child := range n.Children {
					ok, err := m.matches(child, elem)
					if err != nil || !ok {
						return false
					}
				}

				return true
			})
		}}, nil

	case KindElemMatchObject:
		return leafPred{mode: leafNoTraverse, pred: func(v base.Val) bool {
			return m.anyElem(v, func(elem base.Val) bool {
				if !isObject(elem) && !isArray(elem) {
					return false
				}

				ok, err := m.matches(n.Children[0], elem)

				return ok && err == nil
			})
		}}, nil
	}

	return leafPred{}, fmt.Errorf("match: no leaf predicate for %s", n.Kind)
}

func (m *Matcher) anyElem(v base.Val, pred func(base.Val) bool) bool {
	if !isArray(v) {
		return false
	}

	found := false

	_, _ = jsonparser.ArrayEach(v,
		func(item []byte, vT jsonparser.ValueType, o int, vErr error) {
			if !found && pred(rejoin(item, vT)) {
				found = true
			}
		})

	return found
}

// -----------------------------------------------------

func (m *Matcher) comparisonPred(n *Node) leafPred {
	rhs := n.Value

	mode := leafElements
	if isArray(rhs) ||
		base.ValTypeMask(rhs) == base.TypeMinKey ||
		base.ValTypeMask(rhs) == base.TypeMaxKey {
		mode = leafArrayAndElements
	}

	switch base.ValTypeMask(rhs) {
	case base.TypeMinKey:
		return leafPred{mode: mode, pred: func(v base.Val) bool {
			return minMaxKeyMatches(n.Kind, v, base.TypeMinKey)
		}}

	case base.TypeMaxKey:
		return leafPred{mode: mode, pred: func(v base.Val) bool {
			return minMaxKeyMatches(n.Kind, v, base.TypeMaxKey)
		}}

	case base.TypeNull, base.TypeUndefined:
		matchesNothing := n.Kind == KindEq ||
			n.Kind == KindLTE || n.Kind == KindGTE

		return leafPred{mode: mode, matchesNothing: matchesNothing,
			pred: func(v base.Val) bool {
				switch base.ValTypeMask(v) {
				case 0, base.TypeNull, base.TypeUndefined:
					return matchesNothing
				}

				return false
			}}
	}

	if f, ok := base.ParseNumber(rhs); ok && math.IsNaN(f) {
		matchesNaN := n.Kind == KindEq ||
			n.Kind == KindLTE || n.Kind == KindGTE

		return leafPred{mode: mode, pred: func(v base.Val) bool {
			if !matchesNaN {
				return false
			}

			vf, vok := base.ParseNumber(v)

			return vok && math.IsNaN(vf)
		}}
	}

	return leafPred{mode: mode, pred: func(v base.Val) bool {
		cmp, ok := m.cmp.CompareSameClass(v, rhs)
		if !ok {
			return false
		}

		switch n.Kind {
		case KindEq:
			return cmp == 0
		case KindLT:
			return cmp < 0
		case KindLTE:
			return cmp <= 0
		case KindGT:
			return cmp > 0
		}

		return cmp >= 0
	}}
}

func minMaxKeyMatches(kind Kind, v base.Val, key base.TypeMask) bool {
	isKey := base.ValTypeMask(v) == key
	exists := len(v) > 0

	lower := key == base.TypeMinKey // MinKey sorts below everything.

	switch kind {
	case KindEq:
		return isKey
	case KindGT:
		if lower {
			return exists && !isKey
		}

		return false
	case KindGTE:
		if lower {
			return exists
		}

		return isKey
	case KindLT:
		if lower {
			return false
		}

		return exists && !isKey
	}

	if lower {
		return isKey
	}

	return exists
}

// -----------------------------------------------------

func (m *Matcher) inPred(n *Node) leafPred {
	hasNull := false

	for _, eq := range n.Equalities {
		switch base.ValTypeMask(eq) {
		case base.TypeNull, base.TypeUndefined:
			hasNull = true
		}
	}

	hasArray := false

	for _, eq := range n.Equalities {
		if isArray(eq) {
			hasArray = true
		}
	}

	mode := leafElements
	if hasArray {
		mode = leafArrayAndElements
	}

	regexps := m.inRegexps[n]

	return leafPred{mode: mode, matchesNothing: hasNull,
		pred: func(v base.Val) bool {
			vIsNothing := false
			switch base.ValTypeMask(v) {
			case 0, base.TypeNull, base.TypeUndefined:
				vIsNothing = true
			}

			if vIsNothing {
				return hasNull
			}

			for _, eq := range n.Equalities {
				if cmp, ok := m.cmp.CompareSameClass(v, eq); ok && cmp == 0 {
					return true
				}
			}

			for i, re := range regexps {
				if regexMatches(re,
					n.Regexes[i].Pattern, n.Regexes[i].Options, v) {
					return true
				}
			}

			return false
		}}
}

// -----------------------------------------------------

// regexMatches applies a regex to strings, and also accepts a regex
// value that is byte-for-byte the same source.
func regexMatches(re *regexp.Regexp, pattern, options string,
	v base.Val) bool {
	if pattern2, options2, ok := base.RegexParts(v); ok {
		return pattern == pattern2 && options == options2
	}

	if len(v) == 0 || v[0] != '"' {
		return false
	}

	s, err := jsonparser.ParseString(trimQuotes(v))
	if err != nil {
		return false
	}

	return re.MatchString(s)
}

// -----------------------------------------------------

func bitTestMatches(kind Kind, positions []int64, v base.Val) bool {
	if raw, _, ok := base.BinDataBytes(v); ok {
		return bitTestBytes(kind, positions, raw)
	}

	f, ok := base.ParseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) ||
		f != math.Trunc(f) ||
		f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}

	iv := int64(f)

	anySet, anyClear := false, false

	for _, pos := range positions {
		if pos > 63 {
			pos = 63 // The sign bit repeats forever.
		}

		if iv&(int64(1)<<uint(pos)) != 0 {
			anySet = true
		} else {
			anyClear = true
		}
	}

	return bitTestResult(kind, anySet, anyClear)
}

func bitTestBytes(kind Kind, positions []int64, raw []byte) bool {
	anySet, anyClear := false, false

	for _, pos := range positions {
		set := false

		if byteAt := pos / 8; byteAt < int64(len(raw)) {
			set = raw[byteAt]&(1<<uint(pos%8)) != 0
		}

		if set {
			anySet = true
		} else {
			anyClear = true
		}
	}

	return bitTestResult(kind, anySet, anyClear)
}

func bitTestResult(kind Kind, anySet, anyClear bool) bool {
	switch kind {
	case KindBitsAllSet:
		return !anyClear
	case KindBitsAllClear:
		return !anySet
	case KindBitsAnySet:
		return anySet
	}

	return anyClear
}

// -----------------------------------------------------

func coercesToTrue(v base.Val) bool {
	if len(v) == 0 {
		return false
	}

	switch base.JsonTypes[v[0]] {
	case "null":
		return false
	case "bool":
		return v[0] == 't'
	case "number":
		f, _ := base.ParseNumber(v)
		return f != 0
	}

	return true
}

// -----------------------------------------------------

func isArray(v base.Val) bool {
	return len(v) > 0 && v[0] == '['
}

func isObject(v base.Val) bool {
	return base.ValTypeMask(v) == base.TypeObject
}

func arrayLen(v base.Val) (n int64) {
	_, _ = jsonparser.ArrayEach(v,
		func(item []byte, vT jsonparser.ValueType, o int, vErr error) {
			n++
		})

	return n
}

func getField(v base.Val, name string) base.Val {
	if !isObject(v) {
		return base.ValMissing
	}

	f, fT, _, err := jsonparser.Get(v, name)
	if err != nil {
		return base.ValMissing
	}

	return rejoin(f, fT)
}
