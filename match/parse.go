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
	"strings"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

// ParseFilter parses a JSON filter document, such as...
//
//	{"x": 3, "a.b": {"$gt": 7, "$lt": 9}, "$or": [...]}
//
// ...into a match tree. The root of the result is always a KindAnd
// node, so an empty filter parses to an AND of nothing, which matches
// everything.
//
// $where is not parseable from JSON, as it needs a host func -- see
// NewWhere. $expr is likewise only reachable via NewExpr.
func ParseFilter(filter base.Val) (*Node, error) {
	children, err := parseFilterDoc(filter)
	if err != nil {
		return nil, err
	}

	return NewAnd(children...), nil
}

func parseFilterDoc(filter base.Val) (children []*Node, err error) {
	if len(filter) == 0 || filter[0] != '{' {
		return nil, fmt.Errorf("match: filter is not an object")
	}

	err = jsonparser.ObjectEach(filter,
		func(k []byte, v []byte, vT jsonparser.ValueType, o int) error {
			key := string(k)
			val := rejoin(v, vT)

			var node *Node
			var err error

			switch {
			case key == "$comment":
				return nil

			case key == "$and" || key == "$or" || key == "$nor":
				node, err = parseLogical(key, val)

			case key == "$text":
				node = &Node{Kind: KindText}

			case key == "$expr" || key == "$where":
				err = fmt.Errorf("match: %s needs a host func,"+
					" see NewExpr / NewWhere", key)

			case strings.HasPrefix(key, "$"):
				err = fmt.Errorf("match: unknown top-level operator: %s", key)

			default:
				node, err = parsePathValue(key, val)
			}

			if err != nil {
				return err
			}

			if node != nil {
				children = append(children, node)
			}

			return nil
		})
	if err != nil {
		return nil, err
	}

	return children, nil
}

func parseLogical(op string, val base.Val) (*Node, error) {
	if len(val) == 0 || val[0] != '[' {
		return nil, fmt.Errorf("match: %s takes an array", op)
	}

	var children []*Node

	var innerErr error

	_, err := jsonparser.ArrayEach(val,
		func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
			if innerErr != nil {
				return
			}

			if vT != jsonparser.Object {
				innerErr = fmt.Errorf("match: %s items must be objects", op)
				return
			}

			sub, err := parseFilterDoc(rejoin(v, vT))
			if err != nil {
				innerErr = err
				return
			}

			children = append(children, NewAnd(sub...))
		})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return nil, err
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("match: %s needs at least one item", op)
	}

	switch op {
	case "$and":
		return NewAnd(children...), nil
	case "$or":
		return NewOr(children...), nil
	}

	return NewNor(children...), nil
}

// parsePathValue handles one "field: value" entry of a filter doc,
// where the value is either an equality literal or an object of
// path-level operators.
func parsePathValue(path string, val base.Val) (*Node, error) {
	if isOperatorObject(val) {
		return parseOperatorObject(path, val)
	}

	return NewComparison(KindEq, path, val), nil
}

// isOperatorObject tells an operator object, like {"$gt": 7}, apart
// from a literal value. An extended-JSON literal, like a
// $regularExpression or $minKey object, is a literal.
func isOperatorObject(val base.Val) bool {
	if len(val) == 0 || val[0] != '{' || base.ExtTag(val) != "" {
		return false
	}

	sawOperator := false
	sawField := false

	_ = jsonparser.ObjectEach(val,
		func(k []byte, v []byte, vT jsonparser.ValueType, o int) error {
			if len(k) > 0 && k[0] == '$' {
				sawOperator = true
			} else {
				sawField = true
			}

			return nil
		})

	return sawOperator && !sawField
}

func parseOperatorObject(path string, val base.Val) (*Node, error) {
	var nodes []*Node

	var regexPattern, regexOptions *string

	err := jsonparser.ObjectEach(val,
		func(k []byte, v []byte, vT jsonparser.ValueType, o int) error {
			op := string(k)
			arg := rejoin(v, vT)

			node, err := parsePathOperator(path, op, arg,
				&regexPattern, &regexOptions)
			if err != nil {
				return err
			}

			if node != nil {
				nodes = append(nodes, node)
			}

			return nil
		})
	if err != nil {
		return nil, err
	}

	if regexPattern != nil {
		options := ""
		if regexOptions != nil {
			options = *regexOptions
		}

		nodes = append(nodes, NewRegex(path, *regexPattern, options))
	} else if regexOptions != nil {
		return nil, fmt.Errorf("match: $options without $regex")
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}

	return NewAnd(nodes...), nil
}

func parsePathOperator(path, op string, arg base.Val,
	regexPattern, regexOptions **string) (*Node, error) {
	switch op {
	case "$eq":
		return NewComparison(KindEq, path, arg), nil
	case "$lt":
		return NewComparison(KindLT, path, arg), nil
	case "$lte":
		return NewComparison(KindLTE, path, arg), nil
	case "$gt":
		return NewComparison(KindGT, path, arg), nil
	case "$gte":
		return NewComparison(KindGTE, path, arg), nil

	case "$ne":
		return NewNot(NewComparison(KindEq, path, arg)), nil

	case "$in":
		node, err := parseInList(path, arg)
		return node, err

	case "$nin":
		node, err := parseInList(path, arg)
		if err != nil {
			return nil, err
		}

		return NewNot(node), nil

	case "$not":
		child, err := parseNotArg(path, arg)
		if err != nil {
			return nil, err
		}

		return NewNot(child), nil

	case "$exists":
		return NewExists(path, argTruthy(arg)), nil

	case "$type":
		typeSet, err := parseTypeSet(arg)
		if err != nil {
			return nil, err
		}

		return NewType(path, typeSet), nil

	case "$size":
		n, ok := argInt(arg)
		if !ok {
			return nil, fmt.Errorf("match: $size takes an integer")
		}

		return NewSize(path, n), nil

	case "$mod":
		return parseMod(path, arg)

	case "$regex":
		pattern, options, err := regexArg(arg)
		if err != nil {
			return nil, err
		}

		*regexPattern = &pattern
		if options != "" {
			*regexOptions = &options
		}

		return nil, nil // Paired with $options by the caller.

	case "$options":
		s, err := jsonparser.ParseString(trimQuotes(arg))
		if err != nil {
			return nil, fmt.Errorf("match: $options takes a string")
		}

		*regexOptions = &s

		return nil, nil

	case "$elemMatch":
		return parseElemMatch(path, arg)

	case "$all":
		return parseAll(path, arg)

	case "$bitsAllSet", "$bitsAllClear", "$bitsAnySet", "$bitsAnyClear":
		return parseBitTest(path, op, arg)

	case "$geoWithin", "$near", "$nearSphere", "$geoIntersects":
		return &Node{Kind: KindGeoWithin, Path: NewPath(path)}, nil
	}

	return nil, fmt.Errorf("match: unknown operator: %s", op)
}

// -----------------------------------------------------

func parseInList(path string, arg base.Val) (*Node, error) {
	if len(arg) == 0 || arg[0] != '[' {
		return nil, fmt.Errorf("match: $in takes an array")
	}

	var equalities []base.Val
	var regexes []Regex

	var innerErr error

	_, err := jsonparser.ArrayEach(arg,
		func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
			if innerErr != nil {
				return
			}

			item := rejoin(v, vT)

			if base.ExtTag(item) == base.ExtRegex {
				pattern, options, _ := base.RegexParts(item)
				regexes = append(regexes, Regex{pattern, options})
				return
			}

			if vT == jsonparser.Object && isOperatorObject(item) {
				innerErr = fmt.Errorf(
					"match: $in items cannot be operator objects")
				return
			}

			equalities = append(equalities, item)
		})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return nil, err
	}

	return NewIn(path, equalities, regexes), nil
}

// parseNotArg accepts either an operator object or a regex literal,
// which is shorthand for $not of $regex.
func parseNotArg(path string, arg base.Val) (*Node, error) {
	if base.ExtTag(arg) == base.ExtRegex {
		pattern, options, _ := base.RegexParts(arg)

		return NewRegex(path, pattern, options), nil
	}

	if !isOperatorObject(arg) {
		return nil, fmt.Errorf("match: $not takes an operator object")
	}

	return parseOperatorObject(path, arg)
}

func parseMod(path string, arg base.Val) (*Node, error) {
	var parts []int64

	var innerErr error

	_, err := jsonparser.ArrayEach(arg,
		func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
			if innerErr != nil {
				return
			}

			// Non-integral numbers are truncated, like 3.5 => 3.
			f, ok := base.ParseNumber(rejoin(v, vT))
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				innerErr = fmt.Errorf("match: $mod takes numbers")
				return
			}

			parts = append(parts, int64(math.Trunc(f)))
		})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return nil, err
	}

	if len(parts) != 2 {
		return nil, fmt.Errorf(
			"match: $mod takes [divisor, remainder], got %d items", len(parts))
	}

	return NewMod(path, parts[0], parts[1])
}

func regexArg(arg base.Val) (pattern, options string, err error) {
	if base.ExtTag(arg) == base.ExtRegex {
		pattern, options, _ = base.RegexParts(arg)
		return pattern, options, nil
	}

	if len(arg) > 0 && arg[0] == '"' {
		pattern, err = jsonparser.ParseString(trimQuotes(arg))
		return pattern, "", err
	}

	return "", "", fmt.Errorf("match: $regex takes a string or regex")
}

// parseElemMatch tells the value form, like {$gt: 5, $lt: 9}, apart
// from the object form, which is a sub-filter over element fields. A
// body whose keys are all path-level operators is the value form,
// while $and / $or / $nor and plain field names force the object
// form.
func parseElemMatch(path string, arg base.Val) (*Node, error) {
	if len(arg) == 0 || arg[0] != '{' {
		return nil, fmt.Errorf("match: $elemMatch takes an object")
	}

	valueForm := isOperatorObject(arg)

	if valueForm {
		_ = jsonparser.ObjectEach(arg,
			func(k []byte, v []byte, vT jsonparser.ValueType, o int) error {
				switch string(k) {
				case "$and", "$or", "$nor", "$where", "$expr", "$text":
					valueForm = false
				}

				return nil
			})
	}

	if valueForm {
		ops, err := parseOperatorObject("", arg)
		if err != nil {
			return nil, err
		}

		if ops.Kind == KindAnd {
			return NewElemMatchValue(path, ops.Children...), nil
		}

		return NewElemMatchValue(path, ops), nil
	}

	children, err := parseFilterDoc(arg)
	if err != nil {
		return nil, err
	}

	return NewElemMatchObject(path, NewAnd(children...)), nil
}

func parseAll(path string, arg base.Val) (*Node, error) {
	if len(arg) == 0 || arg[0] != '[' {
		return nil, fmt.Errorf("match: $all takes an array")
	}

	var children []*Node

	var innerErr error

	_, err := jsonparser.ArrayEach(arg,
		func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
			if innerErr != nil {
				return
			}

			item := rejoin(v, vT)

			if vT == jsonparser.Object && isOperatorObject(item) {
				// Only the $elemMatch operator may appear here.
				elem, _, _, err := jsonparser.Get(item, "$elemMatch")
				if err != nil {
					innerErr = fmt.Errorf(
						"match: $all items cannot be operator objects")
					return
				}

				node, err := parseElemMatch(path,
					rejoin(elem, jsonparser.Object))
				if err != nil {
					innerErr = err
					return
				}

				children = append(children, node)
				return
			}

			children = append(children, NewComparison(KindEq, path, item))
		})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return nil, err
	}

	if len(children) == 0 {
		return NewAlwaysFalse(), nil // $all of nothing matches nothing.
	}

	if len(children) == 1 {
		return children[0], nil
	}

	return NewAnd(children...), nil
}

func parseBitTest(path, op string, arg base.Val) (*Node, error) {
	kind := map[string]Kind{
		"$bitsAllSet":   KindBitsAllSet,
		"$bitsAllClear": KindBitsAllClear,
		"$bitsAnySet":   KindBitsAnySet,
		"$bitsAnyClear": KindBitsAnyClear,
	}[op]

	if len(arg) > 0 && arg[0] == '[' {
		var positions []int64

		var innerErr error

		_, err := jsonparser.ArrayEach(arg,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				if innerErr != nil {
					return
				}

				n, ok := argInt(rejoin(v, vT))
				if !ok || n < 0 {
					innerErr = fmt.Errorf(
						"match: %s positions must be non-negative integers", op)
					return
				}

				positions = append(positions, n)
			})
		if err == nil {
			err = innerErr
		}
		if err != nil {
			return nil, err
		}

		return NewBitTest(kind, path, positions)
	}

	if raw, _, ok := base.BinDataBytes(arg); ok {
		var positions []int64

		for i, b := range raw {
			for bit := 0; bit < 8; bit++ {
				if b&(1<<uint(bit)) != 0 {
					positions = append(positions, int64(i*8+bit))
				}
			}
		}

		return NewBitTest(kind, path, positions)
	}

	mask, ok := argInt(arg)
	if !ok {
		return nil, fmt.Errorf(
			"match: %s takes a mask, position array, or binData", op)
	}

	return NewBitTestMask(kind, path, mask)
}

// -----------------------------------------------------

var typeAliases = map[string]base.TypeMask{
	"double":    base.TypeNumber,
	"int":       base.TypeNumber,
	"long":      base.TypeNumber,
	"decimal":   base.TypeNumber,
	"number":    base.TypeNumber,
	"string":    base.TypeString,
	"object":    base.TypeObject,
	"array":     base.TypeArray,
	"binData":   base.TypeBinData,
	"undefined": base.TypeUndefined,
	"bool":      base.TypeBoolean,
	"null":      base.TypeNull,
	"regex":     base.TypeRegex,
	"minKey":    base.TypeMinKey,
	"maxKey":    base.TypeMaxKey,
}

var typeCodes = map[int64]base.TypeMask{
	1:   base.TypeNumber, // double
	2:   base.TypeString,
	3:   base.TypeObject,
	4:   base.TypeArray,
	5:   base.TypeBinData,
	6:   base.TypeUndefined,
	8:   base.TypeBoolean,
	10:  base.TypeNull,
	11:  base.TypeRegex,
	16:  base.TypeNumber, // int
	18:  base.TypeNumber, // long
	19:  base.TypeNumber, // decimal
	-1:  base.TypeMinKey,
	127: base.TypeMaxKey,
}

func parseTypeSet(arg base.Val) (base.TypeMask, error) {
	if len(arg) > 0 && arg[0] == '[' {
		var typeSet base.TypeMask

		var innerErr error

		_, err := jsonparser.ArrayEach(arg,
			func(v []byte, vT jsonparser.ValueType, o int, vErr error) {
				if innerErr != nil {
					return
				}

				one, err := parseTypeSet(rejoin(v, vT))
				if err != nil {
					innerErr = err
					return
				}

				typeSet |= one
			})
		if err == nil {
			err = innerErr
		}

		return typeSet, err
	}

	if len(arg) > 0 && arg[0] == '"' {
		alias, err := jsonparser.ParseString(trimQuotes(arg))
		if err == nil {
			if typeSet, ok := typeAliases[alias]; ok {
				return typeSet, nil
			}
		}

		return 0, fmt.Errorf("match: unknown $type alias: %s", arg)
	}

	if code, ok := argInt(arg); ok {
		if typeSet, ok := typeCodes[code]; ok {
			return typeSet, nil
		}
	}

	return 0, fmt.Errorf("match: unknown $type code: %s", arg)
}

// -----------------------------------------------------

func argTruthy(arg base.Val) bool {
	if len(arg) == 0 {
		return false
	}

	if f, ok := base.ParseNumber(arg); ok {
		return f != 0
	}

	return arg[0] != 'f' && arg[0] != 'n'
}

func argInt(arg base.Val) (int64, bool) {
	f, ok := base.ParseNumber(arg)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}

	return int64(f), true
}

// rejoin undoes jsonparser's habit of handing string values to
// callbacks with their surrounding quotes stripped.
func rejoin(v []byte, vT jsonparser.ValueType) base.Val {
	if vT == jsonparser.String {
		rv := make([]byte, 0, len(v)+2)
		rv = append(rv, '"')
		rv = append(rv, v...)
		rv = append(rv, '"')
		return rv
	}

	if vT == jsonparser.Null {
		return base.ValNull
	}

	return base.Val(v)
}

func trimQuotes(a base.Val) []byte {
	if len(a) >= 2 && a[0] == '"' {
		return a[1 : len(a)-1]
	}

	return []byte(a)
}
