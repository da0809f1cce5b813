package base

import (
	"bytes"
	"encoding/base64"
	"math"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
)

// ClassPriority orders the value classes the way the match language
// sorts mixed-type values. Values of different classes compare by
// class alone, with the null class also covering undefined.
var ClassPriority = map[TypeMask]int{
	TypeMinKey:    1,
	TypeNull:      2,
	TypeUndefined: 2,
	TypeNumber:    3,
	TypeString:    4,
	TypeObject:    5,
	TypeArray:     6,
	TypeBinData:   7,
	TypeBoolean:   8,
	TypeRegex:     9,
	TypeMaxKey:    10,
}

func ValClassPriority(a Val) int {
	return ClassPriority[ValTypeMask(a)]
}

// ---------------------------------------------

type ValComparer struct {
	Preallocs []KeyVals // Slices reused across Compare()'s.
}

func NewValComparer() *ValComparer {
	return &ValComparer{}
}

// ---------------------------------------------

func (c *ValComparer) Alloc(depth int) KeyVals {
	for len(c.Preallocs) < depth+1 {
		c.Preallocs = append(c.Preallocs, nil)
	}

	return c.Preallocs[depth][:0]
}

// ---------------------------------------------

// Compare orders two Vals. Missing sorts before everything, then by
// class priority, then by a class-specific comparison. The result for
// equal-class values of the number class treats NaN as lower than any
// other number and equal to itself.
func (c *ValComparer) Compare(a, b Val) int {
	return compareSign(c.CompareDeep(a, b, 0))
}

func (c *ValComparer) Equal(a, b Val) bool {
	return c.CompareDeep(a, b, 0) == 0
}

func (c *ValComparer) CompareDeep(a, b Val, depth int) int {
	a, b = ValTrim(a), ValTrim(b)

	if len(a) == 0 || len(b) == 0 {
		if len(a) == len(b) {
			return 0
		}

		if len(a) == 0 {
			return -1
		}

		return 1
	}

	aClass := ValClassPriority(a)
	bClass := ValClassPriority(b)

	if aClass != bClass {
		return aClass - bClass
	}

	switch ValTypeMask(a) {
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		return 0

	case TypeBoolean:
		return int(a[0]) - int(b[0]) // Ex: 't' - 'f'.

	case TypeNumber:
		av, _ := ParseNumber(a)
		bv, _ := ParseNumber(b)

		aNaN := math.IsNaN(av)
		bNaN := math.IsNaN(bv)

		if aNaN || bNaN {
			if aNaN && bNaN {
				return 0
			}

			if aNaN {
				return -1
			}

			return 1
		}

		if av == bv {
			return 0
		}

		if av < bv {
			return -1
		}

		return 1

	case TypeString:
		av, aErr := jsonparser.ParseString(trimQuotes(a))
		bv, bErr := jsonparser.ParseString(trimQuotes(b))

		if aErr != nil || bErr != nil {
			return CompareErr(aErr, bErr)
		}

		if av == bv {
			return 0
		}

		if av < bv {
			return -1
		}

		return 1

	case TypeArray:
		return c.compareArrays(a, b, depth)

	case TypeObject:
		return c.compareObjects(a, b, depth)

	case TypeBinData:
		aBytes, aSub, _ := BinDataBytes(a)
		bBytes, bSub, _ := BinDataBytes(b)

		if len(aBytes) != len(bBytes) {
			return len(aBytes) - len(bBytes)
		}

		if aSub != bSub {
			if aSub < bSub {
				return -1
			}

			return 1
		}

		return bytes.Compare(aBytes, bBytes)

	case TypeRegex:
		aPattern, aOptions, _ := RegexParts(a)
		bPattern, bOptions, _ := RegexParts(b)

		if aPattern != bPattern {
			if aPattern < bPattern {
				return -1
			}

			return 1
		}

		if aOptions == bOptions {
			return 0
		}

		if aOptions < bOptions {
			return -1
		}

		return 1
	}

	return 0
}

// ---------------------------------------------

func (c *ValComparer) compareArrays(a, b Val, depth int) int {
	var bItems [][]byte
	_, bErr := jsonparser.ArrayEach(b,
		func(v []byte, vT jsonparser.ValueType, vOffset int, vErr error) {
			bItems = append(bItems, reJson(v, vT))
		})

	depthPlus1 := depth + 1

	var i int
	var cmp int

	_, aErr := jsonparser.ArrayEach(a,
		func(v []byte, vT jsonparser.ValueType, vOffset int, vErr error) {
			if cmp != 0 {
				return
			}

			if i >= len(bItems) {
				cmp = 1
				return
			}

			cmp = c.CompareDeep(reJson(v, vT), bItems[i], depthPlus1)

			i++
		})

	if aErr != nil || bErr != nil {
		return CompareErr(aErr, bErr)
	}

	if cmp == 0 && i < len(bItems) {
		cmp = -1 // The a array was a prefix of the b array.
	}

	return cmp
}

// ---------------------------------------------

func (c *ValComparer) compareObjects(a, b Val, depth int) int {
	kvs := c.Alloc(depth)

	var aLen int
	aErr := jsonparser.ObjectEach(a,
		func(k []byte, v []byte, vT jsonparser.ValueType, offset int) error {
			kvs = append(kvs, KeyVal{k, reJson(v, vT), 1})
			aLen++
			return nil
		})

	var bLen int
	bErr := jsonparser.ObjectEach(b,
		func(k []byte, v []byte, vT jsonparser.ValueType, offset int) error {
			kvs = append(kvs, KeyVal{k, reJson(v, vT), -1})
			bLen++
			return nil
		})

	c.Preallocs[depth] = kvs

	if aErr != nil || bErr != nil {
		return CompareErr(aErr, bErr)
	}

	delta := aLen - bLen // Larger object wins.
	if delta != 0 {
		return delta
	}

	sort.Sort(kvs)

	// With closely matching objects, the sorted kvs should look like
	// a sequence of pairs, like...
	//
	// [{"city", "sf", 1}, {"city", "sf", -1}, {"state", ...} ...]
	//
	// A KeyVal entry from a has Pos 1, from b has Pos -1. The loop
	// looks for the first non-matching pair, kvX & kvY.
	//
	depthPlus1 := depth + 1

	i := 0
	for i < len(kvs) {
		kvX := kvs[i]
		i++

		if i >= len(kvs) {
			return kvX.Pos
		}

		kvY := kvs[i]
		i++

		if kvX.Pos == kvY.Pos {
			return kvX.Pos
		}

		if !bytes.Equal(kvX.Key, kvY.Key) {
			return kvX.Pos
		}

		cmp := c.CompareDeep(kvX.Val, kvY.Val, depthPlus1)
		if cmp != 0 {
			return cmp
		}
	}

	return 0
}

// ---------------------------------------------

// CompareSameClass orders two Vals only when they are of the same
// value class, which is how the match-language comparison operators
// behave -- cross-class comparisons never match. The ok result is
// false for cross-class pairs, for missing inputs, and when either
// number is NaN, as NaN is inequal under every operator.
func (c *ValComparer) CompareSameClass(a, b Val) (int, bool) {
	a, b = ValTrim(a), ValTrim(b)

	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}

	aClass := ValClassPriority(a)
	if aClass != ValClassPriority(b) {
		return 0, false
	}

	if aClass == ClassPriority[TypeNumber] {
		av, _ := ParseNumber(a)
		bv, _ := ParseNumber(b)

		if math.IsNaN(av) || math.IsNaN(bv) {
			return 0, false
		}
	}

	return compareSign(c.CompareDeep(a, b, 0)), true
}

// compareSign squeezes the raw deltas CompareDeep leaks, like class
// priority or object size differences, down to -1 / 0 / 1.
func compareSign(cmp int) int {
	if cmp < 0 {
		return -1
	}

	if cmp > 0 {
		return 1
	}

	return 0
}

// ---------------------------------------------

func CompareErr(aErr, bErr error) int {
	if aErr != nil && bErr != nil {
		return 0
	}

	if aErr != nil {
		return -1
	}

	return 1
}

// ---------------------------------------------

type KeyVal struct {
	Key []byte
	Val []byte
	Pos int
}

type KeyVals []KeyVal

func (a KeyVals) Len() int { return len(a) }

func (a KeyVals) Swap(i, j int) { a[i], a[j] = a[j], a[i] }

func (a KeyVals) Less(i, j int) bool {
	cmp := bytes.Compare(a[i].Key, a[j].Key)
	if cmp < 0 {
		return true
	}

	if cmp > 0 {
		return false
	}

	return a[i].Pos > a[j].Pos // Reverse ordering on Pos.
}

// ---------------------------------------------

// trimQuotes converts a whole JSON string value into the inner bytes
// that jsonparser.ParseString expects.
func trimQuotes(a Val) []byte {
	if len(a) >= 2 && a[0] == '"' {
		return a[1 : len(a)-1]
	}

	return a
}

// reJson undoes jsonparser's habit of handing string values to
// callbacks with their surrounding quotes stripped.
func reJson(v []byte, vT jsonparser.ValueType) []byte {
	if vT == jsonparser.String {
		rv := make([]byte, 0, len(v)+2)
		rv = append(rv, '"')
		rv = append(rv, v...)
		rv = append(rv, '"')
		return rv
	}

	if vT == jsonparser.Null {
		return ValNull
	}

	return v
}

// ---------------------------------------------

// ParseNumber parses a number Val, including the $numberDouble
// extended form that encodes NaN and the infinities.
func ParseNumber(a Val) (float64, bool) {
	a = ValTrim(a)

	if len(a) == 0 {
		return 0, false
	}

	if a[0] == '{' {
		if ExtTag(a) != ExtDouble {
			return 0, false
		}

		s, err := jsonparser.GetString(a, ExtDouble)
		if err != nil {
			return 0, false
		}

		switch s {
		case "NaN":
			return math.NaN(), true
		case "Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}

		f, err := strconv.ParseFloat(s, 64)

		return f, err == nil
	}

	if JsonTypes[a[0]] != "number" {
		return 0, false
	}

	f, err := jsonparser.ParseFloat(a)

	return f, err == nil
}

// BinDataBytes decodes a $binary Val into its raw bytes and subtype.
func BinDataBytes(a Val) ([]byte, string, bool) {
	if ExtTag(a) != ExtBinary {
		return nil, "", false
	}

	b64, err := jsonparser.GetString(a, ExtBinary, "base64")
	if err != nil {
		return nil, "", false
	}

	subType, _ := jsonparser.GetString(a, ExtBinary, "subType")

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", false
	}

	return raw, subType, true
}

// RegexParts pulls the pattern and options out of a
// $regularExpression Val.
func RegexParts(a Val) (string, string, bool) {
	if ExtTag(a) != ExtRegex {
		return "", "", false
	}

	pattern, err := jsonparser.GetString(a, ExtRegex, "pattern")
	if err != nil {
		return "", "", false
	}

	options, _ := jsonparser.GetString(a, ExtRegex, "options")

	return pattern, options, true
}
