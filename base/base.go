// Base has the value model and the IR type definitions shared by the
// filter compiler and the closure-based runtime.

package base

import (
	"fmt"
	"sync/atomic"

	"github.com/buger/jsonparser"
)

// Val is a JSON encoded value. A nil Val represents Missing (a.k.a.
// Nothing) -- the absence of any value, as distinct from JSON null.
type Val []byte

type Vals []Val

var ValMissing = Val(nil)

var ValNull = Val([]byte("null"))

var ValTrue = Val([]byte("true"))

var ValFalse = Val([]byte("false"))

func (a Val) String() string {
	return fmt.Sprintf("%q", []byte(a))
}

// -----------------------------------------------------

func ValEqualTrue(val Val) bool {
	return len(val) > 0 && val[0] == 't'
}

func ValBool(b bool) Val {
	if b {
		return ValTrue
	}

	return ValFalse
}

func ValHasValue(val Val) bool {
	return len(val) > 0
}

// ValTrim strips the insignificant whitespace that can surround a
// JSON encoding, so that the 0'th byte classifies the value.
func ValTrim(a Val) Val {
	for len(a) > 0 && isJsonSpace(a[0]) {
		a = a[1:]
	}

	for len(a) > 0 && isJsonSpace(a[len(a)-1]) {
		a = a[:len(a)-1]
	}

	return a
}

func isJsonSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// -----------------------------------------------------

// SlotID identifies a value register in a dataflow plan. The zero
// SlotID is reserved to mean "no slot".
type SlotID int64

// FrameID identifies a lexical binding (a let or a lambda param) in a
// scalar expression. The zero FrameID is reserved.
type FrameID int64

var lastSlotID int64

var lastFrameID int64

// NextSlotID allocates a fresh slot identifier. Identifiers increase
// monotonically and are never reused for the lifetime of the process,
// as reuse would silently alias unrelated values across plans.
func NextSlotID() SlotID {
	return SlotID(atomic.AddInt64(&lastSlotID, 1))
}

func NextFrameID() FrameID {
	return FrameID(atomic.AddInt64(&lastFrameID, 1))
}

// -----------------------------------------------------

// Expr is a scalar expression in s-expression form, where the 0'th
// item names a func in the expression catalog and the rest are its
// params. Params are usually nested Expr's, but a param can also be a
// prepared Go value (a SlotID, a compiled regexp, a hash set), as
// such params are opaque constants to the runtime.
type Expr []interface{}

// -----------------------------------------------------

// Env holds the runtime registers for one evaluation: the slots
// written by stages and the frames bound by let / lambda exprs.
type Env struct {
	Slots  map[SlotID]Val
	Frames map[FrameID]Val
}

func NewEnv() *Env {
	return &Env{
		Slots:  map[SlotID]Val{},
		Frames: map[FrameID]Val{},
	}
}

// -----------------------------------------------------

// YieldVals memory ownership: the receiver func should generally copy
// any inputs that it wants to keep, because the provided slices might
// be reused by future invocations.
type YieldVals func(Vals)

type YieldErr func(error)

// -----------------------------------------------------

// ExprFunc is a compiled scalar expression.
type ExprFunc func(env *Env, yieldErr YieldErr) Val

// ExprCatalogFunc compiles one catalog entry's params into an
// ExprFunc closure.
type ExprCatalogFunc func(vars *Vars, params []interface{}) ExprFunc

// LambdaFunc is a compiled one-param lambda, applied by the traversal
// primitive to array elements.
type LambdaFunc func(env *Env, yieldErr YieldErr, arg Val) Val

// -----------------------------------------------------

// JsonTypes allows 0'th byte of a json []byte to tell us the type.
var JsonTypes = map[byte]string{
	'"': "string",
	'{': "object",
	'[': "array",
	'n': "null",
	't': "bool", // From "true".
	'f': "bool", // From "false".
	'-': "number",
	'0': "number",
	'1': "number",
	'2': "number",
	'3': "number",
	'4': "number",
	'5': "number",
	'6': "number",
	'7': "number",
	'8': "number",
	'9': "number",
}

// -----------------------------------------------------

// TypeMask classifies values for type-test exprs. The masks cover the
// JSON types plus the extended (BSON-only) kinds that ride along as
// tagged objects -- see ExtTag.
type TypeMask uint32

const (
	TypeNumber TypeMask = 1 << iota
	TypeString
	TypeObject
	TypeArray
	TypeBoolean
	TypeNull
	TypeUndefined
	TypeBinData
	TypeRegex
	TypeMinKey
	TypeMaxKey
)

// -----------------------------------------------------

// Extended-JSON tags carry the non-JSON value kinds that the match
// language can mention. A Val is "extended" when it is an object
// whose first field name is one of these tags.
const (
	ExtMinKey    = "$minKey"
	ExtMaxKey    = "$maxKey"
	ExtUndefined = "$undefined"
	ExtBinary    = "$binary"
	ExtRegex     = "$regularExpression"
	ExtDouble    = "$numberDouble" // For NaN / Infinity / -Infinity.
)

var errStopObjectEach = fmt.Errorf("stop")

// ExtTag returns the extended-JSON tag of a Val, or "" when the Val
// is an ordinary JSON value.
func ExtTag(a Val) string {
	a = ValTrim(a)

	if len(a) == 0 || a[0] != '{' {
		return ""
	}

	tag := ""

	_ = jsonparser.ObjectEach(a,
		func(k []byte, v []byte, vT jsonparser.ValueType, o int) error {
			tag = string(k) // Only the first field is examined.

			return errStopObjectEach
		})

	switch tag {
	case ExtMinKey, ExtMaxKey, ExtUndefined, ExtBinary, ExtRegex, ExtDouble:
		return tag
	}

	return ""
}

// ValTypeMask classifies a Val, mapping extended tags onto their own
// mask bits. Missing yields 0.
func ValTypeMask(a Val) TypeMask {
	a = ValTrim(a)

	if len(a) == 0 {
		return 0
	}

	switch JsonTypes[a[0]] {
	case "string":
		return TypeString
	case "array":
		return TypeArray
	case "null":
		return TypeNull
	case "bool":
		return TypeBoolean
	case "number":
		return TypeNumber
	case "object":
		switch ExtTag(a) {
		case ExtMinKey:
			return TypeMinKey
		case ExtMaxKey:
			return TypeMaxKey
		case ExtUndefined:
			return TypeUndefined
		case ExtBinary:
			return TypeBinData
		case ExtRegex:
			return TypeRegex
		case ExtDouble:
			return TypeNumber
		}

		return TypeObject
	}

	return 0
}
