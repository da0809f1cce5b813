package match

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/couchbase/mqlc/base"
)

// nodeString renders a match tree compactly, like
// "and(eq(a,1),not(in(b,[2 3])))", for easy table comparisons.
func nodeString(n *Node) string {
	var childStrs []string
	for _, child := range n.Children {
		childStrs = append(childStrs, nodeString(child))
	}
	children := strings.Join(childStrs, ",")

	path := n.Path.Dotted()

	switch n.Kind {
	case KindAlwaysTrue:
		return "true"
	case KindAlwaysFalse:
		return "false"

	case KindEq, KindLT, KindLTE, KindGT, KindGTE:
		return fmt.Sprintf("%s(%s,%s)",
			strings.TrimPrefix(n.Kind.String(), "$"), path,
			string(n.Value))

	case KindIn:
		var items []string
		for _, eq := range n.Equalities {
			items = append(items, string(eq))
		}
		for _, re := range n.Regexes {
			items = append(items, "/"+re.Pattern+"/"+re.Options)
		}
		return fmt.Sprintf("in(%s,[%s])", path, strings.Join(items, " "))

	case KindBitsAllSet, KindBitsAllClear, KindBitsAnySet, KindBitsAnyClear:
		return fmt.Sprintf("%s(%s,%v,%d)",
			strings.TrimPrefix(n.Kind.String(), "$"),
			path, n.BitPositions, n.BitMask)

	case KindMod:
		return fmt.Sprintf("mod(%s,%d,%d)", path, n.Divisor, n.Remainder)

	case KindRegex:
		return fmt.Sprintf("regex(%s,/%s/%s)", path, n.Pattern, n.Options)

	case KindSize:
		return fmt.Sprintf("size(%s,%d)", path, n.Size)

	case KindExists:
		return fmt.Sprintf("exists(%s,%t)", path, n.ExistsVal)

	case KindType:
		return fmt.Sprintf("type(%s,0x%s)",
			path, strconv.FormatInt(int64(n.TypeSet), 16))

	case KindElemMatchValue:
		return fmt.Sprintf("elemMatchValue(%s,%s)", path, children)

	case KindElemMatchObject:
		return fmt.Sprintf("elemMatchObject(%s,%s)", path, children)

	case KindAnd:
		return fmt.Sprintf("and(%s)", children)
	case KindOr:
		return fmt.Sprintf("or(%s)", children)
	case KindNor:
		return fmt.Sprintf("nor(%s)", children)
	case KindNot:
		return fmt.Sprintf("not(%s)", children)

	case KindText:
		return "text()"
	case KindGeoWithin:
		return fmt.Sprintf("geoWithin(%s)", path)
	}

	return "unknown"
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		filter   string
		expected string // Or "err" when parsing must fail.
	}{
		// Equality and comparison operators.
		{`{}`, `and()`},
		{`{"a": 1}`, `and(eq(a,1))`},
		{`{"a": "hi"}`, `and(eq(a,"hi"))`},
		{`{"a": null}`, `and(eq(a,null))`},
		{`{"a": [1, 2]}`, `and(eq(a,[1, 2]))`},
		{`{"a.b.c": 1}`, `and(eq(a.b.c,1))`},
		{`{"a": {"b": 1}}`, `and(eq(a,{"b": 1}))`},
		{`{"a": {"$gt": 7}}`, `and(gt(a,7))`},
		{`{"a": {"$gt": 7, "$lt": 9}}`, `and(and(gt(a,7),lt(a,9)))`},
		{`{"a": {"$gte": 7, "$lte": 9}}`, `and(and(gte(a,7),lte(a,9)))`},
		{`{"x": 3, "y": 4}`, `and(eq(x,3),eq(y,4))`},

		// Extended-JSON literals are values, not operator objects.
		{`{"a": {"$minKey": 1}}`, `and(eq(a,{"$minKey": 1}))`},
		{`{"a": {"$numberDouble": "NaN"}}`,
			`and(eq(a,{"$numberDouble": "NaN"}))`},

		// Mixing operators and plain fields makes a literal.
		{`{"a": {"$gt": 7, "b": 1}}`, `and(eq(a,{"$gt": 7, "b": 1}))`},

		// $ne / $nin desugar to $not.
		{`{"a": {"$ne": 3}}`, `and(not(eq(a,3)))`},
		{`{"a": {"$nin": [1, 2]}}`, `and(not(in(a,[1 2])))`},

		// $in, with regex items split out.
		{`{"a": {"$in": []}}`, `and(in(a,[]))`},
		{`{"a": {"$in": [1, null, "x"]}}`, `and(in(a,[1 null "x"]))`},
		{`{"a": {"$in": [1,
		   {"$regularExpression": {"pattern": "^x", "options": "i"}}]}}`,
			`and(in(a,[1 /^x/i]))`},
		{`{"a": {"$in": [{"$gt": 3}]}}`, `err`},
		{`{"a": {"$in": 3}}`, `err`},

		// $not takes an operator object or a regex literal.
		{`{"a": {"$not": {"$gt": 3}}}`, `and(not(gt(a,3)))`},
		{`{"a": {"$not":
		   {"$regularExpression": {"pattern": "^x", "options": ""}}}}`,
			`and(not(regex(a,/^x/)))`},
		{`{"a": {"$not": 3}}`, `err`},

		// $exists coerces its argument to a boolean.
		{`{"a": {"$exists": true}}`, `and(exists(a,true))`},
		{`{"a": {"$exists": false}}`, `and(exists(a,false))`},
		{`{"a": {"$exists": 1}}`, `and(exists(a,true))`},
		{`{"a": {"$exists": 0}}`, `and(exists(a,false))`},
		{`{"a": {"$exists": "yes"}}`, `and(exists(a,true))`},
		{`{"a": {"$exists": null}}`, `and(exists(a,false))`},

		// $type aliases, codes, and arrays of either.
		{`{"a": {"$type": "string"}}`, `and(type(a,0x2))`},
		{`{"a": {"$type": 2}}`, `and(type(a,0x2))`},
		{`{"a": {"$type": "number"}}`, `and(type(a,0x1))`},
		{`{"a": {"$type": ["string", 4]}}`, `and(type(a,0xa))`},
		{`{"a": {"$type": -1}}`, `and(type(a,0x200))`},
		{`{"a": {"$type": 127}}`, `and(type(a,0x400))`},
		{`{"a": {"$type": "bogus"}}`, `err`},
		{`{"a": {"$type": 9999}}`, `err`},
		{`{"a": {"$type": 2.5}}`, `err`},

		// $size takes an integer, possibly negative.
		{`{"a": {"$size": 2}}`, `and(size(a,2))`},
		{`{"a": {"$size": -1}}`, `and(size(a,-1))`},
		{`{"a": {"$size": 2.5}}`, `err`},
		{`{"a": {"$size": "2"}}`, `err`},

		// $mod truncates non-integral parts and checks arity.
		{`{"a": {"$mod": [4, 1]}}`, `and(mod(a,4,1))`},
		{`{"a": {"$mod": [4.5, 1.9]}}`, `and(mod(a,4,1))`},
		{`{"a": {"$mod": [4]}}`, `err`},
		{`{"a": {"$mod": [4, 1, 2]}}`, `err`},
		{`{"a": {"$mod": [0, 1]}}`, `err`},
		{`{"a": {"$mod": ["4", 1]}}`, `err`},

		// $regex pairs with $options regardless of key order.
		{`{"a": {"$regex": "^x"}}`, `and(regex(a,/^x/))`},
		{`{"a": {"$regex": "^x", "$options": "i"}}`, `and(regex(a,/^x/i))`},
		{`{"a": {"$options": "i", "$regex": "^x"}}`, `and(regex(a,/^x/i))`},
		{`{"a": {"$regex":
		   {"$regularExpression": {"pattern": "^x", "options": "m"}}}}`,
			`and(regex(a,/^x/m))`},
		{`{"a": {"$regex": "^x", "$gt": 3}}`, `and(and(gt(a,3),regex(a,/^x/)))`},
		{`{"a": {"$options": "i"}}`, `err`},
		{`{"a": {"$regex": 3}}`, `err`},

		// $elemMatch, value form vs object form.
		{`{"a": {"$elemMatch": {"$gt": 5, "$lt": 9}}}`,
			`and(elemMatchValue(a,gt(,5),lt(,9)))`},
		{`{"a": {"$elemMatch": {"$gt": 5}}}`,
			`and(elemMatchValue(a,gt(,5)))`},
		{`{"a": {"$elemMatch": {"b": 1}}}`,
			`and(elemMatchObject(a,and(eq(b,1))))`},
		{`{"a": {"$elemMatch": {"b": 1, "c": {"$lt": 3}}}}`,
			`and(elemMatchObject(a,and(eq(b,1),lt(c,3))))`},
		{`{"a": {"$elemMatch": {"$or": [{"b": 1}, {"c": 2}]}}}`,
			`and(elemMatchObject(a,and(or(and(eq(b,1)),and(eq(c,2))))))`},
		{`{"a": {"$elemMatch": 3}}`, `err`},

		// $all desugars to an AND of equalities, and admits
		// $elemMatch items.
		{`{"a": {"$all": [1, 2]}}`, `and(and(eq(a,1),eq(a,2)))`},
		{`{"a": {"$all": [1]}}`, `and(eq(a,1))`},
		{`{"a": {"$all": []}}`, `and(false)`},
		{`{"a": {"$all": [{"$elemMatch": {"b": 1}}]}}`,
			`and(elemMatchObject(a,and(eq(b,1))))`},
		{`{"a": {"$all": [{"$gt": 3}]}}`, `err`},
		{`{"a": {"$all": 3}}`, `err`},

		// Bit tests take a mask, a position array, or binData.
		{`{"a": {"$bitsAllSet": [1, 5]}}`,
			`and(bitsAllSet(a,[1 5],34))`},
		{`{"a": {"$bitsAllSet": [5, 1, 5]}}`,
			`and(bitsAllSet(a,[5 1],34))`},
		{`{"a": {"$bitsAllSet": 34}}`,
			`and(bitsAllSet(a,[1 5],34))`},
		{`{"a": {"$bitsAnyClear":
		   {"$binary": {"base64": "Ag==", "subType": "00"}}}}`,
			`and(bitsAnyClear(a,[1],2))`},
		{`{"a": {"$bitsAllSet": 0}}`, `and(bitsAllSet(a,[],0))`},
		{`{"a": {"$bitsAllSet": [100]}}`, // Past 63 lands on the sign bit.
			`and(bitsAllSet(a,[100],-9223372036854775808))`},
		{`{"a": {"$bitsAnySet": [64, 70]}}`,
			`and(bitsAnySet(a,[64 70],-9223372036854775808))`},
		{`{"a": {"$bitsAllSet": [-1]}}`, `err`},
		{`{"a": {"$bitsAllSet": -2}}`, `err`},
		{`{"a": {"$bitsAllSet": "x"}}`, `err`},

		// Logical operators.
		{`{"$and": [{"a": 1}, {"b": 2}]}`,
			`and(and(and(eq(a,1)),and(eq(b,2))))`},
		{`{"$or": [{"a": 1}, {"b": 2}]}`,
			`and(or(and(eq(a,1)),and(eq(b,2))))`},
		{`{"$nor": [{"a": 1}]}`, `and(nor(and(eq(a,1))))`},
		{`{"$and": []}`, `err`},
		{`{"$and": [3]}`, `err`},
		{`{"$and": {"a": 1}}`, `err`},

		// $comment is skipped, $text is recognized but opaque.
		{`{"$comment": "hi", "a": 1}`, `and(eq(a,1))`},
		{`{"$text": {"$search": "x"}}`, `and(text())`},
		{`{"a": {"$geoWithin": {}}}`, `and(geoWithin(a))`},

		// $where / $expr need host funcs, so JSON forms fail.
		{`{"$where": "f()"}`, `err`},
		{`{"$expr": {"$gt": ["$a", 3]}}`, `err`},

		// Unknown operators.
		{`{"$bogus": 1}`, `err`},
		{`{"a": {"$bogus": 1}}`, `err`},
		{`3`, `err`},
		{``, `err`},
	}

	for testi, test := range tests {
		node, err := ParseFilter(base.Val(test.filter))
		if test.expected == "err" {
			if err == nil {
				t.Fatalf("testi: %d, test: %+v, expected err, got: %s",
					testi, test, nodeString(node))
			}
			continue
		}

		if err != nil {
			t.Fatalf("testi: %d, test: %+v, err: %v", testi, test, err)
		}

		got := nodeString(node)
		if got != test.expected {
			t.Fatalf("testi: %d, test: %+v, got: %s", testi, test, got)
		}
	}
}
