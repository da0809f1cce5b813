package match

import (
	"testing"

	"github.com/couchbase/mqlc/base"
)

func TestMatcher(t *testing.T) {
	tests := []struct {
		filter  string
		doc     string
		matches bool
	}{
		// Equality, with implicit array traversal at the leaf.
		{`{}`, `{}`, true},
		{`{}`, `{"a": 1}`, true},
		{`{"a": 1}`, `{"a": 1}`, true},
		{`{"a": 1}`, `{"a": 1.0}`, true},
		{`{"a": 1}`, `{"a": 2}`, false},
		{`{"a": 1}`, `{"a": "1"}`, false},
		{`{"a": 1}`, `{}`, false},
		{`{"a": 1}`, `{"a": [4, 1]}`, true},
		{`{"a": 1}`, `{"a": [[1]]}`, false},
		{`{"a": "x"}`, `{"a": ["x"]}`, true},
		{`{"a": {"b": 1}}`, `{"a": {"b": 1}}`, true},
		{`{"a": {"b": 1}}`, `{"a": {"b": 2}}`, false},
		{`{"a": {"b": 1}}`, `{"a": {"b": 1, "c": 2}}`, false},

		// An array RHS matches both elements and the whole array.
		{`{"a": [1, 2]}`, `{"a": [1, 2]}`, true},
		{`{"a": [1, 2]}`, `{"a": [[1, 2]]}`, true},
		{`{"a": [1, 2]}`, `{"a": [2, 1]}`, false},
		{`{"a": []}`, `{"a": []}`, true},
		{`{"a": []}`, `{"a": [[]]}`, true},
		{`{"a": []}`, `{"a": [1]}`, false},

		// Equality to null also matches missing.
		{`{"a": null}`, `{}`, true},
		{`{"a": null}`, `{"a": null}`, true},
		{`{"a": null}`, `{"a": {"$undefined": true}}`, true},
		{`{"a": null}`, `{"a": 1}`, false},
		{`{"a": null}`, `{"a": [null]}`, true},
		{`{"a": null}`, `{"a": [1]}`, false},
		{`{"a": null}`, `{"b": 1}`, true},

		// Ordered comparisons stay within one type class.
		{`{"a": {"$gt": 7}}`, `{"a": 9}`, true},
		{`{"a": {"$gt": 7}}`, `{"a": 7}`, false},
		{`{"a": {"$gte": 7}}`, `{"a": 7}`, true},
		{`{"a": {"$lt": 7}}`, `{"a": 6.5}`, true},
		{`{"a": {"$lte": 7}}`, `{"a": 8}`, false},
		{`{"a": {"$gt": 7}}`, `{"a": "9"}`, false},
		{`{"a": {"$gt": 7}}`, `{}`, false},
		{`{"a": {"$lt": "b"}}`, `{"a": "a"}`, true},
		{`{"a": {"$lt": "b"}}`, `{"a": 1}`, false},
		{`{"a": {"$gt": 7}}`, `{"a": [1, 10]}`, true},
		{`{"a": {"$gt": 7, "$lt": 9}}`, `{"a": 8}`, true},
		{`{"a": {"$gt": 7, "$lt": 9}}`, `{"a": 10}`, false},

		// A $gt / $lt over two different elements of one array still
		// matches, unlike a value $elemMatch.
		{`{"a": {"$gt": 7, "$lt": 3}}`, `{"a": [1, 10]}`, true},

		// Ordered comparisons to null match nothing; $lte / $gte
		// null degenerate to the null equality.
		{`{"a": {"$gt": null}}`, `{"a": null}`, false},
		{`{"a": {"$lt": null}}`, `{}`, false},
		{`{"a": {"$gte": null}}`, `{}`, true},
		{`{"a": {"$lte": null}}`, `{"a": null}`, true},
		{`{"a": {"$lte": null}}`, `{"a": 0}`, false},

		// NaN equals only NaN, and is never ordered.
		{`{"a": {"$numberDouble": "NaN"}}`,
			`{"a": {"$numberDouble": "NaN"}}`, true},
		{`{"a": {"$numberDouble": "NaN"}}`, `{"a": 1}`, false},
		{`{"a": {"$lt": {"$numberDouble": "NaN"}}}`,
			`{"a": {"$numberDouble": "NaN"}}`, false},
		{`{"a": {"$gte": {"$numberDouble": "NaN"}}}`,
			`{"a": {"$numberDouble": "NaN"}}`, true},

		// MinKey / MaxKey comparisons.
		{`{"a": {"$minKey": 1}}`, `{"a": {"$minKey": 1}}`, true},
		{`{"a": {"$minKey": 1}}`, `{"a": 1}`, false},
		{`{"a": {"$gt": {"$minKey": 1}}}`, `{"a": 1}`, true},
		{`{"a": {"$gt": {"$minKey": 1}}}`, `{"a": {"$minKey": 1}}`, false},
		{`{"a": {"$gt": {"$minKey": 1}}}`, `{}`, false},
		{`{"a": {"$gte": {"$minKey": 1}}}`, `{"a": null}`, true},
		{`{"a": {"$lt": {"$minKey": 1}}}`, `{"a": 1}`, false},
		{`{"a": {"$lt": {"$maxKey": 1}}}`, `{"a": 1}`, true},
		{`{"a": {"$gt": {"$maxKey": 1}}}`, `{"a": {"$maxKey": 1}}`, false},
		{`{"a": {"$gte": {"$maxKey": 1}}}`, `{"a": {"$maxKey": 1}}`, true},
		{`{"a": {"$eq": {"$maxKey": 1}}}`, `{"a": {"$maxKey": 1}}`, true},

		// Dotted paths, through subdocuments and arrays.
		{`{"a.b": 1}`, `{"a": {"b": 1}}`, true},
		{`{"a.b": 1}`, `{"a": {"b": 2}}`, false},
		{`{"a.b": 1}`, `{"a": [{"b": 1}]}`, true},
		{`{"a.b": 1}`, `{"a": [{"b": 2}, {"b": 1}]}`, true},
		{`{"a.b": 1}`, `{"a": [[{"b": 1}]]}`, false},
		{`{"a.b": 1}`, `{"a": [{"b": [1, 2]}]}`, true},
		{`{"a.b.c": 1}`, `{"a": [{"b": [{"c": 1}]}]}`, true},
		{`{"a.b": 1}`, `{"a": 5}`, false},

		// Null equality through an incomplete path.
		{`{"a.b": null}`, `{"a": 5}`, true},
		{`{"a.b": null}`, `{"a": {"c": 1}}`, true},
		{`{"a.b": null}`, `{"a": [5]}`, false},
		{`{"a.b": null}`, `{"a": [{"c": 1}]}`, true},
		{`{"a.b": null}`, `{"a": {"b": 1}}`, false},

		// A trailing empty path component reaches the "" field and
		// array elements.
		{`{"a.": 1}`, `{"a": {"": 1}}`, true},
		{`{"a.": 1}`, `{"a": [1]}`, true},
		{`{"a.": 1}`, `{"a": {"": [1]}}`, true},
		{`{"a.": 1}`, `{"a": 1}`, false},

		// $in, with null and regex items.
		{`{"a": {"$in": [1, "x"]}}`, `{"a": "x"}`, true},
		{`{"a": {"$in": [1, "x"]}}`, `{"a": 2}`, false},
		{`{"a": {"$in": [1, "x"]}}`, `{"a": [3, "x"]}`, true},
		{`{"a": {"$in": [1, "x"]}}`, `{}`, false},
		{`{"a": {"$in": [null, 1]}}`, `{}`, true},
		{`{"a": {"$in": [null, 1]}}`, `{"a": null}`, true},
		{`{"a": {"$in": [null, 1]}}`, `{"a": 2}`, false},
		{`{"a": {"$in": [[1, 2]]}}`, `{"a": [1, 2]}`, true},
		{`{"a": {"$in": [
		   {"$regularExpression": {"pattern": "^he", "options": "i"}}]}}`,
			`{"a": "Hello"}`, true},
		{`{"a": {"$in": [
		   {"$regularExpression": {"pattern": "^he", "options": ""}}]}}`,
			`{"a": "Hello"}`, false},

		// $ne / $nin.
		{`{"a": {"$ne": 3}}`, `{"a": 4}`, true},
		{`{"a": {"$ne": 3}}`, `{"a": [3, 4]}`, false},
		{`{"a": {"$ne": null}}`, `{}`, false},
		{`{"a": {"$ne": null}}`, `{"a": 4}`, true},
		{`{"a": {"$nin": [1, 2]}}`, `{"a": 3}`, true},
		{`{"a": {"$nin": [1, 2]}}`, `{"a": [3, 2]}`, false},

		// $exists is about field presence, not value.
		{`{"a": {"$exists": true}}`, `{"a": null}`, true},
		{`{"a": {"$exists": true}}`, `{"a": []}`, true},
		{`{"a": {"$exists": true}}`, `{}`, false},
		{`{"a": {"$exists": false}}`, `{}`, true},
		{`{"a": {"$exists": false}}`, `{"a": 0}`, false},
		{`{"a.b": {"$exists": true}}`, `{"a": [{"b": 1}]}`, true},
		{`{"a.b": {"$exists": true}}`, `{"a": [{"c": 1}]}`, false},

		// $type, with array-aware traversal.
		{`{"a": {"$type": "string"}}`, `{"a": "x"}`, true},
		{`{"a": {"$type": "string"}}`, `{"a": ["x"]}`, true},
		{`{"a": {"$type": "string"}}`, `{"a": [1]}`, false},
		{`{"a": {"$type": "number"}}`, `{"a": 1.5}`, true},
		{`{"a": {"$type": "array"}}`, `{"a": [1]}`, true},
		{`{"a": {"$type": "array"}}`, `{"a": 1}`, false},
		{`{"a": {"$type": ["string", "array"]}}`, `{"a": [1]}`, true},
		{`{"a": {"$type": "null"}}`, `{"a": null}`, true},
		{`{"a": {"$type": "null"}}`, `{}`, false},
		{`{"a": {"$type": "minKey"}}`, `{"a": {"$minKey": 1}}`, true},
		{`{"a": {"$type": "binData"}}`,
			`{"a": {"$binary": {"base64": "qg==", "subType": "00"}}}`, true},
		{`{"a": {"$type": "regex"}}`,
			`{"a": {"$regularExpression":
			  {"pattern": "x", "options": ""}}}`, true},

		// $size applies to the whole leaf array only.
		{`{"a": {"$size": 2}}`, `{"a": [1, 2]}`, true},
		{`{"a": {"$size": 2}}`, `{"a": [1]}`, false},
		{`{"a": {"$size": 2}}`, `{"a": 2}`, false},
		{`{"a": {"$size": 0}}`, `{"a": []}`, true},
		{`{"a": {"$size": 1}}`, `{"a": [[1, 2]]}`, true},
		{`{"a": {"$size": -1}}`, `{"a": []}`, false},

		// $mod truncates the input before dividing.
		{`{"a": {"$mod": [4, 1]}}`, `{"a": 5}`, true},
		{`{"a": {"$mod": [4, 1]}}`, `{"a": 5.5}`, true},
		{`{"a": {"$mod": [4, 1]}}`, `{"a": 8}`, false},
		{`{"a": {"$mod": [4, 1]}}`, `{"a": "5"}`, false},
		{`{"a": {"$mod": [4, -1]}}`, `{"a": -5}`, true},
		{`{"a": {"$mod": [4, 1]}}`, `{"a": [8, 9]}`, true},
		{`{"a": {"$mod": [4, 1]}}`,
			`{"a": {"$numberDouble": "NaN"}}`, false},

		// $regex, over strings, string arrays, and regex values.
		{`{"a": {"$regex": "^he"}}`, `{"a": "hello"}`, true},
		{`{"a": {"$regex": "^he"}}`, `{"a": "Hello"}`, false},
		{`{"a": {"$regex": "^he", "$options": "i"}}`, `{"a": "Hello"}`, true},
		{`{"a": {"$regex": "^he"}}`, `{"a": ["nope", "hers"]}`, true},
		{`{"a": {"$regex": "^he"}}`, `{"a": 5}`, false},
		{`{"a": {"$regex": "^he", "$options": "i"}}`,
			`{"a": {"$regularExpression":
			  {"pattern": "^he", "options": "i"}}}`, true},
		{`{"a": {"$regex": "^he", "$options": "i"}}`,
			`{"a": {"$regularExpression":
			  {"pattern": "^he", "options": ""}}}`, false},

		// Bit tests, over integers and binData.
		{`{"a": {"$bitsAllSet": [1, 3]}}`, `{"a": 10}`, true},
		{`{"a": {"$bitsAllSet": [1, 3]}}`, `{"a": 2}`, false},
		{`{"a": {"$bitsAllSet": 10}}`, `{"a": 10}`, true},
		{`{"a": {"$bitsAllClear": [0, 2]}}`, `{"a": 10}`, true},
		{`{"a": {"$bitsAllClear": [1, 2]}}`, `{"a": 10}`, false},
		{`{"a": {"$bitsAnySet": [0, 3]}}`, `{"a": 10}`, true},
		{`{"a": {"$bitsAnySet": [0, 2]}}`, `{"a": 10}`, false},
		{`{"a": {"$bitsAnyClear": [0, 3]}}`, `{"a": 10}`, true},
		{`{"a": {"$bitsAnyClear": [1, 3]}}`, `{"a": 10}`, false},
		{`{"a": {"$bitsAllSet": 0}}`, `{"a": 5}`, true},
		{`{"a": {"$bitsAnySet": 0}}`, `{"a": 5}`, false},
		{`{"a": {"$bitsAllSet": [1, 3]}}`, `{"a": 5.5}`, false},
		{`{"a": {"$bitsAllSet": [1, 3]}}`, `{"a": "x"}`, false},
		{`{"a": {"$bitsAllSet": [1, 3]}}`,
			`{"a": {"$binary": {"base64": "Cg==", "subType": "00"}}}`, true},
		{`{"a": {"$bitsAllSet": [1, 300]}}`,
			`{"a": {"$binary": {"base64": "Cg==", "subType": "00"}}}`, false},
		{`{"a": {"$bitsAllClear": [300]}}`,
			`{"a": {"$binary": {"base64": "Cg==", "subType": "00"}}}`, true},
		{`{"a": {"$bitsAllSet": [1, 3]}}`, `{"a": [2, 10]}`, true},

		// A negative integer has its sign bit repeated upward.
		{`{"a": {"$bitsAllSet": [100]}}`, `{"a": -1}`, true},
		{`{"a": {"$bitsAllSet": [100]}}`, `{"a": 1}`, false},

		// $elemMatch, value form: one element satisfies all.
		{`{"a": {"$elemMatch": {"$gt": 5, "$lt": 9}}}`, `{"a": [4, 7]}`, true},
		{`{"a": {"$elemMatch": {"$gt": 5, "$lt": 9}}}`, `{"a": [4, 10]}`, false},
		{`{"a": {"$elemMatch": {"$gt": 5, "$lt": 9}}}`, `{"a": 7}`, false},
		{`{"a": {"$elemMatch": {"$in": [3]}}}`, `{"a": [3]}`, true},

		// $elemMatch, object form: elements must be objects or arrays.
		{`{"a": {"$elemMatch": {"b": 1, "c": {"$gt": 2}}}}`,
			`{"a": [{"b": 1, "c": 3}]}`, true},
		{`{"a": {"$elemMatch": {"b": 1, "c": {"$gt": 2}}}}`,
			`{"a": [{"b": 1, "c": 1}, {"b": 2, "c": 3}]}`, false},
		{`{"a": {"$elemMatch": {"b": 1}}}`, `{"a": [5]}`, false},
		{`{"a": {"$elemMatch": {"b": 1}}}`, `{"a": {"b": 1}}`, false},
		{`{"a.b": {"$elemMatch": {"c": 1}}}`,
			`{"a": [{"b": [{"c": 1}]}]}`, true},

		// $all.
		{`{"a": {"$all": [1, 2]}}`, `{"a": [1, 2, 3]}`, true},
		{`{"a": {"$all": [1, 2]}}`, `{"a": [1, 3]}`, false},
		{`{"a": {"$all": [1]}}`, `{"a": 1}`, true},
		{`{"a": {"$all": []}}`, `{"a": [1]}`, false},
		{`{"a": {"$all": [{"$elemMatch": {"b": 1}}]}}`,
			`{"a": [{"b": 1}]}`, true},

		// Logical operators.
		{`{"$and": [{"a": 1}, {"b": 2}]}`, `{"a": 1, "b": 2}`, true},
		{`{"$and": [{"a": 1}, {"b": 2}]}`, `{"a": 1, "b": 3}`, false},
		{`{"$or": [{"a": 1}, {"b": 2}]}`, `{"a": 9, "b": 2}`, true},
		{`{"$or": [{"a": 1}, {"b": 2}]}`, `{"a": 9, "b": 9}`, false},
		{`{"$nor": [{"a": 1}, {"b": 2}]}`, `{"a": 9, "b": 9}`, true},
		{`{"$nor": [{"a": 1}, {"b": 2}]}`, `{"b": 2}`, false},
		{`{"a": {"$not": {"$gt": 3}}}`, `{"a": 2}`, true},
		{`{"a": {"$not": {"$gt": 3}}}`, `{"a": 4}`, false},
		{`{"a": {"$not": {"$gt": 3}}}`, `{}`, true},
		{`{"a": {"$not":
		   {"$regularExpression": {"pattern": "^x", "options": ""}}}}`,
			`{"a": "y"}`, true},
		{`{"a": {"$not":
		   {"$regularExpression": {"pattern": "^x", "options": ""}}}}`,
			`{"a": "xy"}`, false},
	}

	for testi, test := range tests {
		node, err := ParseFilter(base.Val(test.filter))
		if err != nil {
			t.Fatalf("testi: %d, test: %+v, parse err: %v", testi, test, err)
		}

		m, err := NewMatcher(node)
		if err != nil {
			t.Fatalf("testi: %d, test: %+v, matcher err: %v", testi, test, err)
		}

		got, err := m.Matches(base.Val(test.doc))
		if err != nil {
			t.Fatalf("testi: %d, test: %+v, err: %v", testi, test, err)
		}

		if got != test.matches {
			t.Fatalf("testi: %d, test: %+v, got: %t", testi, test, got)
		}
	}
}

func TestMatcherHostFuncs(t *testing.T) {
	where := NewAnd(NewWhere(func(doc base.Val) (bool, error) {
		return len(doc) > 10, nil
	}))

	m, err := NewMatcher(where)
	if err != nil {
		t.Fatalf("matcher err: %v", err)
	}

	ok, err := m.Matches(base.Val(`{"name": "semolina"}`))
	if err != nil || !ok {
		t.Fatalf("where on long doc, ok: %t, err: %v", ok, err)
	}

	ok, err = m.Matches(base.Val(`{}`))
	if err != nil || ok {
		t.Fatalf("where on short doc, ok: %t, err: %v", ok, err)
	}

	expr := NewAnd(NewExpr(func(doc base.Val) (base.Val, error) {
		return getField(doc, "flag"), nil
	}))

	m, err = NewMatcher(expr)
	if err != nil {
		t.Fatalf("matcher err: %v", err)
	}

	tests := []struct {
		doc     string
		matches bool
	}{
		{`{"flag": true}`, true},
		{`{"flag": 1}`, true},
		{`{"flag": "no, really"}`, true},
		{`{"flag": false}`, false},
		{`{"flag": 0}`, false},
		{`{"flag": null}`, false},
		{`{}`, false},
	}

	for testi, test := range tests {
		ok, err := m.Matches(base.Val(test.doc))
		if err != nil {
			t.Fatalf("testi: %d, test: %+v, err: %v", testi, test, err)
		}

		if ok != test.matches {
			t.Fatalf("testi: %d, test: %+v, got: %t", testi, test, ok)
		}
	}
}

func TestMatcherUnsupported(t *testing.T) {
	node, err := ParseFilter(base.Val(`{"$text": {"$search": "x"}}`))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}

	m, err := NewMatcher(node)
	if err != nil {
		t.Fatalf("matcher err: %v", err)
	}

	if _, err = m.Matches(base.Val(`{}`)); err == nil {
		t.Fatalf("expected $text to be unsupported")
	}
}

func TestCompileRegex(t *testing.T) {
	re, err := CompileRegex("^he", "im")
	if err != nil {
		t.Fatalf("compile err: %v", err)
	}

	if !re.MatchString("x\nHello") {
		t.Fatalf("expected multiline, case-insensitive match")
	}

	if _, err = CompileRegex("^he", "x"); err == nil {
		t.Fatalf("expected the x option to be rejected")
	}

	if _, err = CompileRegex("(", ""); err == nil {
		t.Fatalf("expected a bad pattern to be rejected")
	}
}
