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
	"regexp"
	"testing"

	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

// evalOne compiles and runs one expr against an empty env, returning
// "" for Missing.
func evalOne(t *testing.T, vars *base.Vars, e base.Expr) string {
	env := base.NewEnv()

	v := MakeExprFunc(vars, e)(env, func(err error) {
		t.Fatalf("expr err: %v", err)
	})

	return string(v)
}

func TestExprs(t *testing.T) {
	nothing := exprFn("nothing")

	tests := []struct {
		about    string
		expr     base.Expr
		expected string // "" means Missing.
	}{
		// 3-valued logic: a non-bool operand poisons to Missing,
		// unless the 1st operand already decides.
		{"and tt", exprAnd(exprJson("true"), exprJson("true")), "true"},
		{"and tf", exprAnd(exprJson("true"), exprJson("false")), "false"},
		{"and f?", exprAnd(exprJson("false"), nothing), "false"},
		{"and t?", exprAnd(exprJson("true"), nothing), ""},
		{"and ?f", exprAnd(nothing, exprJson("false")), ""},
		{"and 1t", exprAnd(exprJson("1"), exprJson("true")), ""},
		{"or ft", exprOr(exprJson("false"), exprJson("true")), "true"},
		{"or t?", exprOr(exprJson("true"), nothing), "true"},
		{"or f?", exprOr(exprJson("false"), nothing), ""},
		{"or ff", exprOr(exprJson("false"), exprJson("false")), "false"},
		{"not t", exprNot(exprJson("true")), "false"},
		{"not f", exprNot(exprJson("false")), "true"},
		{"not ?", exprNot(nothing), ""},
		{"not 1", exprNot(exprJson("1")), ""},

		// if requires a real bool condition.
		{"if t", exprIf(exprJson("true"),
			exprJson("1"), exprJson("2")), "1"},
		{"if f", exprIf(exprJson("false"),
			exprJson("1"), exprJson("2")), "2"},
		{"if ?", exprIf(nothing, exprJson("1"), exprJson("2")), ""},
		{"if 0", exprIf(exprJson("0"), exprJson("1"), exprJson("2")), ""},

		{"fillEmpty hit", fillEmpty(nothing, exprJson("7")), "7"},
		{"fillEmpty miss", fillEmpty(exprJson("null"), exprJson("7")),
			"null"},

		// Comparisons yield Missing across classes and around NaN.
		{"eq num", exprFn("eq", exprJson("1"), exprJson("1.0")), "true"},
		{"eq str", exprFn("eq", exprJson(`"a"`), exprJson(`"b"`)), "false"},
		{"eq cross", exprFn("eq", exprJson("1"), exprJson(`"1"`)), ""},
		{"eq missing", exprFn("eq", nothing, exprJson("1")), ""},
		{"eq nan", exprFn("eq", exprJson(`{"$numberDouble": "NaN"}`),
			exprJson("1")), ""},
		{"lt", exprFn("lt", exprJson(`"a"`), exprJson(`"b"`)), "true"},
		{"le", exprFn("le", exprJson("2"), exprJson("2")), "true"},
		{"gt", exprFn("gt", exprJson("3"), exprJson("2")), "true"},
		{"ge", exprFn("ge", exprJson("1"), exprJson("2")), "false"},
		{"eq obj order", exprFn("eq",
			exprJson(`{"a": 1, "b": 2}`),
			exprJson(`{"b": 2, "a": 1}`)), "true"},

		// getField treats tagged extended-JSON objects as scalars.
		{"getField", exprFn("getField",
			exprJson(`{"a": 3}`), "a"), "3"},
		{"getField str", exprFn("getField",
			exprJson(`{"a": "x"}`), "a"), `"x"`},
		{"getField absent", exprFn("getField",
			exprJson(`{"a": 3}`), "b"), ""},
		{"getField scalar", exprFn("getField", exprJson("3"), "a"), ""},
		{"getField array", exprFn("getField", exprJson("[1]"), "a"), ""},
		{"getField ext", exprFn("getField",
			exprJson(`{"$minKey": 1}`), "$minKey"), ""},
		{"getField null field", exprFn("getField",
			exprJson(`{"a": null}`), "a"), "null"},
		{"getField padded doc", exprFn("getField",
			exprJson(` {"a": 3} `), "a"), "3"},

		{"getArraySize", exprFn("getArraySize",
			exprJson("[1, 2, 3]")), "3"},
		{"getArraySize empty", exprFn("getArraySize", exprJson("[]")), "0"},
		{"getArraySize obj", exprFn("getArraySize",
			exprJson(`{"a": 1}`)), ""},

		// Type tests.
		{"exists", exprFn("exists", exprJson("null")), "true"},
		{"exists miss", exprFn("exists", nothing), "false"},
		{"isNullOrMissing null",
			exprFn("isNullOrMissing", exprJson("null")), "true"},
		{"isNullOrMissing miss",
			exprFn("isNullOrMissing", nothing), "true"},
		{"isNullOrMissing undef", exprFn("isNullOrMissing",
			exprJson(`{"$undefined": true}`)), "true"},
		{"isNullOrMissing 0",
			exprFn("isNullOrMissing", exprJson("0")), "false"},
		{"isArray", exprFn("isArray", exprJson("[1]")), "true"},
		{"isArray not", exprFn("isArray", exprJson(`{"a": 1}`)), "false"},
		{"isObject", exprFn("isObject", exprJson(`{"a": 1}`)), "true"},
		{"isObject ext", exprFn("isObject",
			exprJson(`{"$minKey": 1}`)), "false"},
		{"isMinKey", exprFn("isMinKey",
			exprJson(`{"$minKey": 1}`)), "true"},
		{"isMaxKey", exprFn("isMaxKey",
			exprJson(`{"$maxKey": 1}`)), "true"},
		{"isBinData", exprFn("isBinData",
			exprJson(`{"$binary": {"base64": "qg==", "subType": "00"}}`)),
			"true"},
		{"isNaN", exprFn("isNaN",
			exprJson(`{"$numberDouble": "NaN"}`)), "true"},
		{"isNaN num", exprFn("isNaN", exprJson("1")), "false"},
		{"isNaN str", exprFn("isNaN", exprJson(`"x"`)), "false"},
		{"isNaN miss", exprFn("isNaN", nothing), ""},
		{"isInfinity", exprFn("isInfinity",
			exprJson(`{"$numberDouble": "-Infinity"}`)), "true"},
		{"typeMatch", exprFn("typeMatch", exprJson(`"x"`),
			base.TypeString | base.TypeNull), "true"},
		{"typeMatch not", exprFn("typeMatch", exprJson("1"),
			base.TypeString), "false"},
		{"typeMatch miss", exprFn("typeMatch", nothing,
			base.TypeString), ""},

		{"coerceToBool str", exprFn("coerceToBool", exprJson(`"x"`)),
			"true"},
		{"coerceToBool 0", exprFn("coerceToBool", exprJson("0")), "false"},
		{"coerceToBool null", exprFn("coerceToBool", exprJson("null")),
			"false"},
		{"coerceToBool miss", exprFn("coerceToBool", nothing), "false"},
		{"coerceToBool obj", exprFn("coerceToBool", exprJson("{}")),
			"true"},

		// Numerics.
		{"add", exprFn("add", exprJson("1"), exprJson("2")), "3"},
		{"add frac", exprFn("add", exprJson("1.5"), exprJson("1")), "2.5"},
		{"add miss", exprFn("add", nothing, exprJson("1")), ""},
		{"trunc", exprFn("trunc", exprJson("5.5")), "5"},
		{"trunc neg", exprFn("trunc", exprJson("-5.5")), "-5"},
		{"trunc nan", exprFn("trunc",
			exprJson(`{"$numberDouble": "NaN"}`)), ""},
		{"toInt64", exprFn("toInt64", exprJson("5")), "5"},
		{"toInt64 frac", exprFn("toInt64", exprJson("5.5")), ""},
		{"toInt64 huge", exprFn("toInt64", exprJson("1e300")), ""},
		{"mod", exprFn("mod", exprJson("-5"), exprJson("4")), "-1"},
		{"mod zero", exprFn("mod", exprJson("5"), exprJson("0")), ""},
		{"bitTestMask", exprFn("bitTestMask",
			exprJson("10"), exprJson("10")), "true"},
		{"bitTestMask partial", exprFn("bitTestMask",
			exprJson("10"), exprJson("2")), "false"},
		{"bitTestZero", exprFn("bitTestZero",
			exprJson("5"), exprJson("10")), "true"},
		{"bitTestMask str", exprFn("bitTestMask",
			exprJson("10"), exprJson(`"x"`)), ""},

		// Index states.
		{"indexState", exprFn("indexState",
			exprJson("true"), exprJson("2")), "[true,2]"},
		{"indexState missIdx", exprFn("indexState",
			exprJson("true"), nothing), "[true,-1]"},
		{"indexState missBool", exprFn("indexState",
			nothing, exprJson("2")), ""},
		{"stateBool", exprFn("stateBool", exprJson("[true,2]")), "true"},
		{"stateBool bare", exprFn("stateBool", exprJson("false")),
			"false"},
		{"stateIndex", exprFn("stateIndex", exprJson("[true,2]")), "2"},
		{"stateIndex miss", exprFn("stateIndex", nothing), ""},
	}

	vars := newTestVars()

	for testi, test := range tests {
		got := evalOne(t, vars, test.expr)
		if got != test.expected {
			t.Fatalf("testi: %d, about: %s, got: %q, expected: %q",
				testi, test.about, got, test.expected)
		}
	}
}

func TestExprLetAndLambda(t *testing.T) {
	vars := newTestVars()

	f := base.NextFrameID()

	got := evalOne(t, vars, exprLet(f, exprJson("7"),
		exprFn("add", exprVarRef(f), exprVarRef(f))))
	if got != "14" {
		t.Fatalf("let, got: %q", got)
	}

	// Shadowing restores the outer binding.
	got = evalOne(t, vars, exprLet(f, exprJson("1"),
		exprFn("add",
			exprLet(f, exprJson("10"), exprVarRef(f)),
			exprVarRef(f))))
	if got != "11" {
		t.Fatalf("let shadow, got: %q", got)
	}
}

func TestExprTraverseF(t *testing.T) {
	vars := newTestVars()

	f := base.NextFrameID()

	gt5 := exprLambda(f, fillEmptyFalse(
		exprFn("gt", exprVarRef(f), exprJson("5"))))

	tests := []struct {
		about      string
		input      base.Expr
		wholeArray bool
		expected   string
	}{
		{"array hit", exprJson("[1, 9]"), false, "true"},
		{"array miss", exprJson("[1, 2]"), false, "false"},
		{"empty array", exprJson("[]"), false, "false"},
		{"scalar hit", exprJson("9"), false, "true"},
		{"scalar miss", exprJson("1"), false, "false"},
		{"nested stays", exprJson("[[9]]"), false, "false"},
	}

	for testi, test := range tests {
		got := evalOne(t, vars,
			exprFn("traverseF", test.input, gt5, test.wholeArray))
		if got != test.expected {
			t.Fatalf("testi: %d, about: %s, got: %q",
				testi, test.about, got)
		}
	}

	// A missing input still reaches the lambda once, which is what
	// lets null comparisons see a missing field.
	got := evalOne(t, vars, exprFn("traverseF", exprFn("nothing"),
		exprLambda(f, exprFn("isNullOrMissing", exprVarRef(f))), false))
	if got != "true" {
		t.Fatalf("missing input, got: %q", got)
	}

	// wholeArray retries the array itself after its elements.
	isArr := exprLambda(f, fillEmptyFalse(exprFn("isArray", exprVarRef(f))))

	got = evalOne(t, vars, exprFn("traverseF", exprJson("[1, 2]"),
		isArr, true))
	if got != "true" {
		t.Fatalf("wholeArray, got: %q", got)
	}

	got = evalOne(t, vars, exprFn("traverseF", exprJson("[1, 2]"),
		isArr, false))
	if got != "false" {
		t.Fatalf("elements only, got: %q", got)
	}
}

func TestExprIsMember(t *testing.T) {
	vars := newTestVars()

	set, err := MakeInSet(vars, []base.Val{
		base.Val(`2`), base.Val(`"x"`), base.Val(`{"a": 1, "b": 2}`),
	})
	if err != nil {
		t.Fatalf("make set, err: %v", err)
	}

	tests := []struct {
		in       string
		expected string
	}{
		{`2`, "true"},
		{`2.0`, "true"}, // Canonical keys unify number formats.
		{`"x"`, "true"},
		{`{"b": 2, "a": 1}`, "true"}, // And field order.
		{`3`, "false"},
		{`"y"`, "false"},
	}

	for testi, test := range tests {
		got := evalOne(t, vars,
			exprFn("isMember", exprJson(test.in), set))
		if got != test.expected {
			t.Fatalf("testi: %d, test: %+v, got: %q", testi, test, got)
		}
	}

	if got := evalOne(t, vars,
		exprFn("isMember", exprFn("nothing"), set)); got != "" {
		t.Fatalf("missing input, got: %q", got)
	}

	// An unbound param slot compiles to Missing.
	if got := evalOne(t, vars,
		exprFn("isMember", exprJson("2"), 99)); got != "" {
		t.Fatalf("unbound param, got: %q", got)
	}
}

func TestExprRegexMatch(t *testing.T) {
	vars := newTestVars()

	re := regexp.MustCompile("(?i)^he")

	tests := []struct {
		in       string
		expected string
	}{
		{`"Hello"`, "true"},
		{`"goodbye"`, "false"},
		{`5`, "false"},
		{`["Hello"]`, "false"}, // Traversal happens outside the expr.
	}

	for testi, test := range tests {
		got := evalOne(t, vars,
			exprFn("regexMatch", re, exprJson(test.in)))
		if got != test.expected {
			t.Fatalf("testi: %d, test: %+v, got: %q", testi, test, got)
		}
	}

	if got := evalOne(t, vars,
		exprFn("regexMatch", re, exprFn("nothing"))); got != "" {
		t.Fatalf("missing input, got: %q", got)
	}
}

func TestExprHostFuncs(t *testing.T) {
	vars := newTestVars()

	var fn match.WhereFn = func(doc base.Val) (bool, error) {
		return len(doc) > 2, nil
	}

	got := evalOne(t, vars,
		exprFn("runPredicate", fn, exprJson(`{"a": 1}`)))
	if got != "true" {
		t.Fatalf("runPredicate, got: %q", got)
	}

	got = evalOne(t, vars, exprFn("runPredicate", fn, exprJson(`{}`)))
	if got != "false" {
		t.Fatalf("runPredicate short, got: %q", got)
	}

	var eval match.ExprEvalFn = func(doc base.Val) (base.Val, error) {
		return base.Val(`42`), nil
	}

	got = evalOne(t, vars, exprFn("evalExpr", eval, exprJson(`{}`)))
	if got != "42" {
		t.Fatalf("evalExpr, got: %q", got)
	}
}
