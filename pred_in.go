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
	"encoding/json"
	"regexp"

	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

// generateIn lowers $in into a membership test against a prepared
// set, plus a regex alternative when the list holds regex items. A
// null in the list makes a missing leaf match, like an equality to
// null does, and an array in the list turns on whole-array matching.
func (c *visitCtx) generateIn(n *match.Node) error {
	if n.ParamSlot != 0 {
		// A parameterized list arrives as a prepared *InSet, and is
		// known to hold none of the special classes.
		makeExpr := func(in base.Expr) base.Expr {
			return fillEmptyFalse(
				exprFn("isMember", in, n.ParamSlot))
		}

		c.generatePredicate(n.Path, makeExpr, nil,
			traverseElements, false, true)

		return nil
	}

	hasNull, hasArray := false, false

	equalities := n.Equalities

	for _, v := range equalities {
		switch base.ValTypeMask(v) {
		case base.TypeNull, base.TypeUndefined:
			hasNull = true
		case base.TypeArray:
			hasArray = true
		}
	}

	var regexps []*regexp.Regexp

	for _, r := range n.Regexes {
		re, err := match.CompileRegex(r.Pattern, r.Options)
		if err != nil {
			return err
		}

		regexps = append(regexps, re)

		// A regex item also matches a stored regex value verbatim.
		equalities = append(equalities, regexVal(r.Pattern, r.Options))
	}

	set, err := MakeInSet(c.vars, equalities)
	if err != nil {
		return err
	}

	mode := traverseElements
	if hasArray {
		mode = traverseArrayAndItself
	}

	makeExpr := func(in base.Expr) base.Expr {
		member := in
		if hasNull {
			// Fold a missing leaf onto the null in the set.
			member = exprIf(
				fillEmptyFalse(exprFn("isNullOrMissing", in)),
				exprJson("null"), in)
		}

		rv := fillEmptyFalse(exprFn("isMember", member, set))

		if len(regexps) > 0 {
			rv = exprOr(rv, fillEmptyFalse(
				exprFn("regexMatchAny", regexps, in)))
		}

		return rv
	}

	c.generatePredicate(n.Path, makeExpr, nil, mode, hasNull, true)

	return nil
}

// regexVal renders a regex source as its extended-JSON value form.
func regexVal(pattern, options string) base.Val {
	p, _ := json.Marshal(pattern)
	o, _ := json.Marshal(options)

	rv := append([]byte(`{"`+base.ExtRegex+`":{"pattern":`), p...)
	rv = append(rv, `,"options":`...)
	rv = append(rv, o...)
	rv = append(rv, `}}`...)

	return rv
}
