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
	"fmt"

	"github.com/couchbase/mqlc/match"
)

// UnsupportedError reports a predicate that plan generation can't
// lower, such as $text. The caller is expected to fall back to the
// direct match.Matcher for the whole filter -- see errors.As.
type UnsupportedError struct {
	Kind match.Kind
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("mqlc: %s is not supported by plan generation",
		e.Kind)
}

// Panic aborts on a broken compiler invariant. The numeric code
// pinpoints the failed check, as these states are unreachable from
// any input and indicate a bug here, not bad input.
func Panic(code int) {
	panic(fmt.Sprintf("mqlc: broken invariant %d", code))
}

// PanicIf is a guard form of Panic.
func PanicIf(cond bool, code int) {
	if cond {
		Panic(code)
	}
}
