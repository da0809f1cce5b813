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

// Package match has the parsed form of a match predicate: dotted
// paths, a closed set of predicate node kinds, a parser from JSON
// filter documents, and a direct tree-walking Matcher that serves as
// the fallback when a predicate can't be compiled into a plan.
package match

import (
	"strings"
)

// Path is a dotted field path, such as "a.b.c". Components may be
// empty strings -- "a." has the components ["a", ""], and an empty
// trailing component reaches both the "" field of a subdocument and,
// through implicit traversal, the elements of an array.
type Path struct {
	parts  []string
	dotted string
}

func NewPath(dotted string) Path {
	if dotted == "" {
		return Path{}
	}

	return Path{parts: strings.Split(dotted, "."), dotted: dotted}
}

func (p Path) Empty() bool {
	return len(p.parts) == 0
}

func (p Path) NumParts() int {
	return len(p.parts)
}

func (p Path) Part(i int) string {
	return p.parts[i]
}

func (p Path) Dotted() string {
	return p.dotted
}
