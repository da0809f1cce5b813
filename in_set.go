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
	"github.com/couchbase/rhmap"

	"github.com/couchbase/mqlc/base"
)

// InSet is the prepared membership set behind the isMember expr. The
// set is keyed by canonical JSON, so 2 and 2.0 land on the same key,
// as do 0 and -0.0, and objects that differ only in field order.
type InSet struct {
	set *rhmap.RHMap
	cmp *base.ValComparer
}

// MakeInSet builds the membership set for a list of equality values.
// The hash map comes from the Ctx pool hooks when those are set.
func MakeInSet(vars *base.Vars, equalities []base.Val) (*InSet, error) {
	rv := &InSet{
		set: vars.Ctx.AllocRHMap(len(equalities)*2 + 7),
		cmp: vars.Ctx.ValComparer,
	}

	var buf []byte

	for _, eq := range equalities {
		var err error

		buf, err = rv.cmp.CanonicalJSON(eq, buf[:0])
		if err != nil {
			return nil, err
		}

		key := append([]byte(nil), buf...)

		rv.set.Set(key, nil)
	}

	return rv, nil
}

func (s *InSet) Contains(v base.Val) bool {
	buf, err := s.cmp.CanonicalJSON(v, nil)
	if err != nil {
		return false
	}

	_, found := s.set.Get(buf)

	return found
}

// Close returns the backing map to the Ctx pool.
func (s *InSet) Close(vars *base.Vars) {
	if vars.Ctx.RecycleMap != nil && s.set != nil {
		vars.Ctx.RecycleMap(s.set)
	}

	s.set = nil
}
