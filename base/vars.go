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

package base

import (
	"time"

	"github.com/couchbase/rhmap"
)

// Vars are used for runtime variables, config, etc. Vars are
// chainable using the Next field to allow for scoping.
type Vars struct {
	// Params holds the values bound to input param slots of a
	// parameterized plan, keyed by param slot number. A param value
	// is either a Val or a prepared Go value, such as a compiled
	// regexp for a parameterized regex source.
	Params map[int]interface{}

	Next *Vars // The root Vars has nil Next.
	Ctx  *Ctx
}

// ChainExtend returns a new Vars linked to the Vars chain, which is
// safely usable by a concurrent goroutine and useful for shadowing.
func (v *Vars) ChainExtend() *Vars {
	return &Vars{Next: v, Ctx: v.Ctx.Clone()}
}

// Param resolves a param slot through the Vars chain.
func (v *Vars) Param(i int) (interface{}, bool) {
	for chain := v; chain != nil; chain = chain.Next {
		if chain.Params != nil {
			if rv, ok := chain.Params[i]; ok {
				return rv, true
			}
		}
	}

	return nil, false
}

// -----------------------------------------------------

// Ctx represents the runtime context for a request.
type Ctx struct {
	Now time.Time

	ExprCatalog map[string]ExprCatalogFunc

	// ValComparer is not concurrent safe. See Clone().
	ValComparer *ValComparer

	// AllocMap / RecycleMap allow the caller to pool the hash maps
	// that back membership sets built at plan-compile time.
	AllocMap   func(size int) *rhmap.RHMap
	RecycleMap func(*rhmap.RHMap)
}

func NewCtx(exprCatalog map[string]ExprCatalogFunc) *Ctx {
	return &Ctx{
		Now:         time.Now(),
		ExprCatalog: exprCatalog,
		ValComparer: NewValComparer(),
	}
}

// Clone returns a copy of the given Ctx, which is safe for another
// goroutine to use safely.
func (ctx *Ctx) Clone() (ctxCopy *Ctx) {
	ctxCopy = &Ctx{}
	*ctxCopy = *ctx
	ctxCopy.ValComparer = NewValComparer()

	return ctxCopy
}

// AllocRHMap allocates a hash map via the Ctx hooks, falling back to
// a plain rhmap when no hook was configured.
func (ctx *Ctx) AllocRHMap(size int) *rhmap.RHMap {
	if ctx != nil && ctx.AllocMap != nil {
		return ctx.AllocMap(size)
	}

	return rhmap.New(size)
}
