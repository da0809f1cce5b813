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
	"bufio"
	"io"

	"github.com/buger/jsonparser"

	"github.com/couchbase/mqlc/base"
)

// MakeStageFunc compiles a stage tree into a closure tree. A nil
// stage compiles to the canonical one-row input.
func MakeStageFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	if o == nil {
		return func(env *base.Env, yield func() bool,
			yieldErr base.YieldErr) bool {
			return yield()
		}
	}

	switch o.Kind {
	case "scan":
		return makeScanFunc(vars, o)

	case "scanReader":
		return makeScanReaderFunc(vars, o)

	case "project":
		return makeProjectFunc(vars, o)

	case "filter":
		return makeFilterFunc(vars, o)

	case "cfilter":
		return makeCFilterFunc(vars, o)

	case "limit":
		return makeLimitFunc(vars, o)

	case "union":
		return makeUnionFunc(vars, o)

	case "loopjoin":
		return makeLoopJoinFunc(vars, o)

	case "traverse":
		return makeTraverseFunc(vars, o)
	}

	Panic(200200) // Unknown stage kind.

	return nil
}

// ExecStage compiles and runs a stage tree in one go.
func ExecStage(vars *base.Vars, o *base.Stage, env *base.Env,
	yield func() bool, yieldErr base.YieldErr) {
	MakeStageFunc(vars, o)(env, yield, yieldErr)
}

// -----------------------------------------------------

func makeScanFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	slot := o.Params[0].(base.SlotID)
	docs := o.Params[1].(base.Vals)

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		for _, doc := range docs {
			env.Slots[slot] = doc

			if !yield() {
				return false
			}
		}

		return true
	}
}

// makeScanReaderFunc scans JSON values separated by newlines.
func makeScanReaderFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	slot := o.Params[0].(base.SlotID)
	r := o.Params[1].(io.Reader)

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(nil, 16*1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			env.Slots[slot] = base.Val(line)

			if !yield() {
				return false
			}
		}

		if err := scanner.Err(); err != nil {
			yieldErr(err)
		}

		return true
	}
}

// -----------------------------------------------------

func makeProjectFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	parentFunc := MakeStageFunc(vars, o.ParentA)

	var slots []base.SlotID
	var exprFuncs []base.ExprFunc

	for i := 0; i < len(o.Params); i += 2 {
		slots = append(slots, o.Params[i].(base.SlotID))
		exprFuncs = append(exprFuncs,
			MakeExprFunc(vars, o.Params[i+1].(base.Expr)))
	}

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		return parentFunc(env, func() bool {
			for i, slot := range slots {
				env.Slots[slot] = exprFuncs[i](env, yieldErr)
			}

			return yield()
		}, yieldErr)
	}
}

// -----------------------------------------------------

func makeFilterFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	parentFunc := MakeStageFunc(vars, o.ParentA)

	predFunc := MakeExprFunc(vars, o.Params[0].(base.Expr))

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		return parentFunc(env, func() bool {
			if base.ValEqualTrue(predFunc(env, yieldErr)) {
				return yield()
			}

			return true
		}, yieldErr)
	}
}

// makeCFilterFunc checks its predicate once, before any input rows,
// which is what gates a correlated branch off cheaply.
func makeCFilterFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	parentFunc := MakeStageFunc(vars, o.ParentA)

	predFunc := MakeExprFunc(vars, o.Params[0].(base.Expr))

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		if !base.ValEqualTrue(predFunc(env, yieldErr)) {
			return true
		}

		return parentFunc(env, yield, yieldErr)
	}
}

// -----------------------------------------------------

func makeLimitFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	parentFunc := MakeStageFunc(vars, o.ParentA)

	max := o.Params[0].(int64)

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		if max <= 0 {
			return true
		}

		var count int64

		stopped := false

		parentFunc(env, func() bool {
			if !yield() {
				stopped = true

				return false
			}

			count++

			return count < max
		}, yieldErr)

		// Reaching the cap is normal completion, not a downstream stop.
		return !stopped
	}
}

// -----------------------------------------------------

func makeUnionFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	aFunc := MakeStageFunc(vars, o.ParentA)
	bFunc := MakeStageFunc(vars, o.ParentB)

	out := o.Params[0].(base.SlotID)
	inA := o.Params[1].(base.SlotID)
	inB := o.Params[2].(base.SlotID)

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		if !aFunc(env, func() bool {
			env.Slots[out] = env.Slots[inA]

			return yield()
		}, yieldErr) {
			return false // The 2nd branch is never started.
		}

		return bFunc(env, func() bool {
			env.Slots[out] = env.Slots[inB]

			return yield()
		}, yieldErr)
	}
}

// -----------------------------------------------------

func makeLoopJoinFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	aFunc := MakeStageFunc(vars, o.ParentA)
	bFunc := MakeStageFunc(vars, o.ParentB)

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		return aFunc(env, func() bool {
			return bFunc(env, yield, yieldErr)
		}, yieldErr)
	}
}

// -----------------------------------------------------

// makeTraverseFunc reruns the inner branch per array element of the
// in slot, rebinding the in slot to each element and folding the
// inner results into the out slot. A non-array input runs the inner
// branch once against the input as-is. An input with no folded
// result, such as an empty array, leaves the out slot Missing.
func makeTraverseFunc(vars *base.Vars, o *base.Stage) base.StageFunc {
	fromFunc := MakeStageFunc(vars, o.ParentA)
	innerFunc := MakeStageFunc(vars, o.ParentB)

	in := o.Params[0].(base.SlotID)
	out := o.Params[1].(base.SlotID)
	innerResult := o.Params[2].(base.SlotID)

	foldFunc := MakeExprFunc(vars, o.Params[3].(base.Expr))
	earlyFunc := MakeExprFunc(vars, o.Params[4].(base.Expr))

	return func(env *base.Env, yield func() bool,
		yieldErr base.YieldErr) bool {
		return fromFunc(env, func() bool {
			v := env.Slots[in]

			if len(v) == 0 || v[0] != '[' {
				advanced := false

				innerFunc(env, func() bool {
					advanced = true

					return false
				}, yieldErr)

				if advanced {
					env.Slots[out] = env.Slots[innerResult]
				} else {
					env.Slots[out] = base.ValMissing
				}

				return yield()
			}

			acc := base.ValMissing
			accSet := false
			earlyExit := false

			_, _ = jsonparser.ArrayEach(v,
				func(item []byte, vT jsonparser.ValueType, vo int,
					vErr error) {
					if earlyExit {
						return
					}

					env.Slots[in] = rejoin(item, vT)

					innerFunc(env, func() bool {
						r := env.Slots[innerResult]

						if !accSet {
							acc, accSet = r, true
						} else {
							env.Slots[out] = acc
							acc = foldFunc(env, yieldErr)
						}

						env.Slots[out] = acc

						if base.ValEqualTrue(earlyFunc(env, yieldErr)) {
							earlyExit = true

							return false
						}

						return true
					}, yieldErr)
				})

			env.Slots[in] = v
			env.Slots[out] = acc

			return yield()
		}, yieldErr)
	}
}
