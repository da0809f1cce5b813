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

// Command mqlc-filter applies a match filter to a stream of NDJSON
// documents, writing the matching ones out. Filters that compile are
// run as a dataflow plan; the rest fall back to the interpreted
// matcher.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchbase/mqlc"
	"github.com/couchbase/mqlc/base"
	"github.com/couchbase/mqlc/match"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mqlc-filter: %v\n", err)
		os.Exit(2)
	}

	if cfg.Filter == "" {
		fmt.Fprintln(os.Stderr, "mqlc-filter: no filter given")
		os.Exit(2)
	}

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mqlc-filter: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config, w io.Writer) error {
	root, err := match.ParseFilter(base.Val(cfg.Filter))
	if err != nil {
		return err
	}

	in := os.Stdin

	if cfg.Input != "" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return err
		}

		defer f.Close()

		in = f
	}

	out := bufio.NewWriter(w)
	defer out.Flush()

	count, err := runPlan(cfg, root, in, out)

	var unsupported *mqlc.UnsupportedError

	if errors.As(err, &unsupported) && cfg.Fallback {
		count, err = runInterpreted(cfg, root, in, out)
	}

	if err != nil {
		return err
	}

	if cfg.Count {
		fmt.Fprintf(out, "%d\n", count)
	}

	return nil
}

// -----------------------------------------------------

func runPlan(cfg Config, root *match.Node, in io.Reader,
	out *bufio.Writer) (int64, error) {
	vars := &base.Vars{Ctx: base.NewCtx(mqlc.ExprCatalog)}

	docSlot := base.NextSlotID()

	scan := &base.Stage{
		Kind:   "scanReader",
		Params: []interface{}{docSlot, in},
	}

	plan, indexSlot, err := mqlc.GenerateFilter(vars, root,
		scan, docSlot, nil, false, cfg.TrackIndex)
	if err != nil {
		return 0, err
	}

	env := base.NewEnv()

	var count int64
	var runErr error

	mqlc.ExecStage(vars, plan, env, func() bool {
		count++

		if !cfg.Count {
			if cfg.TrackIndex {
				writeIndex(out, env.Slots[indexSlot])
			}

			out.Write(env.Slots[docSlot])
			out.WriteByte('\n')
		}

		return true
	}, func(err error) {
		if runErr == nil {
			runErr = err
		}
	})

	return count, runErr
}

func writeIndex(out *bufio.Writer, idx base.Val) {
	if len(idx) == 0 {
		out.WriteString("-\t")

		return
	}

	out.Write(idx)
	out.WriteByte('\t')
}

// -----------------------------------------------------

func runInterpreted(cfg Config, root *match.Node, in io.Reader,
	out *bufio.Writer) (int64, error) {
	m, err := match.NewMatcher(root)
	if err != nil {
		return 0, err
	}

	var count int64

	scanner := bufio.NewScanner(in)
	scanner.Buffer(nil, 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ok, err := m.Matches(base.Val(line))
		if err != nil {
			return count, err
		}

		if ok {
			count++

			if !cfg.Count {
				out.Write(line)
				out.WriteByte('\n')
			}
		}
	}

	return count, scanner.Err()
}
