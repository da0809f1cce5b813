package base

// Stage is one node of a dataflow plan. A Stage tree is data, not
// behavior -- it's interpreted into closures by the runtime. The Kind
// determines how Params and the parent links are used...
//
//	"scan"       Params: SlotID out, Vals docs.
//	"scanReader" Params: SlotID out, io.Reader of JSON lines.
//	"project"    Params: SlotID, Expr pairs. ParentA is the input.
//	"filter"     Params: Expr, checked per row of ParentA.
//	"cfilter"    Params: Expr, checked once before ParentA runs.
//	"limit"      Params: int64 max rows from ParentA.
//	"union"      Params: SlotID out, SlotID inA, SlotID inB. Rows of
//	             ParentA then ParentB, remapped into out.
//	"loopjoin"   For each row of ParentA, rerun ParentB.
//	"traverse"   Params: SlotID in, SlotID out, SlotID innerResult,
//	             Expr fold, Expr earlyExit. ParentA produces the rows,
//	             ParentB is rerun per array element of the in slot,
//	             with inner results folded into the out slot.
//
// A nil parent stands for the canonical one-row input (a limit 1 over
// a co-scan), which lets correlated branches run against slots that
// were bound by an enclosing loopjoin or traverse.
type Stage struct {
	Kind   string
	Params []interface{}

	ParentA *Stage
	ParentB *Stage
}

// StageFunc is a compiled stage. It pushes rows by invoking yield,
// and stops early when yield returns false. The return value is false
// only when a yield downstream asked to stop.
type StageFunc func(env *Env, yield func() bool, yieldErr YieldErr) bool
