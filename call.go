package funcptr

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"

	"github.com/BarrensZeppelin/funcptr/dataflow"
	"github.com/BarrensZeppelin/funcptr/ir"
)

// A summaryKey identifies one analysis of a function: the function and the
// fingerprint of the state it was entered with.
type summaryKey struct {
	fn    *ir.Function
	entry [32]byte
}

type summary struct {
	states dataflow.Result[*State]
	exit   *State

	// While inProgress, exit is provisional. used records whether a nested
	// call consumed the provisional exit during the current round.
	inProgress bool
	used       bool

	// Position on the analysis stack while in progress.
	depth int
	// A dependent summary was computed from a provisional one and must not
	// be reused once finished.
	dependent bool
}

// summarize analyzes fn entered with state entry, reusing a previous
// analysis with the same key. A recursive call with a key that is still
// being analyzed receives the provisional exit state (initially entry, i.e.
// "the call has no effect"); the outer analysis is then repeated until the
// exit state stops changing or maxRounds is reached.
func (ctx *aContext) summarize(fn *ir.Function, entry *State) *summary {
	key := summaryKey{fn, entry.Fingerprint()}
	if s, ok := ctx.summaries[key]; ok {
		if s.inProgress {
			log.Debugf("Recursive call to %s, using provisional summary", fn.Name)
			s.used = true
			for _, above := range ctx.stack[s.depth+1:] {
				above.dependent = true
			}
		}
		return s
	}

	s := &summary{exit: entry}
	if len(ctx.stack) >= ctx.maxDepth {
		log.Warnf("Call depth limit (%d) reached at %s, assuming the call has no effect",
			ctx.maxDepth, fn.Name)
		for _, above := range ctx.stack {
			above.dependent = true
		}
		return s
	}

	s.inProgress, s.depth = true, len(ctx.stack)
	ctx.summaries[key] = s
	ctx.stack = append(ctx.stack, s)
	for round := 1; ; round++ {
		s.used = false
		states, exit := ctx.analyze(fn, entry)
		stable := !s.used || exit.Equal(s.exit)
		s.states, s.exit = states, exit
		if stable {
			break
		}
		if round >= ctx.maxRounds {
			log.Warnf("Summary of %s did not stabilize after %d rounds", fn.Name, round)
			break
		}
		log.Debugf("Re-analyzing %s (round %d)", fn.Name, round+1)
	}
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	s.inProgress = false

	if ctx.disableCache || s.dependent {
		delete(ctx.summaries, key)
	}
	return s
}

// argPair relates a value of the caller to the callee value whose final
// state flows back into it.
type argPair struct {
	caller, callee ir.Value
}

func (v *visitor) call(call *ir.Call, state *State) {
	prog := v.ctx.prog
	report := v.ctx.report

	if fn := prog.Func(call.Callee); fn != nil && v.ctx.allocators[fn.Name] {
		report.record(v.fn, call, fn)
		return
	}

	var targets []*ir.Function
	if fn := prog.Func(call.Callee); fn != nil {
		targets = append(targets, fn)
	} else {
		for _, c := range members(v.resolve(call.Callee, state)) {
			if fn := prog.Func(c); fn != nil {
				targets = append(targets, fn)
			}
		}
	}

	if len(targets) == 0 {
		log.Debugf("%s: unresolved call at line %d", v.fn.Name, call.Line)
		return
	}

	// With several candidate callees, each one only may have run.
	strong := len(targets) == 1
	for _, fn := range targets {
		report.record(v.fn, call, fn)
		if !fn.HasBody() {
			log.Debugf("%s: no body for %s", v.fn.Name, fn.Name)
			continue
		}

		entry, pairs := v.translate(call, fn, state)
		log.Debugf("Analyzing %s called from %s at line %d", fn.Name, v.fn.Name, call.Line)
		exit := v.ctx.summarize(fn, entry).exit
		v.writeBack(state, exit, pairs, strong)
	}
}

// translate builds the entry state of fn for call: every pointer argument's
// formal parameter is bound to what the argument resolves to, and the
// points-to sets reachable from there are copied in.
func (v *visitor) translate(call *ir.Call, fn *ir.Function, state *State) (*State, []argPair) {
	prog := v.ctx.prog
	entry := NewState()

	var pairs []argPair
	seenPair := make(map[argPair]bool)
	addPair := func(p argPair) {
		if !seenPair[p] {
			seenPair[p] = true
			pairs = append(pairs, p)
		}
	}

	for i, arg := range call.Args {
		if i >= len(fn.Params) {
			break
		}
		if !prog.Type(arg).IsPointer() || prog.IsConst(arg) {
			continue
		}

		param := fn.Params[i]
		addPair(argPair{arg, param})

		bound := v.resolve(arg, state)
		entry.SetBinding(param, bound)

		var work, seen intsets.Sparse
		work.Copy(bound)
		for x := 0; work.TakeMin(&x); {
			if !seen.Insert(x) {
				continue
			}
			val := ir.Value(x)
			if state.HasPointsTo(val) {
				pts := state.PointsTo(val)
				entry.SetPointsTo(val, pts)
				addPair(argPair{val, val})
				work.UnionWith(pts)
			}
		}
	}

	if fn.Result.IsPointer() && call.Dst != ir.NoValue {
		entry.SetBinding(fn.Value, setOf(fn.Value))
		addPair(argPair{call.Dst, fn.Value})
	}

	return entry, pairs
}

// writeBack transfers the callee's exit state into the caller's state
// along pairs. Strong write-backs replace the caller's points-to sets,
// weak ones union into them.
func (v *visitor) writeBack(state, exit *State, pairs []argPair, strong bool) {
	prog := v.ctx.prog
	for _, p := range pairs {
		if exit.HasBinding(p.callee) {
			out := copySet(exit.Binding(p.callee))
			if prog.Kind(p.callee) == ir.FuncKind {
				// The callee's own handle marks a return value that was
				// never set, e.g. in a provisional summary.
				out.Remove(int(p.callee))
			}
			// A value is never bound to itself.
			if !out.Remove(int(p.caller)) || !out.IsEmpty() {
				if state.HasBinding(p.caller) {
					state.AddBinding(p.caller, out)
				} else {
					state.SetBinding(p.caller, out)
				}
			}
		}

		var work, seen intsets.Sparse
		work.Insert(int(p.callee))
		for x := 0; work.TakeMin(&x); {
			if !seen.Insert(x) {
				continue
			}
			val := ir.Value(x)

			if exit.HasPointsTo(val) {
				pts := exit.PointsTo(val)
				dst := val
				if val == p.callee {
					dst = p.caller
				}
				if strong {
					state.SetPointsTo(dst, pts)
				} else {
					state.AddPointsTo(dst, pts)
				}
				work.UnionWith(pts)
			}

			if exit.HasBinding(val) && (val == p.callee || prog.Kind(val) != ir.FuncKind) {
				work.UnionWith(exit.Binding(val))
			}
		}
	}
}
