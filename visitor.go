package funcptr

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"

	"github.com/BarrensZeppelin/funcptr/ir"
)

// visitor implements the transfer functions of the points-to analysis for
// the instructions of one function.
type visitor struct {
	ctx *aContext
	fn  *ir.Function
}

func (v *visitor) Merge(dst, src *State) {
	dst.Merge(src)
}

func (v *visitor) Transfer(insn ir.Instruction, state *State) {
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("%s: %s", v.fn.Name, v.ctx.prog.SprintInstr(insn))
	}

	switch insn := insn.(type) {
	case *ir.Alloca:
		// Locations are only tracked once something is stored to them.

	case *ir.Cast:
		// Later uses resolve through the operand itself.

	case *ir.Other:

	case *ir.Store:
		v.store(insn, state)

	case *ir.Load:
		v.load(insn, state)

	case *ir.AddressCompute:
		if state.HasBinding(insn.Base) {
			state.SetBinding(insn.Dst, state.Binding(insn.Base))
		} else {
			state.SetBinding(insn.Dst, setOf(insn.Base))
		}

	case *ir.MemCopy:
		v.memcopy(insn, state)

	case *ir.Return:
		v.ret(insn, state)

	case *ir.Phi:
		state.SetBinding(insn.Dst, v.choice(insn.Edges, state))

	case *ir.Select:
		state.SetBinding(insn.Dst, v.choice([]ir.Value{insn.True, insn.False}, state))

	case *ir.Call:
		v.call(insn, state)

	default:
		log.Panicf("Unhandled: %T %v", insn, insn)
	}
}

// resolve follows the binding chains starting at x and returns the unbound
// values they end in. Function references are never followed: their binding
// carries a return value, not an alias. A chain that only cycles among bound
// values resolves to x itself; one that ends in an empty binding resolves to
// nothing.
func (v *visitor) resolve(x ir.Value, state *State) *intsets.Sparse {
	var roots, done, onPath intsets.Sparse
	cyclic := false

	var walk func(cur ir.Value)
	walk = func(cur ir.Value) {
		if onPath.Has(int(cur)) {
			cyclic = true
			return
		}
		if !done.Insert(int(cur)) {
			return
		}

		b, bound := state.bindings[cur]
		if !bound || v.ctx.prog.Kind(cur) == ir.FuncKind {
			roots.Insert(int(cur))
			return
		}
		onPath.Insert(int(cur))
		for _, next := range members(b) {
			walk(next)
		}
		onPath.Remove(int(cur))
	}
	walk(x)

	if roots.IsEmpty() && cyclic {
		roots.Insert(int(x))
	}
	return &roots
}

func (v *visitor) store(insn *ir.Store, state *State) {
	if v.ctx.prog.IsConst(insn.Val) {
		return
	}

	v.update(v.resolve(insn.Addr, state), v.resolve(insn.Val, state), state)
}

// update writes values into the locations in targets. A unique target is
// overwritten; several targets each receive the union.
func (v *visitor) update(targets, values *intsets.Sparse, state *State) {
	switch targets.Len() {
	case 0:
	case 1:
		state.SetPointsTo(ir.Value(targets.Min()), values)
	default:
		for _, target := range members(targets) {
			state.AddPointsTo(target, values)
		}
	}
}

// memcopy overwrites the contents of the destination with the contents of
// the source. Both operands resolve through their bindings, so a copy
// between unbound locations replaces pointsTo[dest] with pointsTo[source].
func (v *visitor) memcopy(insn *ir.MemCopy, state *State) {
	copied := new(intsets.Sparse)
	for _, src := range members(v.resolve(insn.Source, state)) {
		copied.UnionWith(state.PointsTo(src))
	}
	v.update(v.resolve(insn.Dest, state), copied, state)
}

func (v *visitor) load(insn *ir.Load, state *State) {
	if !v.ctx.prog.Type(insn.Addr).ElemIsPointer() {
		return
	}

	loaded := new(intsets.Sparse)
	for _, target := range members(v.resolve(insn.Addr, state)) {
		loaded.UnionWith(state.PointsTo(target))
	}
	state.SetBinding(insn.Dst, loaded)
}

func (v *visitor) ret(insn *ir.Return, state *State) {
	fn := v.fn.Value
	if insn.Val == ir.NoValue || !state.HasBinding(fn) {
		// Nobody tracks the return value.
		return
	}

	switch {
	case v.ctx.prog.IsConst(insn.Val):
		state.SetBinding(fn, new(intsets.Sparse))
	case state.HasBinding(insn.Val) && v.ctx.prog.Kind(insn.Val) != ir.FuncKind:
		state.SetBinding(fn, state.Binding(insn.Val))
	default:
		state.SetBinding(fn, setOf(insn.Val))
	}
}

// choice returns the union over candidates of their binding, or the
// candidate itself when it is unbound. Constants contribute nothing.
func (v *visitor) choice(candidates []ir.Value, state *State) *intsets.Sparse {
	res := new(intsets.Sparse)
	for _, c := range candidates {
		switch {
		case c == ir.NoValue || v.ctx.prog.IsConst(c):
		case state.HasBinding(c) && v.ctx.prog.Kind(c) != ir.FuncKind:
			res.UnionWith(state.Binding(c))
		default:
			res.Insert(int(c))
		}
	}
	return res
}
