// Package dataflow implements generic worklist fixed-point solvers over the
// blocks of an ir.Function.
//
// The caller must ensure that the visitor's transfer and merge functions are
// monotone over the chosen value lattice; the solvers perform no cycle
// detection beyond comparing a block's output before and after it is
// processed, so a non-monotone visitor may not terminate.
package dataflow

import (
	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/funcptr/internal/queue"
	"github.com/BarrensZeppelin/funcptr/ir"
)

// Fact is a dataflow value. Clone must return a deep copy that can be
// mutated independently of the receiver.
type Fact[T any] interface {
	Clone() T
	Equal(T) bool
}

// Visitor supplies the per-instruction transfer function and the merge of
// two dataflow values.
type Visitor[T any] interface {
	// Transfer applies the effect of insn to val in place.
	Transfer(insn ir.Instruction, val T)
	// Merge joins src into dst.
	Merge(dst, src T)
}

// Facts holds the dataflow values at the start and at the end of a block.
type Facts[T any] struct {
	In, Out T
}

// Result maps each block of a function to its dataflow values.
type Result[T any] map[*ir.Block]*Facts[T]

// Seed pre-populates the values of b. Solvers never overwrite seeded
// entries, which is how callers pass an initial state into a function's
// entry block.
func (r Result[T]) Seed(b *ir.Block, in, out T) {
	r[b] = &Facts[T]{In: in, Out: out}
}

func (r Result[T]) initialize(fn *ir.Function, initial func() T, wl *queue.Queue[*ir.Block]) {
	for _, b := range fn.Blocks {
		if _, ok := r[b]; !ok {
			r[b] = &Facts[T]{In: initial(), Out: initial()}
		}
		wl.Push(b)
	}
}

// Forward computes a forward fixed point for fn. Each block's entry value
// is the merge of its predecessors' exit values into the previous entry
// value; its exit value is the result of running the transfer function over
// the block's instructions in order. Successors are revisited whenever a
// block's exit value changes.
func Forward[T Fact[T]](fn *ir.Function, visitor Visitor[T], result Result[T], initial func() T) {
	var wl queue.Queue[*ir.Block]
	result.initialize(fn, initial, &wl)

	for !wl.Empty() {
		b := wl.Pop()
		facts := result[b]

		in := facts.In.Clone()
		for _, pred := range b.Preds {
			visitor.Merge(in, result[pred].Out)
		}
		facts.In = in

		log.Debugf("Processing block %v", b)
		out := in.Clone()
		for _, insn := range b.Instrs {
			visitor.Transfer(insn, out)
		}

		if out.Equal(facts.Out) {
			continue
		}

		facts.Out = out
		for _, succ := range b.Succs {
			wl.Push(succ)
		}
	}
}

// Backward computes a backward fixed point for fn: exit values merge the
// successors' entry values, instructions are visited in reverse order, and
// predecessors are revisited whenever a block's entry value changes.
func Backward[T Fact[T]](fn *ir.Function, visitor Visitor[T], result Result[T], initial func() T) {
	var wl queue.Queue[*ir.Block]
	result.initialize(fn, initial, &wl)

	for !wl.Empty() {
		b := wl.Pop()
		facts := result[b]

		out := facts.Out.Clone()
		for _, succ := range b.Succs {
			visitor.Merge(out, result[succ].In)
		}
		facts.Out = out

		log.Debugf("Processing block %v (backward)", b)
		in := out.Clone()
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			visitor.Transfer(b.Instrs[i], in)
		}

		if in.Equal(facts.In) {
			continue
		}

		facts.In = in
		for _, pred := range b.Preds {
			wl.Push(pred)
		}
	}
}
