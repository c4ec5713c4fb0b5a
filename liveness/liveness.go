// Package liveness computes the values that are live at block boundaries,
// i.e. read on some path before being redefined.
package liveness

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/BarrensZeppelin/funcptr/dataflow"
	"github.com/BarrensZeppelin/funcptr/ir"
)

// Set is a set of value handles.
type Set struct {
	bits *roaring.Bitmap
}

func NewSet() *Set {
	return &Set{roaring.New()}
}

func (s *Set) Clone() *Set       { return &Set{s.bits.Clone()} }
func (s *Set) Equal(o *Set) bool { return s.bits.Equals(o.bits) }
func (s *Set) Len() int          { return int(s.bits.GetCardinality()) }

func (s *Set) Add(v ir.Value)           { s.bits.Add(uint32(v)) }
func (s *Set) Remove(v ir.Value)        { s.bits.Remove(uint32(v)) }
func (s *Set) Contains(v ir.Value) bool { return s.bits.Contains(uint32(v)) }

// Values returns the members in ascending order.
func (s *Set) Values() []ir.Value {
	arr := s.bits.ToArray()
	res := make([]ir.Value, len(arr))
	for i, x := range arr {
		res[i] = ir.Value(x)
	}
	return res
}

type visitor struct {
	prog  *ir.Program
	rands []ir.Value
}

func (*visitor) Merge(dst, src *Set) {
	dst.bits.Or(src.bits)
}

func (v *visitor) Transfer(insn ir.Instruction, live *Set) {
	if dst := insn.Result(); dst != ir.NoValue {
		live.Remove(dst)
	}

	v.rands = insn.Operands(v.rands[:0])
	for _, rand := range v.rands {
		if rand == ir.NoValue {
			continue
		}
		switch v.prog.Kind(rand) {
		case ir.RegisterKind, ir.ParamKind:
			live.Add(rand)
		}
	}
}

// Analyze computes the live values at the start and end of every block of
// fn. Only registers and parameters are tracked.
func Analyze(fn *ir.Function) dataflow.Result[*Set] {
	res := dataflow.Result[*Set]{}
	dataflow.Backward[*Set](fn, &visitor{prog: fn.Prog}, res, NewSet)
	return res
}

// LiveIn returns the values live on entry to b.
func LiveIn(res dataflow.Result[*Set], b *ir.Block) []ir.Value {
	if facts, ok := res[b]; ok {
		return facts.In.Values()
	}
	return nil
}

// LiveOut returns the values live on exit from b.
func LiveOut(res dataflow.Result[*Set], b *ir.Block) []ir.Value {
	if facts, ok := res[b]; ok {
		return facts.Out.Values()
	}
	return nil
}
