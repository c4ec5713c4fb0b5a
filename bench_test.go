package funcptr

import (
	"fmt"
	"testing"

	"github.com/BarrensZeppelin/funcptr/ir"
)

var blackHole any

// chainProgram builds n functions where f_i stores plus or minus through its
// parameter and passes it on to f_{i+1}; main calls through the slot.
func chainProgram(n int) *builder {
	b := newBuilder()
	fns := make([]*ir.Function, n)
	for i := range fns {
		fns[i] = b.prog.NewFunction(fmt.Sprintf("f%d", i), ir.ScalarType)
	}
	for i, fn := range fns {
		p := fn.AddParam("p", ir.PointerTo(ir.Func))
		blk := fn.NewBlock("entry")
		val := b.plus.Value
		if i%2 == 1 {
			val = b.minus.Value
		}
		blk.Emit(&ir.Store{Val: val, Addr: p})
		if i+1 < n {
			blk.Emit(&ir.Call{Callee: fns[i+1].Value, Args: []ir.Value{p}, Line: i + 1})
		}
		blk.Emit(&ir.Return{})
	}

	main := b.prog.NewFunction("main", ir.ScalarType)
	blk := main.NewBlock("entry")
	s := slot(main, blk, "s")
	blk.Emit(&ir.Call{Callee: fns[0].Value, Args: []ir.Value{s}, Line: n + 1})
	b.callThrough(main, blk, s, n+2)
	blk.Emit(&ir.Return{})
	return b
}

func BenchmarkCallChain(b *testing.B) {
	for _, n := range [...]int{8, 32} {
		for _, disableCache := range [...]bool{false, true} {
			prog := chainProgram(n).prog
			b.Run(fmt.Sprintf("Depth=%d/DisableCache=%v", n, disableCache), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					res, err := Analyze(AnalysisConfig{Program: prog, DisableCache: disableCache})
					if err != nil {
						b.Fatal(err)
					}
					blackHole = res
				}
			})
		}
	}
}

func TestCallChain(t *testing.T) {
	b := chainProgram(5)
	res := b.analyze(t, nil)
	// The last function in the chain stores plus.
	if got := res.Report.Callees(7); len(got) != 1 || got[0] != "plus" {
		t.Fatalf("unexpected callees at the indirect call: %v", got)
	}
}
