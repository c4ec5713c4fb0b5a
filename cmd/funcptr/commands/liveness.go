package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/BarrensZeppelin/funcptr/internal/slices"
	"github.com/BarrensZeppelin/funcptr/ir"
	"github.com/BarrensZeppelin/funcptr/liveness"
)

// writeLiveness prints the values live on entry to and on exit from every
// block of fn.
func writeLiveness(out io.Writer, fn *ir.Function) error {
	res := liveness.Analyze(fn)
	names := func(vs []ir.Value) string {
		return strings.Join(slices.Map(vs, fn.Prog.Sprint), ", ")
	}

	for _, b := range fn.Blocks {
		if _, err := fmt.Fprintf(out, "%v : in {%s} out {%s}\n", b,
			names(liveness.LiveIn(res, b)), names(liveness.LiveOut(res, b))); err != nil {
			return err
		}
	}
	return nil
}
