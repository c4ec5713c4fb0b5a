package ssaconv

import (
	"golang.org/x/tools/go/callgraph"

	"github.com/BarrensZeppelin/funcptr"
)

// CallGraph returns the call graph rooted at the analyzed entry function.
// Edges are the calls resolved by the analysis; calls the analysis never
// reached (e.g. interface method invocations) are absent.
func (c *Converter) CallGraph(res *funcptr.Result) *callgraph.Graph {
	cg := callgraph.New(c.origin[res.Entry])

	for _, e := range res.Report.Edges() {
		caller, callee := c.origin[e.Caller], c.origin[e.Callee]
		if caller == nil || callee == nil {
			continue
		}
		callgraph.AddEdge(cg.CreateNode(caller), c.sites[e.Site], cg.CreateNode(callee))
	}

	return cg
}
