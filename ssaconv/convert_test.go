package ssaconv_test

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/BarrensZeppelin/funcptr"
	"github.com/BarrensZeppelin/funcptr/internal/slices"
	"github.com/BarrensZeppelin/funcptr/liveness"
	"github.com/BarrensZeppelin/funcptr/pkgutil"
	"github.com/BarrensZeppelin/funcptr/ssaconv"
)

const arith = `
package main

func plus(a, b int) int  { return a + b }
func minus(a, b int) int { return a - b }
`

var markerRe = regexp.MustCompile(`// @(\S+)`)

// markers maps the name of every "// @name" comment in src to its line.
func markers(src string) map[string]int {
	res := make(map[string]int)
	for i, line := range strings.Split(src, "\n") {
		if m := markerRe.FindStringSubmatch(line); m != nil {
			res[m[1]] = i + 1
		}
	}
	return res
}

type testCase struct {
	conv  *ssaconv.Converter
	pkg   *ssa.Package
	res   *funcptr.Result
	lines map[string]int
}

func analyze(t *testing.T, body string) *testCase {
	t.Helper()
	src := arith + body

	pkgs, err := pkgutil.LoadPackagesFromSource(src)
	require.NoError(t, err)

	prog, spkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()
	pkg := spkgs[0]

	conv := ssaconv.Convert(prog, ssaconv.MainFunctions(pkg))
	res, err := funcptr.Analyze(funcptr.AnalysisConfig{
		Program: conv.Program(),
		Entry:   conv.Function(pkg.Func("main")),
	})
	require.NoError(t, err)

	return &testCase{conv, pkg, res, markers(src)}
}

func (tc *testCase) callees(name string) []string {
	return tc.res.Report.Callees(tc.lines[name])
}

func TestHelperStore(t *testing.T) {
	tc := analyze(t, `
func helper(f *func(int, int) int) {
	*f = plus
}

func main() {
	var f func(int, int) int
	helper(&f) // @helper
	println(f(1, 2)) // @call
}`)

	assert.Equal(t,
		fmt.Sprintf("%d : helper\n%d : plus\n", tc.lines["helper"], tc.lines["call"]),
		tc.res.Report.String())
}

func TestPhi(t *testing.T) {
	tc := analyze(t, `
func cond() bool

func main() {
	f := plus
	if cond() {
		f = minus
	}
	println(f(1, 2)) // @call
}`)

	assert.Equal(t, []string{"minus", "plus"}, tc.callees("call"))
}

func TestReturnedFunction(t *testing.T) {
	tc := analyze(t, `
func pick() func(int, int) int {
	return minus
}

func main() {
	g := pick() // @pick
	println(g(3, 4)) // @call
}`)

	assert.Equal(t, []string{"pick"}, tc.callees("pick"))
	assert.Equal(t, []string{"minus"}, tc.callees("call"))
}

func TestRecursiveReturn(t *testing.T) {
	tc := analyze(t, `
func cond() bool

func rec() func(int, int) int {
	if cond() {
		return plus
	}
	return rec() // @rec
}

func main() {
	g := rec()
	println(g(1, 2)) // @call
}`)

	assert.Equal(t, []string{"rec"}, tc.callees("rec"))
	assert.Equal(t, []string{"plus"}, tc.callees("call"))
}

func TestClosure(t *testing.T) {
	tc := analyze(t, `
func main() {
	k := 3
	h := func(x int) int { return x * k }
	println(h(2)) // @call
}`)

	assert.Equal(t, []string{"main$1"}, tc.callees("call"))

	anon := tc.conv.Function(tc.pkg.Func("main").AnonFuncs[0])
	require.NotNil(t, anon)
	assert.True(t, anon.Intrinsic)
	assert.True(t, anon.HasBody())
}

func TestStructField(t *testing.T) {
	tc := analyze(t, `
type handler struct {
	fn func(int, int) int
}

func main() {
	h := &handler{}
	h.fn = plus
	println(h.fn(1, 2)) // @call
}`)

	assert.Equal(t, []string{"plus"}, tc.callees("call"))
}

func TestCopy(t *testing.T) {
	tc := analyze(t, `
func main() {
	src := []func(int, int) int{minus}
	dst := make([]func(int, int) int, 1)
	copy(dst, src)
	println(dst[0](1, 2)) // @call
}`)

	assert.Equal(t, []string{"minus"}, tc.callees("call"))
}

func TestMainFunctions(t *testing.T) {
	tc := analyze(t, `
func helper() {}

func main() {
	helper() // @call
}`)

	names := slices.Map(ssaconv.MainFunctions(tc.pkg), func(fn *ssa.Function) string {
		return fn.Name()
	})
	assert.Equal(t, []string{"plus", "minus", "helper", "main"}, names)

	entry, err := funcptr.EntryPoint(tc.conv.Program())
	require.NoError(t, err)
	assert.Equal(t, "main", entry.Name)
	assert.Equal(t, tc.pkg.Func("main"), tc.conv.Origin(entry))
}

func TestCallGraph(t *testing.T) {
	tc := analyze(t, `
func helper(f *func(int, int) int) {
	*f = plus
}

func main() {
	var f func(int, int) int
	helper(&f)
	println(f(1, 2))
}`)

	cg := tc.conv.CallGraph(tc.res)
	mainFn := tc.pkg.Func("main")
	require.Equal(t, mainFn, cg.Root.Func)

	node := cg.Nodes[mainFn]
	require.NotNil(t, node)

	var callees []string
	for _, e := range node.Out {
		require.NotNil(t, e.Site)
		callees = append(callees, e.Callee.Func.Name())
	}
	assert.ElementsMatch(t, []string{"helper", "plus"}, callees)
}

func TestLiveness(t *testing.T) {
	tc := analyze(t, `
func main() {
	f := plus
	println(f(1, 2))
}`)

	fn := tc.conv.Function(tc.pkg.Func("main"))
	res := liveness.Analyze(fn)
	for _, b := range fn.Blocks {
		assert.Empty(t, liveness.LiveIn(res, b), "nothing is live on entry to %v", b)
	}
}
