package funcptr

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/funcptr/dataflow"
	"github.com/BarrensZeppelin/funcptr/ir"
)

var ErrNoEntry = errors.New("no entry function")

const (
	DefaultMaxCallDepth     = 64
	DefaultMaxSummaryRounds = 8
)

type AnalysisConfig struct {
	Program *ir.Program

	// Entry is the function to analyze. When nil, the last function defined
	// in Program that has a body and is not intrinsic is used.
	Entry *ir.Function

	// Direct calls to functions with these names are recorded without being
	// analyzed. Defaults to "malloc".
	Allocators []string

	// Nested analyses deeper than MaxCallDepth assume that the callee has no
	// effect.
	MaxCallDepth int

	// Upper bound on the number of times a recursive function is
	// re-analyzed while its summary stabilizes.
	MaxSummaryRounds int

	// When DisableCache is true, every call re-analyzes its callee even if
	// it was analyzed before with the same entry state.
	DisableCache bool
}

// Result of analyzing an entry function.
type Result struct {
	Entry  *ir.Function
	Report *Report

	// Per-block entry and exit states of the entry function.
	States dataflow.Result[*State]
	// Exit state of the entry function.
	Exit *State

	// Number of function bodies analyzed, counting every re-analysis round.
	Analyses int
}

// aContext holds everything shared by the nested analyses of one Analyze
// call.
type aContext struct {
	prog       *ir.Program
	allocators map[string]bool
	report     *Report

	summaries map[summaryKey]*summary
	// Summaries currently being computed, outermost first.
	stack []*summary

	maxDepth     int
	maxRounds    int
	disableCache bool

	analyses int
}

// EntryPoint returns the last function defined in prog that has a body and
// is not intrinsic.
func EntryPoint(prog *ir.Program) (*ir.Function, error) {
	for i := len(prog.Functions) - 1; i >= 0; i-- {
		if fn := prog.Functions[i]; fn.HasBody() && !fn.Intrinsic {
			return fn, nil
		}
	}
	return nil, ErrNoEntry
}

func Analyze(config AnalysisConfig) (*Result, error) {
	prog := config.Program
	if prog == nil {
		return nil, errors.New("analysis config has no program")
	}

	entry := config.Entry
	if entry == nil {
		var err error
		if entry, err = EntryPoint(prog); err != nil {
			return nil, err
		}
	} else if !entry.HasBody() {
		return nil, fmt.Errorf("entry function %s has no body: %w", entry.Name, ErrNoEntry)
	}

	ctx := &aContext{
		prog:         prog,
		allocators:   make(map[string]bool),
		report:       NewReport(),
		summaries:    make(map[summaryKey]*summary),
		maxDepth:     config.MaxCallDepth,
		maxRounds:    config.MaxSummaryRounds,
		disableCache: config.DisableCache,
	}

	allocators := config.Allocators
	if allocators == nil {
		allocators = []string{"malloc"}
	}
	for _, name := range allocators {
		ctx.allocators[name] = true
	}
	if ctx.maxDepth <= 0 {
		ctx.maxDepth = DefaultMaxCallDepth
	}
	if ctx.maxRounds <= 0 {
		ctx.maxRounds = DefaultMaxSummaryRounds
	}

	log.Debugf("Entry function: %s", entry.Name)
	s := ctx.summarize(entry, NewState())

	return &Result{
		Entry:  entry,
		Report: ctx.report,
		States: s.states,
		Exit:   s.exit,

		Analyses: ctx.analyses,
	}, nil
}

// analyze runs the forward fixed point on fn with entry seeded into its
// entry block, and returns the per-block states together with the merged
// state of all exit blocks.
func (ctx *aContext) analyze(fn *ir.Function, entry *State) (dataflow.Result[*State], *State) {
	ctx.analyses++
	states := dataflow.Result[*State]{}
	states.Seed(fn.Entry(), entry.Clone(), NewState())
	dataflow.Forward[*State](fn, &visitor{ctx: ctx, fn: fn}, states, NewState)

	exit := NewState()
	for _, b := range fn.Exits() {
		exit.Merge(states[b].Out)
	}
	return states, exit
}
