package commands

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/BarrensZeppelin/funcptr"
	"github.com/BarrensZeppelin/funcptr/internal/config"
	"github.com/BarrensZeppelin/funcptr/internal/slices"
	"github.com/BarrensZeppelin/funcptr/ir"
	"github.com/BarrensZeppelin/funcptr/pkgutil"
	"github.com/BarrensZeppelin/funcptr/ssaconv"
)

// run loads the packages matching patterns, analyzes the configured entry
// function and writes the report to out.
func run(out io.Writer, cfg *config.Config, dir string, patterns []string) error {
	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode,
		Tests: false,
		Dir:   dir,
	}, patterns...)
	if err != nil {
		return fmt.Errorf("loading packages failed: %w", err)
	}
	log.Infof("Loaded %d packages", len(pkgs))

	prog, spkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()
	log.Info("Built packages")

	roots := ssautil.MainPackages(spkgs)
	if len(roots) == 0 {
		roots = slices.Filter(spkgs, func(pkg *ssa.Package) bool { return pkg != nil })
	}

	var fns []*ssa.Function
	for _, pkg := range roots {
		fns = append(fns, ssaconv.MainFunctions(pkg)...)
	}
	conv := ssaconv.Convert(prog, fns)

	var entry *ir.Function
	if cfg.Entry != "" {
		if entry = conv.Program().Lookup(cfg.Entry); entry == nil {
			return fmt.Errorf("function %s: %w", cfg.Entry, funcptr.ErrNoEntry)
		}
	}

	res, err := funcptr.Analyze(funcptr.AnalysisConfig{
		Program:          conv.Program(),
		Entry:            entry,
		Allocators:       cfg.Allocators,
		MaxCallDepth:     cfg.MaxCallDepth,
		MaxSummaryRounds: cfg.MaxSummaryRounds,
	})
	if err != nil {
		return err
	}
	log.Infof("Analyzed %s (%d function analyses)", res.Entry.Name, res.Analyses)

	if err := writeReport(out, cfg.Format, res.Report); err != nil {
		return err
	}

	if cfg.CallGraph {
		if err := writeCallGraph(out, conv.CallGraph(res)); err != nil {
			return err
		}
	}
	if cfg.Liveness {
		return writeLiveness(out, res.Entry)
	}
	return nil
}

func writeReport(out io.Writer, format config.Format, report *funcptr.Report) error {
	switch format {
	case config.FormatYAML:
		return report.WriteYAML(out)
	case config.FormatMsgpack:
		return report.WriteMsgpack(out)
	default:
		return report.Render(out)
	}
}

func writeCallGraph(out io.Writer, cg *callgraph.Graph) error {
	return callgraph.GraphVisitEdges(cg, func(e *callgraph.Edge) error {
		_, err := fmt.Fprintf(out, "%s --> %s\n", e.Caller.Func, e.Callee.Func)
		return err
	})
}
