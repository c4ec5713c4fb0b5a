package funcptr

import (
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/funcptr/internal/maps"
	"github.com/BarrensZeppelin/funcptr/ir"
)

// Edge is a resolved call: Site in Caller may invoke Callee.
type Edge struct {
	Caller *ir.Function
	Site   *ir.Call
	Callee *ir.Function
}

// Report accumulates the functions each call site may invoke, keyed by the
// call site's line.
type Report struct {
	callees map[int]map[string]struct{}

	edges   []Edge
	edgeSet map[Edge]struct{}
}

func NewReport() *Report {
	return &Report{
		callees: make(map[int]map[string]struct{}),
		edgeSet: make(map[Edge]struct{}),
	}
}

// Record adds name to the callees of the call site at line.
func (r *Report) Record(line int, name string) {
	names, ok := r.callees[line]
	if !ok {
		names = make(map[string]struct{})
		r.callees[line] = names
	}
	names[name] = struct{}{}
}

func (r *Report) record(caller *ir.Function, site *ir.Call, callee *ir.Function) {
	r.Record(site.Line, callee.Name)

	e := Edge{caller, site, callee}
	if _, ok := r.edgeSet[e]; !ok {
		r.edgeSet[e] = struct{}{}
		r.edges = append(r.edges, e)
	}
}

// Lines returns the lines with at least one callee in ascending order.
func (r *Report) Lines() []int {
	var lines []int
	for _, line := range maps.SortedKeys(r.callees) {
		if len(r.callees[line]) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// Callees returns the sorted callee names of the call site at line.
func (r *Report) Callees(line int) []string {
	return maps.SortedKeys(r.callees[line])
}

// Edges returns the resolved calls in the order they were discovered.
func (r *Report) Edges() []Edge {
	return r.edges
}

// Render writes one line per call site: "<line> : <name1>, <name2>".
func (r *Report) Render(w io.Writer) error {
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintf(w, "%d : %s\n", line, strings.Join(r.Callees(line), ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) String() string {
	var sb strings.Builder
	_ = r.Render(&sb)
	return sb.String()
}

// CallSite is the exported form of one report line.
type CallSite struct {
	Line    int      `yaml:"line" msgpack:"line"`
	Callees []string `yaml:"callees" msgpack:"callees"`
}

func (r *Report) CallSites() []CallSite {
	lines := r.Lines()
	sites := make([]CallSite, len(lines))
	for i, line := range lines {
		sites[i] = CallSite{line, r.Callees(line)}
	}
	return sites
}

func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.CallSites()); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func (r *Report) WriteMsgpack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(r.CallSites())
}

// ReadMsgpack restores a report written by WriteMsgpack.
func ReadMsgpack(rd io.Reader) (*Report, error) {
	var sites []CallSite
	dec := msgpack.NewDecoder(rd)
	if err := dec.Decode(&sites); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	r := NewReport()
	for _, site := range sites {
		for _, name := range site.Callees {
			r.Record(site.Line, name)
		}
	}
	return r, nil
}
