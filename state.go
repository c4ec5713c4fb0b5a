package funcptr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/tools/container/intsets"

	"github.com/BarrensZeppelin/funcptr/internal/maps"
	"github.com/BarrensZeppelin/funcptr/ir"
)

// State is the dataflow value of the points-to analysis.
//
// pointsTo maps a location to the set of values stored in it. bindings maps
// a value to the set of values it is a copy of; a bound value never gets a
// points-to set of its own, accesses through it are redirected to the values
// it is bound to.
//
// Sets stored in a State are owned by it. Accessors return the stored set,
// which callers must not modify.
type State struct {
	pointsTo map[ir.Value]*intsets.Sparse
	bindings map[ir.Value]*intsets.Sparse
}

func NewState() *State {
	return &State{
		pointsTo: make(map[ir.Value]*intsets.Sparse),
		bindings: make(map[ir.Value]*intsets.Sparse),
	}
}

func setOf(vs ...ir.Value) *intsets.Sparse {
	s := new(intsets.Sparse)
	for _, v := range vs {
		s.Insert(int(v))
	}
	return s
}

func copySet(s *intsets.Sparse) *intsets.Sparse {
	c := new(intsets.Sparse)
	c.Copy(s)
	return c
}

// members returns the elements of s in ascending order.
func members(s *intsets.Sparse) []ir.Value {
	if s == nil {
		return nil
	}
	ints := s.AppendTo(nil)
	vs := make([]ir.Value, len(ints))
	for i, x := range ints {
		vs[i] = ir.Value(x)
	}
	return vs
}

func cloneMap(m map[ir.Value]*intsets.Sparse) map[ir.Value]*intsets.Sparse {
	c := make(map[ir.Value]*intsets.Sparse, len(m))
	for k, s := range m {
		c[k] = copySet(s)
	}
	return c
}

func equalMaps(a, b map[ir.Value]*intsets.Sparse) bool {
	if len(a) != len(b) {
		return false
	}
	for k, x := range a {
		if y, ok := b[k]; !ok || !x.Equals(y) {
			return false
		}
	}
	return true
}

func mergeMaps(dst, src map[ir.Value]*intsets.Sparse) {
	for k, s := range src {
		if d, ok := dst[k]; ok {
			d.UnionWith(s)
		} else {
			dst[k] = copySet(s)
		}
	}
}

func (s *State) Clone() *State {
	return &State{
		pointsTo: cloneMap(s.pointsTo),
		bindings: cloneMap(s.bindings),
	}
}

// Equal reports whether both states have the same keys mapped to the same
// sets. A key mapped to the empty set differs from an absent key.
func (s *State) Equal(o *State) bool {
	return equalMaps(s.pointsTo, o.pointsTo) && equalMaps(s.bindings, o.bindings)
}

// Merge unions src into s key by key.
func (s *State) Merge(src *State) {
	mergeMaps(s.pointsTo, src.pointsTo)
	mergeMaps(s.bindings, src.bindings)
}

func (s *State) HasBinding(v ir.Value) bool {
	_, ok := s.bindings[v]
	return ok
}

// Binding returns the values v is bound to; the empty set when v is unbound.
func (s *State) Binding(v ir.Value) *intsets.Sparse {
	if b, ok := s.bindings[v]; ok {
		return b
	}
	return new(intsets.Sparse)
}

// SetBinding replaces the binding of v with a copy of set.
func (s *State) SetBinding(v ir.Value, set *intsets.Sparse) {
	s.bindings[v] = copySet(set)
}

// AddBinding unions set into the binding of v.
func (s *State) AddBinding(v ir.Value, set *intsets.Sparse) {
	if b, ok := s.bindings[v]; ok {
		b.UnionWith(set)
	} else {
		s.SetBinding(v, set)
	}
}

func (s *State) HasPointsTo(v ir.Value) bool {
	_, ok := s.pointsTo[v]
	return ok
}

// PointsTo returns the points-to set of v; the empty set when v has none.
func (s *State) PointsTo(v ir.Value) *intsets.Sparse {
	if p, ok := s.pointsTo[v]; ok {
		return p
	}
	return new(intsets.Sparse)
}

// SetPointsTo replaces the points-to set of v with a copy of set.
func (s *State) SetPointsTo(v ir.Value, set *intsets.Sparse) {
	s.pointsTo[v] = copySet(set)
}

// AddPointsTo unions set into the points-to set of v.
func (s *State) AddPointsTo(v ir.Value, set *intsets.Sparse) {
	if p, ok := s.pointsTo[v]; ok {
		p.UnionWith(set)
	} else {
		s.SetPointsTo(v, set)
	}
}

// Bound returns the bound values in ascending handle order.
func (s *State) Bound() []ir.Value { return maps.SortedKeys(s.bindings) }

// Locations returns the values with a points-to set in ascending handle
// order.
func (s *State) Locations() []ir.Value { return maps.SortedKeys(s.pointsTo) }

func appendMap(buf []byte, m map[ir.Value]*intsets.Sparse) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(m)))
	for _, k := range maps.SortedKeys(m) {
		set := m[k]
		buf = binary.AppendUvarint(buf, uint64(k))
		buf = binary.AppendUvarint(buf, uint64(set.Len()))
		for _, x := range set.AppendTo(nil) {
			buf = binary.AppendUvarint(buf, uint64(x))
		}
	}
	return buf
}

// Fingerprint is a content hash of the state. Equal states have equal
// fingerprints.
func (s *State) Fingerprint() [32]byte {
	buf := appendMap(nil, s.pointsTo)
	buf = appendMap(buf, s.bindings)
	return blake3.Sum256(buf)
}

func sprintSet(prog *ir.Program, set *intsets.Sparse) string {
	var names []string
	for _, v := range members(set) {
		names = append(names, prog.Sprint(v))
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Sprint renders the state with the value names of prog.
func (s *State) Sprint(prog *ir.Program) string {
	var sb strings.Builder
	sb.WriteString("Points-to sets:\n")
	for _, k := range s.Locations() {
		fmt.Fprintf(&sb, "\t%s: %s\n", prog.Sprint(k), sprintSet(prog, s.pointsTo[k]))
	}
	sb.WriteString("Bindings:\n")
	for _, k := range s.Bound() {
		fmt.Fprintf(&sb, "\t%s = %s\n", prog.Sprint(k), sprintSet(prog, s.bindings[k]))
	}
	return sb.String()
}
