// Package ir defines the control-flow graph consumed by the points-to
// analysis.
//
// Values are small integer handles issued by a [Program]; every container in
// the analysis is keyed on the handle, never on the entity a frontend
// translated it from. Functions own an ordered list of basic blocks, and the
// first block is the entry.
package ir

import (
	"fmt"
	"strings"
)

// Value is a handle for an analyzable program entity.
type Value int32

// NoValue is the absent value, e.g. the result of a call whose result is
// not tracked.
const NoValue Value = 0

// Kind classifies the entity behind a value handle.
type Kind uint8

const (
	RegisterKind Kind = iota // instruction result
	ParamKind                // formal parameter or free variable
	ConstKind                // constant data
	GlobalKind               // global variable
	FuncKind                 // function reference
)

func (k Kind) String() string {
	switch k {
	case RegisterKind:
		return "register"
	case ParamKind:
		return "param"
	case ConstKind:
		return "const"
	case GlobalKind:
		return "global"
	case FuncKind:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// TypeKind is the coarse shape of a type as far as aliasing is concerned.
type TypeKind uint8

const (
	Scalar  TypeKind = iota // never holds an address
	Pointer                 // data pointer (pointer, slice, map, chan, interface)
	Func                    // function pointer
)

// Type records whether a value is pointer-like and, for pointers, whether
// the pointee is pointer-like as well.
type Type struct {
	Kind TypeKind
	Elem TypeKind
}

var (
	ScalarType = Type{Kind: Scalar}
	FuncType   = Type{Kind: Func}
)

// PointerTo returns the type of a pointer whose pointee has kind elem.
func PointerTo(elem TypeKind) Type {
	return Type{Kind: Pointer, Elem: elem}
}

func (t Type) IsPointer() bool { return t.Kind != Scalar }

// ElemIsPointer reports whether loading through a value of type t yields a
// pointer-like value.
func (t Type) ElemIsPointer() bool {
	return t.Kind == Pointer && t.Elem != Scalar
}

type valueInfo struct {
	kind Kind
	name string
	typ  Type
	fn   *Function
}

// Program is the arena owning every value handle and function.
type Program struct {
	values []valueInfo

	// Functions in definition order.
	Functions []*Function
	byName    map[string]*Function
}

func NewProgram() *Program {
	return &Program{
		// Slot 0 backs NoValue.
		values: []valueInfo{{kind: ConstKind, name: "<none>"}},
		byName: make(map[string]*Function),
	}
}

// NewValue issues a fresh handle.
func (p *Program) NewValue(kind Kind, name string, typ Type) Value {
	p.values = append(p.values, valueInfo{kind: kind, name: name, typ: typ})
	return Value(len(p.values) - 1)
}

// NewConst issues a handle for constant data of the given type.
func (p *Program) NewConst(name string, typ Type) Value {
	return p.NewValue(ConstKind, name, typ)
}

// NewGlobal issues a handle for a global variable. Globals are addresses.
func (p *Program) NewGlobal(name string, elem TypeKind) Value {
	return p.NewValue(GlobalKind, name, PointerTo(elem))
}

// NewFunction creates a function without blocks and appends it to the
// program's definition order.
func (p *Program) NewFunction(name string, result Type) *Function {
	fn := &Function{Name: name, Result: result, Prog: p}
	fn.Value = p.NewValue(FuncKind, name, FuncType)
	p.values[fn.Value].fn = fn
	p.Functions = append(p.Functions, fn)
	if _, dup := p.byName[name]; !dup {
		p.byName[name] = fn
	}
	return fn
}

// Lookup returns the first function defined with the given name.
func (p *Program) Lookup(name string) *Function { return p.byName[name] }

func (p *Program) NumValues() int { return len(p.values) }

func (p *Program) Kind(v Value) Kind   { return p.values[v].kind }
func (p *Program) Name(v Value) string { return p.values[v].name }
func (p *Program) Type(v Value) Type   { return p.values[v].typ }

// Func returns the function referenced by v, or nil when v is not a
// function reference.
func (p *Program) Func(v Value) *Function { return p.values[v].fn }

func (p *Program) IsConst(v Value) bool { return p.values[v].kind == ConstKind }

// Sprint renders a value for diagnostics: functions as @name, everything
// else as %name.
func (p *Program) Sprint(v Value) string {
	if v == NoValue {
		return "_"
	}
	info := p.values[v]
	switch info.kind {
	case FuncKind, GlobalKind:
		return "@" + info.name
	case ConstKind:
		return info.name
	default:
		return "%" + info.name
	}
}

// SprintInstr renders an instruction with value names resolved.
func (p *Program) SprintInstr(insn Instruction) string {
	var sb strings.Builder
	if dst := insn.Result(); dst != NoValue {
		fmt.Fprintf(&sb, "%s = ", p.Sprint(dst))
	}
	sb.WriteString(insn.Op())
	for i, rand := range insn.Operands(nil) {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Sprint(rand))
	}
	return sb.String()
}

// Function is a unit of analysis.
type Function struct {
	Name   string
	Value  Value
	Params []Value
	Result Type
	Blocks []*Block

	// Intrinsic functions are never picked as entry points.
	Intrinsic bool

	Prog *Program
}

func (f *Function) String() string { return f.Name }

// AddParam appends a formal parameter.
func (f *Function) AddParam(name string, typ Type) Value {
	v := f.Prog.NewValue(ParamKind, name, typ)
	f.Params = append(f.Params, v)
	return v
}

// NewRegister issues a handle for an instruction result of f.
func (f *Function) NewRegister(name string, typ Type) Value {
	return f.Prog.NewValue(RegisterKind, name, typ)
}

// NewBlock appends an empty block. The first block created is the entry.
func (f *Function) NewBlock(comment string) *Block {
	b := &Block{Index: len(f.Blocks), Comment: comment, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// HasBody reports whether f is defined rather than only declared.
func (f *Function) HasBody() bool { return len(f.Blocks) > 0 }

func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Exits returns the blocks that end in a return. A function without any
// return (e.g. one ending in an infinite loop) reports its last block.
func (f *Function) Exits() []*Block {
	var exits []*Block
	for _, b := range f.Blocks {
		if n := len(b.Instrs); n > 0 {
			if _, ok := b.Instrs[n-1].(*Return); ok {
				exits = append(exits, b)
			}
		}
	}
	if len(exits) == 0 && len(f.Blocks) > 0 {
		exits = append(exits, f.Blocks[len(f.Blocks)-1])
	}
	return exits
}

// Block is a basic block.
type Block struct {
	Index   int
	Comment string
	Parent  *Function
	Instrs  []Instruction
	Preds   []*Block
	Succs   []*Block
}

func (b *Block) String() string {
	if b.Comment != "" {
		return fmt.Sprintf("%s.%d(%s)", b.Parent.Name, b.Index, b.Comment)
	}
	return fmt.Sprintf("%s.%d", b.Parent.Name, b.Index)
}

// Emit appends insn to b and returns it.
func (b *Block) Emit(insn Instruction) Instruction {
	b.Instrs = append(b.Instrs, insn)
	return insn
}

// AddEdge adds a control-flow edge from -> to.
func AddEdge(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}
