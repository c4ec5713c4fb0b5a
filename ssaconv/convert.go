// Package ssaconv lowers functions in golang.org/x/tools/go/ssa form to the
// control-flow graphs analyzed by funcptr.
package ssaconv

import (
	"fmt"
	"go/token"
	"go/types"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/BarrensZeppelin/funcptr/ir"
)

// Converter owns the ir.Program built from a set of SSA functions. Only
// functions in scope get a body; every other function referenced from them
// becomes a declaration.
type Converter struct {
	fset *token.FileSet
	prog *ir.Program

	scope map[*ssa.Function]bool
	queue []*ssa.Function

	funcs   map[*ssa.Function]*ir.Function
	origin  map[*ir.Function]*ssa.Function
	values  map[ssa.Value]ir.Value
	globals map[*ssa.Global]ir.Value
	sites   map[*ir.Call]ssa.CallInstruction
}

// Convert lowers fns, and the anonymous functions nested in them, into a
// fresh ir.Program. Functions appear in the program in the order of fns.
func Convert(prog *ssa.Program, fns []*ssa.Function) *Converter {
	c := &Converter{
		fset:    prog.Fset,
		prog:    ir.NewProgram(),
		scope:   make(map[*ssa.Function]bool),
		funcs:   make(map[*ssa.Function]*ir.Function),
		origin:  make(map[*ir.Function]*ssa.Function),
		values:  make(map[ssa.Value]ir.Value),
		globals: make(map[*ssa.Global]ir.Value),
		sites:   make(map[*ir.Call]ssa.CallInstruction),
	}

	var addScope func(fn *ssa.Function)
	addScope = func(fn *ssa.Function) {
		if !c.scope[fn] {
			c.scope[fn] = true
			for _, anon := range fn.AnonFuncs {
				addScope(anon)
			}
		}
	}
	for _, fn := range fns {
		addScope(fn)
	}

	for _, fn := range fns {
		c.function(fn)
	}
	for len(c.queue) > 0 {
		fn := c.queue[0]
		c.queue = c.queue[1:]
		c.body(fn)
	}

	log.Debugf("Converted %d functions into %d values", len(c.funcs), c.prog.NumValues())
	return c
}

// MainFunctions returns the source-level functions and methods declared in
// pkg, in position order.
func MainFunctions(pkg *ssa.Package) []*ssa.Function {
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(pkg.Prog) {
		if fn.Pkg == pkg && fn.Synthetic == "" && fn.Parent() == nil && fn.Pos().IsValid() {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Pos() < fns[j].Pos() })
	return fns
}

func (c *Converter) Program() *ir.Program { return c.prog }

// Function returns the lowered form of fn, or nil if fn was never reached.
func (c *Converter) Function(fn *ssa.Function) *ir.Function { return c.funcs[fn] }

// Origin returns the SSA function fn was lowered from.
func (c *Converter) Origin(fn *ir.Function) *ssa.Function { return c.origin[fn] }

func funcName(fn *ssa.Function) string {
	var from *types.Package
	if fn.Pkg != nil {
		from = fn.Pkg.Pkg
	}
	return fn.RelString(from)
}

// function declares fn and queues its body for conversion when fn is in
// scope.
func (c *Converter) function(fn *ssa.Function) *ir.Function {
	if f, ok := c.funcs[fn]; ok {
		return f
	}

	f := c.prog.NewFunction(funcName(fn), resultType(fn.Signature))
	f.Intrinsic = fn.Synthetic != "" || fn.Parent() != nil || fn.Name() == "init"
	c.funcs[fn] = f
	c.origin[f] = fn

	if len(fn.Params) > 0 || len(fn.Blocks) > 0 {
		for _, p := range fn.Params {
			c.values[p] = f.AddParam(p.Name(), typeOf(p.Type()))
		}
	} else {
		sig := fn.Signature
		if recv := sig.Recv(); recv != nil {
			f.AddParam(recv.Name(), typeOf(recv.Type()))
		}
		for i := 0; i < sig.Params().Len(); i++ {
			p := sig.Params().At(i)
			f.AddParam(p.Name(), typeOf(p.Type()))
		}
	}

	if c.scope[fn] && len(fn.Blocks) > 0 {
		c.queue = append(c.queue, fn)
	}
	return f
}

// value returns the handle of v, issuing one on first use.
func (c *Converter) value(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case nil:
		return ir.NoValue
	case *ssa.Function:
		return c.function(v).Value
	case *ssa.Builtin:
		return ir.NoValue
	case *ssa.Global:
		if h, ok := c.globals[v]; ok {
			return h
		}
		elem := kindOf(v.Type().(*types.Pointer).Elem())
		h := c.prog.NewGlobal(v.RelString(nil), elem)
		c.globals[v] = h
		return h
	}

	if h, ok := c.values[v]; ok {
		return h
	}

	var h ir.Value
	switch v := v.(type) {
	case *ssa.Const:
		h = c.prog.NewConst(v.String(), typeOf(v.Type()))
	case *ssa.FreeVar:
		h = c.prog.NewValue(ir.ParamKind, v.Name(), typeOf(v.Type()))
	case *ssa.Parameter:
		// Parameters of functions declared by us are registered up front.
		h = c.prog.NewValue(ir.ParamKind, v.Name(), typeOf(v.Type()))
	default:
		h = c.prog.NewValue(ir.RegisterKind, v.Name(), typeOf(v.Type()))
	}
	c.values[v] = h
	return h
}

func (c *Converter) line(pos token.Pos) int {
	if !pos.IsValid() {
		return 0
	}
	return c.fset.Position(pos).Line
}

func (c *Converter) body(fn *ssa.Function) {
	f := c.funcs[fn]
	log.Debugf("Converting %s", fn)

	blocks := make([]*ir.Block, len(fn.Blocks))
	for i, b := range fn.Blocks {
		blocks[i] = f.NewBlock(b.Comment)
	}
	for i, b := range fn.Blocks {
		for _, succ := range b.Succs {
			ir.AddEdge(blocks[i], blocks[succ.Index])
		}
	}

	for i, b := range fn.Blocks {
		for _, insn := range b.Instrs {
			if lowered := c.instruction(insn); lowered != nil {
				blocks[i].Emit(lowered)
			}
		}
	}
}

func (c *Converter) result(insn ssa.Instruction) ir.Value {
	if v, ok := insn.(ssa.Value); ok {
		return c.value(v)
	}
	return ir.NoValue
}

func (c *Converter) instruction(insn ssa.Instruction) ir.Instruction {
	switch insn := insn.(type) {
	case *ssa.DebugRef:
		return nil

	case *ssa.Alloc:
		return &ir.Alloca{Dst: c.value(insn)}

	case *ssa.Store:
		return &ir.Store{Val: c.value(insn.Val), Addr: c.value(insn.Addr)}

	case *ssa.UnOp:
		if insn.Op == token.MUL {
			return &ir.Load{Dst: c.value(insn), Addr: c.value(insn.X)}
		}

	case *ssa.FieldAddr:
		return &ir.AddressCompute{Dst: c.value(insn), Base: c.value(insn.X)}

	case *ssa.IndexAddr:
		return &ir.AddressCompute{Dst: c.value(insn), Base: c.value(insn.X)}

	case *ssa.ChangeType:
		return c.conversion(insn, insn.X)
	case *ssa.Convert:
		return c.conversion(insn, insn.X)
	case *ssa.ChangeInterface:
		return c.conversion(insn, insn.X)
	case *ssa.MakeInterface:
		return c.conversion(insn, insn.X)
	case *ssa.SliceToArrayPointer:
		return c.conversion(insn, insn.X)
	case *ssa.Slice:
		return c.conversion(insn, insn.X)

	case *ssa.MakeClosure:
		return &ir.Phi{Dst: c.value(insn), Edges: []ir.Value{c.value(insn.Fn)}}

	case *ssa.Phi:
		edges := make([]ir.Value, len(insn.Edges))
		for i, e := range insn.Edges {
			edges[i] = c.value(e)
		}
		return &ir.Phi{Dst: c.value(insn), Edges: edges}

	case *ssa.Return:
		if len(insn.Results) == 1 {
			return &ir.Return{Val: c.value(insn.Results[0])}
		}
		return &ir.Return{}

	case ssa.CallInstruction:
		if call := c.call(insn); call != nil {
			return call
		}
	}

	return c.other(insn)
}

// conversion lowers a value-preserving conversion. Pointer-like results
// alias their operand; scalar ones are opaque casts.
func (c *Converter) conversion(insn ssa.Value, x ssa.Value) ir.Instruction {
	if PointerLike(insn.Type()) {
		return &ir.Phi{Dst: c.value(insn), Edges: []ir.Value{c.value(x)}}
	}
	return &ir.Cast{Dst: c.value(insn), X: c.value(x)}
}

func (c *Converter) call(insn ssa.CallInstruction) ir.Instruction {
	common := insn.Common()
	if common.IsInvoke() {
		return nil
	}

	args := make([]ir.Value, len(common.Args))
	for i, arg := range common.Args {
		args[i] = c.value(arg)
	}

	if b, ok := common.Value.(*ssa.Builtin); ok {
		if b.Name() == "copy" {
			return &ir.MemCopy{Dest: args[0], Source: args[1]}
		}
		return nil
	}

	dst := ir.NoValue
	if v := insn.Value(); v != nil && common.Signature().Results().Len() > 0 {
		dst = c.value(v)
	}

	call := &ir.Call{
		Dst:    dst,
		Callee: c.value(common.Value),
		Args:   args,
		Line:   c.line(insn.Pos()),
	}
	c.sites[call] = insn
	return call
}

func (c *Converter) other(insn ssa.Instruction) ir.Instruction {
	var args []ir.Value
	for _, rand := range insn.Operands(nil) {
		if rand != nil && *rand != nil {
			args = append(args, c.value(*rand))
		}
	}

	opcode := strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", insn), "*ssa."))
	return &ir.Other{Opcode: opcode, Dst: c.result(insn), Args: args}
}
