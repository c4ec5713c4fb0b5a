package ir

// Instruction is the closed set of instruction kinds relevant to aliasing.
// Frontends lower everything else to *Other.
type Instruction interface {
	// Op is a short mnemonic used in diagnostics.
	Op() string
	// Result returns the value defined by the instruction, or NoValue.
	Result() Value
	// Operands appends the values read by the instruction to rands.
	Operands(rands []Value) []Value

	instr()
}

// Alloca declares a new memory location addressed by Dst.
type Alloca struct {
	Dst Value
}

// Store writes Val to the location Addr points to.
type Store struct {
	Val  Value
	Addr Value
}

// Load reads the location Addr points to into Dst.
type Load struct {
	Dst  Value
	Addr Value
}

// AddressCompute derives a sub-address (field or element) of Base.
type AddressCompute struct {
	Dst  Value
	Base Value
}

// Cast converts X to another type without changing its identity.
type Cast struct {
	Dst Value
	X   Value
}

// Call invokes Callee, a function reference or a function pointer.
type Call struct {
	Dst    Value
	Callee Value
	Args   []Value

	// Line identifies the call site in reports.
	Line int
}

// Return leaves the enclosing function, optionally with Val.
type Return struct {
	Val Value
}

// Phi selects one of Edges depending on the incoming control-flow edge.
type Phi struct {
	Dst   Value
	Edges []Value
}

// Select yields True or False depending on Cond.
type Select struct {
	Dst   Value
	Cond  Value
	True  Value
	False Value
}

// MemCopy copies the memory Source points to into the memory Dest points
// to.
type MemCopy struct {
	Dest   Value
	Source Value
}

// Other is any instruction without an aliasing effect: branches,
// arithmetic, comparisons.
type Other struct {
	Opcode string
	Dst    Value
	Args   []Value
}

func (*Alloca) instr()         {}
func (*Store) instr()          {}
func (*Load) instr()           {}
func (*AddressCompute) instr() {}
func (*Cast) instr()           {}
func (*Call) instr()           {}
func (*Return) instr()         {}
func (*Phi) instr()            {}
func (*Select) instr()         {}
func (*MemCopy) instr()        {}
func (*Other) instr()          {}

func (*Alloca) Op() string         { return "alloca" }
func (*Store) Op() string          { return "store" }
func (*Load) Op() string           { return "load" }
func (*AddressCompute) Op() string { return "addr" }
func (*Cast) Op() string           { return "cast" }
func (*Call) Op() string           { return "call" }
func (*Return) Op() string         { return "ret" }
func (*Phi) Op() string            { return "phi" }
func (*Select) Op() string         { return "select" }
func (*MemCopy) Op() string        { return "memcpy" }
func (o *Other) Op() string        { return o.Opcode }

func (i *Alloca) Result() Value         { return i.Dst }
func (*Store) Result() Value            { return NoValue }
func (i *Load) Result() Value           { return i.Dst }
func (i *AddressCompute) Result() Value { return i.Dst }
func (i *Cast) Result() Value           { return i.Dst }
func (i *Call) Result() Value           { return i.Dst }
func (*Return) Result() Value           { return NoValue }
func (i *Phi) Result() Value            { return i.Dst }
func (i *Select) Result() Value         { return i.Dst }
func (*MemCopy) Result() Value          { return NoValue }
func (i *Other) Result() Value          { return i.Dst }

func (*Alloca) Operands(rands []Value) []Value { return rands }

func (i *Store) Operands(rands []Value) []Value {
	return append(rands, i.Val, i.Addr)
}

func (i *Load) Operands(rands []Value) []Value {
	return append(rands, i.Addr)
}

func (i *AddressCompute) Operands(rands []Value) []Value {
	return append(rands, i.Base)
}

func (i *Cast) Operands(rands []Value) []Value {
	return append(rands, i.X)
}

func (i *Call) Operands(rands []Value) []Value {
	rands = append(rands, i.Callee)
	return append(rands, i.Args...)
}

func (i *Return) Operands(rands []Value) []Value {
	if i.Val == NoValue {
		return rands
	}
	return append(rands, i.Val)
}

func (i *Phi) Operands(rands []Value) []Value {
	return append(rands, i.Edges...)
}

func (i *Select) Operands(rands []Value) []Value {
	return append(rands, i.Cond, i.True, i.False)
}

func (i *MemCopy) Operands(rands []Value) []Value {
	return append(rands, i.Dest, i.Source)
}

func (i *Other) Operands(rands []Value) []Value {
	return append(rands, i.Args...)
}
