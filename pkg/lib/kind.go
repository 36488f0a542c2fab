package lib

// Kind is a compact identifier for a component template; the save writer
// serializes its numeric value as a little-endian uint16.
type Kind uint16

// Bus widths supported by the component library beyond single bits.
var Widths = [4]int{8, 16, 32, 64}

// Kind constants for the grid component library.
// Organized by group:
//
//	1-bit:      constants, gates, IO, the flip-flop
//	Per width:  gates, IO, constants, mux, maker/splitter, arithmetic,
//	            comparisons, registers, for widths 8, 16, 32, 64
//	Custom:     a compiled sub-schematic instantiated as an opaque block
const (
	// === 1-bit components ===
	Off Kind = iota // constant 0 driver
	On              // constant 1 driver

	Not1
	And1
	Or1
	Xor1
	Xnor1

	Input1
	Output1

	BitMemory // 1-bit flip-flop

	// === 8-bit ===
	And8
	Or8
	Xor8
	Xnor8
	Not8
	Input8
	Output8
	Const8
	Mux8
	Maker8
	Splitter8
	Add8
	Mul8
	Shl8
	Shr8
	AshR8
	Neg8
	Equal8
	LessU8
	LessS8
	Reg8

	// === 16-bit ===
	And16
	Or16
	Xor16
	Xnor16
	Not16
	Input16
	Output16
	Const16
	Mux16
	Maker16
	Splitter16
	Add16
	Mul16
	Shl16
	Shr16
	AshR16
	Neg16
	Equal16
	LessU16
	LessS16
	Reg16

	// === 32-bit ===
	And32
	Or32
	Xor32
	Xnor32
	Not32
	Input32
	Output32
	Const32
	Mux32
	Maker32
	Splitter32
	Add32
	Mul32
	Shl32
	Shr32
	AshR32
	Neg32
	Equal32
	LessU32
	LessS32
	Reg32

	// === 64-bit ===
	And64
	Or64
	Xor64
	Xnor64
	Not64
	Input64
	Output64
	Const64
	Mux64
	Maker64
	Splitter64
	Add64
	Mul64
	Shl64
	Shr64
	AshR64
	Neg64
	Equal64
	LessU64
	LessS64
	Reg64

	Custom

	KindCount // sentinel
)

// widthBase maps a bus width to the first Kind of its per-width group.
func widthBase(width int) (Kind, bool) {
	switch width {
	case 8:
		return And8, true
	case 16:
		return And16, true
	case 32:
		return And32, true
	case 64:
		return And64, true
	}
	return 0, false
}

// Op is a per-width operation selector within a width group.
type Op int

// Per-width operation offsets, in group order.
const (
	OpAnd Op = iota
	OpOr
	OpXor
	OpXnor
	OpNot
	OpInput
	OpOutput
	OpConst
	OpMux
	OpMaker
	OpSplitter
	OpAdd
	OpMul
	OpShl
	OpShr
	OpAshR
	OpNeg
	OpEqual
	OpLessU
	OpLessS
	OpReg
)

// oneBit maps the operations that have a dedicated 1-bit kind.
var oneBit = map[Op]Kind{
	OpAnd:    And1,
	OpOr:     Or1,
	OpXor:    Xor1,
	OpXnor:   Xnor1,
	OpNot:    Not1,
	OpInput:  Input1,
	OpOutput: Output1,
	OpReg:    BitMemory,
}

// For returns the Kind implementing op at the given width. The (op, width)
// set is closed: ok is false when no such component exists (e.g. a 1-bit
// multiplier or a 128-bit anything).
func For(op Op, width int) (Kind, bool) {
	if width == 1 {
		k, ok := oneBit[op]
		return k, ok
	}
	base, ok := widthBase(width)
	if !ok {
		return 0, false
	}
	return base + Kind(op), true
}

// Width reports the bus width a kind operates on: 1 for single-bit
// components, the group width for per-width components, 0 for Custom.
func Width(k Kind) int {
	switch {
	case k < And8:
		return 1
	case k < And16:
		return 8
	case k < And32:
		return 16
	case k < And64:
		return 32
	case k < Custom:
		return 64
	}
	return 0
}

// IsInput reports whether the kind is a module input pin.
func IsInput(k Kind) bool {
	if k == Input1 {
		return true
	}
	if base, ok := widthBase(Width(k)); ok {
		return k == base+Kind(OpInput)
	}
	return false
}

// IsOutput reports whether the kind is a module output pin.
func IsOutput(k Kind) bool {
	if k == Output1 {
		return true
	}
	if base, ok := widthBase(Width(k)); ok {
		return k == base+Kind(OpOutput)
	}
	return false
}

// IsConst reports whether the kind drives a constant value.
func IsConst(k Kind) bool {
	if k == Off || k == On {
		return true
	}
	if base, ok := widthBase(Width(k)); ok {
		return k == base+Kind(OpConst)
	}
	return false
}

// isOp reports whether k is the given per-width operation at any width.
func isOp(k Kind, op Op) bool {
	base, ok := widthBase(Width(k))
	return ok && k == base+Kind(op)
}

// IsMaker reports whether the kind packs single wires into a bus.
func IsMaker(k Kind) bool { return isOp(k, OpMaker) }

// IsSplitter reports whether the kind splits a bus into narrower wires.
func IsSplitter(k Kind) bool { return isOp(k, OpSplitter) }

// String returns the template identifier for the kind.
func (k Kind) String() string {
	if k < KindCount {
		return Catalog[k].ID
	}
	return "Kind(?)"
}
