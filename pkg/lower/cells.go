package lower

import (
	"fmt"
	"strings"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

// arithWidth widens a bit count to an arithmetic bus width. The library
// has no 1-bit arithmetic; byte components subsume it (the low bits of a
// zero-extended result are exact).
func arithWidth(n int) (int, error) {
	size, err := loweredSize(n)
	if err != nil {
		return 0, err
	}
	if size < 8 {
		size = 8
	}
	return size, nil
}

func conn(cell *yosys.Cell, name string) []yosys.BitRef {
	return cell.Connections[name]
}

func need(cell *yosys.Cell, name string) ([]yosys.BitRef, error) {
	bits := cell.Connections[name]
	if len(bits) == 0 {
		return nil, fmt.Errorf("missing connection %s", name)
	}
	return bits, nil
}

// lowerCell dispatches one cell through the lowering table.
func (a *Adapter) lowerCell(name string, cell *yosys.Cell) error {
	switch cell.Type {
	case "$and", "$_AND_":
		return a.lowerBitwise(lib.OpAnd, cell)
	case "$or", "$_OR_":
		return a.lowerBitwise(lib.OpOr, cell)
	case "$xor", "$_XOR_":
		return a.lowerBitwise(lib.OpXor, cell)
	case "$xnor", "$_XNOR_":
		return a.lowerBitwise(lib.OpXnor, cell)
	case "$not", "$_NOT_":
		return a.lowerNot(cell)
	case "$mux", "$_MUX_":
		return a.lowerMux(cell)
	case "$pmux":
		return a.lowerPmux(cell)
	case "$dff", "$dffe", "$sdff", "$sdffe":
		return a.lowerDFF(cell, cell.Type)
	case "$_DFF_P_", "$_DFF_N_":
		return a.lowerSimpleDFF(cell, cell.Type == "$_DFF_P_")
	case "$eq":
		return a.lowerEq(cell, false)
	case "$ne":
		return a.lowerEq(cell, true)
	case "$reduce_or", "$reduce_bool":
		return a.lowerReduceOr(cell)
	case "$reduce_and":
		return a.lowerReduceAnd(cell)
	case "$logic_not":
		return a.lowerLogicNot(cell)
	case "$logic_and":
		return a.lowerLogicBin(lib.OpAnd, cell)
	case "$logic_or":
		return a.lowerLogicBin(lib.OpOr, cell)
	case "$add":
		return a.lowerAdd(cell)
	case "$sub":
		return a.lowerSub(cell)
	case "$mul":
		return a.lowerMul(cell)
	case "$shl", "$sshl":
		return a.lowerShift(lib.OpShl, cell)
	case "$shr":
		return a.lowerShift(lib.OpShr, cell)
	case "$sshr":
		return a.lowerSshr(cell)
	case "$neg":
		return a.lowerNeg(cell)
	case "$lt", "$gt", "$le", "$ge":
		return a.lowerCompare(cell, cell.Type)
	}
	if info, ok := a.customs[strings.TrimPrefix(cell.Type, "\\")]; ok {
		return a.lowerCustom(name, cell, info)
	}
	return ErrUnknownCell
}

// gate1 instantiates a 1-bit gate over the given input nets and returns
// its freshly minted output net.
func (a *Adapter) gate1(op lib.Op, ins ...netlist.NetID) netlist.NetID {
	k, _ := lib.For(op, 1)
	c := a.g.AddKind(k)
	if len(ins) == 1 {
		a.g.BindSink(c, "in", ins[0])
	} else {
		a.g.BindSink(c, "in0", ins[0])
		a.g.BindSink(c, "in1", ins[1])
	}
	out := a.g.Fresh()
	_ = a.g.BindSource(c, "out", out)
	return out
}

// zeroTarget ties an output bit that lowering produced no signal for to a
// fresh constant-0 driver.
func (a *Adapter) zeroTarget(b yosys.BitRef) error {
	tgt, ok := a.targetBit(b)
	if !ok {
		return nil
	}
	return a.aliasNet(tgt, a.constBit(false))
}

// driveOut connects a component output port to a target bit list, going
// through a splitter for buses. Target bits beyond size read as zero.
func (a *Adapter) driveOut(c *netlist.Component, port string, bits []yosys.BitRef, size int) error {
	if size == 1 {
		if tgt, ok := a.targetBit(bits[0]); ok {
			if err := a.g.BindSource(c, port, tgt); err != nil {
				return err
			}
		}
		for _, b := range bits[1:] {
			if err := a.zeroTarget(b); err != nil {
				return err
			}
		}
		return nil
	}
	out := a.g.Fresh()
	if err := a.g.BindSource(c, port, out); err != nil {
		return err
	}
	n := len(bits)
	if n > size {
		n = size
	}
	if err := a.unpack(out, bits[:n], size); err != nil {
		return err
	}
	for _, b := range bits[n:] {
		if err := a.zeroTarget(b); err != nil {
			return err
		}
	}
	return nil
}

// driveBool connects an existing 1-bit net to a target bit list; bits
// above the first read as zero.
func (a *Adapter) driveBool(bits []yosys.BitRef, n netlist.NetID) error {
	if tgt, ok := a.targetBit(bits[0]); ok {
		if err := a.aliasNet(tgt, n); err != nil {
			return err
		}
	}
	for _, b := range bits[1:] {
		if err := a.zeroTarget(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) lowerBitwise(op lib.Op, cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := loweredSize(max3(len(A), len(B), len(Y)))
	if err != nil {
		return err
	}
	k, _ := lib.For(op, size)
	c := a.g.AddKind(k)
	if size == 1 {
		a.g.BindSink(c, "in0", a.inputBit(A[0]))
		a.g.BindSink(c, "in1", a.inputBit(B[0]))
	} else {
		an, err := a.pack(a.inputBits(A), size)
		if err != nil {
			return err
		}
		bn, err := a.pack(a.inputBits(B), size)
		if err != nil {
			return err
		}
		a.g.BindSink(c, "in0", an)
		a.g.BindSink(c, "in1", bn)
	}
	return a.driveOut(c, "out", Y, size)
}

func (a *Adapter) lowerNot(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := loweredSize(max3(len(A), len(Y), 1))
	if err != nil {
		return err
	}
	k, _ := lib.For(lib.OpNot, size)
	c := a.g.AddKind(k)
	if size == 1 {
		a.g.BindSink(c, "in", a.inputBit(A[0]))
	} else {
		an, err := a.pack(a.inputBits(A), size)
		if err != nil {
			return err
		}
		a.g.BindSink(c, "in", an)
	}
	return a.driveOut(c, "out", Y, size)
}

// mux1 builds a 1-bit multiplexer out of gates: (a & !s) | (b & s), with
// constant operands short-circuiting their term.
func (a *Adapter) mux1(aN, bN, sN netlist.NetID) netlist.NetID {
	var term1, term2 netlist.NetID

	if v, ok := a.constOf(aN); ok {
		if v != 0 {
			term1 = a.gate1(lib.OpNot, sN)
		}
	} else {
		term1 = a.gate1(lib.OpAnd, aN, a.gate1(lib.OpNot, sN))
	}
	if v, ok := a.constOf(bN); ok {
		if v != 0 {
			term2 = sN
		}
	} else {
		term2 = a.gate1(lib.OpAnd, bN, sN)
	}

	switch {
	case term1 == "" && term2 == "":
		return a.constBit(false)
	case term1 == "":
		return term2
	case term2 == "":
		return term1
	}
	return a.gate1(lib.OpOr, term1, term2)
}

// muxAt selects between two size-wide nets: sel=0 picks old, sel=1 new.
func (a *Adapter) muxAt(size int, oldN, newN, selN netlist.NetID) netlist.NetID {
	if size == 1 {
		return a.mux1(oldN, newN, selN)
	}
	k, _ := lib.For(lib.OpMux, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", oldN)
	a.g.BindSink(c, "b", newN)
	a.g.BindSink(c, "s", selN)
	out := a.g.Fresh()
	_ = a.g.BindSource(c, "out", out)
	return out
}

func (a *Adapter) lowerMux(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	S, err := need(cell, "S")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := loweredSize(max3(len(A), len(B), len(Y)))
	if err != nil {
		return err
	}
	sN := a.inputBit(S[0])
	if size == 1 {
		return a.driveBool(Y, a.mux1(a.inputBit(A[0]), a.inputBit(B[0]), sN))
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return err
	}
	out := a.muxAt(size, an, bn, sN)
	n := len(Y)
	if n > size {
		n = size
	}
	if err := a.unpack(out, Y[:n], size); err != nil {
		return err
	}
	for _, b := range Y[n:] {
		if err := a.zeroTarget(b); err != nil {
			return err
		}
	}
	return nil
}

// lowerPmux chains one binary mux per select bit; A seeds the chain and
// each asserted S bit replaces the running value with its slot of B.
func (a *Adapter) lowerPmux(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	S, err := need(cell, "S")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	width := len(A)
	size, err := loweredSize(width)
	if err != nil {
		return err
	}
	cur, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	for i := range S {
		lo := i * width
		hi := lo + width
		if hi > len(B) {
			hi = len(B)
		}
		slot, err := a.packEmptyOK(a.inputBits(B[lo:hi]), size)
		if err != nil {
			return err
		}
		cur = a.muxAt(size, cur, slot, a.inputBit(S[i]))
	}
	if size == 1 {
		return a.driveBool(Y, cur)
	}
	n := len(Y)
	if n > size {
		n = size
	}
	if err := a.unpack(cur, Y[:n], size); err != nil {
		return err
	}
	for _, b := range Y[n:] {
		if err := a.zeroTarget(b); err != nil {
			return err
		}
	}
	return nil
}

// lowerDFF handles the synchronous cell family. Every variant reduces to
// a register (or the 1-bit flip-flop) whose value input runs through the
// muxes the variant calls for.
func (a *Adapter) lowerDFF(cell *yosys.Cell, typ string) error {
	D, err := need(cell, "D")
	if err != nil {
		return err
	}
	Q, err := need(cell, "Q")
	if err != nil {
		return err
	}
	CLK, err := need(cell, "CLK")
	if err != nil {
		return err
	}
	size, err := loweredSize(len(D))
	if err != nil {
		return err
	}

	clk := a.inputBit(CLK[0])
	if !cell.Parameters.Bool("CLK_POLARITY", true) {
		clk = a.gate1(lib.OpNot, clk)
	}

	// The register and its output net come first: enable variants feed
	// the old value back through a mux.
	k, _ := lib.For(lib.OpReg, size)
	reg := a.g.AddKind(k)
	var qNet netlist.NetID
	if size == 1 {
		if tgt, ok := a.targetBit(Q[0]); ok {
			qNet = tgt
		} else {
			qNet = a.g.Fresh()
		}
		if err := a.g.BindSource(reg, "out", qNet); err != nil {
			return err
		}
	} else {
		qNet = a.g.Fresh()
		if err := a.g.BindSource(reg, "out", qNet); err != nil {
			return err
		}
		n := len(Q)
		if n > size {
			n = size
		}
		if err := a.unpack(qNet, Q[:n], size); err != nil {
			return err
		}
	}

	var dNet netlist.NetID
	if size == 1 {
		dNet = a.inputBit(D[0])
	} else {
		dNet, err = a.pack(a.inputBits(D), size)
		if err != nil {
			return err
		}
	}

	val := dNet
	switch typ {
	case "$dff":
	case "$dffe":
		en := a.inputBit(conn(cell, "EN")[0])
		if !cell.Parameters.Bool("EN_POLARITY", true) {
			en = a.gate1(lib.OpNot, en)
		}
		val = a.muxAt(size, qNet, dNet, en)
	case "$sdff":
		srst := a.inputBit(conn(cell, "SRST")[0])
		if !cell.Parameters.Bool("SRST_POLARITY", true) {
			srst = a.gate1(lib.OpNot, srst)
		}
		rstVal := a.constBus(cell.Parameters.Uint64("SRST_VALUE", 0), size)
		val = a.muxAt(size, dNet, rstVal, srst)
	case "$sdffe":
		en := a.inputBit(conn(cell, "EN")[0])
		if !cell.Parameters.Bool("EN_POLARITY", true) {
			en = a.gate1(lib.OpNot, en)
		}
		srst := a.inputBit(conn(cell, "SRST")[0])
		if !cell.Parameters.Bool("SRST_POLARITY", true) {
			srst = a.gate1(lib.OpNot, srst)
		}
		inner := a.muxAt(size, qNet, dNet, en)
		rstVal := a.constBus(cell.Parameters.Uint64("SRST_VALUE", 0), size)
		val = a.muxAt(size, inner, rstVal, srst)
	}

	a.g.BindSink(reg, "save", clk)
	a.g.BindSink(reg, "value", val)
	if size > 1 {
		a.g.BindSink(reg, "load", a.constBit(true))
	}
	return nil
}

// lowerSimpleDFF handles the techmapped single-bit flip-flop cells.
func (a *Adapter) lowerSimpleDFF(cell *yosys.Cell, posedge bool) error {
	D, err := need(cell, "D")
	if err != nil {
		return err
	}
	Q, err := need(cell, "Q")
	if err != nil {
		return err
	}
	C, err := need(cell, "C")
	if err != nil {
		return err
	}
	clk := a.inputBit(C[0])
	if !posedge {
		clk = a.gate1(lib.OpNot, clk)
	}
	ff := a.g.AddKind(lib.BitMemory)
	a.g.BindSink(ff, "save", clk)
	a.g.BindSink(ff, "value", a.inputBit(D[0]))
	return a.driveOut(ff, "out", Q, 1)
}

// equalNet builds the 1-bit equality of two operand bit lists.
func (a *Adapter) equalNet(A, B []yosys.BitRef) (netlist.NetID, error) {
	size, err := loweredSize(max3(len(A), len(B), 1))
	if err != nil {
		return "", err
	}
	if size == 1 {
		return a.gate1(lib.OpXnor, a.inputBit(A[0]), a.inputBit(B[0])), nil
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return "", err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return "", err
	}
	k, _ := lib.For(lib.OpEqual, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", bn)
	out := a.g.Fresh()
	_ = a.g.BindSource(c, "out", out)
	return out, nil
}

func (a *Adapter) lowerEq(cell *yosys.Cell, negate bool) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	eq, err := a.equalNet(A, B)
	if err != nil {
		return err
	}
	if negate {
		eq = a.gate1(lib.OpNot, eq)
	}
	return a.driveBool(Y, eq)
}

// boolNet reduces an operand to a 1-bit non-zero flag.
func (a *Adapter) boolNet(A []yosys.BitRef) (netlist.NetID, error) {
	if len(A) == 1 {
		return a.inputBit(A[0]), nil
	}
	size, err := loweredSize(len(A))
	if err != nil {
		return "", err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return "", err
	}
	k, _ := lib.For(lib.OpEqual, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", a.constBus(0, size))
	isZero := a.g.Fresh()
	_ = a.g.BindSource(c, "out", isZero)
	return a.gate1(lib.OpNot, isZero), nil
}

func (a *Adapter) lowerReduceOr(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	n, err := a.boolNet(A)
	if err != nil {
		return err
	}
	return a.driveBool(Y, n)
}

func (a *Adapter) lowerReduceAnd(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	if len(A) == 1 {
		return a.driveBool(Y, a.inputBit(A[0]))
	}
	size, err := loweredSize(len(A))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	mask := ^uint64(0)
	if len(A) < 64 {
		mask = (uint64(1) << uint(len(A))) - 1
	}
	k, _ := lib.For(lib.OpEqual, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", a.constBus(mask, size))
	out := a.g.Fresh()
	_ = a.g.BindSource(c, "out", out)
	return a.driveBool(Y, out)
}

func (a *Adapter) lowerLogicNot(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	if len(A) == 1 {
		return a.driveBool(Y, a.gate1(lib.OpNot, a.inputBit(A[0])))
	}
	size, err := loweredSize(len(A))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	k, _ := lib.For(lib.OpEqual, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", a.constBus(0, size))
	out := a.g.Fresh()
	_ = a.g.BindSource(c, "out", out)
	return a.driveBool(Y, out)
}

func (a *Adapter) lowerLogicBin(op lib.Op, cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	an, err := a.boolNet(A)
	if err != nil {
		return err
	}
	bn, err := a.boolNet(B)
	if err != nil {
		return err
	}
	return a.driveBool(Y, a.gate1(op, an, bn))
}

func (a *Adapter) lowerAdd(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(B), 1))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return err
	}
	_, err = a.addNets(an, bn, a.constBit(false), size, Y)
	return err
}

// addNets instantiates an adder over two packed operands and drives the
// target bits: sum covers bits [0, size), carry_out bit size, anything
// above reads zero.
func (a *Adapter) addNets(an, bn, cin netlist.NetID, size int, Y []yosys.BitRef) (*netlist.Component, error) {
	k, _ := lib.For(lib.OpAdd, size)
	add := a.g.AddKind(k)
	a.g.BindSink(add, "cin", cin)
	a.g.BindSink(add, "a", an)
	a.g.BindSink(add, "b", bn)

	n := len(Y)
	if n > size {
		n = size
	}
	sum := a.g.Fresh()
	if err := a.g.BindSource(add, "sum", sum); err != nil {
		return nil, err
	}
	if err := a.unpack(sum, Y[:n], size); err != nil {
		return nil, err
	}
	if len(Y) > size {
		if tgt, ok := a.targetBit(Y[size]); ok {
			if err := a.g.BindSource(add, "cout", tgt); err != nil {
				return nil, err
			}
		}
		for _, b := range Y[size+1:] {
			if err := a.zeroTarget(b); err != nil {
				return nil, err
			}
		}
	}
	return add, nil
}

func (a *Adapter) lowerSub(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(B), 1))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return err
	}
	nk, _ := lib.For(lib.OpNeg, size)
	neg := a.g.AddKind(nk)
	a.g.BindSink(neg, "in", bn)
	negB := a.g.Fresh()
	if err := a.g.BindSource(neg, "out", negB); err != nil {
		return err
	}
	_, err = a.addNets(an, negB, a.constBit(false), size, Y)
	return err
}

func (a *Adapter) lowerMul(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(B), len(Y)))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return err
	}
	k, _ := lib.For(lib.OpMul, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", bn)
	return a.driveOut(c, "out", Y, size)
}

// shiftAmount packs the synthesizer's B operand onto the 8-bit shift port.
func (a *Adapter) shiftAmount(B []yosys.BitRef) (netlist.NetID, error) {
	if len(B) > 8 {
		B = B[:8]
	}
	return a.pack(a.inputBits(B), 8)
}

func (a *Adapter) lowerShift(op lib.Op, cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(Y), 1))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	shift, err := a.shiftAmount(B)
	if err != nil {
		return err
	}
	k, _ := lib.For(op, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "shift", shift)
	return a.driveOut(c, "out", Y, size)
}

// lowerSshr builds an arithmetic right shift out of a logical one: shift
// an all-ones constant by the same amount, invert it into a high-bit
// mask, gate the mask on the operand's sign bit, and OR it into the
// logical result.
func (a *Adapter) lowerSshr(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(Y), 1))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	shift, err := a.shiftAmount(B)
	if err != nil {
		return err
	}

	shrK, _ := lib.For(lib.OpShr, size)
	logical := a.g.AddKind(shrK)
	a.g.BindSink(logical, "a", an)
	a.g.BindSink(logical, "shift", shift)
	logicalOut := a.g.Fresh()
	if err := a.g.BindSource(logical, "out", logicalOut); err != nil {
		return err
	}

	ones := ^uint64(0)
	if size < 64 {
		ones = (uint64(1) << uint(size)) - 1
	}
	onesShr := a.g.AddKind(shrK)
	a.g.BindSink(onesShr, "a", a.constBus(ones, size))
	a.g.BindSink(onesShr, "shift", shift)
	shifted := a.g.Fresh()
	if err := a.g.BindSource(onesShr, "out", shifted); err != nil {
		return err
	}
	notK, _ := lib.For(lib.OpNot, size)
	inv := a.g.AddKind(notK)
	a.g.BindSink(inv, "in", shifted)
	mask := a.g.Fresh()
	if err := a.g.BindSource(inv, "out", mask); err != nil {
		return err
	}

	sign := a.inputBit(A[len(A)-1])
	masked := a.muxAt(size, a.constBus(0, size), mask, sign)

	orK, _ := lib.For(lib.OpOr, size)
	merge := a.g.AddKind(orK)
	a.g.BindSink(merge, "in0", logicalOut)
	a.g.BindSink(merge, "in1", masked)
	return a.driveOut(merge, "out", Y, size)
}

func (a *Adapter) lowerNeg(cell *yosys.Cell) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(Y), 1))
	if err != nil {
		return err
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	k, _ := lib.For(lib.OpNeg, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "in", an)
	return a.driveOut(c, "out", Y, size)
}

// lowerCompare maps the four ordering cells onto the two less-than
// templates: swap operands for $gt/$le, invert the result for $ge/$le.
func (a *Adapter) lowerCompare(cell *yosys.Cell, typ string) error {
	A, err := need(cell, "A")
	if err != nil {
		return err
	}
	B, err := need(cell, "B")
	if err != nil {
		return err
	}
	Y, err := need(cell, "Y")
	if err != nil {
		return err
	}
	size, err := arithWidth(max3(len(A), len(B), 1))
	if err != nil {
		return err
	}
	op := lib.OpLessU
	if cell.Parameters.Bool("A_SIGNED", false) {
		op = lib.OpLessS
	}
	an, err := a.pack(a.inputBits(A), size)
	if err != nil {
		return err
	}
	bn, err := a.pack(a.inputBits(B), size)
	if err != nil {
		return err
	}
	if typ == "$gt" || typ == "$le" {
		an, bn = bn, an
	}
	k, _ := lib.For(op, size)
	c := a.g.AddKind(k)
	a.g.BindSink(c, "a", an)
	a.g.BindSink(c, "b", bn)
	out := a.g.Fresh()
	if err := a.g.BindSource(c, "out", out); err != nil {
		return err
	}
	if typ == "$ge" || typ == "$le" {
		out = a.gate1(lib.OpNot, out)
	}
	return a.driveBool(Y, out)
}

// lowerCustom instantiates a compiled submodule as an opaque block,
// carrying its 63-bit identifier and per-port widths and positions.
func (a *Adapter) lowerCustom(name string, cell *yosys.Cell, info *CustomInfo) error {
	c := a.g.AddKind(lib.Custom)
	c.Label = name
	c.CustomID = info.ID
	c.CustomW, c.CustomH = info.GridSize()
	c.PortWidths = make(map[string]int, len(info.Ports))
	c.PortPos = make(map[string]lib.Point, len(info.Ports))

	for i := range info.Ports {
		p := &info.Ports[i]
		c.PortWidths[p.Name] = p.Width
		c.PortPos[p.Name] = p.GridPos()
		bits := conn(cell, p.Name)
		if len(bits) == 0 {
			continue
		}
		if p.Dir == lib.In {
			net, err := a.pack(a.inputBits(bits), p.Width)
			if err != nil {
				return err
			}
			a.g.BindSink(c, p.Name, net)
		} else {
			if err := a.driveOut(c, p.Name, bits, p.Width); err != nil {
				return err
			}
		}
	}
	return nil
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
