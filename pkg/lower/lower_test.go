package lower

import (
	"errors"
	"testing"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

func bits(nums ...int) []yosys.BitRef {
	out := make([]yosys.BitRef, len(nums))
	for i, n := range nums {
		out[i] = yosys.BitRef{Num: n}
	}
	return out
}

func lit(s string) yosys.BitRef { return yosys.BitRef{Lit: s} }

func bitRange(lo, n int) []yosys.BitRef {
	out := make([]yosys.BitRef, n)
	for i := range out {
		out[i] = yosys.BitRef{Num: lo + i}
	}
	return out
}

func countKind(g *netlist.Graph, k lib.Kind) int {
	n := 0
	for _, c := range g.Components {
		if c.Kind() == k {
			n++
		}
	}
	return n
}

func mustRun(t *testing.T, mod *yosys.Module) *netlist.Graph {
	t.Helper()
	g, err := Run(mod, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	return g
}

// TestBuffer lowers `assign y = a` to exactly one input and one output
// sharing a net.
func TestBuffer(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bits(2)},
			"y": {Direction: "output", Bits: bits(2)},
		},
		Cells: map[string]*yosys.Cell{},
	})
	if len(g.Components) != 2 {
		t.Fatalf("%d components, want 2", len(g.Components))
	}
	n := g.Net("2")
	if n.Source == nil || len(n.Sinks) != 1 {
		t.Fatalf("net 2: source=%v sinks=%d", n.Source, len(n.Sinks))
	}
}

// TestAndGate lowers a 1-bit AND to four components on three nets.
func TestAndGate(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bits(2)},
			"b": {Direction: "input", Bits: bits(3)},
			"y": {Direction: "output", Bits: bits(4)},
		},
		Cells: map[string]*yosys.Cell{
			"and0": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": bits(2), "B": bits(3), "Y": bits(4),
			}},
		},
	})
	if len(g.Components) != 4 {
		t.Fatalf("%d components, want 4", len(g.Components))
	}
	if countKind(g, lib.And1) != 1 || countKind(g, lib.Input1) != 2 || countKind(g, lib.Output1) != 1 {
		t.Fatalf("wrong component mix")
	}
}

// TestByteAnd checks the splitter round-trip erasure: an 8-bit AND between
// two 8-bit ports leaves no makers or splitters behind.
func TestByteAnd(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"b": {Direction: "input", Bits: bitRange(10, 8)},
			"y": {Direction: "output", Bits: bitRange(18, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"and0": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bitRange(18, 8),
			}},
		},
	})
	if len(g.Components) != 4 {
		t.Fatalf("%d components, want 4 (Input_8 x2, AND_8, Output_8)", len(g.Components))
	}
	if countKind(g, lib.And8) != 1 || countKind(g, lib.Input8) != 2 || countKind(g, lib.Output8) != 1 {
		t.Fatalf("wrong component mix")
	}
	if countKind(g, lib.Splitter8) != 0 || countKind(g, lib.Maker8) != 0 {
		t.Fatalf("splitters or makers survived the round trip")
	}
}

// TestMux1 checks the gate decomposition of a single-bit multiplexer.
func TestMux1(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bits(2)},
			"b": {Direction: "input", Bits: bits(3)},
			"s": {Direction: "input", Bits: bits(4)},
			"y": {Direction: "output", Bits: bits(5)},
		},
		Cells: map[string]*yosys.Cell{
			"mux0": {Type: "$mux", Connections: map[string][]yosys.BitRef{
				"A": bits(2), "B": bits(3), "S": bits(4), "Y": bits(5),
			}},
		},
	})
	if countKind(g, lib.Not1) != 1 || countKind(g, lib.And1) != 2 || countKind(g, lib.Or1) != 1 {
		t.Fatalf("mux decomposition wrong: NOT=%d AND=%d OR=%d",
			countKind(g, lib.Not1), countKind(g, lib.And1), countKind(g, lib.Or1))
	}
	if len(g.Components) != 8 {
		t.Fatalf("%d components, want 8", len(g.Components))
	}
}

// TestMux1ConstantA short-circuits the constant-0 select arm.
func TestMux1ConstantA(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"b": {Direction: "input", Bits: bits(2)},
			"s": {Direction: "input", Bits: bits(3)},
			"y": {Direction: "output", Bits: bits(4)},
		},
		Cells: map[string]*yosys.Cell{
			"mux0": {Type: "$mux", Connections: map[string][]yosys.BitRef{
				"A": []yosys.BitRef{lit("0")}, "B": bits(2), "S": bits(3), "Y": bits(4),
			}},
		},
	})
	// y = b & s: one AND, no NOT, no OR, and the dead constant is gone.
	if countKind(g, lib.And1) != 1 || countKind(g, lib.Not1) != 0 || countKind(g, lib.Or1) != 0 {
		t.Fatalf("constant arm not short-circuited")
	}
	if countKind(g, lib.Off) != 0 {
		t.Fatalf("dead constant driver survived cleanup")
	}
}

// TestDFF1 lowers a single-bit flip-flop per the register mapping.
func TestDFF1(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"clk": {Direction: "input", Bits: bits(2)},
			"d":   {Direction: "input", Bits: bits(3)},
			"q":   {Direction: "output", Bits: bits(4)},
		},
		Cells: map[string]*yosys.Cell{
			"ff0": {Type: "$dff", Connections: map[string][]yosys.BitRef{
				"CLK": bits(2), "D": bits(3), "Q": bits(4),
			}},
		},
	})
	if countKind(g, lib.BitMemory) != 1 {
		t.Fatalf("no BitMemory")
	}
	for _, c := range g.Components {
		if c.Kind() != lib.BitMemory {
			continue
		}
		if c.Conns["save"] != "2" || c.Conns["value"] != "3" || c.Conns["out"] != "4" {
			t.Fatalf("flip-flop wiring wrong: %v", c.Conns)
		}
	}
	if len(g.Components) != 4 {
		t.Fatalf("%d components, want 4", len(g.Components))
	}
}

// TestDFF8 ties the wide register's load input to a constant-1 driver.
func TestDFF8(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"clk": {Direction: "input", Bits: bits(2)},
			"d":   {Direction: "input", Bits: bitRange(3, 8)},
			"q":   {Direction: "output", Bits: bitRange(11, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"ff0": {Type: "$dff", Connections: map[string][]yosys.BitRef{
				"CLK": bits(2), "D": bitRange(3, 8), "Q": bitRange(11, 8),
			}},
		},
	})
	if countKind(g, lib.Reg8) != 1 || countKind(g, lib.On) != 1 {
		t.Fatalf("Reg8=%d On=%d", countKind(g, lib.Reg8), countKind(g, lib.On))
	}
	// 5 components: clk input, d input, register, On, q output.
	if len(g.Components) != 5 {
		t.Fatalf("%d components, want 5", len(g.Components))
	}
}

// TestDFFEFeedsBack checks the enable variant muxes the old value back in.
func TestDFFEFeedsBack(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"clk": {Direction: "input", Bits: bits(2)},
			"en":  {Direction: "input", Bits: bits(3)},
			"d":   {Direction: "input", Bits: bitRange(4, 8)},
			"q":   {Direction: "output", Bits: bitRange(12, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"ff0": {Type: "$dffe", Connections: map[string][]yosys.BitRef{
				"CLK": bits(2), "EN": bits(3), "D": bitRange(4, 8), "Q": bitRange(12, 8),
			}},
		},
	})
	if countKind(g, lib.Mux8) != 1 {
		t.Fatalf("Mux8=%d, want 1", countKind(g, lib.Mux8))
	}
	var reg, mux *netlist.Component
	for _, c := range g.Components {
		switch c.Kind() {
		case lib.Reg8:
			reg = c
		case lib.Mux8:
			mux = c
		}
	}
	if reg == nil || mux == nil {
		t.Fatal("register or mux missing")
	}
	if mux.Conns["a"] != reg.Conns["out"] {
		t.Fatalf("mux old-value arm not fed from register output")
	}
	if reg.Conns["value"] != mux.Conns["out"] {
		t.Fatalf("register value not fed from mux output")
	}
}

// TestAdder checks the 8-bit adder lowering with a 9-bit result: sum bits
// through a splitter, the ninth bit straight off carry_out.
func TestAdder(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"b": {Direction: "input", Bits: bitRange(10, 8)},
			"y": {Direction: "output", Bits: bitRange(18, 9)},
		},
		Cells: map[string]*yosys.Cell{
			"add0": {Type: "$add", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bitRange(18, 9),
			}},
		},
	})
	var add *netlist.Component
	for _, c := range g.Components {
		if c.Kind() == lib.Add8 {
			add = c
		}
	}
	if add == nil {
		t.Fatal("no Add_8")
	}
	if add.Conns["cout"] != "26" {
		t.Fatalf("carry_out drives %s, want net 26", add.Conns["cout"])
	}
	cin := g.Net(add.Conns["cin"])
	if cin.Source == nil {
		t.Fatal("carry_in undriven")
	}
	if src := g.Component(cin.Source.Component); src.Kind() != lib.Off {
		t.Fatalf("carry_in tied to %s, want Off", src.Kind())
	}
}

// TestSub lowers subtraction as negate-then-add.
func TestSub(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"b": {Direction: "input", Bits: bitRange(10, 8)},
			"y": {Direction: "output", Bits: bitRange(18, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"sub0": {Type: "$sub", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bitRange(18, 8),
			}},
		},
	})
	if countKind(g, lib.Neg8) != 1 || countKind(g, lib.Add8) != 1 {
		t.Fatalf("Neg8=%d Add8=%d", countKind(g, lib.Neg8), countKind(g, lib.Add8))
	}
}

// TestNotEqual lowers $ne as Equal followed by NOT.
func TestNotEqual(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"b": {Direction: "input", Bits: bitRange(10, 8)},
			"y": {Direction: "output", Bits: bits(18)},
		},
		Cells: map[string]*yosys.Cell{
			"ne0": {Type: "$ne", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bits(18),
			}},
		},
	})
	if countKind(g, lib.Equal8) != 1 || countKind(g, lib.Not1) != 1 {
		t.Fatalf("Equal8=%d Not1=%d", countKind(g, lib.Equal8), countKind(g, lib.Not1))
	}
}

// TestCompareVariants pins the swap and invert rules onto the less-than
// templates.
func TestCompareVariants(t *testing.T) {
	for _, tc := range []struct {
		typ     string
		signed  bool
		kind    lib.Kind
		wantNot int
	}{
		{"$lt", false, lib.LessU8, 0},
		{"$gt", false, lib.LessU8, 0},
		{"$le", false, lib.LessU8, 1},
		{"$ge", false, lib.LessU8, 1},
		{"$lt", true, lib.LessS8, 0},
	} {
		params := yosys.Params{}
		if tc.signed {
			params = yosys.Params{"A_SIGNED": []byte("1")}
		}
		g := mustRun(t, &yosys.Module{
			Ports: map[string]*yosys.Port{
				"a": {Direction: "input", Bits: bitRange(2, 8)},
				"b": {Direction: "input", Bits: bitRange(10, 8)},
				"y": {Direction: "output", Bits: bits(18)},
			},
			Cells: map[string]*yosys.Cell{
				"cmp0": {Type: tc.typ, Parameters: params, Connections: map[string][]yosys.BitRef{
					"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bits(18),
				}},
			},
		})
		if countKind(g, tc.kind) != 1 {
			t.Errorf("%s: no %s", tc.typ, tc.kind)
		}
		if countKind(g, lib.Not1) != tc.wantNot {
			t.Errorf("%s: NOT count %d, want %d", tc.typ, countKind(g, lib.Not1), tc.wantNot)
		}
	}
}

// TestCompareSwap verifies $gt actually swaps the operands: its less-than
// template reads module port b on the a pin.
func TestCompareSwap(t *testing.T) {
	driverLabel := func(typ, pin string) string {
		g := mustRun(t, &yosys.Module{
			Ports: map[string]*yosys.Port{
				"a": {Direction: "input", Bits: bitRange(2, 8)},
				"b": {Direction: "input", Bits: bitRange(10, 8)},
				"y": {Direction: "output", Bits: bits(18)},
			},
			Cells: map[string]*yosys.Cell{
				"cmp0": {Type: typ, Connections: map[string][]yosys.BitRef{
					"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bits(18),
				}},
			},
		})
		for _, c := range g.Components {
			if c.Kind() != lib.LessU8 {
				continue
			}
			n := g.Net(c.Conns[pin])
			if n.Source == nil {
				t.Fatalf("%s: %s pin undriven", typ, pin)
			}
			return g.Component(n.Source.Component).Label
		}
		t.Fatalf("%s: no LessU8", typ)
		return ""
	}
	if got := driverLabel("$lt", "a"); got != "a" {
		t.Fatalf("$lt a pin fed by %q", got)
	}
	if got := driverLabel("$gt", "a"); got != "b" {
		t.Fatalf("$gt a pin fed by %q, want the swapped operand", got)
	}
}

// TestSshr builds the arithmetic-shift mask circuit.
func TestSshr(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"n": {Direction: "input", Bits: bitRange(10, 3)},
			"y": {Direction: "output", Bits: bitRange(13, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"shr0": {Type: "$sshr", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 3), "Y": bitRange(13, 8),
			}},
		},
	})
	if countKind(g, lib.Shr8) != 2 {
		t.Fatalf("SHR_8=%d, want 2 (logical + mask)", countKind(g, lib.Shr8))
	}
	if countKind(g, lib.Not8) != 1 || countKind(g, lib.Or8) != 1 || countKind(g, lib.Mux8) != 1 {
		t.Fatalf("mask circuit incomplete: NOT=%d OR=%d MUX=%d",
			countKind(g, lib.Not8), countKind(g, lib.Or8), countKind(g, lib.Mux8))
	}
}

// TestPmux chains one mux per select bit.
func TestPmux(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a":  {Direction: "input", Bits: bitRange(2, 8)},
			"b0": {Direction: "input", Bits: bitRange(10, 8)},
			"b1": {Direction: "input", Bits: bitRange(18, 8)},
			"s":  {Direction: "input", Bits: bitRange(26, 2)},
			"y":  {Direction: "output", Bits: bitRange(28, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"pmux0": {Type: "$pmux", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8),
				"B": append(bitRange(10, 8), bitRange(18, 8)...),
				"S": bitRange(26, 2),
				"Y": bitRange(28, 8),
			}},
		},
	})
	if countKind(g, lib.Mux8) != 2 {
		t.Fatalf("Mux8=%d, want 2", countKind(g, lib.Mux8))
	}
}

// TestZeroFold removes an AND gate with a literal-zero input and repairs
// the output net with a constant driver.
func TestZeroFold(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"b": {Direction: "input", Bits: bits(2)},
			"y": {Direction: "output", Bits: bits(3)},
		},
		Cells: map[string]*yosys.Cell{
			"and0": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": []yosys.BitRef{lit("0")}, "B": bits(2), "Y": bits(3),
			}},
		},
	})
	if countKind(g, lib.And1) != 0 {
		t.Fatal("zero-input AND survived")
	}
	n := g.Net("3")
	if n.Source == nil {
		t.Fatal("folded output net left undriven")
	}
	if src := g.Component(n.Source.Component); src.Kind() != lib.Off {
		t.Fatalf("folded net driven by %s, want Off", src.Kind())
	}
}

// TestZeroFoldPropagates folds through a chain of AND gates: the second
// pass catches the gate exposed by the first.
func TestZeroFoldPropagates(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"b": {Direction: "input", Bits: bits(2)},
			"c": {Direction: "input", Bits: bits(3)},
			"y": {Direction: "output", Bits: bits(5)},
		},
		Cells: map[string]*yosys.Cell{
			"and0": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": []yosys.BitRef{lit("0")}, "B": bits(2), "Y": bits(4),
			}},
			"and1": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": bits(4), "B": bits(3), "Y": bits(5),
			}},
		},
	})
	if countKind(g, lib.And1) != 0 {
		t.Fatalf("AND_1=%d, want 0 after propagation", countKind(g, lib.And1))
	}
}

// TestMakerSplitterMerge: when the consumer packs bits before the
// producer's splitter exists, the post-pass merge erases the round trip.
func TestMakerSplitterMerge(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"b": {Direction: "input", Bits: bitRange(10, 8)},
			"y": {Direction: "output", Bits: bitRange(26, 8)},
		},
		Cells: map[string]*yosys.Cell{
			// Sorted cell order processes the consumer first: its pack
			// sees undriven bits and must build a maker.
			"a_consume": {Type: "$xor", Connections: map[string][]yosys.BitRef{
				"A": bitRange(18, 8), "B": bitRange(10, 8), "Y": bitRange(26, 8),
			}},
			"b_produce": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 8), "B": bitRange(10, 8), "Y": bitRange(18, 8),
			}},
		},
	})
	if countKind(g, lib.Maker8) != 0 || countKind(g, lib.Splitter8) != 0 {
		t.Fatalf("Maker8=%d Splitter8=%d, want 0/0 after merge",
			countKind(g, lib.Maker8), countKind(g, lib.Splitter8))
	}
}

// TestWidePack exercises the hierarchical 8-bit-chunk tree for a 16-bit
// bus built from loose bits.
func TestWidePack(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 16)},
			"b": {Direction: "input", Bits: bitRange(18, 16)},
			"y": {Direction: "output", Bits: bitRange(34, 16)},
		},
		Cells: map[string]*yosys.Cell{
			"and0": {Type: "$and", Connections: map[string][]yosys.BitRef{
				"A": bitRange(2, 16), "B": bitRange(18, 16), "Y": bitRange(34, 16),
			}},
		},
	})
	if countKind(g, lib.And16) != 1 {
		t.Fatal("no AND_16")
	}
	// The 16-bit ports and the 16-bit gate line up: hierarchical
	// unpack/pack cancels completely.
	if countKind(g, lib.Splitter16) != 0 || countKind(g, lib.Maker16) != 0 ||
		countKind(g, lib.Splitter8) != 0 || countKind(g, lib.Maker8) != 0 {
		t.Fatal("hierarchical round trip not erased")
	}
}

// TestUnknownCell aborts the compile.
func TestUnknownCell(t *testing.T) {
	_, err := Run(&yosys.Module{
		Ports: map[string]*yosys.Port{},
		Cells: map[string]*yosys.Cell{
			"weird": {Type: "$frobnicate", Connections: map[string][]yosys.BitRef{}},
		},
	}, nil)
	if !errors.Is(err, ErrUnknownCell) {
		t.Fatalf("got %v, want ErrUnknownCell", err)
	}
}

// TestTooWide rejects buses beyond 64 bits.
func TestTooWide(t *testing.T) {
	_, err := Run(&yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 65)},
		},
		Cells: map[string]*yosys.Cell{},
	}, nil)
	if !errors.Is(err, ErrTooWide) {
		t.Fatalf("got %v, want ErrTooWide", err)
	}
}

// TestDoubleDriver aborts when two cells drive one net.
func TestDoubleDriver(t *testing.T) {
	_, err := Run(&yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bits(2)},
			"y": {Direction: "output", Bits: bits(3)},
		},
		Cells: map[string]*yosys.Cell{
			"n0": {Type: "$not", Connections: map[string][]yosys.BitRef{
				"A": bits(2), "Y": bits(3),
			}},
			"n1": {Type: "$not", Connections: map[string][]yosys.BitRef{
				"A": bits(2), "Y": bits(3),
			}},
		},
	}, nil)
	if !errors.Is(err, netlist.ErrDriverConflict) {
		t.Fatalf("got %v, want ErrDriverConflict", err)
	}
}

// TestMissingOutputDriver aborts on an output port nothing drives.
func TestMissingOutputDriver(t *testing.T) {
	_, err := Run(&yosys.Module{
		Ports: map[string]*yosys.Port{
			"y": {Direction: "output", Bits: bits(7)},
		},
		Cells: map[string]*yosys.Cell{},
	}, nil)
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("got %v, want ErrNoDriver", err)
	}
}

// TestConstantOutput folds an all-constant output port into a constant
// component.
func TestConstantOutput(t *testing.T) {
	g := mustRun(t, &yosys.Module{
		Ports: map[string]*yosys.Port{
			"y": {Direction: "output", Bits: []yosys.BitRef{lit("1"), lit("0"), lit("1"), lit("1"),
				lit("0"), lit("0"), lit("0"), lit("0")}},
		},
		Cells: map[string]*yosys.Cell{},
	})
	var konst *netlist.Component
	for _, c := range g.Components {
		if c.Kind() == lib.Const8 {
			konst = c
		}
	}
	if konst == nil {
		t.Fatal("no Const_8")
	}
	if konst.Setting != 0b1101 {
		t.Fatalf("constant value %d, want 13", konst.Setting)
	}
}

// TestCustomCell instantiates a compiled submodule with port widths and
// positions from its metadata.
func TestCustomCell(t *testing.T) {
	info := &CustomInfo{
		ID:     1234567,
		Width:  2,
		Height: 1,
		Ports: []CustomPort{
			{Name: "x", Dir: lib.In, Width: 8, Pos: lib.Point{X: -16, Y: -16}},
			{Name: "out", Dir: lib.Out, Width: 8, Pos: lib.Point{X: -14, Y: -16}},
		},
	}
	g, err := Run(&yosys.Module{
		Ports: map[string]*yosys.Port{
			"a": {Direction: "input", Bits: bitRange(2, 8)},
			"y": {Direction: "output", Bits: bitRange(10, 8)},
		},
		Cells: map[string]*yosys.Cell{
			"child0": {Type: "child", Connections: map[string][]yosys.BitRef{
				"x": bitRange(2, 8), "out": bitRange(10, 8),
			}},
		},
	}, map[string]*CustomInfo{"child": info})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var cc *netlist.Component
	for _, c := range g.Components {
		if c.Kind() == lib.Custom {
			cc = c
		}
	}
	if cc == nil {
		t.Fatal("no Custom component")
	}
	if cc.CustomID != 1234567 {
		t.Fatalf("custom id %d", cc.CustomID)
	}
	if cc.PortWidths["x"] != 8 || cc.PortWidths["out"] != 8 {
		t.Fatalf("port widths %v", cc.PortWidths)
	}
	if cc.CustomW != 16 || cc.CustomH != 8 {
		t.Fatalf("block footprint %dx%d, want 16x8", cc.CustomW, cc.CustomH)
	}
	if got := cc.PortPos["out"]; got != (lib.Point{X: 16, Y: 0}) {
		t.Fatalf("out port at %+v", got)
	}
}
