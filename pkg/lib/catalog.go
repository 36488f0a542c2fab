package lib

import "strconv"

// Dir is a port direction.
type Dir uint8

const (
	In Dir = iota
	Out
)

// Rotation is one of the four grid orientations. The save format stores it
// as a single byte; every template defaults to East.
type Rotation uint8

const (
	East Rotation = iota
	South
	West
	North
)

// Point is an integer grid coordinate. Positive x grows right, positive y
// grows down.
type Point struct {
	X, Y int
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p translated by the negation of q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Port is one connection point of a template, positioned relative to the
// template's local origin.
type Port struct {
	ID    string
	Dir   Dir
	Pos   Point
	Width int // bus width carried by this port, in bits
}

// Bounds is a template's grid bounding box in local coordinates, inclusive.
type Bounds struct {
	MinX, MinY, MaxX, MaxY int
}

// Size returns the occupied width and height in grid cells.
func (b Bounds) Size() (w, h int) {
	return b.MaxX - b.MinX + 1, b.MaxY - b.MinY + 1
}

// Template holds the static metadata for one component kind.
type Template struct {
	ID       string
	Kind     Kind
	Rotation Rotation
	Ports    []Port
	Bounds   Bounds
}

// Port returns the template port with the given id, or nil.
func (t *Template) Port(id string) *Port {
	for i := range t.Ports {
		if t.Ports[i].ID == id {
			return &t.Ports[i]
		}
	}
	return nil
}

// Inputs returns the template's input ports in declaration order.
func (t *Template) Inputs() []Port {
	ports := make([]Port, 0, len(t.Ports))
	for _, p := range t.Ports {
		if p.Dir == In {
			ports = append(ports, p)
		}
	}
	return ports
}

// Outputs returns the template's output ports in declaration order.
func (t *Template) Outputs() []Port {
	ports := make([]Port, 0, len(t.Ports))
	for _, p := range t.Ports {
		if p.Dir == Out {
			ports = append(ports, p)
		}
	}
	return ports
}

// Catalog maps each Kind to its Template.
var Catalog [KindCount]Template

var byID = make(map[string]Kind, KindCount)

// Lookup resolves a template identifier like "AND_8" or "Splitter_32".
func Lookup(id string) (*Template, bool) {
	k, ok := byID[id]
	if !ok {
		return nil, false
	}
	return &Catalog[k], true
}

// ForKind returns the template of a kind.
func ForKind(k Kind) *Template {
	return &Catalog[k]
}

func register(k Kind, id string, b Bounds, ports ...Port) {
	Catalog[k] = Template{ID: id, Kind: k, Rotation: East, Ports: ports, Bounds: b}
	byID[id] = k
}

// gateBounds is the footprint shared by all plain gates.
var gateBounds = Bounds{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}

func in(id string, x, y, w int) Port  { return Port{ID: id, Dir: In, Pos: Point{x, y}, Width: w} }
func out(id string, x, y, w int) Port { return Port{ID: id, Dir: Out, Pos: Point{x, y}, Width: w} }

// ChunkPins returns the per-pin width and pin count of a maker or splitter
// at the given bus width: per-bit pins at width 8, 8-bit chunk pins above.
func ChunkPins(width int) (pinWidth, pins int) {
	if width <= 8 {
		return 1, width
	}
	return 8, width / 8
}

// pinY lays n pins out vertically, center-aligned around y=0.
func pinY(i, n int) int { return i - n/2 }

func init() {
	// === 1-bit constants, gates, IO, flip-flop ===
	register(Off, "Off", gateBounds, out("out", 1, 0, 1))
	register(On, "On", gateBounds, out("out", 1, 0, 1))

	register(Not1, "NOT_1", gateBounds,
		in("in", -1, 0, 1), out("out", 1, 0, 1))
	for _, g := range []struct {
		k  Kind
		id string
	}{
		{And1, "AND_1"}, {Or1, "OR_1"}, {Xor1, "XOR_1"}, {Xnor1, "XNOR_1"},
	} {
		register(g.k, g.id, gateBounds,
			in("in0", -1, -1, 1), in("in1", -1, 1, 1), out("out", 1, 0, 1))
	}

	register(Input1, "Input_1", gateBounds, out("out", 1, 0, 1))
	register(Output1, "Output_1", gateBounds, in("in", -1, 0, 1))

	register(BitMemory, "BitMemory", gateBounds,
		in("save", -1, -1, 1), in("value", -1, 1, 1), out("out", 1, 0, 1))

	// === Per-width groups ===
	for _, w := range Widths {
		ws := strconv.Itoa(w)
		base, _ := widthBase(w)

		for _, g := range []struct {
			op Op
			id string
		}{
			{OpAnd, "AND_"}, {OpOr, "OR_"}, {OpXor, "XOR_"}, {OpXnor, "XNOR_"},
		} {
			register(base+Kind(g.op), g.id+ws, gateBounds,
				in("in0", -1, -1, w), in("in1", -1, 1, w), out("out", 1, 0, w))
		}
		register(base+Kind(OpNot), "NOT_"+ws, gateBounds,
			in("in", -1, 0, w), out("out", 1, 0, w))

		register(base+Kind(OpInput), "Input_"+ws, gateBounds, out("out", 1, 0, w))
		register(base+Kind(OpOutput), "Output_"+ws, gateBounds, in("in", -1, 0, w))
		register(base+Kind(OpConst), "Const_"+ws, gateBounds, out("out", 1, 0, w))

		register(base+Kind(OpMux), "MUX_"+ws, Bounds{MinX: -1, MinY: -2, MaxX: 1, MaxY: 1},
			in("a", -1, -1, w), in("b", -1, 1, w), in("s", 0, -2, 1), out("out", 1, 0, w))

		// Makers and splitters lay pins out vertically around y=0; at
		// widths above 8 the pins carry 8-bit chunks instead of bits.
		pw, pins := ChunkPins(w)
		mb := Bounds{MinX: -1, MinY: pinY(0, pins), MaxX: 1, MaxY: pinY(pins-1, pins)}
		mports := make([]Port, 0, pins+1)
		for i := 0; i < pins; i++ {
			mports = append(mports, in("in"+strconv.Itoa(i), -1, pinY(i, pins), pw))
		}
		mports = append(mports, out("out", 1, 0, w))
		register(base+Kind(OpMaker), "Maker_"+ws, mb, mports...)

		sports := make([]Port, 0, pins+1)
		sports = append(sports, in("in", -1, 0, w))
		for i := 0; i < pins; i++ {
			sports = append(sports, out("out"+strconv.Itoa(i), 1, pinY(i, pins), pw))
		}
		register(base+Kind(OpSplitter), "Splitter_"+ws, mb, sports...)

		register(base+Kind(OpAdd), "Add_"+ws, gateBounds,
			in("cin", -1, -1, 1), in("a", -1, 0, w), in("b", -1, 1, w),
			out("sum", 1, -1, w), out("cout", 1, 0, 1))
		register(base+Kind(OpMul), "Mul_"+ws, gateBounds,
			in("a", -1, -1, w), in("b", -1, 1, w), out("out", 1, 0, w))
		for _, s := range []struct {
			op Op
			id string
		}{
			{OpShl, "SHL_"}, {OpShr, "SHR_"}, {OpAshR, "ASHR_"},
		} {
			register(base+Kind(s.op), s.id+ws, gateBounds,
				in("a", -1, -1, w), in("shift", -1, 1, 8), out("out", 1, 0, w))
		}
		register(base+Kind(OpNeg), "NEG_"+ws, gateBounds,
			in("in", -1, 0, w), out("out", 1, 0, w))

		for _, c := range []struct {
			op Op
			id string
		}{
			{OpEqual, "Equal_"}, {OpLessU, "LessU_"}, {OpLessS, "LessS_"},
		} {
			register(base+Kind(c.op), c.id+ws, gateBounds,
				in("a", -1, -1, w), in("b", -1, 1, w), out("out", 1, 0, 1))
		}

		register(base+Kind(OpReg), "Register_"+ws, gateBounds,
			in("load", -1, -1, 1), in("save", -1, 0, 1), in("value", -1, 1, w),
			out("out", 1, 0, w))
	}

	// Custom components get their ports from compiled child metadata, not
	// from the template.
	register(Custom, "Custom", Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1})
}
