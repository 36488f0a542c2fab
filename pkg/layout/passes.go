package layout

import (
	"math"
	"sort"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
)

// ioMargin is the pull-out distance of IO columns past the extreme nodes.
const ioMargin = 10

// ioSlotHeight is the fixed per-slot height of IO nodes in compact mode,
// chosen so bus connections align vertically. Part of the visual contract,
// not the correctness contract.
const ioSlotHeight = 10

// shiftNode moves one node and every attached route endpoint in lockstep.
func (l *Layout) shiftNode(id int, d lib.Point) {
	p := l.Placements[id]
	p.Pos = p.Pos.Add(d)
	l.Placements[id] = p

	for i := range l.Routes {
		r := &l.Routes[i]
		e := l.edge(r.Edge)
		if e == nil || len(r.Points) == 0 {
			continue
		}
		if e.FromNode == id {
			r.Points[0] = r.Points[0].Add(d)
		}
		if e.ToNode == id {
			r.Points[len(r.Points)-1] = r.Points[len(r.Points)-1].Add(d)
		}
	}
}

func (l *Layout) edge(id int) *Edge {
	for i := range l.Edges {
		if l.Edges[i].ID == id {
			return &l.Edges[i]
		}
	}
	return nil
}

// alignIO pulls inputs out to a common column a margin left of the
// leftmost input, and outputs a margin right of the rightmost output.
func (l *Layout) alignIO(g *netlist.Graph) {
	minIn, maxOut := math.MaxInt, math.MinInt
	var ins, outs []int
	for _, c := range g.Components {
		p, ok := l.Placements[c.ID]
		if !ok {
			continue
		}
		switch {
		case lib.IsInput(c.Kind()):
			ins = append(ins, c.ID)
			if p.Pos.X < minIn {
				minIn = p.Pos.X
			}
		case lib.IsOutput(c.Kind()):
			outs = append(outs, c.ID)
			if p.Pos.X > maxOut {
				maxOut = p.Pos.X
			}
		}
	}
	for _, id := range ins {
		dx := (minIn - ioMargin) - l.Placements[id].Pos.X
		if dx != 0 {
			l.shiftNode(id, lib.Point{X: dx})
		}
	}
	for _, id := range outs {
		dx := (maxOut + ioMargin) - l.Placements[id].Pos.X
		if dx != 0 {
			l.shiftNode(id, lib.Point{X: dx})
		}
	}
}

// compactPack reinterprets the oracle's output as an x-order
// linearization and repacks it into vertical columns of roughly square
// total aspect. Inputs, logic, and outputs pack as separate column
// groups, in that order; IO nodes occupy fixed-height slots. Routed
// polylines are discarded; compact mode uses teleport wires.
func (l *Layout) compactPack(g *netlist.Graph) {
	var ins, logic, outs []int
	for _, c := range g.Components {
		if _, ok := l.Placements[c.ID]; !ok {
			continue
		}
		switch {
		case lib.IsInput(c.Kind()):
			ins = append(ins, c.ID)
		case lib.IsOutput(c.Kind()):
			outs = append(outs, c.ID)
		default:
			logic = append(logic, c.ID)
		}
	}
	byX := func(ids []int) {
		sort.SliceStable(ids, func(i, j int) bool {
			pi, pj := l.Placements[ids[i]], l.Placements[ids[j]]
			if pi.Pos.X != pj.Pos.X {
				return pi.Pos.X < pj.Pos.X
			}
			return ids[i] < ids[j]
		})
	}
	byX(ins)
	byX(logic)
	byX(outs)

	target := l.targetHeight(logic)

	x := 0
	x = l.packIOColumns(ins, x, target)
	x += ioMargin
	x = l.packColumns(logic, x, target)
	x += ioMargin
	l.packIOColumns(outs, x, target)

	// No routes survive: every wire becomes a teleport.
	l.Routes = nil
}

// targetHeight is approximately the square root of the total packed area,
// never less than the tallest element.
func (l *Layout) targetHeight(ids []int) int {
	area, tallest := 0, 1
	for _, id := range ids {
		p := l.Placements[id]
		area += p.W * p.H
		if p.H > tallest {
			tallest = p.H
		}
	}
	h := int(math.Ceil(math.Sqrt(float64(area))))
	if h < tallest {
		h = tallest
	}
	if h < ioSlotHeight {
		h = ioSlotHeight
	}
	return h
}

// packColumns fills vertical columns left to right, returning the x past
// the last column.
func (l *Layout) packColumns(ids []int, x, target int) int {
	y, colW := 0, 0
	for _, id := range ids {
		p := l.Placements[id]
		if y > 0 && y+p.H > target {
			x += colW + 2
			y, colW = 0, 0
		}
		p.Pos = lib.Point{X: x, Y: y}
		l.Placements[id] = p
		y += p.H + 1
		if p.W > colW {
			colW = p.W
		}
	}
	return x + colW
}

// packIOColumns places IO nodes on fixed-height slots so that bus pins in
// one column line up across compiles.
func (l *Layout) packIOColumns(ids []int, x, target int) int {
	slots := target / ioSlotHeight
	if slots < 1 {
		slots = 1
	}
	colW := 1
	for _, id := range ids {
		if w := l.Placements[id].W; w > colW {
			colW = w
		}
	}
	for i, id := range ids {
		col, slot := i/slots, i%slots
		p := l.Placements[id]
		p.Pos = lib.Point{X: x + col*(colW+2), Y: slot * ioSlotHeight}
		l.Placements[id] = p
	}
	cols := (len(ids) + slots - 1) / slots
	if cols == 0 {
		return x
	}
	return x + cols*(colW+2) - 2
}

// center translates everything so the bounding box over all node
// rectangles and route points straddles the origin. Running it twice is
// the same as running it once, up to rounding.
func (l *Layout) center() {
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	grow := func(p lib.Point) {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	for _, p := range l.Placements {
		grow(p.Pos)
		grow(p.Pos.Add(lib.Point{X: p.W, Y: p.H}))
	}
	for _, r := range l.Routes {
		for _, p := range r.Points {
			grow(p)
		}
	}
	if minX > maxX {
		return
	}
	d := lib.Point{X: -(minX + maxX) / 2, Y: -(minY + maxY) / 2}
	for id, p := range l.Placements {
		p.Pos = p.Pos.Add(d)
		l.Placements[id] = p
	}
	for i := range l.Routes {
		for j := range l.Routes[i].Points {
			l.Routes[i].Points[j] = l.Routes[i].Points[j].Add(d)
		}
	}
}
