// Package route turns routed polylines into the save format's wire
// records: exact port endpoints, unit-move densification, direction-run
// encoding, and bus width classification.
package route

import (
	"fmt"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/layout"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
)

// WireKind is the discrete width class of a wire.
type WireKind uint8

const (
	Wk1 WireKind = iota
	Wk8
	Wk16
	Wk32
	Wk64
)

// KindForWidth maps a bus width to its wire kind; unknown widths read as
// single-bit.
func KindForWidth(w int) WireKind {
	switch w {
	case 8:
		return Wk8
	case 16:
		return Wk16
	case 32:
		return Wk32
	case 64:
		return Wk64
	}
	return Wk1
}

// TeleportMarker is the single body byte of an unrouted wire. It decodes
// as direction 1 with run length 0, which no run encoder emits.
const TeleportMarker = 0x20

// maxRun is the longest unit run one body byte can carry.
const maxRun = 31

// Compass directions in encoding order; the high three bits of a body
// byte index this table.
var directions = [8]lib.Point{
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
}

func dirIndex(d lib.Point) (int, bool) {
	for i, v := range directions {
		if v == d {
			return i, true
		}
	}
	return 0, false
}

// Wire is one encoded wire record.
type Wire struct {
	Kind     WireKind
	Color    uint8
	Comment  string
	Start    lib.Point
	Body     []byte
	End      lib.Point // meaningful only when teleported
	Teleport bool
}

// Densify expands a polyline into unit moves: diagonal segments break into
// an orthogonal pair through the horizontally-aligned midpoint, then every
// segment splits into single-cell steps.
func Densify(points []lib.Point) []lib.Point {
	if len(points) == 0 {
		return nil
	}
	dense := []lib.Point{points[0]}
	step := func(to lib.Point) {
		for {
			cur := dense[len(dense)-1]
			if cur == to {
				return
			}
			d := lib.Point{X: sign(to.X - cur.X), Y: sign(to.Y - cur.Y)}
			dense = append(dense, cur.Add(d))
		}
	}
	for i := 1; i < len(points); i++ {
		prev, next := points[i-1], points[i]
		if prev.X != next.X && prev.Y != next.Y {
			// Split the diagonal: run the horizontal leg first.
			step(lib.Point{X: next.X, Y: prev.Y})
		}
		step(next)
	}
	return dense
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// EncodeBody run-length encodes a dense unit-move polyline. Each byte
// packs a 3-bit compass direction and a 5-bit run of 1..31 cells; a zero
// byte terminates the stream.
func EncodeBody(dense []lib.Point) ([]byte, error) {
	var body []byte
	runDir, runLen := -1, 0
	flush := func() {
		for runLen > 0 {
			n := runLen
			if n > maxRun {
				n = maxRun
			}
			body = append(body, byte(runDir<<5|n))
			runLen -= n
		}
	}
	for i := 1; i < len(dense); i++ {
		d := dense[i].Sub(dense[i-1])
		di, ok := dirIndex(d)
		if !ok {
			return nil, fmt.Errorf("non-unit move %+v at step %d", d, i)
		}
		if di != runDir {
			flush()
			runDir = di
		}
		runLen++
	}
	flush()
	return append(body, 0), nil
}

// DecodeBody reverses EncodeBody, reproducing the dense unit-move
// sequence from a start point. It stops at the zero terminator or the
// teleport marker.
func DecodeBody(start lib.Point, body []byte) ([]lib.Point, error) {
	dense := []lib.Point{start}
	for _, b := range body {
		if b == 0 {
			return dense, nil
		}
		if b == TeleportMarker {
			return dense, nil
		}
		d := directions[b>>5]
		n := int(b & 0x1F)
		for i := 0; i < n; i++ {
			dense = append(dense, dense[len(dense)-1].Add(d))
		}
	}
	return nil, fmt.Errorf("wire body missing terminator")
}

// sourceWidth derives a wire's bus width from its driving component and
// port: instance overrides first, then the template's port width.
func sourceWidth(g *netlist.Graph, node int, port string) int {
	c := g.Component(node)
	if c == nil {
		return 1
	}
	return c.PortWidth(port)
}

// Wires encodes every layout edge as a wire record. In compact mode each
// wire is a single teleport byte with an explicit end point; otherwise the
// oracle's polyline is endpoint-forced, densified, and run-length encoded.
func Wires(g *netlist.Graph, l *layout.Layout) ([]Wire, error) {
	routeByEdge := make(map[int]*layout.Route, len(l.Routes))
	for i := range l.Routes {
		routeByEdge[l.Routes[i].Edge] = &l.Routes[i]
	}

	var wires []Wire
	for _, e := range l.Edges {
		start, ok := l.Port(e.FromNode, e.FromPort)
		if !ok {
			return nil, fmt.Errorf("edge %d: no position for source port %d.%s", e.ID, e.FromNode, e.FromPort)
		}
		end, ok := l.Port(e.ToNode, e.ToPort)
		if !ok {
			return nil, fmt.Errorf("edge %d: no position for target port %d.%s", e.ID, e.ToNode, e.ToPort)
		}
		w := Wire{
			Kind:  KindForWidth(sourceWidth(g, e.FromNode, e.FromPort)),
			Start: start,
		}
		if l.Compact {
			w.Body = []byte{TeleportMarker}
			w.End = end
			w.Teleport = true
			wires = append(wires, w)
			continue
		}
		r := routeByEdge[e.ID]
		var pts []lib.Point
		if r != nil && len(r.Points) >= 2 {
			pts = make([]lib.Point, len(r.Points))
			copy(pts, r.Points)
		} else {
			pts = []lib.Point{start, end}
		}
		// Force exact port coordinates: grid snapping inside the oracle
		// may have drifted the endpoints.
		pts[0] = start
		pts[len(pts)-1] = end
		body, err := EncodeBody(Densify(pts))
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", e.ID, err)
		}
		w.Body = body
		wires = append(wires, w)
	}
	return wires, nil
}
