package layout

import (
	"fmt"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
)

// Layered is the built-in layout oracle: longest-path layering with simple
// vertical stacking and dogleg routing. It stands in for the external
// layered-layout engine; anything honoring the Oracle contract can replace
// it.
type Layered struct {
	// Gap is the horizontal clearance between layers. Zero means default.
	Gap int
}

// Layout assigns every node a layer by longest path from the sources,
// pins HintFirst nodes to the first layer and HintLast nodes to the last,
// stacks each layer vertically, and routes every edge as a dogleg.
func (o *Layered) Layout(req *Request) (*Result, error) {
	gap := o.Gap
	if gap <= 0 {
		gap = 6
	}

	idx := make(map[int]int, len(req.Nodes))
	for i, n := range req.Nodes {
		idx[n.ID] = i
	}
	for _, e := range req.Edges {
		if _, ok := idx[e.FromNode]; !ok {
			return nil, fmt.Errorf("edge %d references unknown node %d", e.ID, e.FromNode)
		}
		if _, ok := idx[e.ToNode]; !ok {
			return nil, fmt.Errorf("edge %d references unknown node %d", e.ID, e.ToNode)
		}
	}

	// Longest-path relaxation, bounded by the node count so register
	// feedback cycles terminate.
	layer := make([]int, len(req.Nodes))
	for pass := 0; pass < len(req.Nodes); pass++ {
		changed := false
		for _, e := range req.Edges {
			u, v := idx[e.FromNode], idx[e.ToNode]
			if req.Nodes[v].Hint == HintFirst {
				continue
			}
			if layer[v] < layer[u]+1 {
				layer[v] = layer[u] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	maxLayer := 0
	for i, n := range req.Nodes {
		if n.Hint == HintFirst {
			layer[i] = 0
		}
		if layer[i] > maxLayer {
			maxLayer = layer[i]
		}
	}
	for i, n := range req.Nodes {
		if n.Hint == HintLast {
			layer[i] = maxLayer
		}
	}

	// Column x positions from per-layer widths.
	width := make([]int, maxLayer+1)
	for i, n := range req.Nodes {
		if n.W > width[layer[i]] {
			width[layer[i]] = n.W
		}
	}
	colX := make([]int, maxLayer+1)
	x := 0
	for l := 0; l <= maxLayer; l++ {
		colX[l] = x
		x += width[l] + gap
	}

	// Stack nodes inside each layer in request order.
	res := &Result{}
	colY := make([]int, maxLayer+1)
	place := make(map[int]Placement, len(req.Nodes))
	for i, n := range req.Nodes {
		l := layer[i]
		p := Placement{
			Node: n.ID,
			Pos:  lib.Point{X: colX[l], Y: colY[l]},
			W:    n.W,
			H:    n.H,
		}
		colY[l] += n.H + 1
		place[n.ID] = p
		res.Placements = append(res.Placements, p)
	}

	port := func(node int, id string) (lib.Point, bool) {
		n := req.Nodes[idx[node]]
		for _, p := range n.Ports {
			if p.ID == id {
				return place[node].Pos.Add(p.Off), true
			}
		}
		return lib.Point{}, false
	}

	for _, e := range req.Edges {
		from, ok := port(e.FromNode, e.FromPort)
		if !ok {
			return nil, fmt.Errorf("edge %d: unknown port %s on node %d", e.ID, e.FromPort, e.FromNode)
		}
		to, ok := port(e.ToNode, e.ToPort)
		if !ok {
			return nil, fmt.Errorf("edge %d: unknown port %s on node %d", e.ID, e.ToPort, e.ToNode)
		}
		var pts []lib.Point
		if from.Y == to.Y || from.X == to.X {
			pts = []lib.Point{from, to}
		} else {
			mx := (from.X + to.X) / 2
			pts = []lib.Point{
				from,
				{X: mx, Y: from.Y},
				{X: mx, Y: to.Y},
				to,
			}
		}
		res.Routes = append(res.Routes, Route{Edge: e.ID, Points: pts})
	}
	return res, nil
}
