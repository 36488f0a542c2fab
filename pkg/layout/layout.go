// Package layout turns the netlist graph into integer grid placements and
// routed polylines. The layered layout engine itself sits behind the Oracle
// seam; this package builds its request, consumes its result, and applies
// the IO-alignment, compact-packing, and centering passes.
package layout

import (
	"fmt"
	"sort"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
)

// LayerHint pins a node to the first or last layer.
type LayerHint uint8

const (
	HintNone LayerHint = iota
	HintFirst
	HintLast
)

// Side is the node face a port sits on.
type Side uint8

const (
	WestSide Side = iota
	EastSide
)

// NodePort is one port of a layout node, positioned relative to the node's
// top-left corner.
type NodePort struct {
	ID   string
	Off  lib.Point
	Side Side
}

// Node is one component to place.
type Node struct {
	ID    int // component id
	W, H  int // footprint in grid cells
	Ports []NodePort
	Hint  LayerHint
}

// Edge is one source-to-sink pair.
type Edge struct {
	ID       int
	FromNode int
	FromPort string
	ToNode   int
	ToPort   string
}

// Request is what the layout oracle receives.
type Request struct {
	Nodes []Node
	Edges []Edge
}

// Placement fixes one node's top-left corner.
type Placement struct {
	Node int
	Pos  lib.Point
	W, H int
}

// Route is one edge's polyline, from source port to sink port.
type Route struct {
	Edge   int
	Points []lib.Point
}

// Result is what the layout oracle returns.
type Result struct {
	Placements []Placement
	Routes     []Route
}

// Oracle computes a layered layout. The production engine is an external
// collaborator; Layered in this package is a small built-in stand-in.
type Oracle interface {
	Layout(*Request) (*Result, error)
}

// Layout is the placed-and-routed form of a netlist, with the passes
// applied. Routes holds the oracle's polyline per edge; in compact mode it
// is empty and only the port endpoints of Edges matter.
type Layout struct {
	Req        *Request
	Placements map[int]Placement // by component id
	Routes     []Route
	Edges      []Edge
	Compact    bool
}

// nodeGeometry derives a layout node from a component.
func nodeGeometry(c *netlist.Component) Node {
	if c.Kind() == lib.Custom {
		n := Node{ID: c.ID, W: c.CustomW, H: c.CustomH}
		if n.W == 0 {
			n.W = 8
		}
		if n.H == 0 {
			n.H = 8
		}
		names := make([]string, 0, len(c.PortPos))
		for name := range c.PortPos {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pos := c.PortPos[name]
			side := WestSide
			if pos.X >= n.W/2 {
				side = EastSide
			}
			n.Ports = append(n.Ports, NodePort{ID: name, Off: pos, Side: side})
		}
		return n
	}
	t := c.Template
	w, h := t.Bounds.Size()
	n := Node{ID: c.ID, W: w, H: h}
	for _, p := range t.Ports {
		side := WestSide
		if p.Dir == lib.Out {
			side = EastSide
		}
		n.Ports = append(n.Ports, NodePort{
			ID:   p.ID,
			Off:  p.Pos.Sub(lib.Point{X: t.Bounds.MinX, Y: t.Bounds.MinY}),
			Side: side,
		})
	}
	switch {
	case lib.IsInput(c.Kind()):
		n.Hint = HintFirst
	case lib.IsOutput(c.Kind()):
		n.Hint = HintLast
	}
	return n
}

// BuildRequest lowers the netlist into an oracle request: one node per
// component, one edge per source-to-sink pair.
func BuildRequest(g *netlist.Graph) *Request {
	req := &Request{}
	for _, c := range g.Components {
		req.Nodes = append(req.Nodes, nodeGeometry(c))
	}
	// Deterministic edge order: follow component order, then port order,
	// then sink order within each net.
	edgeID := 0
	seen := make(map[netlist.NetID]bool)
	for _, c := range g.Components {
		for _, p := range c.Template.Ports {
			id, ok := c.Conns[p.ID]
			if !ok || p.Dir != lib.Out || seen[id] {
				continue
			}
			seen[id] = true
			req.Edges = appendNetEdges(req.Edges, g, id, &edgeID)
		}
		if c.Kind() == lib.Custom {
			names := make([]string, 0, len(c.PortPos))
			for name := range c.PortPos {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				id, ok := c.Conns[name]
				if !ok || seen[id] {
					continue
				}
				n := g.Nets[id]
				if n == nil || n.Source == nil || n.Source.Component != c.ID {
					continue
				}
				seen[id] = true
				req.Edges = appendNetEdges(req.Edges, g, id, &edgeID)
			}
		}
	}
	return req
}

func appendNetEdges(edges []Edge, g *netlist.Graph, id netlist.NetID, edgeID *int) []Edge {
	n := g.Nets[id]
	if n == nil || n.Source == nil {
		return edges
	}
	for _, s := range n.Sinks {
		edges = append(edges, Edge{
			ID:       *edgeID,
			FromNode: n.Source.Component,
			FromPort: n.Source.Port,
			ToNode:   s.Component,
			ToPort:   s.Port,
		})
		*edgeID++
	}
	return edges
}

// Options selects the layout mode.
type Options struct {
	Compact bool
	Oracle  Oracle
}

// Run builds the request, consults the oracle, and applies the passes in
// order: IO alignment, optional compact packing, centering.
func Run(g *netlist.Graph, opts Options) (*Layout, error) {
	req := BuildRequest(g)
	oracle := opts.Oracle
	if oracle == nil {
		oracle = &Layered{}
	}
	res, err := oracle.Layout(req)
	if err != nil {
		return nil, fmt.Errorf("layout oracle: %w", err)
	}

	l := &Layout{
		Req:        req,
		Placements: make(map[int]Placement, len(res.Placements)),
		Routes:     res.Routes,
		Edges:      req.Edges,
		Compact:    opts.Compact,
	}
	for _, p := range res.Placements {
		l.Placements[p.Node] = p
	}
	for _, n := range req.Nodes {
		if _, ok := l.Placements[n.ID]; !ok {
			return nil, fmt.Errorf("layout returned no placement for component %d", n.ID)
		}
	}

	l.alignIO(g)
	if opts.Compact {
		l.compactPack(g)
	}
	l.center()
	return l, nil
}

// Port returns the absolute grid coordinate of a node port.
func (l *Layout) Port(node int, port string) (lib.Point, bool) {
	p, ok := l.Placements[node]
	if !ok {
		return lib.Point{}, false
	}
	n := l.node(node)
	if n == nil {
		return lib.Point{}, false
	}
	for _, np := range n.Ports {
		if np.ID == port {
			return p.Pos.Add(np.Off), true
		}
	}
	return lib.Point{}, false
}

func (l *Layout) node(id int) *Node {
	for i := range l.Req.Nodes {
		if l.Req.Nodes[i].ID == id {
			return &l.Req.Nodes[i]
		}
	}
	return nil
}
