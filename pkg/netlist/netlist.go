// Package netlist holds the in-memory component graph produced by the
// synthesis adapter and consumed by layout and the save writer.
//
// Components never point at each other directly: every edge is indirected
// through a net, keyed by a string id taken from the synthesizer's bit
// numbering (or freshly minted for constants and internal wires).
package netlist

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
)

// ErrDriverConflict is returned when a net would acquire a second driver.
var ErrDriverConflict = errors.New("net already has a driver")

// NetID identifies one wire in the graph.
type NetID string

// PortRef names one port of one component instance.
type PortRef struct {
	Component int // component id
	Port      string
}

// Net is a set of port references sharing a signal, with at most one driver.
type Net struct {
	ID     NetID
	Source *PortRef
	Sinks  []PortRef
}

// ModulePort describes the module-level pin a component represents, if any.
type ModulePort struct {
	Name string
	Dir  lib.Dir
	Bit  int // bit index within the module port, -1 for whole-bus pins
}

// Component is one instance of a library template.
type Component struct {
	ID       int
	Template *lib.Template
	Conns    map[string]NetID

	Label      string
	Module     *ModulePort          // set on Input/Output kinds
	Setting    uint64               // constant value, register init, ...
	CustomID   uint64               // set on Custom kinds
	PortWidths map[string]int       // per-port width overrides (Custom kinds)
	PortPos    map[string]lib.Point // per-port positions (Custom kinds)
	CustomW    int                  // block footprint (Custom kinds)
	CustomH    int
}

// Kind returns the component's template kind.
func (c *Component) Kind() lib.Kind { return c.Template.Kind }

// PortWidth returns the bus width of one port, honoring instance overrides.
func (c *Component) PortWidth(port string) int {
	if w, ok := c.PortWidths[port]; ok {
		return w
	}
	if p := c.Template.Port(port); p != nil {
		return p.Width
	}
	return 1
}

// Graph is the netlist: an ordered component list plus the net table.
// Component order is load-bearing: the save writer assigns permanent ids
// as 1-based indices in this order.
type Graph struct {
	Components []*Component
	Nets       map[NetID]*Net

	byID      map[int]*Component
	nextID    int
	nextFresh int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		Nets: make(map[NetID]*Net),
		byID: make(map[int]*Component),
	}
}

// Fresh mints a net id that cannot collide with synthesizer bit ids.
func (g *Graph) Fresh() NetID {
	g.nextFresh++
	return NetID("$vttc$" + strconv.Itoa(g.nextFresh))
}

// Add instantiates a component of the given template and appends it.
func (g *Graph) Add(tpl *lib.Template) *Component {
	g.nextID++
	c := &Component{
		ID:       g.nextID,
		Template: tpl,
		Conns:    make(map[string]NetID),
	}
	g.Components = append(g.Components, c)
	g.byID[c.ID] = c
	return c
}

// AddKind is Add by kind.
func (g *Graph) AddKind(k lib.Kind) *Component {
	return g.Add(lib.ForKind(k))
}

// Net returns the net for id, creating it lazily.
func (g *Graph) Net(id NetID) *Net {
	n, ok := g.Nets[id]
	if !ok {
		n = &Net{ID: id}
		g.Nets[id] = n
	}
	return n
}

// Component returns the live component with the given id, or nil.
func (g *Graph) Component(id int) *Component {
	return g.byID[id]
}

// BindSource connects a component port as the unique driver of a net.
func (g *Graph) BindSource(c *Component, port string, id NetID) error {
	n := g.Net(id)
	if n.Source != nil {
		return fmt.Errorf("%w: net %s driven by %d.%s and %d.%s",
			ErrDriverConflict, id, n.Source.Component, n.Source.Port, c.ID, port)
	}
	n.Source = &PortRef{Component: c.ID, Port: port}
	c.Conns[port] = id
	return nil
}

// BindSink connects a component port as one more sink of a net.
func (g *Graph) BindSink(c *Component, port string, id NetID) {
	n := g.Net(id)
	n.Sinks = append(n.Sinks, PortRef{Component: c.ID, Port: port})
	c.Conns[port] = id
}

// Remove deletes a component and severs every incident net reference.
func (g *Graph) Remove(c *Component) {
	for port, id := range c.Conns {
		n, ok := g.Nets[id]
		if !ok {
			continue
		}
		if n.Source != nil && n.Source.Component == c.ID && n.Source.Port == port {
			n.Source = nil
		}
		sinks := n.Sinks[:0]
		for _, s := range n.Sinks {
			if s.Component != c.ID || s.Port != port {
				sinks = append(sinks, s)
			}
		}
		n.Sinks = sinks
	}
	for i, o := range g.Components {
		if o == c {
			g.Components = append(g.Components[:i], g.Components[i+1:]...)
			break
		}
	}
	delete(g.byID, c.ID)
}

// DropNet deletes a net outright. Callers must have rewired its refs.
func (g *Graph) DropNet(id NetID) {
	delete(g.Nets, id)
}

// Check verifies the graph invariants: every net with a sink has exactly
// one source, and every port reference points at a live component.
func (g *Graph) Check() error {
	live := make(map[int]*Component, len(g.Components))
	for _, c := range g.Components {
		live[c.ID] = c
	}
	for id, n := range g.Nets {
		if len(n.Sinks) > 0 && n.Source == nil {
			return fmt.Errorf("net %s has %d sinks but no driver", id, len(n.Sinks))
		}
		refs := n.Sinks
		if n.Source != nil {
			refs = append([]PortRef{*n.Source}, refs...)
		}
		for _, r := range refs {
			if _, ok := live[r.Component]; !ok {
				return fmt.Errorf("net %s references deleted component %d", id, r.Component)
			}
		}
	}
	return nil
}
