// Package compile runs the per-module pipeline: lowering, layout, wire
// encoding, and save serialization.
package compile

import (
	"fmt"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/layout"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lower"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/route"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/save"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

// Config parameterizes one module compilation.
type Config struct {
	Module  *yosys.Module
	Name    string
	SaveID  uint64
	Customs map[string]*lower.CustomInfo
	// Dependencies lists the 63-bit ids of every submodule the schematic
	// instantiates, for the payload header.
	Dependencies []uint64
	Compact      bool
	Oracle       layout.Oracle
}

// Result is one compiled module: its container bytes plus the metadata a
// parent schematic needs to instantiate it.
type Result struct {
	Data   []byte
	Graph  *netlist.Graph
	Layout *layout.Layout
	Meta   *lower.CustomInfo
}

// Module compiles one synthesized module to container bytes.
func Module(cfg Config) (*Result, error) {
	g, err := lower.Run(cfg.Module, cfg.Customs)
	if err != nil {
		return nil, fmt.Errorf("lower %s: %w", cfg.Name, err)
	}

	l, err := layout.Run(g, layout.Options{Compact: cfg.Compact, Oracle: cfg.Oracle})
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", cfg.Name, err)
	}

	wires, err := route.Wires(g, l)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", cfg.Name, err)
	}

	payload := &save.Payload{
		Header: save.Header{
			SaveID:       cfg.SaveID,
			GateCount:    uint64(gateCount(g)),
			MenuVisible:  true,
			Dependencies: cfg.Dependencies,
			Description:  cfg.Name,
		},
		Wires: wires,
	}
	for _, c := range g.Components {
		p, ok := l.Placements[c.ID]
		if !ok {
			return nil, fmt.Errorf("save %s: component %d has no placement", cfg.Name, c.ID)
		}
		payload.Components = append(payload.Components, save.Component{
			Kind:     c.Kind(),
			Pos:      save.ComponentPos(c.Kind(), p.Pos),
			Rotation: c.Template.Rotation,
			Label:    c.Label,
			Setting1: c.Setting,
			CustomID: c.CustomID,
		})
	}

	encoded, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", cfg.Name, err)
	}

	return &Result{
		Data:   save.Container(encoded),
		Graph:  g,
		Layout: l,
		Meta:   exportMeta(cfg.SaveID, g, l),
	}, nil
}

// gateCount is the header's gate total: every component that is not a
// module pin.
func gateCount(g *netlist.Graph) int {
	n := 0
	for _, c := range g.Components {
		if !lib.IsInput(c.Kind()) && !lib.IsOutput(c.Kind()) {
			n++
		}
	}
	return n
}

// exportMeta derives the custom-component metadata a parent schematic
// uses: the bounding box aligned up to 8-cell units and the module pins,
// quantized onto the unit grid with the host's origin offset.
func exportMeta(id uint64, g *netlist.Graph, l *layout.Layout) *lower.CustomInfo {
	minX, minY := 1<<30, 1<<30
	maxX, maxY := -(1 << 30), -(1 << 30)
	for _, p := range l.Placements {
		if p.Pos.X < minX {
			minX = p.Pos.X
		}
		if p.Pos.Y < minY {
			minY = p.Pos.Y
		}
		if p.Pos.X+p.W > maxX {
			maxX = p.Pos.X + p.W
		}
		if p.Pos.Y+p.H > maxY {
			maxY = p.Pos.Y + p.H
		}
	}
	if minX > maxX {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	meta := &lower.CustomInfo{
		ID:     id,
		Width:  ceilDiv(maxX-minX, 8),
		Height: ceilDiv(maxY-minY, 8),
	}
	for _, c := range g.Components {
		if c.Module == nil {
			continue
		}
		var pin string
		var dir lib.Dir
		if lib.IsInput(c.Kind()) {
			pin, dir = "out", lib.In
		} else if lib.IsOutput(c.Kind()) {
			pin, dir = "in", lib.Out
		} else {
			continue
		}
		pos, ok := l.Port(c.ID, pin)
		if !ok {
			continue
		}
		meta.Ports = append(meta.Ports, lower.CustomPort{
			Name:  c.Module.Name,
			Dir:   dir,
			Width: lib.Width(c.Kind()),
			Pos: lib.Point{
				X: (pos.X-minX)/8 - 16,
				Y: (pos.Y-minY)/8 - 16,
			},
		})
	}
	return meta
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}
