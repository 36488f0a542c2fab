package lower

import (
	"strconv"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
)

// optimize runs the post-lowering passes: zero-net constant folding (twice,
// the second pass catches gates exposed by the first), the
// splitter-maker round-trip merge, and the dead maker/splitter/constant
// cleanup.
func (a *Adapter) optimize() {
	zero := a.zeroNets()
	a.foldZeroAnds(zero)
	a.foldZeroAnds(zero)
	a.mergeSplitterMakers()
	a.cleanup()
}

// zeroNets collects every net whose driver is a known zero: an Off
// component or a per-width constant carrying value 0.
func (a *Adapter) zeroNets() map[netlist.NetID]bool {
	zero := make(map[netlist.NetID]bool)
	for _, c := range a.g.Components {
		k := c.Kind()
		if k == lib.On || !lib.IsConst(k) {
			continue
		}
		if k != lib.Off && c.Setting != 0 {
			continue
		}
		if out, ok := c.Conns["out"]; ok {
			zero[out] = true
		}
	}
	return zero
}

// foldZeroAnds deletes 1-bit AND gates with a zero input: their output is
// zero too. The output net keeps its sinks and gets a constant driver in
// the gate's place; sink-less drivers fall to cleanup.
func (a *Adapter) foldZeroAnds(zero map[netlist.NetID]bool) {
	gates := make([]*netlist.Component, 0)
	for _, c := range a.g.Components {
		if c.Kind() != lib.And1 {
			continue
		}
		if zero[c.Conns["in0"]] || zero[c.Conns["in1"]] {
			gates = append(gates, c)
		}
	}
	for _, gate := range gates {
		out := gate.Conns["out"]
		a.g.Remove(gate)
		zero[out] = true
		if n, ok := a.g.Nets[out]; ok && len(n.Sinks) > 0 {
			off := a.g.AddKind(lib.Off)
			_ = a.g.BindSource(off, "out", out)
		}
	}
}

// mergeSplitterMakers erases maker-immediately-after-splitter round trips:
// a maker whose pins read a splitter's pins in order carries the exact bus
// the splitter reads, so its sinks move onto that net.
func (a *Adapter) mergeSplitterMakers() {
	makers := make([]*netlist.Component, 0)
	for _, c := range a.g.Components {
		if lib.IsMaker(c.Kind()) {
			makers = append(makers, c)
		}
	}
	for _, m := range makers {
		spl := a.makerRoundTrip(m)
		if spl == nil {
			continue
		}
		bus := spl.Conns["in"]
		out := m.Conns["out"]
		a.g.Remove(m)
		if n, ok := a.g.Nets[out]; ok {
			dst := a.g.Net(bus)
			for _, s := range n.Sinks {
				dst.Sinks = append(dst.Sinks, s)
				if c := a.g.Component(s.Component); c != nil {
					c.Conns[s.Port] = bus
				}
			}
			a.g.DropNet(out)
		}
	}
}

// makerRoundTrip reports the splitter a maker undoes, or nil.
func (a *Adapter) makerRoundTrip(m *netlist.Component) *netlist.Component {
	width := lib.Width(m.Kind())
	splKind, ok := lib.For(lib.OpSplitter, width)
	if !ok {
		return nil
	}
	_, pins := lib.ChunkPins(width)
	var spl *netlist.Component
	for i := 0; i < pins; i++ {
		in, ok := m.Conns["in"+strconv.Itoa(i)]
		if !ok {
			return nil
		}
		n, ok := a.g.Nets[in]
		if !ok || n.Source == nil {
			return nil
		}
		c := a.g.Component(n.Source.Component)
		if c == nil || c.Kind() != splKind || n.Source.Port != "out"+strconv.Itoa(i) {
			return nil
		}
		if spl == nil {
			spl = c
		} else if spl != c {
			return nil
		}
	}
	if spl == nil {
		return nil
	}
	if in, ok := spl.Conns["in"]; !ok || a.g.Net(in).Source == nil {
		return nil
	}
	return spl
}

// cleanup iteratively deletes makers, splitters, and constant drivers none
// of whose outputs feed a sink. Each deletion can expose another, so the
// pass runs to a fixed point.
func (a *Adapter) cleanup() {
	for {
		changed := false
		victims := make([]*netlist.Component, 0)
		for _, c := range a.g.Components {
			k := c.Kind()
			if !lib.IsMaker(k) && !lib.IsSplitter(k) && !lib.IsConst(k) {
				continue
			}
			if a.anyOutputSinked(c) {
				continue
			}
			victims = append(victims, c)
		}
		for _, c := range victims {
			a.g.Remove(c)
			changed = true
		}
		if !changed {
			return
		}
	}
}

// anyOutputSinked reports whether any output port of c drives a net that
// still has sinks.
func (a *Adapter) anyOutputSinked(c *netlist.Component) bool {
	for _, p := range c.Template.Ports {
		if p.Dir != lib.Out {
			continue
		}
		id, ok := c.Conns[p.ID]
		if !ok {
			continue
		}
		if n, ok := a.g.Nets[id]; ok && len(n.Sinks) > 0 {
			return true
		}
	}
	return false
}
