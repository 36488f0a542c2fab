package lower

import (
	"strconv"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

// driverOf returns the component and port driving a net, if any.
func (a *Adapter) driverOf(id netlist.NetID) (*netlist.Component, string) {
	n, ok := a.g.Nets[a.resolve(id)]
	if !ok || n.Source == nil {
		return nil, ""
	}
	return a.g.Component(n.Source.Component), n.Source.Port
}

// splitterFeeding reports the splitter whose ordered pin outputs drive
// every net in ids, or nil. pins must equal the splitter's pin count so a
// partial read of a bus never collapses to the whole bus.
func (a *Adapter) splitterFeeding(ids []netlist.NetID, size, pins int) *netlist.Component {
	if len(ids) != pins {
		return nil
	}
	want, ok := lib.For(lib.OpSplitter, size)
	if !ok {
		return nil
	}
	var spl *netlist.Component
	for i, id := range ids {
		c, port := a.driverOf(id)
		if c == nil || c.Kind() != want || port != "out"+strconv.Itoa(i) {
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
	// Only erase the round trip when the splitter reads a real bus.
	if in, ok := spl.Conns["in"]; !ok || a.g.Net(in).Source == nil {
		return nil
	}
	return spl
}

// pack returns a net carrying the given bits as one size-wide bus,
// emitting maker components (or folding to constants, or erasing a
// splitter round trip) as needed. Fewer bits than size pad with zeros.
func (a *Adapter) pack(bits []netlist.NetID, size int) (netlist.NetID, error) {
	for i := range bits {
		bits[i] = a.resolve(bits[i])
	}
	if size == 1 {
		return bits[0], nil
	}

	// All-constant bit lists fold to a single constant component.
	value, allConst := uint64(0), true
	for i, id := range bits {
		v, ok := a.constOf(id)
		if !ok {
			allConst = false
			break
		}
		value |= v << uint(i)
	}
	if allConst {
		return a.constBus(value, size), nil
	}

	if size <= 8 {
		// A maker reading a splitter's pins in order is a round trip:
		// hand back the bus the splitter reads instead.
		if spl := a.splitterFeeding(bits, size, size); spl != nil {
			return spl.Conns["in"], nil
		}
		k, _ := lib.For(lib.OpMaker, size)
		m := a.g.AddKind(k)
		for i := 0; i < size; i++ {
			id := netlist.NetID("")
			if i < len(bits) {
				id = bits[i]
			} else {
				id = a.constBit(false)
			}
			a.g.BindSink(m, "in"+strconv.Itoa(i), id)
		}
		out := a.g.Fresh()
		if err := a.g.BindSource(m, "out", out); err != nil {
			return "", err
		}
		return out, nil
	}

	// Wide buses pack hierarchically through 8-bit chunks.
	_, pins := lib.ChunkPins(size)
	chunks := make([]netlist.NetID, pins)
	for i := 0; i < pins; i++ {
		lo := i * 8
		hi := lo + 8
		if lo > len(bits) {
			lo = len(bits)
		}
		if hi > len(bits) {
			hi = len(bits)
		}
		slice := make([]netlist.NetID, hi-lo)
		copy(slice, bits[lo:hi])
		chunk, err := a.pack(slice, 8)
		if err != nil {
			return "", err
		}
		chunks[i] = chunk
	}
	if spl := a.splitterFeeding(chunks, size, pins); spl != nil {
		return spl.Conns["in"], nil
	}
	k, _ := lib.For(lib.OpMaker, size)
	m := a.g.AddKind(k)
	for i, id := range chunks {
		a.g.BindSink(m, "in"+strconv.Itoa(i), id)
	}
	out := a.g.Fresh()
	if err := a.g.BindSource(m, "out", out); err != nil {
		return "", err
	}
	return out, nil
}

// packEmptyOK packs, treating an empty bit list as a zero constant.
func (a *Adapter) packEmptyOK(bits []netlist.NetID, size int) (netlist.NetID, error) {
	if len(bits) == 0 {
		return a.constBus(0, size), nil
	}
	return a.pack(bits, size)
}

// unpack drives the target bit list from a size-wide bus, emitting
// splitter components as needed. Literal targets are skipped; targets
// beyond the bus width are left unbound.
func (a *Adapter) unpack(bus netlist.NetID, bits []yosys.BitRef, size int) error {
	bus = a.resolve(bus)
	if size == 1 {
		tgt, ok := a.targetBit(bits[0])
		if !ok {
			return nil
		}
		return a.aliasNet(tgt, bus)
	}

	k, _ := lib.For(lib.OpSplitter, size)
	spl := a.g.AddKind(k)
	a.g.BindSink(spl, "in", bus)

	if size <= 8 {
		for i, b := range bits {
			if i >= size {
				break
			}
			tgt, ok := a.targetBit(b)
			if !ok {
				continue
			}
			if err := a.g.BindSource(spl, "out"+strconv.Itoa(i), tgt); err != nil {
				return err
			}
		}
		return nil
	}

	_, pins := lib.ChunkPins(size)
	for i := 0; i < pins; i++ {
		lo := i * 8
		if lo >= len(bits) {
			break
		}
		hi := lo + 8
		if hi > len(bits) {
			hi = len(bits)
		}
		chunk := a.g.Fresh()
		if err := a.g.BindSource(spl, "out"+strconv.Itoa(i), chunk); err != nil {
			return err
		}
		if err := a.unpack(chunk, bits[lo:hi], 8); err != nil {
			return err
		}
	}
	return nil
}
