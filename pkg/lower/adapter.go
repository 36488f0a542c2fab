// Package lower translates a synthesized module into the netlist graph:
// module ports become IO components, cells become gate, register, arithmetic
// and comparison sub-circuits, and buses are packed and unpacked through
// maker and splitter components.
package lower

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/netlist"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

// Lowering failure modes. All abort the compile.
var (
	ErrUnknownCell = errors.New("unknown cell type")
	ErrTooWide     = errors.New("bus width beyond 64 bits")
	ErrNoDriver    = errors.New("module output has no driver")
)

// CustomPort is one exported pin of a compiled submodule. Pos is in
// 8-cell units with the host's -16-unit origin offset applied.
type CustomPort struct {
	Name  string
	Dir   lib.Dir
	Width int
	Pos   lib.Point
}

// CustomInfo is the metadata a parent needs to instantiate a compiled
// submodule as an opaque block: its 63-bit identifier, its bounding box
// in units of 8 grid cells, and its exported ports.
type CustomInfo struct {
	ID            uint64
	Width, Height int
	Ports         []CustomPort
}

// unitCells is the grid-cell size of one metadata unit.
const unitCells = 8

// originOffset is the host's origin offset on exported port and bounding
// box coordinates, in metadata units.
const originOffset = -16

// GridSize returns the block footprint in grid cells.
func (ci *CustomInfo) GridSize() (w, h int) {
	return ci.Width * unitCells, ci.Height * unitCells
}

// GridPos converts an exported port position back to grid cells relative
// to the block's top-left corner.
func (p *CustomPort) GridPos() lib.Point {
	return lib.Point{
		X: (p.Pos.X - originOffset) * unitCells,
		Y: (p.Pos.Y - originOffset) * unitCells,
	}
}

// Port looks up an exported pin by name.
func (ci *CustomInfo) Port(name string) *CustomPort {
	for i := range ci.Ports {
		if ci.Ports[i].Name == name {
			return &ci.Ports[i]
		}
	}
	return nil
}

// Adapter lowers one synthesized module.
type Adapter struct {
	g       *netlist.Graph
	mod     *yosys.Module
	customs map[string]*CustomInfo

	alias    map[netlist.NetID]netlist.NetID
	constVal map[netlist.NetID]uint64
	isConst  map[netlist.NetID]bool
}

// Run lowers mod into a fresh netlist graph. customs maps submodule names
// to their compiled metadata; nil when the design is flat.
func Run(mod *yosys.Module, customs map[string]*CustomInfo) (*netlist.Graph, error) {
	a := &Adapter{
		g:        netlist.New(),
		mod:      mod,
		customs:  customs,
		alias:    make(map[netlist.NetID]netlist.NetID),
		constVal: make(map[netlist.NetID]uint64),
		isConst:  make(map[netlist.NetID]bool),
	}
	if err := a.run(); err != nil {
		return nil, err
	}
	return a.g, nil
}

func (a *Adapter) run() error {
	if err := a.lowerInputPorts(); err != nil {
		return err
	}
	if err := a.lowerCells(); err != nil {
		return err
	}
	// Output ports go last: their drivers must exist by now.
	if err := a.lowerOutputPorts(); err != nil {
		return err
	}
	a.optimize()
	return a.g.Check()
}

// sortedKeys gives deterministic iteration over JSON dictionaries.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolve follows alias chains down to the canonical net id.
func (a *Adapter) resolve(id netlist.NetID) netlist.NetID {
	for {
		to, ok := a.alias[id]
		if !ok {
			return id
		}
		id = to
	}
}

// aliasNet redirects every current and future reference of from onto to.
// Existing sinks move over; a driver on from is a conflict.
func (a *Adapter) aliasNet(from, to netlist.NetID) error {
	from, to = a.resolve(from), a.resolve(to)
	if from == to {
		return nil
	}
	old, ok := a.g.Nets[from]
	if ok {
		if old.Source != nil {
			return fmt.Errorf("%w: net %s aliased while driven", netlist.ErrDriverConflict, from)
		}
		dst := a.g.Net(to)
		for _, s := range old.Sinks {
			dst.Sinks = append(dst.Sinks, s)
			if c := a.g.Component(s.Component); c != nil {
				c.Conns[s.Port] = to
			}
		}
		a.g.DropNet(from)
	}
	a.alias[from] = to
	return nil
}

// markConst records that a net carries a known constant value.
func (a *Adapter) markConst(id netlist.NetID, v uint64) {
	a.isConst[id] = true
	a.constVal[id] = v
}

// constOf reports the constant value of a net, if known.
func (a *Adapter) constOf(id netlist.NetID) (uint64, bool) {
	id = a.resolve(id)
	v, ok := a.constVal[id]
	if !ok || !a.isConst[id] {
		return 0, false
	}
	return v, ok
}

// constBit mints a fresh net driven by an Off or On component. Constants
// are never shared between references: a later driver-uniqueness pass
// depends on every constant net having exactly one driver and the final
// cleanup removes the unreachable ones.
func (a *Adapter) constBit(one bool) netlist.NetID {
	k := lib.Off
	v := uint64(0)
	if one {
		k = lib.On
		v = 1
	}
	c := a.g.AddKind(k)
	id := a.g.Fresh()
	// A fresh net can't already have a driver.
	_ = a.g.BindSource(c, "out", id)
	a.markConst(id, v)
	return id
}

// constBus mints a width-wide constant bus carrying value.
func (a *Adapter) constBus(value uint64, size int) netlist.NetID {
	if size == 1 {
		return a.constBit(value != 0)
	}
	k, ok := lib.For(lib.OpConst, size)
	if !ok {
		panic("constBus: width outside the library: " + strconv.Itoa(size))
	}
	c := a.g.AddKind(k)
	c.Setting = value
	id := a.g.Fresh()
	_ = a.g.BindSource(c, "out", id)
	a.markConst(id, value)
	return id
}

// inputBit normalizes one bit reference used as a gate input. Literals
// materialize their own constant-driver component.
func (a *Adapter) inputBit(b yosys.BitRef) netlist.NetID {
	if b.IsLit() {
		// "x" and "z" read as 0 in the target.
		return a.constBit(b.Lit == "1")
	}
	return a.resolve(netlist.NetID(strconv.Itoa(b.Num)))
}

// inputBits normalizes a full bit list.
func (a *Adapter) inputBits(bits []yosys.BitRef) []netlist.NetID {
	out := make([]netlist.NetID, len(bits))
	for i, b := range bits {
		out[i] = a.inputBit(b)
	}
	return out
}

// targetBit normalizes one bit reference used as a cell output. Literal
// targets have no net and are skipped by the caller.
func (a *Adapter) targetBit(b yosys.BitRef) (netlist.NetID, bool) {
	if b.IsLit() {
		return "", false
	}
	return a.resolve(netlist.NetID(strconv.Itoa(b.Num))), true
}

// loweredSize maps a bit count to a library bus width.
func loweredSize(n int) (int, error) {
	switch {
	case n <= 1:
		return 1, nil
	case n <= 8:
		return 8, nil
	case n <= 16:
		return 16, nil
	case n <= 32:
		return 32, nil
	case n <= 64:
		return 64, nil
	}
	return 0, fmt.Errorf("%w: %d bits", ErrTooWide, n)
}

// lowerInputPorts creates one Input component per module input port.
func (a *Adapter) lowerInputPorts() error {
	for _, name := range sortedKeys(a.mod.Ports) {
		p := a.mod.Ports[name]
		if p.Direction != "input" {
			continue
		}
		size, err := loweredSize(len(p.Bits))
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		k, _ := lib.For(lib.OpInput, size)
		c := a.g.AddKind(k)
		c.Label = name
		c.Module = &netlist.ModulePort{Name: name, Dir: lib.In, Bit: -1}

		if size == 1 {
			id, ok := a.targetBit(p.Bits[0])
			if !ok {
				continue
			}
			if err := a.g.BindSource(c, "out", id); err != nil {
				return fmt.Errorf("input %s: %w", name, err)
			}
			continue
		}
		bus := a.g.Fresh()
		if err := a.g.BindSource(c, "out", bus); err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		if err := a.unpack(bus, p.Bits, size); err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
	}
	return nil
}

// lowerOutputPorts creates one Output component per module output port and
// verifies each has a driver.
func (a *Adapter) lowerOutputPorts() error {
	for _, name := range sortedKeys(a.mod.Ports) {
		p := a.mod.Ports[name]
		if p.Direction != "output" {
			continue
		}
		size, err := loweredSize(len(p.Bits))
		if err != nil {
			return fmt.Errorf("output %s: %w", name, err)
		}
		k, _ := lib.For(lib.OpOutput, size)
		c := a.g.AddKind(k)
		c.Label = name
		c.Module = &netlist.ModulePort{Name: name, Dir: lib.Out, Bit: -1}

		bus, err := a.pack(a.inputBits(p.Bits), size)
		if err != nil {
			return fmt.Errorf("output %s: %w", name, err)
		}
		a.g.BindSink(c, "in", bus)
		if a.g.Net(bus).Source == nil {
			return fmt.Errorf("%w: output %s", ErrNoDriver, name)
		}
	}
	return nil
}

// lowerCells dispatches every cell through the lowering table.
func (a *Adapter) lowerCells() error {
	for _, name := range sortedKeys(a.mod.Cells) {
		cell := a.mod.Cells[name]
		if err := a.lowerCell(name, cell); err != nil {
			return fmt.Errorf("cell %s (%s): %w", name, cell.Type, err)
		}
	}
	return nil
}
