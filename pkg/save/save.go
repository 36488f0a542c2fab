package save

import (
	"fmt"
	"sort"

	"github.com/golang/snappy"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/route"
)

// FormatVersion is the container's leading version byte.
const FormatVersion = 6

// customDisplacement is the host's extra origin offset on placed Custom
// instances. A constant of the target format.
const customDisplacement = -32

// Header carries the payload's leading metadata block.
type Header struct {
	SaveID         uint64
	HubID          uint32
	GateCount      uint64
	Delay          uint64
	MenuVisible    bool
	ClockSpeed     uint32
	Dependencies   []uint64
	Description    string
	Camera         lib.Point
	SyncState      uint8
	CampaignBound  bool
	PlayerData     []byte
	HubDescription string
}

// Program is one selected program entry of a program-kind component.
type Program struct {
	ID   uint64
	Name string
}

// Component is one serialized component record. Pos already carries the
// bounds-origin correction (and the Custom displacement).
type Component struct {
	Kind     lib.Kind
	Pos      lib.Point
	Rotation lib.Rotation
	Label    string
	Setting1 uint64
	Setting2 uint64
	UIOrder  int

	CustomID uint64 // written for Custom kinds
	Programs []Program
}

// Payload is the full uncompressed save body.
type Payload struct {
	Header     Header
	Components []Component
	Wires      []route.Wire
}

// ComponentPos computes the stored position of a component: its placed
// top-left corner minus the template's bounding-box origin, with the
// host's extra displacement applied to Custom instances.
func ComponentPos(kind lib.Kind, placed lib.Point) lib.Point {
	if kind == lib.Custom {
		return lib.Point{X: placed.X + customDisplacement, Y: placed.Y + customDisplacement}
	}
	b := lib.ForKind(kind).Bounds
	return lib.Point{X: placed.X - b.MinX, Y: placed.Y - b.MinY}
}

// Encode serializes the payload. Nothing is emitted on error: the byte
// slice materializes only after every field encoded cleanly.
func (p *Payload) Encode() ([]byte, error) {
	w := &writer{}

	h := &p.Header
	w.U64(h.SaveID)
	w.U32(h.HubID)
	w.U64(h.GateCount)
	w.U64(h.Delay)
	w.Bool(h.MenuVisible)
	w.U32(h.ClockSpeed)
	if len(h.Dependencies) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d dependencies", ErrValueRange, len(h.Dependencies))
	}
	w.U16(uint16(len(h.Dependencies)))
	for _, d := range h.Dependencies {
		w.U64(d)
	}
	w.Str(h.Description)
	w.Point(h.Camera)
	w.U8(h.SyncState)
	w.Bool(h.CampaignBound)
	w.U16(0) // reserved
	w.Blob(h.PlayerData)
	w.Str(h.HubDescription)

	w.U64(uint64(len(p.Components)))
	for i := range p.Components {
		c := &p.Components[i]
		w.U16(uint16(c.Kind))
		w.Point(c.Pos)
		w.U8(uint8(c.Rotation))
		// Permanent ids are 1-based indices in component order.
		w.U64(uint64(i + 1))
		w.Str(c.Label)
		w.U64(c.Setting1)
		w.U64(c.Setting2)
		w.I16(c.UIOrder)
		if c.Kind == lib.Custom {
			w.U64(c.CustomID)
			w.Point(lib.Point{X: customDisplacement, Y: customDisplacement})
		}
		if len(c.Programs) > 0 {
			progs := make([]Program, len(c.Programs))
			copy(progs, c.Programs)
			sort.Slice(progs, func(a, b int) bool { return progs[a].ID < progs[b].ID })
			w.U16(uint16(len(progs)))
			for _, pr := range progs {
				w.U64(pr.ID)
				w.Str(pr.Name)
			}
		}
	}

	w.U64(uint64(len(p.Wires)))
	for i := range p.Wires {
		wire := &p.Wires[i]
		if len(wire.Body) == 0 {
			return nil, fmt.Errorf("wire %d has an empty body", i)
		}
		w.U8(uint8(wire.Kind))
		w.U8(wire.Color)
		w.Str(wire.Comment)
		w.Point(wire.Start)
		if w.err == nil {
			w.buf.Write(wire.Body)
		}
		if wire.Body[len(wire.Body)-1] == route.TeleportMarker {
			w.Point(wire.End)
		}
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// Container wraps an encoded payload in the versioned, snappy-compressed
// on-disk framing.
func Container(payload []byte) []byte {
	compressed := snappy.Encode(nil, payload)
	out := make([]byte, 0, 1+len(compressed))
	out = append(out, FormatVersion)
	return append(out, compressed...)
}

// Uncontainer reverses Container, verifying the version byte.
func Uncontainer(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty container")
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", data[0])
	}
	return snappy.Decode(nil, data[1:])
}
