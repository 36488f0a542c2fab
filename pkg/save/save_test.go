package save

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lib"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/route"
)

func minimalPayload() *Payload {
	return &Payload{
		Header: Header{
			SaveID:       0x1122334455667788,
			HubID:        7,
			GateCount:    2,
			Description:  "top",
			Camera:       lib.Point{X: -3, Y: 4},
			Dependencies: []uint64{42},
		},
		Components: []Component{
			{Kind: lib.Input1, Pos: lib.Point{X: 1, Y: 2}, Label: "a"},
			{Kind: lib.Output1, Pos: lib.Point{X: 9, Y: 2}, Label: "y"},
		},
		Wires: []route.Wire{
			{Kind: route.Wk1, Start: lib.Point{X: 2, Y: 2}, Body: []byte{0<<5 | 6, 0}},
		},
	}
}

// TestHeaderLayout walks the encoded header field by field.
func TestHeaderLayout(t *testing.T) {
	data, err := minimalPayload().Encode()
	if err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(data)
	u64 := func() uint64 {
		var v uint64
		binary.Read(r, binary.LittleEndian, &v)
		return v
	}
	u32 := func() uint32 {
		var v uint32
		binary.Read(r, binary.LittleEndian, &v)
		return v
	}
	u16 := func() uint16 {
		var v uint16
		binary.Read(r, binary.LittleEndian, &v)
		return v
	}
	u8 := func() uint8 {
		var v uint8
		binary.Read(r, binary.LittleEndian, &v)
		return v
	}
	i16 := func() int16 {
		var v int16
		binary.Read(r, binary.LittleEndian, &v)
		return v
	}

	if got := u64(); got != 0x1122334455667788 {
		t.Fatalf("save id %#x", got)
	}
	if got := u32(); got != 7 {
		t.Fatalf("hub id %d", got)
	}
	if got := u64(); got != 2 {
		t.Fatalf("gate count %d", got)
	}
	if got := u64(); got != 0 {
		t.Fatalf("delay %d", got)
	}
	if got := u8(); got != 0 {
		t.Fatalf("menu visible %d", got)
	}
	if got := u32(); got != 0 {
		t.Fatalf("clock speed %d", got)
	}
	if got := u16(); got != 1 {
		t.Fatalf("dependency count %d", got)
	}
	if got := u64(); got != 42 {
		t.Fatalf("dependency id %d", got)
	}
	if got := u16(); got != 3 {
		t.Fatalf("description length %d", got)
	}
	desc := make([]byte, 3)
	r.Read(desc)
	if string(desc) != "top" {
		t.Fatalf("description %q", desc)
	}
	if x, y := i16(), i16(); x != -3 || y != 4 {
		t.Fatalf("camera (%d,%d)", x, y)
	}
	u8() // sync
	u8() // campaign bound
	if got := u16(); got != 0 {
		t.Fatalf("reserved %d", got)
	}
	if got := u16(); got != 0 {
		t.Fatalf("player data length %d", got)
	}
	if got := u16(); got != 0 {
		t.Fatalf("hub description length %d", got)
	}

	// Components block.
	if got := u64(); got != 2 {
		t.Fatalf("component count %d", got)
	}
	if got := u16(); got != uint16(lib.Input1) {
		t.Fatalf("first kind %d", got)
	}
	if x, y := i16(), i16(); x != 1 || y != 2 {
		t.Fatalf("first pos (%d,%d)", x, y)
	}
	u8() // rotation
	if got := u64(); got != 1 {
		t.Fatalf("first permanent id %d, want 1", got)
	}
}

// TestPermanentIDs are 1-based component indices.
func TestPermanentIDs(t *testing.T) {
	p := minimalPayload()
	data, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	// Parse forward to each component's permanent id and compare.
	ids := extractPermanentIDs(t, data, len(p.Components))
	for i, id := range ids {
		if id != uint64(i+1) {
			t.Fatalf("component %d has permanent id %d", i, id)
		}
	}
}

func extractPermanentIDs(t *testing.T, data []byte, count int) []uint64 {
	t.Helper()
	r := bytes.NewReader(data)
	skip := func(n int) { r.Seek(int64(n), 1) }
	var u16v uint16
	var u64v uint64
	skip(8 + 4 + 8 + 8 + 1 + 4)
	binary.Read(r, binary.LittleEndian, &u16v) // deps
	skip(int(u16v) * 8)
	binary.Read(r, binary.LittleEndian, &u16v) // description
	skip(int(u16v))
	skip(4 + 1 + 1 + 2)
	binary.Read(r, binary.LittleEndian, &u16v) // player data
	skip(int(u16v))
	binary.Read(r, binary.LittleEndian, &u16v) // hub description
	skip(int(u16v))
	binary.Read(r, binary.LittleEndian, &u64v) // component count
	if u64v != uint64(count) {
		t.Fatalf("component count %d, want %d", u64v, count)
	}
	ids := make([]uint64, count)
	for i := 0; i < count; i++ {
		skip(2 + 4 + 1)
		binary.Read(r, binary.LittleEndian, &ids[i])
		binary.Read(r, binary.LittleEndian, &u16v) // label
		skip(int(u16v))
		skip(8 + 8 + 2)
	}
	return ids
}

// TestWireBlock checks the teleport end point is present exactly when the
// body ends in the marker.
func TestWireBlock(t *testing.T) {
	p := &Payload{
		Wires: []route.Wire{
			{Kind: route.Wk8, Start: lib.Point{X: 1, Y: 1}, Body: []byte{route.TeleportMarker},
				End: lib.Point{X: 5, Y: 6}, Teleport: true},
		},
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	// Tail: 1 kind, 1 color, 2 comment len, 4 start, 1 marker, 4 end.
	tail := data[len(data)-13:]
	if tail[0] != uint8(route.Wk8) {
		t.Fatalf("wire kind %d", tail[0])
	}
	if tail[8] != route.TeleportMarker {
		t.Fatalf("marker byte %#x", tail[8])
	}
	endX := int16(binary.LittleEndian.Uint16(tail[9:]))
	endY := int16(binary.LittleEndian.Uint16(tail[11:]))
	if endX != 5 || endY != 6 {
		t.Fatalf("teleport end (%d,%d)", endX, endY)
	}
}

// TestComponentPos applies the bounds-origin correction, and the extra
// displacement for Custom kinds.
func TestComponentPos(t *testing.T) {
	// AND_1 bounds start at (-1,-1): stored = placed - min.
	got := ComponentPos(lib.And1, lib.Point{X: 10, Y: 20})
	if got != (lib.Point{X: 11, Y: 21}) {
		t.Fatalf("gate pos %+v", got)
	}
	got = ComponentPos(lib.Custom, lib.Point{X: 10, Y: 20})
	if got != (lib.Point{X: -22, Y: -12}) {
		t.Fatalf("custom pos %+v", got)
	}
}

// TestContainerRoundTrip: decompressing the post-version tail yields the
// exact payload.
func TestContainerRoundTrip(t *testing.T) {
	payload, err := minimalPayload().Encode()
	if err != nil {
		t.Fatal(err)
	}
	container := Container(payload)
	if container[0] != FormatVersion {
		t.Fatalf("version byte %d", container[0])
	}
	back, err := Uncontainer(container)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, payload) {
		t.Fatal("container round trip mismatch")
	}
}

// TestStringTooLong rejects oversized strings with no partial output.
func TestStringTooLong(t *testing.T) {
	p := minimalPayload()
	p.Header.Description = strings.Repeat("x", 70000)
	_, err := p.Encode()
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("got %v, want ErrStringTooLong", err)
	}
}

// TestPointRange rejects coordinates outside int16.
func TestPointRange(t *testing.T) {
	p := minimalPayload()
	p.Components[0].Pos = lib.Point{X: 40000, Y: 0}
	_, err := p.Encode()
	if !errors.Is(err, ErrValueRange) {
		t.Fatalf("got %v, want ErrValueRange", err)
	}
}

// TestDeterminism: encoding the same payload twice is byte-identical.
func TestDeterminism(t *testing.T) {
	a, err := minimalPayload().Encode()
	if err != nil {
		t.Fatal(err)
	}
	b, err := minimalPayload().Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("two encodes differ")
	}
}
