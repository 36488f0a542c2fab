// Package yosys models the synthesizer's JSON netlist output and drives the
// external synthesizer process. Only the slices of the format the compiler
// consumes are modeled: module ports and cells.
package yosys

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Design is the top-level JSON document.
type Design struct {
	Modules map[string]*Module `json:"modules"`
}

// Module is one synthesized module.
type Module struct {
	Ports map[string]*Port `json:"ports"`
	Cells map[string]*Cell `json:"cells"`
}

// Port is a module-level pin with its bit list.
type Port struct {
	Direction string   `json:"direction"` // "input" or "output"
	Bits      []BitRef `json:"bits"`
}

// Cell is one synthesized cell.
type Cell struct {
	Type        string              `json:"type"`
	Parameters  Params              `json:"parameters"`
	Connections map[string][]BitRef `json:"connections"`
}

// BitRef is one bit reference: either a numeric net id or one of the
// literal states "0", "1", "x", "z".
type BitRef struct {
	Num int
	Lit string // empty when Num is valid
}

// IsLit reports whether the reference is a literal state.
func (b BitRef) IsLit() bool { return b.Lit != "" }

// String renders the reference the way the JSON spells it.
func (b BitRef) String() string {
	if b.IsLit() {
		return b.Lit
	}
	return strconv.Itoa(b.Num)
}

// UnmarshalJSON accepts both the numeric and the literal spelling.
func (b *BitRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "0", "1", "x", "z":
			b.Lit = s
			return nil
		}
		// Some front ends emit numeric ids as strings.
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("bad bit reference %q", s)
		}
		b.Num = n
		return nil
	}
	return json.Unmarshal(data, &b.Num)
}

// Params is a cell parameter dictionary. The synthesizer spells values
// either as JSON numbers or as binary digit strings ("00000001").
type Params map[string]json.RawMessage

// Uint64 decodes a numeric parameter, defaulting when absent.
func (p Params) Uint64(name string, def uint64) uint64 {
	raw, ok := p[name]
	if !ok {
		return def
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return def
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return def
		}
		// Binary digit string; unknown bits read as 0.
		var v uint64
		for _, c := range s {
			v <<= 1
			if c == '1' {
				v |= 1
			}
		}
		return v
	}
	var n uint64
	if json.Unmarshal(raw, &n) != nil {
		return def
	}
	return n
}

// Int decodes a small numeric parameter, defaulting when absent.
func (p Params) Int(name string, def int) int {
	return int(p.Uint64(name, uint64(def)))
}

// Bool decodes a 0/1 parameter, defaulting when absent.
func (p Params) Bool(name string, def bool) bool {
	d := uint64(0)
	if def {
		d = 1
	}
	return p.Uint64(name, d) != 0
}

// Parse decodes a synthesizer JSON document.
func Parse(data []byte) (*Design, error) {
	var d Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse synthesizer json: %w", err)
	}
	if d.Modules == nil {
		return nil, fmt.Errorf("synthesizer json has no modules")
	}
	return &d, nil
}

// ModuleNamed fetches one module, erroring on unknown names.
func (d *Design) ModuleNamed(name string) (*Module, error) {
	m, ok := d.Modules[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return m, nil
}
