package yosys

import "testing"

const sample = `{
  "modules": {
    "top": {
      "ports": {
        "a": {"direction": "input", "bits": [2]},
        "y": {"direction": "output", "bits": ["0", 3, "1", "x"]}
      },
      "cells": {
        "and0": {
          "type": "$and",
          "parameters": {"A_WIDTH": "00000001", "Y_WIDTH": 1, "A_SIGNED": "0"},
          "connections": {"A": [2], "B": ["1"], "Y": [3]}
        }
      }
    }
  }
}`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	m, err := d.ModuleNamed("top")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Ports) != 2 || len(m.Cells) != 1 {
		t.Fatalf("ports=%d cells=%d", len(m.Ports), len(m.Cells))
	}

	y := m.Ports["y"].Bits
	if !y[0].IsLit() || y[0].Lit != "0" {
		t.Fatalf("bit 0: %+v", y[0])
	}
	if y[1].IsLit() || y[1].Num != 3 {
		t.Fatalf("bit 1: %+v", y[1])
	}
	if y[3].Lit != "x" {
		t.Fatalf("bit 3: %+v", y[3])
	}

	cell := m.Cells["and0"]
	if cell.Parameters.Uint64("A_WIDTH", 0) != 1 {
		t.Fatalf("binary-string parameter misread")
	}
	if cell.Parameters.Int("Y_WIDTH", 0) != 1 {
		t.Fatalf("numeric parameter misread")
	}
	if cell.Parameters.Bool("A_SIGNED", true) {
		t.Fatalf("bool parameter misread")
	}
	if cell.Parameters.Uint64("MISSING", 7) != 7 {
		t.Fatalf("default not applied")
	}
}

func TestModuleNamedUnknown(t *testing.T) {
	d, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.ModuleNamed("nope"); err == nil {
		t.Fatal("unknown module accepted")
	}
}
