package yosys

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
)

// Options configures one synthesizer invocation.
type Options struct {
	Top       string // top module name, required
	NoFlatten bool   // keep the hierarchy instead of flattening
	Verbose   bool   // pass synthesizer output through to stderr
}

// Binary returns the synthesizer executable, overridable via VTTC_YOSYS.
func Binary() string {
	return env.Str("VTTC_YOSYS", "yosys")
}

// keepJSON reports whether intermediate JSON files should be left on disk.
func keepJSON() bool {
	return env.Bool("VTTC_KEEP_JSON")
}

// Synthesize runs the external synthesizer over one source text and returns
// the parsed JSON netlist. The source is handed over through a temporary
// file so attribute-injected texts need no file of their own.
func Synthesize(source string, opts Options) (*Design, error) {
	if opts.Top == "" {
		return nil, fmt.Errorf("synthesize: no top module")
	}

	dir, err := os.MkdirTemp("", "vttc-synth-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if !keepJSON() {
			os.RemoveAll(dir)
		}
	}()

	srcPath := filepath.Join(dir, "input.sv")
	jsonPath := filepath.Join(dir, "output.json")
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return nil, err
	}

	script := []string{
		"read_verilog -sv " + srcPath,
		"hierarchy -top " + opts.Top,
		"proc",
	}
	if !opts.NoFlatten {
		script = append(script, "flatten")
	}
	script = append(script,
		"opt",
		"memory",
		"opt_clean",
		"write_json "+jsonPath,
	)

	cmd := exec.Command(Binary(), "-q", "-p", strings.Join(script, "; "))
	if opts.Verbose {
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = nil
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("synthesizer failed: %w", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("synthesizer wrote no netlist: %w", err)
	}
	if keepJSON() {
		fmt.Fprintf(os.Stderr, "kept synthesis json at %s\n", jsonPath)
	}
	return Parse(data)
}
