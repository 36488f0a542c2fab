package hierarchy

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/compile"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/layout"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/lower"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
)

// Driver compiles a source text: every submodule the top reaches,
// bottom-up, then the top.
type Driver struct {
	Source    string
	Top       string
	Compact   bool
	NoFlatten bool
	Verbose   bool
	Oracle    layout.Oracle
}

// Compiled is one finished module.
type Compiled struct {
	Name string
	Data []byte
}

// Project is the full compile output: the top plus its submodules in
// dependency order.
type Project struct {
	Top  Compiled
	Subs []Compiled
}

// Compile runs the pipeline once per module in topological order, skipping
// modules outside the top's dependency closure. Child metadata lands in
// the custom map before any parent needs it.
func (d *Driver) Compile() (*Project, error) {
	decls := ScanModules(d.Source)
	if len(decls) == 0 {
		return nil, fmt.Errorf("no module declarations in source")
	}
	byName := make(map[string]Decl, len(decls))
	for _, decl := range decls {
		byName[decl.Name] = decl
	}
	if _, ok := byName[d.Top]; !ok {
		return nil, fmt.Errorf("unknown top module %q", d.Top)
	}

	ids := make(map[string]uint64, len(decls))
	for _, decl := range decls {
		ids[decl.Name] = CustomID(decl)
	}

	deps := Deps(decls)
	order, err := TopoSort(decls, deps)
	if err != nil {
		return nil, err
	}

	customs := make(map[string]*lower.CustomInfo, len(decls))
	project := &Project{}

	for _, name := range order {
		if name != d.Top && !reachable(deps, d.Top, name) {
			continue
		}
		if d.Verbose {
			log.Printf("compiling module %s (id %d)", name, ids[name])
		}

		design, err := yosys.Synthesize(InjectBlackbox(d.Source, name), yosys.Options{
			Top:       name,
			NoFlatten: d.NoFlatten,
			Verbose:   d.Verbose,
		})
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		mod, err := design.ModuleNamed(name)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}

		var depIDs []uint64
		for _, dep := range deps[name] {
			depIDs = append(depIDs, ids[dep])
		}

		res, err := compile.Module(compile.Config{
			Module:       mod,
			Name:         name,
			SaveID:       ids[name],
			Customs:      customs,
			Dependencies: depIDs,
			Compact:      d.Compact,
			Oracle:       d.Oracle,
		})
		if err != nil {
			return nil, err
		}
		customs[name] = res.Meta

		if name == d.Top {
			project.Top = Compiled{Name: name, Data: res.Data}
		} else {
			project.Subs = append(project.Subs, Compiled{Name: name, Data: res.Data})
		}
	}
	return project, nil
}

// reachable reports whether target is in the dependency closure of from.
func reachable(deps map[string][]string, from, target string) bool {
	seen := make(map[string]bool)
	var walk func(string) bool
	walk = func(name string) bool {
		if seen[name] {
			return false
		}
		seen[name] = true
		for _, d := range deps[name] {
			if d == target || walk(d) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// Write puts the top's container at <dir>/circuit.data and every
// submodule under dependencies/<name>/circuit.data.
func (p *Project) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "circuit.data"), p.Top.Data, 0o644); err != nil {
		return err
	}
	for _, sub := range p.Subs {
		subDir := filepath.Join(dir, "dependencies", sub.Name)
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(subDir, "circuit.data"), sub.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
