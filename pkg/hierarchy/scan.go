// Package hierarchy discovers submodules in a source text, orders them
// bottom-up, and drives the full pipeline once per module so parents can
// instantiate compiled children as custom components.
package hierarchy

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
)

// ErrCycle is returned when module instantiations form a cycle.
var ErrCycle = errors.New("module dependency cycle")

// Decl is one module declaration found by the lexical scan.
type Decl struct {
	Name string
	Body string // declaration through endmodule
	Off  int    // byte offset of the "module" keyword
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// wordAt reports whether source[i:] starts the given word on identifier
// boundaries.
func wordAt(source string, i int, word string) bool {
	if !strings.HasPrefix(source[i:], word) {
		return false
	}
	if i > 0 && isIdentByte(source[i-1]) {
		return false
	}
	end := i + len(word)
	return end >= len(source) || !isIdentByte(source[end])
}

// ScanModules finds every module declaration by a lenient lexical scan.
// It does not parse the language; it only needs names and body extents.
func ScanModules(source string) []Decl {
	var decls []Decl
	for i := 0; i < len(source); i++ {
		if source[i] != 'm' || !wordAt(source, i, "module") {
			continue
		}
		j := i + len("module")
		for j < len(source) && (source[j] == ' ' || source[j] == '\t' || source[j] == '\n' || source[j] == '\r') {
			j++
		}
		start := j
		for j < len(source) && isIdentByte(source[j]) {
			j++
		}
		if j == start {
			continue
		}
		name := source[start:j]
		end := strings.Index(source[j:], "endmodule")
		if end < 0 {
			end = len(source) - j
		} else {
			end += len("endmodule")
		}
		decls = append(decls, Decl{Name: name, Body: source[i : j+end], Off: i})
		i = j + end - 1
	}
	return decls
}

// CustomID assigns the stable 63-bit identifier of a module: a numeric
// CUSTOM_ID parameter when the source declares one, else an FNV-1a hash
// of the module name with the top bit masked off.
func CustomID(d Decl) uint64 {
	if v, ok := declaredCustomID(d.Body); ok {
		return v & 0x7FFFFFFFFFFFFFFF
	}
	h := fnv.New64a()
	h.Write([]byte(d.Name))
	return h.Sum64() & 0x7FFFFFFFFFFFFFFF
}

// declaredCustomID scans the body for "CUSTOM_ID" followed by '=' and a
// decimal number.
func declaredCustomID(body string) (uint64, bool) {
	for i := 0; i+len("CUSTOM_ID") <= len(body); i++ {
		if body[i] != 'C' || !wordAt(body, i, "CUSTOM_ID") {
			continue
		}
		j := i + len("CUSTOM_ID")
		for j < len(body) && (body[j] == ' ' || body[j] == '\t' || body[j] == '=') {
			if body[j] == '=' {
				j++
				for j < len(body) && (body[j] == ' ' || body[j] == '\t') {
					j++
				}
				var v uint64
				ok := false
				for j < len(body) && body[j] >= '0' && body[j] <= '9' {
					v = v*10 + uint64(body[j]-'0')
					j++
					ok = true
				}
				if ok {
					return v, true
				}
				break
			}
			j++
		}
	}
	return 0, false
}

// Deps builds the dependency lists by textual containment: module b is a
// dependency of module a when b's name appears as a word anywhere in a's
// declaration text, its header and port list included.
func Deps(decls []Decl) map[string][]string {
	deps := make(map[string][]string, len(decls))
	for _, a := range decls {
		body := a.Body
		for _, b := range decls {
			if b.Name == a.Name {
				continue
			}
			found := false
			for i := 0; i+len(b.Name) <= len(body); i++ {
				if body[i] == b.Name[0] && wordAt(body, i, b.Name) {
					found = true
					break
				}
			}
			if found {
				deps[a.Name] = append(deps[a.Name], b.Name)
			}
		}
	}
	return deps
}

// TopoSort orders module names children-first by depth-first search,
// rejecting cycles.
func TopoSort(decls []Decl, deps map[string][]string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(decls))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: through %s", ErrCycle, name)
		}
		state[name] = visiting
		for _, d := range deps[name] {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}
	for _, d := range decls {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// InjectBlackbox prefixes every module declaration except keep's with a
// blackbox attribute so the synthesizer preserves instances of them
// instead of flattening.
func InjectBlackbox(source string, keep string) string {
	decls := ScanModules(source)
	var sb strings.Builder
	last := 0
	for _, d := range decls {
		if d.Name == keep {
			continue
		}
		sb.WriteString(source[last:d.Off])
		sb.WriteString("(* blackbox *)\n")
		last = d.Off
	}
	sb.WriteString(source[last:])
	return sb.String()
}
