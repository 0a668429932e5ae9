package host

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// ErrBuild marks a program the host backend could not specialise.
var ErrBuild = errors.New("host build failed")

var (
	typedefRe = regexp.MustCompile(`(?m)^\s*typedef\s+(\w+)\s+real\s*;`)
	defineRe  = regexp.MustCompile(`(?m)^\s*#define\s+(gridsize|size)\s+(\S+)\s*$`)
	kernelRe  = regexp.MustCompile(`__kernel\s+void\s+(\w+)\s*\(`)
)

type program struct {
	elemSize int
	gridSize int
	size     int
	entries  map[string]bool
}

// Build reads the real, gridsize and size definitions injected ahead of the
// template and records the template's kernel entry points. Diagnostics are
// returned in compiler-log form.
func (r *Runtime) Build(sources []string) (gpu.Program, string, error) {
	src := strings.Join(sources, "")
	var diags []string
	fail := func(format string, args ...any) {
		diags = append(diags, "error: "+fmt.Sprintf(format, args...))
	}

	p := &program{entries: make(map[string]bool)}

	if m := typedefRe.FindStringSubmatch(src); m == nil {
		fail("unknown type name 'real'")
	} else {
		switch m[1] {
		case "float":
			p.elemSize = 4
		case "double":
			if !r.Device.SupportsDouble() {
				fail("use of type 'double' requires %s extension to be enabled", gpu.ExtensionFP64)
			}
			p.elemSize = 8
		default:
			fail("unsupported real type '%s'", m[1])
		}
	}

	for _, m := range defineRe.FindAllStringSubmatch(src, -1) {
		v, err := strconv.Atoi(m[2])
		if err != nil || v < 1 {
			fail("macro '%s' must be a positive integer, got '%s'", m[1], m[2])
			continue
		}
		if m[1] == "gridsize" {
			p.gridSize = v
		} else {
			p.size = v
		}
	}
	if p.gridSize == 0 {
		fail("use of undeclared identifier 'gridsize'")
	}
	if p.size == 0 {
		fail("use of undeclared identifier 'size'")
	}

	for _, m := range kernelRe.FindAllStringSubmatch(src, -1) {
		p.entries[m[1]] = true
	}
	if len(p.entries) == 0 {
		fail("no kernel entry points")
	}

	if len(diags) > 0 {
		return nil, strings.Join(diags, "\n"), fmt.Errorf("%w: %d error(s)", ErrBuild, len(diags))
	}
	return p, "", nil
}

func (p *program) vectorLen() int { return p.gridSize * p.gridSize * p.size }

func (p *program) matrixLen() int { return p.gridSize * p.gridSize * p.size * p.size }

func (p *program) Kernel(name string) (gpu.Kernel, error) {
	if !p.entries[name] {
		return nil, fmt.Errorf("kernel %q not found in program", name)
	}
	return &kernel{prog: p, name: name}, nil
}

func (p *program) Release() {}

type kernel struct {
	prog *program
	name string
	args []*buffer
}

func (k *kernel) Name() string { return k.name }

// SetArgs binds (y, A, x), checking each buffer against the specialised sizes.
func (k *kernel) SetArgs(args ...gpu.Buffer) error {
	if len(args) != 3 {
		return fmt.Errorf("kernel %s: want 3 arguments (y, A, x), got %d", k.name, len(args))
	}
	want := []int{
		k.prog.vectorLen() * k.prog.elemSize,
		k.prog.matrixLen() * k.prog.elemSize,
		k.prog.vectorLen() * k.prog.elemSize,
	}
	bound := make([]*buffer, len(args))
	for i, arg := range args {
		b, ok := arg.(*buffer)
		if !ok {
			return fmt.Errorf("kernel %s: argument %d: buffer %T not created by the host runtime", k.name, i, arg)
		}
		if b.size < want[i] {
			return fmt.Errorf("kernel %s: argument %d: buffer holds %d bytes, need %d", k.name, i, b.size, want[i])
		}
		bound[i] = b
	}
	k.args = bound
	return nil
}

func (k *kernel) Release() {
	k.args = nil
}
