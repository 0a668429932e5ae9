package bench

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
)

// ErrTemplate is returned when the kernel template cannot be loaded.
var ErrTemplate = errors.New("kernel template unavailable")

// SourceBuilder assembles per-size program sources around a kernel template.
// The template is read once and reused unmodified for every size.
type SourceBuilder struct {
	path string
	body string
}

// NewSourceBuilder reads the template at path from fsys.
func NewSourceBuilder(fsys fs.FS, path string) (*SourceBuilder, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrTemplate, path)
	}
	return &SourceBuilder{path: path, body: string(data)}, nil
}

// Path returns the template path the builder was loaded from.
func (b *SourceBuilder) Path() string {
	return b.path
}

// Fragments returns the sources for one size, in compile order: the real
// typedef, the gridsize and size definitions, then the template body.
func (b *SourceBuilder) Fragments(prec Precision, p ProblemSize) []string {
	return []string{
		typedefFragment(prec),
		"#define gridsize " + strconv.Itoa(p.GridSize) + "\n",
		"#define size " + strconv.Itoa(p.Size) + "\n",
		b.body,
	}
}

func typedefFragment(prec Precision) string {
	td := "typedef " + prec.String() + " real;\n"
	if prec == Double {
		return "#pragma OPENCL EXTENSION cl_khr_fp64 : enable\n" + td
	}
	return td
}
