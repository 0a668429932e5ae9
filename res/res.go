// Package res holds the kernel template compiled by the benchmark.
package res

import "embed"

// GridMulPath is the template's path within FS.
const GridMulPath = "grid-mul.cl"

// FS contains grid-mul.cl.
//
//go:embed grid-mul.cl
var FS embed.FS
