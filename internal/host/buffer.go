package host

import (
	"fmt"
	"unsafe"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// buffer backs device memory with float64 words so both element widths can
// be viewed without misalignment.
type buffer struct {
	words []float64
	size  int
}

// NewBuffer allocates a zeroed buffer of the given byte size.
func (r *Runtime) NewBuffer(bytes int) (gpu.Buffer, error) {
	if bytes <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", bytes)
	}
	return &buffer{words: make([]float64, (bytes+7)/8), size: bytes}, nil
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() {
	b.words = nil
}

func (b *buffer) float32s() []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.words[0])), b.size/4)
}

func (b *buffer) float64s() []float64 {
	return b.words[:b.size/8]
}
