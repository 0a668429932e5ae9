package bench

// ProblemSize is one sweep step. Size scales both the vector slice and the
// matrix block owned by each of the GridSize x GridSize cells.
type ProblemSize struct {
	Size     int
	GridSize int
}

// VectorLen is the element count of x and y.
func (p ProblemSize) VectorLen() int {
	return p.GridSize * p.GridSize * p.Size
}

// MatrixLen is the element count of A.
func (p ProblemSize) MatrixLen() int {
	return p.GridSize * p.GridSize * p.Size * p.Size
}
