package bench

import "fmt"

// CompileError reports a failed program build for one problem size. Log holds
// the full compiler diagnostic output.
type CompileError struct {
	Size int
	Log  string
	Err  error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("failed to build program executable for size %d: %v", e.Size, e.Err)
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// DispatchError reports a failed allocation, dispatch, wait or profiling read
// while benchmarking one problem size.
type DispatchError struct {
	Size int
	Op   string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("size %d: %s: %v", e.Size, e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
