package taskcache

import "errors"

var (
	// ErrNilKey is returned when an operation receives a nil key.
	ErrNilKey = errors.New("nil key")

	// ErrNilComputation is returned by Supply when the computation is nil.
	ErrNilComputation = errors.New("nil computation")

	// ErrCanceled is the error carried by tasks canceled by Invalidate,
	// InvalidateAll or Close.
	ErrCanceled = errors.New("computation canceled")
)
