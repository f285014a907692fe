package bigmat

import "errors"

// Sentinel errors returned by bigmat operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrShape indicates a non-positive row or column count.
	//
	// This is a programming error.
	ErrShape = errors.New("bigmat: invalid shape")

	// ErrType indicates an element type tag outside the closed set
	// supplied through an external surface (descriptor file, CLI).
	ErrType = errors.New("bigmat: invalid element type")

	// ErrNames indicates row/column names whose length does not match
	// the matrix shape. Names are all-or-nothing: empty or exact length.
	ErrNames = errors.New("bigmat: names length mismatch")

	// ErrDestroyed indicates use of a handle after [Matrix.Destroy].
	//
	// Handles are single-use; this is a programming error.
	ErrDestroyed = errors.New("bigmat: matrix destroyed")

	// ErrColumnRange indicates a column index outside [0, Cols).
	ErrColumnRange = errors.New("bigmat: column index out of range")

	// ErrDescriptor indicates a descriptor file that cannot be parsed or
	// describes an unknown backing kind.
	//
	// Recovery: fix or regenerate the descriptor.
	ErrDescriptor = errors.New("bigmat: invalid descriptor")
)
