package sparse

import "errors"

var (
	// ErrBadShape is returned when a requested shape has a non-positive dimension.
	ErrBadShape = errors.New("sparse: invalid shape")

	// ErrTripletLength indicates mismatched triplet slice lengths.
	ErrTripletLength = errors.New("sparse: triplet slices must have equal length")

	// ErrOutOfRange indicates a row or column index outside valid bounds.
	ErrOutOfRange = errors.New("sparse: index out of range")

	// ErrDimensionMismatch indicates incompatible operand dimensions.
	ErrDimensionMismatch = errors.New("sparse: dimension mismatch")

	// ErrNaNInf signals a NaN or ±Inf value where finite values are required.
	ErrNaNInf = errors.New("sparse: NaN or Inf encountered")

	// ErrNegativeEntry signals a negative entry in a matrix required to be
	// non-negative (all transition structures).
	ErrNegativeEntry = errors.New("sparse: negative entry")

	// ErrZeroRow is returned when a row holds no mass but an operation
	// (row normalization, stochasticity check) requires every row to have some.
	ErrZeroRow = errors.New("sparse: row has no mass")

	// ErrNotStochastic is returned when a row sum deviates from 1 beyond the
	// caller's tolerance.
	ErrNotStochastic = errors.New("sparse: matrix is not row-stochastic")

	// ErrNilMatrix indicates a nil *Matrix receiver or argument.
	ErrNilMatrix = errors.New("sparse: nil matrix")
)
