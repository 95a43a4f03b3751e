package domain

import "errors"

// Error kinds raised by the transform. All of them end the run; nothing is
// published when one occurs.
var (
	// ErrInvalidCell marks a malformed H3 id or a parent resolution that is not
	// coarser than the cell.
	ErrInvalidCell = errors.New("invalid cell")

	// ErrAggregation marks a missing grouping column.
	ErrAggregation = errors.New("aggregation failed")

	// ErrSchema marks a batch without a column the step needs.
	ErrSchema = errors.New("schema mismatch")

	// ErrSpeedOutOfRange marks a speed that does not fit the published int16 fields.
	ErrSpeedOutOfRange = errors.New("speed out of int16 range")
)
