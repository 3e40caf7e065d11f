package ad9912

import "errors"

var (
	// ErrInvalidBoard indicates a board number outside [1, 3].
	ErrInvalidBoard = errors.New("board number must be in [1, 3]")

	// ErrInvalidChannel indicates a channel other than 1 or 2.
	ErrInvalidChannel = errors.New("channel must be 1 or 2")

	// ErrInvalidRegisterLength indicates a register transfer length outside
	// [1, 8] bytes.
	ErrInvalidRegisterLength = errors.New("register length must be in [1, 8] bytes")

	// ErrInvalidOutputState indicates an output state other than ON or OFF.
	ErrInvalidOutputState = errors.New("output state must be ON or OFF")
)

var (
	// ErrFrequencyRange indicates a frequency outside [10, 400] MHz.
	ErrFrequencyRange = errors.New("frequency out of range [10, 400] MHz")

	// ErrCurrentRange indicates a DAC current code outside [0, 1020].
	ErrCurrentRange = errors.New("current out of range [0, 1020]")

	// ErrPhaseRange indicates a phase outside [0, 360] degrees.
	ErrPhaseRange = errors.New("phase out of range [0, 360] degrees")
)
