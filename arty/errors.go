package arty

import "errors"

var (
	// ErrCommandTooLong indicates a command string exceeds the 15-byte
	// command receive buffer (4-bit length field).
	ErrCommandTooLong = errors.New("command exceeds 15 bytes")

	// ErrBlockTooLong indicates a binary block exceeds the 256-byte
	// block receive buffer.
	ErrBlockTooLong = errors.New("block exceeds 256 bytes")

	// ErrFraming indicates a malformed length field or an otherwise
	// undecodable frame on the wire.
	ErrFraming = errors.New("framing error")
)

var (
	// ErrProtocolViolation indicates an unexpected message type or escape
	// kind where a specific one was required. The channel framing state is
	// indeterminate afterwards; the controller moves to FaultedState.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrDataLengthMismatch indicates a FIFO block reply whose size
	// disagrees with the requested sample count.
	ErrDataLengthMismatch = errors.New("FIFO data length mismatch")

	// ErrConnClosed indicates the connection is closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrFaulted indicates the controller entered FaultedState after a
	// protocol violation. Recovery requires a fresh channel session.
	ErrFaulted = errors.New("controller faulted, fresh channel session required")
)

var (
	// ErrAddressOutOfRange indicates a program memory address outside [0, 511].
	ErrAddressOutOfRange = errors.New("program memory address out of range [0, 511]")

	// ErrInstructionLength indicates a program word instruction that is not
	// exactly 8 bytes.
	ErrInstructionLength = errors.New("instruction must be exactly 8 bytes")

	// ErrIntensityRange indicates an LED intensity outside [0, 255].
	ErrIntensityRange = errors.New("intensity out of range [0, 255]")

	// ErrInvalidMode indicates a control mode other than auto or manual.
	ErrInvalidMode = errors.New("control mode must be auto or manual")
)

var (
	// ErrDeviceNotReady indicates a DNA read before the FPGA finished
	// configuration (ready nibble not set).
	ErrDeviceNotReady = errors.New("device DNA not ready")

	// ErrVersionMismatch indicates the identification string does not match
	// the expected firmware version.
	ErrVersionMismatch = errors.New("firmware version mismatch")
)
