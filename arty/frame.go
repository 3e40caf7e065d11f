package arty

import (
	"fmt"
	"strconv"
)

// DLE is the escape sentinel byte. A literal 0x10 in any frame payload is
// doubled on the wire; an undoubled DLE introduces an out-of-band escape code.
const DLE byte = 0x10

// MaxCommandLen is the device command receive buffer size. The command frame
// length field is a single hex digit, so commands are limited to 15 bytes.
const MaxCommandLen = 0x0f

// MaxBlockLen is the device block receive buffer size in bytes.
const MaxBlockLen = 0x100

// Frame terminator bytes (carriage return + line feed).
const (
	termCR byte = '\r'
	termLF byte = '\n'
)

// terminator is the fixed 2-byte frame terminator.
var terminator = []byte{termCR, termLF}

// Serial line parameters of the instrument. The byte channel handed to
// [NewConn] must already be configured with these; the package itself does
// not open or configure ports.
const (
	BaudRate = 57600
	DataBits = 8
	StopBits = 2
	// No parity, no flow control.
)

const hexDigits = "0123456789abcdef"

// EncodeCommand encodes a short command into its wire frame:
//
//	'!' <len:1 hex digit> <cmd bytes, 0x10 doubled> CR LF
//
// It returns ErrCommandTooLong if cmd exceeds MaxCommandLen bytes.
func EncodeCommand(cmd string) ([]byte, error) {
	if len(cmd) > MaxCommandLen {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrCommandTooLong, cmd, len(cmd))
	}

	buf := make([]byte, 0, len(cmd)+6)
	buf = append(buf, '!', hexDigits[len(cmd)])
	buf = appendStuffed(buf, []byte(cmd))
	buf = append(buf, terminator...)

	return buf, nil
}

// EncodeBlock encodes a binary block into its wire frame:
//
//	'#' <digit count:1 hex digit> <byte count:hex, digit-count digits> <data, 0x10 doubled> CR LF
//
// The length header is self-describing: the number of hex digits needed for
// the byte count is encoded first, followed by the byte count itself.
// It returns ErrBlockTooLong if data exceeds MaxBlockLen bytes.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaxBlockLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBlockTooLong, len(data))
	}

	count := strconv.FormatInt(int64(len(data)), 16)

	buf := make([]byte, 0, len(data)+len(count)+8)
	buf = append(buf, '#', hexDigits[len(count)])
	buf = append(buf, count...)
	buf = appendStuffed(buf, data)
	buf = append(buf, terminator...)

	return buf, nil
}

// appendStuffed appends data to buf, doubling every literal DLE byte.
func appendStuffed(buf, data []byte) []byte {
	for _, b := range data {
		if b == DLE {
			buf = append(buf, DLE, DLE)
		} else {
			buf = append(buf, b)
		}
	}

	return buf
}

// hexDigitVal returns the value of an ASCII hex digit, or -1 if c is not one.
func hexDigitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
