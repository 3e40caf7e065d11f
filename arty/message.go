package arty

import "fmt"

// MsgType identifies the variant of a decoded wire message.
type MsgType uint8

const (
	// AckMsg is a short reply frame (signature '!', up to 15 payload bytes).
	AckMsg MsgType = iota
	// BlockMsg is a binary block frame (signature '#', up to 256 payload bytes).
	BlockMsg
	// EscapeMsg is an out-of-band status message signaled by the 0x10 sentinel.
	EscapeMsg
	// EndOfStream indicates no more bytes were available within the read timeout.
	EndOfStream
	// UnknownMsg is a frame with an unrecognized signature byte.
	UnknownMsg
)

// String returns the string representation of the message type.
func (t MsgType) String() string {
	switch t {
	case AckMsg:
		return "ack"
	case BlockMsg:
		return "block"
	case EscapeMsg:
		return "escape"
	case EndOfStream:
		return "end-of-stream"
	case UnknownMsg:
		return "unknown"
	default:
		return "invalid"
	}
}

// EscapeKind identifies the out-of-band escape code following the 0x10 sentinel.
type EscapeKind uint8

const (
	// EscNone is the zero value, used for non-escape messages.
	EscNone EscapeKind = iota
	// EscReset is the reset notification (0x10 'C').
	EscReset
	// EscRead is the status read reply (0x10 'R'), carrying 5 status bytes.
	EscRead
	// EscWaveform is the waveform capture notification (0x10 'W').
	EscWaveform
	// EscUnknown is an unrecognized escape code byte.
	EscUnknown
)

// String returns the string representation of the escape kind.
func (k EscapeKind) String() string {
	switch k {
	case EscNone:
		return "none"
	case EscReset:
		return "reset"
	case EscRead:
		return "read"
	case EscWaveform:
		return "waveform"
	default:
		return "unknown"
	}
}

// Message is one decoded unit from the wire: a framed reply, an out-of-band
// escape, an end-of-stream marker, or an unrecognized signature byte.
//
// Escape messages are a first-class variant rather than an error because the
// device interleaves them with normal framed replies.
type Message struct {
	Type MsgType

	// Payload holds the frame payload for AckMsg/BlockMsg, and the 5 captured
	// status bytes for an EscRead escape. Nil otherwise.
	Payload []byte

	// Kind is the escape code for EscapeMsg messages, EscNone otherwise.
	Kind EscapeKind

	// Raw is the unrecognized byte for UnknownMsg, or the raw escape code
	// byte for an EscUnknown escape.
	Raw byte
}

// String returns a short human-readable description, for logs.
func (m *Message) String() string {
	switch m.Type {
	case EscapeMsg:
		return fmt.Sprintf("escape(%s)", m.Kind)
	case AckMsg, BlockMsg:
		return fmt.Sprintf("%s(%d bytes)", m.Type, len(m.Payload))
	case UnknownMsg:
		return fmt.Sprintf("unknown(0x%02X)", m.Raw)
	default:
		return m.Type.String()
	}
}
