package arty

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/iontrap/go-arty/logger"
)

// escStatusLen is the number of raw status bytes carried by a 0x10 'R' escape
// (4 data bytes + 1 status byte).
const escStatusLen = 5

// decoder turns the raw byte stream into Messages, resolving the escape
// convention on every payload byte.
//
// An escape detected anywhere inside a frame unwinds the current decode: the
// partially read frame is discarded and the escape is returned as the next
// message, matching the device behavior of interleaving out-of-band status
// with framed replies.
type decoder struct {
	r       *bufio.Reader
	logger  logger.Logger
	metrics *Metrics
}

func newDecoder(r io.Reader, l logger.Logger, m *Metrics) *decoder {
	return &decoder{
		r:       bufio.NewReader(r),
		logger:  l,
		metrics: m,
	}
}

// isEndOfStream reports whether err indicates an exhausted or timed-out read
// rather than a broken channel.
func isEndOfStream(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return false
}

// readLogical reads one logical byte, resolving the escape convention:
// DLE DLE is the literal DLE byte; DLE followed by anything else is an
// out-of-band escape that unwinds the current decode.
//
// Exactly one of the three results is meaningful: a literal byte, an escape
// message, or an error.
func (d *decoder) readLogical() (byte, *Message, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	if b != DLE {
		return b, nil, nil
	}

	code, err := d.r.ReadByte()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: stream ended inside escape sequence: %w", ErrFraming, err)
	}

	if code == DLE {
		return DLE, nil, nil
	}

	msg, err := d.readEscape(code)
	if err != nil {
		return 0, nil, err
	}

	return 0, msg, nil
}

// readEscape builds the escape Message for the given code byte. For a 'R'
// (status read) escape the 5 status bytes and the trailing terminator are
// captured at the point of detection.
func (d *decoder) readEscape(code byte) (*Message, error) {
	msg := &Message{Type: EscapeMsg}

	switch code {
	case 'C':
		msg.Kind = EscReset
	case 'W':
		msg.Kind = EscWaveform
	case 'R':
		msg.Kind = EscRead
		msg.Payload = make([]byte, escStatusLen)

		for i := range msg.Payload {
			b, err := d.readLiteral()
			if err != nil {
				return nil, fmt.Errorf("%w: reading status byte %d of escape read: %w", ErrFraming, i, err)
			}
			msg.Payload[i] = b
		}

		d.verifyTerminator("escape read")
	default:
		msg.Kind = EscUnknown
		msg.Raw = code
		d.logger.Warn("arty: unrecognized escape code", "code", fmt.Sprintf("0x%02X", code))
	}

	d.metrics.incEscapeRecvCount()

	return msg, nil
}

// readLiteral reads one byte with DLE unstuffing only. A nested escape inside
// an escape status capture has no defined meaning and is a framing error.
func (d *decoder) readLiteral() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}

	if b != DLE {
		return b, nil
	}

	next, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if next != DLE {
		return 0, fmt.Errorf("%w: nested escape 0x10 0x%02X inside status capture", ErrFraming, next)
	}

	return DLE, nil
}

// verifyTerminator consumes the 2-byte frame terminator. A mismatch is
// recorded and logged but does not fail the decode.
func (d *decoder) verifyTerminator(where string) {
	for _, want := range terminator {
		got, err := d.r.ReadByte()
		if err != nil {
			d.metrics.incTerminatorWarnCount()
			d.logger.Warn("arty: stream ended inside terminator", "where", where, "error", err)

			return
		}

		if got != want {
			d.metrics.incTerminatorWarnCount()
			d.logger.Warn("arty: terminator mismatch",
				"where", where,
				"want", fmt.Sprintf("0x%02X", want),
				"got", fmt.Sprintf("0x%02X", got),
			)
		}
	}
}

// next decodes one complete message from the stream.
//
// A read timeout or EOF before the signature byte yields an EndOfStream
// message; mid-frame it is a framing error. An escape anywhere inside the
// frame discards the partial frame and yields the escape message instead.
func (d *decoder) next() (*Message, error) {
	sig, esc, err := d.readLogical()
	if err != nil {
		if isEndOfStream(err) {
			return &Message{Type: EndOfStream}, nil
		}

		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	switch sig {
	case '!':
		return d.decodeAck()
	case '#':
		return d.decodeBlock()
	default:
		d.metrics.incUnknownSigCount()
		d.logger.Warn("arty: unknown signature byte", "sig", fmt.Sprintf("0x%02X", sig))

		return &Message{Type: UnknownMsg, Raw: sig}, nil
	}
}

// decodeAck decodes the remainder of a '!' frame: one hex digit of length,
// the payload, and the terminator.
func (d *decoder) decodeAck() (*Message, error) {
	n, esc, err := d.readHexDigit("ack length")
	if err != nil {
		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	payload, esc, err := d.readPayload(n, "ack payload")
	if err != nil {
		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	d.verifyTerminator("ack")
	d.metrics.incMsgRecvCount()

	return &Message{Type: AckMsg, Payload: payload}, nil
}

// decodeBlock decodes the remainder of a '#' frame: one hex digit giving the
// number of following length digits, the hex byte count, the payload, and the
// terminator.
func (d *decoder) decodeBlock() (*Message, error) {
	digits, esc, err := d.readHexDigit("block digit count")
	if err != nil {
		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	count := 0
	for i := 0; i < digits; i++ {
		v, esc, err := d.readHexDigit("block length")
		if err != nil {
			return nil, err
		}
		if esc != nil {
			return esc, nil
		}

		count = count*16 + v
	}

	payload, esc, err := d.readPayload(count, "block payload")
	if err != nil {
		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	d.verifyTerminator("block")
	d.metrics.incMsgRecvCount()

	return &Message{Type: BlockMsg, Payload: payload}, nil
}

// readHexDigit reads one logical byte and interprets it as a hex digit.
func (d *decoder) readHexDigit(where string) (int, *Message, error) {
	b, esc, err := d.readLogical()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading %s: %w", ErrFraming, where, err)
	}
	if esc != nil {
		return 0, esc, nil
	}

	v := hexDigitVal(b)
	if v < 0 {
		return 0, nil, fmt.Errorf("%w: %s byte 0x%02X is not a hex digit", ErrFraming, where, b)
	}

	return v, nil, nil
}

// readPayload reads n logical payload bytes.
func (d *decoder) readPayload(n int, where string) ([]byte, *Message, error) {
	payload := make([]byte, n)
	for i := 0; i < n; i++ {
		b, esc, err := d.readLogical()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading %s byte %d of %d: %w", ErrFraming, where, i, n, err)
		}
		if esc != nil {
			return nil, esc, nil
		}

		payload[i] = b
	}

	return payload, nil, nil
}
