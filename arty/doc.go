// Package arty implements the host side of the serial command protocol spoken
// by an Arty S7 FPGA instrument controller.
//
// The protocol is a half-duplex, byte-stuffed framing protocol over a plain
// serial line (57600 baud, 8 data bits, 2 stop bits, no parity):
//
//   - Command frame: '!' <len:1 hex digit> <payload, 0x10 doubled> CR LF
//   - Block frame:   '#' <digit count:1 hex digit> <byte count:hex> <payload, 0x10 doubled> CR LF
//   - Escape:        0x10 followed by 0x10 (literal), 'C' (reset),
//     'R' (status, +5 raw bytes +terminator) or 'W' (waveform)
//
// Escape sequences are out-of-band status replies interleaved with framed
// messages. They are modeled as a [Message] variant, not as an error.
//
// # Layering
//
// [EncodeCommand] and [EncodeBlock] produce wire frames. A [Conn] owns the
// byte channel exclusively and provides the blocking request/response
// primitives. A [Controller] drives the on-device sequencer (program memory
// upload, start/stop, status, FIFO draining) and [Controller.Run] executes a
// complete load-run-collect cycle.
//
// The channel is single-owner and strictly one-command-at-a-time. Once a
// command is written, its reply must be consumed before the next command is
// issued, or the framing state of the line becomes undefined.
package arty
