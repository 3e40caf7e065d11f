package arty

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/iontrap/go-arty/logger"
)

// readDeadliner is implemented by channels that support read deadlines,
// such as net.Conn (serial-over-TCP bridges) and os.File.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Conn is the synchronous command transceiver. It owns the byte channel
// exclusively for its lifetime and serializes all access: the protocol is
// half-duplex with at most one outstanding command/response pair, so every
// operation holds the connection lock from first write to final read.
type Conn struct {
	mu      sync.Mutex
	port    io.ReadWriter
	dec     *decoder
	cfg     *Config
	logger  logger.Logger
	metrics Metrics
	closed  bool
}

// NewConn creates a transceiver over an already-opened byte channel.
//
// The channel must be configured with the instrument's serial parameters
// (see BaudRate and friends) and must not be accessed by anyone else while
// the Conn exists. If the channel implements SetReadDeadline, the configured
// read timeout is applied before every reply wait; otherwise the channel's
// own timeout behavior governs when reads give up.
func NewConn(port io.ReadWriter, opts ...Option) (*Conn, error) {
	if port == nil {
		return nil, fmt.Errorf("arty: port must not be nil")
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		port:   port,
		cfg:    cfg,
		logger: cfg.logger,
	}
	c.dec = newDecoder(port, c.logger, &c.metrics)

	return c, nil
}

// Metrics returns the connection metrics.
func (c *Conn) Metrics() *Metrics { return &c.metrics }

// Config returns the connection configuration.
func (c *Conn) Config() *Config { return c.cfg }

// GetLogger returns the connection logger.
func (c *Conn) GetLogger() logger.Logger { return c.logger }

// SendCommand encodes and writes a short command frame.
func (c *Conn) SendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCommand(cmd)
}

// SendBlock encodes and writes a binary block frame.
func (c *Conn) SendBlock(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendBlock(data)
}

// NextMessage blocks until the next message is decoded from the channel or
// the read timeout elapses, in which case the message type is EndOfStream.
func (c *Conn) NextMessage() (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nextMessage()
}

// Request sends a command and returns the next decoded message. This is the
// basic synchronous request/response cycle.
func (c *Conn) Request(cmd string) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand(cmd); err != nil {
		return nil, err
	}

	return c.nextMessage()
}

// EscapeStatus writes the raw status probe (DLE 'R') and waits for the
// matching status-read escape. Any other reply is a protocol violation: the
// probe is unframed, so a mismatched answer leaves the line indeterminate.
func (c *Conn) EscapeStatus() (*StatusReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnClosed
	}

	if err := c.writeAll([]byte{DLE, 'R'}); err != nil {
		return nil, fmt.Errorf("arty: write status probe: %w", err)
	}

	msg, err := c.nextMessage()
	if err != nil {
		return nil, err
	}

	if msg.Type != EscapeMsg || msg.Kind != EscRead {
		return nil, fmt.Errorf("%w: expected status-read escape, got %s", ErrProtocolViolation, msg)
	}

	rpt := &StatusReport{Status: msg.Payload[escStatusLen-1]}
	copy(rpt.Data[:], msg.Payload[:escStatusLen-1])

	return rpt, nil
}

// Close closes the underlying channel if it is closable. Subsequent
// operations return ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if closer, ok := c.port.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// --- internal, caller must hold c.mu ---

func (c *Conn) sendCommand(cmd string) error {
	if c.closed {
		return ErrConnClosed
	}

	frame, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	if err := c.writeAll(frame); err != nil {
		return fmt.Errorf("arty: send command %q: %w", cmd, err)
	}

	c.metrics.incCommandSendCount()
	c.logger.Debug("arty: command sent", "cmd", cmd)

	return nil
}

func (c *Conn) sendBlock(data []byte) error {
	if c.closed {
		return ErrConnClosed
	}

	frame, err := EncodeBlock(data)
	if err != nil {
		return err
	}

	if err := c.writeAll(frame); err != nil {
		return fmt.Errorf("arty: send block of %d bytes: %w", len(data), err)
	}

	c.metrics.incBlockSendCount()
	c.logger.Debug("arty: block sent", "bytes", len(data))

	return nil
}

func (c *Conn) nextMessage() (*Message, error) {
	if c.closed {
		return nil, ErrConnClosed
	}

	if rd, ok := c.port.(readDeadliner); ok {
		if err := rd.SetReadDeadline(time.Now().Add(c.cfg.readTimeout)); err != nil {
			return nil, fmt.Errorf("arty: set read deadline: %w", err)
		}
	}

	msg, err := c.dec.next()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("arty: message received", "msg", msg.String())

	return msg, nil
}

// writeAll writes all bytes in data to the channel.
func (c *Conn) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}

// StatusReport is the content of a status-read escape reply: 4 data bytes
// and 1 status byte.
type StatusReport struct {
	Data   [4]byte
	Status byte
}

// Sequencer run state and control mode live in the third data byte.
const (
	seqStoppedBit = 0x01 // bit 0: 0 = running, 1 = stopped
	seqManualBit  = 0x02 // bit 1: 0 = auto, 1 = manual
)

// Waveform capture flags live in the status byte.
const (
	wfDataBit    = 0x01 // captured waveform data exists
	wfArmedBit   = 0x02 // trigger is armed
	wfPresentBit = 0x04 // capture module is implemented
)

// SequencerStopped reports whether the sequencer is stopped.
func (r *StatusReport) SequencerStopped() bool {
	return r.Data[2]&seqStoppedBit != 0
}

// ManualMode reports whether the sequencer is in manual (step-by-step)
// control mode rather than auto.
func (r *StatusReport) ManualMode() bool {
	return r.Data[2]&seqManualBit != 0
}

// WaveformModulePresent reports whether the device implements waveform capture.
func (r *StatusReport) WaveformModulePresent() bool {
	return r.Status&wfPresentBit != 0
}

// WaveformTriggerArmed reports whether the waveform capture trigger is armed.
func (r *StatusReport) WaveformTriggerArmed() bool {
	return r.Status&wfArmedBit != 0
}

// WaveformDataCaptured reports whether captured waveform data exists.
func (r *StatusReport) WaveformDataCaptured() bool {
	return r.Status&wfDataBit != 0
}
