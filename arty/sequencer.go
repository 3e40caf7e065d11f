package arty

import (
	"fmt"
	"sync/atomic"

	"github.com/iontrap/go-arty/internal/util"
	"github.com/iontrap/go-arty/logger"
)

// Command strings understood by the instrument firmware.
const (
	CmdLoadProg       = "LOAD PROG"
	CmdStartSequencer = "START SEQUENCER"
	CmdAutoMode       = "AUTO MODE"
	CmdManualMode     = "MANUAL MODE"
	CmdDataLength     = "DATA LENGTH"
	CmdReadData       = "READ DATA"
)

// MaxFIFOChunk is the largest number of samples the device transmits in one
// FIFO read.
const MaxFIFOChunk = 512

// State represents the sequencer controller life cycle.
type State uint32

const (
	// IdleState indicates no operation is in progress and the sequencer is
	// not known to be running.
	IdleState State = iota
	// LoadingState indicates a program upload is in progress.
	LoadingState
	// RunningState indicates the sequencer was started and has not been
	// observed stopped since.
	RunningState
	// DrainingState indicates a FIFO flush is in progress.
	DrainingState
	// FaultedState indicates a protocol violation left the channel framing
	// state indeterminate. There is no resync; open a fresh channel session.
	FaultedState
)

// String returns string representation of the current state.
func (s State) String() string {
	switch s {
	case IdleState:
		return "idle"
	case LoadingState:
		return "loading"
	case RunningState:
		return "running"
	case DrainingState:
		return "draining"
	case FaultedState:
		return "faulted"
	default:
		return "unknown"
	}
}

// SeqStatus is the device-reported sequencer execution state.
type SeqStatus uint8

const (
	// SeqRunning indicates the sequencer is executing its program.
	SeqRunning SeqStatus = iota
	// SeqStopped indicates the sequencer has halted.
	SeqStopped
)

// String returns string representation of the sequencer status.
func (s SeqStatus) String() string {
	if s == SeqRunning {
		return "running"
	}

	return "stopped"
}

// Mode is the sequencer control mode.
type Mode uint8

const (
	// ModeAuto lets the sequencer free-run once started.
	ModeAuto Mode = iota
	// ModeManual steps the sequencer under host control.
	ModeManual
)

// String returns string representation of the control mode.
func (m Mode) String() string {
	if m == ModeAuto {
		return "auto"
	}

	return "manual"
}

// Controller drives the on-device sequencer: program memory upload,
// start/stop, status polling and FIFO draining.
//
// Controller is not goroutine-safe beyond the serialization the underlying
// Conn provides; drive it from a single logical caller.
type Controller struct {
	conn   *Conn
	logger logger.Logger
	state  atomic.Uint32
}

// NewController creates a sequencer controller over the given connection.
func NewController(conn *Conn) *Controller {
	return &Controller{
		conn:   conn,
		logger: conn.GetLogger(),
	}
}

// Conn returns the underlying connection.
func (c *Controller) Conn() *Conn { return c.conn }

// State returns the current controller state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(uint32(s)))
	if prev != s {
		c.logger.Debug("arty: controller state change", "from", prev.String(), "to", s.String())
	}
}

// fault moves the controller to FaultedState.
func (c *Controller) fault(err error) error {
	c.setState(FaultedState)
	c.logger.Error("arty: controller faulted", "error", err)

	return err
}

func (c *Controller) checkFaulted() error {
	if c.State() == FaultedState {
		return ErrFaulted
	}

	return nil
}

// LoadProgram uploads a program to device memory, one word at a time:
// a block of [addr_high, addr_low, instruction...] followed by the LOAD PROG
// command. The whole program is validated before any byte is sent; a wire
// failure aborts without retry.
func (c *Controller) LoadProgram(p Program) error {
	if err := c.checkFaulted(); err != nil {
		return err
	}

	if err := p.Validate(); err != nil {
		return err
	}

	c.setState(LoadingState)

	for i, w := range p {
		if err := c.loadWord(w); err != nil {
			c.setState(IdleState)

			return fmt.Errorf("arty: load program word %d (addr %d): %w", i, w.Addr, err)
		}
	}

	c.setState(IdleState)
	c.logger.Info("arty: program loaded", "words", len(p))

	return nil
}

// loadWord writes one program memory slot.
func (c *Controller) loadWord(w Word) error {
	payload := make([]byte, 0, 2+InstrBytes)
	hi, lo := util.PutU16BE(w.Addr)
	payload = append(payload, hi, lo)
	payload = append(payload, w.Instr[:]...)

	if err := c.conn.SendBlock(payload); err != nil {
		return err
	}

	return c.conn.SendCommand(CmdLoadProg)
}

// Start starts the sequencer.
func (c *Controller) Start() error {
	if err := c.checkFaulted(); err != nil {
		return err
	}

	if err := c.conn.SendCommand(CmdStartSequencer); err != nil {
		return err
	}

	c.setState(RunningState)

	return nil
}

// Stop halts the sequencer by rewriting all 512 program memory slots with the
// no-op instruction. The firmware has no single stop command; this brute-force
// rewrite is the defined halt procedure and always performs exactly
// ProgMemSlots writes.
func (c *Controller) Stop() error {
	if err := c.checkFaulted(); err != nil {
		return err
	}

	for addr := 0; addr < ProgMemSlots; addr++ {
		w := Word{Addr: uint16(addr), Instr: NoOpInstr} //nolint:gosec // addr < 512
		if err := c.loadWord(w); err != nil {
			return fmt.Errorf("arty: stop sequencer at slot %d: %w", addr, err)
		}
	}

	c.setState(IdleState)
	c.logger.Info("arty: sequencer stopped")

	return nil
}

// Status queries the sequencer execution state via the escape status probe.
func (c *Controller) Status() (SeqStatus, error) {
	if err := c.checkFaulted(); err != nil {
		return SeqStopped, err
	}

	rpt, err := c.conn.EscapeStatus()
	if err != nil {
		return SeqStopped, c.fault(err)
	}

	if rpt.SequencerStopped() {
		return SeqStopped, nil
	}

	return SeqRunning, nil
}

// ControlMode queries the current control mode via the escape status probe.
func (c *Controller) ControlMode() (Mode, error) {
	if err := c.checkFaulted(); err != nil {
		return ModeAuto, err
	}

	rpt, err := c.conn.EscapeStatus()
	if err != nil {
		return ModeAuto, c.fault(err)
	}

	if rpt.ManualMode() {
		return ModeManual, nil
	}

	return ModeAuto, nil
}

// SetControlMode sets the control mode and unconditionally drains one reply
// message so the channel stays synchronized.
func (c *Controller) SetControlMode(m Mode) error {
	if err := c.checkFaulted(); err != nil {
		return err
	}

	var cmd string
	switch m {
	case ModeAuto:
		cmd = CmdAutoMode
	case ModeManual:
		cmd = CmdManualMode
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidMode, m)
	}

	if err := c.conn.SendCommand(cmd); err != nil {
		return err
	}

	// The device acknowledges the mode change; consume it to keep the
	// request/response pairing intact.
	if _, err := c.conn.NextMessage(); err != nil {
		return err
	}

	return nil
}

// FIFOLength queries the number of samples waiting in the output FIFO.
func (c *Controller) FIFOLength() (int, error) {
	if err := c.checkFaulted(); err != nil {
		return 0, err
	}

	msg, err := c.conn.Request(CmdDataLength)
	if err != nil {
		return 0, err
	}

	if (msg.Type != AckMsg && msg.Type != BlockMsg) || len(msg.Payload) < 2 {
		return 0, c.fault(fmt.Errorf("%w: bad DATA LENGTH reply %s", ErrProtocolViolation, msg))
	}

	return int(util.U16BE(msg.Payload[0], msg.Payload[1])), nil
}

// ReadFIFO requests n samples from the output FIFO. Requests above
// MaxFIFOChunk are clamped to it. The block reply must carry exactly
// SampleBytes x n bytes; any other size is a fatal length mismatch with no
// partial acceptance.
func (c *Controller) ReadFIFO(n int) ([]Sample, error) {
	if err := c.checkFaulted(); err != nil {
		return nil, err
	}

	if n < 1 {
		return nil, fmt.Errorf("arty: sample count %d out of range [1, %d]", n, MaxFIFOChunk)
	}
	if n > MaxFIFOChunk {
		n = MaxFIFOChunk
	}

	hi, lo := util.PutU16BE(uint16(n)) //nolint:gosec // clamped above
	if err := c.conn.SendBlock([]byte{hi, lo}); err != nil {
		return nil, err
	}

	msg, err := c.conn.Request(CmdReadData)
	if err != nil {
		return nil, err
	}

	if msg.Type != BlockMsg {
		return nil, c.fault(fmt.Errorf("%w: expected block reply to READ DATA, got %s", ErrProtocolViolation, msg))
	}

	if len(msg.Payload) != n*SampleBytes {
		return nil, fmt.Errorf("%w: requested %d samples (%d bytes), got %d bytes",
			ErrDataLengthMismatch, n, n*SampleBytes, len(msg.Payload))
	}

	samples, err := decodeSamples(msg.Payload)
	if err != nil {
		return nil, err
	}

	c.conn.Metrics().addSampleDrainCount(len(samples))

	return samples, nil
}

// Flush drains the output FIFO completely, reading chunks of at most
// MaxFIFOChunk samples until the reported length reaches zero. The drained
// data is discarded.
func (c *Controller) Flush() error {
	if err := c.checkFaulted(); err != nil {
		return err
	}

	c.setState(DrainingState)

	for {
		length, err := c.FIFOLength()
		if err != nil {
			return c.leaveDraining(err)
		}
		if length == 0 {
			break
		}

		chunk := length
		if chunk > MaxFIFOChunk {
			chunk = MaxFIFOChunk
		}

		if _, err := c.ReadFIFO(chunk); err != nil {
			return c.leaveDraining(err)
		}
	}

	c.setState(IdleState)

	return nil
}

// leaveDraining restores IdleState after a failed drain unless the failure
// already faulted the controller.
func (c *Controller) leaveDraining(err error) error {
	if c.State() != FaultedState {
		c.setState(IdleState)
	}

	return err
}
