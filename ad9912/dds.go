package ad9912

import (
	"fmt"

	"github.com/iontrap/go-arty/logger"
)

// Command strings understood by the FPGA's DDS bridge.
const (
	CmdWriteDDSReg = "WRITE DDS REG"
)

// Board and channel counts of the synthesizer assembly.
const (
	NumBoards        = 3
	ChannelsPerBoard = 2
)

// Setting limits per channel.
const (
	MinFrequencyMHz = 10.0
	MaxFrequencyMHz = 400.0
	MaxCurrent      = 1020
	MaxPhaseDeg     = 360.0
)

// Output is a channel output state.
type Output string

const (
	// OutputOn enables the channel output.
	OutputOn Output = "ON"
	// OutputOff disables the channel output.
	OutputOff Output = "OFF"
)

// Commander is the subset of the instrument connection the encoder drives.
// *arty.Conn satisfies it.
type Commander interface {
	SendCommand(cmd string) error
	SendBlock(data []byte) error
}

// Board is one two-channel DDS board. Implemented by the wire-backed [DDS]
// and the in-memory [Sim]; both expose the identical operations.
type Board interface {
	SetFrequency(ch int, freqMHz float64) error
	SetCurrent(ch, current int) error
	SetPhase(ch int, phaseDeg float64) error
	SetOutput(ch int, state Output) error
	SoftReset(ch int) error
}

// DDS encodes register writes for one AD9912 board and issues them over the
// shared command channel.
//
// DDS holds no channel state: setting values are validated, encoded and sent,
// never cached. Every operation starts with an explicit board select because
// the device demands the prefix on each transaction; the redundancy is
// required for correctness, not an optimization target.
type DDS struct {
	cmd    Commander
	board  int
	logger logger.Logger
}

var _ Board = (*DDS)(nil)

// New creates the encoder for one board, numbered 1 to NumBoards.
func New(cmd Commander, board int, log logger.Logger) (*DDS, error) {
	if cmd == nil {
		return nil, fmt.Errorf("ad9912: commander must not be nil")
	}
	if board < 1 || board > NumBoards {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBoard, board)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &DDS{cmd: cmd, board: board, logger: log}, nil
}

// BoardNumber returns the board number this encoder drives.
func (d *DDS) BoardNumber() int { return d.board }

// selectBoard issues the mandatory board-select preamble.
func (d *DDS) selectBoard() error {
	return d.cmd.SendCommand(fmt.Sprintf("Board%d Select", d.board))
}

// writeReg packs one encoded register write for the given channel and sends
// it as a block followed by the WRITE DDS REG command.
func (d *DDS) writeReg(hexStr string, ch int) error {
	block, err := packWrite(hexStr, ch)
	if err != nil {
		return err
	}

	if err := d.cmd.SendBlock(block); err != nil {
		return err
	}

	return d.cmd.SendCommand(CmdWriteDDSReg)
}

// SetFrequency programs the channel output frequency in MHz, range
// [MinFrequencyMHz, MaxFrequencyMHz]. The tuning word write is committed by a
// second write updating the chip's mirrored registers.
func (d *DDS) SetFrequency(ch int, freqMHz float64) error {
	if freqMHz < MinFrequencyMHz || freqMHz > MaxFrequencyMHz {
		return fmt.Errorf("%w: got %g", ErrFrequencyRange, freqMHz)
	}

	if err := d.selectBoard(); err != nil {
		return err
	}

	if err := d.writeReg(ftwHex(freqMHz*1e6), ch); err != nil {
		return err
	}

	d.logger.Debug("ad9912: frequency set", "board", d.board, "channel", ch, "MHz", freqMHz)

	return d.writeReg(updateMirrorHex, ch)
}

// SetCurrent programs the channel DAC full-scale current code, range
// [0, MaxCurrent]. Takes effect immediately, no commit step.
func (d *DDS) SetCurrent(ch, current int) error {
	if current < 0 || current > MaxCurrent {
		return fmt.Errorf("%w: got %d", ErrCurrentRange, current)
	}

	header, err := regHeaderHex(regDACCurrent, 2)
	if err != nil {
		return err
	}

	if err := d.selectBoard(); err != nil {
		return err
	}

	return d.writeReg(fmt.Sprintf("%s%04x", header, current), ch)
}

// SetPhase programs the channel phase offset in degrees, range
// [0, MaxPhaseDeg], quantized to the chip's 14-bit code. Committed by a
// mirrored-register update like SetFrequency.
func (d *DDS) SetPhase(ch int, phaseDeg float64) error {
	if phaseDeg < 0 || phaseDeg > MaxPhaseDeg {
		return fmt.Errorf("%w: got %g", ErrPhaseRange, phaseDeg)
	}

	header, err := regHeaderHex(regPhase, 2)
	if err != nil {
		return err
	}

	if err := d.selectBoard(); err != nil {
		return err
	}

	if err := d.writeReg(fmt.Sprintf("%s%04x", header, phaseCode(phaseDeg)), ch); err != nil {
		return err
	}

	return d.writeReg(updateMirrorHex, ch)
}

// SetOutput switches the channel output on or off.
func (d *DDS) SetOutput(ch int, state Output) error {
	var value string
	switch state {
	case OutputOn:
		value = "90"
	case OutputOff:
		value = "91"
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidOutputState, state)
	}

	header, err := regHeaderHex(regOutputCtl, 1)
	if err != nil {
		return err
	}

	if err := d.selectBoard(); err != nil {
		return err
	}

	return d.writeReg(header+value, ch)
}

// SoftReset issues the chip soft-reset pulse for the channel: the reset bit
// is set and then cleared with two 1-byte writes to register 0.
func (d *DDS) SoftReset(ch int) error {
	header, err := regHeaderHex(regSoftReset, 1)
	if err != nil {
		return err
	}

	if err := d.selectBoard(); err != nil {
		return err
	}

	if err := d.writeReg(header+"3C", ch); err != nil {
		return err
	}

	return d.writeReg(header+"18", ch)
}
