package arty

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Identification and auxiliary command strings.
const (
	CmdIdn           = "*IDN?"
	CmdDNAPort       = "*DNA_PORT?"
	CmdReadIntensity = "READ INTENSITY"
	CmdAdjIntensity  = "ADJ INTENSITY"
	CmdReadBits      = "READ BITS"
	CmdUpdateBits    = "UPDATE BITS"
)

// IDN is the parsed identification reply.
type IDN struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
}

// Idn queries and parses the instrument identification string
// (comma-separated vendor, model, serial, firmware).
func (c *Conn) Idn() (*IDN, error) {
	msg, err := c.Request(CmdIdn)
	if err != nil {
		return nil, err
	}

	if msg.Type != AckMsg && msg.Type != BlockMsg {
		return nil, fmt.Errorf("%w: bad identification reply %s", ErrProtocolViolation, msg)
	}

	parts := strings.Split(string(msg.Payload), ",")
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	return &IDN{
		Vendor:   parts[0],
		Model:    parts[1],
		Serial:   parts[2],
		Firmware: parts[3],
	}, nil
}

// CheckVersion verifies the identification reply matches the expected
// firmware string exactly.
func (c *Conn) CheckVersion(want string) error {
	msg, err := c.Request(CmdIdn)
	if err != nil {
		return err
	}

	got := string(msg.Payload)
	if got != want {
		return fmt.Errorf("%w: device reports %q, want %q", ErrVersionMismatch, got, want)
	}

	return nil
}

// DNA reads the unique FPGA device identifier. The top 4 bits of the first
// reply byte signal readout completion; until they equal 1 the read fails
// with ErrDeviceNotReady. The identifier is returned as a 15-digit
// uppercase hex string.
func (c *Conn) DNA() (string, error) {
	msg, err := c.Request(CmdDNAPort)
	if err != nil {
		return "", err
	}

	if (msg.Type != AckMsg && msg.Type != BlockMsg) || len(msg.Payload) == 0 {
		return "", fmt.Errorf("%w: bad DNA reply %s", ErrProtocolViolation, msg)
	}

	if msg.Payload[0]>>4 != 1 {
		return "", ErrDeviceNotReady
	}

	val := uint64(msg.Payload[0] & 0x0f)
	for _, b := range msg.Payload[1:] {
		val = val<<8 | uint64(b)
	}

	return fmt.Sprintf("%015X", val), nil
}

// Intensity reads the status LED PWM duty cycle.
func (c *Conn) Intensity() (int, error) {
	msg, err := c.Request(CmdReadIntensity)
	if err != nil {
		return 0, err
	}

	if (msg.Type != AckMsg && msg.Type != BlockMsg) || len(msg.Payload) == 0 {
		return 0, fmt.Errorf("%w: bad intensity reply %s", ErrProtocolViolation, msg)
	}

	return int(msg.Payload[0]), nil
}

// SetIntensity sets the status LED PWM duty cycle, range [0, 255].
func (c *Conn) SetIntensity(v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("%w: got %d", ErrIntensityRange, v)
	}

	if err := c.SendBlock([]byte{byte(v)}); err != nil {
		return err
	}

	return c.SendCommand(CmdAdjIntensity)
}

// BitPattern reads the 32-bit digital output state.
func (c *Conn) BitPattern() (uint32, error) {
	msg, err := c.Request(CmdReadBits)
	if err != nil {
		return 0, err
	}

	if (msg.Type != AckMsg && msg.Type != BlockMsg) || len(msg.Payload) < 4 {
		return 0, fmt.Errorf("%w: bad bit pattern reply %s", ErrProtocolViolation, msg)
	}

	return binary.BigEndian.Uint32(msg.Payload[:4]), nil
}

// SetBitPattern updates the 32-bit digital output state. Only bits set in
// mask are affected; values provides their new levels.
func (c *Conn) SetBitPattern(mask, values uint32) error {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], mask)
	binary.BigEndian.PutUint32(payload[4:8], values)

	if err := c.SendBlock(payload); err != nil {
		return err
	}

	return c.SendCommand(CmdUpdateBits)
}

// WaveformReport describes the waveform capture module state.
type WaveformReport struct {
	ModulePresent bool
	TriggerArmed  bool
	DataCaptured  bool
}

// WaveformStatus queries the waveform capture flags via the escape status
// probe.
func (c *Conn) WaveformStatus() (*WaveformReport, error) {
	rpt, err := c.EscapeStatus()
	if err != nil {
		return nil, err
	}

	return &WaveformReport{
		ModulePresent: rpt.WaveformModulePresent(),
		TriggerArmed:  rpt.WaveformTriggerArmed(),
		DataCaptured:  rpt.WaveformDataCaptured(),
	}, nil
}
