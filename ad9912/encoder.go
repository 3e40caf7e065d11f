package ad9912

import (
	"encoding/hex"
	"fmt"
	"math"
)

// AD9912 register addresses used by this driver.
const (
	regSoftReset   = 0x0000
	regUpdate      = 0x0005
	regOutputCtl   = 0x0010
	regFTW         = 0x01AB
	regPhase       = 0x01AD
	regDACCurrent  = 0x040C
	maxRegisterLen = 8
)

// ftwHeaderHex is the fixed header of a frequency tuning word write:
// register 0x01AB, 8-byte transfer, write direction.
const ftwHeaderHex = "61AB"

// updateMirrorHex commits buffered register writes: a 1-byte write of 0x01
// to the update register. Frequency and phase changes only take effect after
// this second write.
const updateMirrorHex = "000501"

// regHeader builds the 16-bit instruction header of a register transfer:
// direction bit, 2-bit length code and 13-bit register address.
//
// The length code is byteLen-1 for 1 to 3 bytes and the fixed streaming code
// 3 for 4 to 8 bytes.
func regHeader(addr uint16, byteLen int, read bool) (uint16, error) {
	if byteLen < 1 || byteLen > maxRegisterLen {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRegisterLength, byteLen)
	}

	code := uint16(3)
	if byteLen < 4 {
		code = uint16(byteLen - 1) //nolint:gosec // 1..3 checked above
	}

	var dir uint16
	if read {
		dir = 1
	}

	return dir<<15 | code<<13 | addr, nil
}

// regHeaderHex renders a write-direction register header as 4 hex digits.
func regHeaderHex(addr uint16, byteLen int) (string, error) {
	h, err := regHeader(addr, byteLen, false)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%04X", h), nil
}

// ftwHex encodes a target frequency in Hz as a full FTW register write:
// the fixed header followed by the 48-bit tuning word
// round(2^48 * freq / 1e9) as 12 hex digits.
func ftwHex(freqHz float64) string {
	word := uint64(math.Round(freqHz / 1e9 * (1 << 48)))

	return fmt.Sprintf("%s%012X", ftwHeaderHex, word)
}

// phaseCode converts a phase in degrees to the chip's 14-bit phase offset
// code: round(phase_rad * 2^14 / 2pi).
func phaseCode(deg float64) uint16 {
	rad := deg * math.Pi / 180

	return uint16(math.Round(rad * (1 << 14) / (2 * math.Pi))) //nolint:gosec // deg <= 360 keeps this in 15 bits
}

// channelBits maps a channel number to the chip's channel-select bit pair:
// channel 1 is (1,0), channel 2 is (0,1).
func channelBits(ch int) (ch1, ch2 byte, err error) {
	switch ch {
	case 1:
		return 1, 0, nil
	case 2:
		return 0, 1, nil
	default:
		return 0, 0, fmt.Errorf("%w: got %d", ErrInvalidChannel, ch)
	}
}

// packWrite packs an encoded register write into the 9-byte block the FPGA
// forwards to the chip: one header byte of (ch1<<5)|(ch2<<4)|byte_length,
// then the payload bytes zero-padded to 8.
func packWrite(hexStr string, ch int) ([]byte, error) {
	ch1, ch2, err := channelBits(ch)
	if err != nil {
		return nil, err
	}

	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("ad9912: odd-length hex string %q", hexStr)
	}

	payload, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("ad9912: bad hex string %q: %w", hexStr, err)
	}
	if len(payload) > maxRegisterLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRegisterLength, len(payload))
	}

	block := make([]byte, 1+maxRegisterLen)
	block[0] = ch1<<5 | ch2<<4 | byte(len(payload))
	copy(block[1:], payload)

	return block, nil
}
