package arty

import "fmt"

// Program memory geometry: 512 slots of 64-bit instructions behind a 9-bit
// address space.
const (
	ProgMemAddrWidth = 9
	ProgMemSlots     = 1 << ProgMemAddrWidth
	MaxProgMemAddr   = ProgMemSlots - 1
	InstrBytes       = 8
)

// NoOpInstr is the instruction the sequencer treats as a no-op. Stop rewrites
// the entire program memory with it.
var NoOpInstr = [InstrBytes]byte{0x0f, 0, 0, 0, 0, 0, 0, 0}

// Word is one addressed slot of the device program memory.
type Word struct {
	Addr  uint16
	Instr [InstrBytes]byte
}

// NewWord validates and builds a program word. The address must be within
// [0, MaxProgMemAddr] and instr must be exactly InstrBytes long.
func NewWord(addr int, instr []byte) (Word, error) {
	if addr < 0 || addr > MaxProgMemAddr {
		return Word{}, fmt.Errorf("%w: got %d", ErrAddressOutOfRange, addr)
	}
	if len(instr) != InstrBytes {
		return Word{}, fmt.Errorf("%w: got %d bytes", ErrInstructionLength, len(instr))
	}

	w := Word{Addr: uint16(addr)} //nolint:gosec // range checked above
	copy(w.Instr[:], instr)

	return w, nil
}

// Program is an ordered sequence of program words, produced by an external
// program generator and consumed by [Controller.LoadProgram].
type Program []Word

// Validate checks every word before any byte is sent to the device.
func (p Program) Validate() error {
	for i, w := range p {
		if int(w.Addr) > MaxProgMemAddr {
			return fmt.Errorf("%w: word %d has address %d", ErrAddressOutOfRange, i, w.Addr)
		}
	}

	return nil
}
