package ad9912

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Settings is the last value written to each register group of one channel.
type Settings struct {
	FrequencyMHz float64
	Current      int
	PhaseDeg     float64
	Output       Output
}

// Sim is the in-memory variant of [DDS]: identical operations and
// validation, no wire traffic. The last written value per channel is kept in
// a concurrent map so assertions may run while a setter is in flight.
type Sim struct {
	board int
	state *xsync.MapOf[int, Settings]
}

var _ Board = (*Sim)(nil)

// NewSim creates a simulated board.
func NewSim(board int) *Sim {
	return &Sim{
		board: board,
		state: xsync.NewMapOf[int, Settings](),
	}
}

// BoardNumber returns the simulated board number.
func (s *Sim) BoardNumber() int { return s.board }

// Settings returns the last written values for the channel.
func (s *Sim) Settings(ch int) (Settings, error) {
	if _, _, err := channelBits(ch); err != nil {
		return Settings{}, err
	}

	return s.load(ch), nil
}

func (s *Sim) load(ch int) Settings {
	if st, ok := s.state.Load(ch); ok {
		return st
	}

	return Settings{Output: OutputOff}
}

// SetFrequency records the channel frequency, range-checked like the wire
// variant.
func (s *Sim) SetFrequency(ch int, freqMHz float64) error {
	if _, _, err := channelBits(ch); err != nil {
		return err
	}
	if freqMHz < MinFrequencyMHz || freqMHz > MaxFrequencyMHz {
		return fmt.Errorf("%w: got %g", ErrFrequencyRange, freqMHz)
	}

	st := s.load(ch)
	st.FrequencyMHz = freqMHz
	s.state.Store(ch, st)

	return nil
}

// SetCurrent records the channel current code.
func (s *Sim) SetCurrent(ch, current int) error {
	if _, _, err := channelBits(ch); err != nil {
		return err
	}
	if current < 0 || current > MaxCurrent {
		return fmt.Errorf("%w: got %d", ErrCurrentRange, current)
	}

	st := s.load(ch)
	st.Current = current
	s.state.Store(ch, st)

	return nil
}

// SetPhase records the channel phase in degrees.
func (s *Sim) SetPhase(ch int, phaseDeg float64) error {
	if _, _, err := channelBits(ch); err != nil {
		return err
	}
	if phaseDeg < 0 || phaseDeg > MaxPhaseDeg {
		return fmt.Errorf("%w: got %g", ErrPhaseRange, phaseDeg)
	}

	st := s.load(ch)
	st.PhaseDeg = phaseDeg
	s.state.Store(ch, st)

	return nil
}

// SetOutput records the channel output state.
func (s *Sim) SetOutput(ch int, state Output) error {
	if _, _, err := channelBits(ch); err != nil {
		return err
	}
	if state != OutputOn && state != OutputOff {
		return fmt.Errorf("%w: got %q", ErrInvalidOutputState, state)
	}

	st := s.load(ch)
	st.Output = state
	s.state.Store(ch, st)

	return nil
}

// SoftReset clears the recorded channel frequency, mirroring the chip reset.
func (s *Sim) SoftReset(ch int) error {
	if _, _, err := channelBits(ch); err != nil {
		return err
	}

	st := s.load(ch)
	st.FrequencyMHz = 0
	s.state.Store(ch, st)

	return nil
}
