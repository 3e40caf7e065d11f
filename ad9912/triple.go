package ad9912

import (
	"fmt"

	"github.com/iontrap/go-arty/logger"
)

// Triple is the three-board, six-channel synthesizer assembly sharing one
// command channel.
type Triple struct {
	boards [NumBoards]Board
}

// NewTriple creates encoders for all three boards over one connection.
func NewTriple(cmd Commander, log logger.Logger) (*Triple, error) {
	t := &Triple{}

	for n := 1; n <= NumBoards; n++ {
		dds, err := New(cmd, n, log)
		if err != nil {
			return nil, err
		}
		t.boards[n-1] = dds
	}

	return t, nil
}

// NewSimTriple creates a fully simulated assembly for testing without
// hardware.
func NewSimTriple() *Triple {
	t := &Triple{}

	for n := 1; n <= NumBoards; n++ {
		t.boards[n-1] = NewSim(n)
	}

	return t
}

// Board returns the encoder for board n, numbered 1 to NumBoards.
func (t *Triple) Board(n int) (Board, error) {
	if n < 1 || n > NumBoards {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBoard, n)
	}

	return t.boards[n-1], nil
}
