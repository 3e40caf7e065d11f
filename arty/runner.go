package arty

import (
	"context"
	"fmt"

	"github.com/iontrap/go-arty/internal/pool"
)

// Run executes a complete program cycle: halt a running sequencer, flush
// stale FIFO data, upload the program, switch to auto mode, start, poll until
// the sequencer stops, then drain and return whatever the program produced.
//
// Polling has no built-in timeout: a device program that never terminates
// stalls Run indefinitely. Bound the wait through ctx if the program is not
// trusted to finish. No step is retried; the first failure surfaces as-is and
// the device is left in whatever state the failing step reached.
func (c *Controller) Run(ctx context.Context, p Program) ([]Sample, error) {
	status, err := c.Status()
	if err != nil {
		return nil, err
	}
	if status == SeqRunning {
		if err := c.Stop(); err != nil {
			return nil, err
		}
	}

	if err := c.Flush(); err != nil {
		return nil, err
	}

	if err := c.LoadProgram(p); err != nil {
		return nil, err
	}

	if err := c.SetControlMode(ModeAuto); err != nil {
		return nil, err
	}

	if err := c.Start(); err != nil {
		return nil, err
	}

	if err := c.waitStopped(ctx); err != nil {
		return nil, err
	}

	return c.drainResults()
}

// waitStopped polls the sequencer status at the configured interval until the
// device reports stopped or ctx is done.
func (c *Controller) waitStopped(ctx context.Context) error {
	for {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status == SeqStopped {
			c.setState(IdleState)

			return nil
		}

		timer := pool.GetTimer(c.conn.Config().PollInterval())
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)

			return fmt.Errorf("arty: waiting for sequencer to stop: %w", ctx.Err())
		case <-timer.C:
			pool.PutTimer(timer)
		}
	}
}

// drainResults reads the full FIFO contents in chunks of at most MaxFIFOChunk
// samples. An empty FIFO yields an empty slice.
func (c *Controller) drainResults() ([]Sample, error) {
	length, err := c.FIFOLength()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	samples := make([]Sample, 0, length)

	for remaining := length; remaining > 0; {
		chunk := remaining
		if chunk > MaxFIFOChunk {
			chunk = MaxFIFOChunk
		}

		part, err := c.ReadFIFO(chunk)
		if err != nil {
			return nil, err
		}

		samples = append(samples, part...)
		remaining -= len(part)
	}

	return samples, nil
}
