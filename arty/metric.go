package arty

import (
	"sync/atomic"
)

// Metrics contains atomic counters for one instrument connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CommandSendCount indicates the number of command frames sent.
	CommandSendCount atomic.Uint64
	// BlockSendCount indicates the number of block frames sent.
	BlockSendCount atomic.Uint64
	// MsgRecvCount indicates the number of framed messages decoded.
	MsgRecvCount atomic.Uint64
	// EscapeRecvCount indicates the number of out-of-band escapes received.
	EscapeRecvCount atomic.Uint64
	// TerminatorWarnCount indicates the number of terminator mismatches observed.
	TerminatorWarnCount atomic.Uint64
	// UnknownSigCount indicates the number of unrecognized signature bytes.
	UnknownSigCount atomic.Uint64
	// SampleDrainCount indicates the total number of FIFO samples drained.
	SampleDrainCount atomic.Uint64
}

func (m *Metrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *Metrics) incBlockSendCount() {
	m.BlockSendCount.Add(1)
}

func (m *Metrics) incMsgRecvCount() {
	m.MsgRecvCount.Add(1)
}

func (m *Metrics) incEscapeRecvCount() {
	m.EscapeRecvCount.Add(1)
}

func (m *Metrics) incTerminatorWarnCount() {
	m.TerminatorWarnCount.Add(1)
}

func (m *Metrics) incUnknownSigCount() {
	m.UnknownSigCount.Add(1)
}

func (m *Metrics) addSampleDrainCount(n int) {
	m.SampleDrainCount.Add(uint64(n)) //nolint:gosec // n is a validated chunk size
}
