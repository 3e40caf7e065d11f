package arty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T, opts ...Option) (*fakeDevice, *Conn) {
	t.Helper()

	fd, host := newFakeDevice(t)

	conn, err := NewConn(host, opts...)
	require.NoError(t, err)

	return fd, conn
}

func TestNewConn_NilPort(t *testing.T) {
	_, err := NewConn(nil)
	require.Error(t, err)
}

func TestNewConn_OptionValidation(t *testing.T) {
	_, host := newFakeDevice(t)

	_, err := NewConn(host, WithReadTimeout(time.Nanosecond))
	require.Error(t, err)

	_, err = NewConn(host, WithPollInterval(-time.Second))
	require.Error(t, err)

	_, err = NewConn(host, WithLogger(nil))
	require.Error(t, err)
}

func TestConn_ConfigDefaults(t *testing.T) {
	_, conn := newTestConn(t)

	assert.Equal(t, DefaultReadTimeout, conn.Config().ReadTimeout())
	assert.Equal(t, DefaultPollInterval, conn.Config().PollInterval())
}

func TestConn_Request(t *testing.T) {
	fd, conn := newTestConn(t)

	msg, err := conn.Request(CmdIdn)
	require.NoError(t, err)
	assert.Equal(t, BlockMsg, msg.Type)
	assert.Equal(t, []byte("IonTrap,ArtyS7,0042,v1.3"), msg.Payload)

	assert.Equal(t, 1, fd.commandCount(CmdIdn))
	assert.Equal(t, uint64(1), conn.Metrics().CommandSendCount.Load())
	assert.Equal(t, uint64(1), conn.Metrics().MsgRecvCount.Load())
}

func TestConn_NextMessage_Timeout(t *testing.T) {
	_, conn := newTestConn(t, WithReadTimeout(20*time.Millisecond))

	// Nothing was requested, so nothing arrives before the deadline.
	msg, err := conn.NextMessage()
	require.NoError(t, err)
	assert.Equal(t, EndOfStream, msg.Type)
}

func TestConn_EscapeStatus(t *testing.T) {
	fd, conn := newTestConn(t)
	fd.setRunning(true)
	fd.setManual(true)
	fd.setWaveformStatus(wfPresentBit | wfArmedBit)

	rpt, err := conn.EscapeStatus()
	require.NoError(t, err)
	assert.False(t, rpt.SequencerStopped())
	assert.True(t, rpt.ManualMode())
	assert.True(t, rpt.WaveformModulePresent())
	assert.True(t, rpt.WaveformTriggerArmed())
	assert.False(t, rpt.WaveformDataCaptured())
}

func TestConn_EscapeStatus_Stopped(t *testing.T) {
	_, conn := newTestConn(t)

	rpt, err := conn.EscapeStatus()
	require.NoError(t, err)
	assert.True(t, rpt.SequencerStopped())
	assert.False(t, rpt.ManualMode())
}

func TestConn_EscapeStatus_WrongReply(t *testing.T) {
	fd, conn := newTestConn(t)
	fd.setProbeGarbage(true)

	_, err := conn.EscapeStatus()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestConn_Close(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.Close())
	// Close is idempotent.
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.SendCommand("A"), ErrConnClosed)
	assert.ErrorIs(t, conn.SendBlock([]byte{1}), ErrConnClosed)

	_, err := conn.NextMessage()
	assert.ErrorIs(t, err, ErrConnClosed)

	_, err = conn.EscapeStatus()
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_SendCommand_TooLong(t *testing.T) {
	_, conn := newTestConn(t)

	err := conn.SendCommand("THIS COMMAND IS TOO LONG")
	assert.ErrorIs(t, err, ErrCommandTooLong)
}
