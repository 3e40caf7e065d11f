package arty

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
)

// unbufferedReader limits every Read to one byte so the serving goroutine
// never buffers past the byte it is about to act on. Combined with the
// handle-before-final-terminator ordering below, this makes the host's
// net.Pipe Write of a frame return only after the frame's effect on the
// fake's state is visible, keeping test assertions race-free.
type unbufferedReader struct{ r io.Reader }

func (u unbufferedReader) Read(p []byte) (int, error) { return u.r.Read(p[:1]) }

// fakeDevice emulates the instrument firmware over the device end of a
// net.Pipe: it parses command and block frames, answers the raw status probe,
// and keeps enough state (program memory, FIFO, control mode) to exercise the
// full host-side flow.
type fakeDevice struct {
	t    *testing.T
	conn net.Conn

	mu             sync.Mutex
	progMem        map[uint16][InstrBytes]byte
	progWrites     int
	lastBlock      []byte
	cmdLog         []string
	running        bool
	manual         bool
	pollsUntilStop int
	fifo           []byte
	pending        []byte
	idn            string
	dna            []byte
	intensity      byte
	bits           uint32
	wfStatus       byte
	probeGarbage   bool
}

// newFakeDevice starts the emulator and returns it together with the host end
// of the pipe. Both ends are closed on test cleanup.
func newFakeDevice(t *testing.T) (*fakeDevice, net.Conn) {
	t.Helper()

	host, dev := net.Pipe()

	fd := &fakeDevice{
		t:       t,
		conn:    dev,
		progMem: make(map[uint16][InstrBytes]byte),
		idn:     "IonTrap,ArtyS7,0042,v1.3",
		dna:     []byte{0x10, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF},
	}

	t.Cleanup(func() {
		host.Close()
		dev.Close()
	})

	go fd.serve()

	return fd, host
}

func (fd *fakeDevice) serve() {
	r := bufio.NewReader(unbufferedReader{fd.conn})

	for {
		sig, err := r.ReadByte()
		if err != nil {
			return
		}

		switch sig {
		case '!':
			if err := fd.readCommand(r); err != nil {
				return
			}
		case '#':
			if err := fd.readBlock(r); err != nil {
				return
			}
		case DLE:
			code, err := r.ReadByte()
			if err != nil {
				return
			}
			if code == 'R' {
				if err := fd.handleProbe(); err != nil {
					return
				}
			}
		}
	}
}

func (fd *fakeDevice) readCommand(r *bufio.Reader) error {
	d, err := r.ReadByte()
	if err != nil {
		return err
	}

	payload, err := fd.readUnstuffed(r, hexDigitVal(d))
	if err != nil {
		return err
	}

	// Consume the CR, apply the command, then consume the LF: the host's
	// Write of the frame returns only once the LF is read, so the command's
	// state change is already visible when the test asserts. Any reply is
	// written after the LF to avoid deadlocking the unbuffered pipe.
	if _, err := r.ReadByte(); err != nil {
		return err
	}

	reply := fd.handleCommand(string(payload))

	if _, err := r.ReadByte(); err != nil {
		return err
	}

	if reply == nil {
		return nil
	}

	_, err = fd.conn.Write(reply)

	return err
}

func (fd *fakeDevice) readBlock(r *bufio.Reader) error {
	d, err := r.ReadByte()
	if err != nil {
		return err
	}

	count := 0
	for i := 0; i < hexDigitVal(d); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return err
		}
		count = count*16 + hexDigitVal(c)
	}

	payload, err := fd.readUnstuffed(r, count)
	if err != nil {
		return err
	}

	// Store the block before consuming the terminator so it is visible as
	// soon as the host's Write returns.
	fd.mu.Lock()
	fd.lastBlock = payload
	fd.mu.Unlock()

	return fd.skipTerminator(r)
}

func (fd *fakeDevice) readUnstuffed(r *bufio.Reader, n int) ([]byte, error) {
	payload := make([]byte, 0, n)
	for len(payload) < n {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == DLE {
			if b, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}
		payload = append(payload, b)
	}

	return payload, nil
}

func (fd *fakeDevice) skipTerminator(r *bufio.Reader) error {
	for range terminator {
		if _, err := r.ReadByte(); err != nil {
			return err
		}
	}

	return nil
}

// handleCommand applies cmd to the device state and returns the framed reply
// to send, or nil when the command is fire-and-forget. The caller writes the
// reply only after consuming the frame terminator.
func (fd *fakeDevice) handleCommand(cmd string) []byte {
	fd.mu.Lock()
	fd.cmdLog = append(fd.cmdLog, cmd)

	var reply []byte

	switch cmd {
	case CmdLoadProg:
		if len(fd.lastBlock) == 2+InstrBytes {
			addr := binary.BigEndian.Uint16(fd.lastBlock[:2])
			var instr [InstrBytes]byte
			copy(instr[:], fd.lastBlock[2:])
			fd.progMem[addr] = instr
			fd.progWrites++
		}
	case CmdStartSequencer:
		fd.running = true
	case CmdAutoMode:
		fd.manual = false
		reply = deviceAck("OK")
	case CmdManualMode:
		fd.manual = true
		reply = deviceAck("OK")
	case CmdDataLength:
		n := len(fd.fifo) / SampleBytes
		reply = deviceBlock([]byte{byte(n >> 8), byte(n)})
	case CmdReadData:
		want := int(binary.BigEndian.Uint16(fd.lastBlock)) * SampleBytes
		if want > len(fd.fifo) {
			want = len(fd.fifo)
		}
		reply = deviceBlock(fd.fifo[:want])
		fd.fifo = fd.fifo[want:]
	case CmdIdn:
		reply = deviceBlock([]byte(fd.idn))
	case CmdDNAPort:
		reply = deviceBlock(fd.dna)
	case CmdReadIntensity:
		reply = deviceBlock([]byte{fd.intensity})
	case CmdAdjIntensity:
		if len(fd.lastBlock) == 1 {
			fd.intensity = fd.lastBlock[0]
		}
	case CmdReadBits:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], fd.bits)
		reply = deviceBlock(buf[:])
	case CmdUpdateBits:
		if len(fd.lastBlock) == 8 {
			mask := binary.BigEndian.Uint32(fd.lastBlock[:4])
			values := binary.BigEndian.Uint32(fd.lastBlock[4:])
			fd.bits = (fd.bits &^ mask) | (values & mask)
		}
	}
	fd.mu.Unlock()

	return reply
}

// handleProbe answers the raw status probe. While the sequencer runs, each
// probe counts down pollsUntilStop; at zero the sequencer stops and the
// pending result bytes appear in the FIFO.
func (fd *fakeDevice) handleProbe() error {
	fd.mu.Lock()

	if fd.running && fd.pollsUntilStop > 0 {
		fd.pollsUntilStop--
		if fd.pollsUntilStop == 0 {
			fd.running = false
			fd.fifo = append(fd.fifo, fd.pending...)
			fd.pending = nil
		}
	}

	var status [escStatusLen]byte
	if !fd.running {
		status[2] |= seqStoppedBit
	}
	if fd.manual {
		status[2] |= seqManualBit
	}
	status[4] = fd.wfStatus

	garbage := fd.probeGarbage
	fd.mu.Unlock()

	if garbage {
		_, err := fd.conn.Write(deviceAck("OK"))

		return err
	}

	reply := []byte{DLE, 'R'}
	reply = appendStuffed(reply, status[:])
	reply = append(reply, terminator...)

	_, err := fd.conn.Write(reply)

	return err
}

// --- state accessors for assertions ---

func (fd *fakeDevice) commandCount(cmd string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	n := 0
	for _, c := range fd.cmdLog {
		if c == cmd {
			n++
		}
	}

	return n
}

func (fd *fakeDevice) progMemWord(addr uint16) ([InstrBytes]byte, bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	w, ok := fd.progMem[addr]

	return w, ok
}

func (fd *fakeDevice) programWrites() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	return fd.progWrites
}

func (fd *fakeDevice) setRunning(running bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.running = running
}

func (fd *fakeDevice) setManual(manual bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.manual = manual
}

func (fd *fakeDevice) setWaveformStatus(b byte) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.wfStatus = b
}

func (fd *fakeDevice) setProbeGarbage(on bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.probeGarbage = on
}

func (fd *fakeDevice) fillFIFO(samples []Sample) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.fifo = append(fd.fifo, sampleBytes(samples)...)
}

// armResults queues result samples that land in the FIFO once the sequencer
// is observed stopped after the given number of status polls.
func (fd *fakeDevice) armResults(polls int, samples []Sample) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.pollsUntilStop = polls
	fd.pending = sampleBytes(samples)
}

func (fd *fakeDevice) intensityValue() byte {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	return fd.intensity
}

func (fd *fakeDevice) bitsValue() uint32 {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	return fd.bits
}

// --- wire helpers ---

// deviceAck frames a short reply the way the firmware does; identical to the
// host command frame.
func deviceAck(payload string) []byte {
	buf := []byte{'!', hexDigits[len(payload)]}
	buf = appendStuffed(buf, []byte(payload))

	return append(buf, terminator...)
}

// deviceBlock frames a binary reply. Unlike EncodeBlock it has no length cap:
// FIFO read replies carry up to 4096 bytes.
func deviceBlock(data []byte) []byte {
	count := strconv.FormatInt(int64(len(data)), 16)

	buf := make([]byte, 0, len(data)+len(count)+4)
	buf = append(buf, '#', hexDigits[len(count)])
	buf = append(buf, count...)
	buf = appendStuffed(buf, data)

	return append(buf, terminator...)
}

// sampleBytes flattens samples to their big-endian wire form.
func sampleBytes(samples []Sample) []byte {
	buf := make([]byte, 0, len(samples)*SampleBytes)
	for _, s := range samples {
		for _, v := range s {
			buf = append(buf, byte(v>>8), byte(v))
		}
	}

	return buf
}

// testSamples builds n distinct samples for drain assertions.
func testSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		base := uint16(i)
		samples[i] = Sample{base, base + 1, base + 2, base + 3}
	}

	return samples
}
