package arty

import (
	"fmt"

	"github.com/iontrap/go-arty/internal/util"
)

// SampleBytes is the raw size of one FIFO sample on the wire.
const SampleBytes = 8

// Sample is one FIFO record: four unsigned 16-bit fields, one per
// acquisition channel, big-endian on the wire.
type Sample [4]uint16

// decodeSamples converts raw FIFO block payload into samples.
// len(data) must be a multiple of SampleBytes.
func decodeSamples(data []byte) ([]Sample, error) {
	if len(data)%SampleBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of samples", ErrDataLengthMismatch, len(data))
	}

	samples := make([]Sample, len(data)/SampleBytes)
	for i := range samples {
		raw := data[i*SampleBytes:]
		for ch := 0; ch < 4; ch++ {
			samples[i][ch] = util.U16BE(raw[2*ch], raw[2*ch+1])
		}
	}

	return samples, nil
}
