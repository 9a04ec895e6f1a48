package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/dougsko/cwbeacon/pkg/morse"
)

// DefaultSampleRate is used when a renderer is created with a zero rate
const DefaultSampleRate = 8000

// Renderer synthesises what a keyer would put on the air as 16-bit mono
// PCM. It is both the transmitter and the clock of the keyer it serves, so
// delays advance the sample stream instead of sleeping.
type Renderer struct {
	mu sync.Mutex

	sampleRate int
	amplitude  float64

	session bool
	keyed   bool
	toneHz  float64
	phase   float64

	elapsedMs uint64
	samples   []int16
}

// NewRenderer creates a renderer at sampleRate Hz
func NewRenderer(sampleRate int) *Renderer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Renderer{
		sampleRate: sampleRate,
		amplitude:  0.5 * math.MaxInt16,
	}
}

// SampleRate returns the output rate in Hz
func (r *Renderer) SampleRate() int {
	return r.sampleRate
}

// BeginToneSession selects the tone for the following key-downs
func (r *Renderer) BeginToneSession(params morse.ToneParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = true
	r.keyed = false
	r.toneHz = float64(params.ToneHz)
}

// KeyOn starts the tone
func (r *Renderer) KeyOn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session {
		r.keyed = true
	}
}

// KeyOff stops the tone
func (r *Renderer) KeyOff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyed = false
}

// EndToneSession silences the renderer
func (r *Renderer) EndToneSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = false
	r.keyed = false
}

// DelayMs appends ms worth of samples in the current key state
func (r *Renderer) DelayMs(ms uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.elapsedMs += uint64(ms)
	target := int(r.elapsedMs * uint64(r.sampleRate) / 1000)

	step := 2 * math.Pi * r.toneHz / float64(r.sampleRate)
	for len(r.samples) < target {
		if !r.keyed {
			r.samples = append(r.samples, 0)
			continue
		}
		r.samples = append(r.samples, int16(r.amplitude*math.Sin(r.phase)))
		r.phase = math.Mod(r.phase+step, 2*math.Pi)
	}
}

// ElapsedMs returns the rendered length in milliseconds
func (r *Renderer) ElapsedMs() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedMs
}

// Samples returns a copy of the rendered audio
func (r *Renderer) Samples() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int16, len(r.samples))
	copy(out, r.samples)
	return out
}

// Reset discards rendered audio
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
	r.elapsedMs = 0
	r.phase = 0
	r.keyed = false
	r.session = false
}

// WriteWAV writes the rendered audio as a PCM WAV file
func (r *Renderer) WriteWAV(w io.Writer) error {
	return WriteWAV(w, r.Samples(), r.sampleRate)
}

// WriteWAV writes 16-bit mono samples as a canonical RIFF/WAVE stream
func WriteWAV(w io.Writer, samples []int16, sampleRate int) error {
	dataSize := uint32(len(samples) * 2)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}
