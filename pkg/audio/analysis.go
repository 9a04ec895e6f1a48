package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Levels represents level measurements over a block of samples
type Levels struct {
	RMSLevel  float32 `json:"rms"`      // RMS level in dB
	PeakLevel float32 `json:"peak"`     // Peak level in dB
	Clipping  bool    `json:"clipping"` // True if clipping detected
}

// Segment is one continuous key-down found in rendered audio
type Segment struct {
	StartMs    float64 `json:"start_ms"`
	DurationMs float64 `json:"duration_ms"`
}

// makeHannWindow creates a Hann window function for FFT
func makeHannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// MeasureLevels computes RMS and peak levels of samples
func MeasureLevels(samples []int16) Levels {
	levels := Levels{RMSLevel: -100.0, PeakLevel: -100.0}
	if len(samples) == 0 {
		return levels
	}

	var sumSquares float64
	var peak float64

	for _, sample := range samples {
		v := math.Abs(float64(sample))
		if v > peak {
			peak = v
		}
		if v >= 32000 { // ~98% of max int16
			levels.Clipping = true
		}
		sumSquares += v * v
	}

	if rms := math.Sqrt(sumSquares / float64(len(samples))); rms > 0 {
		levels.RMSLevel = float32(20.0 * math.Log10(rms/32768.0))
	}
	if peak > 0 {
		levels.PeakLevel = float32(20.0 * math.Log10(peak/32768.0))
	}
	return levels
}

// PeakFrequency returns the dominant frequency in samples, refined between
// FFT bins by parabolic interpolation. Silence yields zero.
func PeakFrequency(samples []int16, sampleRate int) float64 {
	n := len(samples)
	if n < 2 || sampleRate <= 0 {
		return 0
	}

	window := makeHannWindow(n)
	input := make([]complex128, n)
	for i, sample := range samples {
		input[i] = complex(float64(sample)/32768.0*window[i], 0)
	}

	spectrum := fft.FFT(input)

	half := n / 2
	magnitudes := make([]float64, half)
	best := 0
	for i := 0; i < half; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
		if magnitudes[i] > magnitudes[best] {
			best = i
		}
	}
	if best == 0 || magnitudes[best] == 0 {
		return 0
	}

	offset := 0.0
	if best+1 < half {
		a, b, c := magnitudes[best-1], magnitudes[best], magnitudes[best+1]
		if denom := a - 2*b + c; denom != 0 {
			offset = 0.5 * (a - c) / denom
		}
	}

	return (float64(best) + offset) * float64(sampleRate) / float64(n)
}

// KeyedSegments recovers key-down intervals from rendered audio. Gaps
// shorter than a millisecond are treated as zero crossings of the tone.
func KeyedSegments(samples []int16, sampleRate int) []Segment {
	if sampleRate <= 0 {
		return nil
	}

	minGap := sampleRate / 1000
	if minGap < 2 {
		minGap = 2
	}
	msPerSample := 1000.0 / float64(sampleRate)

	var segments []Segment
	start, last := -1, -1

	flush := func() {
		if start >= 0 {
			segments = append(segments, Segment{
				StartMs:    float64(start) * msPerSample,
				DurationMs: float64(last-start+1) * msPerSample,
			})
		}
	}

	for i, sample := range samples {
		if sample == 0 {
			continue
		}
		if start >= 0 && i-last > minGap {
			flush()
			start = -1
		}
		if start < 0 {
			start = i
		}
		last = i
	}
	flush()

	return segments
}
