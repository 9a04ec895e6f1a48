package hardware

// Tone generator frequency word: the register counts in steps of
// 131072/1353245 Hz.
const (
	toneNumerator   = 1353245
	toneDenominator = 131072
)

// ToneRegister converts an audio tone in Hz to the tone generator register
// value, rounded to the nearest step.
func ToneRegister(hz uint16) uint16 {
	return uint16((uint64(hz)*toneNumerator + toneDenominator/2) / toneDenominator)
}
