package morse

// Timing in dot units. The letter tail and word gap are added on top of the
// trailing element gap, giving 3 and 7 unit totals respectively.
const (
	DefaultWPM = 12

	dotUnits        = 1
	dashUnits       = 3
	elementGapUnits = 1
	letterTailUnits = 2
	wordGapUnits    = 4
	pipUnits        = 3

	// SettleMs is the transmitter settle time after each session setup
	SettleMs = 50
)

// DotDurationMs returns the base timing unit for wpm, substituting
// DefaultWPM when wpm is zero.
func DotDurationMs(wpm uint) uint32 {
	if wpm == 0 {
		wpm = DefaultWPM
	}
	return uint32(1200 / wpm)
}

func symbolUnits(symbol rune) uint32 {
	if symbol == '-' {
		return dashUnits
	}
	return dotUnits
}

// OnAirMs returns the time the tone is keyed while sending text at wpm.
// Gaps and spaces are not counted.
func OnAirMs(text string, wpm uint) uint32 {
	dot := DotDurationMs(wpm)

	var total uint32
	for _, r := range text {
		code, ok := Lookup(r)
		if !ok {
			continue
		}
		for _, symbol := range code {
			total += symbolUnits(symbol) * dot
		}
	}
	return total
}

// TotalDurationMs returns the wall-clock cost of keying text at wpm,
// excluding the session settle time.
func TotalDurationMs(text string, wpm uint) uint32 {
	dot := DotDurationMs(wpm)

	var total uint32
	for _, r := range text {
		if r == ' ' {
			total += wordGapUnits * dot
			continue
		}
		code, ok := Lookup(r)
		if !ok {
			continue
		}
		for _, symbol := range code {
			total += (symbolUnits(symbol) + elementGapUnits) * dot
		}
		total += letterTailUnits * dot
	}
	return total
}

// PipsDurationMs returns the wall-clock cost of count pips at wpm,
// excluding the session settle time.
func PipsDurationMs(count uint, wpm uint) uint32 {
	return uint32(count) * 2 * pipUnits * DotDurationMs(wpm)
}
