package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pborman/getopt"

	"github.com/dougsko/cwbeacon/pkg/audio"
	"github.com/dougsko/cwbeacon/pkg/beacon"
	"github.com/dougsko/cwbeacon/pkg/morse"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

var (
	dotColor  = color.New(color.FgHiGreen)
	dashColor = color.New(color.FgHiYellow)
	wordColor = color.New(color.FgHiMagenta)
	headColor = color.New(color.FgHiWhite, color.Bold)
)

func main() {
	h := getopt.BoolLong("help", 'h', "display help")
	m := getopt.StringLong("message", 'm', "", "Text to encode")
	w := getopt.Uint16Long("wpm", 'w', 12, "Keying speed in words per minute")
	t := getopt.Uint16Long("tone", 't', 600, "Sidetone frequency in Hz")
	d := getopt.Uint16Long("duty", 'd', 20, "SOS duty cycle in percent")
	p := getopt.Uint16Long("pips", 'p', 0, "Encode this many pips instead of text")
	r := getopt.Uint16Long("rate", 'r', audio.DefaultSampleRate, "Audio sample rate")
	o := getopt.StringLong("output", 'o', "", "Write the keyed audio to this WAV file")
	e := getopt.BoolLong("elements", 'e', "Show element timing recovered from the audio")
	nc := getopt.BoolLong("no-color", 'n', "Disable coloured output")

	getopt.Parse()

	if *nc {
		color.NoColor = true
	}

	text := strings.ToUpper(strings.TrimSpace(*m))
	if text == "" && getopt.NArgs() > 0 {
		text = strings.ToUpper(strings.Join(getopt.Args(), " "))
	}

	if *h || (text == "" && *p == 0) || *w == 0 || *w > settings.MaxWPM {
		fmt.Println("cwencode - Morse beacon timing calculator")
		getopt.Usage()
		os.Exit(1)
	}

	cfg := settings.Defaults()
	cfg.Enabled = true
	cfg.WPM = uint8(*w)
	cfg.ToneHz = *t
	wpm := uint(*w)

	renderer := audio.NewRenderer(int(*r))
	keyer := morse.NewKeyer(renderer, renderer)

	var onAir, total uint32
	if *p > 0 {
		headColor.Println("Encoding pips")
		fmt.Printf("Count:    %d\n", *p)
		onAir = uint32(*p) * 3 * morse.DotDurationMs(wpm)
		total = morse.PipsDurationMs(uint(*p), wpm)
		keyer.TransmitPips(&cfg, uint(*p))
	} else {
		headColor.Println("Encoding Morse")
		fmt.Printf("Text:     %q\n", text)
		fmt.Printf("Elements: %s\n", colorize(morse.Encode(text)))
		onAir = morse.OnAirMs(text, wpm)
		total = morse.TotalDurationMs(text, wpm)
		keyer.TransmitText(&cfg, text, wpm)
	}

	fmt.Printf("Speed:    %d WPM (dot %d ms)\n", wpm, morse.DotDurationMs(wpm))
	fmt.Printf("Tone:     %d Hz\n", *t)
	fmt.Printf("On air:   %d ms\n", onAir)
	fmt.Printf("Total:    %d ms (+%d ms settle)\n", total, morse.SettleMs)

	if *d >= settings.MinSOSDutyCycle && *d <= settings.MaxSOSDutyCycle && onAir > 0 {
		pause := beacon.DutyCyclePauseMs(onAir, total, uint8(*d))
		fmt.Printf("Pause:    %d ms (%d ticks) for %d%% duty\n", pause, pause/beacon.DefaultTickMs, *d)
	} else {
		fmt.Printf("Pause:    duty cycle %d%% out of range\n", *d)
	}

	samples := renderer.Samples()
	if len(samples) > 0 && onAir > 0 {
		levels := audio.MeasureLevels(samples)
		fmt.Printf("Measured: %.1f Hz peak, %.1f dBFS RMS, %.1f dBFS peak\n",
			audio.PeakFrequency(samples, renderer.SampleRate()), levels.RMSLevel, levels.PeakLevel)
	}

	if *e {
		fmt.Println()
		headColor.Println("Keyed elements")
		for i, seg := range audio.KeyedSegments(samples, renderer.SampleRate()) {
			fmt.Printf("%3d: %8.1f ms  %6.1f ms\n", i, seg.StartMs, seg.DurationMs)
		}
	}

	if *o != "" {
		f, err := os.Create(*o)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		if err := renderer.WriteWAV(f); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write audio: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Wrote %d samples at %d Hz to %s\n", len(samples), renderer.SampleRate(), *o)
	}
}

// colorize tints dots, dashes and word gaps of an encoded string
func colorize(encoded string) string {
	var b strings.Builder
	for _, r := range encoded {
		switch r {
		case '.':
			b.WriteString(dotColor.Sprint("."))
		case '-':
			b.WriteString(dashColor.Sprint("-"))
		case '/':
			b.WriteString(wordColor.Sprint("/"))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
