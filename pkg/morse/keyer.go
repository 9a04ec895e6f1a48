package morse

import (
	"github.com/dougsko/cwbeacon/pkg/settings"
)

// ToneParams configures the transmitter for one keying session. Mode,
// Bandwidth and TxMode are passed through untouched.
type ToneParams struct {
	ToneHz    uint16
	Mode      uint8
	Bandwidth uint8
	TxMode    uint8
}

// Transmitter is the keying surface of the radio
type Transmitter interface {
	// BeginToneSession mutes audio and TX, programs the tone generator and
	// enables the TX link.
	BeginToneSession(params ToneParams)
	// KeyOn unmutes the TX path, starting the tone
	KeyOn()
	// KeyOff mutes the TX path
	KeyOff()
	// EndToneSession disables the tone generator. Safe to call repeatedly.
	EndToneSession()
}

// Clock provides the blocking wait between keying transitions
type Clock interface {
	DelayMs(ms uint32)
}

// Keyer turns text into timed keying. Every call blocks until the whole
// transmission has been keyed; there is no cancellation.
type Keyer struct {
	tx    Transmitter
	clock Clock
}

// NewKeyer creates a keyer driving tx with waits on clock
func NewKeyer(tx Transmitter, clock Clock) *Keyer {
	return &Keyer{tx: tx, clock: clock}
}

func toneParams(cfg *settings.BeaconConfig) ToneParams {
	return ToneParams{
		ToneHz:    cfg.ToneHz,
		Mode:      cfg.Mode,
		Bandwidth: cfg.Bandwidth,
		TxMode:    cfg.TxMode,
	}
}

func (k *Keyer) beginSession(cfg *settings.BeaconConfig) {
	k.tx.BeginToneSession(toneParams(cfg))
	k.clock.DelayMs(SettleMs)
}

// TransmitText keys text at wpm. Characters missing from the table are
// skipped without a gap. With the beacon disabled only the session setup
// and teardown are performed.
func (k *Keyer) TransmitText(cfg *settings.BeaconConfig, text string, wpm uint) {
	k.beginSession(cfg)
	defer k.tx.EndToneSession()

	if !cfg.Enabled {
		return
	}

	dot := DotDurationMs(wpm)
	for _, r := range text {
		if r == ' ' {
			k.clock.DelayMs(wordGapUnits * dot)
			continue
		}

		code, ok := Lookup(r)
		if !ok {
			continue
		}

		for _, symbol := range code {
			k.tx.KeyOn()
			k.clock.DelayMs(symbolUnits(symbol) * dot)
			k.tx.KeyOff()
			k.clock.DelayMs(elementGapUnits * dot)
		}
		k.clock.DelayMs(letterTailUnits * dot)
	}
}

// TransmitPips keys count dash-length pips separated by equal gaps, timed
// from the configured wpm. Does nothing when the beacon is disabled.
func (k *Keyer) TransmitPips(cfg *settings.BeaconConfig, count uint) {
	if !cfg.Enabled {
		return
	}

	k.beginSession(cfg)
	defer k.tx.EndToneSession()

	pip := pipUnits * DotDurationMs(uint(cfg.WPM))
	for i := uint(0); i < count; i++ {
		k.tx.KeyOn()
		k.clock.DelayMs(pip)
		k.tx.KeyOff()
		k.clock.DelayMs(pip)
	}
}
