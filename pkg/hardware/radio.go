package hardware

// RadioConfig represents radio configuration
type RadioConfig struct {
	Model    string // rig model name
	Device   string // serial device path (e.g., /dev/ttyUSB0)
	BaudRate int    // serial baud rate
	Enabled  bool   // whether radio control is enabled
}

// RadioInterface defines the CAT operations the beacon needs around a transmission
type RadioInterface interface {
	Initialize() error
	Close() error

	// Mode control
	SetMode(mode string, bandwidth int) error
	GetMode() (string, int, error)

	// PTT control
	SetPTT(state bool) error
	GetPTT() (bool, error)

	GetRadioInfo() (RadioInfo, error)
	IsConnected() bool
}

// RadioInfo represents radio information
type RadioInfo struct {
	Model        string
	Manufacturer string
	Version      string
	Capabilities []string
}

// Radio modes
const (
	ModeFM  = "FM"
	ModeAM  = "AM"
	ModeUSB = "USB"
	ModeLSB = "LSB"
	ModeCW  = "CW"
)

// Channel bandwidths in Hz
const (
	BandwidthWide   = 25000
	BandwidthNarrow = 12500
)
