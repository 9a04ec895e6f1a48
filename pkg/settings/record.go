package settings

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Record layout, little-endian:
//
//	0   messages     2 x 11 bytes, NUL padded
//	22  enabled      1
//	23  wpm          1
//	24  tone_hz      2
//	26  mode         1
//	27  bandwidth    1
//	28  tx_mode      1
//	29  callsign     16, NUL padded
//	45  grid_square  16, NUL padded
//	61  fox_hunt     1
//	62  pip_count    1
//	63  pip_interval 2
//	65  id_interval  2
//	67  sos_enabled  1
//	68  sos_duty     1
//	69  reserved     9
const (
	messageField = MaxMessageLen + 1
	textField    = MaxCallsignLen + 1

	offEnabled     = MessageSlots * messageField
	offWPM         = offEnabled + 1
	offToneHz      = offWPM + 1
	offMode        = offToneHz + 2
	offBandwidth   = offMode + 1
	offTxMode      = offBandwidth + 1
	offCallsign    = offTxMode + 1
	offGridSquare  = offCallsign + textField
	offFoxHunt     = offGridSquare + textField
	offPipCount    = offFoxHunt + 1
	offPipInterval = offPipCount + 1
	offIDInterval  = offPipInterval + 2
	offSOSEnabled  = offIDInterval + 2
	offSOSDuty     = offSOSEnabled + 1
	offReserved    = offSOSDuty + 1
	reservedBytes  = 9

	// RecordSize is the encoded size of BeaconConfig
	RecordSize = offReserved + reservedBytes

	// PageSize is the non-volatile write granularity
	PageSize = 8

	// PersistedSize is RecordSize rounded up to whole pages
	PersistedSize = (RecordSize + PageSize - 1) / PageSize * PageSize

	// Address is the reserved non-volatile location of the record
	Address = 0x1C00

	// ErasedByte is the content of never-written storage and of the page padding
	ErasedByte = 0xFF
)

// ErrRecordSize is returned when a buffer is too short to hold a record
var ErrRecordSize = errors.New("settings record too short")

// Marshal encodes c into a PersistedSize buffer. Text longer than its field
// is truncated; the padding after the record is filled with ErasedByte.
func Marshal(c *BeaconConfig) []byte {
	buf := make([]byte, PersistedSize)
	for i := RecordSize; i < PersistedSize; i++ {
		buf[i] = ErasedByte
	}

	for i, msg := range c.Messages {
		putText(buf[i*messageField:(i+1)*messageField], msg)
	}
	buf[offEnabled] = boolByte(c.Enabled)
	buf[offWPM] = c.WPM
	binary.LittleEndian.PutUint16(buf[offToneHz:], c.ToneHz)
	buf[offMode] = c.Mode
	buf[offBandwidth] = c.Bandwidth
	buf[offTxMode] = c.TxMode
	putText(buf[offCallsign:offCallsign+textField], c.Callsign)
	putText(buf[offGridSquare:offGridSquare+textField], c.GridSquare)
	buf[offFoxHunt] = boolByte(c.FoxHuntEnabled)
	buf[offPipCount] = c.PipCount
	binary.LittleEndian.PutUint16(buf[offPipInterval:], c.PipInterval)
	binary.LittleEndian.PutUint16(buf[offIDInterval:], c.IDInterval)
	buf[offSOSEnabled] = boolByte(c.SOSModeEnabled)
	buf[offSOSDuty] = c.SOSDutyCycle

	return buf
}

// Unmarshal decodes a record. No range checks are applied; see Load.
func Unmarshal(data []byte) (BeaconConfig, error) {
	var c BeaconConfig
	if len(data) < RecordSize {
		return c, fmt.Errorf("%w: %d bytes, need %d", ErrRecordSize, len(data), RecordSize)
	}

	for i := range c.Messages {
		c.Messages[i] = getText(data[i*messageField : (i+1)*messageField])
	}
	c.Enabled = data[offEnabled] == 1
	c.WPM = data[offWPM]
	c.ToneHz = binary.LittleEndian.Uint16(data[offToneHz:])
	c.Mode = data[offMode]
	c.Bandwidth = data[offBandwidth]
	c.TxMode = data[offTxMode]
	c.Callsign = getText(data[offCallsign : offCallsign+textField])
	c.GridSquare = getText(data[offGridSquare : offGridSquare+textField])
	c.FoxHuntEnabled = data[offFoxHunt] == 1
	c.PipCount = data[offPipCount]
	c.PipInterval = binary.LittleEndian.Uint16(data[offPipInterval:])
	c.IDInterval = binary.LittleEndian.Uint16(data[offIDInterval:])
	c.SOSModeEnabled = data[offSOSEnabled] == 1
	c.SOSDutyCycle = data[offSOSDuty]

	return c, nil
}

// putText copies s into field leaving at least one terminating NUL
func putText(field []byte, s string) {
	n := copy(field[:len(field)-1], s)
	for i := n; i < len(field); i++ {
		field[i] = 0
	}
}

func getText(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	if i := bytes.IndexByte(field, ErasedByte); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
