package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Countdowns mirrors the scheduler timers, in ticks
type Countdowns struct {
	Pip uint32 `json:"pip"`
	ID  uint32 `json:"id"`
	SOS uint32 `json:"sos"`
}

// Status represents the current daemon status
type Status struct {
	Callsign       string     `json:"callsign"`
	Grid           string     `json:"grid"`
	Enabled        bool       `json:"enabled"`
	FoxHunt        bool       `json:"fox_hunt"`
	SOSMode        bool       `json:"sos_mode"`
	WPM            uint8      `json:"wpm"`
	ToneHz         uint16     `json:"tone_hz"`
	Transmitting   bool       `json:"transmitting"`
	PTT            bool       `json:"ptt"`
	RadioConnected bool       `json:"radio_connected"`
	TickMs         uint32     `json:"tick_ms"`
	Countdowns     Countdowns `json:"countdowns"`
	Transmissions  int        `json:"transmissions"`
	Uptime         string     `json:"uptime"`
	StartTime      time.Time  `json:"start_time"`
	Version        string     `json:"version"`
}

// LogEntry is one transmission as returned by LOG
type LogEntry struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Payload    string    `json:"payload"`
	WPM        uint      `json:"wpm"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Queued acknowledges a manual transmission
type Queued struct {
	Kind        string `json:"kind"`
	Payload     string `json:"payload"`
	WPM         uint   `json:"wpm"`
	EstimatedMs uint32 `json:"estimated_ms"`
}

// Protocol commands
const (
	CmdStatus  = "STATUS"
	CmdPing    = "PING"
	CmdConfig  = "CONFIG"
	CmdSend    = "SEND"
	CmdSendMsg = "SENDMSG"
	CmdPips    = "PIPS"
	CmdLog     = "LOG"
	CmdQuit    = "QUIT"
)

// ErrEmptyCommand is returned for a blank command line
var ErrEmptyCommand = errors.New("empty command")

// DefaultLogLimit is the number of log entries LOG returns without an argument
const DefaultLogLimit = 20

// ParseCommand parses a text command into a Command struct. Numeric
// arguments are converted to int.
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCommand
	}
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(strings.TrimSpace(parts[0])),
		Args: make(map[string]interface{}),
	}

	args := ""
	if len(parts) > 1 {
		args = parts[1]
	}

	switch cmd.Type {
	case CmdSend:
		// SEND:CQ CQ DE N0CALL
		if strings.TrimSpace(args) == "" {
			return nil, fmt.Errorf("%s requires text", CmdSend)
		}
		cmd.Args["text"] = strings.TrimSpace(args)

	case CmdSendMsg:
		// SENDMSG:1
		slot, err := parseInt(args, "slot")
		if err != nil {
			return nil, err
		}
		cmd.Args["slot"] = slot

	case CmdPips:
		// PIPS or PIPS:5
		if args != "" {
			count, err := parseInt(args, "count")
			if err != nil {
				return nil, err
			}
			cmd.Args["count"] = count
		}

	case CmdLog:
		// LOG or LOG:50
		limit := DefaultLogLimit
		if args != "" {
			n, err := parseInt(args, "limit")
			if err != nil {
				return nil, err
			}
			limit = n
		}
		cmd.Args["limit"] = limit

	case CmdConfig:
		// CONFIG, CONFIG:get:key or CONFIG:set:key:value
		if args == "" {
			break
		}
		configParts := strings.SplitN(args, ":", 3)
		cmd.Args["action"] = strings.ToLower(configParts[0])
		if len(configParts) >= 2 {
			cmd.Args["key"] = configParts[1]
		}
		if len(configParts) >= 3 {
			cmd.Args["value"] = configParts[2]
		}
	}

	return cmd, nil
}

func parseInt(value, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return n, nil
}

// String converts a Response to JSON
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}
