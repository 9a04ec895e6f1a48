package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Run("STATUS Command", func(t *testing.T) {
		cmd, err := ParseCommand("STATUS")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdStatus {
			t.Errorf("Expected type STATUS, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for STATUS, got %d", len(cmd.Args))
		}
	})

	t.Run("SEND Command Keeps Colons And Spaces", func(t *testing.T) {
		cmd, err := ParseCommand("SEND:CQ CQ DE K3DEP 73:")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdSend {
			t.Errorf("Expected type SEND, got %s", cmd.Type)
		}
		if cmd.Args["text"] != "CQ CQ DE K3DEP 73:" {
			t.Errorf("Unexpected text %v", cmd.Args["text"])
		}
	})

	t.Run("SEND Without Text", func(t *testing.T) {
		for _, text := range []string{"SEND", "SEND:", "SEND:   "} {
			if _, err := ParseCommand(text); err == nil {
				t.Errorf("Expected error for %q", text)
			}
		}
	})

	t.Run("SENDMSG Command", func(t *testing.T) {
		cmd, err := ParseCommand("SENDMSG:2")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["slot"] != 2 {
			t.Errorf("Expected slot 2, got %v", cmd.Args["slot"])
		}

		if _, err := ParseCommand("SENDMSG:two"); err == nil {
			t.Error("Expected error for non-numeric slot")
		}
		if _, err := ParseCommand("SENDMSG"); err == nil {
			t.Error("Expected error for missing slot")
		}
	})

	t.Run("PIPS Command", func(t *testing.T) {
		cmd, err := ParseCommand("PIPS:7")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["count"] != 7 {
			t.Errorf("Expected count 7, got %v", cmd.Args["count"])
		}

		cmd, err = ParseCommand("PIPS")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if _, exists := cmd.Args["count"]; exists {
			t.Error("Expected no count when none given")
		}

		if _, err := ParseCommand("PIPS:-1"); err == nil {
			t.Error("Expected error for negative count")
		}
	})

	t.Run("LOG Command", func(t *testing.T) {
		cmd, err := ParseCommand("LOG")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["limit"] != DefaultLogLimit {
			t.Errorf("Expected default limit, got %v", cmd.Args["limit"])
		}

		cmd, err = ParseCommand("log:50")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdLog || cmd.Args["limit"] != 50 {
			t.Errorf("Unexpected command %+v", cmd)
		}
	})

	t.Run("CONFIG Command Set", func(t *testing.T) {
		cmd, err := ParseCommand("CONFIG:set:message1:CQ:TEST")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["action"] != "set" {
			t.Errorf("Expected action set, got %v", cmd.Args["action"])
		}
		if cmd.Args["key"] != "message1" {
			t.Errorf("Expected key message1, got %v", cmd.Args["key"])
		}
		if cmd.Args["value"] != "CQ:TEST" {
			t.Errorf("Expected value CQ:TEST, got %v", cmd.Args["value"])
		}
	})

	t.Run("CONFIG Command Get", func(t *testing.T) {
		cmd, err := ParseCommand("CONFIG:GET:callsign")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["action"] != "get" {
			t.Errorf("Expected action get, got %v", cmd.Args["action"])
		}
		if cmd.Args["key"] != "callsign" {
			t.Errorf("Expected key callsign, got %v", cmd.Args["key"])
		}
		if _, exists := cmd.Args["value"]; exists {
			t.Errorf("Expected no value for get command, got %v", cmd.Args["value"])
		}
	})

	t.Run("CONFIG Command Bare", func(t *testing.T) {
		cmd, err := ParseCommand("CONFIG")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args, got %v", cmd.Args)
		}
	})

	t.Run("Simple Commands", func(t *testing.T) {
		for _, cmdText := range []string{"QUIT", "PING", "STATUS"} {
			t.Run(cmdText, func(t *testing.T) {
				cmd, err := ParseCommand(cmdText)
				if err != nil {
					t.Fatalf("Expected no error for %s, got: %v", cmdText, err)
				}
				if cmd.Type != cmdText {
					t.Errorf("Expected type %s, got %s", cmdText, cmd.Type)
				}
			})
		}
	})

	t.Run("Case And Whitespace", func(t *testing.T) {
		cmd, err := ParseCommand("  ping  ")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdPing {
			t.Errorf("Expected type PING, got %s", cmd.Type)
		}
	})

	t.Run("Unknown Command", func(t *testing.T) {
		cmd, err := ParseCommand("UNKNOWN:test")
		if err != nil {
			t.Fatalf("Expected no error for unknown command, got: %v", err)
		}
		if cmd.Type != "UNKNOWN" {
			t.Errorf("Expected type UNKNOWN, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for unknown command, got %d", len(cmd.Args))
		}
	})

	t.Run("Empty Command", func(t *testing.T) {
		_, err := ParseCommand("   ")
		if !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("Expected ErrEmptyCommand, got %v", err)
		}
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success Response JSON", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{
			"callsign":     "K3DEP",
			"transmitting": false,
		})

		if !resp.Success || resp.Error != "" {
			t.Errorf("Unexpected response %+v", resp)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["success"] != true {
			t.Error("Expected success true in JSON")
		}
		data, ok := parsed["data"].(map[string]interface{})
		if !ok || data["callsign"] != "K3DEP" {
			t.Errorf("Unexpected data %v", parsed["data"])
		}
	})

	t.Run("Error Response JSON", func(t *testing.T) {
		resp := NewErrorResponse("transmission in progress")
		jsonStr := resp.String()

		if !strings.Contains(jsonStr, `"error":"transmission in progress"`) {
			t.Errorf("Expected error in JSON, got %s", jsonStr)
		}
		if strings.Contains(jsonStr, `"data"`) {
			t.Errorf("Expected data to be omitted, got %s", jsonStr)
		}
	})
}

func TestStatus(t *testing.T) {
	status := Status{
		Callsign:     "K3DEP",
		Grid:         "FN20",
		Enabled:      true,
		FoxHunt:      true,
		WPM:          12,
		ToneHz:       600,
		TickMs:       10,
		Countdowns:   Countdowns{Pip: 1500, ID: 60000},
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:      "0.1.0",
		Transmitting: true,
	}

	data, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("Failed to marshal status: %v", err)
	}

	var parsed Status
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if !parsed.StartTime.Equal(status.StartTime) {
		t.Errorf("Expected start time %v, got %v", status.StartTime, parsed.StartTime)
	}
	parsed.StartTime = status.StartTime
	if parsed != status {
		t.Errorf("Expected %+v, got %+v", status, parsed)
	}
	if !strings.Contains(string(data), `"fox_hunt":true`) {
		t.Errorf("Expected snake_case keys, got %s", data)
	}
}
