package client

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/cwbeacon/pkg/protocol"
)

// fakeDaemon answers each command line with a canned response
type fakeDaemon struct {
	listener net.Listener
	mu       sync.Mutex
	received []string
	respond  func(cmd string) *protocol.Response
}

func startFakeDaemon(t *testing.T, respond func(cmd string) *protocol.Response) (*fakeDaemon, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "cwbc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "test.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	d := &fakeDaemon{listener: listener, respond: respond}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go d.serve(conn)
		}
	}()
	return d, path
}

func (d *fakeDaemon) serve(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	cmd := strings.TrimSpace(scanner.Text())

	d.mu.Lock()
	d.received = append(d.received, cmd)
	d.mu.Unlock()

	conn.Write([]byte(d.respond(cmd).String() + "\n"))
}

func (d *fakeDaemon) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

func TestClientCommands(t *testing.T) {
	d, path := startFakeDaemon(t, func(cmd string) *protocol.Response {
		switch {
		case cmd == protocol.CmdPing:
			return protocol.NewSuccessResponse(map[string]interface{}{"message": "pong"})
		case cmd == protocol.CmdStatus:
			return protocol.NewSuccessResponse(map[string]interface{}{
				"status": protocol.Status{Callsign: "K3DEP", WPM: 15, Countdowns: protocol.Countdowns{Pip: 42}},
			})
		case strings.HasPrefix(cmd, "CONFIG:get:"):
			return protocol.NewSuccessResponse(map[string]interface{}{"key": "wpm", "value": "15"})
		case strings.HasPrefix(cmd, "SEND:"):
			return protocol.NewSuccessResponse(map[string]interface{}{
				"queued": protocol.Queued{Kind: "MANUAL", Payload: "CQ", WPM: 15, EstimatedMs: 1234},
			})
		case strings.HasPrefix(cmd, "LOG"):
			return protocol.NewSuccessResponse(map[string]interface{}{
				"transmissions": []protocol.LogEntry{{ID: 7, Kind: "ID", Payload: "K3DEP"}},
				"count":         1,
			})
		}
		return protocol.NewErrorResponse("unknown command: " + cmd)
	})

	c := NewSocketClient(path)

	require.NoError(t, c.Ping())
	assert.True(t, c.IsConnected())

	status, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "K3DEP", status.Callsign)
	assert.Equal(t, uint8(15), status.WPM)
	assert.Equal(t, uint32(42), status.Countdowns.Pip)

	value, err := c.GetSetting("wpm")
	require.NoError(t, err)
	assert.Equal(t, "15", value)

	queued, err := c.Send("CQ")
	require.NoError(t, err)
	assert.Equal(t, "CQ", queued.Payload)
	assert.Equal(t, uint32(1234), queued.EstimatedMs)

	entries, err := c.GetLog(5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "K3DEP", entries[0].Payload)

	_, err = c.SendPips(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: PIPS")

	assert.Equal(t, []string{
		"PING", "PING", "STATUS", "CONFIG:get:wpm", "SEND:CQ", "LOG:5", "PIPS",
	}, d.commands())
}

func TestClientMissingField(t *testing.T) {
	_, path := startFakeDaemon(t, func(cmd string) *protocol.Response {
		return protocol.NewSuccessResponse(map[string]interface{}{"message": "ok"})
	})

	c := NewSocketClient(path)
	_, err := c.GetStatus()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status not found")
}

func TestClientNotRunning(t *testing.T) {
	c := NewSocketClient(filepath.Join(t.TempDir(), "missing.sock"))
	assert.False(t, c.IsConnected())

	_, err := c.GetStatus()
	assert.Error(t, err)
}
