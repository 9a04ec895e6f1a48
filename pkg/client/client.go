package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/cwbeacon/pkg/protocol"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and decodes the named field of a successful response into out
func (c *SocketClient) call(cmd, field string, out interface{}) error {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s error: %s", cmd, resp.Error)
	}
	if out == nil {
		return nil
	}

	data, ok := resp.Data[field]
	if !ok {
		return fmt.Errorf("%s not found in response", field)
	}

	// Convert to JSON and back to parse properly
	raw, _ := json.Marshal(data)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	var status protocol.Status
	if err := c.call(protocol.CmdStatus, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetConfig gets the full beacon settings record
func (c *SocketClient) GetConfig() (*settings.BeaconConfig, error) {
	var cfg settings.BeaconConfig
	if err := c.call(protocol.CmdConfig, "config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetSetting reads a single setting
func (c *SocketClient) GetSetting(key string) (string, error) {
	var value string
	if err := c.call(fmt.Sprintf("CONFIG:get:%s", key), "value", &value); err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting changes a single setting and returns the updated record
func (c *SocketClient) SetSetting(key, value string) (*settings.BeaconConfig, error) {
	var cfg settings.BeaconConfig
	if err := c.call(fmt.Sprintf("CONFIG:set:%s:%s", key, value), "config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Send queues text for keying at the configured rate
func (c *SocketClient) Send(text string) (*protocol.Queued, error) {
	return c.queue(fmt.Sprintf("SEND:%s", text))
}

// SendMessage queues a stored message slot, numbered from 1
func (c *SocketClient) SendMessage(slot int) (*protocol.Queued, error) {
	return c.queue(fmt.Sprintf("SENDMSG:%d", slot))
}

// SendPips queues count pips; zero uses the configured count
func (c *SocketClient) SendPips(count int) (*protocol.Queued, error) {
	cmd := protocol.CmdPips
	if count > 0 {
		cmd = fmt.Sprintf("PIPS:%d", count)
	}
	return c.queue(cmd)
}

func (c *SocketClient) queue(cmd string) (*protocol.Queued, error) {
	var queued protocol.Queued
	if err := c.call(cmd, "queued", &queued); err != nil {
		return nil, err
	}
	return &queued, nil
}

// GetLog gets the newest transmission log entries
func (c *SocketClient) GetLog(limit int) ([]protocol.LogEntry, error) {
	cmd := protocol.CmdLog
	if limit > 0 {
		cmd = fmt.Sprintf("LOG:%d", limit)
	}

	var entries []protocol.LogEntry
	if err := c.call(cmd, "transmissions", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	return c.call(protocol.CmdPing, "", nil)
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
