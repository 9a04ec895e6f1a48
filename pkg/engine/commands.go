package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/cwbeacon/pkg/logging"
	"github.com/dougsko/cwbeacon/pkg/protocol"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

// acceptRetryDelay paces retries after a failed Accept
const acceptRetryDelay = 100 * time.Millisecond

// acceptConnections accepts and handles socket connections. Each
// connection goroutine is tracked so Stop can wait for commands in flight.
func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()

	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !e.isRunning() {
				return
			}
			logging.Warn("engine", "socket accept error", logging.Fields{"error": err})
			time.Sleep(acceptRetryDelay)
			continue
		}

		if !e.trackConn(conn) {
			conn.Close()
			return
		}
		e.wg.Add(1)
		go e.handleConnection(conn)
	}
}

// trackConn registers conn for closing on Stop. It reports false once the
// engine is stopping.
func (e *CoreEngine) trackConn(conn net.Conn) bool {
	e.connMutex.Lock()
	defer e.connMutex.Unlock()
	if e.conns == nil {
		return false
	}
	e.conns[conn] = struct{}{}
	return true
}

func (e *CoreEngine) untrackConn(conn net.Conn) {
	e.connMutex.Lock()
	defer e.connMutex.Unlock()
	delete(e.conns, conn)
}

// closeConns closes every client connection and refuses new ones
func (e *CoreEngine) closeConns() {
	e.connMutex.Lock()
	defer e.connMutex.Unlock()
	for conn := range e.conns {
		conn.Close()
	}
	e.conns = nil
}

// handleConnection serves one command per line until QUIT or EOF
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer e.wg.Done()
	defer e.untrackConn(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !e.isRunning() {
			break
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand executes a parsed command
func (e *CoreEngine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"status": e.Status(),
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdConfig:
		return e.handleConfig(cmd)

	case protocol.CmdSend:
		text, _ := cmd.Args["text"].(string)
		return queuedResponse(e.SendText(text, 0))

	case protocol.CmdSendMsg:
		slot, _ := cmd.Args["slot"].(int)
		return queuedResponse(e.SendMessage(slot))

	case protocol.CmdPips:
		count, _ := cmd.Args["count"].(int)
		return queuedResponse(e.SendPips(uint(count)))

	case protocol.CmdLog:
		limit, _ := cmd.Args["limit"].(int)
		records, err := e.RecentTransmissions(limit)
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"transmissions": records,
			"count":         len(records),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func queuedResponse(queued *Queued, err error) *protocol.Response {
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"queued": queued,
	})
}

// handleConfig serves CONFIG, CONFIG:get:key and CONFIG:set:key:value
func (e *CoreEngine) handleConfig(cmd *protocol.Command) *protocol.Response {
	action, _ := cmd.Args["action"].(string)
	key, _ := cmd.Args["key"].(string)

	switch action {
	case "":
		return protocol.NewSuccessResponse(map[string]interface{}{
			"config": e.Settings(),
		})

	case "get":
		cfg := e.Settings()
		value, err := cfg.Get(key)
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"key":   key,
			"value": value,
		})

	case "set":
		value, ok := cmd.Args["value"].(string)
		if !ok {
			return protocol.NewErrorResponse("CONFIG:set requires a key and a value")
		}
		cfg, err := e.UpdateSettings(func(c *settings.BeaconConfig) error {
			return c.Set(key, value)
		})
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"config": cfg,
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown config action: %s", action))
	}
}
