package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/cwbeacon/pkg/beacon"
	"github.com/dougsko/cwbeacon/pkg/engine"
	"github.com/dougsko/cwbeacon/pkg/logging"
	"github.com/dougsko/cwbeacon/pkg/settings"
	"github.com/dougsko/cwbeacon/pkg/storage"
)

// beaconUpdate is a partial settings edit; absent fields are left alone
type beaconUpdate struct {
	Enabled        *bool    `json:"enabled"`
	WPM            *uint8   `json:"wpm" binding:"omitempty,min=1,max=99"`
	ToneHz         *uint16  `json:"tone_hz" binding:"omitempty,min=1,max=2000"`
	Mode           *uint8   `json:"mode"`
	Bandwidth      *uint8   `json:"bandwidth"`
	TxMode         *uint8   `json:"tx_mode"`
	Callsign       *string  `json:"callsign" binding:"omitempty,max=15"`
	GridSquare     *string  `json:"grid_square" binding:"omitempty,max=15"`
	Messages       []string `json:"messages" binding:"omitempty,max=2,dive,max=10"`
	FoxHuntEnabled *bool    `json:"fox_hunt_enabled"`
	PipCount       *uint8   `json:"pip_count"`
	PipInterval    *uint16  `json:"pip_interval"`
	IDInterval     *uint16  `json:"id_interval"`
	SOSModeEnabled *bool    `json:"sos_mode_enabled"`
	SOSDutyCycle   *uint8   `json:"sos_duty_cycle" binding:"omitempty,min=1,max=50"`
}

func (u *beaconUpdate) apply(c *settings.BeaconConfig) error {
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	if u.WPM != nil {
		c.WPM = *u.WPM
	}
	if u.ToneHz != nil {
		c.ToneHz = *u.ToneHz
	}
	if u.Mode != nil {
		c.Mode = *u.Mode
	}
	if u.Bandwidth != nil {
		c.Bandwidth = *u.Bandwidth
	}
	if u.TxMode != nil {
		c.TxMode = *u.TxMode
	}
	if u.Callsign != nil {
		c.Callsign = strings.ToUpper(*u.Callsign)
	}
	if u.GridSquare != nil {
		c.GridSquare = strings.ToUpper(*u.GridSquare)
	}
	for i, msg := range u.Messages {
		c.Messages[i] = strings.ToUpper(msg)
	}
	if u.FoxHuntEnabled != nil {
		c.FoxHuntEnabled = *u.FoxHuntEnabled
	}
	if u.PipCount != nil {
		c.PipCount = *u.PipCount
	}
	if u.PipInterval != nil {
		c.PipInterval = *u.PipInterval
	}
	if u.IDInterval != nil {
		c.IDInterval = *u.IDInterval
	}
	if u.SOSModeEnabled != nil {
		c.SOSModeEnabled = *u.SOSModeEnabled
	}
	if u.SOSDutyCycle != nil {
		c.SOSDutyCycle = *u.SOSDutyCycle
	}
	return nil
}

// sendRequest asks for one manual transmission: pips, a stored message
// slot, or free text, checked in that order
type sendRequest struct {
	Text  string `json:"text" binding:"omitempty,max=64"`
	WPM   uint   `json:"wpm" binding:"omitempty,min=1,max=99"`
	Slot  int    `json:"slot" binding:"omitempty,min=1,max=2"`
	Pips  bool   `json:"pips"`
	Count uint   `json:"count" binding:"omitempty,max=255"`
}

// handleGetStatus returns daemon status via socket
func (d *BeaconDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleGetBeacon returns the live settings record
func (d *BeaconDaemon) handleGetBeacon(c *gin.Context) {
	c.JSON(http.StatusOK, d.coreEngine.Settings())
}

// handleUpdateBeacon applies a partial settings edit
func (d *BeaconDaemon) handleUpdateBeacon(c *gin.Context) {
	var req beaconUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := d.coreEngine.UpdateSettings(req.apply)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// handleSend queues a manual transmission
func (d *BeaconDaemon) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		queued *engine.Queued
		err    error
	)
	switch {
	case req.Pips:
		queued, err = d.coreEngine.SendPips(req.Count)
	case req.Slot > 0:
		queued, err = d.coreEngine.SendMessage(req.Slot)
	case strings.TrimSpace(req.Text) != "":
		queued, err = d.coreEngine.SendText(req.Text, req.WPM)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of text, slot or pips is required"})
		return
	}

	if err != nil {
		c.JSON(sendErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "queued",
		"queued": queued,
	})
}

func sendErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrDisabled), errors.Is(err, beacon.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// handleGetTransmissions returns the transmission log, newest first
func (d *BeaconDaemon) handleGetTransmissions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	query := storage.TransmissionQuery{
		Limit:  limit,
		Offset: offset,
		Kind:   beacon.Kind(strings.ToUpper(c.Query("kind"))),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 time"})
			return
		}
		query.Since = &t
	}

	records, err := d.coreEngine.Transmissions(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transmissions": records,
		"count":         len(records),
	})
}

// handleGetTransmissionStats summarises the transmission log
func (d *BeaconDaemon) handleGetTransmissionStats(c *gin.Context) {
	stats, err := d.coreEngine.TransmissionStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventMessage is pushed to websocket clients
type eventMessage struct {
	Type         string               `json:"type"`
	Transmission *beacon.Transmission `json:"transmission,omitempty"`
	Countdowns   *beacon.Countdowns   `json:"countdowns,omitempty"`
	Transmitting bool                 `json:"transmitting"`
}

// handleEvents streams completed transmissions and a once-a-second
// countdown snapshot over a websocket
func (d *BeaconDaemon) handleEvents(c *gin.Context) {
	events, cancel := d.coreEngine.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn("http", "websocket upgrade failed", logging.Fields{"error": err})
		return
	}
	defer conn.Close()

	logging.Debug("http", "event client connected", logging.Fields{"remote": c.Request.RemoteAddr})

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		var msg eventMessage
		select {
		case t, ok := <-events:
			if !ok {
				return
			}
			msg = eventMessage{Type: "transmission", Transmission: &t, Transmitting: d.coreEngine.Transmitting()}

		case <-ticker.C:
			status := d.coreEngine.Status()
			msg = eventMessage{
				Type: "status",
				Countdowns: &beacon.Countdowns{
					Pip: status.Countdowns.Pip,
					ID:  status.Countdowns.ID,
					SOS: status.Countdowns.SOS,
				},
				Transmitting: status.Transmitting,
			}

		case <-closed:
			return

		case <-d.ctx.Done():
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			logging.Debug("http", "websocket write error", logging.Fields{"error": err})
			return
		}
	}
}
