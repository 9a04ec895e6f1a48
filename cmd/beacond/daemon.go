package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/cwbeacon/pkg/client"
	"github.com/dougsko/cwbeacon/pkg/config"
	"github.com/dougsko/cwbeacon/pkg/engine"
	"github.com/dougsko/cwbeacon/pkg/logging"
)

// BeaconDaemon runs the core engine with its control socket and the HTTP API
type BeaconDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	webServer    *http.Server
	router       *gin.Engine

	socketPath string
}

// NewBeaconDaemon creates a new daemon instance
func NewBeaconDaemon(cfg *config.Config, opts ...engine.Option) (*BeaconDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/beacond.sock"
	}

	daemon := &BeaconDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		socketPath:   socketPath,
		socketClient: client.NewSocketClient(socketPath),
		coreEngine:   engine.NewCoreEngine(cfg, socketPath, opts...),
	}

	if err := daemon.setupWebServer(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return daemon, nil
}

// Start starts the engine and then the web server
func (d *BeaconDaemon) Start() error {
	logging.Info("daemon", "starting beacond daemon")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.coreEngine.Stop()
		return fmt.Errorf("failed to connect to core engine socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Info("daemon", "starting web server", logging.Fields{"addr": d.webServer.Addr})
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("daemon", "web server error", logging.Fields{"error": err})
		}
	}()

	return nil
}

// Stop shuts the web server down and stops the engine, letting a
// transmission in flight complete
func (d *BeaconDaemon) Stop() error {
	logging.Info("daemon", "stopping daemon")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warn("daemon", "web server shutdown error", logging.Fields{"error": err})
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			logging.Warn("daemon", "core engine shutdown error", logging.Fields{"error": err})
		}
	}

	d.wg.Wait()

	logging.Info("daemon", "daemon stopped")
	return nil
}

// setupWebServer initializes the router and HTTP server
func (d *BeaconDaemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/beacon", d.handleGetBeacon)
		api.PUT("/beacon", d.handleUpdateBeacon)
		api.POST("/beacon/send", d.handleSend)
		api.GET("/transmissions", d.handleGetTransmissions)
		api.GET("/transmissions/stats", d.handleGetTransmissionStats)
		api.GET("/events", d.handleEvents)
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}

	return nil
}

// requestLogger routes gin's access log through the structured logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("http", "request", logging.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}
