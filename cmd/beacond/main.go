package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/cwbeacon/pkg/config"
	"github.com/dougsko/cwbeacon/pkg/engine"
	"github.com/dougsko/cwbeacon/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	version    = flag.Bool("version", false, "Show version information")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("beacond version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("beacond version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("Station: %s (%s)", cfg.Station.Callsign, cfg.Station.Grid))
	logging.Info("main", fmt.Sprintf("Radio: %s on %s", cfg.Radio.Model, cfg.Radio.Device))
	logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewBeaconDaemon(cfg)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "beacond started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "beacond stopped")
}
