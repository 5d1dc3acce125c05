// ABOUTME: Entry point for the RapidReach speaker daemon
// ABOUTME: Parses CLI flags, loads config and runs the application
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/app"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/config"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	broker     = flag.String("broker", "", "MQTT broker URL, overrides config")
	deviceID   = flag.String("device-id", "", "Device id, overrides config")
	logFile    = flag.String("log-file", "", "Also write logs to this file")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		log.SetFlags(0)
		log.Printf("%s %s", version.Product, version.Version)
		return
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer func() { _ = f.Close() }()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
		cfg = loaded
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	speaker, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create speaker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		cancel()
	}()

	if err := speaker.Run(ctx); err != nil {
		log.Fatalf("Speaker failed: %v", err)
	}
}
