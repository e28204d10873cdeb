package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amadea-system/QmkHidGear/internal/agent"
	"github.com/amadea-system/QmkHidGear/internal/config"
	"github.com/amadea-system/QmkHidGear/internal/hid"
)

// Set by the build script via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	log.Printf("Starting QMK HID Gear Agent version: %s, commit: %s, built: %s", version, commit, date)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := hid.Init(); err != nil {
		log.Fatalf("Failed to initialize HID support: %v", err)
	}
	defer hid.Exit()

	a, err := agent.NewAgent(cfg, hid.SystemTransport{})
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	go a.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")
	a.Shutdown()
	log.Println("Agent shut down gracefully.")
}
