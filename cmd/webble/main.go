package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/webble/internal/bluez"
	"github.com/chaz8081/webble/internal/config"
	"github.com/chaz8081/webble/internal/webbt"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/webble/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	printBanner(cfg)

	bridge := newBridge(os.Stdin, os.Stdout, cfg.Scan.TimeoutMs)

	var selector webbt.Selector
	switch cfg.Selection.Mode {
	case "dialog":
		selector = &webbt.DialogSelector{
			Surface:  bridge,
			Timeout:  cfg.DialogTimeout(),
			FullScan: cfg.Selection.FullScan,
		}
	default:
		selector = webbt.FirstMatchSelector{}
	}

	session, err := webbt.NewSession(webbt.NewNativeAdapter(),
		webbt.WithSelector(selector),
		webbt.WithEmitter(bridge),
		webbt.WithPollInterval(cfg.PollInterval()),
		webbt.WithAvailabilityProbe(bluez.Available),
	)
	if err != nil {
		log.Fatalf("Failed to start session: %v\n\nCheck that a Bluetooth adapter is present and bluetooth.service is running.", err)
	}
	bridge.session = session

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Serve host requests from stdin until EOF
	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.run()
	}()

	log.Printf("Ready! Serving host requests on stdio (selection: %s).", cfg.Selection.Mode)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	case <-done:
		log.Println("Host closed the request stream, shutting down...")
	}

	if err := session.Close(); err != nil {
		log.Printf("ERROR: session close: %v", err)
	}
	log.Println("Goodbye!")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "=== webble ===")
	fmt.Fprintf(os.Stderr, "  Scan:      %dms poll, %dms timeout\n", cfg.Scan.PollIntervalMs, cfg.Scan.TimeoutMs)
	fmt.Fprintf(os.Stderr, "  Selection: %s (full scan: %v)\n", cfg.Selection.Mode, cfg.Selection.FullScan)
	fmt.Fprintf(os.Stderr, "  Log:       %s\n", cfg.LogLevel)
	fmt.Fprintln(os.Stderr, "==============")
}
