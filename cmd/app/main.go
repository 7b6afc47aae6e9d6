package main

import (
	"flag"
	"log"
	"os"

	"AnnuityPricer/internal/di"
	"AnnuityPricer/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	runErr := app.Run()
	cleanup()
	if runErr != nil {
		log.Printf("app error: %v", runErr)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults plus environment when the file is absent,
// so the container runs with env vars alone.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := config.Defaults()
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyEnv(os.Getenv); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return config.LoadWithEnv(path)
}
