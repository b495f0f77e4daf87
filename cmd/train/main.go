// Command train runs one training pass: it reads interactions, builds the similarity
// model, writes the artifact and, when configured, exports the graph and announces the
// new version to running servers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temcen/shopsense/internal/app"
	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/internal/database"
	"github.com/temcen/shopsense/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: search ./config/app.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	svc, err := services.New(cfg, logger, db, prometheus.NewRegistry())
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	info, err := svc.Training.Train(ctx)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		log.Fatalf("Failed to write model info: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
