package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/router/adapters"
	"github.com/smiling-critters/critter-gateway/internal/store"
)

// report is printed as JSON for scripts and as text otherwise.
type report struct {
	Status          router.Status `json:"status"`
	InstalledModels []string      `json:"installed_models,omitempty"`
	ModelInstalled  bool          `json:"model_installed"`
	SettingsSource  string        `json:"settings_source"`
}

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	noDB := flag.Bool("no-db", false, "skip the settings store and use environment and defaults only")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var settings config.SettingsReader
	source := "environment"
	if !*noDB {
		pool, err := store.Connect(ctx, cfg.Database.DSN(), 2, time.Minute)
		if err != nil {
			logger.Warn("settings store unavailable, using environment and defaults", "error", err)
		} else {
			defer pool.Close()
			settings = store.New(pool, nil, 0)
			source = "database"
		}
	}

	resolver := config.NewResolver(settings, logger)
	routing := func() config.RoutingConfig { return cfg.Routing }
	r := router.BuildFromConfig(resolver, routing, nil, logger)

	rep := report{Status: r.CheckStatus(ctx), SettingsSource: source}
	if rep.Status.Local.Available {
		ollama := adapters.NewOllamaAdapter(&http.Client{Timeout: cfg.Routing.ProbeTimeout}, routing)
		models, err := ollama.ListModels(ctx, rep.Status.Local.Endpoint)
		if err != nil {
			logger.Warn("failed to list local models", "error", err)
		}
		rep.InstalledModels = models
		rep.ModelInstalled = adapters.HasModel(models, rep.Status.Local.Model)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(rep)
	}

	if rep.Status.Active == router.BackendNone {
		os.Exit(2)
	}
}

func printReport(rep report) {
	s := rep.Status
	fmt.Printf("Settings from: %s\n\n", rep.SettingsSource)

	fmt.Printf("Local (Ollama)   %s\n", availability(s.Local.Available))
	fmt.Printf("  endpoint:      %s\n", s.Local.Endpoint)
	fmt.Printf("  model:         %s", s.Local.Model)
	switch {
	case !s.Local.Available:
		fmt.Println()
	case rep.ModelInstalled:
		fmt.Println(" (installed)")
	default:
		fmt.Printf(" (NOT installed, run: ollama pull %s)\n", s.Local.Model)
	}

	fmt.Printf("\nCloud (Gemini)   %s\n", availability(s.Cloud.KeyConfigured))
	fmt.Printf("  model:         %s\n", s.Cloud.Model)
	if s.Cloud.BackoffRemaining > 0 {
		fmt.Printf("  cooling down:  %ds\n", s.Cloud.BackoffRemaining)
	}

	fmt.Printf("\nActive backend:  %s\n", s.Active)
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
