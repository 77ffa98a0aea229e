package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/config"
	"github.com/joelkehle/agrichain-advisor/internal/httpapi"
	"github.com/joelkehle/agrichain-advisor/internal/model"
	"github.com/joelkehle/agrichain-advisor/internal/report"
	"github.com/joelkehle/agrichain-advisor/internal/store"
	"github.com/joelkehle/agrichain-advisor/internal/telemetry"
	"github.com/joelkehle/agrichain-advisor/internal/training"
	"github.com/joelkehle/agrichain-advisor/internal/weather"
)

func main() {
	configPath := flag.String("config", os.Getenv("AGRICHAIN_CONFIG"), "path to YAML config file")
	addrFlag := flag.String("addr", "", "listen address (overrides PORT)")
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides database settings)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.Database = config.Database{Driver: "sqlite", DSN: *dbFlag}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	if cfg.Telemetry.Enabled() {
		log.Printf("exporting traces to %s", cfg.Telemetry.Endpoint)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, store.Config{})
	if err != nil {
		log.Fatalf("failed to initialize %s store: %v", cfg.Database.Driver, err)
	}
	defer st.Close()
	log.Printf("using %s store", cfg.Database.Driver)

	loader := &model.FileLoader{Dir: cfg.ModelsDir, HTTPClient: &http.Client{Timeout: cfg.PredictTimeout}}
	if cfg.LLMArtifacts {
		loader.NewLLMCaller = func() (model.LLMCaller, error) {
			caller, err := model.NewAnthropicCallerFromEnv()
			if err != nil {
				return nil, err
			}
			return caller, nil
		}
	}
	registry := model.NewRegistry(model.RegistryConfig{Loader: loader, PredictTimeout: cfg.PredictTimeout})
	if cfg.PreloadModels {
		for name, ok := range registry.Preload(ctx, model.KnownModels...) {
			if !ok {
				log.Printf("%s model not loaded, heuristics will be used", name)
			}
		}
	}

	trainer := training.NewCommandTrainer(cfg.Training.Command, cfg.ModelsDir)
	trainer.Timeout = cfg.Training.Timeout

	handler := httpapi.NewServer(httpapi.Config{
		Models:  registry,
		Store:   st,
		Trainer: trainer,
		PDF:     report.NewChromiumRenderer(cfg.Report.ChromePath),
		Weather: weather.NewProvider(weather.Config{BaseURL: cfg.Weather.BaseURL, TTL: cfg.Weather.TTL}),
		WebDir:  resolveWebDir(cfg.Report.WebDir),
	})

	log.Printf("agrichain-advisor listening on %s (models=%s)", cfg.Addr, cfg.ModelsDir)
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// resolveWebDir falls back to a web/ directory next to the repo root, then to
// ./web. A missing directory only means reports use the built-in styles.
func resolveWebDir(dir string) string {
	if dir != "" {
		return dir
	}
	exe, _ := os.Executable()
	web := filepath.Join(filepath.Dir(exe), "..", "..", "web")
	if _, err := os.Stat(web); err != nil {
		web = "web"
	}
	return web
}
