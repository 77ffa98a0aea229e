// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	ModelsDir      string        `yaml:"models_dir"`
	PredictTimeout time.Duration `yaml:"predict_timeout"`
	PreloadModels  bool          `yaml:"preload_models"`
	ServiceName    string        `yaml:"service_name"`
	LLMArtifacts   bool          `yaml:"llm_artifacts"`

	Database  Database  `yaml:"database"`
	Training  Training  `yaml:"training"`
	Report    Report    `yaml:"report"`
	Telemetry Telemetry `yaml:"telemetry"`
	Weather   Weather   `yaml:"weather"`
}

type Database struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Training struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type Report struct {
	WebDir     string `yaml:"web_dir"`
	ChromePath string `yaml:"chrome_path"`
}

type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Weather configures the forecast provider used by use_forecast requests.
type Weather struct {
	BaseURL string        `yaml:"base_url"`
	TTL     time.Duration `yaml:"ttl"`
}

func (t Telemetry) Enabled() bool { return strings.TrimSpace(t.Endpoint) != "" }

func Default() Config {
	return Config{
		Addr:           ":8000",
		ModelsDir:      "./models",
		PredictTimeout: 2 * time.Second,
		PreloadModels:  true,
		ServiceName:    "agrichain-advisor",
		Database:       Database{Driver: "memory"},
		Training:       Training{Timeout: 10 * time.Minute},
		Weather:        Weather{BaseURL: "https://api.open-meteo.com/v1/forecast", TTL: 30 * time.Minute},
	}
}

// Load applies path (skipped when empty or missing), then .env, then the
// environment on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if port := getEnv("PORT", ""); port != "" {
		c.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	c.ModelsDir = getEnv("MODELS_DIR", c.ModelsDir)
	c.ServiceName = getEnv("OTEL_SERVICE_NAME", c.ServiceName)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_URL", getEnv("DB_PATH", c.Database.DSN))
	c.Training.Command = getEnv("TRAIN_COMMAND", c.Training.Command)
	c.Report.WebDir = getEnv("REPORT_WEB_DIR", c.Report.WebDir)
	c.Report.ChromePath = getEnv("CHROME_BIN", c.Report.ChromePath)
	c.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Weather.BaseURL = getEnv("WEATHER_API_URL", c.Weather.BaseURL)

	var err error
	if c.PredictTimeout, err = getEnvDuration("PREDICT_TIMEOUT", c.PredictTimeout); err != nil {
		return err
	}
	if c.Training.Timeout, err = getEnvDuration("TRAIN_TIMEOUT", c.Training.Timeout); err != nil {
		return err
	}
	if c.Weather.TTL, err = getEnvDuration("WEATHER_CACHE_TTL", c.Weather.TTL); err != nil {
		return err
	}
	if c.PreloadModels, err = getEnvBool("PRELOAD_MODELS", c.PreloadModels); err != nil {
		return err
	}
	if c.LLMArtifacts, err = getEnvBool("LLM_ARTIFACTS", c.LLMArtifacts); err != nil {
		return err
	}
	if c.Telemetry.Insecure, err = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", c.Telemetry.Insecure); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "", "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.PredictTimeout <= 0 {
		return fmt.Errorf("predict_timeout must be positive")
	}
	if strings.TrimSpace(c.ModelsDir) == "" {
		return fmt.Errorf("models_dir is required")
	}
	if c.Weather.TTL < 0 {
		return fmt.Errorf("weather.ttl must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	// Bare numbers are seconds.
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, val)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := getEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid boolean %q", key, val)
}
