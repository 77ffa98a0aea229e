package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/store"
	"github.com/joelkehle/agrichain-advisor/internal/training"
)

var tracer = otel.Tracer("github.com/joelkehle/agrichain-advisor/internal/httpapi")

const maxBodyBytes = 1 << 20

// Models is what the HTTP layer needs from the model registry.
type Models interface {
	engine.Predictors
	Loaded(ctx context.Context) map[string]bool
	Preload(ctx context.Context, names ...string) map[string]bool
	Reset(name string)
}

// Forecaster supplies a regional forecast, today first.
type Forecaster interface {
	Forecast(ctx context.Context, region string) ([]agri.WeatherDay, error)
}

// PDFRenderer prints a standalone HTML document.
type PDFRenderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

type Config struct {
	Models  Models
	Store   store.Store
	Trainer training.Trainer
	PDF     PDFRenderer
	Weather Forecaster
	// WebDir may hold a style.css for HTML and PDF reports.
	WebDir string
	Clock  func() time.Time
	NewID  func() string
	Logger *log.Logger
}

type Server struct {
	models  Models
	engine  *engine.Engine
	store   store.Store
	trainer training.Trainer
	pdf     PDFRenderer
	weather Forecaster
	webDir  string
	clock   func() time.Time
	newID   func() string
	logger  *log.Logger
}

func NewServer(cfg Config) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{
		models:  cfg.Models,
		store:   cfg.Store,
		trainer: cfg.Trainer,
		pdf:     cfg.PDF,
		weather: cfg.Weather,
		webDir:  cfg.WebDir,
		clock:   cfg.Clock,
		newID:   cfg.NewID,
		logger:  cfg.Logger,
	}
	var predictors engine.Predictors
	if cfg.Models != nil {
		predictors = cfg.Models
	}
	s.engine = engine.New(engine.Config{Predictors: predictors, Clock: cfg.Clock, Logger: cfg.Logger})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/recommend", s.handleRecommend)
	mux.HandleFunc("/recommend/report", s.handleRecommendReport)
	mux.HandleFunc("/simulate/spoilage", s.handleSimulate)
	mux.HandleFunc("/predict/price", s.handlePredictPrice)
	mux.HandleFunc("/predict/spoilage", s.handlePredictSpoilage)
	mux.HandleFunc("/features", s.handleFeatures)
	mux.HandleFunc("/train/", s.handleTrain)
	mux.HandleFunc("/recommendations", s.handleRecommendations)
	mux.HandleFunc("/markets/prices", s.handleMarketPrices)
	mux.HandleFunc("/preservation/actions", s.handlePreservationActions)
	return withCORS(s.traced(mux))
}

func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", r.Method), attribute.String("http.target", r.URL.Path)))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withCORS allows any origin; the dashboard is served from elsewhere.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(blob))) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	loaded := map[string]bool{}
	if s.models != nil {
		loaded = s.models.Loaded(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"timestamp":     s.clock(),
		"models_loaded": loaded,
	})
}
