package model

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type predictFunc func(ctx context.Context, features []float64) (float64, error)

func (f predictFunc) Predict(ctx context.Context, features []float64) (float64, error) {
	return f(ctx, features)
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func constant(v float64) Predictor {
	return predictFunc(func(context.Context, []float64) (float64, error) { return v, nil })
}

func TestRegistryMissingArtifactIsUnavailable(t *testing.T) {
	r := NewRegistry(RegistryConfig{Loader: &FileLoader{Dir: t.TempDir()}, Logger: quietLogger()})
	l := r.Get(context.Background(), NamePrice)
	if _, ok := l.(Unavailable); !ok {
		t.Fatalf("expected Unavailable, got %#v", l)
	}
	res := r.TryPredict(context.Background(), NamePrice, []float64{1})
	if res.OK() || !res.Unavailable() {
		t.Fatalf("expected unavailable result, got %+v", res)
	}
}

func TestRegistryCachesOnlySuccessfulLoads(t *testing.T) {
	var calls int32
	ready := false
	r := NewRegistry(RegistryConfig{Logger: quietLogger(), Loader: LoaderFunc(func(ctx context.Context, name string) (Predictor, error) {
		atomic.AddInt32(&calls, 1)
		if !ready {
			return nil, errors.New("not yet")
		}
		return constant(1), nil
	})})
	if _, ok := r.Get(context.Background(), NameSpoilage).(Unavailable); !ok {
		t.Fatal("expected first lookup to be unavailable")
	}
	ready = true
	if _, ok := r.Get(context.Background(), NameSpoilage).(Available); !ok {
		t.Fatal("expected retry after failed load to succeed")
	}
	r.Get(context.Background(), NameSpoilage)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 loader calls, got %d", got)
	}
	r.Reset(NameSpoilage)
	r.Get(context.Background(), NameSpoilage)
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected reload after reset, got %d calls", got)
	}
}

func TestRegistryLoaderPanicIsUnavailable(t *testing.T) {
	r := NewRegistry(RegistryConfig{Logger: quietLogger(), Loader: LoaderFunc(func(context.Context, string) (Predictor, error) {
		panic("corrupt artifact")
	})})
	l, ok := r.Get(context.Background(), NamePrice).(Unavailable)
	if !ok {
		t.Fatal("expected Unavailable after loader panic")
	}
	if l.Reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestRegistryConcurrentGetLoadsOnce(t *testing.T) {
	var loads int32
	r := NewRegistry(RegistryConfig{Logger: quietLogger(), Loader: LoaderFunc(func(context.Context, string) (Predictor, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return constant(1), nil
	})})

	const callers = 20
	var wg sync.WaitGroup
	results := make([]Lookup, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = r.Get(context.Background(), NamePrice)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("expected exactly 1 load, got %d", got)
	}
	for i, l := range results {
		if _, ok := l.(Available); !ok {
			t.Fatalf("caller %d: expected Available, got %#v", i, l)
		}
	}
}

func TestTryPredictHangingModelTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := NewRegistry(RegistryConfig{
		Logger:         quietLogger(),
		PredictTimeout: 50 * time.Millisecond,
		Loader: LoaderFunc(func(context.Context, string) (Predictor, error) {
			return predictFunc(func(context.Context, []float64) (float64, error) {
				<-release
				return 1, nil
			}), nil
		}),
	})
	began := time.Now()
	res := r.TryPredict(context.Background(), NamePrice, []float64{1})
	if elapsed := time.Since(began); elapsed > time.Second {
		t.Fatalf("expected prediction to be cut off near the timeout, took %v", elapsed)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
	var pe *PredictionError
	if !errors.As(res.Err, &pe) || pe.Model != NamePrice {
		t.Fatalf("expected PredictionError for %s, got %v", NamePrice, res.Err)
	}
}

func TestTryPredictFailures(t *testing.T) {
	cases := map[string]Predictor{
		"error": predictFunc(func(context.Context, []float64) (float64, error) { return 0, errors.New("boom") }),
		"panic": predictFunc(func(context.Context, []float64) (float64, error) { panic("bad shape") }),
		"nan":   constant(math.NaN()),
		"inf":   constant(math.Inf(1)),
		"slow": predictFunc(func(ctx context.Context, _ []float64) (float64, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return 1, nil
		}),
	}
	for name, p := range cases {
		p := p
		r := NewRegistry(RegistryConfig{
			Logger:         quietLogger(),
			PredictTimeout: 50 * time.Millisecond,
			Loader:         LoaderFunc(func(context.Context, string) (Predictor, error) { return p, nil }),
		})
		res := r.TryPredict(context.Background(), NamePrice, []float64{1})
		if res.OK() {
			t.Fatalf("%s: expected failure", name)
		}
		if res.Unavailable() {
			t.Fatalf("%s: predict failure must not look unavailable", name)
		}
		var pe *PredictionError
		if !errors.As(res.Err, &pe) || pe.Model != NamePrice {
			t.Fatalf("%s: expected PredictionError, got %v", name, res.Err)
		}
	}
}

func TestTryPredictSuccess(t *testing.T) {
	r := NewRegistry(RegistryConfig{Logger: quietLogger(), Loader: LoaderFunc(func(context.Context, string) (Predictor, error) {
		return constant(2500), nil
	})})
	res := r.TryPredict(context.Background(), NamePrice, nil)
	if !res.OK() || res.Value != 2500 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLoadedReportsKnownModels(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifact(ArtifactPath(dir, NameSoil), []byte(`{"kind":"linear","coefficients":[1]}`)); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(RegistryConfig{Loader: &FileLoader{Dir: dir}, Logger: quietLogger()})
	st := r.Loaded(context.Background())
	if len(st) != 3 || !st[NameSoil] || st[NamePrice] || st[NameSpoilage] {
		t.Fatalf("unexpected status: %v", st)
	}
}

func TestDecodeArtifactValidation(t *testing.T) {
	for _, bad := range []string{
		`not json`,
		`{}`,
		`{"kind":"tree"}`,
		`{"kind":"linear"}`,
		`{"kind":"linear","coefficients":[1,2],"means":[1]}`,
		`{"kind":"remote"}`,
		`{"kind":"anthropic"}`,
	} {
		if _, err := DecodeArtifact([]byte(bad)); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
	a, err := DecodeArtifact([]byte(`{"kind":" Linear ","coefficients":[1]}`))
	if err != nil || a.Kind != KindLinear {
		t.Fatalf("expected normalized linear kind, got %+v %v", a, err)
	}
}

func TestLinearPredictorStandardizes(t *testing.T) {
	p := NewLinearPredictor(Artifact{
		Kind:         KindLinear,
		Intercept:    100,
		Coefficients: []float64{2, -1},
		Means:        []float64{10, 0},
		Scales:       []float64{5, 1},
	})
	got, err := p.Predict(context.Background(), []float64{20, 3})
	if err != nil {
		t.Fatal(err)
	}
	// 100 + 2*((20-10)/5) - 1*3
	if got != 101 {
		t.Fatalf("expected 101, got %v", got)
	}
	if _, err := p.Predict(context.Background(), []float64{1}); err == nil {
		t.Fatal("expected feature length mismatch error")
	}
}

func TestWriteArtifactReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := ArtifactPath(dir, NamePrice)
	if err := WriteArtifact(path, []byte(`{"kind":"linear","coefficients":[1]}`)); err != nil {
		t.Fatal(err)
	}
	if err := WriteArtifact(path, []byte(`{"kind":"linear","coefficients":[2]}`)); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != `{"kind":"linear","coefficients":[2]}` {
		t.Fatalf("unexpected artifact: %s", blob)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file should not remain")
	}
}

func TestRemotePredictor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(`{"prediction": 0.42}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := WriteArtifact(ArtifactPath(dir, NameSpoilage), []byte(`{"kind":"remote","endpoint":"`+srv.URL+`"}`)); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(RegistryConfig{Loader: &FileLoader{Dir: dir, HTTPClient: srv.Client()}, Logger: quietLogger()})
	res := r.TryPredict(context.Background(), NameSpoilage, []float64{30, 80})
	if !res.OK() || res.Value != 0.42 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRemotePredictorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	if _, err := NewRemotePredictor(srv.URL, srv.Client()).Predict(context.Background(), []float64{1}); err == nil {
		t.Fatal("expected error on 502")
	}
}

type fakeCaller struct {
	out    string
	err    error
	prompt string
}

func (f *fakeCaller) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestLLMPredictorParsesFencedValue(t *testing.T) {
	c := &fakeCaller{out: "```json\n{\"value\": 2150.5}\n```"}
	p := NewLLMPredictor(c, []string{"quantity", "soil_ph"}, "Estimate tomato price in Rs/quintal.")
	got, err := p.Predict(context.Background(), []float64{50, 6.5})
	if err != nil {
		t.Fatal(err)
	}
	if got != 2150.5 {
		t.Fatalf("expected 2150.5, got %v", got)
	}
	if c.prompt == "" {
		t.Fatal("expected prompt to be sent")
	}
}

func TestLLMPredictorErrors(t *testing.T) {
	for _, c := range []*fakeCaller{
		{err: errors.New("status code: 529")},
		{out: ""},
		{out: "not json"},
		{out: `{"other": 1}`},
	} {
		p := NewLLMPredictor(c, []string{"x"}, "")
		if _, err := p.Predict(context.Background(), []float64{1}); err == nil {
			t.Fatalf("expected error for caller %+v", c)
		}
	}
}

type fakeMessager struct {
	text string
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.text}}}, nil
}

func TestAnthropicArtifactLoadsThroughCaller(t *testing.T) {
	orig := newAnthropicClient
	defer func() { newAnthropicClient = orig }()
	newAnthropicClient = func(string) AnthropicMessager { return &fakeMessager{text: `{"value": 0.3}`} }
	t.Setenv("ANTHROPIC_API_KEY", "test")

	dir := t.TempDir()
	if err := WriteArtifact(ArtifactPath(dir, NameSpoilage), []byte(`{"kind":"anthropic","feature_names":["temperature","humidity"]}`)); err != nil {
		t.Fatal(err)
	}
	loader := &FileLoader{Dir: dir, NewLLMCaller: func() (LLMCaller, error) { return NewAnthropicCallerFromEnv() }}
	r := NewRegistry(RegistryConfig{Loader: loader, Logger: quietLogger()})
	res := r.TryPredict(context.Background(), NameSpoilage, []float64{30, 70})
	if !res.OK() || res.Value != 0.3 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAnthropicArtifactDisabledIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifact(ArtifactPath(dir, NamePrice), []byte(`{"kind":"anthropic","feature_names":["quantity"]}`)); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(RegistryConfig{Loader: &FileLoader{Dir: dir}, Logger: quietLogger()})
	if _, ok := r.Get(context.Background(), NamePrice).(Unavailable); !ok {
		t.Fatal("expected Unavailable when no LLM caller is configured")
	}
}

func TestNewAnthropicCallerFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicCallerFromEnv(); err == nil {
		t.Fatal("expected error without API key")
	}
}
