package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/heuristics"
	"github.com/joelkehle/agrichain-advisor/internal/report"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
	"github.com/joelkehle/agrichain-advisor/internal/store"
)

// savedRecommendation is a /recommend response plus the request context the
// response does not echo.
type savedRecommendation struct {
	CropName       string                `json:"crop_name"`
	Region         string                `json:"region"`
	Quantity       float64               `json:"quantity"`
	Soil           agri.SoilSample       `json:"soil"`
	Recommendation engine.Recommendation `json:"recommendation"`
	Trajectory     *simulator.Trajectory `json:"simulation,omitempty"`
}

type pdfRenderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

func main() {
	inputPath := flag.String("input", "", "Path to saved recommendation JSON")
	outputPath := flag.String("output", "", "Path to write the report (defaults to stdout; required for pdf)")
	format := flag.String("format", "markdown", "markdown, html or pdf")
	webDir := flag.String("web-dir", "", "Directory holding an optional style.css")
	chromePath := flag.String("chrome", os.Getenv("CHROME_BIN"), "Chromium binary for pdf output")
	dbPath := flag.String("db", "", "Optional SQLite database to read preservation actions from")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}
	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	var saved savedRecommendation
	if err := json.Unmarshal(in, &saved); err != nil {
		log.Fatalf("decode input JSON: %v", err)
	}

	ctx := context.Background()
	actions := store.RankActions(store.DefaultActions)
	if *dbPath != "" {
		st, err := store.NewSQLiteStore(ctx, *dbPath, store.Config{})
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer st.Close()
		if actions, err = st.RankedPreservationActions(ctx); err != nil {
			log.Fatalf("load preservation actions: %v", err)
		}
	}

	out, err := render(ctx, saved, actions, *format, *webDir, report.NewChromiumRenderer(*chromePath))
	if err != nil {
		log.Fatalf("render %s: %v", *format, err)
	}
	if *outputPath == "" {
		if *format == "pdf" {
			log.Fatal("pdf output requires -output")
		}
		fmt.Print(string(out))
		return
	}
	if err := os.WriteFile(*outputPath, out, 0o644); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

func render(ctx context.Context, saved savedRecommendation, actions []store.PreservationAction, format, webDir string, pdf pdfRenderer) ([]byte, error) {
	rec := saved.Recommendation
	if rec.Quantity == 0 {
		rec.Quantity = saved.Quantity
	}
	in := report.Input{
		CropName:       saved.CropName,
		Region:         saved.Region,
		Recommendation: rec,
		Trajectory:     saved.Trajectory,
		Actions:        actions,
	}
	if score, ok := heuristics.SoilScore(saved.CropName, saved.Soil); ok {
		in.SoilScore = &score
	}
	md := report.BuildMarkdown(in)
	switch strings.ToLower(format) {
	case "markdown", "md":
		return []byte(md), nil
	case "html":
		doc, err := report.HTML(md, "Sale Recommendation", webDir)
		return []byte(doc), err
	case "pdf":
		doc, err := report.HTML(md, "Sale Recommendation", webDir)
		if err != nil {
			return nil, err
		}
		return pdf.Render(ctx, doc)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
