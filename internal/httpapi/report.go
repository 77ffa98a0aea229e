package httpapi

import (
	"net/http"
	"strings"

	"github.com/joelkehle/agrichain-advisor/internal/heuristics"
	"github.com/joelkehle/agrichain-advisor/internal/report"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
	"github.com/joelkehle/agrichain-advisor/internal/store"
)

type reportRequest struct {
	recommendRequest
	Simulation *simulator.Params `json:"simulation,omitempty"`
}

// handleRecommendReport runs the same pipeline as /recommend, plus an optional
// spoilage projection, and renders the result as markdown, html or pdf.
func (s *Server) handleRecommendReport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "markdown"
	}
	switch format {
	case "markdown", "html", "pdf":
	default:
		writeError(w, validationError("unsupported format %q (use markdown, html or pdf)", format))
		return
	}
	if format == "pdf" && s.pdf == nil {
		writeError(w, newError(CodeUnavailable, "pdf rendering is not configured"))
		return
	}

	var req reportRequest
	if err := decodeCore(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.recommend(r.Context(), req.recommendRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	in := report.Input{CropName: req.CropName, Region: req.Region, Recommendation: rec}
	if score, ok := heuristics.SoilScore(req.CropName, req.Soil); ok {
		in.SoilScore = &score
	}
	if req.Simulation != nil {
		// An empty crop_type resolves to the vegetable bucket; crop names are
		// not simulator buckets.
		traj, err := s.simulate(r.Context(), *req.Simulation)
		if err != nil {
			writeError(w, err)
			return
		}
		in.Trajectory = &traj
	}
	if s.store != nil {
		actions, err := s.store.RankedPreservationActions(r.Context())
		if err != nil {
			s.logger.Printf("preservation actions unavailable: %v", err)
		}
		in.Actions = actions
	} else {
		in.Actions = store.RankActions(store.DefaultActions)
	}

	md := report.BuildMarkdown(in)
	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
		return
	}
	doc, err := report.HTML(md, "Sale Recommendation", s.webDir)
	if err != nil {
		writeError(w, err)
		return
	}
	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc))
		return
	}
	pdf, err := s.pdf.Render(r.Context(), doc)
	if err != nil {
		s.logger.Printf("pdf render failed: %v", err)
		writeError(w, newError(CodeUnavailable, "pdf render failed: "+err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="recommendation.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
