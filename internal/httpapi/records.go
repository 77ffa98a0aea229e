package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/store"
)

var errNoStore = newError(CodeUnavailable, "storage is not configured")

func quoteFrom(p store.MarketPrice) agri.MarketQuote {
	return agri.MarketQuote{MandiName: p.MandiName, Price: p.Price}
}

// decodeStrict is used by the storage endpoints, where a malformed body is a
// client error.
func decodeStrict(r *http.Request, dst any) error {
	blob, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return validationError("invalid json: %v", err)
	}
	return nil
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		writeError(w, errNoStore)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), store.DefaultListLimit)
	recs, err := s.store.ListRecommendations(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *Server) handleMarketPrices(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errNoStore)
		return
	}
	switch r.Method {
	case http.MethodGet:
		prices, err := s.store.ListMarketPrices(r.Context(), r.URL.Query().Get("crop"))
		if err != nil {
			writeError(w, err)
			return
		}
		if prices == nil {
			prices = []store.MarketPrice{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
	case http.MethodPost:
		var p store.MarketPrice
		if err := decodeStrict(r, &p); err != nil {
			writeError(w, err)
			return
		}
		saved, err := s.store.UpsertMarketPrice(r.Context(), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePreservationActions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errNoStore)
		return
	}
	switch r.Method {
	case http.MethodGet:
		actions, err := s.store.RankedPreservationActions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
	case http.MethodPost:
		var a store.PreservationAction
		if err := decodeStrict(r, &a); err != nil {
			writeError(w, err)
			return
		}
		saved, err := s.store.CreatePreservationAction(r.Context(), a)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
