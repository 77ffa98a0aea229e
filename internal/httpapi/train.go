package httpapi

import (
	"net/http"
	"strings"

	"github.com/joelkehle/agrichain-advisor/internal/model"
	"github.com/joelkehle/agrichain-advisor/internal/training"
)

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	modelType := strings.Trim(strings.TrimPrefix(r.URL.Path, "/train/"), "/")
	if !model.IsKnown(modelType) {
		writeError(w, validationError("Invalid model type. Use: price, spoilage, or soil"))
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.trainer == nil {
		writeError(w, training.ErrNoTrainer)
		return
	}
	s.logger.Printf("training %s model", modelType)
	result, err := s.trainer.Train(r.Context(), modelType, blob)
	if err != nil {
		s.logger.Printf("training %s model failed: %v", modelType, err)
		writeError(w, err)
		return
	}
	if s.models != nil {
		s.models.Reset(modelType)
		s.models.Preload(r.Context(), modelType)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"model_type": modelType,
		"message":    strings.ToUpper(modelType[:1]) + modelType[1:] + " model trained successfully",
		"result":     result,
		"timestamp":  s.clock(),
	})
}
