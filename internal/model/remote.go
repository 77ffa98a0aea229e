package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemotePredictor delegates inference to an HTTP scoring endpoint that
// accepts {"features": [...]} and answers {"prediction": x}.
type RemotePredictor struct {
	endpoint string
	http     *http.Client
}

func NewRemotePredictor(endpoint string, client *http.Client) *RemotePredictor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemotePredictor{endpoint: strings.TrimSpace(endpoint), http: client}
}

func (p *RemotePredictor) Predict(ctx context.Context, features []float64) (float64, error) {
	body, err := json.Marshal(map[string]any{"features": features})
	if err != nil {
		return 0, err
	}
	out, _, err := p.doJSON(ctx, body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Prediction *float64 `json:"prediction"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	if resp.Prediction == nil {
		return 0, fmt.Errorf("missing prediction in response")
	}
	return *resp.Prediction, nil
}

func (p *RemotePredictor) doJSON(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return blob, resp.StatusCode, fmt.Errorf("POST %s failed status=%d body=%s", p.endpoint, resp.StatusCode, string(blob))
	}
	return blob, resp.StatusCode, nil
}
