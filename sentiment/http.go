package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEstimator implements a client that calls an external sentiment model
// service (e.g. a FinBERT deployment) over HTTP.
type HTTPEstimator struct {
	baseURL string
	client  *http.Client
}

// EstimateRequest represents the request to the model service.
type EstimateRequest struct {
	Headlines []string `json:"headlines"`
}

// EstimateResponse represents the response from the model service.
type EstimateResponse struct {
	Sentiment   string  `json:"sentiment"`
	Probability float64 `json:"probability"`
}

// NewHTTPEstimator creates a new HTTP estimator for the given service base URL.
func NewHTTPEstimator(baseURL string) *HTTPEstimator {
	return &HTTPEstimator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Estimate calls the model service to classify the given headlines. An empty
// headline list short-circuits to a neutral zero-confidence answer without a
// network call.
func (e *HTTPEstimator) Estimate(ctx context.Context, headlines []string) (Label, float64, error) {
	if len(headlines) == 0 {
		return LabelNeutral, 0, nil
	}

	jsonData, err := json.Marshal(EstimateRequest{Headlines: headlines})
	if err != nil {
		return LabelNeutral, 0, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/estimate", bytes.NewBuffer(jsonData))
	if err != nil {
		return LabelNeutral, 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return LabelNeutral, 0, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LabelNeutral, 0, fmt.Errorf("error response from model service: %d", resp.StatusCode)
	}

	var estResp EstimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&estResp); err != nil {
		return LabelNeutral, 0, fmt.Errorf("error decoding response: %w", err)
	}

	label, err := ParseLabel(estResp.Sentiment)
	if err != nil {
		return LabelNeutral, 0, err
	}
	return label, estResp.Probability, nil
}

// ParseLabel converts a model service label string into a Label.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelNegative, LabelNeutral, LabelPositive:
		return Label(s), nil
	default:
		return LabelNeutral, fmt.Errorf("unknown sentiment label: %q", s)
	}
}
