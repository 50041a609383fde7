package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
)

// HTTPAdapter talks to an issuer over JSON/HTTP. A 2xx with a proof means
// fulfilled; a 422 means definitive failure; anything else, including
// transport errors and timeouts, is ambiguous.
type HTTPAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Adapter = (*HTTPAdapter)(nil)

func NewHTTPAdapter(baseURL, apiKey string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPAdapter{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type executeResponse struct {
	Proof  string `json:"proof"`
	Reason string `json:"reason"`
}

func (a *HTTPAdapter) Execute(ctx context.Context, req ExecuteRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		// Network failures and timeouts are ambiguous: the issuer may or may
		// not have acted. Never translated into a definitive failure here.
		return "", fmt.Errorf("execute fulfillment: %w", err)
	}
	defer resp.Body.Close()

	var decoded executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("decode execute response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if strings.TrimSpace(decoded.Proof) == "" {
			return "", fmt.Errorf("execute fulfillment: issuer returned no proof")
		}
		return decoded.Proof, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		logger.Info("fulfillment adapter definitive failure", logger.Fields{
			"intentId": req.IntentID,
			"reason":   decoded.Reason,
		})
		return "", fmt.Errorf("%s: %w", decoded.Reason, ErrDefinitiveFailure)
	default:
		return "", fmt.Errorf("execute fulfillment: unexpected status %d", resp.StatusCode)
	}
}

func (a *HTTPAdapter) QueryStatus(ctx context.Context, intentID string) (StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/status/"+intentID, nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return StatusResult{}, fmt.Errorf("query fulfillment status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusResult{Status: StatusUnknown}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusResult{}, fmt.Errorf("query fulfillment status: unexpected status %d", resp.StatusCode)
	}

	var result StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StatusResult{}, fmt.Errorf("decode status response: %w", err)
	}

	switch result.Status {
	case StatusFulfilled, StatusFailed, StatusUnknown:
		return result, nil
	default:
		return StatusResult{}, fmt.Errorf("query fulfillment status: unrecognized status %q", result.Status)
	}
}
