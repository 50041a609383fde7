package controller

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/middleware"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/models"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/router"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/commons"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/stretchr/testify/require"
)

type stubClearingService struct {
	response commons.Response[models.ClearObligationResponse]
	err      error
}

func (s *stubClearingService) ClearObligation(ctx context.Context, req models.ClearObligationRequest) (commons.Response[models.ClearObligationResponse], error) {
	return s.response, s.err
}

func newTestMux(clearing *stubClearingService) *http.ServeMux {
	return router.New(
		NewClearingController(clearing),
		nil,
		middleware.BasicAuth("clearing-channel", "channel-secret"),
	)
}

func authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("clearing-channel:channel-secret"))
}

func doClear(t *testing.T, mux *http.ServeMux, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/clear-obligation", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", authHeader())
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

const validBody = `{"intentId":"intent-1","userId":"0xA1B2","anchorType":"GROCERY","units":25,"amount":"25.00"}`

func TestClearEndpoint_Fulfilled(t *testing.T) {
	service := &stubClearingService{
		response: commons.SuccessResponse("Clearing fulfilled", models.ClearObligationResponse{
			IntentID:        "intent-1",
			AuthorizationID: "auth-1",
			Status:          "fulfilled",
			Proof:           "issuer-proof-xyz",
		}),
	}
	mux := newTestMux(service)

	rr := doClear(t, mux, validBody, true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"fulfilled"`)
	require.Contains(t, rr.Body.String(), `"success":true`)
}

func TestClearEndpoint_PendingIsAccepted(t *testing.T) {
	service := &stubClearingService{
		response: commons.PendingResponse("Clearing pending reconciliation", models.ClearObligationResponse{
			IntentID:        "intent-1",
			AuthorizationID: "auth-1",
			Status:          "pending",
		}),
	}
	mux := newTestMux(service)

	rr := doClear(t, mux, validBody, true)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"pending"`)
}

func TestClearEndpoint_RequiresAuth(t *testing.T) {
	mux := newTestMux(&stubClearingService{})

	rr := doClear(t, mux, validBody, false)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClearEndpoint_RejectsBadJSON(t *testing.T) {
	mux := newTestMux(&stubClearingService{})

	rr := doClear(t, mux, `{"intentId":`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "invalid request body")
}

func TestClearEndpoint_RejectsWrongMethod(t *testing.T) {
	mux := newTestMux(&stubClearingService{})

	req := httptest.NewRequest(http.MethodGet, "/clear-obligation", nil)
	req.Header.Set("Authorization", authHeader())
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestClearEndpoint_MapsServiceErrors(t *testing.T) {
	cases := []struct {
		message    string
		err        error
		wantStatus int
	}{
		{"validation failed", errors.New("units must be greater than zero"), http.StatusBadRequest},
		{"Intent conflict", domain.ErrIdempotencyConflict, http.StatusConflict},
		{"Account not found", domain.ErrRecordNotFound, http.StatusNotFound},
		{"Insufficient balance", domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"Daily cap exceeded", domain.ErrDailyCapExceeded, http.StatusUnprocessableEntity},
		{"Anchor unavailable", domain.ErrAnchorHalted, http.StatusUnprocessableEntity},
		{"failed to clear obligation", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			service := &stubClearingService{
				response: commons.ErrorResponse[models.ClearObligationResponse](tc.message, tc.err.Error()),
				err:      tc.err,
			}
			mux := newTestMux(service)

			rr := doClear(t, mux, validBody, true)
			require.Equal(t, tc.wantStatus, rr.Code)
			require.Contains(t, rr.Body.String(), `"success":false`)
		})
	}
}

func TestClearEndpoint_DecimalAmountRoundTrips(t *testing.T) {
	// The request model parses the JSON amount string into a decimal.
	var req models.ClearObligationRequest
	require.NoError(t, json.Unmarshal([]byte(validBody), &req))
	require.True(t, req.Amount.Equal(decimal.RequireFromString("25.00")))
}
