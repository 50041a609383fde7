package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/middleware"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/router"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
	"github.com/stretchr/testify/require"
)

type stubObligationService struct {
	obligation domain.AnchorObligation
	err        error
	gotAnchor  string
}

func (s *stubObligationService) Authorize(ctx context.Context, cmd service_interfaces.AuthorizeCommand) (domain.AnchorAuthorization, error) {
	return domain.AnchorAuthorization{}, nil
}

func (s *stubObligationService) Fulfill(ctx context.Context, authorizationID, proof string) (domain.AnchorAuthorization, error) {
	return domain.AnchorAuthorization{}, nil
}

func (s *stubObligationService) Expire(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error) {
	return domain.AnchorAuthorization{}, nil
}

func (s *stubObligationService) Fail(ctx context.Context, authorizationID, reason string) (domain.AnchorAuthorization, error) {
	return domain.AnchorAuthorization{}, nil
}

func (s *stubObligationService) AuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error) {
	return domain.AnchorAuthorization{}, nil
}

func (s *stubObligationService) Obligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error) {
	s.gotAnchor = anchorType
	return s.obligation, s.err
}

func doGetObligation(t *testing.T, service *stubObligationService, target string) *httptest.ResponseRecorder {
	t.Helper()

	mux := router.New(nil, NewObligationController(service), middleware.BasicAuth("clearing-channel", "channel-secret"))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", authHeader())
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestObligationEndpoint_FetchesCounters(t *testing.T) {
	service := &stubObligationService{
		obligation: domain.AnchorObligation{
			AnchorType:      "GROCERY",
			TotalAuthorized: decimal.RequireFromString("125.00"),
			TotalFulfilled:  decimal.RequireFromString("100.00"),
			TotalExpired:    decimal.RequireFromString("25.00"),
		},
	}

	rr := doGetObligation(t, service, "/anchor-obligations?anchorType=grocery")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "GROCERY", service.gotAnchor)
	require.Contains(t, rr.Body.String(), `"totalAuthorized":"125"`)
	require.Contains(t, rr.Body.String(), `"halted":false`)
}

func TestObligationEndpoint_RequiresAnchorType(t *testing.T) {
	rr := doGetObligation(t, &stubObligationService{}, "/anchor-obligations")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestObligationEndpoint_NotFound(t *testing.T) {
	rr := doGetObligation(t, &stubObligationService{err: domain.ErrRecordNotFound}, "/anchor-obligations?anchorType=FUEL")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
