package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/models"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/commons"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

type ObligationController struct {
	service service_interfaces.ObligationService
}

func NewObligationController(service service_interfaces.ObligationService) *ObligationController {
	return &ObligationController{service: service}
}

func (c *ObligationController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	handler := http.HandlerFunc(c.getObligation)
	if authMiddleware != nil {
		handler = authMiddleware(handler).ServeHTTP
	}

	mux.Handle("/anchor-obligations", http.HandlerFunc(handler))
}

func (c *ObligationController) getObligation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		response := commons.ErrorResponse[models.AnchorObligationResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	anchorType := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("anchorType")))
	if anchorType == "" {
		response := commons.ErrorResponse[models.AnchorObligationResponse]("validation failed", "anchorType query parameter is required")
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}

	obligation, err := c.service.Obligation(r.Context(), anchorType)
	if err != nil {
		logError(r, err, nil)
		status := http.StatusInternalServerError
		message := "failed to fetch anchor obligation"
		if errors.Is(err, domain.ErrRecordNotFound) {
			status = http.StatusNotFound
			message = "Anchor obligation not found"
		}
		response := commons.ErrorResponse[models.AnchorObligationResponse](message, err.Error())
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	response := commons.SuccessResponse("Anchor obligation fetched", models.AnchorObligationResponse{
		AnchorType:      obligation.AnchorType,
		TotalAuthorized: obligation.TotalAuthorized.String(),
		TotalFulfilled:  obligation.TotalFulfilled.String(),
		TotalExpired:    obligation.TotalExpired.String(),
		Halted:          obligation.Halted,
	})
	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}
