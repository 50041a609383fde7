package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/models"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/commons"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

type ClearingController struct {
	service service_interfaces.ClearingService
}

func NewClearingController(service service_interfaces.ClearingService) *ClearingController {
	return &ClearingController{service: service}
}

func (c *ClearingController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	handler := http.HandlerFunc(c.clear)
	if authMiddleware != nil {
		handler = authMiddleware(handler).ServeHTTP
	}

	mux.Handle("/clear-obligation", http.HandlerFunc(handler))
}

func (c *ClearingController) clear(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodPost {
		response := commons.ErrorResponse[models.ClearObligationResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	var req models.ClearObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		response := commons.ErrorResponse[models.ClearObligationResponse]("invalid request body", err.Error())
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}
	logRequest(r, req)

	response, err := c.service.ClearObligation(r.Context(), req)
	if err != nil {
		logError(r, err, logger.Fields{"message": response.Message})
		status := http.StatusInternalServerError
		switch response.Message {
		case "validation failed":
			status = http.StatusBadRequest
		case "Intent conflict":
			status = http.StatusConflict
		case "Account not found":
			status = http.StatusNotFound
		case "Insufficient balance", "Daily cap exceeded", "Anchor unavailable":
			status = http.StatusUnprocessableEntity
		}

		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	status := http.StatusOK
	if response.Data != nil && response.Data.Status == "pending" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, response)
	logResponse(r, status, response, start)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
