// Package handler internal/infrastructure/handler/exchange_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/fx-converter/internal/application/service"
	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 16

// ExchangeHandler exposes the exchange controller over HTTP
type ExchangeHandler struct {
	ctrl   *service.ExchangeController
	logger logger.Logger
}

// NewExchangeHandler creates a new exchange handler
func NewExchangeHandler(ctrl *service.ExchangeController, log logger.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		ctrl:   ctrl,
		logger: logger.OrDefault(log).WithField("component", "exchange_handler"),
	}
}

// GetState returns the full controller snapshot
func (h *ExchangeHandler) GetState(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// SetAmount stores new amount input
func (h *ExchangeHandler) SetAmount(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req AmountRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}

	amount := h.ctrl.SetAmount(req.Amount)
	h.logger.Debug("Amount updated", map[string]interface{}{
		"request_id": requestID,
		"raw":        req.Amount,
		"amount":     amount,
	})
	sendJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

// SetPair changes one or both currencies
func (h *ExchangeHandler) SetPair(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req PairRequest
	if !h.decode(w, r, &req, requestID) {
		return
	}

	from := entity.NormalizeCode(req.From)
	to := entity.NormalizeCode(req.To)
	if from == "" && to == "" {
		sendErrorResponse(w, h.logger, "Missing currency",
			"At least one of 'from' or 'to' is required", http.StatusBadRequest, requestID)
		return
	}
	if !validCode(from) || !validCode(to) {
		h.logger.Warn("Invalid currency code", map[string]interface{}{
			"request_id": requestID,
			"from":       req.From,
			"to":         req.To,
		})
		sendErrorResponse(w, h.logger, "Invalid currency code",
			"Currency codes should be 3 or 4 letters (e.g., EUR, GBP, USDT)", http.StatusBadRequest, requestID)
		return
	}

	switch {
	case to == "":
		h.ctrl.SetFromCode(from)
	case from == "":
		h.ctrl.SetToCode(to)
	default:
		h.ctrl.SelectPair(from, to)
	}

	h.logger.Info("Pair selected", map[string]interface{}{
		"request_id": requestID,
		"from":       from,
		"to":         to,
	})
	h.sendPair(w)
}

// Swap exchanges the source and target currencies
func (h *ExchangeHandler) Swap(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Swap()
	h.sendPair(w)
}

// Convert computes the current inputs immediately
func (h *ExchangeHandler) Convert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	result, err := h.ctrl.Convert(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidPair):
			sendErrorResponse(w, h.logger, "Unsupported currency",
				"The selected currency is not in the current rate table", http.StatusBadRequest, requestID)
		case errors.Is(err, entity.ErrMalformedAmount):
			sendErrorResponse(w, h.logger, "Invalid amount",
				"Amount must be a non-negative decimal number", http.StatusBadRequest, requestID)
		case errors.Is(err, entity.ErrStaleDataUnavailable):
			sendErrorResponse(w, h.logger, "Rates unavailable",
				service.MsgRatesFailed, http.StatusServiceUnavailable, requestID)
		default:
			h.logger.Error("Conversion failed", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			sendErrorResponse(w, h.logger, "Conversion failed",
				service.MsgConversionFailed, http.StatusInternalServerError, requestID)
		}
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

// ListFavorites returns the favorite pairs
func (h *ExchangeHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, FavoritesResponse{Favorites: h.ctrl.Favorites()})
}

// ToggleFavorite toggles the current pair
func (h *ExchangeHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	favorite, err := h.ctrl.ToggleFavorite(r.Context())
	if err != nil {
		h.logger.Error("Failed to toggle favorite", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Failed to save favorites",
			"The favorite pairs could not be saved. Please try again.", http.StatusInternalServerError, requestID)
		return
	}

	engine := h.ctrl.Engine()
	sendJSON(w, http.StatusOK, FavoriteToggleResponse{
		Pair:       entity.NewFavoritePair(engine.From(), engine.To()).Key(),
		IsFavorite: favorite,
	})
}

// GetHistory returns the conversion history
func (h *ExchangeHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HistoryResponse{
		ShowHistory: h.ctrl.Snapshot().ShowHistory,
		History:     h.ctrl.History(),
	})
}

// ToggleHistory flips history visibility
func (h *ExchangeHandler) ToggleHistory(w http.ResponseWriter, r *http.Request) {
	show := h.ctrl.ToggleHistory()
	sendJSON(w, http.StatusOK, HistoryResponse{
		ShowHistory: show,
		History:     h.ctrl.History(),
	})
}

// SearchCurrencies filters the currency catalog
func (h *ExchangeHandler) SearchCurrencies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sendJSON(w, http.StatusOK, CurrenciesResponse{
		Currencies: h.ctrl.SearchCurrencies(query.Get("q"), query.Get("exclude")),
	})
}

// RefreshRates re-fetches rates and the catalog
func (h *ExchangeHandler) RefreshRates(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.ctrl.Refresh(r.Context()); err != nil {
		state := h.ctrl.Snapshot()
		h.logger.Warn("Manual refresh failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Refresh failed", state.Error, http.StatusBadGateway, requestID)
		return
	}

	sendJSON(w, http.StatusOK, RefreshResponse{LastUpdated: h.ctrl.Snapshot().LastUpdated})
}

// RegisterRoutes registers the exchange routes
func (h *ExchangeHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/amount", h.SetAmount).Methods("PUT")
	api.HandleFunc("/pair", h.SetPair).Methods("PUT")
	api.HandleFunc("/swap", h.Swap).Methods("POST")
	api.HandleFunc("/convert", h.Convert).Methods("POST")
	api.HandleFunc("/favorites", h.ListFavorites).Methods("GET")
	api.HandleFunc("/favorites/toggle", h.ToggleFavorite).Methods("POST")
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history/toggle", h.ToggleHistory).Methods("POST")
	api.HandleFunc("/currencies", h.SearchCurrencies).Methods("GET")
	api.HandleFunc("/rates/refresh", h.RefreshRates).Methods("POST")

	h.logger.Info("Exchange routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/state",
			"PUT /api/amount",
			"PUT /api/pair",
			"POST /api/swap",
			"POST /api/convert",
			"GET /api/favorites",
			"POST /api/favorites/toggle",
			"GET /api/history",
			"POST /api/history/toggle",
			"GET /api/currencies",
			"POST /api/rates/refresh",
		},
	})
}

func (h *ExchangeHandler) sendPair(w http.ResponseWriter) {
	engine := h.ctrl.Engine()
	sendJSON(w, http.StatusOK, PairResponse{
		From:       engine.From(),
		To:         engine.To(),
		IsFavorite: h.ctrl.IsFavorite(),
	})
}

func (h *ExchangeHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}, requestID string) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body could not be parsed as valid JSON", http.StatusBadRequest, requestID)
		return false
	}
	return true
}

// validCode accepts empty or three to four ASCII letters
func validCode(code string) bool {
	if code == "" {
		return true
	}
	if len(code) < 3 || len(code) > 4 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	json.NewEncoder(w).Encode(resp)
}
