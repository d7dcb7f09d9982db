package handler

import (
	"net/http"

	"github.com/quietfloor/readingroom/internal/api/apierr"
	"github.com/quietfloor/readingroom/internal/api/response"
	"github.com/quietfloor/readingroom/internal/services/forecast"
)

// ForecastHandler handles the snow prediction endpoint
type ForecastHandler struct {
	forecastService *forecast.Service
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecastService *forecast.Service) *ForecastHandler {
	return &ForecastHandler{
		forecastService: forecastService,
	}
}

// SnowPrediction handles GET /api/snow-prediction
func (h *ForecastHandler) SnowPrediction(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.forecastService.Predict(r.Context())
	if err != nil {
		WriteError(w, apierr.NewCollaboratorError("snow prediction unavailable"))
		return
	}

	response.JSON(w, http.StatusOK, response.SnowPredictionsFromModel(predictions))
}
