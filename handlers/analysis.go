package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/services"
	"github.com/Valeamar/tidal2025/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Analyzer runs a price analysis for a product list.
type Analyzer interface {
	Analyze(ctx context.Context, products []models.ProductRequest, location models.FarmLocation) (*models.AnalysisResult, error)
}

type AnalysisHandler struct {
	Analyzer Analyzer
	Sessions services.SessionStore
}

func NewAnalysisHandler(analyzer Analyzer, sessions services.SessionStore) *AnalysisHandler {
	return &AnalysisHandler{Analyzer: analyzer, Sessions: sessions}
}

// AnalyzeProducts handles POST /analyze.
func (h *AnalysisHandler) AnalyzeProducts(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", false)
		return
	}

	products, location := fromAnalyzeRequest(req)
	utils.Log.Infof("[Analysis] Analyzing %d products for %s", len(products), utils.MaskLocation(location.City, location.State))

	result, err := h.Analyzer.Analyze(c.Request.Context(), products, location)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), false)
			return
		}
		utils.Log.Errorf("[Analysis] ❌ Analysis failed: %v", err)
		respondError(c, http.StatusInternalServerError, "ANALYSIS_FAILED", "Failed to analyze products", true)
		return
	}

	resp := toAnalysisResponse(result)
	if h.Sessions != nil {
		h.storeSession(c.Request.Context(), resp)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AnalysisHandler) storeSession(ctx context.Context, resp AnalysisResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		utils.Log.Warnf("[Analysis] ⚠️  Could not encode analysis %s: %v", resp.AnalysisID, err)
		return
	}
	if err := h.Sessions.Save(ctx, resp.AnalysisID, payload); err != nil {
		utils.Log.Warnf("[Analysis] ⚠️  Could not store analysis %s: %v", resp.AnalysisID, err)
	}
}

// GetAnalysis handles GET /analyses/:id.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid analysis id", false)
		return
	}
	if h.Sessions == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found", false)
		return
	}

	payload, err := h.Sessions.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrSessionNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found", false)
		return
	}
	if err != nil {
		utils.Log.Errorf("[Analysis] ❌ Failed to load analysis %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load analysis", true)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func respondError(c *gin.Context, status int, code, message string, retryable bool) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     ErrorBody{Code: code, Message: message, Retryable: retryable},
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().UTC(),
	})
}
