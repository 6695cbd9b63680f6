package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/redraw/internal/errors"
	"github.com/stwalsh4118/redraw/internal/scoring"
	"github.com/stwalsh4118/redraw/internal/services"
)

// ScoreHandler handles score evaluation HTTP requests.
type ScoreHandler struct {
	service *services.ScoreService
}

// NewScoreHandler creates a new ScoreHandler instance.
func NewScoreHandler(service *services.ScoreService) *ScoreHandler {
	return &ScoreHandler{
		service: service,
	}
}

// ListFunctions handles GET /api/v1/scores/functions.
func (h *ScoreHandler) ListFunctions(c *gin.Context) {
	fns, err := h.service.ListFunctions(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list score functions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"functions": fns, "count": len(fns)})
}

// ScorePlan handles GET /api/v1/plans/:id/scores/:function.
func (h *ScoreHandler) ScorePlan(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	functionName := c.Param("function")

	report, err := h.service.ScorePlan(c.Request.Context(), planID, functionName)
	if err != nil {
		h.writeScoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ScoreDistrict handles GET /api/v1/plans/:id/districts/:district/scores/:function.
func (h *ScoreHandler) ScoreDistrict(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	districtID, err := strconv.Atoi(c.Param("district"))
	if err != nil || districtID < 0 {
		apierrors.BadRequest(c, "Invalid district id", nil)
		return
	}
	functionName := c.Param("function")

	report, err := h.service.ScoreDistrict(c.Request.Context(), planID, districtID, functionName)
	if err != nil {
		h.writeScoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Leaderboard handles GET /api/v1/leaderboard/:body/:function.
func (h *ScoreHandler) Leaderboard(c *gin.Context) {
	bodyID, err := strconv.ParseUint(c.Param("body"), 10, 32)
	if err != nil {
		apierrors.BadRequest(c, "Invalid legislative body id", nil)
		return
	}
	functionName := c.Param("function")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			apierrors.BadRequest(c, "Invalid limit", nil)
			return
		}
	}

	entries, err := h.service.Leaderboard(c.Request.Context(), uint(bodyID), functionName, limit)
	if err != nil {
		h.writeScoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "count": len(entries)})
}

func (h *ScoreHandler) writeScoreError(c *gin.Context, err error) {
	var confErr *scoring.ConfigurationError
	switch {
	case errors.Is(err, services.ErrPlanNotFound):
		apierrors.NotFound(c, "Plan not found")
	case errors.Is(err, services.ErrDistrictNotFound):
		apierrors.NotFound(c, "District not found")
	case errors.As(err, &confErr):
		apierrors.ConfigurationError(c, confErr.Error())
	default:
		apierrors.InternalServerError(c, "Failed to evaluate score", err)
	}
}
