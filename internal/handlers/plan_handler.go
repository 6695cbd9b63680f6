package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/redraw/internal/errors"
	"github.com/stwalsh4118/redraw/internal/middleware"
	"github.com/stwalsh4118/redraw/internal/plan"
)

// PlanHandler handles plan lifecycle and editing HTTP requests.
type PlanHandler struct {
	service *plan.Service
}

// NewPlanHandler creates a new PlanHandler instance.
func NewPlanHandler(service *plan.Service) *PlanHandler {
	return &PlanHandler{
		service: service,
	}
}

// CreatePlanRequest represents the body of the create-plan endpoint.
// It doubles as the query binding for index imports.
type CreatePlanRequest struct {
	Name              string    `json:"name" form:"name" binding:"required,min=1,max=200"`
	OwnerID           uuid.UUID `json:"owner_id" form:"owner_id" binding:"required"`
	LegislativeBodyID uint      `json:"legislative_body_id" form:"legislative_body_id" binding:"required"`
	IsCommunity       bool      `json:"is_community" form:"is_community"`
}

// AddGeounitsRequest represents the body of the assign endpoint.
type AddGeounitsRequest struct {
	DistrictID int         `json:"district_id" binding:"min=0"`
	GeounitIDs []uuid.UUID `json:"geounit_ids" binding:"required,min=1"`
	Version    int         `json:"version" binding:"min=0"`
}

// PasteDistrictsRequest represents the body of the paste endpoint.
type PasteDistrictsRequest struct {
	SourcePlanID uuid.UUID `json:"source_plan_id" binding:"required"`
	DistrictIDs  []int     `json:"district_ids" binding:"required,min=1"`
}

// CombineDistrictsRequest represents the body of the combine endpoint.
type CombineDistrictsRequest struct {
	TargetID     int   `json:"target_id" binding:"required,min=1"`
	ComponentIDs []int `json:"component_ids" binding:"required,min=1"`
}

// FixUnassignedRequest represents the body of the fix-unassigned
// endpoint.
type FixUnassignedRequest struct {
	Comparator          string  `json:"comparator" binding:"required"`
	MinAssignedFraction float64 `json:"min_assigned_fraction" binding:"min=0,max=1"`
}

// Create handles POST /api/v1/plans.
func (h *PlanHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	created, err := h.service.CreatePlan(c.Request.Context(), req.Name, req.OwnerID, req.LegislativeBodyID, req.IsCommunity)
	if err != nil {
		if errors.Is(err, plan.ErrBodyNotFound) {
			apierrors.NotFound(c, "Legislative body not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to create plan", err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// AddGeounits handles POST /api/v1/plans/:id/districts. It moves the
// given geounits into the named district and returns the number of
// districts the edit touched.
func (h *PlanHandler) AddGeounits(c *gin.Context) {
	log := middleware.GetLogger(c)

	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	var req AddGeounitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing assign request", map[string]interface{}{
			"plan_id":     planID.String(),
			"district_id": req.DistrictID,
			"geounits":    len(req.GeounitIDs),
		})
	}

	affected, err := h.service.AddGeounits(c.Request.Context(), planID, req.DistrictID, req.GeounitIDs, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrPlanNotFound):
			apierrors.NotFound(c, "Plan not found")
		case errors.Is(err, plan.ErrNoGeounits):
			apierrors.BadRequest(c, "No matching geounits", nil)
		case errors.Is(err, plan.ErrDistrictLocked), errors.Is(err, plan.ErrMaxDistricts):
			apierrors.ConstraintViolation(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to assign geounits", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"districts_changed": affected})
}

// Paste handles POST /api/v1/plans/:id/paste.
func (h *PlanHandler) Paste(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	var req PasteDistrictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	added, err := h.service.PasteDistricts(c.Request.Context(), planID, req.SourcePlanID, req.DistrictIDs)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrPlanNotFound):
			apierrors.NotFound(c, "Plan not found")
		case errors.Is(err, plan.ErrDistrictNotFound):
			apierrors.NotFound(c, "Source district not found")
		case errors.Is(err, plan.ErrMaxDistricts):
			apierrors.ConstraintViolation(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to paste districts", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"district_ids": added})
}

// Combine handles POST /api/v1/plans/:id/combine.
func (h *PlanHandler) Combine(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	var req CombineDistrictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if err := h.service.CombineDistricts(c.Request.Context(), planID, req.TargetID, req.ComponentIDs); err != nil {
		switch {
		case errors.Is(err, plan.ErrPlanNotFound):
			apierrors.NotFound(c, "Plan not found")
		case errors.Is(err, plan.ErrDistrictNotFound):
			apierrors.NotFound(c, "District not found")
		case errors.Is(err, plan.ErrDistrictLocked):
			apierrors.ConstraintViolation(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to combine districts", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// FixUnassigned handles POST /api/v1/plans/:id/fix-unassigned.
func (h *PlanHandler) FixUnassigned(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}
	var req FixUnassignedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	moved, err := h.service.FixUnassigned(c.Request.Context(), planID, req.Comparator, req.MinAssignedFraction)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrPlanNotFound):
			apierrors.NotFound(c, "Plan not found")
		case errors.Is(err, plan.ErrPreconditionNotMet):
			apierrors.ConstraintViolation(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to fix unassigned areas", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"geounits_moved": moved})
}

// ExportIndex handles GET /api/v1/plans/:id/index. It streams the
// plan's assignment index as CSV.
func (h *PlanHandler) ExportIndex(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid plan id", nil)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=plan-index.csv")
	if err := h.service.ExportIndex(c.Request.Context(), planID, c.Writer); err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			apierrors.NotFound(c, "Plan not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to export plan index", err)
		return
	}
}

// ImportIndex handles POST /api/v1/plans/import. The request body is
// the CSV index file; plan metadata arrives as query parameters.
func (h *PlanHandler) ImportIndex(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	created, err := h.service.ImportIndex(c.Request.Context(), req.Name, req.OwnerID, req.LegislativeBodyID, req.IsCommunity, c.Request.Body)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrBodyNotFound):
			apierrors.NotFound(c, "Legislative body not found")
		case errors.Is(err, plan.ErrNoGeounits):
			apierrors.BadRequest(c, "Index file references unknown geounits", nil)
		default:
			apierrors.InternalServerError(c, "Failed to import plan index", err)
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}
