package receptionpoint

import (
	"context"
	"net/http"
	"strconv"

	"ecos/internal/domain"
	"ecos/internal/middleware"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/pagination"
	"ecos/internal/pkg/response"
	"ecos/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ImagesField is the multipart field carrying point photos.
const ImagesField = "images"

var listOptions = pagination.Options{
	SearchField: "name",
	Always:      []string{"images", "work_schedules"},
	Include:     []string{"wastes", "user", "moderations"},
}

type Handler struct {
	svc      *Service
	maxBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(public, protected, moderator *gin.RouterGroup) {
	if public != nil {
		public.GET("/reception-points", h.List)
		public.GET("/reception-points/:id", h.GetByID)
	}
	if protected != nil {
		protected.POST("/reception-points", h.Create)
		protected.DELETE("/reception-points/:id", h.Delete)
		protected.POST("/reception-points/:id/wastes/:waste_id", h.AddWasteType)
		protected.DELETE("/reception-points/:id/wastes/:waste_id", h.RemoveWasteType)
	}
	if moderator != nil {
		moderator.PATCH("/reception-points/:id/status", h.UpdateStatus)
	}
}

// List returns reception points.
// @Summary		List reception points
// @Description	Any non-reserved query parameter filters by equality, comma-separated values match any of them. Dotted parameters such as wastes.abbreviated_name filter through a relation. radius (meters) with latitude and longitude limits results to a circle.
// @Tags		Reception points
// @Param		page		query	int		false	"Page number, from 1"
// @Param		per_page	query	int		false	"Page size, at most 100"
// @Param		sort		query	string	false	"Comma-separated fields, '-' prefix for descending"
// @Param		search		query	string	false	"Case-insensitive substring of the name"
// @Param		include		query	string	false	"wastes, user, moderations"
// @Param		radius		query	number	false	"Radius in meters"
// @Param		latitude	query	number	false	"Center latitude"
// @Param		longitude	query	number	false	"Center longitude"
// @Success		200	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}	"Invalid filter"
// @Router		/reception-points [GET]
func (h *Handler) List(c *gin.Context) {
	values := c.Request.URL.Query()
	q, page, err := pagination.Parse(values, listOptions)
	if err != nil {
		response.FromError(c, err)
		return
	}
	radius, err := parseRadius(values.Get("radius"), values.Get("latitude"), values.Get("longitude"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), q, radius)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.List(c, items, page.Meta(total))
}

func parseRadius(radius, lat, lon string) (*RadiusFilter, error) {
	if radius == "" && lat == "" && lon == "" {
		return nil, nil
	}
	if radius == "" || lat == "" || lon == "" {
		return nil, apperr.InvalidFilter("radius, latitude and longitude must be given together")
	}
	var out RadiusFilter
	var err error
	if out.Meters, err = strconv.ParseFloat(radius, 64); err != nil {
		return nil, apperr.InvalidFilter("radius must be a number")
	}
	if out.Center.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return nil, apperr.InvalidFilter("latitude must be a number")
	}
	if out.Center.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return nil, apperr.InvalidFilter("longitude must be a number")
	}
	return &out, nil
}

// GetByID
// @Summary		Get a reception point
// @Tags		Reception points
// @Param		id	path	string	true	"Reception point ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/reception-points/{id} [GET]
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// Create adds a reception point. The point starts under moderation.
// @Summary		Add a reception point
// @Description	multipart/form-data: "data" holds the JSON CreateRequest, "images" one or more JPEG or PNG photos.
// @Tags		Reception points
// @Security	BearerAuth
// @Accept		multipart/form-data
// @Param		data	formData	string	true	"CreateRequest as JSON"
// @Param		images	formData	file	true	"Photos"
// @Success		201	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Failure		422	{object}	map[string]interface{}	"Validation error"
// @Failure		500	{object}	map[string]interface{}
// @Router		/reception-points [POST]
func (h *Handler) Create(c *gin.Context) {
	form, err := upload.Parse(c.Request, h.maxBytes, ImagesField)
	if err != nil {
		response.FromError(c, upload.AsAppError(err))
		return
	}
	var req CreateRequest
	if err := form.Decode(&req); err != nil {
		response.FromError(c, upload.AsAppError(err))
		return
	}

	p, err := h.svc.AddReceptionPoint(c.Request.Context(), middleware.UserID(c), req, form.Files)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p)
}

// UpdateStatus
// @Summary		Moderate a reception point
// @Description	Sets APPROVED or REJECTED, records the decision and credits the owner.
// @Tags		Reception points
// @Security	BearerAuth
// @Param		id		path	string				true	"Reception point ID"
// @Param		request	body	UpdateStatusRequest	true	"Decision"
// @Success		200	{object}	map[string]interface{}
// @Failure		403	{object}	map[string]interface{}	"Moderators only"
// @Failure		404	{object}	map[string]interface{}
// @Failure		422	{object}	map[string]interface{}
// @Router		/reception-points/{id}/status [PATCH]
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	p, err := h.svc.UpdateStatus(c.Request.Context(), id, middleware.Actor(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// Delete
// @Summary		Delete a reception point
// @Description	Owner or moderator. Photos are removed from storage after the rows.
// @Tags		Reception points
// @Security	BearerAuth
// @Param		id	path	string	true	"Reception point ID"
// @Success		204
// @Failure		403	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/reception-points/{id} [DELETE]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteReceptionPoint(c.Request.Context(), id, middleware.Actor(c)); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddWasteType
// @Summary		Accept a waste type at a reception point
// @Tags		Reception points
// @Security	BearerAuth
// @Param		id			path	string	true	"Reception point ID"
// @Param		waste_id	path	string	true	"Waste ID"
// @Success		204
// @Failure		409	{object}	map[string]interface{}	"Already linked"
// @Router		/reception-points/{id}/wastes/{waste_id} [POST]
func (h *Handler) AddWasteType(c *gin.Context) {
	h.changeWasteType(c, h.svc.AddWasteType)
}

// RemoveWasteType
// @Summary		Stop accepting a waste type at a reception point
// @Tags		Reception points
// @Security	BearerAuth
// @Param		id			path	string	true	"Reception point ID"
// @Param		waste_id	path	string	true	"Waste ID"
// @Success		204
// @Failure		404	{object}	map[string]interface{}	"Not linked"
// @Router		/reception-points/{id}/wastes/{waste_id} [DELETE]
func (h *Handler) RemoveWasteType(c *gin.Context) {
	h.changeWasteType(c, h.svc.RemoveWasteType)
}

func (h *Handler) changeWasteType(c *gin.Context, change func(ctx context.Context, pointID, wasteID uuid.UUID, actor domain.Actor) error) {
	pointID, ok := pathID(c, "id")
	if !ok {
		return
	}
	wasteID, ok := pathID(c, "waste_id")
	if !ok {
		return
	}
	if err := change(c.Request.Context(), pointID, wasteID, middleware.Actor(c)); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.FromError(c, apperr.Validation("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
