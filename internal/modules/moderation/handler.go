package moderation

import (
	"net/http"

	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/pagination"
	"ecos/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var listOptions = pagination.Options{SearchField: "comment"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(moderator *gin.RouterGroup) {
	moderator.GET("/moderations", h.List)
	moderator.GET("/moderations/:id", h.Get)
}

// List
// @Summary		List moderation decisions
// @Tags		Moderation
// @Security	BearerAuth
// @Param		status				query	string	false	"APPROVED or REJECTED"
// @Param		reception_point_id	query	string	false	"Reception point ID"
// @Param		sort				query	string	false	"e.g. -verification_date"
// @Success		200	{object}	map[string]interface{}
// @Router		/moderations [GET]
func (h *Handler) List(c *gin.Context) {
	q, page, err := pagination.Parse(c.Request.URL.Query(), listOptions)
	if err != nil {
		response.FromError(c, err)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.List(c, items, page.Meta(total))
}

// Get
// @Summary		Get a moderation decision
// @Tags		Moderation
// @Security	BearerAuth
// @Param		id	path	string	true	"Moderation ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/moderations/{id} [GET]
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.FromError(c, apperr.Validation("invalid moderation id"))
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}
