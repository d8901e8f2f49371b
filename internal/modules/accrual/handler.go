package accrual

import (
	"net/http"

	"ecos/internal/middleware"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/pagination"
	"ecos/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var listOptions = pagination.Options{Include: []string{"user"}}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the caller's own ledger on protected and the full
// ledger on moderator.
func (h *Handler) RegisterRoutes(protected, moderator *gin.RouterGroup) {
	if protected != nil {
		protected.GET("/users/accrual-history", h.Mine)
		protected.GET("/accrual-history/:id", h.Get)
	}
	if moderator != nil {
		moderator.GET("/accrual-history", h.List)
	}
}

// Mine
// @Summary		Current user's points history
// @Tags		Accruals
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{}
// @Router		/users/accrual-history [GET]
func (h *Handler) Mine(c *gin.Context) {
	ledger, err := h.svc.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ledger)
}

// List
// @Summary		List accrual history
// @Tags		Accruals
// @Security	BearerAuth
// @Param		user_id	query	string	false	"User ID"
// @Param		include	query	string	false	"user"
// @Success		200	{object}	map[string]interface{}
// @Router		/accrual-history [GET]
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
// @Summary		Get an accrual entry
// @Tags		Accruals
// @Security	BearerAuth
// @Param		id	path	string	true	"Entry ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/accrual-history/{id} [GET]
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.FromError(c, apperr.Validation("invalid accrual entry id"))
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, e)
}
