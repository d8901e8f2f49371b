package waste

import (
	"net/http"

	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/pagination"
	"ecos/internal/pkg/response"
	"ecos/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ImageField = "image"

var (
	listOptions = pagination.Options{
		SearchField: "abbreviated_name",
		Include:     []string{"translations"},
	}
	translationListOptions = pagination.Options{SearchField: "name"}
)

type Handler struct {
	svc      *Service
	maxBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(public, moderator *gin.RouterGroup) {
	if public != nil {
		public.GET("/wastes", h.List)
		public.GET("/wastes/:id", h.Get)
		public.GET("/waste-translations", h.ListTranslations)
		public.GET("/waste-translations/:id", h.GetTranslation)
	}
	if moderator != nil {
		moderator.POST("/wastes", h.Create)
		moderator.DELETE("/wastes/:id", h.Delete)
		moderator.POST("/wastes/:id/translations", h.AddTranslation)
		moderator.PATCH("/waste-translations/:id", h.UpdateTranslation)
		moderator.DELETE("/waste-translations/:id", h.DeleteTranslation)
	}
}

// List
// @Summary		List waste types
// @Tags		Wastes
// @Param		search	query	string	false	"Substring of the abbreviated name"
// @Param		include	query	string	false	"translations"
// @Success		200	{object}	map[string]interface{}
// @Router		/wastes [GET]
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
// @Summary		Get a waste type with its translations
// @Tags		Wastes
// @Param		id	path	string	true	"Waste ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/wastes/{id} [GET]
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, w)
}

// Create
// @Summary		Add a waste type
// @Description	JSON body, or multipart/form-data with the JSON in "data" and an optional "image".
// @Tags		Wastes
// @Security	BearerAuth
// @Param		request	body	CreateRequest	true	"Waste type"
// @Success		201	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Abbreviation taken"
// @Router		/wastes [POST]
func (h *Handler) Create(c *gin.Context) {
	form, err := upload.Parse(c.Request, h.maxBytes, ImageField)
	if err != nil {
		response.FromError(c, upload.AsAppError(err))
		return
	}

	var req CreateRequest
	if len(form.Data) > 0 {
		err = form.Decode(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}

	var image *upload.File
	if len(form.Files) > 0 {
		image = &form.Files[0]
	}
	w, err := h.svc.Create(c.Request.Context(), req, image)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, w)
}

// Delete
// @Summary		Delete a waste type
// @Tags		Wastes
// @Security	BearerAuth
// @Param		id	path	string	true	"Waste ID"
// @Success		204
// @Failure		404	{object}	map[string]interface{}
// @Router		/wastes/{id} [DELETE]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddTranslation
// @Summary		Add a waste type translation
// @Tags		Wastes
// @Security	BearerAuth
// @Param		id		path	string				true	"Waste ID"
// @Param		request	body	TranslationRequest	true	"Translation"
// @Success		201	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Language already translated"
// @Router		/wastes/{id}/translations [POST]
func (h *Handler) AddTranslation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	t, err := h.svc.AddTranslation(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, t)
}

// UpdateTranslation
// @Summary		Update a waste translation
// @Tags		Wastes
// @Security	BearerAuth
// @Param		id		path	string						true	"Translation ID"
// @Param		request	body	TranslationUpdateRequest	true	"Fields to change"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Language already translated"
// @Router		/waste-translations/{id} [PATCH]
func (h *Handler) UpdateTranslation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TranslationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	t, err := h.svc.UpdateTranslation(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, t)
}

// ListTranslations
// @Summary		List waste translations
// @Tags		Wastes
// @Param		waste_id		query	string	false	"Waste ID"
// @Param		language_code	query	string	false	"ru, en or kk"
// @Success		200	{object}	map[string]interface{}
// @Router		/waste-translations [GET]
func (h *Handler) ListTranslations(c *gin.Context) {
	q, page, err := pagination.Parse(c.Request.URL.Query(), translationListOptions)
	if err != nil {
		response.FromError(c, err)
		return
	}
	items, total, err := h.svc.ListTranslations(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.List(c, items, page.Meta(total))
}

// GetTranslation
// @Summary		Get a waste translation
// @Tags		Wastes
// @Param		id	path	string	true	"Translation ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/waste-translations/{id} [GET]
func (h *Handler) GetTranslation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTranslation(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, t)
}

// DeleteTranslation
// @Summary		Delete a waste translation
// @Tags		Wastes
// @Security	BearerAuth
// @Param		id	path	string	true	"Translation ID"
// @Success		204
// @Router		/waste-translations/{id} [DELETE]
func (h *Handler) DeleteTranslation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTranslation(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.FromError(c, apperr.Validation("id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
