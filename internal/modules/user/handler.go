package user

import (
	"net/http"

	"ecos/internal/middleware"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/response"
	"ecos/internal/upload"

	"github.com/gin-gonic/gin"
)

// ImageField is the multipart field carrying the profile image.
const ImageField = "image"

type Handler struct {
	svc      *Service
	maxBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	if public != nil {
		public.POST("/users/sign-up", h.Register)
		public.POST("/auth/login", h.Login)
		public.GET("/users/verify-email/:token", h.VerifyEmail)
		public.POST("/users/verify-email/resend", h.ResendVerification)
	}
	if protected != nil {
		protected.GET("/users/profile", h.GetProfile)
		protected.PATCH("/users/profile", h.UpdateProfile)
	}
}

// Register
// @Summary		Register user
// @Description	Creates the account and sends a verification link.
// @Tags		Users
// @Param		request	body	RegisterRequest	true	"Email and password"
// @Success		201	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Email taken"
// @Failure		422	{object}	map[string]interface{}
// @Router		/users/sign-up [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"user":    u,
		"message": "User created successfully. Verification link sent to your email.",
	})
}

// Login
// @Summary		Log in
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"Credentials"
// @Success		200	{object}	map[string]interface{}	"access_token, token_type, expires_in"
// @Failure		401	{object}	map[string]interface{}
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	tok, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, tok)
}

// VerifyEmail
// @Summary		Verify email
// @Tags		Users
// @Param		token	path	string	true	"Token from the verification link"
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}	"Unknown token"
// @Failure		409	{object}	map[string]interface{}	"Already verified"
// @Router		/users/verify-email/{token} [GET]
func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "The email has been verified"})
}

// ResendVerification
// @Summary		Resend verification link
// @Tags		Users
// @Param		request	body	ResendRequest	true	"Email"
// @Success		202	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}	"Already verified"
// @Router		/users/verify-email/resend [POST]
func (h *Handler) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperr.New(apperr.KindValidation, "invalid request body", err))
		return
	}
	if err := h.svc.ResendVerification(c.Request.Context(), req); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"message": "Verification link sent"})
}

// GetProfile
// @Summary		Get user profile
// @Tags		Users
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Router		/users/profile [GET]
func (h *Handler) GetProfile(c *gin.Context) {
	acc, err := h.svc.GetAccount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, acc)
}

// UpdateProfile uploads a profile image.
// @Summary		Update user profile
// @Tags		Users
// @Security	BearerAuth
// @Accept		multipart/form-data
// @Param		image	formData	file	false	"JPEG or PNG"
// @Success		200	{object}	map[string]interface{}
// @Failure		413	{object}	map[string]interface{}
// @Failure		422	{object}	map[string]interface{}
// @Router		/users/profile [PATCH]
func (h *Handler) UpdateProfile(c *gin.Context) {
	form, err := upload.Parse(c.Request, h.maxBytes, ImageField)
	if err != nil {
		response.FromError(c, upload.AsAppError(err))
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	if len(form.Files) == 0 {
		acc, err := h.svc.GetAccount(ctx, userID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.Success(c, http.StatusOK, acc)
		return
	}
	acc, err := h.svc.UploadAvatar(ctx, userID, form.Files[0])
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, acc)
}
