package user

import "ecos/internal/domain"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Account is the profile view of a user: the row with images and accrual
// history plus the point balance.
type Account struct {
	*domain.User
	TotalPoints int64 `json:"total_points"`
}
