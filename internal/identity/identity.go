// Package identity is the client side of the identity provider that owns
// credentials and issues access tokens. The application database only keeps
// a User row keyed by the provider's subject id.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
)

var (
	ErrIdentityExists     = errors.New("identity already exists")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid access token")
)

type Identity struct {
	ID            uuid.UUID
	Email         string
	EmailVerified bool
	Role          string
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type NewIdentity struct {
	Email    string
	Password string
	Role     string
}

// Provider is what the services need from the identity provider.
// DeleteUser of an unknown id succeeds.
type Provider interface {
	CreateUser(ctx context.Context, in NewIdentity) (uuid.UUID, error)
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Authenticate(ctx context.Context, email, password string) (*Token, error)
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
