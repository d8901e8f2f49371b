package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecos/internal/pkg/jwt"
	"ecos/internal/sqlerr"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type credential struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"not null;uniqueIndex"`
	PasswordHash  string    `gorm:"not null"`
	EmailVerified bool      `gorm:"not null;default:false"`
	Role          string    `gorm:"type:varchar(32);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (credential) TableName() string { return "identities" }

// LocalProvider is a self-hosted Provider: bcrypt password hashes in its own
// table, HS256 access tokens. It writes through its own handle, never through
// an application unit of work.
type LocalProvider struct {
	db   *gorm.DB
	jwt  *jwt.Service
	cost int
}

func NewLocalProvider(db *gorm.DB, tokens *jwt.Service) *LocalProvider {
	return &LocalProvider{db: db, jwt: tokens, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost; tests use bcrypt.MinCost.
func (p *LocalProvider) WithCost(cost int) *LocalProvider {
	p.cost = cost
	return p
}

func (p *LocalProvider) Migrate() error {
	return p.db.AutoMigrate(&credential{})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) CreateUser(ctx context.Context, in NewIdentity) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	c := credential{
		ID:           uuid.New(),
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := p.db.WithContext(ctx).Create(&c).Error; err != nil {
		if sqlerr.IsUniqueViolation(err) {
			return uuid.Nil, ErrIdentityExists
		}
		return uuid.Nil, fmt.Errorf("create identity: %w", err)
	}
	return c.ID, nil
}

func (p *LocalProvider) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	res := p.db.WithContext(ctx).Model(&credential{}).Where("id = ?", id).Update("email_verified", verified)
	if res.Error != nil {
		return fmt.Errorf("update identity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (p *LocalProvider) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := p.db.WithContext(ctx).Where("id = ?", id).Delete(&credential{}).Error; err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Token, error) {
	var c credential
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	access, err := p.jwt.GenerateToken(c.ID, c.Email, c.EmailVerified, c.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: access, TokenType: "Bearer", ExpiresIn: int64(p.jwt.TTL().Seconds())}, nil
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.jwt.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id, err := claims.UserID()
	if err != nil || id == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: id, Email: claims.Email, EmailVerified: claims.EmailVerified, Role: claims.Role}, nil
}
