package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ecos/internal/pkg/jwt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

func setupProvider(t *testing.T) *LocalProvider {
	t.Helper()
	db, err := gorm.Open(gormsqlite.New(gormsqlite.Config{
		DriverName: "sqlite",
		DSN:        filepath.Join(t.TempDir(), "identity.db"),
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	p := NewLocalProvider(db, jwt.New("test-secret", time.Hour, "ecos")).WithCost(bcrypt.MinCost)
	require.NoError(t, p.Migrate())
	return p
}

func TestLocalProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	p := setupProvider(t)

	id, err := p.CreateUser(ctx, NewIdentity{Email: "Eco@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = p.CreateUser(ctx, NewIdentity{Email: "eco@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrIdentityExists)

	_, err = p.Authenticate(ctx, "eco@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, p.SetEmailVerified(ctx, id, true))
	tok, err := p.Authenticate(ctx, "ECO@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	who, err := p.VerifyToken(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, who.ID)
	assert.True(t, who.EmailVerified)
	assert.Equal(t, RoleUser, who.Role)

	require.NoError(t, p.DeleteUser(ctx, id))
	require.NoError(t, p.DeleteUser(ctx, id))
	_, err = p.Authenticate(ctx, "eco@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, p.SetEmailVerified(ctx, uuid.New(), true), ErrIdentityNotFound)
	_, err = p.VerifyToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsBadSubject(t *testing.T) {
	p := setupProvider(t)
	sign := func(subject string) string {
		tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwt.Claims{
			Role: RoleModerator,
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject:   subject,
				Issuer:    "ecos",
				ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return tok
	}

	for _, subject := range []string{"admin", "", uuid.Nil.String()} {
		_, err := p.VerifyToken(context.Background(), sign(subject))
		assert.ErrorIs(t, err, ErrInvalidToken, subject)
	}

	id := uuid.New()
	who, err := p.VerifyToken(context.Background(), sign(id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, who.ID)
}
