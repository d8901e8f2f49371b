package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.EqualValues(t, 10*1024*1024+1024, cfg.MaxUploadBytes)
	assert.Equal(t, 10, cfg.ApprovalPoints)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "reception-point", cfg.Buckets.ReceptionPoint)
	assert.Equal(t, "http://localhost:8080", cfg.AppBaseURL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APPROVAL_POINTS", "25")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("S3_ACCESS_KEY", "minio")
	t.Setenv("S3_SECRET_KEY", "minio123")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("APP_BASE_URL", "https://ecos.example/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.ApprovalPoints)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "https://ecos.example", cfg.AppBaseURL)
}

func TestFromEnvValidation(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("JWT_TTL", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("s3 without keys", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		t.Setenv("S3_ACCESS_KEY", "")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("prod with default secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "ftp")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
