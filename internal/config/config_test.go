package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := FromViper(New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, 72*time.Hour, c.TokenExpire)
	assert.Equal(t, "disk", c.StorageDriver)
	assert.Equal(t, int64(5*1024*1024), c.MaxPhotoBytes)
	assert.Equal(t, 500*time.Millisecond, c.NotifierFlush)
	assert.Equal(t, "postgres://postgres:@localhost:5432/campus", c.DatabaseURL)
	assert.Equal(t, []string{"http://localhost:5173"}, c.AllowedOrigins)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STORAGE_DRIVER", "S3")

	c, err := FromViper(New())
	require.NoError(t, err)

	assert.Equal(t, "9999", c.Port)
	assert.Zero(t, c.TokenExpire)
	assert.Equal(t, "postgres://u:p@db:5432/x", c.DatabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, "s3", c.StorageDriver)
}

func TestInvalidValues(t *testing.T) {
	t.Run("token expire", func(t *testing.T) {
		t.Setenv("TOKEN_EXPIRE_TIME", "soon")
		_, err := FromViper(New())
		assert.Error(t, err)
	})
	t.Run("storage driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "ftp")
		_, err := FromViper(New())
		assert.Error(t, err)
	})
}
