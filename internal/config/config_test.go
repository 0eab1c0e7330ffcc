package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "8080", c.Port)
	require.Equal(t, 24*time.Hour, c.TokenTTL)
	require.Equal(t, "change-me", c.JwtSecret)
}

func TestNew_PostgresDSNFromParts(t *testing.T) {
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_USER", "svc")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "accounts")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5432 user=svc dbname=accounts sslmode=disable password=pw", c.PostgresDSN)
}

func TestNew_PostgresDSNDirect(t *testing.T) {
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@h:5432/d?sslmode=disable")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.PostgresDSN)
}

func TestNew_UnsupportedAdapter(t *testing.T) {
	t.Setenv("DB_ADAPTER", "mongodb")

	_, err := New()
	require.Error(t, err)
}

func TestNew_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("ENV", "production")

	_, err := New()
	require.Error(t, err, "the placeholder secret must not survive into production")

	t.Setenv("JWT_SECRET", "a-real-secret-of-sufficient-len")
	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "a-real-secret-of-sufficient-len", c.JwtSecret)
}

func TestNew_TokenTTL(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("TOKEN_TTL", "15m")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, c.TokenTTL)
}
