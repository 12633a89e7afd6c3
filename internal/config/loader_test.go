package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "7")
	t.Setenv("SERVER_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, 7, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 2*time.Second, cfg.DB.QueryTimeout)

	ec, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, 7, ec.Lockout.Threshold)
	assert.Equal(t, 3, ec.PasswordReset.Limit)
	assert.Equal(t, "authcore", ec.JWT.Issuer)
}

func TestLoadYAMLAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("AUTH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("AUTH_JWT_SECRET"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTH_JWT_SECRET="+testSecret+"\n"), 0o600))
	yaml := "auth:\n  reset_limit: 5\nredis:\n  addr: redis:6379\n"
	path := filepath.Join(dir, "authd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Auth.ResetLimit)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
}

func TestEngineRejectsShortSecret(t *testing.T) {
	cfg := &Config{Auth: Auth{JWTSecret: base64.StdEncoding.EncodeToString([]byte("short"))}}
	_, err := cfg.Engine()
	require.Error(t, err)
}
