package app

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/gate"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.GateSettleWait)
	assert.Equal(t, 5*time.Second, cfg.AdminStatusTimeout)
	assert.Equal(t, time.Minute, cfg.AdminStatusMaxAge)
	assert.Equal(t, 500, cfg.AuditRecentLimit)
	assert.Equal(t, time.Minute, cfg.AuditCacheTTL)
	assert.False(t, cfg.AuditAsync)
	assert.Equal(t, gate.Paths{SignIn: "/auth/login", Landing: "/", Admin: "/admin"}, cfg.GatePaths())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUDIT_ASYNC", "true")
	t.Setenv("AUDIT_RECENT_LIMIT", "50")
	t.Setenv("ADMIN_PATH", "/console")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.AuditAsync)
	assert.Equal(t, 50, cfg.AuditRecentLimit)
	assert.Equal(t, "/console", cfg.GatePaths().Admin)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("AUDIT_RECENT_LIMIT", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	assert.Equal(t, slog.LevelWarn, parseLevel(&Config{LogLevel: "warning"}))
	assert.Equal(t, slog.LevelError, parseLevel(&Config{LogLevel: "error"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(&Config{LogLevel: "loud"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
}
