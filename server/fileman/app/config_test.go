package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"filevault/server/fileman/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FILEMAN_PORT", "")
	t.Setenv("FILEMAN_QUOTA_BYTES", "")
	t.Setenv("FILEMAN_RECONCILE_INTERVAL", "")

	cfg := LoadConfig()
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, domain.DefaultQuotaBytes, cfg.QuotaBytes)
	assert.Equal(t, 50, cfg.MaxUploadMB)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, "files", cfg.ObjectPrefix)
	assert.True(t, cfg.PostgresMigrate)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FILEMAN_PORT", "9090")
	t.Setenv("FILEMAN_QUOTA_BYTES", "1048576")
	t.Setenv("FILEMAN_RECONCILE_INTERVAL", "30s")
	t.Setenv("FILEMAN_THUMBNAILS", "false")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg := LoadConfig()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(1048576), cfg.QuotaBytes)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.False(t, cfg.Thumbnails)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}
