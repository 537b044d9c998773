package handler

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/envlocker/envlocker/dao"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/pkg/crypto"
	"github.com/envlocker/envlocker/pkg/ratelimit"
)

func newTestConfig(t *testing.T) *RegisterConfig {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dao.Migrate(db))

	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	vault, err := crypto.NewVault(key)
	require.NoError(t, err)

	return &RegisterConfig{
		Store:         store.New(db, vault),
		InviteLimiter: ratelimit.New(20, time.Minute),
	}
}

func TestManagersRegister(t *testing.T) {
	gin.SetMode(gin.DebugMode)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := "auth:\n  accessTokenSecret: test-access-secret\n  refreshTokenSecret: test-refresh-secret\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))
	t.Setenv("ENVLOCKER_DEBUG_CONFIG_PATH", configPath)
	conf := newTestConfig(t)

	names := make(map[string]bool)
	engine := gin.New()
	public := engine.Group("/v1")
	protected := engine.Group("/v1")
	admin := engine.Group("/v1/admin")

	for _, register := range Registers {
		mgr := register(conf)
		require.NotEmpty(t, mgr.GetName())
		assert.False(t, names[mgr.GetName()], "duplicate manager name %s", mgr.GetName())
		names[mgr.GetName()] = true

		mgr.RegisterPublic(public)
		mgr.RegisterProtected(protected)
		mgr.RegisterAdmin(admin)
	}

	for _, name := range []string{
		"auth", "projects", "manage", "organizations",
		"secrets", "transfer", "audit", "users",
	} {
		assert.True(t, names[name], "manager %s not registered", name)
	}
	assert.NotEmpty(t, engine.Routes())
}
