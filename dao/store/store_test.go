package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/envlocker/envlocker/dao"
	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/pkg/crypto"
)

const testPassword = "Sup3r$ecret"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dao.Migrate(db))

	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	vault, err := crypto.NewVault(key)
	require.NoError(t, err)

	return New(db, vault)
}

// registerPersonal bootstraps a user with their own workspace and returns
// both IDs.
func registerPersonal(t *testing.T, s *Store, email string) (userID uint, slug string) {
	t.Helper()
	out, err := s.Register(context.Background(), RegisterRequest{
		FirstName:   "Test",
		LastName:    "User",
		Email:       email,
		Password:    testPassword,
		AccountType: AccountPersonal,
	})
	require.NoError(t, err)
	return out.UserID, out.ProjectID
}

// createMember provisions an account without any membership.
func createMember(t *testing.T, s *Store, email string) uint {
	t.Helper()
	user, err := s.CreateUser(context.Background(), email, "Plain User", testPassword, model.RoleMember)
	require.NoError(t, err)
	return user.ID
}

func addSecret(t *testing.T, s *Store, userID uint, slug string, env model.EnvName, key, value string) SecretOut {
	t.Helper()
	created, err := s.CreateSecret(context.Background(), userID, slug, SecretCreate{
		Name:        fmt.Sprintf("%s secret", key),
		Provider:    "Test",
		Type:        model.SecretTypeKey,
		Environment: env,
		KeyName:     key,
		Value:       value,
	})
	require.NoError(t, err)
	return created
}
