package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envlocker/envlocker/dao/model"
)

func TestExportSecretsReturnsPlaintextSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	addSecret(t, s, ownerID, slug, model.EnvDev, "Z_KEY", "z-value")
	addSecret(t, s, ownerID, slug, model.EnvDev, "A_KEY", "a-value")
	addSecret(t, s, ownerID, slug, model.EnvProd, "PROD_KEY", "p-value")

	rows, err := s.ExportSecrets(ctx, ownerID, slug, model.EnvDev, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A_KEY", rows[0].KeyName)
	assert.Equal(t, "a-value", rows[0].Value)
	assert.Equal(t, "Z_KEY", rows[1].KeyName)
}

func TestExportSecretsTagFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	_, err := s.CreateSecret(ctx, ownerID, slug, SecretCreate{
		Name: "Billing", Type: model.SecretTypeKey, Environment: model.EnvDev,
		KeyName: "BILLING_KEY", Value: "v", Tags: []string{"billing"},
	})
	require.NoError(t, err)
	addSecret(t, s, ownerID, slug, model.EnvDev, "OTHER_KEY", "v")

	rows, err := s.ExportSecrets(ctx, ownerID, slug, model.EnvDev, "billing")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BILLING_KEY", rows[0].KeyName)
}

func TestExportSecretsWithoutAccessIsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")
	addSecret(t, s, ownerID, slug, model.EnvProd, "PROD_KEY", "v")

	projectID, _ := s.ResolveProject(ctx, slug)
	_, err := s.AddMember(ctx, projectID, memberID, model.RoleMember)
	require.NoError(t, err)

	rows, err := s.ExportSecrets(ctx, memberID, slug, model.EnvProd, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExportAllEnvironmentsSkipsUnauthorized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")
	projectID, _ := s.ResolveProject(ctx, slug)
	_, err := s.AddMember(ctx, projectID, memberID, model.RoleMember)
	require.NoError(t, err)

	addSecret(t, s, ownerID, slug, model.EnvLocal, "LOCAL_KEY", "v")
	addSecret(t, s, ownerID, slug, model.EnvDev, "DEV_KEY", "v")
	addSecret(t, s, ownerID, slug, model.EnvProd, "PROD_KEY", "v")

	// owner exports everything
	grouped, err := s.ExportAllEnvironments(ctx, ownerID, slug, "")
	require.NoError(t, err)
	assert.Len(t, grouped, 3)

	// member lacks prod access entirely, so prod is skipped without error
	grouped, err = s.ExportAllEnvironments(ctx, memberID, slug, "")
	require.NoError(t, err)
	assert.Len(t, grouped, 2)
	assert.Contains(t, grouped, model.EnvLocal)
	assert.Contains(t, grouped, model.EnvDev)
	assert.NotContains(t, grouped, model.EnvProd)

	// read-only prod access is still not enough to export it
	require.NoError(t, s.SetEnvironmentAccess(ctx, projectID, memberID, model.EnvProd, true, false))
	grouped, err = s.ExportAllEnvironments(ctx, memberID, slug, "")
	require.NoError(t, err)
	assert.NotContains(t, grouped, model.EnvProd)

	require.NoError(t, s.SetEnvironmentAccess(ctx, projectID, memberID, model.EnvProd, true, true))
	grouped, err = s.ExportAllEnvironments(ctx, memberID, slug, "")
	require.NoError(t, err)
	assert.Contains(t, grouped, model.EnvProd)
}

func TestExportAllEnvironmentsOmitsEmptyOnes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	addSecret(t, s, ownerID, slug, model.EnvDev, "DEV_KEY", "v")

	grouped, err := s.ExportAllEnvironments(ctx, ownerID, slug, "")
	require.NoError(t, err)
	assert.Len(t, grouped, 1)
	assert.Contains(t, grouped, model.EnvDev)
}
