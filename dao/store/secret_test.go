package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envlocker/envlocker/dao/model"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", "***"},
		{"ab", "***"},
		{"abc", "***"},
		{"abcdef", "******"},
		{"abcdefg", "abcd...defg"},
		{"sk_live_very_long_token", "sk_l...oken"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskValue(tt.value), "value %q", tt.value)
	}
}

func TestCreateSecretMasksAndEncrypts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")

	created := addSecret(t, s, userID, slug, model.EnvDev, "API_KEY", "sk_live_very_long_token")
	assert.Equal(t, "sk_l...oken", created.ValueMasked)

	var row model.Secret
	require.NoError(t, s.DB().First(&row, created.ID).Error)
	assert.NotContains(t, string(row.ValueEncrypted), "sk_live")

	reveal, err := s.RevealSecret(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_very_long_token", reveal.Value)
}

func TestCreateSecretDuplicateKeyConflicts(t *testing.T) {
	s := newTestStore(t)
	userID, slug := registerPersonal(t, s, "owner@test.dev")

	addSecret(t, s, userID, slug, model.EnvDev, "API_KEY", "v1")
	_, err := s.CreateSecret(context.Background(), userID, slug, SecretCreate{
		Name:        "Duplicate",
		Type:        model.SecretTypeKey,
		Environment: model.EnvDev,
		KeyName:     "API_KEY",
		Value:       "v2",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// same key in another environment is fine
	addSecret(t, s, userID, slug, model.EnvLocal, "API_KEY", "v2")
}

func TestUpdateSecretSnapshotsPreviousValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")
	created := addSecret(t, s, userID, slug, model.EnvDev, "API_KEY", "v1")

	newValue := "v2"
	_, err := s.UpdateSecret(ctx, userID, created.ID, SecretPatch{Value: &newValue})
	require.NoError(t, err)

	var row model.Secret
	require.NoError(t, s.DB().First(&row, created.ID).Error)
	assert.Equal(t, 2, row.KeyVersion)

	var versions []model.SecretVersion
	require.NoError(t, s.DB().Where("secret_id = ?", created.ID).Find(&versions).Error)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	prev, err := s.Vault().Decrypt(versions[0].ValueEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "v1", prev)
}

func TestUpdateSecretMetadataOnlyKeepsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")
	created := addSecret(t, s, userID, slug, model.EnvDev, "API_KEY", "v1")

	name := "Renamed"
	_, err := s.UpdateSecret(ctx, userID, created.ID, SecretPatch{Name: &name})
	require.NoError(t, err)

	var row model.Secret
	require.NoError(t, s.DB().First(&row, created.ID).Error)
	assert.Equal(t, 1, row.KeyVersion)

	count, err := s.SecretVersionCount(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateSecretReplacesTagsAndNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")
	created, err := s.CreateSecret(ctx, userID, slug, SecretCreate{
		Name:        "Tagged",
		Type:        model.SecretTypeKey,
		Environment: model.EnvDev,
		KeyName:     "TAGGED",
		Value:       "v",
		Tags:        []string{"billing", "backend"},
		Notes:       "initial",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"billing", "backend"}, created.Tags)
	assert.Equal(t, "initial", created.Notes)

	notes := "rotated quarterly"
	updated, err := s.UpdateSecret(ctx, userID, created.ID, SecretPatch{
		Tags:    []string{"backend"},
		HasTags: true,
		Notes:   &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, updated.Tags)
	assert.Equal(t, "rotated quarterly", updated.Notes)

	// clearing tags wholesale
	updated, err = s.UpdateSecret(ctx, userID, created.ID, SecretPatch{Tags: []string{}, HasTags: true})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
}

func TestSecretAccessIsNotFoundForOutsiders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	strangerID := createMember(t, s, "stranger@test.dev")
	created := addSecret(t, s, ownerID, slug, model.EnvDev, "API_KEY", "v1")

	// a secret the caller cannot see is indistinguishable from a missing one
	_, err := s.GetSecret(ctx, strangerID, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RevealSecret(ctx, strangerID, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSecret(ctx, ownerID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSecretsHidesUnreadableProd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")
	projectID, _ := s.ResolveProject(ctx, slug)
	_, err := s.AddMember(ctx, projectID, memberID, model.RoleMember)
	require.NoError(t, err)

	addSecret(t, s, ownerID, slug, model.EnvDev, "DEV_KEY", "v1")
	addSecret(t, s, ownerID, slug, model.EnvProd, "PROD_KEY", "v1")

	ownerList, err := s.ListSecrets(ctx, ownerID, SecretFilter{ProjectSlug: slug})
	require.NoError(t, err)
	assert.Len(t, ownerList, 2)

	memberList, err := s.ListSecrets(ctx, memberID, SecretFilter{ProjectSlug: slug})
	require.NoError(t, err)
	require.Len(t, memberList, 1)
	assert.Equal(t, "DEV_KEY", memberList[0].KeyName)

	require.NoError(t, s.SetEnvironmentAccess(ctx, projectID, memberID, model.EnvProd, true, false))
	memberList, err = s.ListSecrets(ctx, memberID, SecretFilter{ProjectSlug: slug})
	require.NoError(t, err)
	assert.Len(t, memberList, 2)
}

func TestListSecretsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")

	_, err := s.CreateSecret(ctx, userID, slug, SecretCreate{
		Name: "Stripe Key", Provider: "Stripe", Type: model.SecretTypeKey,
		Environment: model.EnvDev, KeyName: "STRIPE_KEY", Value: "v",
		Tags: []string{"billing"},
	})
	require.NoError(t, err)
	_, err = s.CreateSecret(ctx, userID, slug, SecretCreate{
		Name: "OpenAI Token", Provider: "OpenAI", Type: model.SecretTypeToken,
		Environment: model.EnvLocal, KeyName: "OPENAI_TOKEN", Value: "v",
	})
	require.NoError(t, err)

	byProvider, err := s.ListSecrets(ctx, userID, SecretFilter{ProjectSlug: slug, Provider: "Stripe"})
	require.NoError(t, err)
	require.Len(t, byProvider, 1)
	assert.Equal(t, "STRIPE_KEY", byProvider[0].KeyName)

	byTag, err := s.ListSecrets(ctx, userID, SecretFilter{ProjectSlug: slug, Tag: "billing"})
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	byQuery, err := s.ListSecrets(ctx, userID, SecretFilter{Query: "openai"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "OPENAI_TOKEN", byQuery[0].KeyName)

	byType, err := s.ListSecrets(ctx, userID, SecretFilter{ProjectSlug: slug, Type: model.SecretTypeToken})
	require.NoError(t, err)
	assert.Len(t, byType, 1)
}

func TestDeleteSecretRemovesDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")
	created, err := s.CreateSecret(ctx, userID, slug, SecretCreate{
		Name: "Doomed", Type: model.SecretTypeKey,
		Environment: model.EnvDev, KeyName: "DOOMED", Value: "v1",
		Tags: []string{"tmp"}, Notes: "to delete",
	})
	require.NoError(t, err)
	v2 := "v2"
	_, err = s.UpdateSecret(ctx, userID, created.ID, SecretPatch{Value: &v2})
	require.NoError(t, err)

	deleted, err := s.DeleteSecret(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, slug, deleted.ProjectSlug)
	assert.Equal(t, "Doomed", deleted.Name)

	for _, count := range []int64{
		countRows(t, s, &model.Secret{}, "id = ?", created.ID),
		countRows(t, s, &model.SecretTag{}, "secret_id = ?", created.ID),
		countRows(t, s, &model.SecretNote{}, "secret_id = ?", created.ID),
		countRows(t, s, &model.SecretVersion{}, "secret_id = ?", created.ID),
	} {
		assert.Zero(t, count)
	}

	// the key name is reusable afterwards
	addSecret(t, s, userID, slug, model.EnvDev, "DOOMED", "fresh")
}

func countRows(t *testing.T, s *Store, m any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.DB().Model(m).Where(query, args...).Count(&count).Error)
	return count
}

func TestFindSecretByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID, slug := registerPersonal(t, s, "owner@test.dev")
	strangerID := createMember(t, s, "stranger@test.dev")
	created := addSecret(t, s, userID, slug, model.EnvDev, "API_KEY", "v1")

	found, err := s.FindSecretByKey(ctx, userID, slug, model.EnvDev, "API_KEY")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := s.FindSecretByKey(ctx, userID, slug, model.EnvDev, "OTHER")
	require.NoError(t, err)
	assert.Nil(t, missing)

	hidden, err := s.FindSecretByKey(ctx, strangerID, slug, model.EnvDev, "API_KEY")
	require.NoError(t, err)
	assert.Nil(t, hidden)
}
