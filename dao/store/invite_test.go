package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envlocker/envlocker/dao/model"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := generateInviteCode()
		require.NoError(t, err)
		assert.Len(t, code, inviteLength)
		for _, r := range code {
			assert.Contains(t, inviteCharset, string(r))
		}
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}

func TestCreateInviteRequiresProjectAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	outsiderID := createMember(t, s, "outsider@test.dev")

	_, err := s.CreateInvite(ctx, outsiderID, slug, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	// a plain member is not enough either
	projectID, _ := s.ResolveProject(ctx, slug)
	_, err = s.AddMember(ctx, projectID, outsiderID, model.RoleMember)
	require.NoError(t, err)
	_, err = s.CreateInvite(ctx, outsiderID, slug, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	invite, err := s.CreateInvite(ctx, ownerID, slug, 24, 5)
	require.NoError(t, err)
	assert.Len(t, invite.Code, inviteLength)
	assert.True(t, invite.IsActive)
	assert.Equal(t, 5, invite.MaxUses)
	require.NotNil(t, invite.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *invite.ExpiresAt, time.Minute)

	// the plaintext is never stored
	var row model.ProjectInvite
	require.NoError(t, s.DB().First(&row, invite.ID).Error)
	assert.NotEqual(t, invite.Code, row.CodeHash)
	assert.Equal(t, hashInviteCode(invite.Code), row.CodeHash)
}

func TestCreateInviteWithoutExpiry(t *testing.T) {
	s := newTestStore(t)
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	invite, err := s.CreateInvite(context.Background(), ownerID, slug, -1, 0)
	require.NoError(t, err)
	assert.Nil(t, invite.ExpiresAt)
	assert.Zero(t, invite.MaxUses)
}

func TestRotateInviteDeactivatesPreviousCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	first, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)
	second, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)

	rotated, err := s.RotateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, rotated.Code)

	var active []model.ProjectInvite
	require.NoError(t, s.DB().Where("is_active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, rotated.ID, active[0].ID)

	// the dead codes no longer redeem
	joiner := createMember(t, s, "joiner@test.dev")
	_, err = s.redeemInvite(joiner, second.Code)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRevokeInviteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	invite, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)

	require.NoError(t, s.RevokeInvite(ctx, ownerID, slug, invite.ID))
	require.NoError(t, s.RevokeInvite(ctx, ownerID, slug, invite.ID))
	assert.ErrorIs(t, s.RevokeInvite(ctx, ownerID, slug, 9999), ErrNotFound)
}

func TestRedeemInviteGrantsViewerAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	joinerID := createMember(t, s, "joiner@test.dev")

	invite, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)

	project, err := s.redeemInvite(joinerID, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, slug, project.Slug)

	role, ok := s.ProjectRole(ctx, joinerID, slug)
	require.True(t, ok)
	assert.Equal(t, model.RoleViewer, role)

	assert.True(t, s.HasEnvironmentReadAccess(ctx, joinerID, slug, model.EnvDev))
	assert.False(t, s.HasEnvironmentReadAccess(ctx, joinerID, slug, model.EnvProd))
	assert.False(t, s.HasEnvironmentExportAccess(ctx, joinerID, slug, model.EnvDev))

	var row model.ProjectInvite
	require.NoError(t, s.DB().First(&row, invite.ID).Error)
	assert.Equal(t, 1, row.UsedCount)
	assert.NotNil(t, row.LastUsedAt)

	// redeeming again as an existing member succeeds without another use
	_, err = s.redeemInvite(joinerID, invite.Code)
	require.NoError(t, err)
	require.NoError(t, s.DB().First(&row, invite.ID).Error)
	assert.Equal(t, 1, row.UsedCount)
}

func TestRedeemInviteChecksLimits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")

	t.Run("bad code", func(t *testing.T) {
		joiner := createMember(t, s, "a@test.dev")
		_, err := s.redeemInvite(joiner, strings.Repeat("x", inviteLength))
		assert.ErrorIs(t, err, ErrValidation)
		_, err = s.redeemInvite(joiner, "short")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("expired", func(t *testing.T) {
		invite, err := s.CreateInvite(ctx, ownerID, slug, 1, 0)
		require.NoError(t, err)
		past := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, s.DB().Model(&model.ProjectInvite{}).
			Where("id = ?", invite.ID).Update("expires_at", past).Error)

		joiner := createMember(t, s, "b@test.dev")
		_, err = s.redeemInvite(joiner, invite.Code)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("usage limit", func(t *testing.T) {
		invite, err := s.CreateInvite(ctx, ownerID, slug, 0, 1)
		require.NoError(t, err)

		first := createMember(t, s, "c@test.dev")
		_, err = s.redeemInvite(first, invite.Code)
		require.NoError(t, err)

		second := createMember(t, s, "d@test.dev")
		_, err = s.redeemInvite(second, invite.Code)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestListInvitesAndManagedOrganizations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")

	created, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)

	invites, err := s.ListInvites(ctx, ownerID, slug)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, created.ID, invites[0].ID)
	assert.Empty(t, invites[0].Code, "listing never exposes codes")

	_, err = s.ListInvites(ctx, memberID, slug)
	assert.ErrorIs(t, err, ErrForbidden)

	projectID, _ := s.ResolveProject(ctx, slug)
	_, err = s.AddMember(ctx, projectID, memberID, model.RoleMember)
	require.NoError(t, err)

	orgs, err := s.ListManagedOrganizations(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, slug, orgs[0].ProjectID)
	assert.Equal(t, 2, orgs[0].MemberCount)

	orgs, err = s.ListManagedOrganizations(ctx, memberID)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}
