package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envlocker/envlocker/dao/model"
)

func TestCreateProjectBootstrapsEnvironments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	adminID := createMember(t, s, "admin@test.dev")

	detail, err := s.CreateProject(ctx, adminID, "acme", "Acme", "shared infra", []string{"infra"})
	require.NoError(t, err)
	assert.Equal(t, "acme", detail.Slug)
	assert.Equal(t, []string{"infra"}, detail.Tags)

	var envs []model.Environment
	require.NoError(t, s.DB().Where("project_id = ?", detail.ID).Find(&envs).Error)
	require.Len(t, envs, 3)

	restricted := map[model.EnvName]bool{}
	for _, env := range envs {
		restricted[env.Name] = env.Restricted
	}
	assert.False(t, restricted[model.EnvLocal])
	assert.False(t, restricted[model.EnvDev])
	assert.True(t, restricted[model.EnvProd])

	// creating a project does not make the creator a member
	assert.False(t, s.HasProjectAccess(ctx, adminID, "acme"))

	_, err = s.CreateProject(ctx, adminID, "acme", "Other", "", nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateProjectReplacesTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	adminID := createMember(t, s, "admin@test.dev")
	detail, err := s.CreateProject(ctx, adminID, "acme", "Acme", "", []string{"a", "b"})
	require.NoError(t, err)

	name := "Acme Renamed"
	updated, err := s.UpdateProject(ctx, detail.ID, ProjectUpdate{
		Name:    &name,
		Tags:    []string{"c"},
		HasTags: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", updated.Name)
	assert.Equal(t, []string{"c"}, updated.Tags)

	_, err = s.UpdateProject(ctx, 9999, ProjectUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	projectID, _ := s.ResolveProject(ctx, slug)

	secret := addSecret(t, s, ownerID, slug, model.EnvDev, "API_KEY", "v1")
	_, err := s.CreateInvite(ctx, ownerID, slug, 0, 0)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, projectID))

	assert.Zero(t, countRows(t, s, &model.Project{}, "id = ?", projectID))
	assert.Zero(t, countRows(t, s, &model.Environment{}, "project_id = ?", projectID))
	assert.Zero(t, countRows(t, s, &model.ProjectMember{}, "project_id = ?", projectID))
	assert.Zero(t, countRows(t, s, &model.ProjectInvite{}, "project_id = ?", projectID))
	assert.Zero(t, countRows(t, s, &model.EnvironmentAccess{}, "user_id = ?", ownerID))
	assert.Zero(t, countRows(t, s, &model.Secret{}, "id = ?", secret.ID))
}

func TestAddMemberUpsertsRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")
	projectID, _ := s.ResolveProject(ctx, slug)

	member, err := s.AddMember(ctx, projectID, memberID, model.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, member.Role)

	// adding again promotes in place instead of duplicating
	member, err = s.AddMember(ctx, projectID, memberID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, member.Role)
	assert.Equal(t, int64(1), countRows(t, s, &model.ProjectMember{},
		"project_id = ? AND user_id = ?", projectID, memberID))

	_, err = s.AddMember(ctx, projectID, 9999, model.RoleViewer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProjectsForUserCountsReadableKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	memberID := createMember(t, s, "member@test.dev")
	projectID, _ := s.ResolveProject(ctx, slug)
	_, err := s.AddMember(ctx, projectID, memberID, model.RoleMember)
	require.NoError(t, err)

	addSecret(t, s, ownerID, slug, model.EnvDev, "DEV_KEY", "v")
	addSecret(t, s, ownerID, slug, model.EnvProd, "PROD_KEY", "v")

	ownerView, err := s.ListProjectsForUser(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, ownerView, 1)
	assert.Equal(t, 2, ownerView[0].KeyCount)
	assert.True(t, ownerView[0].ProdAccess)

	memberView, err := s.ListProjectsForUser(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, memberView, 1)
	assert.Equal(t, 1, memberView[0].KeyCount, "unreadable prod keys are not counted")
	assert.False(t, memberView[0].ProdAccess)
}

func TestManagedProjectListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerID, slug := registerPersonal(t, s, "owner@test.dev")
	adminID := createMember(t, s, "admin@test.dev")
	_, err := s.CreateProject(ctx, adminID, "unowned", "Unowned", "", nil)
	require.NoError(t, err)

	all, err := s.ListAllProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	managed, err := s.ListManagedProjects(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, slug, managed[0].Slug)

	projectID, _ := s.ResolveProject(ctx, slug)
	assert.True(t, s.CanManageProject(ctx, ownerID, projectID))
	assert.False(t, s.CanManageProject(ctx, adminID, projectID))
}
