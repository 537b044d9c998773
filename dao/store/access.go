package store

import (
	"context"

	"github.com/envlocker/envlocker/dao/model"
)

// The access model: pure predicates over current state, no mutation. A
// missing grant, a missing row and an unknown environment name all yield
// false, never an error.

func (s *Store) resolveProjectID(ctx context.Context, slug string) (uint, bool) {
	var project model.Project
	err := s.conn(ctx).Select("id").Where("slug = ?", slug).First(&project).Error
	if err != nil {
		return 0, false
	}
	return project.ID, true
}

// ResolveProject maps a slug to the project's row ID for callers outside
// the store, audit writers mostly.
func (s *Store) ResolveProject(ctx context.Context, slug string) (uint, bool) {
	return s.resolveProjectID(ctx, slug)
}

func (s *Store) resolveProjectSlug(ctx context.Context, projectID uint) string {
	var project model.Project
	if err := s.conn(ctx).Select("slug").First(&project, projectID).Error; err != nil {
		return ""
	}
	return project.Slug
}

func (s *Store) resolveEnvironmentID(ctx context.Context, projectID uint, env model.EnvName) (uint, bool) {
	if _, err := model.ParseEnvName(string(env)); err != nil {
		return 0, false
	}
	var environment model.Environment
	err := s.conn(ctx).Select("id").
		Where("project_id = ? AND name = ?", projectID, env).
		First(&environment).Error
	if err != nil {
		return 0, false
	}
	return environment.ID, true
}

func (s *Store) environmentAccess(ctx context.Context, envID, userID uint) (model.EnvironmentAccess, bool) {
	var access model.EnvironmentAccess
	err := s.conn(ctx).
		Where("environment_id = ? AND user_id = ?", envID, userID).
		First(&access).Error
	return access, err == nil
}

// HasProjectAccess is true iff a membership row exists for (user, project),
// independent of the user's platform role.
func (s *Store) HasProjectAccess(ctx context.Context, userID uint, slug string) bool {
	var count int64
	err := s.conn(ctx).Model(&model.ProjectMember{}).
		Joins("JOIN projects ON projects.id = project_members.project_id").
		Where("project_members.user_id = ? AND projects.slug = ?", userID, slug).
		Count(&count).Error
	return err == nil && count > 0
}

// ProjectRole returns the member's project-scoped role, or false when the
// user is not a member.
func (s *Store) ProjectRole(ctx context.Context, userID uint, slug string) (model.Role, bool) {
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return "", false
	}
	var member model.ProjectMember
	err := s.conn(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		return "", false
	}
	return member.Role, true
}

func (s *Store) IsProjectAdmin(ctx context.Context, userID uint, slug string) bool {
	role, ok := s.ProjectRole(ctx, userID, slug)
	return ok && role == model.RoleAdmin
}

// HasEnvironmentReadAccess: for non-restricted environments membership alone
// grants read; for prod an explicit can_read grant is required even for a
// project admin.
func (s *Store) HasEnvironmentReadAccess(ctx context.Context, userID uint, slug string, env model.EnvName) bool {
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return false
	}
	envID, ok := s.resolveEnvironmentID(ctx, projectID, env)
	if !ok {
		return false
	}

	if env != model.EnvProd {
		return s.HasProjectAccess(ctx, userID, slug)
	}

	access, ok := s.environmentAccess(ctx, envID, userID)
	return ok && access.CanRead
}

// HasEnvironmentExportAccess requires an explicit can_export grant for every
// environment: export is opt-in even outside prod.
func (s *Store) HasEnvironmentExportAccess(ctx context.Context, userID uint, slug string, env model.EnvName) bool {
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return false
	}
	envID, ok := s.resolveEnvironmentID(ctx, projectID, env)
	if !ok {
		return false
	}

	access, ok := s.environmentAccess(ctx, envID, userID)
	return ok && access.CanExport
}

// Assignment summarizes one membership for the profile endpoint.
type Assignment struct {
	ProjectID  string `json:"projectId"`
	ProdAccess bool   `json:"prodAccess"`
}

// Assignments lists the user's projects with their prod read flag.
func (s *Store) Assignments(ctx context.Context, userID uint) ([]Assignment, error) {
	var projects []model.Project
	err := s.conn(ctx).Model(&model.Project{}).
		Select("projects.id, projects.slug").
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(projects))
	for _, project := range projects {
		out = append(out, Assignment{
			ProjectID:  project.Slug,
			ProdAccess: s.HasEnvironmentReadAccess(ctx, userID, project.Slug, model.EnvProd),
		})
	}
	return out, nil
}
