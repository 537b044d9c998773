package store

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/envlocker/envlocker/dao/model"
)

type (
	MemberOut struct {
		UserID      uint       `json:"userId"`
		Email       string     `json:"email"`
		DisplayName string     `json:"displayName"`
		Role        model.Role `json:"role"`
	}

	ProjectDetail struct {
		ID          uint        `json:"id"`
		Slug        string      `json:"slug"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Tags        []string    `json:"tags"`
		Members     []MemberOut `json:"members"`
	}

	// ProjectSummary is the member-facing listing: key counts exclude prod
	// secrets the user cannot read.
	ProjectSummary struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Tags       []string `json:"tags"`
		KeyCount   int      `json:"keyCount"`
		ProdAccess bool     `json:"prodAccess"`
	}

	ProjectUpdate struct {
		Name        *string
		Description *string
		Tags        []string
		HasTags     bool
	}
)

func (s *Store) projectTags(ctx context.Context, projectID uint) []string {
	var tags []model.ProjectTag
	if err := s.conn(ctx).Where("project_id = ?", projectID).Find(&tags).Error; err != nil {
		return nil
	}
	return lo.Map(tags, func(t model.ProjectTag, _ int) string { return t.Tag })
}

func (s *Store) projectDetail(ctx context.Context, project *model.Project) ProjectDetail {
	var members []model.ProjectMember
	s.conn(ctx).Where("project_id = ?", project.ID).Find(&members)

	out := make([]MemberOut, 0, len(members))
	for _, member := range members {
		var user model.User
		if err := s.conn(ctx).First(&user, member.UserID).Error; err != nil {
			continue
		}
		out = append(out, MemberOut{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        member.Role,
		})
	}

	description := ""
	if project.Description != nil {
		description = *project.Description
	}
	return ProjectDetail{
		ID:          project.ID,
		Slug:        project.Slug,
		Name:        project.Name,
		Description: description,
		Tags:        s.projectTags(ctx, project.ID),
		Members:     out,
	}
}

// ListProjectsForUser returns summaries for every project the user is a
// member of, with visible key counts and the prod read flag.
func (s *Store) ListProjectsForUser(ctx context.Context, userID uint) ([]ProjectSummary, error) {
	var projects []model.Project
	err := s.conn(ctx).Model(&model.Project{}).
		Select("projects.*").
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.name ASC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	out := make([]ProjectSummary, 0, len(projects))
	for i := range projects {
		project := &projects[i]
		prodAccess := s.HasEnvironmentReadAccess(ctx, userID, project.Slug, model.EnvProd)

		type countRow struct {
			EnvName model.EnvName
			N       int
		}
		var counts []countRow
		err := s.conn(ctx).Model(&model.Secret{}).
			Select("environments.name AS env_name, COUNT(secrets.id) AS n").
			Joins("JOIN environments ON environments.id = secrets.environment_id").
			Where("secrets.project_id = ?", project.ID).
			Group("environments.name").
			Scan(&counts).Error
		if err != nil {
			return nil, err
		}
		keyCount := 0
		for _, c := range counts {
			if c.EnvName == model.EnvProd && !prodAccess {
				continue
			}
			keyCount += c.N
		}

		out = append(out, ProjectSummary{
			ID:         project.Slug,
			Name:       project.Name,
			Tags:       s.projectTags(ctx, project.ID),
			KeyCount:   keyCount,
			ProdAccess: prodAccess,
		})
	}
	return out, nil
}

// ListAllProjects returns full details for every project (platform admin).
func (s *Store) ListAllProjects(ctx context.Context) ([]ProjectDetail, error) {
	var projects []model.Project
	if err := s.conn(ctx).Order("name ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	out := make([]ProjectDetail, 0, len(projects))
	for i := range projects {
		out = append(out, s.projectDetail(ctx, &projects[i]))
	}
	return out, nil
}

// ListManagedProjects returns details for the projects where the user holds
// a project-admin membership.
func (s *Store) ListManagedProjects(ctx context.Context, userID uint) ([]ProjectDetail, error) {
	var projects []model.Project
	err := s.conn(ctx).Model(&model.Project{}).
		Select("projects.*").
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ? AND project_members.role = ?", userID, model.RoleAdmin).
		Order("projects.name ASC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	out := make([]ProjectDetail, 0, len(projects))
	for i := range projects {
		out = append(out, s.projectDetail(ctx, &projects[i]))
	}
	return out, nil
}

// CanManageProject is true when the user is a project admin of the project
// addressed by database id.
func (s *Store) CanManageProject(ctx context.Context, userID, projectID uint) bool {
	var member model.ProjectMember
	err := s.conn(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	return err == nil && member.Role == model.RoleAdmin
}

// createDefaultEnvironments bootstraps the fixed local/dev/prod set, with
// prod restricted. Must run inside the project-creation transaction.
func (s *Store) createDefaultEnvironments(projectID uint) error {
	for _, name := range model.EnvNames {
		env := model.Environment{
			ProjectID:  projectID,
			Name:       name,
			Restricted: name == model.EnvProd,
		}
		if err := s.db.Create(&env).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateProject creates the project and its three environments atomically.
// A taken slug is a conflict. The creator is not made a member here; the
// registration flow and the member endpoints own membership.
func (s *Store) CreateProject(ctx context.Context, creatorID uint, slug, name, description string, tags []string) (ProjectDetail, error) {
	var count int64
	s.conn(ctx).Model(&model.Project{}).Where("slug = ?", slug).Count(&count)
	if count > 0 {
		return ProjectDetail{}, fmt.Errorf("%w: slug %q already taken", ErrConflict, slug)
	}

	project := model.Project{
		Slug:        slug,
		Name:        name,
		Description: &description,
		CreatedBy:   &creatorID,
	}
	err := s.transaction(ctx, func(tx *Store) error {
		if err := tx.db.Create(&project).Error; err != nil {
			return err
		}
		if err := tx.createDefaultEnvironments(project.ID); err != nil {
			return err
		}
		for _, tag := range tags {
			if err := tx.db.Create(&model.ProjectTag{ProjectID: project.ID, Tag: tag}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ProjectDetail{}, err
	}
	return s.projectDetail(ctx, &project), nil
}

// UpdateProject replaces name, description and the tag set.
func (s *Store) UpdateProject(ctx context.Context, projectID uint, update ProjectUpdate) (ProjectDetail, error) {
	var project model.Project
	if err := s.conn(ctx).First(&project, projectID).Error; err != nil {
		return ProjectDetail{}, ErrNotFound
	}

	err := s.transaction(ctx, func(tx *Store) error {
		if update.Name != nil {
			project.Name = *update.Name
		}
		if update.Description != nil {
			project.Description = update.Description
		}
		if err := tx.db.Save(&project).Error; err != nil {
			return err
		}
		if update.HasTags {
			if err := tx.db.Unscoped().Where("project_id = ?", project.ID).Delete(&model.ProjectTag{}).Error; err != nil {
				return err
			}
			for _, tag := range update.Tags {
				if err := tx.db.Create(&model.ProjectTag{ProjectID: project.ID, Tag: tag}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return ProjectDetail{}, err
	}
	return s.projectDetail(ctx, &project), nil
}

// DeleteProject removes the project and every dependent row: environments,
// secrets with their history, memberships, grants, tags and invites.
func (s *Store) DeleteProject(ctx context.Context, projectID uint) error {
	var project model.Project
	if err := s.conn(ctx).First(&project, projectID).Error; err != nil {
		return ErrNotFound
	}

	return s.transaction(ctx, func(tx *Store) error {
		var secrets []model.Secret
		if err := tx.db.Where("project_id = ?", projectID).Find(&secrets).Error; err != nil {
			return err
		}
		for i := range secrets {
			if err := tx.deleteSecretRows(secrets[i].ID); err != nil {
				return err
			}
		}

		var envs []model.Environment
		if err := tx.db.Where("project_id = ?", projectID).Find(&envs).Error; err != nil {
			return err
		}
		for _, env := range envs {
			if err := tx.db.Unscoped().Where("environment_id = ?", env.ID).Delete(&model.EnvironmentAccess{}).Error; err != nil {
				return err
			}
		}
		if err := tx.db.Unscoped().Where("project_id = ?", projectID).Delete(&model.Environment{}).Error; err != nil {
			return err
		}
		if err := tx.db.Unscoped().Where("project_id = ?", projectID).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.db.Unscoped().Where("project_id = ?", projectID).Delete(&model.ProjectTag{}).Error; err != nil {
			return err
		}
		if err := tx.db.Unscoped().Where("project_id = ?", projectID).Delete(&model.ProjectInvite{}).Error; err != nil {
			return err
		}
		// Audit rows outlive the project; detach them instead of deleting.
		if err := tx.db.Model(&model.AuditEvent{}).Where("project_id = ?", projectID).
			Update("project_id", nil).Error; err != nil {
			return err
		}
		return tx.db.Unscoped().Delete(&model.Project{}, projectID).Error
	})
}

// AddMember upserts the membership (re-adding changes the role) and grants
// default read+export on every non-restricted environment that has no grant
// yet. Restricted environments are never auto-granted.
func (s *Store) AddMember(ctx context.Context, projectID, userID uint, role model.Role) (MemberOut, error) {
	var project model.Project
	if err := s.conn(ctx).First(&project, projectID).Error; err != nil {
		return MemberOut{}, ErrNotFound
	}
	var user model.User
	if err := s.conn(ctx).First(&user, userID).Error; err != nil {
		return MemberOut{}, ErrNotFound
	}

	err := s.transaction(ctx, func(tx *Store) error {
		var member model.ProjectMember
		err := tx.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		if err == nil {
			member.Role = role
			if err := tx.db.Save(&member).Error; err != nil {
				return err
			}
		} else {
			member = model.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
			if err := tx.db.Create(&member).Error; err != nil {
				return err
			}
		}

		var envs []model.Environment
		if err := tx.db.Where("project_id = ?", projectID).Find(&envs).Error; err != nil {
			return err
		}
		for _, env := range envs {
			if env.Restricted {
				continue
			}
			var existing model.EnvironmentAccess
			err := tx.db.Where("environment_id = ? AND user_id = ?", env.ID, userID).First(&existing).Error
			if err == nil {
				continue
			}
			grant := model.EnvironmentAccess{
				EnvironmentID: env.ID,
				UserID:        userID,
				CanRead:       true,
				CanExport:     true,
			}
			if err := tx.db.Create(&grant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MemberOut{}, err
	}

	return MemberOut{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        role,
	}, nil
}

// RemoveMember deletes the membership and every environment grant the user
// held across the project, leaving no orphaned grants.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID uint) error {
	var member model.ProjectMember
	err := s.conn(ctx).Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if err != nil {
		return ErrNotFound
	}

	return s.transaction(ctx, func(tx *Store) error {
		var envs []model.Environment
		if err := tx.db.Where("project_id = ?", projectID).Find(&envs).Error; err != nil {
			return err
		}
		for _, env := range envs {
			if err := tx.db.Unscoped().
				Where("environment_id = ? AND user_id = ?", env.ID, userID).
				Delete(&model.EnvironmentAccess{}).Error; err != nil {
				return err
			}
		}
		return tx.db.Unscoped().Delete(&model.ProjectMember{}, member.ID).Error
	})
}

// SetEnvironmentAccess upserts the specific grant. Callers are expected to
// have enforced admin authorization already.
func (s *Store) SetEnvironmentAccess(ctx context.Context, projectID, userID uint, env model.EnvName, canRead, canExport bool) error {
	envID, ok := s.resolveEnvironmentID(ctx, projectID, env)
	if !ok {
		return ErrNotFound
	}

	return s.transaction(ctx, func(tx *Store) error {
		var access model.EnvironmentAccess
		err := tx.db.Where("environment_id = ? AND user_id = ?", envID, userID).First(&access).Error
		if err == nil {
			access.CanRead = canRead
			access.CanExport = canExport
			return tx.db.Save(&access).Error
		}
		access = model.EnvironmentAccess{
			EnvironmentID: envID,
			UserID:        userID,
			CanRead:       canRead,
			CanExport:     canExport,
		}
		return tx.db.Create(&access).Error
	})
}
