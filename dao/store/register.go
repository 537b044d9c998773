package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
)

// AccountType selects the workspace bootstrapped at registration.
type AccountType string

const (
	AccountPersonal  AccountType = "personal"
	AccountOrgCreate AccountType = "organization_create"
	AccountOrgJoin   AccountType = "organization_join"
)

type (
	RegisterRequest struct {
		FirstName        string
		LastName         string
		Email            string
		Password         string
		AccountType      AccountType
		OrganizationName string
		InviteCode       string
	}

	RegisterOut struct {
		UserID         uint       `json:"userId"`
		Name           string     `json:"name"`
		Email          string     `json:"email"`
		Role           model.Role `json:"role"`
		ProjectID      string     `json:"projectId"`
		ProjectName    string     `json:"projectName"`
		MembershipRole model.Role `json:"membershipRole"`
		// InviteCode is only present for organization_create accounts.
		InviteCode string `json:"inviteCode,omitempty"`
	}
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and squeezes everything non-alphanumeric into
// single hyphens.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "project"
	}
	return slug
}

// uniqueSlug appends a short random suffix when the base slug is taken.
func (s *Store) uniqueSlug(base string) (string, error) {
	slug := base
	for {
		var count int64
		if err := s.db.Model(&model.Project{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	}
}

// ValidatePassword enforces the password policy: at least 8 characters with
// a lowercase letter, an uppercase letter, a digit and a symbol.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return fmt.Errorf("%w: password needs lowercase, uppercase, digit and symbol characters", ErrValidation)
	}
	return nil
}

func (s *Store) bootstrapProject(creatorID uint, name, description string) (*model.Project, error) {
	slug, err := s.uniqueSlug(Slugify(name))
	if err != nil {
		return nil, err
	}
	project := model.Project{
		Slug:      slug,
		Name:      name,
		CreatedBy: &creatorID,
	}
	if description != "" {
		project.Description = &description
	}
	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}
	if err := s.createDefaultEnvironments(project.ID); err != nil {
		return nil, err
	}
	return &project, nil
}

// grantOwner makes the user an admin member with read and export rights on
// every environment, the restricted ones included.
func (s *Store) grantOwner(projectID, userID uint) error {
	member := model.ProjectMember{ProjectID: projectID, UserID: userID, Role: model.RoleAdmin}
	if err := s.db.Create(&member).Error; err != nil {
		return err
	}
	var envs []model.Environment
	if err := s.db.Where("project_id = ?", projectID).Find(&envs).Error; err != nil {
		return err
	}
	for _, env := range envs {
		grant := model.EnvironmentAccess{
			EnvironmentID: env.ID,
			UserID:        userID,
			CanRead:       true,
			CanExport:     true,
		}
		if err := s.db.Create(&grant).Error; err != nil {
			return err
		}
	}
	return nil
}

// Register creates the account and its workspace atomically. Personal
// accounts get a private project, organization creators additionally get an
// invite code to hand out, and joiners redeem a code into viewer membership.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (RegisterOut, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if firstName == "" || lastName == "" {
		return RegisterOut{}, fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return RegisterOut{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if err := ValidatePassword(req.Password); err != nil {
		return RegisterOut{}, err
	}
	switch req.AccountType {
	case AccountPersonal:
	case AccountOrgCreate:
		if strings.TrimSpace(req.OrganizationName) == "" {
			return RegisterOut{}, fmt.Errorf("%w: organization name is required", ErrValidation)
		}
	case AccountOrgJoin:
		if strings.TrimSpace(req.InviteCode) == "" {
			return RegisterOut{}, fmt.Errorf("%w: invite code is required", ErrValidation)
		}
	default:
		return RegisterOut{}, fmt.Errorf("%w: unknown account type %q", ErrValidation, req.AccountType)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterOut{}, err
	}

	var out RegisterOut
	err = s.transaction(ctx, func(tx *Store) error {
		var count int64
		if err := tx.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		}

		// Joiners get the restrictive platform role; everything beyond that
		// is decided by project membership, not the platform role.
		globalRole := model.RoleMember
		if req.AccountType == AccountOrgJoin {
			globalRole = model.RoleViewer
		}

		displayName := firstName + " " + lastName
		user := model.User{
			Email:        email,
			DisplayName:  displayName,
			Role:         globalRole,
			PasswordHash: string(hash),
			IsActive:     true,
		}
		if err := tx.db.Create(&user).Error; err != nil {
			return err
		}

		out = RegisterOut{
			UserID: user.ID,
			Name:   displayName,
			Email:  email,
			Role:   user.Role,
		}

		switch req.AccountType {
		case AccountPersonal:
			project, err := tx.bootstrapProject(user.ID, displayName+" Workspace", "Personal workspace")
			if err != nil {
				return err
			}
			if err := tx.grantOwner(project.ID, user.ID); err != nil {
				return err
			}
			out.ProjectID = project.Slug
			out.ProjectName = project.Name
			out.MembershipRole = model.RoleAdmin

		case AccountOrgCreate:
			orgName := strings.TrimSpace(req.OrganizationName)
			project, err := tx.bootstrapProject(user.ID, orgName, "Organization workspace")
			if err != nil {
				return err
			}
			if err := tx.grantOwner(project.ID, user.ID); err != nil {
				return err
			}
			invite, code, err := tx.mintInvite(project.ID, user.ID, DefaultInviteExpiryHours, 0)
			if err != nil {
				return err
			}
			if err := tx.addAudit(&project.ID, &user.ID, model.AuditInviteCreated, "invite", &invite.ID, datatypes.JSONMap{
				"projectName": project.Name,
			}); err != nil {
				return err
			}
			out.ProjectID = project.Slug
			out.ProjectName = project.Name
			out.MembershipRole = model.RoleAdmin
			out.InviteCode = code

		case AccountOrgJoin:
			project, err := tx.redeemInvite(user.ID, req.InviteCode)
			if err != nil {
				return err
			}
			if err := tx.addAudit(&project.ID, &user.ID, model.AuditMemberJoined, "project", &project.ID, datatypes.JSONMap{
				"projectName": project.Name,
				"email":       email,
			}); err != nil {
				return err
			}
			out.ProjectID = project.Slug
			out.ProjectName = project.Name
			out.MembershipRole = model.RoleViewer
		}
		return nil
	})
	if err != nil {
		return RegisterOut{}, err
	}
	return out, nil
}
