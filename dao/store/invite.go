package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/envlocker/envlocker/dao/model"
)

const (
	inviteCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()-_=+"
	inviteLength  = 12

	// DefaultInviteExpiryHours applies when callers do not specify an expiry.
	DefaultInviteExpiryHours = 720
)

type (
	InviteOut struct {
		ID         uint       `json:"id"`
		ProjectID  uint       `json:"projectId"`
		IsActive   bool       `json:"isActive"`
		MaxUses    int        `json:"maxUses"`
		UsedCount  int        `json:"usedCount"`
		ExpiresAt  *time.Time `json:"expiresAt"`
		LastUsedAt *time.Time `json:"lastUsedAt"`
		CreatedAt  time.Time  `json:"createdAt"`
		// Code carries the plaintext only at creation or rotation time and is
		// never retrievable afterwards.
		Code string `json:"code,omitempty"`
	}

	OrganizationSummary struct {
		ProjectID   string `json:"projectId"`
		ProjectName string `json:"projectName"`
		MemberCount int    `json:"memberCount"`
	}
)

func generateInviteCode() (string, error) {
	var b strings.Builder
	for i := 0; i < inviteLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCharset))))
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteCharset[n.Int64()])
	}
	return b.String(), nil
}

func hashInviteCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func inviteOut(invite *model.ProjectInvite) InviteOut {
	return InviteOut{
		ID:         invite.ID,
		ProjectID:  invite.ProjectID,
		IsActive:   invite.IsActive,
		MaxUses:    invite.MaxUses,
		UsedCount:  invite.UsedCount,
		ExpiresAt:  invite.ExpiresAt,
		LastUsedAt: invite.LastUsedAt,
		CreatedAt:  invite.CreatedAt,
	}
}

// mintInvite generates a fresh code, retrying on the (practically impossible)
// hash collision, and inserts the invite. Must run inside a transaction so
// the collision check and the insert see one snapshot.
func (s *Store) mintInvite(projectID, createdBy uint, expiresInHours, maxUses int) (*model.ProjectInvite, string, error) {
	var code, codeHash string
	for {
		var err error
		code, err = generateInviteCode()
		if err != nil {
			return nil, "", err
		}
		codeHash = hashInviteCode(code)

		var count int64
		if err := s.db.Model(&model.ProjectInvite{}).Where("code_hash = ?", codeHash).Count(&count).Error; err != nil {
			return nil, "", err
		}
		if count == 0 {
			break
		}
	}

	var expiresAt *time.Time
	if expiresInHours > 0 {
		t := time.Now().UTC().Add(time.Duration(expiresInHours) * time.Hour)
		expiresAt = &t
	}
	if maxUses < 0 {
		maxUses = 0
	}

	invite := model.ProjectInvite{
		ProjectID: projectID,
		CodeHash:  codeHash,
		CreatedBy: &createdBy,
		IsActive:  true,
		MaxUses:   maxUses,
		UsedCount: 0,
		ExpiresAt: expiresAt,
	}
	if err := s.db.Create(&invite).Error; err != nil {
		return nil, "", err
	}
	return &invite, code, nil
}

// ListManagedOrganizations lists the projects the user administers, with
// member counts, for the organization console.
func (s *Store) ListManagedOrganizations(ctx context.Context, userID uint) ([]OrganizationSummary, error) {
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

	out := make([]OrganizationSummary, 0, len(projects))
	for _, project := range projects {
		var members int64
		if err := s.conn(ctx).Model(&model.ProjectMember{}).
			Where("project_id = ?", project.ID).Count(&members).Error; err != nil {
			return nil, err
		}
		out = append(out, OrganizationSummary{
			ProjectID:   project.Slug,
			ProjectName: project.Name,
			MemberCount: int(members),
		})
	}
	return out, nil
}

// ListInvites returns the invite history of a project. Requires project-admin
// membership; a global admin without it is refused.
func (s *Store) ListInvites(ctx context.Context, userID uint, slug string) ([]InviteOut, error) {
	if !s.IsProjectAdmin(ctx, userID, slug) {
		return nil, ErrForbidden
	}
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return []InviteOut{}, nil
	}

	var invites []model.ProjectInvite
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(100).
		Find(&invites).Error
	if err != nil {
		return nil, err
	}

	out := make([]InviteOut, 0, len(invites))
	for i := range invites {
		out = append(out, inviteOut(&invites[i]))
	}
	return out, nil
}

// CreateInvite mints a new invite for a project admin. maxUses 0 means
// unlimited; expiresInHours <= 0 means never expiring.
func (s *Store) CreateInvite(ctx context.Context, userID uint, slug string, expiresInHours, maxUses int) (InviteOut, error) {
	if !s.IsProjectAdmin(ctx, userID, slug) {
		return InviteOut{}, ErrForbidden
	}
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return InviteOut{}, ErrNotFound
	}

	var out InviteOut
	err := s.transaction(ctx, func(tx *Store) error {
		invite, code, err := tx.mintInvite(projectID, userID, expiresInHours, maxUses)
		if err != nil {
			return err
		}
		out = inviteOut(invite)
		out.Code = code
		return nil
	})
	if err != nil {
		return InviteOut{}, err
	}
	return out, nil
}

// RotateInvite deactivates every active invite of the project and mints a
// replacement, all in one transaction: afterwards exactly one invite is
// active and all prior codes are permanently dead.
func (s *Store) RotateInvite(ctx context.Context, userID uint, slug string, expiresInHours, maxUses int) (InviteOut, error) {
	if !s.IsProjectAdmin(ctx, userID, slug) {
		return InviteOut{}, ErrForbidden
	}
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return InviteOut{}, ErrNotFound
	}

	var out InviteOut
	err := s.transaction(ctx, func(tx *Store) error {
		if err := tx.db.Model(&model.ProjectInvite{}).
			Where("project_id = ? AND is_active = ?", projectID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		invite, code, err := tx.mintInvite(projectID, userID, expiresInHours, maxUses)
		if err != nil {
			return err
		}
		out = inviteOut(invite)
		out.Code = code
		return nil
	})
	if err != nil {
		return InviteOut{}, err
	}
	return out, nil
}

// RevokeInvite deactivates one invite. Revoking an already-inactive invite is
// an idempotent success; a missing invite is not found.
func (s *Store) RevokeInvite(ctx context.Context, userID uint, slug string, inviteID uint) error {
	if !s.IsProjectAdmin(ctx, userID, slug) {
		return ErrForbidden
	}
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return ErrNotFound
	}

	var invite model.ProjectInvite
	err := s.conn(ctx).
		Where("id = ? AND project_id = ?", inviteID, projectID).
		First(&invite).Error
	if err != nil {
		return ErrNotFound
	}

	invite.IsActive = false
	return s.conn(ctx).Save(&invite).Error
}

// redeemInvite validates a code and joins the user to the invite's project as
// a viewer with read access to non-restricted environments only. A user who
// is already a member gets an idempotent success without a usage increment.
// Must run inside the registration transaction.
func (s *Store) redeemInvite(userID uint, code string) (*model.Project, error) {
	code = strings.TrimSpace(code)
	if len(code) != inviteLength {
		return nil, fmt.Errorf("%w: invite code is invalid", ErrValidation)
	}

	var invite model.ProjectInvite
	err := s.db.
		Where("code_hash = ? AND is_active = ?", hashInviteCode(code), true).
		First(&invite).Error
	if err != nil {
		return nil, fmt.Errorf("%w: invite code is invalid", ErrValidation)
	}

	now := time.Now().UTC()
	if invite.ExpiresAt != nil && !invite.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: invite code is expired", ErrValidation)
	}
	if invite.MaxUses > 0 && invite.UsedCount >= invite.MaxUses {
		return nil, fmt.Errorf("%w: invite code usage limit reached", ErrValidation)
	}

	var project model.Project
	if err := s.db.First(&project, invite.ProjectID).Error; err != nil {
		return nil, ErrNotFound
	}

	var existing model.ProjectMember
	err = s.db.Where("project_id = ? AND user_id = ?", invite.ProjectID, userID).First(&existing).Error
	if err == nil {
		return &project, nil
	}

	member := model.ProjectMember{ProjectID: invite.ProjectID, UserID: userID, Role: model.RoleViewer}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, err
	}

	var envs []model.Environment
	if err := s.db.Where("project_id = ?", invite.ProjectID).Find(&envs).Error; err != nil {
		return nil, err
	}
	for _, env := range envs {
		if env.Restricted {
			continue
		}
		grant := model.EnvironmentAccess{
			EnvironmentID: env.ID,
			UserID:        userID,
			CanRead:       true,
			CanExport:     false,
		}
		if err := s.db.Create(&grant).Error; err != nil {
			return nil, err
		}
	}

	invite.UsedCount++
	invite.LastUsedAt = &now
	if err := s.db.Save(&invite).Error; err != nil {
		return nil, err
	}
	return &project, nil
}
