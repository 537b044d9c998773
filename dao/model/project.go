package model

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	gorm.Model
	Slug        string  `gorm:"uniqueIndex;type:varchar(100);not null"`
	Name        string  `gorm:"type:varchar(255);not null"`
	Description *string `gorm:"type:varchar(500)"`
	CreatedBy   *uint   `gorm:"index"` // nulled when the creator is deleted

	Environments []Environment   `gorm:"constraint:OnDelete:CASCADE"`
	Members      []ProjectMember `gorm:"constraint:OnDelete:CASCADE"`
	Tags         []ProjectTag    `gorm:"constraint:OnDelete:CASCADE"`
	Invites      []ProjectInvite `gorm:"constraint:OnDelete:CASCADE"`
}

type ProjectTag struct {
	gorm.Model
	ProjectID uint   `gorm:"uniqueIndex:uq_project_tag;not null"`
	Tag       string `gorm:"uniqueIndex:uq_project_tag;type:varchar(100);not null"`
}

type ProjectMember struct {
	gorm.Model
	ProjectID uint `gorm:"uniqueIndex:uq_project_member;not null"`
	UserID    uint `gorm:"uniqueIndex:uq_project_member;not null"`
	Role      Role `gorm:"type:varchar(32);not null"`
}

// Environment belongs to exactly one project and is named local, dev or prod.
// Restricted environments (prod) require an explicit EnvironmentAccess grant
// even for project members.
type Environment struct {
	gorm.Model
	ProjectID  uint    `gorm:"uniqueIndex:uq_project_environment;not null"`
	Name       EnvName `gorm:"uniqueIndex:uq_project_environment;type:varchar(16);not null"`
	Restricted bool    `gorm:"not null;default:false"`

	Secrets []Secret            `gorm:"constraint:OnDelete:CASCADE"`
	Access  []EnvironmentAccess `gorm:"constraint:OnDelete:CASCADE"`
}

// EnvironmentAccess is the per (environment, user) grant. It is consulted for
// read only when the environment is restricted; export always requires it.
type EnvironmentAccess struct {
	gorm.Model
	EnvironmentID uint `gorm:"uniqueIndex:uq_environment_access;not null"`
	UserID        uint `gorm:"uniqueIndex:uq_environment_access;not null"`
	CanRead       bool `gorm:"not null;default:true"`
	CanExport     bool `gorm:"not null;default:false"`
}

// ProjectInvite stores only the hash of the invite code, never the plaintext.
// Rotation deactivates all active invites of the project before minting a new
// one; inactive rows stay for audit history.
type ProjectInvite struct {
	gorm.Model
	ProjectID  uint       `gorm:"index;not null"`
	CodeHash   string     `gorm:"uniqueIndex;type:varchar(128);not null"`
	CreatedBy  *uint      `gorm:"index"`
	IsActive   bool       `gorm:"not null;default:true"`
	MaxUses    int        `gorm:"not null;default:0"` // 0 = unlimited
	UsedCount  int        `gorm:"not null;default:0"`
	ExpiresAt  *time.Time `gorm:""` // nil = never expires
	LastUsedAt *time.Time `gorm:""`
}
