package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit action tags.
const (
	AuditSecretCreated  = "secret_created"
	AuditSecretUpdated  = "secret_updated"
	AuditSecretDeleted  = "secret_deleted"
	AuditSecretCopied   = "secret_copied"
	AuditSecretExported = "secret_exported"
	AuditInviteCreated  = "invite_created"
	AuditInviteRotated  = "invite_rotated"
	AuditInviteRevoked  = "invite_revoked"
	AuditMemberJoined   = "member_joined"
)

// AuditEvent is append-only: the application never updates or deletes rows.
type AuditEvent struct {
	gorm.Model
	ProjectID   *uint             `gorm:"index"` // nulled when the project is deleted
	ActorUserID *uint             `gorm:"index"` // nulled when the actor is deleted
	Action      string            `gorm:"index;type:varchar(100);not null"`
	TargetType  string            `gorm:"type:varchar(100);not null"`
	TargetID    *uint             `gorm:""`
	Meta        datatypes.JSONMap `gorm:""`
}
