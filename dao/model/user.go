package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Email        string            `gorm:"uniqueIndex;type:varchar(255);not null"`
	DisplayName  string            `gorm:"type:varchar(255);not null"`
	Role         Role              `gorm:"type:varchar(32);not null"`
	PasswordHash string            `gorm:"type:varchar(500);not null"`
	IsActive     bool              `gorm:"not null;default:true"`
	Preferences  datatypes.JSONMap `gorm:"not null"`
	Memberships  []ProjectMember   `gorm:"constraint:OnDelete:CASCADE"`
}

// RefreshToken stores only the SHA-256 hash of an issued refresh token.
// Rotation revokes the old row and inserts a new one.
type RefreshToken struct {
	gorm.Model
	UserID    uint       `gorm:"index;not null"`
	TokenHash string     `gorm:"uniqueIndex;type:varchar(128);not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time `gorm:""`
}
