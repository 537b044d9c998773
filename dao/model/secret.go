package model

import "gorm.io/gorm"

type Secret struct {
	gorm.Model
	ProjectID      uint       `gorm:"index;not null"`
	EnvironmentID  uint       `gorm:"uniqueIndex:uq_environment_key_name;not null"`
	Name           string     `gorm:"type:varchar(255);not null"`
	Provider       string     `gorm:"type:varchar(255);not null"`
	Type           SecretType `gorm:"type:varchar(32);not null"`
	KeyName        string     `gorm:"uniqueIndex:uq_environment_key_name;type:varchar(255);not null"`
	ValueEncrypted []byte     `gorm:"not null"`
	KeyVersion     int        `gorm:"not null;default:1"`
	CreatedBy      *uint      `gorm:"index"`
	UpdatedBy      *uint      `gorm:"index"`

	Versions []SecretVersion `gorm:"constraint:OnDelete:CASCADE"`
	Tags     []SecretTag     `gorm:"constraint:OnDelete:CASCADE"`
	Note     *SecretNote     `gorm:"constraint:OnDelete:CASCADE"`
}

// SecretVersion is an immutable snapshot of the encrypted value a secret held
// before a value update replaced it.
type SecretVersion struct {
	gorm.Model
	SecretID       uint   `gorm:"uniqueIndex:uq_secret_version;not null"`
	Version        int    `gorm:"uniqueIndex:uq_secret_version;not null"`
	ValueEncrypted []byte `gorm:"not null"`
	CreatedBy      *uint  `gorm:"index"`
}

type SecretTag struct {
	gorm.Model
	SecretID uint   `gorm:"uniqueIndex:uq_secret_tag;not null"`
	Tag      string `gorm:"uniqueIndex:uq_secret_tag;type:varchar(100);not null"`
}

// SecretNote holds the single free-text note of a secret.
type SecretNote struct {
	gorm.Model
	SecretID  uint   `gorm:"uniqueIndex;not null"`
	Content   string `gorm:"type:varchar(2000);not null;default:''"`
	UpdatedBy *uint  `gorm:"index"`
}
