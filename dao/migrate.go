package dao

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/envlocker/envlocker/dao/model"
)

// Migrate brings the schema up to date. The initial schema is created in one
// step; later structural changes get their own migration entries.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{})

	m.InitSchema(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&model.User{},
			&model.RefreshToken{},
			&model.Project{},
			&model.ProjectTag{},
			&model.ProjectMember{},
			&model.Environment{},
			&model.EnvironmentAccess{},
			&model.ProjectInvite{},
			&model.Secret{},
			&model.SecretVersion{},
			&model.SecretTag{},
			&model.SecretNote{},
			&model.AuditEvent{},
		)
	})

	return m.Migrate()
}
