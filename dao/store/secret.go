package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/envlocker/envlocker/dao/model"
)

type (
	// SecretOut is the masked representation returned by every non-reveal
	// operation. The plaintext never leaves the store through this type.
	SecretOut struct {
		ID            uint             `json:"id"`
		ProjectID     string           `json:"projectId"`
		Name          string           `json:"name"`
		Provider      string           `json:"provider"`
		Type          model.SecretType `json:"type"`
		Environment   model.EnvName    `json:"environment"`
		KeyName       string           `json:"keyName"`
		ValueMasked   string           `json:"valueMasked"`
		UpdatedAt     time.Time        `json:"updatedAt"`
		Tags          []string         `json:"tags"`
		Notes         string           `json:"notes"`
		UpdatedByName *string          `json:"updatedByName"`
		LastCopiedAt  *time.Time       `json:"lastCopiedAt"`
	}

	RevealOut struct {
		SecretID uint   `json:"secretId"`
		KeyName  string `json:"keyName"`
		Value    string `json:"value"`
	}

	SecretCreate struct {
		Name        string
		Provider    string
		Type        model.SecretType
		Environment model.EnvName
		KeyName     string
		Value       string
		Tags        []string
		Notes       string
	}

	// SecretPatch updates only the fields that are non-nil. A value change
	// snapshots the previous encrypted value before overwriting it.
	SecretPatch struct {
		Name     *string
		Provider *string
		Type     *model.SecretType
		KeyName  *string
		Value    *string
		Tags     []string // nil = untouched, empty = clear
		HasTags  bool
		Notes    *string
	}

	SecretFilter struct {
		ProjectSlug string
		Env         model.EnvName
		Provider    string
		Tag         string
		Type        model.SecretType
		Query       string
	}

	DeletedSecret struct {
		ID          uint
		ProjectSlug string
		Name        string
	}
)

// MaskValue obfuscates a secret value for display. Cosmetic only, never an
// access-control boundary.
func MaskValue(value string) string {
	runes := []rune(value)
	if len(runes) <= 6 {
		n := len(runes)
		if n < 3 {
			n = 3
		}
		return strings.Repeat("*", n)
	}
	return fmt.Sprintf("%s...%s", string(runes[:4]), string(runes[len(runes)-4:]))
}

func (s *Store) secretTags(ctx context.Context, secretID uint) []string {
	var tags []model.SecretTag
	if err := s.conn(ctx).Where("secret_id = ?", secretID).Find(&tags).Error; err != nil {
		return nil
	}
	return lo.Map(tags, func(t model.SecretTag, _ int) string { return t.Tag })
}

func (s *Store) toSecretOut(ctx context.Context, secret *model.Secret, env model.EnvName) (SecretOut, error) {
	plain, err := s.vault.Decrypt(secret.ValueEncrypted)
	if err != nil {
		return SecretOut{}, err
	}

	var note model.SecretNote
	notes := ""
	if err := s.conn(ctx).Where("secret_id = ?", secret.ID).First(&note).Error; err == nil {
		notes = note.Content
	}

	var updatedByName *string
	if secret.UpdatedBy != nil {
		var user model.User
		if err := s.conn(ctx).Select("display_name").First(&user, *secret.UpdatedBy).Error; err == nil {
			updatedByName = &user.DisplayName
		}
	}

	var lastCopiedAt *time.Time
	var event model.AuditEvent
	err = s.conn(ctx).
		Where("action = ? AND target_id = ?", model.AuditSecretCopied, secret.ID).
		Order("created_at DESC").
		First(&event).Error
	if err == nil {
		lastCopiedAt = &event.CreatedAt
	}

	return SecretOut{
		ID:            secret.ID,
		ProjectID:     s.resolveProjectSlug(ctx, secret.ProjectID),
		Name:          secret.Name,
		Provider:      secret.Provider,
		Type:          secret.Type,
		Environment:   env,
		KeyName:       secret.KeyName,
		ValueMasked:   MaskValue(plain),
		UpdatedAt:     secret.UpdatedAt,
		Tags:          s.secretTags(ctx, secret.ID),
		Notes:         notes,
		UpdatedByName: updatedByName,
		LastCopiedAt:  lastCopiedAt,
	}, nil
}

// ListSecrets returns the masked secrets visible to the user: rows joined
// through membership, minus prod rows the user cannot read. Most recently
// updated first.
func (s *Store) ListSecrets(ctx context.Context, userID uint, filter SecretFilter) ([]SecretOut, error) {
	type secretRow struct {
		model.Secret
		EnvName model.EnvName
		Slug    string
	}

	q := s.conn(ctx).Model(&model.Secret{}).
		Select("secrets.*, environments.name AS env_name, projects.slug AS slug").
		Joins("JOIN projects ON projects.id = secrets.project_id").
		Joins("JOIN project_members ON project_members.project_id = projects.id AND project_members.user_id = ?", userID).
		Joins("JOIN environments ON environments.id = secrets.environment_id")

	if filter.ProjectSlug != "" {
		q = q.Where("projects.slug = ?", filter.ProjectSlug)
	}
	if filter.Env != "" {
		q = q.Where("environments.name = ?", filter.Env)
	}
	if filter.Provider != "" {
		q = q.Where("secrets.provider = ?", filter.Provider)
	}
	if filter.Type != "" {
		q = q.Where("secrets.type = ?", filter.Type)
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		q = q.Where(
			"LOWER(secrets.name) LIKE ? OR LOWER(secrets.provider) LIKE ? OR LOWER(secrets.key_name) LIKE ?",
			like, like, like,
		)
	}

	var rows []secretRow
	if err := q.Order("secrets.updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]SecretOut, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.EnvName == model.EnvProd && !s.HasEnvironmentReadAccess(ctx, userID, row.Slug, model.EnvProd) {
			continue
		}
		if filter.Tag != "" && !lo.Contains(s.secretTags(ctx, row.Secret.ID), filter.Tag) {
			continue
		}
		item, err := s.toSecretOut(ctx, &row.Secret, row.EnvName)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// secretForUser loads a secret iff the user may read it. Access failure and a
// missing row are indistinguishable: both return ErrNotFound.
func (s *Store) secretForUser(ctx context.Context, userID, secretID uint) (*model.Secret, model.EnvName, error) {
	var secret model.Secret
	if err := s.conn(ctx).First(&secret, secretID).Error; err != nil {
		return nil, "", ErrNotFound
	}

	slug := s.resolveProjectSlug(ctx, secret.ProjectID)
	var environment model.Environment
	if err := s.conn(ctx).First(&environment, secret.EnvironmentID).Error; err != nil {
		return nil, "", ErrNotFound
	}

	if !s.HasProjectAccess(ctx, userID, slug) {
		return nil, "", ErrNotFound
	}
	if environment.Name == model.EnvProd && !s.HasEnvironmentReadAccess(ctx, userID, slug, model.EnvProd) {
		return nil, "", ErrNotFound
	}
	return &secret, environment.Name, nil
}

// GetSecret returns the masked view of a single secret.
func (s *Store) GetSecret(ctx context.Context, userID, secretID uint) (SecretOut, error) {
	secret, env, err := s.secretForUser(ctx, userID, secretID)
	if err != nil {
		return SecretOut{}, err
	}
	return s.toSecretOut(ctx, secret, env)
}

// RevealSecret decrypts the value for an authorized caller.
func (s *Store) RevealSecret(ctx context.Context, userID, secretID uint) (RevealOut, error) {
	secret, _, err := s.secretForUser(ctx, userID, secretID)
	if err != nil {
		return RevealOut{}, err
	}
	plain, err := s.vault.Decrypt(secret.ValueEncrypted)
	if err != nil {
		return RevealOut{}, err
	}
	return RevealOut{SecretID: secret.ID, KeyName: secret.KeyName, Value: plain}, nil
}

// CreateSecret inserts a secret at version 1 with its tags and note. Write
// capability is gated at read-level environment access.
func (s *Store) CreateSecret(ctx context.Context, userID uint, slug string, req SecretCreate) (SecretOut, error) {
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return SecretOut{}, fmt.Errorf("%w: project %q", ErrNotFound, slug)
	}
	envID, ok := s.resolveEnvironmentID(ctx, projectID, req.Environment)
	if !ok {
		return SecretOut{}, fmt.Errorf("%w: environment %q", ErrNotFound, req.Environment)
	}
	if !s.HasEnvironmentReadAccess(ctx, userID, slug, req.Environment) {
		return SecretOut{}, ErrForbidden
	}

	blob, err := s.vault.Encrypt(req.Value)
	if err != nil {
		return SecretOut{}, err
	}

	var duplicate int64
	s.conn(ctx).Model(&model.Secret{}).
		Where("environment_id = ? AND key_name = ?", envID, req.KeyName).
		Count(&duplicate)
	if duplicate > 0 {
		return SecretOut{}, fmt.Errorf("%w: key %q already exists in %s", ErrConflict, req.KeyName, req.Environment)
	}

	secret := model.Secret{
		ProjectID:      projectID,
		EnvironmentID:  envID,
		Name:           req.Name,
		Provider:       req.Provider,
		Type:           req.Type,
		KeyName:        req.KeyName,
		ValueEncrypted: blob,
		KeyVersion:     1,
		CreatedBy:      &userID,
		UpdatedBy:      &userID,
	}

	err = s.transaction(ctx, func(tx *Store) error {
		if err := tx.db.Create(&secret).Error; err != nil {
			return err
		}
		for _, tag := range req.Tags {
			if err := tx.db.Create(&model.SecretTag{SecretID: secret.ID, Tag: tag}).Error; err != nil {
				return err
			}
		}
		note := model.SecretNote{SecretID: secret.ID, Content: req.Notes, UpdatedBy: &userID}
		return tx.db.Create(&note).Error
	})
	if err != nil {
		return SecretOut{}, err
	}

	return s.toSecretOut(ctx, &secret, req.Environment)
}

// UpdateSecret applies a partial update. A value change appends exactly one
// SecretVersion snapshotting the pre-update encrypted value and increments
// the version counter by one; other fields leave versioning untouched. Tag
// replacement is full-replace, the note is upserted in place.
func (s *Store) UpdateSecret(ctx context.Context, userID, secretID uint, patch SecretPatch) (SecretOut, error) {
	var env model.EnvName
	var secret *model.Secret

	err := s.transaction(ctx, func(tx *Store) error {
		var err error
		secret, env, err = tx.secretForUser(ctx, userID, secretID)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			secret.Name = *patch.Name
		}
		if patch.Provider != nil {
			secret.Provider = *patch.Provider
		}
		if patch.Type != nil {
			secret.Type = *patch.Type
		}
		if patch.KeyName != nil {
			secret.KeyName = *patch.KeyName
		}

		if patch.Value != nil {
			snapshot := model.SecretVersion{
				SecretID:       secret.ID,
				Version:        secret.KeyVersion,
				ValueEncrypted: secret.ValueEncrypted,
				CreatedBy:      &userID,
			}
			if err := tx.db.Create(&snapshot).Error; err != nil {
				return err
			}
			blob, err := tx.vault.Encrypt(*patch.Value)
			if err != nil {
				return err
			}
			secret.KeyVersion++
			secret.ValueEncrypted = blob
		}

		secret.UpdatedBy = &userID
		if err := tx.db.Save(secret).Error; err != nil {
			return err
		}

		if patch.HasTags {
			if err := tx.db.Unscoped().Where("secret_id = ?", secret.ID).Delete(&model.SecretTag{}).Error; err != nil {
				return err
			}
			for _, tag := range patch.Tags {
				if err := tx.db.Create(&model.SecretTag{SecretID: secret.ID, Tag: tag}).Error; err != nil {
					return err
				}
			}
		}

		if patch.Notes != nil {
			var note model.SecretNote
			err := tx.db.Where("secret_id = ?", secret.ID).First(&note).Error
			if err != nil {
				note = model.SecretNote{SecretID: secret.ID, Content: *patch.Notes, UpdatedBy: &userID}
				return tx.db.Create(&note).Error
			}
			note.Content = *patch.Notes
			note.UpdatedBy = &userID
			return tx.db.Save(&note).Error
		}
		return nil
	})
	if err != nil {
		return SecretOut{}, err
	}

	return s.toSecretOut(ctx, secret, env)
}

// DeleteSecret removes the secret together with its tags, note and version
// history. Requires the same access as reveal.
func (s *Store) DeleteSecret(ctx context.Context, userID, secretID uint) (DeletedSecret, error) {
	secret, _, err := s.secretForUser(ctx, userID, secretID)
	if err != nil {
		return DeletedSecret{}, err
	}
	deleted := DeletedSecret{
		ID:          secret.ID,
		ProjectSlug: s.resolveProjectSlug(ctx, secret.ProjectID),
		Name:        secret.Name,
	}

	err = s.transaction(ctx, func(tx *Store) error {
		return tx.deleteSecretRows(secret.ID)
	})
	if err != nil {
		return DeletedSecret{}, err
	}
	return deleted, nil
}

// deleteSecretRows hard-deletes a secret and its dependents. Must run inside
// a transaction.
func (s *Store) deleteSecretRows(secretID uint) error {
	if err := s.db.Unscoped().Where("secret_id = ?", secretID).Delete(&model.SecretTag{}).Error; err != nil {
		return err
	}
	if err := s.db.Unscoped().Where("secret_id = ?", secretID).Delete(&model.SecretNote{}).Error; err != nil {
		return err
	}
	if err := s.db.Unscoped().Where("secret_id = ?", secretID).Delete(&model.SecretVersion{}).Error; err != nil {
		return err
	}
	return s.db.Unscoped().Delete(&model.Secret{}, secretID).Error
}

// FindSecretByKey locates a secret by key name for the import flow's conflict
// detection. Same access gate as read; a miss is (nil, nil).
func (s *Store) FindSecretByKey(ctx context.Context, userID uint, slug string, env model.EnvName, keyName string) (*model.Secret, error) {
	if !s.HasEnvironmentReadAccess(ctx, userID, slug, env) {
		return nil, nil
	}
	projectID, ok := s.resolveProjectID(ctx, slug)
	if !ok {
		return nil, nil
	}
	envID, ok := s.resolveEnvironmentID(ctx, projectID, env)
	if !ok {
		return nil, nil
	}

	var secret model.Secret
	err := s.conn(ctx).
		Where("environment_id = ? AND key_name = ?", envID, keyName).
		First(&secret).Error
	if err != nil {
		return nil, nil
	}
	return &secret, nil
}

// SecretVersionCount reports how many snapshots a secret has accumulated.
func (s *Store) SecretVersionCount(ctx context.Context, secretID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.SecretVersion{}).
		Where("secret_id = ?", secretID).Count(&count).Error
	return count, err
}
