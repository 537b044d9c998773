package store

import (
	"context"

	"github.com/samber/lo"

	"github.com/envlocker/envlocker/dao/model"
)

// ExportedSecret is one decrypted key/value pair of an export.
type ExportedSecret struct {
	KeyName string `json:"keyName"`
	Value   string `json:"value"`
}

// ExportSecrets decrypts an environment's secrets for a caller holding read
// access, optionally filtered to one tag. A caller without the grant gets an
// empty result, mirroring the predicate layer's fail-closed convention. The
// export grant itself is enforced by the transport layer.
func (s *Store) ExportSecrets(ctx context.Context, userID uint, slug string, env model.EnvName, tag string) ([]ExportedSecret, error) {
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

	var secrets []model.Secret
	err := s.conn(ctx).
		Where("project_id = ? AND environment_id = ?", projectID, envID).
		Order("key_name ASC").
		Find(&secrets).Error
	if err != nil {
		return nil, err
	}

	out := make([]ExportedSecret, 0, len(secrets))
	for i := range secrets {
		secret := &secrets[i]
		if tag != "" && !lo.Contains(s.secretTags(ctx, secret.ID), tag) {
			continue
		}
		plain, err := s.vault.Decrypt(secret.ValueEncrypted)
		if err != nil {
			return nil, err
		}
		out = append(out, ExportedSecret{KeyName: secret.KeyName, Value: plain})
	}
	return out, nil
}

// ExportAllEnvironments exports every environment where the caller holds both
// read and export access, keyed by environment name. Environments the caller
// cannot export are skipped silently, not errored.
func (s *Store) ExportAllEnvironments(ctx context.Context, userID uint, slug string, tag string) (map[model.EnvName][]ExportedSecret, error) {
	out := make(map[model.EnvName][]ExportedSecret)
	for _, env := range model.EnvNames {
		if !s.HasEnvironmentReadAccess(ctx, userID, slug, env) {
			continue
		}
		if !s.HasEnvironmentExportAccess(ctx, userID, slug, env) {
			continue
		}
		rows, err := s.ExportSecrets(ctx, userID, slug, env, tag)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out[env] = rows
		}
	}
	return out, nil
}
