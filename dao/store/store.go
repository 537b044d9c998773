// Package store implements the access-control and secret-lifecycle engine:
// membership and environment predicates, encrypted secret versioning, project
// and invite management, registration and audit recording. Every multi-step
// mutation runs inside one transaction so partial state is never observable.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/envlocker/envlocker/pkg/crypto"
)

type Store struct {
	db    *gorm.DB
	vault *crypto.Vault
}

func New(db *gorm.DB, vault *crypto.Vault) *Store {
	return &Store{db: db, vault: vault}
}

// Vault exposes the crypto vault, mainly for wiring and tests.
func (s *Store) Vault() *crypto.Vault { return s.vault }

// DB exposes the underlying handle for callers that compose their own reads.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// transaction runs fn against a Store bound to one database transaction.
func (s *Store) transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, vault: s.vault})
	})
}
