package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
)

type (
	UserOut struct {
		ID          uint       `json:"id"`
		Email       string     `json:"email"`
		DisplayName string     `json:"displayName"`
		Role        model.Role `json:"role"`
		IsActive    bool       `json:"isActive"`
		CreatedAt   time.Time  `json:"createdAt"`
	}

	UserPatch struct {
		DisplayName *string
		Role        *model.Role
		IsActive    *bool
		Password    *string
	}
)

func userOut(user *model.User) UserOut {
	return UserOut{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
	}
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.conn(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

// Authenticate checks credentials and returns the account. Bad credentials
// and deactivated accounts are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrForbidden
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrForbidden
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]UserOut, error) {
	var users []model.User
	if err := s.conn(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserOut, 0, len(users))
	for i := range users {
		out = append(out, userOut(&users[i]))
	}
	return out, nil
}

// CreateUser provisions an account directly, bypassing registration. Used by
// the admin console.
func (s *Store) CreateUser(ctx context.Context, email, displayName, password string, role model.Role) (UserOut, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return UserOut{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if err := ValidatePassword(password); err != nil {
		return UserOut{}, err
	}

	var count int64
	if err := s.conn(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return UserOut{}, err
	}
	if count > 0 {
		return UserOut{}, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return UserOut{}, err
	}
	user := model.User{
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.conn(ctx).Create(&user).Error; err != nil {
		return UserOut{}, err
	}
	return userOut(&user), nil
}

func (s *Store) UpdateUser(ctx context.Context, id uint, patch UserPatch) (UserOut, error) {
	var user model.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return UserOut{}, ErrNotFound
	}
	if patch.DisplayName != nil {
		user.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Password != nil {
		if err := ValidatePassword(*patch.Password); err != nil {
			return UserOut{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return UserOut{}, err
		}
		user.PasswordHash = string(hash)
	}
	if err := s.conn(ctx).Save(&user).Error; err != nil {
		return UserOut{}, err
	}
	return userOut(&user), nil
}

// UpdatePreferences replaces the stored UI preference blob.
func (s *Store) UpdatePreferences(ctx context.Context, id uint, prefs datatypes.JSONMap) error {
	return s.conn(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("preferences", prefs).Error
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StoreRefreshToken records the hash of an issued refresh token so it can be
// revoked server side.
func (s *Store) StoreRefreshToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	record := model.RefreshToken{
		UserID:    userID,
		TokenHash: hashRefreshToken(token),
		ExpiresAt: expiresAt,
	}
	return s.conn(ctx).Create(&record).Error
}

// ValidRefreshToken reports whether the presented token is on record,
// unexpired and unrevoked.
func (s *Store) ValidRefreshToken(ctx context.Context, userID uint, token string) bool {
	var record model.RefreshToken
	err := s.conn(ctx).
		Where("user_id = ? AND token_hash = ? AND revoked_at IS NULL AND expires_at > ?",
			userID, hashRefreshToken(token), time.Now().UTC()).
		First(&record).Error
	return err == nil
}

// RevokeRefreshToken invalidates one token. Unknown tokens are ignored so a
// double logout is harmless.
func (s *Store) RevokeRefreshToken(ctx context.Context, userID uint, token string) error {
	now := time.Now().UTC()
	return s.conn(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND token_hash = ? AND revoked_at IS NULL", userID, hashRefreshToken(token)).
		Update("revoked_at", now).Error
}
