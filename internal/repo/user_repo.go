// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for accounts,
// access-token sessions, and password reset tokens.
//
// Like the other thin repository helpers, these functions contain no
// business rules: hashing, token issuing and expiry policy live in package
// auth.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// CreateUser inserts u and maps a taken email to ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by (case-insensitive) email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePasswordHash replaces a user's password hash.
func UpdatePasswordHash(ctx context.Context, db *gorm.DB, userID, hash string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateSession records an issued access token.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.AuthSession) error {
	return db.WithContext(ctx).Omit("User").Create(s).Error
}

// GetSession fetches a session by its token id.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.AuthSession, error) {
	var s domain.AuthSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeSession marks a session revoked. Revoking twice is not an error;
// a missing session is ErrNotFound.
func RevokeSession(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetSession(ctx, db, id); err != nil {
			return err
		}
	}
	return nil
}

// CreatePasswordReset stores a reset token hash.
func CreatePasswordReset(ctx context.Context, db *gorm.DB, r *domain.PasswordReset) error {
	return db.WithContext(ctx).Omit("User").Create(r).Error
}

// ErrResetUnusable is returned for a reset token that is expired or used.
var ErrResetUnusable = errors.New("reset token expired or already used")

// ConsumePasswordReset marks the token used and returns it. The token must
// exist, be unused, and not be expired at now.
func ConsumePasswordReset(ctx context.Context, db *gorm.DB, tokenHash string, now time.Time) (*domain.PasswordReset, error) {
	var r domain.PasswordReset
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ?", tokenHash).First(&r).Error; err != nil {
			return err
		}
		if r.UsedAt != nil || !now.Before(r.ExpiresAt) {
			return ErrResetUnusable
		}
		res := tx.Model(&domain.PasswordReset{}).
			Where("token_hash = ? AND used_at IS NULL", tokenHash).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrResetUnusable
		}
		r.UsedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
