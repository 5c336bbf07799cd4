// Package gormstore implements [authflow.CredentialStore] on GORM. Postgres is
// the shipped production target; tests run the same store on SQLite.
//
// Counter mutations are expressed as SQL so they stay atomic under concurrent
// logins: the wrong-attempt increment and the EXTEND restriction merge both
// happen in the database, never as an application read-modify-write.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rkhondokar/authflow"
)

type userModel struct {
	ID                 string `gorm:"primaryKey;size:36"`
	Email              string `gorm:"uniqueIndex;size:320;not null"`
	Name               string
	Role               string `gorm:"size:16;default:user"`
	PasswordHash       string
	Verified           bool
	AppID              string `gorm:"index"`
	FCMToken           string
	WrongLoginAttempts int
	IsRestricted       bool
	RestrictionLeftAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toUser() *authflow.User {
	return &authflow.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		Role:         authflow.Role(m.Role),
		PasswordHash: m.PasswordHash,
		Verified:     m.Verified,
		AppID:        m.AppID,
		FCMToken:     m.FCMToken,
		Authentication: authflow.Authentication{
			WrongLoginAttempts: m.WrongLoginAttempts,
			IsRestricted:       m.IsRestricted,
			RestrictionLeftAt:  m.RestrictionLeftAt,
		},
	}
}

func fromUser(u *authflow.User) *userModel {
	return &userModel{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               string(u.Role),
		PasswordHash:       u.PasswordHash,
		Verified:           u.Verified,
		AppID:              u.AppID,
		FCMToken:           u.FCMToken,
		WrongLoginAttempts: u.Authentication.WrongLoginAttempts,
		IsRestricted:       u.Authentication.IsRestricted,
		RestrictionLeftAt:  u.Authentication.RestrictionLeftAt,
	}
}

// Store is a GORM-backed credential store.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and returns a migrated store. TranslateError is
// required so duplicate-key violations surface as [authflow.ErrEmailTaken].
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, err)
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm handle and runs migrations. The handle must
// be opened with TranslateError enabled.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", authflow.ErrStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*authflow.User, error) {
	return s.getBy(ctx, "email = ?", authflow.NormalizeEmail(email))
}

func (s *Store) GetByID(ctx context.Context, id string) (*authflow.User, error) {
	return s.getBy(ctx, "id = ?", id)
}

func (s *Store) GetByAppID(ctx context.Context, appID string) (*authflow.User, error) {
	return s.getBy(ctx, "app_id = ?", appID)
}

func (s *Store) getBy(ctx context.Context, query string, arg string) (*authflow.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authflow.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, err)
	}
	return m.toUser(), nil
}

func (s *Store) Create(ctx context.Context, user *authflow.User) error {
	m := fromUser(user)
	m.Email = authflow.NormalizeEmail(m.Email)
	err := s.db.WithContext(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return authflow.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, err)
	}
	return nil
}

// RecordLoginFailure applies the failed-login write atomically. The attempt
// increment runs in SQL; under EXTEND the restriction expiry is merged with a
// CASE expression so an existing later expiry is never shortened.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, update authflow.FailureUpdate) error {
	values := map[string]interface{}{
		"wrong_login_attempts": gorm.Expr("wrong_login_attempts + ?", 1),
	}
	if update.Lock {
		values["is_restricted"] = true
		if update.Strategy == authflow.StrategyExtend {
			values["restriction_left_at"] = gorm.Expr(
				"CASE WHEN restriction_left_at IS NULL OR restriction_left_at < ? THEN ? ELSE restriction_left_at END",
				update.RestrictionUntil, update.RestrictionUntil,
			)
		} else {
			values["restriction_left_at"] = update.RestrictionUntil
		}
	}

	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return authflow.ErrUserNotFound
	}
	return nil
}

// ResetLoginState clears the lockout counters after a successful
// authentication and applies the optional side effects of update.
func (s *Store) ResetLoginState(ctx context.Context, id string, update authflow.ResetUpdate) error {
	values := map[string]interface{}{
		"wrong_login_attempts": 0,
		"is_restricted":        false,
		"restriction_left_at":  nil,
	}
	if update.FCMToken != "" {
		values["fcm_token"] = update.FCMToken
	}
	if update.MarkVerified {
		values["verified"] = true
	}

	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return authflow.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).
		Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return authflow.ErrUserNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&userModel{})
	if result.Error != nil {
		return fmt.Errorf("%w: %v", authflow.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return authflow.ErrUserNotFound
	}
	return nil
}
