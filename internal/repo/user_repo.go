// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// Lookups return gorm.ErrRecordNotFound (ErrNotFound) when no row matches;
// callers in the service layer translate that into a found=false result.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// CreateUser inserts u. CreatedAt/UpdatedAt are set to UTC now when zero.
// A duplicate username or email surfaces as the raw driver error; use
// IsUniqueViolation to detect it.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return db.WithContext(ctx).Create(u).Error
}

// GetUserByID fetches a user by primary key.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return firstUser(ctx, db, "id = ?", id)
}

// GetUserByUsername fetches a user by exact username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return firstUser(ctx, db, "username = ?", username)
}

// GetUserByEmail fetches a user by (already normalised) email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return firstUser(ctx, db, "email = ?", email)
}

func firstUser(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where(where, arg).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserRole sets the role selector of a user. Returns ErrNotFound when
// no row matched.
func UpdateUserRole(ctx context.Context, db *gorm.DB, id string, role domain.Role) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"current_role": role, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
