// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides lookup functions for users and shops
// used by authentication and permission checks.
//
// Error semantics:
//   - When a record is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for consistency across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUserByToken resolves a user from their API token. Used by the auth
// middleware for both bearer and session-cookie credentials.
func GetUserByToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("api_token = ?", token).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches a user by primary key, or ErrNotFound.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsersByIDs batch-fetches users for the given id list. Missing ids are
// simply absent from the result; callers treat that as a skipped recipient.
func GetUsersByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// GetShopByOwner returns the shop operated by ownerUserID, or ErrNotFound.
// A mechanic user owns at most one shop.
func GetShopByOwner(ctx context.Context, db *gorm.DB, ownerUserID string) (*domain.Shop, error) {
	var s domain.Shop
	err := db.WithContext(ctx).Where("owner_user_id = ?", ownerUserID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShopByID fetches a shop by primary key, or ErrNotFound.
func GetShopByID(ctx context.Context, db *gorm.DB, id string) (*domain.Shop, error) {
	var s domain.Shop
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
