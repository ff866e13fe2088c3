package repository

import (
	"context"
	"errors"
	"strings"

	"tipwall/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByHandle matches case-insensitively and ignores a leading @.
func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	handle = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	var u models.User
	err := r.db.WithContext(ctx).Where("LOWER(twitter_handle) = ?", handle).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByTwitterID(ctx context.Context, twitterID string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("twitter_id = ?", twitterID).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
