package storage

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fivebear-admin-go/internal/platform/errors"
)

// UserRepository is the account lookup surface used by the auth service.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	VerifyCredential(user *User, password string) bool
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Create(ctx context.Context, user *User) error
	SeedDefaultAdmin(ctx context.Context, username, password string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by gorm.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByUsername returns nil without error when no account matches.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "user.find_by_username", "failed to find user", err)
	}
	return &user, nil
}

// VerifyCredential checks a plaintext password against the stored bcrypt hash.
func (r *userRepository) VerifyCredential(user *User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("last_login_at", at).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "user.touch_last_login", "failed to update last login", err)
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, user *User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "user.create", "failed to hash password", err)
	}
	user.Password = string(hash)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "user.create", "failed to create user", err)
	}
	return nil
}

// SeedDefaultAdmin inserts the bootstrap account when the table is empty.
func (r *userRepository) SeedDefaultAdmin(ctx context.Context, username, password string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "user.seed", "failed to count users", err)
	}
	if count > 0 {
		return nil
	}
	return r.Create(ctx, &User{
		Username: username,
		Password: password,
		Role:     "admin",
		Status:   UserStatusActive,
	})
}
