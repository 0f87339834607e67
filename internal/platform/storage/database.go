package storage

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fivebear-admin-go/internal/platform/errors"
)

// Open initializes the SQLite database and migrates the account schema.
func Open(dsn string) (*gorm.DB, error) {
	if dir := filepath.Dir(dsn); dir != "" && dir != "." && !isMemoryDSN(dsn) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "db.open", "failed to create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "db.open", "failed to open database", err)
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "db.migrate", "failed to migrate database", err)
	}
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return len(dsn) >= 5 && dsn[:5] == "file:" || dsn == ":memory:"
}

// Account states stored in the users table.
const (
	UserStatusActive   = 1
	UserStatusDisabled = 0
)

// User is the persisted account record. Password holds a bcrypt hash.
type User struct {
	ID          uint       `gorm:"primaryKey"`
	Username    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password    string     `gorm:"not null"                              json:"-"`
	Role        string     `gorm:"type:varchar(32);default:'admin'"      json:"role"`
	Status      int        `gorm:"default:1"                             json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
