package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"gaht-identity/internal/core/cache"
	"gaht-identity/pkg/utils"
)

const roleCacheTTL = 5 * time.Minute

// Store owns user and role persistence plus password hashing. It is the only
// shared mutable resource; every method is safe for concurrent use because
// all state lives in the database.
type Store struct {
	db    *gorm.DB
	roles *cache.Cache // optional read-through cache for the role catalog
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// WithRoleCache routes FindRoleByName through redis. Roles change rarely and
// only via the admin surface, which invalidates the key on writes.
func (s *Store) WithRoleCache(c *cache.Cache) *Store {
	s.roles = c
	return s
}

// AutoMigrate creates the three relations. Schema evolution beyond this is an
// operations concern.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&User{}, &Role{}, &UserRole{})
}

// FindUserByUsername does an exact-match lookup of an active user and eagerly
// loads its active role assignments together with the role rows, ordered by
// role id so PrimaryRole is deterministic. Returns (nil, nil) when absent.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Where("active = ?", true).Order("role_id")
		}).
		Preload("Assignments.Role").
		First(&u, "username = ? AND active = ?", username, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w: %v", username, ErrStorageUnavailable, err)
	}
	return &u, nil
}

// UsernameExists pre-checks registration uniqueness. A lose-the-race insert
// is still caught by the unique index in CreateUserWithRole.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check username %q: %w: %v", username, ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

// FindRoleByName resolves an active role. Returns (nil, nil) when absent or
// inactive.
func (s *Store) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	if s.roles != nil {
		r, err := cache.GetOrLoadJSON[Role](s.roles, ctx, RoleCacheKey(name), roleCacheTTL,
			func(ctx context.Context) (*Role, error) { return s.loadRoleByName(ctx, name) })
		if err == nil {
			return r, nil
		}
		// 缓存故障时直接回源
	}
	return s.loadRoleByName(ctx, name)
}

func (s *Store) loadRoleByName(ctx context.Context, name string) (*Role, error) {
	var r Role
	err := s.db.WithContext(ctx).First(&r, "name = ? AND active = ?", name, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find role %q: %w: %v", name, ErrStorageUnavailable, err)
	}
	return &r, nil
}

// RoleCacheKey is shared with the admin surface, which must invalidate it
// after role writes.
func RoleCacheKey(name string) string { return "role:" + name }

// CreateUserWithRole persists the user and its role assignment in one
// transaction: either both rows land or neither does. The role is re-checked
// inside the transaction, so a failed resolution leaves no user behind. A
// unique-index hit surfaces as ErrDuplicateUsername, so the check-then-insert
// race resolves to the same outcome as the pre-check.
func (s *Store) CreateUserWithRole(ctx context.Context, u *User, roleID string) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role Role
		if err := tx.First(&role, "id = ? AND active = ?", roleID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRole
			}
			return err
		}
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return tx.Create(&UserRole{UserID: u.ID, RoleID: role.ID, Active: true}).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidRole):
		return err
	case isDupKey(err):
		return fmt.Errorf("create user %q: %w", u.Username, ErrDuplicateUsername)
	default:
		return fmt.Errorf("create user %q: %w: %v", u.Username, ErrStorageUnavailable, err)
	}
}

// HashPassword produces the adaptive, salt-embedding hash stored for a user.
func (s *Store) HashPassword(plaintext string) (string, error) {
	return utils.HashPassword(plaintext)
}

// VerifyPassword checks a candidate against a stored hash. The candidate is
// never logged or persisted.
func (s *Store) VerifyPassword(plaintext, hash string) bool {
	return utils.CheckPassword(plaintext, hash)
}

// isDupKey matches uniqueness violations by message across mysql, postgres
// and sqlite, avoiding a dependency on driver-specific error types.
func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
