package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService is the user directory. It exclusively owns rows of the users table.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, now: time.Now}
}

func (s *UserService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Upsert inserts a user on first contact or refreshes the profile fields.
// It never changes role or active.
func (s *UserService) Upsert(ctx context.Context, id, displayName, username string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.Invalid("user_id", "required")
	}
	now := s.stamp()
	u := model.User{
		ID:          id,
		DisplayName: strings.TrimSpace(displayName),
		Username:    strings.TrimSpace(username),
		Role:        model.RoleClient,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "username", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ReconcileRole writes the roster's target role for id when the stored role differs.
// The roster wins over any role set at runtime.
func (s *UserService) ReconcileRole(ctx context.Context, id string, roster model.Roster) (model.Role, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	target := roster.Target(id)
	if u.Role == target {
		return target, nil
	}
	if err := s.update(ctx, id, map[string]interface{}{"role": target}); err != nil {
		return "", err
	}
	return target, nil
}

// GetRole returns the stored role, or client for an unknown user.
func (s *UserService) GetRole(ctx context.Context, id string) (model.Role, error) {
	u, err := s.Get(ctx, id)
	if errors.Is(err, errs.ErrUserNotFound) {
		return model.RoleClient, nil
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserService) SetRole(ctx context.Context, id string, role model.Role) error {
	if !role.Valid() {
		return errs.ErrInvalidRole
	}
	return s.update(ctx, id, map[string]interface{}{"role": role})
}

func (s *UserService) Deactivate(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]interface{}{"active": false})
}

func (s *UserService) Reactivate(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]interface{}{"active": true})
}

func (s *UserService) update(ctx context.Context, id string, changes map[string]interface{}) error {
	changes["updated_at"] = s.stamp()
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// ListByRole returns users holding role, optionally only active ones.
func (s *UserService) ListByRole(ctx context.Context, role model.Role, activeOnly bool) ([]model.User, error) {
	var users []model.User
	tx := s.db.WithContext(ctx).Where("role = ?", role)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	if err := tx.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountByRole counts active users holding role.
func (s *UserService) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("role = ? AND active = ?", role, true).
		Count(&n).Error
	return n, err
}

// List pages through users, newest first. An empty role lists every role.
func (s *UserService) List(ctx context.Context, role model.Role, limit, offset int) ([]model.User, int64, error) {
	var items []model.User
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		tx = tx.Where("role = ?", role)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC, id").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every user; used by export and roles sync.
func (s *UserService) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
