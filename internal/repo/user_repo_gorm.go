package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/feature/user"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	m := user.FromDomain(u)
	if err := r.db.WithContext(ctx).Omit("Company").Create(m).Error; err != nil {
		if isDupKey(err) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m user.UserModel
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *UserRepo) FindByID(ctx context.Context, id, companyID string) (*domain.User, error) {
	var m user.UserModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return m.ToDomain(), nil
}

// List created_at 相同时按 id（UUIDv7，时间有序）排，保证分页稳定
func (r *UserRepo) List(ctx context.Context, companyID string, limit, offset int) ([]domain.User, error) {
	var ms []user.UserModel
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(ms))
	for i := range ms {
		out = append(out, *ms[i].ToDomain())
	}
	return out, nil
}

func (r *UserRepo) Delete(ctx context.Context, id, companyID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		Delete(&user.UserModel{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Update 整行覆盖可变字段（name/password/role/avatar/updated_at），email 与 company 不可变
func (r *UserRepo) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	res := r.db.WithContext(ctx).
		Model(&user.UserModel{}).
		Where("id = ? AND company_id = ?", u.ID, u.CompanyID).
		Updates(map[string]any{
			"name":          u.Name,
			"password_hash": u.PasswordHash,
			"role":          string(u.Role),
			"avatar":        u.Avatar,
			"updated_at":    u.UpdatedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	// MySQL 值未变化时 RowsAffected 为 0，回查区分"不存在"
	got, err := r.FindByID(ctx, u.ID, u.CompanyID)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, domain.ErrNotFound
	}
	return got, nil
}
