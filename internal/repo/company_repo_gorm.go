package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/feature/company"
)

type CompanyRepo struct{ db *gorm.DB }

func NewCompanyRepo(db *gorm.DB) *CompanyRepo { return &CompanyRepo{db: db} }

var _ domain.CompanyRepository = (*CompanyRepo)(nil)

func (r *CompanyRepo) Create(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	m := company.FromDomain(c)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDupKey(err) {
			return nil, domain.ErrCompanyAlreadyRegistered
		}
		return nil, fmt.Errorf("create company: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *CompanyRepo) FindByName(ctx context.Context, name string) (*domain.Company, error) {
	var m company.CompanyModel
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find company by name: %w", err)
	}
	return m.ToDomain(), nil
}
