package company

import (
	"time"

	"tenant-user-api/internal/domain"
)

type CompanyModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Name      string    `gorm:"uniqueIndex;size:255;not null"`
	Type      string    `gorm:"size:16;not null;default:BASIC"`
	MaxUsers  int       `gorm:"not null;default:3;check:max_users >= 1"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (CompanyModel) TableName() string { return "companies" }

func FromDomain(c *domain.Company) *CompanyModel {
	return &CompanyModel{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		MaxUsers:  c.MaxUsers,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m *CompanyModel) ToDomain() *domain.Company {
	return &domain.Company{
		ID:        m.ID,
		Name:      m.Name,
		Type:      domain.CompanyType(m.Type),
		MaxUsers:  m.MaxUsers,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}
