package user

import (
	"time"

	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/feature/company"
)

// UserModel users 表；删除为物理删除，邮箱唯一索引不受已删除行影响
type UserModel struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:100;not null"`
	Role         string `gorm:"size:16;not null;default:ADMIN"`
	Avatar       string `gorm:"size:512;not null;default:''"`
	CompanyID    string `gorm:"type:varchar(36);not null;index:idx_users_company_created,priority:1"`

	// 由业务层赋值，不让 gorm 自动覆盖
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false;index:idx_users_company_created,priority:2"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`

	Company *company.CompanyModel `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "users" }

func FromDomain(u *domain.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Avatar:       u.Avatar,
		CompanyID:    u.CompanyID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Avatar:       m.Avatar,
		CompanyID:    m.CompanyID,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}
