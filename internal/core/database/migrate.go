package database

import (
	"gorm.io/gorm"

	"tenant-user-api/internal/feature/company"
	"tenant-user-api/internal/feature/user"
)

// Migrate companies 必须先于 users（外键）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&company.CompanyModel{}, &user.UserModel{})
}
