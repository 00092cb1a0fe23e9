package domain

import (
	"context"
	"fmt"
	"time"
)

type CompanyType string

const (
	CompanyBasic      CompanyType = "BASIC"
	CompanyPremium    CompanyType = "PREMIUM"
	CompanyEnterprise CompanyType = "ENTERPRISE"
)

func (t CompanyType) Valid() bool {
	switch t {
	case CompanyBasic, CompanyPremium, CompanyEnterprise:
		return true
	}
	return false
}

const DefaultMaxUsers = 3

type Company struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      CompanyType `json:"type"`
	MaxUsers  int         `json:"max_users"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewCompany 填充默认值并校验 max_users >= 1
func NewCompany(id, name string, typ CompanyType, maxUsers int, now time.Time) (*Company, error) {
	if typ == "" {
		typ = CompanyBasic
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown company type %q", ErrInvalidInput, typ)
	}
	if maxUsers == 0 {
		maxUsers = DefaultMaxUsers
	}
	if maxUsers < 1 {
		return nil, fmt.Errorf("%w: max_users must be >= 1", ErrInvalidInput)
	}
	return &Company{
		ID:        id,
		Name:      name,
		Type:      typ,
		MaxUsers:  maxUsers,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type CompanyRepository interface {
	Create(ctx context.Context, c *Company) (*Company, error)
	// FindByName 不存在返回 (nil, nil)
	FindByName(ctx context.Context, name string) (*Company, error)
}
