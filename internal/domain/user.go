package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Avatar       string    `json:"avatar"`
	CompanyID    string    `json:"company_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPatch 部分更新：nil 表示未提供，非 nil（包括空串）表示显式设置
type UserPatch struct {
	Name         *string
	PasswordHash *string
	Role         *Role
	Avatar       *string
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.PasswordHash == nil && p.Role == nil && p.Avatar == nil
}

// Apply 基于旧值构造新值，不修改 u 本身。
// 空 patch 原样返回（updated_at 不变）。
func (u User) Apply(p UserPatch, now time.Time) User {
	if p.Empty() {
		return u
	}
	next := u
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.PasswordHash != nil {
		next.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		next.Role = *p.Role
	}
	if p.Avatar != nil {
		next.Avatar = *p.Avatar
	}
	next.UpdatedAt = now
	return next
}

// Identity 从 token 解出的请求者身份
type Identity struct {
	UserID    string
	Role      Role
	CompanyID string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type AccessToken struct {
	Token string `json:"access_token"`
	Type  string `json:"token_type"`
}

type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	// FindByEmail 全库范围（邮箱跨公司唯一）；不存在返回 (nil, nil)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID 限定公司范围；不存在返回 (nil, nil)
	FindByID(ctx context.Context, id, companyID string) (*User, error)
	// List 按插入顺序
	List(ctx context.Context, companyID string, limit, offset int) ([]User, error)
	Delete(ctx context.Context, id, companyID string) error
	Update(ctx context.Context, u *User) (*User, error)
}

// RequesterLookup 鉴权热路径的可选实现：返回的记录不含 PasswordHash，只能用于鉴权，不能用来回写
type RequesterLookup interface {
	FindRequester(ctx context.Context, id, companyID string) (*User, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(plain, hashed string) bool
}

type TokenCodec interface {
	Encode(who Identity) (AccessToken, error)
	Decode(token string) (Identity, error)
}
