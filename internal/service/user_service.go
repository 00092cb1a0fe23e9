package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tenant-user-api/internal/core/metrics"
	"tenant-user-api/internal/domain"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role // 空表示默认 ADMIN
	Avatar   string
}

type UpdateUserInput struct {
	Name     string
	Password string
	Role     domain.Role
	Avatar   string
}

// PatchUserInput 未提供的字段为 nil；Password 为明文，service 负责哈希
type PatchUserInput struct {
	Name     *string
	Password *string
	Role     *domain.Role
	Avatar   *string
}

type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// UserService 所有操作都限定在 who.CompanyID 内
type UserService struct {
	d      Deps
	paging Paging
}

func NewUserService(d Deps, p Paging) *UserService {
	d.fill()
	if p.DefaultLimit <= 0 {
		p.DefaultLimit = 10
	}
	if p.MaxLimit < p.DefaultLimit {
		p.MaxLimit = 100
	}
	return &UserService{d: d, paging: p}
}

func (s *UserService) Paging() Paging { return s.paging }

func (s *UserService) Create(ctx context.Context, who domain.Identity, in CreateUserInput) (u *domain.User, err error) {
	defer func() { metrics.UserMutation("create", outcome(err)) }()

	if err := CanCreate(who); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleAdmin
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	existing, err := s.d.Users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserAlreadyExists
	}

	hashed, err := s.d.hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}
	now := s.d.Now()
	u, err = s.d.Users.Create(ctx, &domain.User{
		ID:           s.d.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         role,
		Avatar:       in.Avatar,
		CompanyID:    who.CompanyID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.Info("user created",
		zap.String("company_id", who.CompanyID),
		zap.String("user_id", u.ID),
		zap.String("by", who.UserID),
	)
	return u, nil
}

// Get 不看角色；其他公司的用户查不到，与不存在无法区分
func (s *UserService) Get(ctx context.Context, who domain.Identity, id string) (*domain.User, error) {
	return s.find(ctx, who, id)
}

func (s *UserService) List(ctx context.Context, who domain.Identity, limit, offset int) ([]domain.User, error) {
	if err := CanList(who); err != nil {
		return nil, err
	}
	if limit < 1 || limit > s.paging.MaxLimit {
		return nil, fmt.Errorf("%w: limit must be within [1, %d]", domain.ErrInvalidInput, s.paging.MaxLimit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidInput)
	}
	users, err := s.d.Users.List(ctx, who.CompanyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Update 全量替换 name/password/role/avatar，并刷新 updated_at
func (s *UserService) Update(ctx context.Context, who domain.Identity, id string, in UpdateUserInput) (u *domain.User, err error) {
	defer func() { metrics.UserMutation("update", outcome(err)) }()

	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	cur, err := s.find(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if err := CanUpdate(who, cur.ID); err != nil {
		return nil, err
	}
	hashed, err := s.d.hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	next := cur.Apply(domain.UserPatch{Name: &in.Name, PasswordHash: &hashed, Role: &role, Avatar: &in.Avatar}, s.d.Now())
	return s.d.Users.Update(ctx, &next)
}

// PartialUpdate 只改提供了的字段；什么都没提供时原样返回，不写库也不刷新 updated_at
func (s *UserService) PartialUpdate(ctx context.Context, who domain.Identity, id string, in PatchUserInput) (u *domain.User, err error) {
	defer func() { metrics.UserMutation("patch", outcome(err)) }()

	if in.Role != nil && !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, *in.Role)
	}
	cur, err := s.find(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if err := CanUpdate(who, cur.ID); err != nil {
		return nil, err
	}

	patch := domain.UserPatch{Name: in.Name, Role: in.Role, Avatar: in.Avatar}
	if in.Password != nil {
		hashed, err := s.d.hash(ctx, *in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hashed
	}
	if patch.Empty() {
		return cur, nil
	}
	next := cur.Apply(patch, s.d.Now())
	return s.d.Users.Update(ctx, &next)
}

// Delete 顺序：管理员校验 → 目标存在 → 禁止删除自己
func (s *UserService) Delete(ctx context.Context, who domain.Identity, id string) (err error) {
	defer func() { metrics.UserMutation("delete", outcome(err)) }()

	if !who.IsAdmin() {
		return domain.ErrAdminRequired
	}
	target, err := s.find(ctx, who, id)
	if err != nil {
		return err
	}
	if err := CanDelete(who, target.ID); err != nil {
		return err
	}
	if err := s.d.Users.Delete(ctx, target.ID, who.CompanyID); err != nil {
		return err
	}
	s.d.Log.Info("user deleted",
		zap.String("company_id", who.CompanyID),
		zap.String("user_id", target.ID),
		zap.String("by", who.UserID),
	)
	return nil
}

// Resolve 鉴权中间件用：按 token 里的 (id, company) 取当前存储中的用户，不存在返回 (nil, nil)。
// 角色以存储为准，降级后旧 token 立即失去管理员权限。
func (s *UserService) Resolve(ctx context.Context, who domain.Identity) (*domain.User, error) {
	if rl, ok := s.d.Users.(domain.RequesterLookup); ok {
		return rl.FindRequester(ctx, who.UserID, who.CompanyID)
	}
	return s.d.Users.FindByID(ctx, who.UserID, who.CompanyID)
}

func (s *UserService) find(ctx context.Context, who domain.Identity, id string) (*domain.User, error) {
	u, err := s.d.Users.FindByID(ctx, id, who.CompanyID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
