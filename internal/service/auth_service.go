package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tenant-user-api/internal/core/metrics"
	"tenant-user-api/internal/domain"
	"tenant-user-api/pkg/utils"
)

type CompanyDefaults struct {
	Type     domain.CompanyType
	MaxUsers int
}

// Deps 两个 service 共用的依赖
type Deps struct {
	Users       domain.UserRepository
	Companies   domain.CompanyRepository
	Hasher      domain.PasswordHasher
	Codec       domain.TokenCodec
	Log         *zap.Logger
	Company     CompanyDefaults
	HashTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

func (d *Deps) fill() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = utils.NewID
	}
	if d.HashTimeout <= 0 {
		d.HashTimeout = 5 * time.Second
	}
}

// hash bcrypt 很慢，单独给一个超时
func (d *Deps) hash(ctx context.Context, plain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.HashTimeout)
	defer cancel()
	return d.Hasher.Hash(ctx, plain)
}

type SignupInput struct {
	CompanyName string
	Name        string
	Email       string
	Password    string
}

type AuthService struct {
	d Deps
}

func NewAuthService(d Deps) *AuthService {
	d.fill()
	return &AuthService{d: d}
}

// Signup 顺序：邮箱查重 → 公司名查重 → 建公司 → 建管理员。
// 密码在建公司之前哈希，超长密码不会留下空公司。
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (u *domain.User, err error) {
	defer func() { metrics.Auth("signup", outcome(err)) }()

	existing, err := s.d.Users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserAlreadyExists
	}

	taken, err := s.d.Companies.FindByName(ctx, in.CompanyName)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if taken != nil {
		return nil, domain.ErrCompanyAlreadyRegistered
	}

	hashed, err := s.d.hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.d.Now()
	c, err := domain.NewCompany(s.d.NewID(), in.CompanyName, s.d.Company.Type, s.d.Company.MaxUsers, now)
	if err != nil {
		return nil, err
	}
	created, err := s.d.Companies.Create(ctx, c)
	if errors.Is(err, domain.ErrCompanyAlreadyRegistered) {
		// 查重与插入之间被并发抢注
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create company: %w", domain.ErrCannotOperate, err)
	}
	if created == nil {
		return nil, fmt.Errorf("%w: create company returned nothing", domain.ErrCannotOperate)
	}

	u, err = s.d.Users.Create(ctx, &domain.User{
		ID:           s.d.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
		CompanyID:    created.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	s.d.Log.Info("company registered",
		zap.String("company_id", created.ID),
		zap.String("company", created.Name),
		zap.String("admin_id", u.ID),
	)
	return u, nil
}

// Signin 未知邮箱返回 ErrNotFound，密码错误返回 ErrInvalidCredentials；HTTP 层两者都映射为 401
func (s *AuthService) Signin(ctx context.Context, email, password string) (tok domain.AccessToken, err error) {
	defer func() { metrics.Auth("signin", outcome(err)) }()

	u, err := s.verify(ctx, email, password)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return s.d.Codec.Encode(domain.Identity{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID})
}

// Login 校验凭据并返回用户资料，不签发 token
func (s *AuthService) Login(ctx context.Context, email, password string) (u *domain.User, err error) {
	defer func() { metrics.Auth("login", outcome(err)) }()
	return s.verify(ctx, email, password)
}

func (s *AuthService) verify(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.d.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	if !s.d.Hasher.Verify(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}
