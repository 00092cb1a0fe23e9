package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tenant-user-api/internal/core/auth"
	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/repo/memory"
)

// clock 每次调用前进 1 秒，便于断言 updated_at 是否变化
type clock struct{ t time.Time }

func (c *clock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type env struct {
	users     *memory.UserStore
	companies *memory.CompanyStore
	codec     *auth.JWTCodec
	auth      *AuthService
	svc       *UserService
	clock     *clock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := auth.NewJWTCodec(auth.JWTOptions{Secret: "test-secret", TTL: time.Hour, Now: time.Now})
	require.NoError(t, err)
	d := Deps{
		Users:     memory.NewUserStore(),
		Companies: memory.NewCompanyStore(),
		Hasher:    auth.NewBcryptHasher(bcrypt.MinCost),
		Codec:     codec,
		Company:   CompanyDefaults{Type: domain.CompanyBasic, MaxUsers: 3},
		Now:       clk.Now,
	}
	return &env{
		users:     d.Users.(*memory.UserStore),
		companies: d.Companies.(*memory.CompanyStore),
		codec:     codec,
		auth:      NewAuthService(d),
		svc:       NewUserService(d, Paging{DefaultLimit: 10, MaxLimit: 100}),
		clock:     clk,
	}
}

// signup 注册公司并返回管理员身份
func (e *env) signup(t *testing.T, company, email string) domain.Identity {
	t.Helper()
	u, err := e.auth.Signup(context.Background(), SignupInput{CompanyName: company, Name: "admin", Email: email, Password: "secret"})
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
}

func (e *env) addUser(t *testing.T, admin domain.Identity, email string, role domain.Role) domain.Identity {
	t.Helper()
	u, err := e.svc.Create(context.Background(), admin, CreateUserInput{Name: "member", Email: email, Password: "secret", Role: role})
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
}

// mockCompanyRepo 注入存储故障
type mockCompanyRepo struct{ mock.Mock }

func (m *mockCompanyRepo) Create(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

func (m *mockCompanyRepo) FindByName(ctx context.Context, name string) (*domain.Company, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}
