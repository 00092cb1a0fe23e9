// Package memory 内存版存储，实现与 gorm 版相同的接口；用于测试和 db.driver=memory 的本地运行。
package memory

import (
	"context"
	"sync"

	"tenant-user-api/internal/domain"
)

// UserStore 按插入顺序保存；所有读写都复制值，调用方拿不到内部指针
type UserStore struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]domain.User{}, byEmail: map[string]string{}}
}

var _ domain.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return nil, domain.ErrUserAlreadyExists
	}
	if _, ok := s.byID[u.ID]; ok {
		return nil, domain.ErrUserAlreadyExists
	}
	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	s.order = append(s.order, u.ID)
	out := *u
	return &out, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := s.byID[id]
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id, companyID string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok || u.CompanyID != companyID {
		return nil, nil
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context, companyID string, limit, offset int) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.User{}
	skipped := 0
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		u := s.byID[id]
		if u.CompanyID != companyID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *UserStore) Delete(ctx context.Context, id, companyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, u.Email)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Update 只覆盖可变字段，email/company/created_at 保持原值
func (s *UserStore) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[u.ID]
	if !ok || cur.CompanyID != u.CompanyID {
		return nil, domain.ErrNotFound
	}
	cur.Name = u.Name
	cur.PasswordHash = u.PasswordHash
	cur.Role = u.Role
	cur.Avatar = u.Avatar
	cur.UpdatedAt = u.UpdatedAt
	s.byID[u.ID] = cur
	return &cur, nil
}

type CompanyStore struct {
	mu     sync.RWMutex
	byName map[string]domain.Company
}

func NewCompanyStore() *CompanyStore {
	return &CompanyStore{byName: map[string]domain.Company{}}
}

var _ domain.CompanyRepository = (*CompanyStore)(nil)

func (s *CompanyStore) Create(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[c.Name]; ok {
		return nil, domain.ErrCompanyAlreadyRegistered
	}
	s.byName[c.Name] = *c
	out := *c
	return &out, nil
}

func (s *CompanyStore) FindByName(ctx context.Context, name string) (*domain.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
