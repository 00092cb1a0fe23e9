package repo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tenant-user-api/internal/core/cache"
	"tenant-user-api/internal/domain"
)

// CachedUserRepo 给鉴权回查（FindRequester）加一层 redis；Update/Delete 后失效对应 key。
// FindByID 等读写路径直接走底层存储，拿到的是带密码哈希的完整记录。
type CachedUserRepo struct {
	domain.UserRepository
	c   *cache.Cache
	ttl time.Duration
	log *zap.Logger
}

func NewCachedUserRepo(inner domain.UserRepository, c *cache.Cache, ttl time.Duration, l *zap.Logger) *CachedUserRepo {
	if l == nil {
		l = zap.NewNop()
	}
	return &CachedUserRepo{UserRepository: inner, c: c, ttl: ttl, log: l}
}

var _ domain.RequesterLookup = (*CachedUserRepo)(nil)

// requesterEntry 缓存里只放鉴权需要的字段，不放密码哈希
type requesterEntry struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	Avatar    string      `json:"avatar"`
	CompanyID string      `json:"company_id"`
}

func userKey(id, companyID string) string { return "user:" + companyID + ":" + id }

func (r *CachedUserRepo) FindRequester(ctx context.Context, id, companyID string) (*domain.User, error) {
	e, err := cache.GetOrLoadJSON(r.c, ctx, userKey(id, companyID), r.ttl, func(ctx context.Context) (*requesterEntry, error) {
		u, err := r.UserRepository.FindByID(ctx, id, companyID)
		if err != nil || u == nil {
			return nil, err
		}
		return &requesterEntry{ID: u.ID, Name: u.Name, Role: u.Role, Avatar: u.Avatar, CompanyID: u.CompanyID}, nil
	})
	if err != nil || e == nil {
		return nil, err
	}
	return &domain.User{ID: e.ID, Name: e.Name, Role: e.Role, Avatar: e.Avatar, CompanyID: e.CompanyID}, nil
}

func (r *CachedUserRepo) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	out, err := r.UserRepository.Update(ctx, u)
	r.evict(ctx, u.ID, u.CompanyID)
	return out, err
}

func (r *CachedUserRepo) Delete(ctx context.Context, id, companyID string) error {
	err := r.UserRepository.Delete(ctx, id, companyID)
	r.evict(ctx, id, companyID)
	return err
}

// evict 写库已经生效，失效失败不改写结果，只记日志；旧条目最多活到 ttl
func (r *CachedUserRepo) evict(ctx context.Context, id, companyID string) {
	// 请求被取消时写库可能已经生效，失效仍然要做
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.c.Delete(ctx, userKey(id, companyID)); err != nil {
		r.log.Error("user cache eviction failed",
			zap.String("user_id", id),
			zap.String("company_id", companyID),
			zap.Duration("stale_for_up_to", r.ttl),
			zap.Error(err),
		)
	}
}
