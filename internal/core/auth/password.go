package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"tenant-user-api/internal/domain"
)

// MaxPasswordBytes bcrypt 只使用前 72 字节，超出直接拒绝而不是静默截断
const MaxPasswordBytes = 72

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash 计算放到独立 goroutine，ctx 结束时调用方立即返回（计算本身会跑完后丢弃）
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", domain.ErrPasswordTooLong
	}
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
		ch <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("bcrypt: %w", r.err)
		}
		return string(r.b), nil
	}
}

// Verify 比较为常量时间；hash 格式非法时返回 false
func (h *BcryptHasher) Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
