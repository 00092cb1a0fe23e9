package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenant-user-api/internal/domain"
)

func TestPolicy(t *testing.T) {
	admin := domain.Identity{UserID: "a", Role: domain.RoleAdmin, CompanyID: "c"}
	user := domain.Identity{UserID: "u", Role: domain.RoleUser, CompanyID: "c"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"admin create", CanCreate(admin), nil},
		{"user create", CanCreate(user), domain.ErrAdminRequired},
		{"admin list", CanList(admin), nil},
		{"user list", CanList(user), domain.ErrAdminRequired},
		{"admin delete other", CanDelete(admin, "u"), nil},
		{"admin delete self", CanDelete(admin, "a"), domain.ErrSelfDelete},
		{"user delete other", CanDelete(user, "a"), domain.ErrAdminRequired},
		{"user delete self", CanDelete(user, "u"), domain.ErrAdminRequired},
		{"admin update other", CanUpdate(admin, "u"), nil},
		{"user update self", CanUpdate(user, "u"), nil},
		{"user update other", CanUpdate(user, "a"), domain.ErrNotAdminNorOwner},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.want == nil {
				assert.NoError(t, tc.err)
				return
			}
			assert.ErrorIs(t, tc.err, tc.want)
			assert.ErrorIs(t, tc.err, domain.ErrUnauthorized)
		})
	}
}
