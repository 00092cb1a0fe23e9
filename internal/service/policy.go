package service

import "tenant-user-api/internal/domain"

// 授权规则。调用方负责先把目标限定在 who.CompanyID 内查询，
// 这里只看角色与身份，不访问存储。

func CanCreate(who domain.Identity) error {
	if !who.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}

func CanList(who domain.Identity) error {
	if !who.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}

// CanDelete 目标已确认存在后调用；禁止删除自己（管理员也不行）
func CanDelete(who domain.Identity, targetID string) error {
	if !who.IsAdmin() {
		return domain.ErrAdminRequired
	}
	if who.UserID == targetID {
		return domain.ErrSelfDelete
	}
	return nil
}

// CanUpdate 管理员或本人。本人可以修改自己的 role（包括提升为 ADMIN），未加额外限制。
func CanUpdate(who domain.Identity, targetID string) error {
	if who.IsAdmin() || who.UserID == targetID {
		return nil
	}
	return domain.ErrNotAdminNorOwner
}
