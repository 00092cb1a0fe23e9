package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDupKey TranslateError 已把大多数驱动错误转成 ErrDuplicatedKey，字符串匹配兜底
func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
