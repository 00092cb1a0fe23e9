package utils

import "github.com/google/uuid"

// NewID 生成按时间有序的 UUIDv7
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// 随机源异常时退回 v4，仍然唯一但不再有序
		return uuid.NewString()
	}
	return id.String()
}

// IsID 只接受 36 位带连字符的标准文本；uuid.Parse 额外放行的 {...}、urn:uuid:、32 位无连字符形式一律拒绝
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
