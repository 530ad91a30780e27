package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500
	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100
	// MaxResumeLength 简历片段最大长度
	MaxResumeLength = 150
)

// piiKeywords 属性名包含这些关键字时对值做掩码
var piiKeywords = []string{
	"email",
	"phone",
	"name",
	"resume",
	"api_key",
	"password",
	"secret",
	"token",
}

// SafeAttributeValue 敏感属性返回掩码值，其余超长时截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符，其余替换为 *
//
//	"Jane Doe"         -> "Ja****oe"
//	"jane@example.com" -> "ja************om"
func MaskPII(value string) string {
	runes := []rune(value)
	length := len(runes)

	switch {
	case length == 0:
		return ""
	case length == 1:
		return "*"
	case length == 2:
		return string(runes[:1]) + "*"
	case length <= 4:
		return string(runes[:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}
	return string(runes[:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 超长时保留首尾两段，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeRedisKey 截断 Redis 键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent 截断简历文本，用于日志和 span
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
