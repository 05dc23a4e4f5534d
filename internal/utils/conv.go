package utils

import (
	"strconv"
	"strings"
)

// StringToInt converts string to int, returns fallback if empty or invalid
func StringToInt(s string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return i
}

// ParseOffset 解析分页偏移量，空串为 0，负数或非数字返回 false
func ParseOffset(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
