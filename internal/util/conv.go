package util

import (
	"strconv"
)

// ParseUintParam 路径参数必须是正整数
func ParseUintParam(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
