package pathway

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// deriveValueKey 从答案标签派生机器可读键：
// 小写化，非字母数字的连续串折叠为单个下划线，去掉首尾下划线。
// 标签完全不可用时退回到随机短标识。
func deriveValueKey(label string) string {
	key := strings.ToLower(label)
	key = nonAlnumRun.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if key == "" {
		key = "opt_" + uuid.New().String()[:8]
	}
	return key
}

// ensureUniqueValueKey 在已占用键集合内保证唯一：
// 冲突时追加递增数字后缀（_2, _3, ...）直到唯一。
func ensureUniqueValueKey(key string, taken map[string]bool) string {
	if !taken[key] {
		return key
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", key, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
