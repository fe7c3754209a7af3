// Package engine 排课引擎入口：选择算法、运行、冲突检测与指标汇总
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm 排课算法
type Algorithm int

const (
	AlgorithmGreedy     Algorithm = iota + 1 // 贪心构造
	AlgorithmGenetic                         // 遗传算法
	AlgorithmConstraint                      // 约束修复局部搜索
)

var algorithmNames = map[Algorithm]string{
	AlgorithmGreedy:     "greedy",
	AlgorithmGenetic:    "genetic",
	AlgorithmConstraint: "constraint",
}

// Algorithms 返回全部支持的算法名称
func Algorithms() []string {
	return []string{"greedy", "genetic", "constraint"}
}

// String 返回算法名称
func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// Valid 是否为已知算法
func (a Algorithm) Valid() bool {
	_, ok := algorithmNames[a]
	return ok
}

// MarshalText 以名称序列化
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, &UnsupportedAlgorithmError{Algorithm: a.String()}
	}
	return []byte(a.String()), nil
}

// UnmarshalText 从名称解析
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAlgorithm 解析算法名称，大小写不敏感
// 未知名称返回 *UnsupportedAlgorithmError，不会退回默认算法
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for a, n := range algorithmNames {
		if n == name {
			return a, nil
		}
	}
	return 0, &UnsupportedAlgorithmError{Algorithm: s}
}

// UnsupportedAlgorithmError 不支持的算法
type UnsupportedAlgorithmError struct {
	Algorithm string
}

// Error 实现 error 接口
func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("不支持的排课算法 %q，可选: %s", e.Algorithm, strings.Join(Algorithms(), ", "))
}

// IsUnsupportedAlgorithm 检查是否为不支持的算法错误
func IsUnsupportedAlgorithm(err error) bool {
	var target *UnsupportedAlgorithmError
	return errors.As(err, &target)
}
