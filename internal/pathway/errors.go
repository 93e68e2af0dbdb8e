package pathway

import (
	"errors"
	"fmt"
)

// ErrorKind 引擎错误分类
// 所有服务方法返回的错误都可归入这三类，HTTP 层据此映射状态码。
type ErrorKind string

const (
	// ErrKindNotFound 目标不存在，或存在但属于其他租户（两者刻意不可区分）
	ErrKindNotFound ErrorKind = "not_found"
	// ErrKindValidation 写入前被拦截的约束冲突，消息可直接展示给用户
	ErrKindValidation ErrorKind = "validation"
	// ErrKindInternal 持久层故障，消息已脱敏，详情见日志
	ErrKindInternal ErrorKind = "internal"
)

// Error 带分类的引擎错误
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFound 创建 not_found 错误
func NewNotFound(message string) *Error {
	return &Error{Kind: ErrKindNotFound, Message: message}
}

// NewValidation 创建 validation 错误
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewInternal 创建 internal 错误，原始错误保留在链上供日志使用
func NewInternal(message string, err error) *Error {
	return &Error{Kind: ErrKindInternal, Message: message, Err: err}
}

// KindOf 提取错误分类，非本包错误一律视为 internal
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindInternal
}

// IsNotFound 是否为 not_found 错误
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsValidation 是否为 validation 错误
func IsValidation(err error) bool {
	return KindOf(err) == ErrKindValidation
}
