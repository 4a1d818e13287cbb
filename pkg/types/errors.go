package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              错误分类
// ============================================================================

var (
	// ErrDestroyed Swarm 已开始销毁或已销毁
	ErrDestroyed = errors.New("swarm has been destroyed")

	// ErrNotListening Swarm 尚未监听
	ErrNotListening = errors.New("swarm is not listening")

	// ErrInvalidInput 输入无效（主题密钥、节点描述）
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled 进行中的操作被取消
	ErrCancelled = errors.New("operation cancelled")
)

// InvalidInputError 输入校验失败
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is 使 errors.Is(err, ErrInvalidInput) 成立
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// TransportError 传输层失败（绑定/拨号），原样携带底层错误
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap 返回底层传输错误
func (e *TransportError) Unwrap() error {
	return e.Err
}

// CancelledError 进行中的操作被中止
//
// errors.Is(err, ErrCancelled) 恒成立；Cause 为中止原因（销毁时为 ErrDestroyed）。
type CancelledError struct {
	Op    string
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause == nil {
		return e.Op + " cancelled"
	}
	return fmt.Sprintf("%s cancelled: %v", e.Op, e.Cause)
}

// Is 使 errors.Is(err, ErrCancelled) 成立
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// Unwrap 返回取消原因
func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// NewCancelled 创建 CancelledError
func NewCancelled(op string, cause error) error {
	return &CancelledError{Op: op, Cause: cause}
}
