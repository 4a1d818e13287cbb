package topicswarm

import "github.com/dep2p/go-topicswarm/pkg/types"

// 公共错误定义，与 pkg/types 中的定义相同，便于调用方直接 errors.Is
var (
	// ErrDestroyed 操作发生在销毁开始之后："swarm has been destroyed"
	ErrDestroyed = types.ErrDestroyed

	// ErrNotListening 尚未监听
	ErrNotListening = types.ErrNotListening

	// ErrInvalidInput 输入不合法（*InvalidInputError 匹配此值）
	ErrInvalidInput = types.ErrInvalidInput

	// ErrCancelled 进行中的操作被中止（*CancelledError 匹配此值）
	ErrCancelled = types.ErrCancelled
)

// 带上下文的错误类型
type (
	// InvalidInputError 参数校验失败
	InvalidInputError = types.InvalidInputError

	// TransportError 传输层失败，原样携带底层错误
	TransportError = types.TransportError

	// CancelledError 进行中的操作被中止
	CancelledError = types.CancelledError
)
