package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// MockDiscovery 模拟 interfaces.Discovery
type MockDiscovery struct {
	StartFunc func(ctx context.Context, req interfaces.StartRequest) (interfaces.DiscoveryTask, error)

	mu    sync.Mutex
	tasks []*MockTask
}

// NewMockDiscovery 创建模拟发现服务
func NewMockDiscovery() *MockDiscovery {
	return &MockDiscovery{}
}

// Start 默认返回一个 MockTask，ctx 取消时任务随之结束
func (m *MockDiscovery) Start(ctx context.Context, req interfaces.StartRequest) (interfaces.DiscoveryTask, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, req)
	}
	t := NewMockTask(req)
	go func() {
		select {
		case <-ctx.Done():
			t.Cancel()
		case <-t.Done():
		}
	}()
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return t, nil
}

// Tasks 已启动的任务
func (m *MockDiscovery) Tasks() []*MockTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockTask(nil), m.tasks...)
}

// MockTask 模拟 interfaces.DiscoveryTask
type MockTask struct {
	Request interfaces.StartRequest

	peers chan types.PeerInfo

	mu       sync.Mutex
	finished bool
	done     chan struct{}
}

// NewMockTask 创建模拟任务
func NewMockTask(req interfaces.StartRequest) *MockTask {
	return &MockTask{
		Request: req,
		peers:   make(chan types.PeerInfo, 16),
		done:    make(chan struct{}),
	}
}

// Emit 投递一个发现结果；任务已结束时丢弃
func (t *MockTask) Emit(p types.PeerInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.peers <- p
}

// Peers 发现结果通道
func (t *MockTask) Peers() <-chan types.PeerInfo { return t.peers }

// Cancel 结束任务
func (t *MockTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	close(t.peers)
	close(t.done)
}

// Cancelled 是否已结束
func (t *MockTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Done 结束通知
func (t *MockTask) Done() <-chan struct{} { return t.done }

// Err 总是 nil
func (t *MockTask) Err() error { return nil }
