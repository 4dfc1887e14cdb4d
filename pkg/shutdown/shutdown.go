package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/godice/pkg/logger"
)

// Handler 关闭处理函数。ctx 超时后应尽快放弃收尾。
type Handler func(ctx context.Context)

type entry struct {
	name string
	fn   Handler
}

// Manager 进程收尾管理器：统一关执行器、流水库、控制面这些
// 持有外部资源的组件。回调按注册名记录，超时能点名谁没收完。
type Manager struct {
	mu      sync.Mutex
	entries []entry
}

// NewManager 创建收尾管理器。
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册一个命名的关闭回调。
func (m *Manager) OnShutdown(name string, fn Handler) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{name: name, fn: fn})
}

// Shutdown 并发执行全部关闭回调并阻塞到完成或 ctx 超时。
// ctx 应带超时，避免某个回调卡死整个进程退出。
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	entries := m.entries
	m.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(entries))

	var (
		pending sync.Map
		wg      sync.WaitGroup
	)
	for _, e := range entries {
		e := e
		pending.Store(e.name, struct{}{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fn(ctx)
			pending.Delete(e.name)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Infof("所有关闭回调已完成")
	case <-ctx.Done():
		pending.Range(func(name, _ any) bool {
			logger.Warnf("关闭超时，回调未完成: %s", name)
			return true
		})
	}
}
