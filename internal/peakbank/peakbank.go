package peakbank

import (
	"sync"

	"github.com/betbot/godice/internal/domain"
)

// Shared 多实例共享的全局高水位（参考银行）。
//
// 同步部署中每个引擎实例持有同一个 *Shared：任意实例的 new_bank 刷新全局
// 最大值时，其余实例在下一局开始前通过 Snapshot 读到新的参考值。
// 所有读写都在同一个临界区内完成（先算全局最大、再广播），
// 避免"旧值覆盖别人刚刚抬高的水位"的丢失更新竞态。
//
// Recovery 的全局结束不用回调广播（回调会和引擎自身的锁形成环），
// 而是递增一个 generation：引擎在每局开头比较 generation，
// 发现变化即退出恢复模式。止盈/人工重启同理走 restartGen：
// 重启是全队事件，触发实例重定参考，其余实例在下一局开头
// 各自以当时的银行完成本地重启。
type Shared struct {
	mu         sync.Mutex
	reference  domain.Money
	endGen     uint64
	restartGen uint64
}

// Snapshot 某一时刻的共享状态。
type Snapshot struct {
	Reference  domain.Money
	EndGen     uint64
	RestartGen uint64
}

// New 以初始参考银行创建共享高水位。
func New(initial domain.Money) *Shared {
	return &Shared{reference: initial}
}

// Snapshot 读取当前参考银行与恢复结束代数（事务性读取）。
func (s *Shared) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Reference: s.reference, EndGen: s.endGen, RestartGen: s.restartGen}
}

// Reference 仅读取当前参考银行。
func (s *Shared) Reference() domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// Offer 提交某实例观测到的银行值；若超过全局参考则抬高之。
// 返回提交后的全局参考与是否发生抬高。参考值单调不减。
func (s *Shared) Offer(bank domain.Money) (domain.Money, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bank.GreaterThan(s.reference) {
		s.reference = bank
		return s.reference, true
	}
	return s.reference, false
}

// EndRecoveryAll 某实例的银行达到参考值时调用：
// 抬高全局参考（若需要）并递增结束代数，所有实例据此退出恢复。
func (s *Shared) EndRecoveryAll(triggerBank domain.Money) domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	if triggerBank.GreaterThan(s.reference) {
		s.reference = triggerBank
	}
	s.endGen++
	return s.reference
}

// RestartAll 显式重启（止盈或人工重置）：重定参考银行并广播重启代数。
// 这是唯一允许参考值下降的路径；Offer 的单调性只在同一重启代数内成立。
// 其余实例发现代数变化后各自以当时的银行完成本地重启。
func (s *Shared) RestartAll(newReference domain.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = newReference
	s.restartGen++
}
