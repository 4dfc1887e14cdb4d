package engine

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/peakbank"
)

// DrawdownTracker 维护参考银行（高水位）并计算当前回撤。
// 同步部署中参考值来自共享的 peakbank.Shared（全体实例的最大高水位），
// 本地字段只是每局开头刷新的读穿缓存。
type DrawdownTracker struct {
	peak *peakbank.Shared

	reference  domain.Money
	endGen     uint64
	restartGen uint64
}

// NewDrawdownTracker 绑定共享高水位。
func NewDrawdownTracker(peak *peakbank.Shared) *DrawdownTracker {
	snap := peak.Snapshot()
	return &DrawdownTracker{
		peak:       peak,
		reference:  snap.Reference,
		endGen:     snap.EndGen,
		restartGen: snap.RestartGen,
	}
}

// Refresh 每局开头刷新读穿缓存。
// 返回自上次刷新以来是否发生过全局恢复结束广播 / 全队重启广播。
func (t *DrawdownTracker) Refresh() (ended, restarted bool) {
	snap := t.peak.Snapshot()
	t.reference = snap.Reference
	ended = snap.EndGen != t.endGen
	restarted = snap.RestartGen != t.restartGen
	t.endGen = snap.EndGen
	t.restartGen = snap.RestartGen
	return ended, restarted
}

// Offer 任意一局的 new_bank 超过高水位时立即抬高之（单调不减）。
func (t *DrawdownTracker) Offer(newBank domain.Money) bool {
	ref, raised := t.peak.Offer(newBank)
	t.reference = ref
	return raised
}

// EndRecoveryAll 向所有实例广播恢复结束。
func (t *DrawdownTracker) EndRecoveryAll(triggerBank domain.Money) {
	t.reference = t.peak.EndRecoveryAll(triggerBank)
	t.endGen = t.peak.Snapshot().EndGen
}

// RestartAll 重定参考银行并向全队广播重启（止盈或人工重置）。
// 参考值唯一允许下降的路径。触发方自己的代数同步跟进，
// 不会在下一局把自己再重启一遍。
func (t *DrawdownTracker) RestartAll(newReference domain.Money) {
	t.peak.RestartAll(newReference)
	snap := t.peak.Snapshot()
	t.reference = snap.Reference
	t.endGen = snap.EndGen
	t.restartGen = snap.RestartGen
}

// Reference 当前参考银行（缓存值）。
func (t *DrawdownTracker) Reference() domain.Money { return t.reference }

// Drawdown 当前回撤 = max(0, reference − bank)。
func (t *DrawdownTracker) Drawdown(bank domain.Money) domain.Money {
	dd := t.reference.Sub(bank)
	if dd.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return dd
}

// RelativeDrawdown 相对回撤 clamp((reference − bank) / reference, 0, 1)；
// reference <= 0 时为 0。用于放大恢复激进度。
func (t *DrawdownTracker) RelativeDrawdown(bank domain.Money) decimal.Decimal {
	if t.reference.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	rel := t.reference.Sub(bank).Div(t.reference)
	if rel.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if rel.GreaterThan(one) {
		return one
	}
	return rel
}
