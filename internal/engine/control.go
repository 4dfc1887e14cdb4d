package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// ErrEngineStopped 实例已被永久停止（Stop 或资金耗尽后）。
var ErrEngineStopped = fmt.Errorf("engine stopped")

// State 引擎某一时刻的只读快照，供控制面、遥测与状态落盘使用。
type State struct {
	ID                string       `json:"id"`
	Mode              domain.Mode  `json:"mode"`
	Spin              int          `json:"spin"`
	InitialBank       domain.Money `json:"initialBank"`
	HighWaterMark     domain.Money `json:"highWaterMark"`
	CumulativeLoss    domain.Money `json:"cumulativeLoss"`
	AllTimeLoss       domain.Money `json:"allTimeLoss"`
	RecoveryLosses    domain.Money `json:"recoveryLosses"`
	RecoverySpins     int          `json:"recoverySpins"`
	ConsecutiveLosses int          `json:"consecutiveLosses"`
	ScannerWraps      int          `json:"scannerWraps"`
	Paused            bool         `json:"paused"`
	Stopped           bool         `json:"stopped"`
	PostSLLock        bool         `json:"postStopLossLock"`
}

// Snapshot 当前状态快照。局间调用安全。
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		ID:                e.id,
		Mode:              e.currentMode(),
		Spin:              e.spin,
		InitialBank:       e.initialBank,
		HighWaterMark:     e.dd.Reference(),
		CumulativeLoss:    e.cumulativeLoss,
		AllTimeLoss:       e.allTimeLoss,
		RecoveryLosses:    e.recoveryLosses,
		RecoverySpins:     e.recoverySpins,
		ConsecutiveLosses: e.consecutiveLosses,
		ScannerWraps:      e.scanner.Wraps(),
		Paused:            e.paused || time.Now().Before(e.pausedUntil),
		Stopped:           e.stopped,
		PostSLLock:        e.postSLLock,
	}
}

func (e *Engine) currentMode() domain.Mode {
	switch {
	case e.press.active:
		return domain.ModePress
	case e.inRecovery:
		return domain.ModeRecovery
	default:
		return domain.ModeBase
	}
}

// Pause 暂停实例。正在进行的一局跑完，循环在下一局开头停住。
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	log.Infof("⏸ [%s] paused", e.id)
}

// Resume 解除手动暂停。不解除全局止损的冷却窗口。
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	log.Infof("▶ [%s] resumed", e.id)
}

// IsPaused 暂停门：手动暂停或冷却窗口内均为 true。循环每局开头检查。
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused || time.Now().Before(e.pausedUntil)
}

// Stop 永久停止实例（资金耗尽或外部下线）。
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	log.Infof("🛑 [%s] stopped", e.id)
}

// Stopped 实例是否已永久停止。
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Restart 以新的初始银行重新开始（止盈或人工重置）。
// 重启是全队事件：本实例清账并把共享参考重定到新银行
// （参考值唯一允许下降的路径），同队其他实例收到广播后
// 在下一局开头各自以当时的银行重启——绝不把别人留在
// 参考值被拉低、账本被清掉的半截恢复里。
func (e *Engine) Restart(newInitialBank domain.Money) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetForRestart(newInitialBank)
	e.dd.RestartAll(newInitialBank)
	log.Infof("🔄 [%s] restarted: initial_bank=%s", e.id, newInitialBank.StringFixed(8))
}

// resetForRestart 清空账本与模式状态，回到全新基线。调用方持锁。
func (e *Engine) resetForRestart(newInitialBank domain.Money) {
	e.initialBank = newInitialBank
	e.cumulativeLoss = decimal.Zero
	e.allTimeLoss = decimal.Zero
	e.inRecovery = false
	e.activationLoss = decimal.Zero
	e.recoveryLosses = decimal.Zero
	e.recoverySpins = 0
	e.consecutiveLosses = 0
	e.hasLastRoll = false
	e.lastSpinWasLoss = false
	e.hasCycleStart = false
	e.press = pressState{}
	e.postSLLock = false
	e.pausedUntil = time.Time{}
	e.scanner.Reset()
	e.ladder.Reset()
}

// ForceEndRecovery 人工强制结束恢复（本实例触发，广播到全体）。
func (e *Engine) ForceEndRecovery() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inRecovery {
		return
	}
	e.dd.EndRecoveryAll(e.dd.Reference())
	e.exitRecovery(true, "forced")
}

// RestoreLedger 从落盘快照恢复账本，实例启动时调用一次。
// 让运维重启后接着原来的恢复目标打，而不是重新基线。
func (e *Engine) RestoreLedger(cumulativeLoss, allTimeLoss domain.Money) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cumulativeLoss.GreaterThan(decimal.Zero) {
		e.cumulativeLoss = cumulativeLoss
	}
	if allTimeLoss.GreaterThan(decimal.Zero) {
		e.allTimeLoss = allTimeLoss
	}
}
