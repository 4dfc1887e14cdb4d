package engine

import (
	"testing"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/peakbank"
)

// TestDrawdownMath 测试回撤与相对回撤计算
func TestDrawdownMath(t *testing.T) {
	peak := peakbank.New(domain.MustMoney("100"))
	d := NewDrawdownTracker(peak)

	if got := d.Drawdown(domain.MustMoney("90")); !got.Equal(domain.MustMoney("10")) {
		t.Errorf("Drawdown(90) 应为 10，实际为 %s", got)
	}
	if got := d.Drawdown(domain.MustMoney("110")); !got.IsZero() {
		t.Errorf("银行高于参考时回撤应为 0，实际为 %s", got)
	}
	if got := d.RelativeDrawdown(domain.MustMoney("90")); !got.Equal(domain.MustMoney("0.1")) {
		t.Errorf("RelativeDrawdown(90) 应为 0.1，实际为 %s", got)
	}
	// 钳制到 [0, 1]
	if got := d.RelativeDrawdown(domain.MustMoney("-50")); !got.Equal(domain.MustMoney("1")) {
		t.Errorf("相对回撤应钳到 1，实际为 %s", got)
	}
	if got := d.RelativeDrawdown(domain.MustMoney("120")); !got.IsZero() {
		t.Errorf("银行高于参考时相对回撤应为 0，实际为 %s", got)
	}
}

// TestDrawdownZeroReference 参考 <= 0 时相对回撤为 0
func TestDrawdownZeroReference(t *testing.T) {
	peak := peakbank.New(domain.Zero)
	d := NewDrawdownTracker(peak)
	if got := d.RelativeDrawdown(domain.MustMoney("10")); !got.IsZero() {
		t.Errorf("参考为 0 时相对回撤应为 0，实际为 %s", got)
	}
}

// TestRefreshDetectsGlobalEnd 测试全局恢复结束广播的读穿检测
func TestRefreshDetectsGlobalEnd(t *testing.T) {
	peak := peakbank.New(domain.MustMoney("100"))
	d := NewDrawdownTracker(peak)

	if ended, _ := d.Refresh(); ended {
		t.Error("没有广播时 Refresh 不应报告结束")
	}

	peak.EndRecoveryAll(domain.MustMoney("100"))
	if ended, _ := d.Refresh(); !ended {
		t.Error("广播后第一次 Refresh 应报告结束")
	}
	if ended, _ := d.Refresh(); ended {
		t.Error("同一次广播只应报告一次")
	}
}

// TestRefreshPicksUpSharedReference 其他实例抬高参考后本地缓存跟进
func TestRefreshPicksUpSharedReference(t *testing.T) {
	peak := peakbank.New(domain.MustMoney("100"))
	a := NewDrawdownTracker(peak)
	b := NewDrawdownTracker(peak)

	a.Offer(domain.MustMoney("120"))
	b.Refresh()
	if got := b.Reference(); !got.Equal(domain.MustMoney("120")) {
		t.Errorf("B 刷新后应读到 120，实际为 %s", got)
	}
}

// TestDrawdownRestartAll 测试止盈重启的参考重定与全队广播
func TestDrawdownRestartAll(t *testing.T) {
	peak := peakbank.New(domain.MustMoney("100"))
	a := NewDrawdownTracker(peak)
	b := NewDrawdownTracker(peak)

	a.RestartAll(domain.MustMoney("60"))
	if got := a.Reference(); !got.Equal(domain.MustMoney("60")) {
		t.Errorf("RestartAll 后参考应为 60，实际为 %s", got)
	}
	// 触发方自己的代数已同步，下一次 Refresh 不再报告
	if ended, restarted := a.Refresh(); ended || restarted {
		t.Error("RestartAll 后触发方的 Refresh 不应报告广播")
	}
	// 同队的其他实例在下一次刷新时收到重启广播
	if _, restarted := b.Refresh(); !restarted {
		t.Error("同队实例的 Refresh 应报告重启广播")
	}
	if _, restarted := b.Refresh(); restarted {
		t.Error("同一次重启只应报告一次")
	}
}
