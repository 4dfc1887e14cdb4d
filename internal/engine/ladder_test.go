package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// TestLadderPingPong 测试阶梯的乒乓反转：
// [6,4,2] 倒序走到尽头后反转为 [2,4,6]，永不终止。
func TestLadderPingPong(t *testing.T) {
	l := NewRecoveryLadder(decimal.NewFromInt(2), decimal.NewFromInt(6), 2, true, 1)

	want := []int64{6, 4, 2}
	for _, w := range want {
		if !l.Current().Equal(decimal.NewFromInt(w)) {
			t.Fatalf("倒序阶梯应为 %d，实际为 %s", w, l.Current())
		}
		l.Advance()
	}

	// 第三次 Advance 越过尽头 → 方向反转，从 2 升序重走
	if !l.Current().Equal(decimal.NewFromInt(2)) {
		t.Fatalf("反转后应从 2 开始，实际为 %s", l.Current())
	}
	l.Advance()
	if !l.Current().Equal(decimal.NewFromInt(4)) {
		t.Fatalf("升序第二步应为 4，实际为 %s", l.Current())
	}
}

// TestLadderAdvanceReportsReversal 测试 Advance 的反转返回值
func TestLadderAdvanceReportsReversal(t *testing.T) {
	l := NewRecoveryLadder(decimal.NewFromInt(2), decimal.NewFromInt(4), 2, false, 1)
	// 升序 [2,4]
	if l.Advance() {
		t.Error("未到尽头不应报告反转")
	}
	if !l.Advance() {
		t.Error("越过尽头应报告反转")
	}
}

// TestLadderStride 测试跨步前进
func TestLadderStride(t *testing.T) {
	l := NewRecoveryLadder(decimal.NewFromInt(2), decimal.NewFromInt(10), 1, false, 3)
	// 升序 [2..10]，stride=3：2 → 5 → 8 → 反转
	if !l.Current().Equal(decimal.NewFromInt(2)) {
		t.Fatalf("起点应为 2，实际为 %s", l.Current())
	}
	l.Advance()
	if !l.Current().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("跨步后应为 5，实际为 %s", l.Current())
	}
}

// TestLadderClamp 测试配置钳制：下限 >= 2，上限 <= 20000
func TestLadderClamp(t *testing.T) {
	l := NewRecoveryLadder(decimal.NewFromInt(1), decimal.NewFromInt(50000), 1, true, 1)
	if !l.Current().Equal(decimal.NewFromInt(20000)) {
		t.Errorf("倒序起点应被钳到 20000，实际为 %s", l.Current())
	}

	l2 := NewRecoveryLadder(decimal.Zero, decimal.NewFromInt(5), 1, false, 1)
	if !l2.Current().Equal(decimal.NewFromInt(2)) {
		t.Errorf("升序起点应被钳到 2，实际为 %s", l2.Current())
	}
}

// TestLadderReset 测试 Reset 回到阶梯起点
func TestLadderReset(t *testing.T) {
	l := NewRecoveryLadder(decimal.NewFromInt(50), decimal.NewFromInt(1000), 2, true, 1)
	l.Advance()
	l.Advance()
	l.Reset()
	if !l.Current().Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Reset 后应回到 1000，实际为 %s", l.Current())
	}
}

// TestRandomPayoutFractional 分数阶梯区间内均匀抽取
func TestRandomPayoutFractional(t *testing.T) {
	lo, hi := domain.MustMoney("1.02"), decimal.NewFromInt(2)
	for i := 0; i < 50; i++ {
		m := RandomPayout(lo, hi)
		if m.LessThan(lo) || m.GreaterThan(hi) {
			t.Fatalf("抽取值 %s 越界 [%s, %s]", m, lo, hi)
		}
	}
}

// TestRandomPayoutIntegerFallback 分数阶梯与区间无交集时回退到均匀整数
func TestRandomPayoutIntegerFallback(t *testing.T) {
	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(60)
	for i := 0; i < 50; i++ {
		m := RandomPayout(lo, hi)
		if m.LessThan(lo) || m.GreaterThan(hi) {
			t.Fatalf("抽取值 %s 越界 [50, 60]", m)
		}
		if !m.Equal(m.Floor()) {
			t.Fatalf("回退路径应产生整数，实际为 %s", m)
		}
	}
}

// TestRandomPayoutSwapsBounds 颠倒的上下界被交换而不是报错
func TestRandomPayoutSwapsBounds(t *testing.T) {
	m := RandomPayout(decimal.NewFromInt(60), decimal.NewFromInt(50))
	if m.LessThan(decimal.NewFromInt(50)) || m.GreaterThan(decimal.NewFromInt(60)) {
		t.Errorf("颠倒上下界后抽取值 %s 越界", m)
	}
}
