package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

var (
	testMinStake = domain.MustMoney("0.001")
	bigBank      = decimal.NewFromInt(1000000)
)

// TestSizeForTargetBasic 测试基本定价：stake = target / (m − 1)
func TestSizeForTargetBasic(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(2), decimal.NewFromInt(1),
		testMinStake, decimal.Zero, bigBank, decimal.Zero, decimal.Zero)
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("m=2 target=1 应得 1，实际为 %s", got)
	}

	got = SizeForTarget(decimal.NewFromInt(5), decimal.NewFromInt(1),
		testMinStake, decimal.Zero, bigBank, decimal.Zero, decimal.Zero)
	if !got.Equal(domain.MustMoney("0.25")) {
		t.Errorf("m=5 target=1 应得 0.25，实际为 %s", got)
	}
}

// TestSizeForTargetMaxCap 倍数贴近 1 时公式要求爆炸性注金，必须被上限压住：
// m=1.01 target=1000 → 公式给 100000，maxStake=5 把它压到恰好 5。
func TestSizeForTargetMaxCap(t *testing.T) {
	got := SizeForTarget(domain.MustMoney("1.01"), decimal.NewFromInt(1000),
		testMinStake, decimal.NewFromInt(5), bigBank, decimal.Zero, decimal.Zero)
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("注金应被压到上限 5，实际为 %s", got)
	}
}

// TestSizeForTargetBankCap 无显式上限时银行本身就是上限
func TestSizeForTargetBankCap(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(2), decimal.NewFromInt(100),
		testMinStake, decimal.Zero, domain.MustMoney("0.5"), decimal.Zero, decimal.Zero)
	if !got.Equal(domain.MustMoney("0.5")) {
		t.Errorf("注金应被压到全额银行 0.5，实际为 %s", got)
	}
}

// TestSizeForTargetDegenerate 退化倍数 (denom <= 0) 回退到 minStake
func TestSizeForTargetDegenerate(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(1), decimal.NewFromInt(10),
		testMinStake, decimal.Zero, bigBank, decimal.Zero, decimal.Zero)
	if !got.Equal(testMinStake) {
		t.Errorf("m=1 应回退到 minStake，实际为 %s", got)
	}
}

// TestSizeForTargetMargin 安全边际把目标抬高：target=10 margin=0.1 → 11
func TestSizeForTargetMargin(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(2), decimal.NewFromInt(10),
		testMinStake, decimal.Zero, bigBank, decimal.Zero, domain.MustMoney("0.1"))
	if !got.Equal(decimal.NewFromInt(11)) {
		t.Errorf("margin=0.1 应得 11，实际为 %s", got)
	}
}

// TestSizeForTargetEdge 抽水缩小有效赔率：denom = (m−1)(1−edge)
func TestSizeForTargetEdge(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(2), decimal.NewFromInt(99),
		testMinStake, decimal.Zero, bigBank, domain.MustMoney("0.01"), decimal.Zero)
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("edge=0.01 时 99/0.99 应得 100，实际为 %s", got)
	}
}

// TestSizeForTargetMonotone 固定其余参数时，注金对目标利润单调不减
// （直到被 maxStake / bank 压住为止）
func TestSizeForTargetMonotone(t *testing.T) {
	m := decimal.NewFromInt(3)
	maxStake := decimal.NewFromInt(100)
	prev := decimal.Zero
	for target := 1; target <= 500; target += 7 {
		got := SizeForTarget(m, decimal.NewFromInt(int64(target)),
			testMinStake, maxStake, bigBank, decimal.Zero, decimal.Zero)
		if got.LessThan(prev) {
			t.Fatalf("target=%d 时注金 %s 低于前值 %s", target, got, prev)
		}
		if got.GreaterThan(maxStake) {
			t.Fatalf("注金 %s 超过上限 %s", got, maxStake)
		}
		prev = got
	}
}

// TestSizeForTargetMinFloor 目标极小时注金不低于 minStake
func TestSizeForTargetMinFloor(t *testing.T) {
	got := SizeForTarget(decimal.NewFromInt(1000), domain.MustMoney("0.00000001"),
		testMinStake, decimal.Zero, bigBank, decimal.Zero, decimal.Zero)
	if !got.Equal(testMinStake) {
		t.Errorf("微小目标应被抬到 minStake，实际为 %s", got)
	}
}
