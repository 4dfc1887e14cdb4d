package sim

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// TestPlaceSettlesBalance 测试结算后的余额推进与盈亏符号
func TestPlaceSettlesBalance(t *testing.T) {
	ex := New(domain.MustMoney("100"))
	stake := domain.MustMoney("0.001")
	m := decimal.NewFromInt(2)

	before, _ := ex.CurrentBalance(context.Background())
	out, err := ex.Place(context.Background(), stake, m, "seed")
	if err != nil {
		t.Fatalf("Place 失败: %v", err)
	}
	after, _ := ex.CurrentBalance(context.Background())

	if out.Won {
		if !out.Profit.Equal(stake) {
			t.Errorf("M=2 赢局利润应为 stake，实际为 %s", out.Profit)
		}
	} else {
		if !out.Profit.Equal(stake.Neg()) {
			t.Errorf("输局利润应为 -stake，实际为 %s", out.Profit)
		}
	}
	if !after.Equal(domain.Quantize(before.Add(out.Profit))) {
		t.Errorf("余额应按利润推进: %s + %s ≠ %s", before, out.Profit, after)
	}
	if !out.NewBank.Equal(after) {
		t.Errorf("NewBank 应等于结算后余额，实际为 %s / %s", out.NewBank, after)
	}
}

// TestPlaceRollRange roll 始终落在 [0, 100) 且带 4 位小数精度
func TestPlaceRollRange(t *testing.T) {
	ex := New(domain.MustMoney("100"))
	for i := 0; i < 50; i++ {
		out, err := ex.Place(context.Background(), domain.MustMoney("0.001"), decimal.NewFromInt(10), "seed")
		if err != nil {
			t.Fatalf("Place 失败: %v", err)
		}
		if !out.HasRoll {
			t.Fatal("模拟执行器应总是返回 roll")
		}
		if out.Roll.LessThan(decimal.Zero) || out.Roll.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			t.Fatalf("roll %s 越界 [0, 100)", out.Roll)
		}
	}
}

// TestPlaceWinMatchesRollChance 胜负必须由 roll 与中奖概率决定：
// 任意倍数下 Won == (Roll < Chance(M))，小数倍数也不例外。
func TestPlaceWinMatchesRollChance(t *testing.T) {
	ex := New(domain.MustMoney("1000"))
	for _, m := range []string{"1.02", "1.5", "2", "6.66", "100", "9999"} {
		mult := domain.MustMoney(m)
		for i := 0; i < 30; i++ {
			out, err := ex.Place(context.Background(), domain.MustMoney("0.001"), mult, "seed")
			if err != nil {
				t.Fatalf("Place 失败: %v", err)
			}
			if out.Won != out.Roll.LessThan(domain.Chance(mult)) {
				t.Fatalf("M=%s roll=%s 时胜负 %v 与中奖概率不符", m, out.Roll, out.Won)
			}
		}
	}
}

// TestPlaceFractionalPayoutWinRate 小数倍数按真实概率赢：
// M=1.02 的中奖概率约 98%，300 局不可能只赢一半。
func TestPlaceFractionalPayoutWinRate(t *testing.T) {
	ex := New(domain.MustMoney("1000"))
	mult := domain.MustMoney("1.02")

	wins := 0
	for i := 0; i < 300; i++ {
		out, err := ex.Place(context.Background(), domain.MustMoney("0.001"), mult, "seed")
		if err != nil {
			t.Fatalf("Place 失败: %v", err)
		}
		if out.Won {
			wins++
		}
		if out.Won && !out.Profit.Equal(domain.MustMoney("0.00002")) {
			t.Fatalf("M=1.02 赢局利润应为 stake×0.02，实际为 %s", out.Profit)
		}
	}
	if wins < 250 {
		t.Errorf("M=1.02 的 300 局应赢约 98%%，实际只赢 %d 局", wins)
	}
}

// TestPlaceRespectsContext 已取消的 ctx 直接报错
func TestPlaceRespectsContext(t *testing.T) {
	ex := New(domain.MustMoney("100"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ex.Place(ctx, domain.MustMoney("0.001"), decimal.NewFromInt(2), "seed"); err == nil {
		t.Error("已取消的 ctx 应返回错误")
	}
}

// TestSettings 测试市场参数默认值与覆盖
func TestSettings(t *testing.T) {
	ex := New(domain.MustMoney("100"))
	s, err := ex.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings 失败: %v", err)
	}
	if !s.MinBet.Equal(domain.MustMoney("0.001")) {
		t.Errorf("默认 MinBet 应为 0.001，实际为 %s", s.MinBet)
	}

	ex.SetMarket(domain.MustMoney("0.01"), domain.MustMoney("0.008"))
	s, _ = ex.Settings(context.Background())
	if !s.MinBet.Equal(domain.MustMoney("0.01")) || !s.EdgeFraction.Equal(domain.MustMoney("0.008")) {
		t.Errorf("覆盖后的市场参数不正确: %s / %s", s.MinBet, s.EdgeFraction)
	}
}
