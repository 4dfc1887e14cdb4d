package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestChance 测试倍数到胜率的换算与钳制
func TestChance(t *testing.T) {
	cases := []struct {
		m    string
		want string
	}{
		{"2", "50"},
		{"4", "25"},
		{"100", "1"},
		{"10000", "0.01"},
		{"20000", "0.01"},  // 0.005 → 钳到下限
		{"1.005", "98.99"}, // 99.50… → 钳到上限
	}
	for _, c := range cases {
		got := Chance(MustMoney(c.m))
		if !got.Equal(MustMoney(c.want)) {
			t.Errorf("Chance(%s) = %s，应该为 %s", c.m, got, c.want)
		}
	}

	// 退化输入不崩溃
	if got := Chance(decimal.Zero); !got.Equal(MaxChance) {
		t.Errorf("Chance(0) 应退回 MaxChance，实际为 %s", got)
	}
	if got := Chance(MustMoney("-3")); !got.Equal(MaxChance) {
		t.Errorf("Chance(-3) 应退回 MaxChance，实际为 %s", got)
	}
}

// TestClampMultiplier 测试倍数钳制到服务接受区间
func TestClampMultiplier(t *testing.T) {
	if got := ClampMultiplier(MustMoney("1.001")); !got.Equal(MinMultiplier) {
		t.Errorf("低于下限应钳到 %s，实际为 %s", MinMultiplier, got)
	}
	if got := ClampMultiplier(MustMoney("99999")); !got.Equal(MaxMultiplier) {
		t.Errorf("高于上限应钳到 %s，实际为 %s", MaxMultiplier, got)
	}
	if got := ClampMultiplier(MustMoney("50")); !got.Equal(MustMoney("50")) {
		t.Errorf("区间内应原样返回，实际为 %s", got)
	}
}

// TestModeIsRecovery 测试恢复族模式判断
func TestModeIsRecovery(t *testing.T) {
	if !ModeRecovery.IsRecovery() || !ModeRecoveryTrigger.IsRecovery() {
		t.Error("RECOVERY / RECOVERY_TRIGGER 应属于恢复族")
	}
	if ModeBase.IsRecovery() || ModePress.IsRecovery() {
		t.Error("BASE / PRESS 不应属于恢复族")
	}
}
