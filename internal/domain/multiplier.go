package domain

import (
	"github.com/shopspring/decimal"
)

// Multiplier 单局选择的赔付倍数，隐式决定胜率 chance = 100 / multiplier。
type Multiplier = decimal.Decimal

var (
	// MinMultiplier 服务接受的最小倍数。
	MinMultiplier = decimal.RequireFromString("1.01")
	// MaxMultiplier 服务接受的最大倍数。
	MaxMultiplier = decimal.NewFromInt(20000)

	// MinChance / MaxChance dice 服务接受的胜率区间（百分比）。
	MinChance = decimal.RequireFromString("0.01")
	MaxChance = decimal.RequireFromString("98.99")

	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Chance 由倍数推导胜率（百分比），并收敛到服务接受的区间。
// 倍数 <= 0 时回退到 MaxChance（退化输入不让引擎崩溃）。
func Chance(m Multiplier) decimal.Decimal {
	if m.LessThanOrEqual(decimal.Zero) {
		return MaxChance
	}
	c := hundred.Div(m)
	if c.LessThan(MinChance) {
		return MinChance
	}
	if c.GreaterThan(MaxChance) {
		return MaxChance
	}
	return c
}

// ClampMultiplier 将倍数收敛到服务接受的 [MinMultiplier, MaxMultiplier]。
func ClampMultiplier(m Multiplier) Multiplier {
	if m.LessThan(MinMultiplier) {
		return MinMultiplier
	}
	if m.GreaterThan(MaxMultiplier) {
		return MaxMultiplier
	}
	return m
}
