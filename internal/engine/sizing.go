package engine

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

var one = decimal.NewFromInt(1)

// SizeForTarget 计算"赢一局即可拿到 targetProfit"的最小注金。
//
// 每一种恢复/覆盖策略最终都归结为用不同的 targetProfit 调这个公式：
//
//	denom    = (multiplier − 1) × (1 − edgeFrac)
//	adjusted = targetProfit × (1 + marginFrac)
//	stake    = adjusted / denom，再做 min(maxStake, bank)、max(minStake) 钳制
//
// marginFrac 把目标抬高一点，补偿抽水与舍入，保证赢局的实际利润
// 不低于 targetProfit。denom <= 0（退化倍数）时回退到 minStake。
//
// 危险区：multiplier 贴近 1 时 denom 趋零、注金爆炸。
// 恢复路径的调用方必须额外用"当前银行百分比"上限压住
// （把 maxStake 换成 min(maxStake, bank×capPct) 传进来）——
// 这是调用方的义务，不是公式的缺陷。
func SizeForTarget(
	m domain.Multiplier,
	targetProfit domain.Money,
	minStake, maxStake domain.Money,
	bank domain.Money,
	edgeFrac, marginFrac decimal.Decimal,
) domain.Money {
	denom := m.Sub(one)
	if edgeFrac.GreaterThan(decimal.Zero) && edgeFrac.LessThan(one) {
		denom = denom.Mul(one.Sub(edgeFrac))
	}
	if denom.LessThanOrEqual(decimal.Zero) {
		return domain.Quantize(minStake)
	}

	adjusted := targetProfit
	if marginFrac.GreaterThan(decimal.Zero) {
		adjusted = adjusted.Mul(one.Add(marginFrac))
	}

	stake := domain.Quantize(adjusted.Div(denom))

	if maxStake.GreaterThan(decimal.Zero) && stake.GreaterThan(maxStake) {
		stake = maxStake
	}
	if stake.GreaterThan(bank) {
		stake = bank
	}
	if stake.LessThan(minStake) {
		stake = minStake
	}
	if stake.LessThanOrEqual(decimal.Zero) {
		stake = domain.SmallestUnit
	}
	return domain.Quantize(stake)
}
