package domain

import (
	"github.com/shopspring/decimal"
)

// Money 精确十进制金额（余额、注金、盈亏），不允许浮点漂移。
// 发送给外部执行器之前必须先 Quantize。
type Money = decimal.Decimal

// MoneyDigits 注金网格的小数位数（与 dice API 的最小精度一致）。
const MoneyDigits = 8

// SmallestUnit 可表示的最小注金单位（1e-8）。
var SmallestUnit = decimal.New(1, -MoneyDigits)

// Zero 零金额。
var Zero = decimal.Zero

// Quantize 将金额截断（永不向上取整）到注金网格。
// 截断而不是银行家舍入：引擎绝不能高估自己付得起的注金。
// 幂等：Quantize(Quantize(x)) == Quantize(x)。
func Quantize(x Money) Money {
	return x.Truncate(MoneyDigits)
}

// SafeParse 防御性解析外部数值载荷。
// 任何解析失败都返回 def，而不是让畸形遥测数据把引擎打挂。
func SafeParse(raw string, def Money) Money {
	if raw == "" {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return d
}

// SafeParseFloat 同 SafeParse，但输入来自 JSON 数值字段。
// NaN/Inf 一律回退到 def。
func SafeParseFloat(raw float64, def Money) Money {
	if raw != raw || raw > 1e30 || raw < -1e30 {
		return def
	}
	return decimal.NewFromFloat(raw)
}

// MustMoney 从字符串字面量构造 Money，仅用于常量与测试。
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}
