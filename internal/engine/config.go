package engine

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// 默认值来自长期跑下来最稳的一组参数。
var (
	DefaultBaseBet        = domain.MustMoney("0.001")
	DefaultMinBetEnforced = domain.MustMoney("0.001")
	DefaultMaxBetLimit    = domain.MustMoney("1.0")

	DefaultScanStart = decimal.NewFromInt(100)
	DefaultScanMax   = decimal.NewFromInt(9999)

	DefaultRecoveryPayoutMin = decimal.NewFromInt(50)
	DefaultRecoveryPayoutMax = decimal.NewFromInt(1000)

	DefaultPctActivation     = decimal.RequireFromString("0.5")
	DefaultPctRecoveryLosses = decimal.RequireFromString("0.5")
	DefaultDrawdownIntensity = decimal.RequireFromString("0.5")
	DefaultBetCapPctOfBank   = decimal.RequireFromString("0.01")

	DefaultTriggerRollThreshold = decimal.RequireFromString("95.0")
	DefaultTriggerPayout        = decimal.NewFromInt(5)

	DefaultPressBandMin       = decimal.NewFromInt(5)
	DefaultPressBandMax       = decimal.NewFromInt(8)
	DefaultPressRollThreshold = decimal.RequireFromString("90.0")
	DefaultPressPayout        = decimal.NewFromInt(10)
	DefaultPressStakeMultiple = decimal.NewFromInt(2)

	DefaultBaseCoverAfterSL = decimal.RequireFromString("0.30")

	highrollThreshold = decimal.RequireFromString("99.0")
	highrollPayout    = decimal.NewFromInt(100)
)

const (
	DefaultMaxConsecutiveLosses = 50
	DefaultRecoveryPayoutStep   = 2
	DefaultRecoverySpinStride   = 1
	DefaultRecoveryMaxSpins     = 100
	DefaultPressRounds          = 2
	DefaultCooldownSeconds      = 600
)

// Config 单个引擎实例的策略配置。
// 由 pkg/config 从配置文件 + 环境变量构建（decimal 字段从文件里的
// float/string 经 SafeParse 转换），这里只持运行时形态。
type Config struct {
	// ===== 注金基础参数 =====
	BaseBet        domain.Money `json:"baseBet"`        // 基础模式固定注金
	MinBetEnforced domain.Money `json:"minBetEnforced"` // 强制最小注金（与服务端 MinBet 取大）
	MaxBetLimit    domain.Money `json:"maxBetLimit"`    // 单局注金硬上限

	// ===== 基础模式（payout 扫描） =====
	ScanStart domain.Multiplier `json:"scanStart"` // 扫描起点
	ScanMax   domain.Multiplier `json:"scanMax"`   // 扫描终点（含）
	ScanStep  domain.Multiplier `json:"scanStep"`  // 扫描步长

	CoverBase     bool            `json:"coverBase"`     // cover 变体：base 注按累计亏损定价
	CoverFraction decimal.Decimal `json:"coverFraction"` // 覆盖比例（默认 1 = 全覆盖）

	// ===== 进入恢复的条件 =====
	MaxConsecutiveLosses int             `json:"maxConsecutiveLosses"` // base 连输多少局进恢复（0 关闭）
	DrawdownThreshold    domain.Money    `json:"drawdownThreshold"`    // 距高水位的绝对回撤阈值（0 关闭）
	DrawdownPctThreshold decimal.Decimal `json:"drawdownPctThreshold"` // 相对回撤阈值 0..1（0 关闭）

	// ===== 恢复模式 =====
	RecoveryPayoutMin    domain.Multiplier `json:"recoveryPayoutMin"`
	RecoveryPayoutMax    domain.Multiplier `json:"recoveryPayoutMax"`
	RecoveryPayoutStep   int64             `json:"recoveryPayoutStep"`
	RecoveryAscending    bool              `json:"recoveryAscending"`    // true = min→max（默认倒序 max→min）
	RecoverySpinStride   int               `json:"recoverySpinStride"`   // 每局跨过的阶梯元素数
	RecoveryRandomPayout bool              `json:"recoveryRandomPayout"` // 分数阶梯均匀抽取

	PctActivation     decimal.Decimal `json:"pctActivation"`     // 回撤覆盖比例
	PctRecoveryLosses decimal.Decimal `json:"pctRecoveryLosses"` // 恢复期亏损覆盖比例
	DrawdownIntensity decimal.Decimal `json:"drawdownIntensity"` // 0..1 相对回撤对目标的放大强度
	BetCapPctOfBank   decimal.Decimal `json:"betCapPctOfBank"`   // 注金占当前银行上限（强制，防倍数贴 1 时爆注）
	RecoveryMaxSpins  int             `json:"recoveryMaxSpins"`  // 恢复局数预算（0 = 不限）
	RecoveryStopLoss  domain.Money    `json:"recoveryStopLoss"`  // 恢复期亏损硬止损（0 关闭）
	BaseCoverAfterSL  decimal.Decimal `json:"baseCoverAfterSL"`  // 止损后 base 的降级覆盖比例

	// ===== 同局升级（RECOVERY_TRIGGER） =====
	TriggerRollThreshold decimal.Decimal   `json:"triggerRollThreshold"` // 上一局 roll ≥ 此值触发
	TriggerPctBank       decimal.Decimal   `json:"triggerPctBank"`       // 目标 = 银行 × 此比例（0 关闭）
	TriggerPayout        domain.Multiplier `json:"triggerPayout"`        // 触发局固定 payout

	// ===== Press（赢后短促升级） =====
	EnablePress        bool              `json:"enablePress"`
	PressBandMin       domain.Multiplier `json:"pressBandMin"`
	PressBandMax       domain.Multiplier `json:"pressBandMax"`
	PressRollThreshold decimal.Decimal   `json:"pressRollThreshold"`
	PressPayout        domain.Multiplier `json:"pressPayout"`
	PressStakeMultiple decimal.Decimal   `json:"pressStakeMultiple"` // 注金 = 倍数 × baseBet
	PressRounds        int               `json:"pressRounds"`
	EnableHighroll99   bool              `json:"enableHighroll99"`   // roll ≥ 99 → payout 100

	// ===== 全局止损 =====
	GlobalStopLoss  domain.Money `json:"globalStopLoss"`  // 对全期亏损的止损（0 关闭）
	CooldownSeconds int          `json:"cooldownSeconds"` // 全局止损后的冷却窗口

	// ===== 定价修正 =====
	MarginFraction decimal.Decimal `json:"marginFraction"` // 目标利润安全边际
}

// ApplyDefaults 填默认值。零值字段一律视为未设置。
func (c *Config) ApplyDefaults() {
	if c.BaseBet.IsZero() {
		c.BaseBet = DefaultBaseBet
	}
	if c.MinBetEnforced.IsZero() {
		c.MinBetEnforced = DefaultMinBetEnforced
	}
	if c.MaxBetLimit.IsZero() {
		c.MaxBetLimit = DefaultMaxBetLimit
	}
	if c.ScanStart.IsZero() {
		c.ScanStart = DefaultScanStart
	}
	if c.ScanMax.IsZero() {
		c.ScanMax = DefaultScanMax
	}
	if c.ScanStep.IsZero() {
		c.ScanStep = decimal.NewFromInt(1)
	}
	if c.CoverFraction.IsZero() {
		c.CoverFraction = one
	}
	if c.MaxConsecutiveLosses == 0 {
		c.MaxConsecutiveLosses = DefaultMaxConsecutiveLosses
	}
	if c.RecoveryPayoutMin.IsZero() {
		c.RecoveryPayoutMin = DefaultRecoveryPayoutMin
	}
	if c.RecoveryPayoutMax.IsZero() {
		c.RecoveryPayoutMax = DefaultRecoveryPayoutMax
	}
	if c.RecoveryPayoutStep == 0 {
		c.RecoveryPayoutStep = DefaultRecoveryPayoutStep
	}
	if c.RecoverySpinStride == 0 {
		c.RecoverySpinStride = DefaultRecoverySpinStride
	}
	if c.PctActivation.IsZero() {
		c.PctActivation = DefaultPctActivation
	}
	if c.PctRecoveryLosses.IsZero() {
		c.PctRecoveryLosses = DefaultPctRecoveryLosses
	}
	if c.DrawdownIntensity.IsZero() {
		c.DrawdownIntensity = DefaultDrawdownIntensity
	}
	if c.BetCapPctOfBank.IsZero() {
		c.BetCapPctOfBank = DefaultBetCapPctOfBank
	}
	if c.RecoveryMaxSpins == 0 {
		c.RecoveryMaxSpins = DefaultRecoveryMaxSpins
	}
	if c.BaseCoverAfterSL.IsZero() {
		c.BaseCoverAfterSL = DefaultBaseCoverAfterSL
	}
	if c.TriggerRollThreshold.IsZero() {
		c.TriggerRollThreshold = DefaultTriggerRollThreshold
	}
	if c.TriggerPayout.IsZero() {
		c.TriggerPayout = DefaultTriggerPayout
	}
	if c.PressBandMin.IsZero() {
		c.PressBandMin = DefaultPressBandMin
	}
	if c.PressBandMax.IsZero() {
		c.PressBandMax = DefaultPressBandMax
	}
	if c.PressRollThreshold.IsZero() {
		c.PressRollThreshold = DefaultPressRollThreshold
	}
	if c.PressPayout.IsZero() {
		c.PressPayout = DefaultPressPayout
	}
	if c.PressStakeMultiple.IsZero() {
		c.PressStakeMultiple = DefaultPressStakeMultiple
	}
	if c.PressRounds == 0 {
		c.PressRounds = DefaultPressRounds
	}
	if c.CooldownSeconds == 0 {
		c.CooldownSeconds = DefaultCooldownSeconds
	}
}

// Normalize 防御性归一化：长时间无人值守的自动化里，
// 配置错误必须被修正（交换/钳制）而不是向上传播。
func (c *Config) Normalize() {
	if c.BaseBet.LessThanOrEqual(decimal.Zero) {
		c.BaseBet = DefaultBaseBet
	}
	if c.MinBetEnforced.LessThanOrEqual(decimal.Zero) {
		c.MinBetEnforced = DefaultMinBetEnforced
	}
	if c.MaxBetLimit.LessThanOrEqual(decimal.Zero) {
		c.MaxBetLimit = DefaultMaxBetLimit
	}
	if c.ScanMax.LessThan(c.ScanStart) {
		c.ScanStart, c.ScanMax = c.ScanMax, c.ScanStart
	}
	if c.ScanStep.LessThanOrEqual(decimal.Zero) {
		c.ScanStep = decimal.NewFromInt(1)
	}
	if c.CoverFraction.LessThanOrEqual(decimal.Zero) || c.CoverFraction.GreaterThan(one) {
		c.CoverFraction = one
	}
	if c.MaxConsecutiveLosses < 0 {
		c.MaxConsecutiveLosses = 0
	}
	if c.DrawdownThreshold.LessThan(decimal.Zero) {
		c.DrawdownThreshold = decimal.Zero
	}
	if c.DrawdownPctThreshold.LessThan(decimal.Zero) || c.DrawdownPctThreshold.GreaterThan(one) {
		c.DrawdownPctThreshold = decimal.Zero
	}
	if c.RecoveryPayoutMax.LessThan(c.RecoveryPayoutMin) {
		c.RecoveryPayoutMin, c.RecoveryPayoutMax = c.RecoveryPayoutMax, c.RecoveryPayoutMin
	}
	if c.RecoveryPayoutStep <= 0 {
		c.RecoveryPayoutStep = DefaultRecoveryPayoutStep
	}
	if c.RecoverySpinStride <= 0 {
		c.RecoverySpinStride = DefaultRecoverySpinStride
	}
	if c.DrawdownIntensity.LessThan(decimal.Zero) {
		c.DrawdownIntensity = decimal.Zero
	}
	if c.DrawdownIntensity.GreaterThan(one) {
		c.DrawdownIntensity = one
	}
	if c.BetCapPctOfBank.LessThanOrEqual(decimal.Zero) {
		c.BetCapPctOfBank = DefaultBetCapPctOfBank
	}
	if c.RecoveryMaxSpins < 0 {
		c.RecoveryMaxSpins = 0
	}
	if c.BaseCoverAfterSL.LessThanOrEqual(decimal.Zero) || c.BaseCoverAfterSL.GreaterThan(one) {
		c.BaseCoverAfterSL = DefaultBaseCoverAfterSL
	}
	if c.PressBandMax.LessThan(c.PressBandMin) {
		c.PressBandMin, c.PressBandMax = c.PressBandMax, c.PressBandMin
	}
	if c.PressRounds <= 0 {
		c.PressRounds = DefaultPressRounds
	}
	if c.PressStakeMultiple.LessThanOrEqual(decimal.Zero) {
		c.PressStakeMultiple = DefaultPressStakeMultiple
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = DefaultCooldownSeconds
	}
	if c.MarginFraction.LessThan(decimal.Zero) {
		c.MarginFraction = decimal.Zero
	}
	c.TriggerPayout = domain.ClampMultiplier(c.TriggerPayout)
	c.PressPayout = domain.ClampMultiplier(c.PressPayout)
}
