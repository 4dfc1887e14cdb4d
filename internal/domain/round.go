package domain

// Mode 引擎模式标签。每一局恰好有一个模式生效；
// 按标签分派，而不是按属性存在与否分派。
type Mode string

const (
	ModeBase            Mode = "BASE"
	ModeRecovery        Mode = "RECOVERY"
	ModeRecoveryTrigger Mode = "RECOVERY_TRIGGER"
	ModePress           Mode = "PRESS"
)

// IsRecovery 判断模式是否属于恢复族（RECOVERY / RECOVERY_TRIGGER）。
func (m Mode) IsRecovery() bool {
	return m == ModeRecovery || m == ModeRecoveryTrigger
}

// RoundOutcome 外部执行器结算一局后返回的结果。
// Profit 赢时为正（stake × (multiplier − 1)，扣边前），输时等于 −stake。
// Roll 是结算该局的随机值（0..100），用于 near-miss 触发判断。
type RoundOutcome struct {
	Stake      Money
	Multiplier Multiplier
	Won        bool
	Profit     Money
	NewBank    Money
	Roll       Money
	HasRoll    bool
}
