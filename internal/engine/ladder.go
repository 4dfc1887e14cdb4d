package engine

import (
	"crypto/rand"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

var (
	ladderFloor   = decimal.NewFromInt(2)
	ladderCeiling = decimal.NewFromInt(20000)
)

// RecoveryLadder 恢复模式的 payout 阶梯。
// 与基础扫描器互相独立：固定步长扫描（可倒序、可跨步），
// 走到尽头时反转方向（乒乓）而不是终止；
// 或者在允许的阶梯值里均匀随机抽取（cover 变体）。
type RecoveryLadder struct {
	min        domain.Multiplier
	max        domain.Multiplier
	step       int64
	descending bool
	stride     int

	values []domain.Multiplier
	index  int
}

// NewRecoveryLadder 生成阶梯。配置防御性归一化：
// 下限压到 >= 2，上限压到 <= 20000，颠倒则交换，step/stride <= 0 取 1。
func NewRecoveryLadder(min, max domain.Multiplier, step int64, descending bool, stride int) *RecoveryLadder {
	if min.LessThan(ladderFloor) {
		min = ladderFloor
	}
	if max.GreaterThan(ladderCeiling) {
		max = ladderCeiling
	}
	if max.LessThan(min) {
		min, max = max, min
	}
	if step <= 0 {
		step = 1
	}
	if stride <= 0 {
		stride = 1
	}
	l := &RecoveryLadder{
		min:        min,
		max:        max,
		step:       step,
		descending: descending,
		stride:     stride,
	}
	l.regenerate()
	return l
}

func (l *RecoveryLadder) regenerate() {
	st := decimal.NewFromInt(l.step)
	var values []domain.Multiplier
	if l.descending {
		for cur := l.max.Floor(); cur.GreaterThanOrEqual(l.min); cur = cur.Sub(st) {
			values = append(values, cur)
		}
	} else {
		for cur := l.min.Ceil(); cur.LessThanOrEqual(l.max); cur = cur.Add(st) {
			values = append(values, cur)
		}
	}
	if len(values) == 0 {
		values = []domain.Multiplier{l.min}
	}
	l.values = values
	l.index = 0
}

// Current 当前阶梯位置的 payout。
func (l *RecoveryLadder) Current() domain.Multiplier {
	if l.index >= len(l.values) {
		l.regenerate()
	}
	return l.values[l.index]
}

// Advance 输局后前进 stride 个位置；越过尽头则反转方向并重新生成。
// 返回是否发生了反转。
func (l *RecoveryLadder) Advance() bool {
	l.index += l.stride
	if l.index >= len(l.values) {
		l.descending = !l.descending
		l.regenerate()
		return true
	}
	return false
}

// Reset 回到阶梯起点（进入恢复模式时调用）。
func (l *RecoveryLadder) Reset() {
	l.regenerate()
}

// fractionalLadder 分数 payout 阶梯：1.02, 1.1, 1.2, …, 2.0。
var fractionalLadder = func() []domain.Multiplier {
	out := []domain.Multiplier{decimal.RequireFromString("1.02")}
	for i := 11; i <= 20; i++ {
		out = append(out, decimal.New(int64(i), -1))
	}
	return out
}()

// RandomPayout 在 [min, max] 与分数阶梯的交集里均匀抽一个 payout；
// 交集为空时回退到区间内的均匀整数。抽取失败回退到 min。
func RandomPayout(min, max domain.Multiplier) domain.Multiplier {
	if max.LessThan(min) {
		min, max = max, min
	}

	var options []domain.Multiplier
	for _, v := range fractionalLadder {
		if v.GreaterThanOrEqual(min) && v.LessThanOrEqual(max) {
			options = append(options, v)
		}
	}
	if len(options) > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
		if err != nil {
			return min
		}
		return options[n.Int64()]
	}

	lo := min.Ceil().IntPart()
	hi := max.Floor().IntPart()
	if hi < lo {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return min
	}
	return decimal.NewFromInt(lo + n.Int64())
}
