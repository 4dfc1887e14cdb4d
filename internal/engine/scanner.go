package engine

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// PayoutScanner 基础模式的线性 payout 扫描器：
// 从 start 到 max 按 step 递增，越界后回绕到 start。
// 产生无限、可重启、严格非随机的序列；wrapped 标志一轮完整扫描结束，
// 是周期末账务处理（是否进入周期后恢复）的触发点。
type PayoutScanner struct {
	start domain.Multiplier
	max   domain.Multiplier
	step  domain.Multiplier

	current     domain.Multiplier
	wrapPending bool
	wraps       int
}

// NewPayoutScanner 创建扫描器。非法配置防御性归一化而不是报错：
// 上下界颠倒则交换，step <= 0 则取 1（长时间无人值守的自动化
// 不允许因为配置错误而终止）。
func NewPayoutScanner(start, max, step domain.Multiplier) *PayoutScanner {
	if max.LessThan(start) {
		start, max = max, start
	}
	if step.LessThanOrEqual(decimal.Zero) {
		step = decimal.NewFromInt(1)
	}
	return &PayoutScanner{
		start:   start,
		max:     max,
		step:    step,
		current: start,
	}
}

// Next 返回当前 payout 并前进。
// wrapped 在"因上一次越界而重新回到 start"的那一次调用上报告：
// start=100 max=105 step=1 时，前六次依次返回 100..105 且 wrapped=false，
// 第七次返回 100 且 wrapped=true。
func (s *PayoutScanner) Next() (domain.Multiplier, bool) {
	m := s.current
	wrapped := s.wrapPending
	s.wrapPending = false
	if wrapped {
		s.wraps++
	}

	next := s.current.Add(s.step)
	if next.GreaterThan(s.max) {
		next = s.start
		s.wrapPending = true
	}
	s.current = next
	return m, wrapped
}

// Reset 回到 start，清除挂起的回绕标志。
func (s *PayoutScanner) Reset() {
	s.current = s.start
	s.wrapPending = false
}

// Start 返回扫描起点。
func (s *PayoutScanner) Start() domain.Multiplier { return s.start }

// Current 返回下一次 Next 将返回的 payout。
func (s *PayoutScanner) Current() domain.Multiplier { return s.current }

// Wraps 返回已完成的完整扫描轮数。
func (s *PayoutScanner) Wraps() int { return s.wraps }
