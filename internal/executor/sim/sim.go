// Package sim 本地可证随机模拟执行器。
// 未配置 API key 时的运行模式，也是引擎测试的对手方。
package sim

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/ports"
)

var (
	defaultMinBet = domain.MustMoney("0.001")
	rollScale     = decimal.New(1, -4)
)

// Executor 内存余额 + crypto/rand 的模拟对手方。
// 胜负模型与真实服务一致：先掷 roll，roll 低于该倍数对应的
// 中奖概率即为赢，小数倍数（如 1.02）也按真实概率结算。
type Executor struct {
	mu      sync.Mutex
	balance domain.Money
	minBet  domain.Money
	edge    decimal.Decimal
}

// New 以初始余额创建模拟执行器。
func New(initialBalance domain.Money) *Executor {
	return &Executor{balance: initialBalance, minBet: defaultMinBet}
}

// SetMarket 测试用：覆盖市场参数。
func (e *Executor) SetMarket(minBet domain.Money, edgeFrac decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minBet = minBet
	e.edge = edgeFrac
}

// Settings 模拟市场参数。
func (e *Executor) Settings(ctx context.Context) (ports.MarketSettings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ports.MarketSettings{MinBet: e.minBet, EdgeFraction: e.edge}, nil
}

// CurrentBalance 当前模拟余额。
func (e *Executor) CurrentBalance(ctx context.Context) (domain.Money, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

// Place 模拟一注：roll 为 0..100 的 4 位小数，
// roll < Chance(M) 即为赢（与真实服务的 under 玩法一致）。
// 余额按 8 位截断推进。
func (e *Executor) Place(ctx context.Context, stake domain.Money, multiplier domain.Multiplier, clientSeed string) (*domain.RoundOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	roll, err := rollValue()
	if err != nil {
		return nil, err
	}
	won := roll.LessThan(domain.Chance(multiplier))

	var profit domain.Money
	if won {
		profit = stake.Mul(multiplier.Sub(decimal.NewFromInt(1)))
	} else {
		profit = stake.Neg()
	}

	e.mu.Lock()
	e.balance = domain.Quantize(e.balance.Add(profit))
	newBank := e.balance
	e.mu.Unlock()

	return &domain.RoundOutcome{
		Stake:      stake,
		Multiplier: multiplier,
		Won:        won,
		Profit:     profit,
		NewBank:    newBank,
		Roll:       roll,
		HasRoll:    true,
	}, nil
}

func rollValue() (domain.Money, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(n.Int64()).Mul(rollScale), nil
}
