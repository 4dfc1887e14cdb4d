// Package ports 定义引擎与外部世界之间的边界接口。
// 引擎只依赖这些契约，不关心对面是真实 API 还是本地模拟。
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// MarketSettings 服务端下发的市场参数。
type MarketSettings struct {
	MinBet       domain.Money    // 服务端最小注金
	EdgeFraction decimal.Decimal // 抽水比例（0.01 = 1%）
}

// BetExecutor 下注执行器：提交一注并阻塞到结算。
// 实现必须是可区分错误的：网络/服务端错误返回 error，
// 正常的输局不是错误。
type BetExecutor interface {
	Place(ctx context.Context, stake domain.Money, multiplier domain.Multiplier, clientSeed string) (*domain.RoundOutcome, error)
}

// BalanceSource 余额源：每局开始前刷新权威银行值。
type BalanceSource interface {
	CurrentBalance(ctx context.Context) (domain.Money, error)
}

// SettingsSource 市场参数源（最小注金、抽水），循环按节流周期刷新。
type SettingsSource interface {
	Settings(ctx context.Context) (MarketSettings, error)
}
