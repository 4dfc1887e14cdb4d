// Package telemetry 每局结算后产出的观测事件与各路 sink。
// 遥测失败绝不影响引擎：所有 sink 都是尽力而为。
package telemetry

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/godice/internal/domain"
)

// RoundEvent 一局的完整观测记录。
type RoundEvent struct {
	BotID          string            `json:"botId"`
	Spin           int               `json:"spin"`
	Mode           domain.Mode       `json:"mode"`
	Multiplier     domain.Multiplier `json:"multiplier"`
	Stake          domain.Money      `json:"stake"`
	Won            bool              `json:"won"`
	Profit         domain.Money      `json:"profit"`
	Bank           domain.Money      `json:"bank"`
	CumulativeLoss domain.Money      `json:"cumulativeLoss"`
	HighWaterMark  domain.Money      `json:"highWaterMark"`
	Roll           decimal.Decimal   `json:"roll"`
	HasRoll        bool              `json:"hasRoll"`
	Wraps          int               `json:"wraps"`
	At             time.Time         `json:"at"`
}

// Sink 事件消费方。Emit 不得阻塞引擎循环。
type Sink interface {
	Emit(ev RoundEvent)
}

// Multi 串联多个 sink。
type Multi []Sink

// Emit 按序分发到每个 sink。
func (m Multi) Emit(ev RoundEvent) {
	for _, s := range m {
		s.Emit(ev)
	}
}
