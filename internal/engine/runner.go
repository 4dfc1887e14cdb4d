package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/ports"
	"github.com/betbot/godice/internal/telemetry"
)

const (
	DefaultSpeedMs             = 50
	minSpeedMs                 = 10
	DefaultSettingsRefreshSecs = 30
	DefaultSeedRotateRounds    = 5
	transientBackoff           = 1 * time.Second
	pausePollInterval          = 250 * time.Millisecond
)

// RunnerConfig 循环节奏参数。
type RunnerConfig struct {
	SpeedMs             int          `json:"speedMs"`             // 局间间隔（下限 10ms）
	SettingsRefreshSecs int          `json:"settingsRefreshSecs"` // 市场参数刷新节流
	SeedRotateRounds    int          `json:"seedRotateRounds"`    // 每 N 局换一次 client seed
	TakeProfit          domain.Money `json:"takeProfit"`          // 全局止盈（0 关闭）
}

// ApplyDefaults 填默认节奏。
func (c *RunnerConfig) ApplyDefaults() {
	if c.SpeedMs == 0 {
		c.SpeedMs = DefaultSpeedMs
	}
	if c.SpeedMs < minSpeedMs {
		c.SpeedMs = minSpeedMs
	}
	if c.SettingsRefreshSecs <= 0 {
		c.SettingsRefreshSecs = DefaultSettingsRefreshSecs
	}
	if c.SeedRotateRounds <= 0 {
		c.SeedRotateRounds = DefaultSeedRotateRounds
	}
}

// Runner 单实例的串行下注循环。
// 每局严格走完 决策→下注→结算→遥测→落盘 再进下一局，
// 局内永不并发（账本依赖局序）。
type Runner struct {
	eng      *Engine
	executor ports.BetExecutor
	balance  ports.BalanceSource
	settings ports.SettingsSource
	sink     telemetry.Sink
	save     func(State)

	cfg     RunnerConfig
	log     *logrus.Entry
	backoff time.Duration

	clientSeed   string
	lastSettings time.Time

	// pending 已决策但尚未成交的一局。执行器瞬时失败后原样重提，
	// 直到成交为止——重试绝不重新 Decide（那会推进扫描器、消耗触发 roll）。
	pending *Decision
}

// NewRunner 组装循环。sink、save 可为 nil（不观测 / 不落盘）。
func NewRunner(eng *Engine, executor ports.BetExecutor, balance ports.BalanceSource, settings ports.SettingsSource, sink telemetry.Sink, save func(State), cfg RunnerConfig) *Runner {
	cfg.ApplyDefaults()
	return &Runner{
		eng:      eng,
		executor: executor,
		balance:  balance,
		settings: settings,
		sink:     sink,
		save:     save,
		cfg:      cfg,
		log:      logrus.WithField("bot", eng.ID()),
		backoff:  transientBackoff,
	}
}

// Run 跑循环直到 ctx 取消、实例停止或资金耗尽。
// 资金耗尽返回 ErrInsufficientFunds，其余正常退出返回 nil。
func (r *Runner) Run(ctx context.Context) error {
	r.log.Infof("🚀 runner started (speed=%dms)", r.cfg.SpeedMs)
	defer r.log.Infof("🛑 runner exited")

	r.rotateSeed()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if r.eng.Stopped() {
			return nil
		}

		// 暂停门：手动暂停与全局止损冷却都在这里等。
		if r.eng.IsPaused() {
			if !sleepCtx(ctx, pausePollInterval) {
				return nil
			}
			continue
		}

		r.refreshSettings(ctx)

		bank, err := r.balance.CurrentBalance(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warnf("⚠️ balance fetch failed: %v", err)
			if !sleepCtx(ctx, transientBackoff) {
				return nil
			}
			continue
		}

		// 有未成交的决策时跳过止盈与重新决策，原参数重提。
		if r.pending == nil {
			r.maybeTakeProfit(bank)

			d, err := r.eng.Decide(bank)
			switch {
			case err == ErrInsufficientFunds:
				r.log.Errorf("❌ insufficient funds: bank=%s", bank.StringFixed(8))
				r.eng.Stop()
				return ErrInsufficientFunds
			case err == ErrEngineStopped:
				return nil
			case err != nil:
				return err
			}
			r.pending = &d
		}

		d := *r.pending
		out, err := r.place(ctx, d)
		if err != nil {
			// 瞬时执行器错误：本局未成立，不动任何状态，退避后重来。
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		r.pending = nil

		r.eng.Settle(d, *out)
		r.observe(d, *out)

		if !sleepCtx(ctx, time.Duration(r.cfg.SpeedMs)*time.Millisecond) {
			return nil
		}
	}
}

// place 提交一注。失败时记日志并退避，让外层以同一局重试。
func (r *Runner) place(ctx context.Context, d Decision) (*domain.RoundOutcome, error) {
	out, err := r.executor.Place(ctx, d.Stake, d.Multiplier, r.clientSeed)
	if err != nil {
		r.log.Warnf("⚠️ place failed (mode=%s M=%s bet=%s): %v", d.Mode, d.Multiplier, d.Stake.StringFixed(8), err)
		sleepCtx(ctx, r.backoff)
		return nil, err
	}
	return out, nil
}

func (r *Runner) observe(d Decision, out domain.RoundOutcome) {
	snap := r.eng.Snapshot()

	if snap.Spin%r.cfg.SeedRotateRounds == 0 {
		r.rotateSeed()
	}
	if r.sink != nil {
		r.sink.Emit(telemetry.RoundEvent{
			BotID:          snap.ID,
			Spin:           snap.Spin,
			Mode:           d.Mode,
			Multiplier:     d.Multiplier,
			Stake:          d.Stake,
			Won:            out.Won,
			Profit:         out.Profit,
			Bank:           out.NewBank,
			CumulativeLoss: snap.CumulativeLoss,
			HighWaterMark:  snap.HighWaterMark,
			Roll:           out.Roll,
			HasRoll:        out.HasRoll,
			Wraps:          snap.ScannerWraps,
			At:             time.Now(),
		})
	}
	if r.save != nil {
		r.save(snap)
	}
}

// refreshSettings 按节流周期刷新服务端市场参数。失败不中断循环。
func (r *Runner) refreshSettings(ctx context.Context) {
	if r.settings == nil {
		return
	}
	if time.Since(r.lastSettings) < time.Duration(r.cfg.SettingsRefreshSecs)*time.Second {
		return
	}
	r.lastSettings = time.Now()

	s, err := r.settings.Settings(ctx)
	if err != nil {
		r.log.Warnf("⚠️ settings fetch failed: %v", err)
		return
	}
	r.eng.SetMarketSettings(s.MinBet, s.EdgeFraction)
	r.log.Infof("🔎 settings: min_bet=%s edge=%s", s.MinBet, s.EdgeFraction)
}

// maybeTakeProfit 全局止盈：盈利达标即以当前银行为新基线重启。
func (r *Runner) maybeTakeProfit(bank domain.Money) {
	if r.cfg.TakeProfit.LessThanOrEqual(decimal.Zero) {
		return
	}
	profit := bank.Sub(r.eng.Snapshot().InitialBank)
	if profit.GreaterThanOrEqual(r.cfg.TakeProfit) {
		r.log.Infof("💰 take-profit hit: profit=%s, rebasing to %s", profit.StringFixed(8), bank.StringFixed(8))
		r.eng.Restart(bank)
	}
}

func (r *Runner) rotateSeed() {
	r.clientSeed = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// sleepCtx 可取消的 sleep。返回 false 表示 ctx 已取消。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
