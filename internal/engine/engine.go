package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/peakbank"
)

var log = logrus.WithField("component", "engine")

// ErrInsufficientFunds 当前银行低于强制最小注金，本实例无法继续下注。
// 只停本实例的循环，不影响进程内其他实例。
var ErrInsufficientFunds = fmt.Errorf("insufficient funds for minimum stake")

// Decision 一局的下注决策：模式、倍数、注金。
type Decision struct {
	Mode       domain.Mode
	Multiplier domain.Multiplier
	Stake      domain.Money
	Chance     decimal.Decimal
	Wrapped    bool // 基础扫描器本局发生回绕
}

// pressState Press 升级的短生命周期状态。
type pressState struct {
	active bool
	left   int
	payout domain.Multiplier
}

// Engine 策略与恢复引擎：逐局决定倍数与注金，
// 并根据结算结果维护回撤、累计亏损与模式迁移。
//
// 单实例内严格串行（cumulative_loss、高水位、模式迁移都依赖局序）；
// 跨实例只共享 peakbank.Shared 一个可变对象。
// 控制面方法（Pause/Resume/Restart/ForceEndRecovery）可在局间异步调用。
type Engine struct {
	mu  sync.Mutex
	id  string
	cfg Config

	scanner *PayoutScanner
	ladder  *RecoveryLadder
	dd      *DrawdownTracker

	// 银行账本
	initialBank    domain.Money
	cumulativeLoss domain.Money // 上一次合格赢局以来输掉的注金
	allTimeLoss    domain.Money // 全期亏损累计（全局止损用）

	// 恢复状态
	inRecovery     bool
	activationLoss domain.Money // 进入恢复时相对 initial_bank 的亏损（逐局重算）
	recoveryLosses domain.Money // 恢复期内输掉的注金
	recoverySpins  int

	// 局间记忆
	lastRoll          domain.Money
	hasLastRoll       bool
	consecutiveLosses int
	lastSpinWasLoss   bool
	bankAtCycleStart  domain.Money
	hasCycleStart     bool

	press      pressState
	postSLLock bool // 恢复止损后 base 锁定降级覆盖，直到下一次赢

	// 控制面
	paused      bool
	pausedUntil time.Time
	stopped     bool

	// 服务端设置（局间刷新）
	minBet    domain.Money
	houseEdge decimal.Decimal

	spin int
}

// New 创建引擎实例。cfg 会被 ApplyDefaults + Normalize。
func New(id string, cfg Config, initialBank domain.Money, peak *peakbank.Shared) *Engine {
	cfg.ApplyDefaults()
	cfg.Normalize()
	e := &Engine{
		id:          id,
		cfg:         cfg,
		scanner:     NewPayoutScanner(cfg.ScanStart, cfg.ScanMax, cfg.ScanStep),
		ladder:      NewRecoveryLadder(cfg.RecoveryPayoutMin, cfg.RecoveryPayoutMax, cfg.RecoveryPayoutStep, !cfg.RecoveryAscending, cfg.RecoverySpinStride),
		dd:          NewDrawdownTracker(peak),
		initialBank: initialBank,
	}
	peak.Offer(initialBank)
	e.dd.Refresh()
	return e
}

// ID 实例标识。
func (e *Engine) ID() string { return e.id }

// Config 返回归一化后的配置副本。
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetMarketSettings 局间刷新服务端下发的最小注金与抽水比例。
func (e *Engine) SetMarketSettings(minBet domain.Money, edgeFrac decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minBet.GreaterThan(decimal.Zero) {
		e.minBet = minBet
	}
	if edgeFrac.GreaterThanOrEqual(decimal.Zero) && edgeFrac.LessThan(one) {
		e.houseEdge = edgeFrac
	}
}

// effectiveMinStake 强制最小注金：服务端 MinBet 与配置 MinBetEnforced 取大。
func (e *Engine) effectiveMinStake() domain.Money {
	min := e.cfg.MinBetEnforced
	if e.minBet.GreaterThan(min) {
		min = e.minBet
	}
	return min
}

// Decide 在局前决定本局的模式、倍数与注金。
// bank 是刚从余额源刷新的权威值。
// 返回 ErrInsufficientFunds 表示银行已低于强制最小注金，实例应停止。
func (e *Engine) Decide(bank domain.Money) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return Decision{}, ErrEngineStopped
	}

	// 读穿刷新共享参考。全队重启广播优先：以当前银行完成本地重启；
	// 否则发现全局恢复结束广播则立刻退出恢复。
	ended, restarted := e.dd.Refresh()
	switch {
	case restarted:
		e.resetForRestart(bank)
		e.dd.Offer(bank)
		log.Infof("🔄 [%s] restarted (fleet broadcast): initial_bank=%s", e.id, bank.StringFixed(8))
	case ended && e.inRecovery:
		e.exitRecovery(true, "global sync")
	}

	if !e.hasCycleStart {
		e.bankAtCycleStart = bank
		e.hasCycleStart = true
	}

	// 进入恢复的条件在每局开头用新银行值评估。
	if !e.inRecovery && !e.press.active {
		e.maybeStartRecovery(bank)
	}

	minEff := e.effectiveMinStake()
	if bank.LessThan(minEff) {
		return Decision{}, ErrInsufficientFunds
	}

	var d Decision
	switch {
	case e.press.active && e.press.left > 0:
		d = e.decidePress()
	case e.inRecovery:
		d = e.decideRecovery(bank, minEff)
	default:
		d = e.decideBase(bank, minEff)
	}

	d.Stake = domain.Quantize(d.Stake)

	// 注金超过银行：银行仍高于强制最小值时压到全额银行继续，
	// 而不是放弃本局。
	if d.Stake.GreaterThan(bank) {
		d.Stake = domain.Quantize(bank)
	}
	d.Chance = domain.Chance(d.Multiplier)
	return d, nil
}

func (e *Engine) decideBase(bank, minEff domain.Money) Decision {
	m, wrapped := e.scanner.Next()

	stake := e.cfg.BaseBet
	if stake.LessThan(minEff) {
		stake = minEff
	}

	// cover 变体：base 注按"赢一局收回全部累计亏损"定价；
	// 止损锁生效时只覆盖其中一部分。
	if e.cfg.CoverBase && e.cumulativeLoss.GreaterThan(decimal.Zero) {
		frac := e.cfg.CoverFraction
		if e.postSLLock {
			frac = e.cfg.BaseCoverAfterSL
		}
		target := e.cumulativeLoss.Mul(frac)
		stake = SizeForTarget(m, target, minEff, e.cfg.MaxBetLimit, bank, e.houseEdge, e.cfg.MarginFraction)
	}

	return Decision{Mode: domain.ModeBase, Multiplier: m, Stake: stake, Wrapped: wrapped}
}

func (e *Engine) decideRecovery(bank, minEff domain.Money) Decision {
	// 进入恢复后 activation loss 逐局相对 initial_bank 重算。
	dyn := e.initialBank.Sub(bank)
	if dyn.LessThan(decimal.Zero) {
		dyn = decimal.Zero
	}
	e.activationLoss = dyn

	// 上一局 roll 越过 near-miss 阈值 → 同局升级：固定低倍数，
	// 目标为当前银行的一个比例而不是回撤的比例。
	if e.hasLastRoll && e.cfg.TriggerPctBank.GreaterThan(decimal.Zero) &&
		e.lastRoll.GreaterThanOrEqual(e.cfg.TriggerRollThreshold) {
		e.hasLastRoll = false // 触发即消耗，下一局回到普通恢复账务
		base := bank
		if base.LessThanOrEqual(decimal.Zero) {
			base = e.initialBank
		}
		target := e.cfg.TriggerPctBank.Mul(base)
		stake := e.sizeRecoveryStake(e.cfg.TriggerPayout, target, bank, minEff)
		return Decision{Mode: domain.ModeRecoveryTrigger, Multiplier: e.cfg.TriggerPayout, Stake: stake}
	}

	var m domain.Multiplier
	if e.cfg.RecoveryRandomPayout {
		m = RandomPayout(e.cfg.RecoveryPayoutMin, e.cfg.RecoveryPayoutMax)
	} else {
		m = e.ladder.Current()
	}

	// 目标 = 回撤覆盖 + 恢复期亏损覆盖，按相对回撤放大。
	target := e.cfg.PctActivation.Mul(e.activationLoss).
		Add(e.cfg.PctRecoveryLosses.Mul(e.recoveryLosses))
	rel := e.dd.RelativeDrawdown(bank)
	target = target.Mul(one.Add(e.cfg.DrawdownIntensity.Mul(rel)))

	stake := e.sizeRecoveryStake(m, target, bank, minEff)
	return Decision{Mode: domain.ModeRecovery, Multiplier: m, Stake: stake}
}

// sizeRecoveryStake 恢复路径的定价：银行百分比上限是强制项，
// 没有它，倍数贴近 1 时 SizeForTarget 会要求无界注金。
func (e *Engine) sizeRecoveryStake(m domain.Multiplier, target, bank, minEff domain.Money) domain.Money {
	cap := bank.Mul(e.cfg.BetCapPctOfBank)
	maxStake := e.cfg.MaxBetLimit
	if cap.LessThan(maxStake) {
		maxStake = cap
	}
	return SizeForTarget(m, target, minEff, maxStake, bank, e.houseEdge, e.cfg.MarginFraction)
}

func (e *Engine) decidePress() Decision {
	stake := e.cfg.BaseBet.Mul(e.cfg.PressStakeMultiple)
	if stake.GreaterThan(e.cfg.MaxBetLimit) {
		stake = e.cfg.MaxBetLimit
	}
	return Decision{Mode: domain.ModePress, Multiplier: e.press.payout, Stake: stake}
}

// maybeStartRecovery 评估三个入口条件：连输局数、绝对回撤、相对回撤。
func (e *Engine) maybeStartRecovery(bank domain.Money) {
	if e.cfg.MaxConsecutiveLosses > 0 && e.consecutiveLosses >= e.cfg.MaxConsecutiveLosses {
		e.startRecovery(bank, "consecutive losses")
		return
	}
	if e.cfg.DrawdownThreshold.GreaterThan(decimal.Zero) &&
		e.dd.Drawdown(bank).GreaterThanOrEqual(e.cfg.DrawdownThreshold) {
		e.startRecovery(bank, "absolute drawdown")
		return
	}
	if e.cfg.DrawdownPctThreshold.GreaterThan(decimal.Zero) &&
		e.dd.RelativeDrawdown(bank).GreaterThanOrEqual(e.cfg.DrawdownPctThreshold) {
		e.startRecovery(bank, "relative drawdown")
	}
}

func (e *Engine) startRecovery(bank domain.Money, reason string) {
	act := e.initialBank.Sub(bank)
	if act.LessThan(decimal.Zero) {
		act = decimal.Zero
	}
	e.inRecovery = true
	e.activationLoss = act
	e.recoveryLosses = decimal.Zero
	e.recoverySpins = 0
	e.consecutiveLosses = 0
	e.ladder.Reset()
	log.Infof("▶ [%s] Recovery ON (%s): act_loss=%s ref=%s", e.id, reason, act.StringFixed(8), e.dd.Reference().StringFixed(8))
}

// exitRecovery 退出恢复。reset=true 时同时清零累计亏损
// （只有银行回到参考值或全局广播才允许 reset）。
func (e *Engine) exitRecovery(reset bool, reason string) {
	e.inRecovery = false
	e.recoveryLosses = decimal.Zero
	e.recoverySpins = 0
	if reset {
		e.cumulativeLoss = decimal.Zero
		e.postSLLock = false
	}
	e.scanner.Reset()
	log.Infof("▶ [%s] Recovery OFF (%s)", e.id, reason)
}

// Settle 用外部执行器返回的结算结果推进状态机。
// 必须与产生该局的 Decision 严格配对、按局序调用。
func (e *Engine) Settle(d Decision, out domain.RoundOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.spin++
	if out.HasRoll {
		e.lastRoll = out.Roll
		e.hasLastRoll = true
	} else {
		e.hasLastRoll = false
	}

	if out.Won {
		e.settleWin(d, out)
	} else {
		e.settleLoss(d, out)
	}

	// 周期末账务：整轮扫描净亏且最后一局是输 → 进入周期后恢复。
	if d.Wrapped && d.Mode == domain.ModeBase {
		cycleResult := out.NewBank.Sub(e.bankAtCycleStart)
		if cycleResult.LessThan(decimal.Zero) && e.lastSpinWasLoss && !e.inRecovery {
			e.startRecovery(out.NewBank, "negative scan cycle")
		}
		e.bankAtCycleStart = out.NewBank
	}
}

func (e *Engine) settleWin(d Decision, out domain.RoundOutcome) {
	e.lastSpinWasLoss = false

	// 高水位立即抬高（单调，同步部署中全体实例共享）。
	e.dd.Offer(out.NewBank)

	switch {
	case d.Mode == domain.ModePress:
		// Press 第一局赢即结束，回到之前的模式。
		e.press = pressState{}
	case d.Mode.IsRecovery():
		if out.NewBank.GreaterThanOrEqual(e.dd.Reference()) {
			// 任意实例的银行回到共享参考 → 全体恢复结束。
			e.dd.EndRecoveryAll(out.NewBank)
			e.exitRecovery(true, "reference bank reached")
		}
		// 未达参考值：留在恢复，累计亏损保持，阶梯继续。
	default:
		// BASE 赢：累计亏损清零，止损锁解除。
		e.cumulativeLoss = decimal.Zero
		e.consecutiveLosses = 0
		e.postSLLock = false
	}

	e.maybeActivatePress(d, out)
}

func (e *Engine) settleLoss(d Decision, out domain.RoundOutcome) {
	e.lastSpinWasLoss = true
	e.cumulativeLoss = e.cumulativeLoss.Add(d.Stake)
	e.allTimeLoss = e.allTimeLoss.Add(d.Stake)

	switch {
	case d.Mode == domain.ModePress:
		e.press.left--
		if e.press.left <= 0 {
			e.press = pressState{}
		}
	case d.Mode.IsRecovery():
		e.recoveryLosses = e.recoveryLosses.Add(d.Stake)
		e.recoverySpins++
		if d.Mode == domain.ModeRecovery && !e.cfg.RecoveryRandomPayout {
			if e.ladder.Advance() {
				log.Infof("▶ [%s] Recovery ladder reversed", e.id)
			}
		}
		// 恢复期硬止损：退回 BASE 但不清累计亏损，base 锁定降级覆盖。
		if e.cfg.RecoveryStopLoss.GreaterThan(decimal.Zero) &&
			e.recoveryLosses.GreaterThanOrEqual(e.cfg.RecoveryStopLoss) {
			e.exitRecovery(false, "recovery stop-loss")
			e.postSLLock = true
		} else if e.cfg.RecoveryMaxSpins > 0 && e.recoverySpins >= e.cfg.RecoveryMaxSpins {
			e.exitRecovery(false, "spin budget exhausted")
		}
	default:
		e.consecutiveLosses++
	}

	// 全局止损：清零累计亏损并整体冷却，之后从 BASE 继续。
	if e.cfg.GlobalStopLoss.GreaterThan(decimal.Zero) &&
		e.allTimeLoss.GreaterThanOrEqual(e.cfg.GlobalStopLoss) {
		e.cumulativeLoss = decimal.Zero
		e.allTimeLoss = decimal.Zero
		if e.inRecovery {
			e.exitRecovery(false, "global stop-loss")
		}
		e.pausedUntil = time.Now().Add(time.Duration(e.cfg.CooldownSeconds) * time.Second)
		log.Warnf("⛔ [%s] GLOBAL STOP-LOSS: cumulative loss reset, cooldown %ds", e.id, e.cfg.CooldownSeconds)
	}
}

// maybeActivatePress 赢局后的 Press 触发：
// 倍数落在配置区间且 roll 越过 near-miss 阈值。
// highroll99 变体优先：roll ≥ 99 直接升级到 payout 100。
func (e *Engine) maybeActivatePress(d Decision, out domain.RoundOutcome) {
	if !e.cfg.EnablePress || e.press.active || !out.Won || !out.HasRoll {
		return
	}
	if d.Mode == domain.ModePress {
		return
	}
	if e.cfg.EnableHighroll99 && out.Roll.GreaterThanOrEqual(highrollThreshold) {
		e.press = pressState{active: true, left: e.cfg.PressRounds, payout: highrollPayout}
		log.Infof("▶ [%s] Press start: payout=%s (%d rounds) reason=highroll99", e.id, highrollPayout, e.cfg.PressRounds)
		return
	}
	inBand := d.Multiplier.GreaterThanOrEqual(e.cfg.PressBandMin) &&
		d.Multiplier.LessThanOrEqual(e.cfg.PressBandMax)
	if inBand && out.Roll.GreaterThanOrEqual(e.cfg.PressRollThreshold) {
		e.press = pressState{active: true, left: e.cfg.PressRounds, payout: e.cfg.PressPayout}
		log.Infof("▶ [%s] Press start: payout=%s (%d rounds) reason=near-miss", e.id, e.cfg.PressPayout, e.cfg.PressRounds)
	}
}
