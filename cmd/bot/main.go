package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/controlplane/server"
	"github.com/betbot/godice/internal/engine"
	"github.com/betbot/godice/internal/executor/cryptogames"
	"github.com/betbot/godice/internal/executor/sim"
	"github.com/betbot/godice/internal/peakbank"
	"github.com/betbot/godice/internal/ports"
	"github.com/betbot/godice/internal/telemetry"
	"github.com/betbot/godice/pkg/config"
	"github.com/betbot/godice/pkg/logger"
	"github.com/betbot/godice/pkg/shutdown"
	"github.com/betbot/godice/pkg/sigchan"
	"github.com/betbot/godice/pkg/statestore"
	"github.com/betbot/godice/pkg/syncgroup"
)

func main() {
	configPath := flag.String("config", "yml/config.yaml", "配置文件路径 (yaml/json)")
	envFile := flag.String("env", ".env", "环境变量文件路径（API key 走环境变量）")
	flag.Parse()

	// .env 不存在不算错误：生产环境直接注入环境变量
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logrus.Infof("🚀 godice starting: %d bot(s), synced=%v", len(cfg.Bots), cfg.Synced)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mgr := shutdown.NewManager()

	// 银行快照库（可选）：运维重启后接着原来的恢复目标打
	var store *statestore.Store
	if cfg.State.Path != "" {
		key, err := statestore.ParseKey(os.Getenv(cfg.State.EncryptionKeyEnv))
		if err != nil {
			logrus.Errorf("解析状态库密钥失败: %v", err)
			os.Exit(1)
		}
		store, err = statestore.Open(statestore.OpenOptions{Path: cfg.State.Path, EncryptionKey: key})
		if err != nil {
			logrus.Errorf("打开状态库失败: %v", err)
			os.Exit(1)
		}
		mgr.OnShutdown("statestore", func(ctx context.Context) { _ = store.Close() })
	}

	// 遥测 sink 链：日志行 + sqlite 流水 + websocket 广播
	sinks := telemetry.Multi{telemetry.NewLogSink()}
	var journal *telemetry.Journal
	if cfg.Journal.Path != "" {
		journal, err = telemetry.NewJournal(cfg.Journal.Path)
		if err != nil {
			logrus.Errorf("打开局流水库失败: %v", err)
			os.Exit(1)
		}
		sinks = append(sinks, journal)
		mgr.OnShutdown("journal", func(ctx context.Context) { _ = journal.Close() })
	}
	var hub *telemetry.Hub
	if cfg.ControlPlane.Listen != "" {
		hub = telemetry.NewHub()
		sinks = append(sinks, hub)
		mgr.OnShutdown("ws-hub", func(ctx context.Context) { hub.Close() })
	}

	// 同步部署共享一个高水位；否则每实例各自一个
	var sharedPeak *peakbank.Shared
	if cfg.Synced {
		sharedPeak = peakbank.New(decimal.Zero)
	}

	registry := server.NewRegistry()
	sg := syncgroup.NewSyncGroup()

	for _, bot := range cfg.Bots {
		bot := bot
		eng, runner, err := buildBot(ctx, bot, sharedPeak, sinks, store)
		if err != nil {
			logrus.Errorf("❌ [%s] 初始化失败: %v", bot.ID, err)
			os.Exit(1)
		}
		registry.Register(eng)
		sg.Add(func() {
			if err := runner.Run(ctx); err != nil {
				logrus.Errorf("❌ [%s] runner 退出: %v", bot.ID, err)
			}
		})
	}

	// 控制面（可选）
	if cfg.ControlPlane.Listen != "" {
		srv := server.New(registry, journal, hub)
		go func() {
			if err := srv.Start(cfg.ControlPlane.Listen); err != nil {
				logrus.Errorf("控制面退出: %v", err)
			}
		}()
		mgr.OnShutdown("control-plane", func(ctx context.Context) { _ = srv.Close(ctx) })
	}

	sg.Run()

	// 全部实例自然退出（比如都打光了）也触发整体停机
	go func() {
		sg.Wait()
		cancel()
	}()

	<-ctx.Done()
	logrus.Infof("🛑 shutting down ...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	sg.Wait()
	mgr.Shutdown(shutdownCtx)
	logrus.Infof("✅ bye")
}

// buildBot 组装一个实例：执行器、引擎（含落盘恢复）、快照写盘、循环。
func buildBot(ctx context.Context, bot config.BotConfig, sharedPeak *peakbank.Shared, sinks telemetry.Multi, store *statestore.Store) (*engine.Engine, *engine.Runner, error) {
	var (
		executor ports.BetExecutor
		balance  ports.BalanceSource
		settings ports.SettingsSource
	)

	apiKey := bot.APIKey()
	if apiKey == "" {
		// 无 API key → 模拟模式
		simExec := sim.New(bot.InitialBank)
		executor, balance, settings = simExec, simExec, simExec
		logrus.Infof("▶ [%s] SIM mode: start balance=%s", bot.ID, bot.InitialBank.StringFixed(8))
	} else {
		cg := cryptogames.New(bot.BaseURL, bot.Coin, apiKey)
		executor, balance, settings = cg, cg, cg
		logrus.Infof("▶ [%s] LIVE mode: coin=%s", bot.ID, bot.Coin)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	initialBank, err := balance.CurrentBalance(fetchCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("拉取初始余额: %w", err)
	}

	// 落盘快照优先：重启后沿用原来的基线与账本
	var restored *statestore.Snapshot
	if store != nil {
		if snap, found, err := store.Load(bot.ID); err != nil {
			logrus.Warnf("⚠️ [%s] 读取快照失败，按全新实例启动: %v", bot.ID, err)
		} else if found {
			restored = &snap
		}
	}

	peak := sharedPeak
	if peak == nil {
		peak = peakbank.New(initialBank)
	}

	base := initialBank
	if restored != nil && restored.InitialBank.GreaterThan(decimal.Zero) {
		base = restored.InitialBank
	}
	eng := engine.New(bot.ID, bot.Engine, base, peak)
	if restored != nil {
		peak.Offer(restored.HighWaterMark)
		eng.RestoreLedger(restored.CumulativeLoss, restored.AllTimeLoss)
		logrus.Infof("🔄 [%s] restored snapshot: initial=%s hwm=%s cum_loss=%s",
			bot.ID, restored.InitialBank.StringFixed(8),
			restored.HighWaterMark.StringFixed(8), restored.CumulativeLoss.StringFixed(8))
	}

	save := newSnapshotSaver(ctx, bot.ID, store)
	runner := engine.NewRunner(eng, executor, balance, settings, sinks, save, bot.Runner)
	return eng, runner, nil
}

// newSnapshotSaver 逐局快照写盘，经 sigchan 合并：
// 引擎循环只更新最新状态并发信号，真正的 badger 写入在后台做。
func newSnapshotSaver(ctx context.Context, botID string, store *statestore.Store) func(engine.State) {
	if store == nil {
		return nil
	}

	var (
		mu     sync.Mutex
		latest engine.State
		dirty  bool
	)
	ch := sigchan.New(1)

	persist := func() {
		mu.Lock()
		st, ok := latest, dirty
		dirty = false
		mu.Unlock()
		if !ok {
			return
		}
		snap := statestore.Snapshot{
			InitialBank:    st.InitialBank,
			HighWaterMark:  st.HighWaterMark,
			CumulativeLoss: st.CumulativeLoss,
			AllTimeLoss:    st.AllTimeLoss,
		}
		if err := store.Save(botID, snap); err != nil {
			logrus.Warnf("⚠️ [%s] 快照写盘失败: %v", botID, err)
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				persist() // 收尾落一次
				return
			case <-ch.C():
				persist()
			}
		}
	}()

	return func(st engine.State) {
		mu.Lock()
		latest = st
		dirty = true
		mu.Unlock()
		ch.Emit()
	}
}
