// Package config 应用配置：YAML/JSON 配置文件 + GODICE_ 前缀环境变量覆盖。
// 金额与比例在文件里是 float/string，加载时经 SafeParse 转成 decimal，
// 解析失败一律退回默认值而不是中断启动。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/engine"
	"github.com/betbot/godice/pkg/logger"
)

// Config 应用配置（运行时形态）。
type Config struct {
	Logging      logger.Config
	ControlPlane ControlPlaneConfig
	Journal      JournalConfig
	State        StateConfig
	Synced       bool // 多实例共享高水位（全局恢复联动）
	Bots         []BotConfig
}

// ControlPlaneConfig 控制面监听配置。
type ControlPlaneConfig struct {
	Listen string // 为空则不启动控制面
}

// JournalConfig 局流水库配置。
type JournalConfig struct {
	Path string // 为空则不落流水
}

// StateConfig 银行快照库配置。
type StateConfig struct {
	Path             string // 为空则不落快照
	EncryptionKeyEnv string // 持 32 字节密钥的环境变量名（可选）
}

// BotConfig 单实例配置（运行时形态）。
type BotConfig struct {
	ID          string
	Coin        string
	APIKeyEnv   string // 持 API key 的环境变量名；key 本身不进配置文件
	BaseURL     string
	InitialBank domain.Money // 模拟模式的起始余额
	Engine      engine.Config
	Runner      engine.RunnerConfig
}

// APIKey 从环境读 API key。为空表示模拟模式。
func (b *BotConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// ---- 文件形态 ----

type fileConfig struct {
	Logging struct {
		Level      string `yaml:"level" json:"level"`
		OutputFile string `yaml:"outputFile" json:"outputFile"`
		MaxSize    int    `yaml:"maxSize" json:"maxSize"`
		MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
		MaxAge     int    `yaml:"maxAge" json:"maxAge"`
		Compress   bool   `yaml:"compress" json:"compress"`
	} `yaml:"logging" json:"logging"`
	ControlPlane struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"controlPlane" json:"controlPlane"`
	Journal struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"journal" json:"journal"`
	State struct {
		Path             string `yaml:"path" json:"path"`
		EncryptionKeyEnv string `yaml:"encryptionKeyEnv" json:"encryptionKeyEnv"`
	} `yaml:"state" json:"state"`
	Synced bool      `yaml:"synced" json:"synced"`
	Bots   []botFile `yaml:"bots" json:"bots"`
}

type botFile struct {
	ID          string  `yaml:"id" json:"id"`
	Coin        string  `yaml:"coin" json:"coin"`
	APIKeyEnv   string  `yaml:"apiKeyEnv" json:"apiKeyEnv"`
	BaseURL     string  `yaml:"baseUrl" json:"baseUrl"`
	InitialBank float64 `yaml:"initialBank" json:"initialBank"`

	// 注金
	BaseBet        float64 `yaml:"baseBet" json:"baseBet"`
	MinBetEnforced float64 `yaml:"minBetEnforced" json:"minBetEnforced"`
	MaxBetLimit    float64 `yaml:"maxBetLimit" json:"maxBetLimit"`

	// 基础扫描
	ScanStart     float64 `yaml:"scanStart" json:"scanStart"`
	ScanMax       float64 `yaml:"scanMax" json:"scanMax"`
	ScanStep      float64 `yaml:"scanStep" json:"scanStep"`
	CoverBase     bool    `yaml:"coverBase" json:"coverBase"`
	CoverFraction float64 `yaml:"coverFraction" json:"coverFraction"`

	// 恢复入口
	MaxConsecutiveLosses int     `yaml:"maxConsecutiveLosses" json:"maxConsecutiveLosses"`
	DrawdownThreshold    float64 `yaml:"drawdownThreshold" json:"drawdownThreshold"`
	DrawdownPctThreshold float64 `yaml:"drawdownPctThreshold" json:"drawdownPctThreshold"`

	// 恢复
	RecoveryPayoutMin    float64 `yaml:"recoveryPayoutMin" json:"recoveryPayoutMin"`
	RecoveryPayoutMax    float64 `yaml:"recoveryPayoutMax" json:"recoveryPayoutMax"`
	RecoveryPayoutStep   int64   `yaml:"recoveryPayoutStep" json:"recoveryPayoutStep"`
	RecoveryAscending    bool    `yaml:"recoveryAscending" json:"recoveryAscending"`
	RecoverySpinStride   int     `yaml:"recoverySpinStride" json:"recoverySpinStride"`
	RecoveryRandomPayout bool    `yaml:"recoveryRandomPayout" json:"recoveryRandomPayout"`
	PctActivation        float64 `yaml:"pctActivation" json:"pctActivation"`
	PctRecoveryLosses    float64 `yaml:"pctRecoveryLosses" json:"pctRecoveryLosses"`
	DrawdownIntensity    float64 `yaml:"drawdownIntensity" json:"drawdownIntensity"`
	BetCapPctOfBank      float64 `yaml:"betCapPctOfBank" json:"betCapPctOfBank"`
	RecoveryMaxSpins     int     `yaml:"recoveryMaxSpins" json:"recoveryMaxSpins"`
	RecoveryStopLoss     float64 `yaml:"recoveryStopLoss" json:"recoveryStopLoss"`
	BaseCoverAfterSL     float64 `yaml:"baseCoverAfterSL" json:"baseCoverAfterSL"`

	// 同局升级
	TriggerRollThreshold float64 `yaml:"triggerRollThreshold" json:"triggerRollThreshold"`
	TriggerPctBank       float64 `yaml:"triggerPctBank" json:"triggerPctBank"`
	TriggerPayout        float64 `yaml:"triggerPayout" json:"triggerPayout"`

	// Press
	EnablePress        bool    `yaml:"enablePress" json:"enablePress"`
	PressBandMin       float64 `yaml:"pressBandMin" json:"pressBandMin"`
	PressBandMax       float64 `yaml:"pressBandMax" json:"pressBandMax"`
	PressRollThreshold float64 `yaml:"pressRollThreshold" json:"pressRollThreshold"`
	PressPayout        float64 `yaml:"pressPayout" json:"pressPayout"`
	PressStakeMultiple float64 `yaml:"pressStakeMultiple" json:"pressStakeMultiple"`
	PressRounds        int     `yaml:"pressRounds" json:"pressRounds"`
	EnableHighroll99   bool    `yaml:"enableHighroll99" json:"enableHighroll99"`

	// 止损 / 定价
	GlobalStopLoss  float64 `yaml:"globalStopLoss" json:"globalStopLoss"`
	CooldownSeconds int     `yaml:"cooldownSeconds" json:"cooldownSeconds"`
	MarginFraction  float64 `yaml:"marginFraction" json:"marginFraction"`

	// 循环节奏
	SpeedMs             int     `yaml:"speedMs" json:"speedMs"`
	SettingsRefreshSecs int     `yaml:"settingsRefreshSecs" json:"settingsRefreshSecs"`
	SeedRotateRounds    int     `yaml:"seedRotateRounds" json:"seedRotateRounds"`
	TakeProfit          float64 `yaml:"takeProfit" json:"takeProfit"`
}

// Load 从文件加载配置并套上环境变量覆盖。
func Load(filePath string) (*Config, error) {
	var file fileConfig
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
			}
		default:
			return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
		}
	}

	cfg := &Config{
		Logging: logger.Config{
			Level:      firstNonEmpty(getEnv("GODICE_LOG_LEVEL", ""), file.Logging.Level, "info"),
			OutputFile: firstNonEmpty(getEnv("GODICE_LOG_FILE", ""), file.Logging.OutputFile),
			MaxSize:    firstPositive(file.Logging.MaxSize, 100),
			MaxBackups: firstPositive(file.Logging.MaxBackups, 3),
			MaxAge:     firstPositive(file.Logging.MaxAge, 7),
			Compress:   file.Logging.Compress,
		},
		ControlPlane: ControlPlaneConfig{
			Listen: firstNonEmpty(getEnv("GODICE_LISTEN", ""), file.ControlPlane.Listen),
		},
		Journal: JournalConfig{
			Path: firstNonEmpty(getEnv("GODICE_JOURNAL_PATH", ""), file.Journal.Path),
		},
		State: StateConfig{
			Path:             firstNonEmpty(getEnv("GODICE_STATE_PATH", ""), file.State.Path),
			EncryptionKeyEnv: file.State.EncryptionKeyEnv,
		},
		Synced: parseBoolEnv("GODICE_SYNCED", file.Synced),
	}

	for i, b := range file.Bots {
		bot, err := buildBot(i, b)
		if err != nil {
			return nil, err
		}
		cfg.Bots = append(cfg.Bots, bot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

func buildBot(index int, b botFile) (BotConfig, error) {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = fmt.Sprintf("bot-%d", index+1)
	}
	if strings.TrimSpace(b.Coin) == "" {
		b.Coin = "DOGE"
	}

	ec := engine.Config{
		BaseBet:        money(b.BaseBet),
		MinBetEnforced: money(b.MinBetEnforced),
		MaxBetLimit:    money(b.MaxBetLimit),

		ScanStart:     money(b.ScanStart),
		ScanMax:       money(b.ScanMax),
		ScanStep:      money(b.ScanStep),
		CoverBase:     b.CoverBase,
		CoverFraction: money(b.CoverFraction),

		MaxConsecutiveLosses: b.MaxConsecutiveLosses,
		DrawdownThreshold:    money(b.DrawdownThreshold),
		DrawdownPctThreshold: money(b.DrawdownPctThreshold),

		RecoveryPayoutMin:    money(b.RecoveryPayoutMin),
		RecoveryPayoutMax:    money(b.RecoveryPayoutMax),
		RecoveryPayoutStep:   b.RecoveryPayoutStep,
		RecoveryAscending:    b.RecoveryAscending,
		RecoverySpinStride:   b.RecoverySpinStride,
		RecoveryRandomPayout: b.RecoveryRandomPayout,
		PctActivation:        money(b.PctActivation),
		PctRecoveryLosses:    money(b.PctRecoveryLosses),
		DrawdownIntensity:    money(b.DrawdownIntensity),
		BetCapPctOfBank:      money(b.BetCapPctOfBank),
		RecoveryMaxSpins:     b.RecoveryMaxSpins,
		RecoveryStopLoss:     money(b.RecoveryStopLoss),
		BaseCoverAfterSL:     money(b.BaseCoverAfterSL),

		TriggerRollThreshold: money(b.TriggerRollThreshold),
		TriggerPctBank:       money(b.TriggerPctBank),
		TriggerPayout:        money(b.TriggerPayout),

		EnablePress:        b.EnablePress,
		PressBandMin:       money(b.PressBandMin),
		PressBandMax:       money(b.PressBandMax),
		PressRollThreshold: money(b.PressRollThreshold),
		PressPayout:        money(b.PressPayout),
		PressStakeMultiple: money(b.PressStakeMultiple),
		PressRounds:        b.PressRounds,
		EnableHighroll99:   b.EnableHighroll99,

		GlobalStopLoss:  money(b.GlobalStopLoss),
		CooldownSeconds: b.CooldownSeconds,
		MarginFraction:  money(b.MarginFraction),
	}
	ec.ApplyDefaults()
	ec.Normalize()

	rc := engine.RunnerConfig{
		SpeedMs:             b.SpeedMs,
		SettingsRefreshSecs: b.SettingsRefreshSecs,
		SeedRotateRounds:    b.SeedRotateRounds,
		TakeProfit:          money(b.TakeProfit),
	}
	rc.ApplyDefaults()

	return BotConfig{
		ID:          b.ID,
		Coin:        b.Coin,
		APIKeyEnv:   b.APIKeyEnv,
		BaseURL:     b.BaseURL,
		InitialBank: money(b.InitialBank),
		Engine:      ec,
		Runner:      rc,
	}, nil
}

// Validate 验证配置。
func (c *Config) Validate() error {
	if len(c.Bots) == 0 {
		return fmt.Errorf("至少需要配置一个实例 (bots)")
	}
	seen := map[string]bool{}
	for _, b := range c.Bots {
		if seen[b.ID] {
			return fmt.Errorf("实例 ID 重复: %s", b.ID)
		}
		seen[b.ID] = true
		if b.APIKeyEnv == "" && b.InitialBank.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("实例 %s: 模拟模式需要 initialBank > 0", b.ID)
		}
	}
	return nil
}

func money(v float64) domain.Money {
	return domain.SafeParseFloat(v, decimal.Zero)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
