package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/godice/internal/domain"
)

func testEvent(botID string, spin int, won bool) RoundEvent {
	return RoundEvent{
		BotID:          botID,
		Spin:           spin,
		Mode:           domain.ModeBase,
		Multiplier:     domain.MustMoney("100"),
		Stake:          domain.MustMoney("0.001"),
		Won:            won,
		Profit:         domain.MustMoney("-0.001"),
		Bank:           domain.MustMoney("99.999"),
		CumulativeLoss: domain.MustMoney("0.001"),
		HighWaterMark:  domain.MustMoney("100"),
		Roll:           domain.MustMoney("42.1234"),
		HasRoll:        true,
		At:             time.Now(),
	}
}

// TestJournalEmitAndTail 测试流水落库与倒序查询
func TestJournalEmitAndTail(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("打开流水库失败: %v", err)
	}
	defer j.Close()

	j.Emit(testEvent("bot-1", 1, false))
	j.Emit(testEvent("bot-1", 2, true))
	j.Emit(testEvent("bot-2", 1, false)) // 另一个实例，不应混入

	rounds, err := j.Tail("bot-1", 10)
	if err != nil {
		t.Fatalf("Tail 失败: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("应返回 2 条记录，实际为 %d", len(rounds))
	}
	// 新的在前
	if rounds[0].Spin != 2 || rounds[1].Spin != 1 {
		t.Errorf("记录应按新到旧排序，实际为 %d, %d", rounds[0].Spin, rounds[1].Spin)
	}
	if !rounds[0].Won || rounds[1].Won {
		t.Error("won 标志应正确往返")
	}
	if rounds[0].Stake != "0.00100000" {
		t.Errorf("金额应按字符串存取，实际为 %s", rounds[0].Stake)
	}
	if rounds[0].Roll != "42.1234" {
		t.Errorf("roll 应保留 4 位小数，实际为 %s", rounds[0].Roll)
	}
}

// TestJournalTailLimit limit 越界时回退到默认
func TestJournalTailLimit(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("打开流水库失败: %v", err)
	}
	defer j.Close()

	j.Emit(testEvent("bot-1", 1, false))
	if rounds, err := j.Tail("bot-1", -5); err != nil || len(rounds) != 1 {
		t.Errorf("非法 limit 应回退默认并正常查询: %v (%d)", err, len(rounds))
	}
}
