package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/domain"
)

// LogSink 把每局结果写成带前缀的日志行，
// [WIN] / [LOSS]，恢复与 press 局带模式后缀。
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink 创建日志 sink。
func NewLogSink() *LogSink {
	return &LogSink{log: logrus.WithField("component", "rounds")}
}

// Emit 写一行结果日志。
func (s *LogSink) Emit(ev RoundEvent) {
	prefix := "[LOSS]"
	if ev.Won {
		prefix = "[WIN]"
	}
	if ev.Mode.IsRecovery() {
		if ev.Won {
			prefix = "[WIN-RECOVERY]"
		} else {
			prefix = "[LOSS-RECOVERY]"
		}
	} else if ev.Mode == domain.ModePress {
		if ev.Won {
			prefix = "[WIN-PRESS]"
		} else {
			prefix = "[LOSS-PRESS]"
		}
	}

	roll := "n/a"
	if ev.HasRoll {
		roll = ev.Roll.StringFixed(4)
	}
	s.log.Infof("%s [%s] #%d M=%s bet=%s profit=%s bank=%s roll=%s cum_loss=%s",
		prefix, ev.BotID, ev.Spin,
		ev.Multiplier, ev.Stake.StringFixed(8), ev.Profit.StringFixed(8),
		ev.Bank.StringFixed(8), roll, ev.CumulativeLoss.StringFixed(8))
}
