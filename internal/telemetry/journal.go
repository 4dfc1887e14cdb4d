package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var jlog = logrus.WithField("component", "journal")

// Journal sqlite 局记录流水，控制面的 rounds 查询从这里读。
// 写失败只记日志，不回传给引擎。
type Journal struct {
	db *sql.DB
}

// NewJournal 打开（或创建）流水库。
func NewJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
CREATE TABLE IF NOT EXISTS rounds (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id          TEXT NOT NULL,
	spin            INTEGER NOT NULL,
	mode            TEXT NOT NULL,
	multiplier      TEXT NOT NULL,
	stake           TEXT NOT NULL,
	won             INTEGER NOT NULL,
	profit          TEXT NOT NULL,
	bank            TEXT NOT NULL,
	cumulative_loss TEXT NOT NULL,
	high_water_mark TEXT NOT NULL,
	roll            TEXT,
	wraps           INTEGER NOT NULL,
	at              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rounds_bot ON rounds(bot_id, id);
`)
	if err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Close 关闭底层库。
func (j *Journal) Close() error { return j.db.Close() }

// Emit 落一条局记录。金额字段按字符串存，避免浮点精度损失。
func (j *Journal) Emit(ev RoundEvent) {
	var roll any
	if ev.HasRoll {
		roll = ev.Roll.StringFixed(4)
	}
	won := 0
	if ev.Won {
		won = 1
	}
	_, err := j.db.Exec(
		`INSERT INTO rounds (bot_id, spin, mode, multiplier, stake, won, profit, bank, cumulative_loss, high_water_mark, roll, wraps, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.BotID, ev.Spin, string(ev.Mode), ev.Multiplier.String(),
		ev.Stake.StringFixed(8), won, ev.Profit.StringFixed(8),
		ev.Bank.StringFixed(8), ev.CumulativeLoss.StringFixed(8),
		ev.HighWaterMark.StringFixed(8), roll, ev.Wraps,
		ev.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
	if err != nil {
		jlog.Warnf("⚠️ journal insert failed: %v", err)
	}
}

// StoredRound 流水查询返回的一行。
type StoredRound struct {
	ID             int64  `json:"id"`
	BotID          string `json:"botId"`
	Spin           int    `json:"spin"`
	Mode           string `json:"mode"`
	Multiplier     string `json:"multiplier"`
	Stake          string `json:"stake"`
	Won            bool   `json:"won"`
	Profit         string `json:"profit"`
	Bank           string `json:"bank"`
	CumulativeLoss string `json:"cumulativeLoss"`
	HighWaterMark  string `json:"highWaterMark"`
	Roll           string `json:"roll,omitempty"`
	Wraps          int    `json:"wraps"`
	At             string `json:"at"`
}

// Tail 返回某实例最近 limit 条局记录，新的在前。
func (j *Journal) Tail(botID string, limit int) ([]StoredRound, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := j.db.Query(
		`SELECT id, bot_id, spin, mode, multiplier, stake, won, profit, bank, cumulative_loss, high_water_mark, roll, wraps, at
		 FROM rounds WHERE bot_id = ? ORDER BY id DESC LIMIT ?`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []StoredRound
	for rows.Next() {
		var r StoredRound
		var won int
		var roll sql.NullString
		if err := rows.Scan(&r.ID, &r.BotID, &r.Spin, &r.Mode, &r.Multiplier,
			&r.Stake, &won, &r.Profit, &r.Bank, &r.CumulativeLoss,
			&r.HighWaterMark, &roll, &r.Wraps, &r.At); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.Won = won != 0
		if roll.Valid {
			r.Roll = roll.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
