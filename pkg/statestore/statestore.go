package statestore

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/godice/internal/domain"
)

// Store is a small KV wrapper (Badger) holding per-bot bank snapshots,
// so an operator restart resumes the recovery target instead of re-baselining.
// Encryption at rest is provided by Badger options, not by this wrapper.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; if nil, DB is opened without encryption
	ReadOnly      bool
}

// Snapshot is the persisted ledger of one bot.
type Snapshot struct {
	InitialBank    domain.Money `json:"initialBank"`
	HighWaterMark  domain.Money `json:"highWaterMark"`
	CumulativeLoss domain.Money `json:"cumulativeLoss"`
	AllTimeLoss    domain.Money `json:"allTimeLoss"`
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("statestore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires index cache for encrypted workloads
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20) // 100MB
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bankKey(botID string) ([]byte, error) {
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return nil, errors.New("statestore: bot id is empty")
	}
	return []byte("bank:" + botID), nil
}

// Save persists the snapshot for one bot, overwriting any previous one.
func (s *Store) Save(botID string, snap Snapshot) error {
	if s == nil || s.db == nil {
		return errors.New("statestore: not opened")
	}
	k, err := bankKey(botID)
	if err != nil {
		return err
	}
	v, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("statestore: marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
}

// Load returns the stored snapshot, or found=false when the bot has none.
func (s *Store) Load(botID string) (Snapshot, bool, error) {
	var snap Snapshot
	if s == nil || s.db == nil {
		return snap, false, errors.New("statestore: not opened")
	}
	k, err := bankKey(botID)
	if err != nil {
		return snap, false, err
	}
	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, found, nil
}

// ParseKey expects 32 bytes (base64 or hex). Returns nil if input is empty.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) == 32 {
			return b, nil
		}
		return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
