package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"memchain/core/types"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ErrNotFound is returned when a transaction hash is not indexed.
var ErrNotFound = errors.New("indexer: not found")

// Store persists executed transactions and their events.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TransactionRecord{}, &EventRecord{})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Entry is everything the node hands over for one committed transaction.
type Entry struct {
	Hash      string
	Slot      uint64
	FeePayer  string
	Fee       uint64
	Err       error
	ErrorCode uint32
	Timestamp int64
	Events    []*types.Event
}

// Record stores a transaction and its events atomically.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	tx := TransactionRecord{
		Hash:       entry.Hash,
		Slot:       entry.Slot,
		FeePayer:   entry.FeePayer,
		Fee:        entry.Fee,
		Succeeded:  entry.Err == nil,
		ErrorCode:  entry.ErrorCode,
		Timestamp:  entry.Timestamp,
		EventCount: len(entry.Events),
	}
	if entry.Err != nil {
		tx.Error = truncate(entry.Err.Error(), 512)
	}
	events := make([]EventRecord, 0, len(entry.Events))
	for i, evt := range entry.Events {
		if evt == nil {
			continue
		}
		events = append(events, EventRecord{
			Slot:       entry.Slot,
			TxHash:     entry.Hash,
			Position:   i,
			Type:       evt.Type,
			Vault:      evt.Attributes["vault"],
			Memory:     evt.Attributes["memory"],
			Timestamp:  entry.Timestamp,
			Attributes: evt.Attributes,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(&tx).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return db.Create(&events).Error
	})
}

// Filter narrows an event query. Zero fields do not constrain.
type Filter struct {
	Type     string `json:"type,omitempty"`
	Vault    string `json:"vault,omitempty"`
	Memory   string `json:"memory,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	FromSlot uint64 `json:"fromSlot,omitempty"`
	ToSlot   uint64 `json:"toSlot,omitempty"`
	// After is the ID of the last event of the previous page.
	After uint64 `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Events returns matching events in commit order.
func (s *Store) Events(ctx context.Context, filter Filter) ([]EventRecord, error) {
	query := s.db.WithContext(ctx).Model(&EventRecord{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Vault != "" {
		query = query.Where("vault = ?", filter.Vault)
	}
	if filter.Memory != "" {
		query = query.Where("memory = ?", filter.Memory)
	}
	if filter.TxHash != "" {
		query = query.Where("tx_hash = ?", filter.TxHash)
	}
	if filter.FromSlot > 0 {
		query = query.Where("slot >= ?", filter.FromSlot)
	}
	if filter.ToSlot > 0 {
		query = query.Where("slot <= ?", filter.ToSlot)
	}
	if filter.After > 0 {
		query = query.Where("id > ?", filter.After)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	var out []EventRecord
	if err := query.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Transaction returns the indexed transaction with the given hash.
func (s *Store) Transaction(ctx context.Context, hash string) (*TransactionRecord, error) {
	var rec TransactionRecord
	err := s.db.WithContext(ctx).Where("hash = ?", hash).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestSlot returns the highest indexed slot, or zero when empty.
func (s *Store) LatestSlot(ctx context.Context) (uint64, error) {
	var slot sql.NullInt64
	row := s.db.WithContext(ctx).Model(&TransactionRecord{}).Select("MAX(slot)").Row()
	if err := row.Scan(&slot); err != nil {
		return 0, err
	}
	return uint64(slot.Int64), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
