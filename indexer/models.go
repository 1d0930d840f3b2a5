package indexer

import "time"

// TransactionRecord is one executed transaction, failed ones included.
type TransactionRecord struct {
	Hash       string `gorm:"size:66;primaryKey"`
	Slot       uint64 `gorm:"uniqueIndex"`
	FeePayer   string `gorm:"size:44;index"`
	Fee        uint64
	Succeeded  bool   `gorm:"index"`
	Error      string `gorm:"size:512"`
	ErrorCode  uint32
	Timestamp  int64 `gorm:"index"`
	EventCount int
	CreatedAt  time.Time
}

// EventRecord is one program event. Vault and Memory are copied out of the
// attributes so the common filters hit an index.
type EventRecord struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement"`
	Slot       uint64            `gorm:"index"`
	TxHash     string            `gorm:"size:66;index"`
	Position   int               `gorm:"not null"`
	Type       string            `gorm:"size:96;index"`
	Vault      string            `gorm:"size:44;index"`
	Memory     string            `gorm:"size:44;index"`
	Timestamp  int64             `gorm:"index"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

func (TransactionRecord) TableName() string { return "transactions" }
func (EventRecord) TableName() string       { return "events" }
