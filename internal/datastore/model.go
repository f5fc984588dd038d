package datastore

import "time"

// BudgetLedger is the persisted query count of one calendar day
type BudgetLedger struct {
	ID        uint   `gorm:"primaryKey"`
	Day       string `gorm:"uniqueIndex;size:10;not null"` // YYYY-MM-DD in the scheduler's timezone
	Issued    int    `gorm:"not null;default:0"`
	Attempts  int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
