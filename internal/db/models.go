package db

import "time"

type Role string

const (
	RoleSend    Role = "send"
	RoleReceive Role = "receive"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transfer is one row of the local history ledger.
type Transfer struct {
	ID          string `gorm:"primaryKey;size:36"`
	Role        Role   `gorm:"index;not null"`
	FileName    string
	Size        uint64
	Transferred uint64
	Peer        string
	Path        string
	Status      Status `gorm:"index;not null"`
	Error       string
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  *time.Time
}
