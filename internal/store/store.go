// Package store provides database access for the transfer history.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rudransh-shrivastava/fastshare/internal/db"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("transfer not found")

type TransferStore struct {
	db *gorm.DB
}

func NewTransferStore(gdb *gorm.DB) *TransferStore {
	return &TransferStore{db: gdb}
}

func (ts *TransferStore) CreateTransfer(ctx context.Context, id string, role db.Role, fileName string, size uint64, peer string) (db.Transfer, error) {
	t := db.Transfer{
		ID:        id,
		Role:      role,
		FileName:  fileName,
		Size:      size,
		Peer:      peer,
		Status:    db.StatusActive,
		StartedAt: time.Now(),
	}
	if err := ts.db.WithContext(ctx).Create(&t).Error; err != nil {
		return db.Transfer{}, fmt.Errorf("creating transfer: %w", err)
	}
	return t, nil
}

// FinishTransfer marks the transfer completed, or failed when transferErr is
// non-nil. A receiver only learns fileName and size from the sender, so they
// are recorded here as well.
func (ts *TransferStore) FinishTransfer(ctx context.Context, id string, fileName string, size, transferred uint64, path string, transferErr error) error {
	now := time.Now()
	updates := map[string]any{
		"file_name":   fileName,
		"size":        size,
		"transferred": transferred,
		"path":        path,
		"status":      db.StatusCompleted,
		"error":       "",
		"finished_at": &now,
	}
	if transferErr != nil {
		updates["status"] = db.StatusFailed
		updates["error"] = transferErr.Error()
	}

	res := ts.db.WithContext(ctx).Model(&db.Transfer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finishing transfer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (ts *TransferStore) GetTransfer(ctx context.Context, id string) (db.Transfer, error) {
	var t db.Transfer
	err := ts.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Transfer{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

// ListTransfers returns the most recent transfers first. A non-positive
// limit returns all of them.
func (ts *TransferStore) ListTransfers(ctx context.Context, limit int) ([]db.Transfer, error) {
	var transfers []db.Transfer
	q := ts.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}
