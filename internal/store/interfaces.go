package store

import (
	"context"

	"github.com/rudransh-shrivastava/fastshare/internal/db"
)

// TransferRepository defines transfer history operations.
type TransferRepository interface {
	CreateTransfer(ctx context.Context, id string, role db.Role, fileName string, size uint64, peer string) (db.Transfer, error)
	FinishTransfer(ctx context.Context, id string, fileName string, size, transferred uint64, path string, transferErr error) error
	GetTransfer(ctx context.Context, id string) (db.Transfer, error)
	ListTransfers(ctx context.Context, limit int) ([]db.Transfer, error)
}

var _ TransferRepository = (*TransferStore)(nil)
