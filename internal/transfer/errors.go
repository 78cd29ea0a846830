package transfer

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrIO           = errors.New("i/o error")
	ErrProtocol     = errors.New("protocol error")
	ErrTransfer     = errors.New("transfer failed")

	// ErrSourceChanged means the source shrank after its size was announced.
	ErrSourceChanged = errors.New("source file changed during transfer")
)

// connErr wraps a stream failure as ErrTransfer, preferring the context error
// when ctx caused it.
func connErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%w: %s: %w", ErrTransfer, op, err)
}
