package transfer

import (
	"context"
	"io"
	"sync"
	"time"
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetDeadline(t time.Time) error
}

// stream applies the per-operation timeout to each Read and Write and
// unblocks pending I/O when ctx is cancelled. Connections without deadline
// support only observe cancellation between chunks.
type stream struct {
	rw      io.ReadWriter
	dl      deadliner
	timeout time.Duration

	mu        sync.Mutex
	cancelled bool
	stop      func() bool
}

func newStream(ctx context.Context, rw io.ReadWriter, timeout time.Duration) *stream {
	s := &stream{rw: rw, timeout: timeout}

	dl, ok := rw.(deadliner)
	if !ok {
		s.stop = func() bool { return false }
		return s
	}
	s.dl = dl

	s.stop = context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled = true
		_ = s.dl.SetDeadline(time.Unix(1, 0))
	})
	return s
}

func (s *stream) Read(p []byte) (int, error) {
	if err := s.arm(true); err != nil {
		return 0, err
	}
	return s.rw.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if err := s.arm(false); err != nil {
		return 0, err
	}
	return s.rw.Write(p)
}

func (s *stream) arm(read bool) error {
	if s.dl == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return context.Canceled
	}
	if s.timeout <= 0 {
		return nil
	}

	deadline := time.Now().Add(s.timeout)
	if read {
		return s.dl.SetReadDeadline(deadline)
	}
	return s.dl.SetWriteDeadline(deadline)
}

// close detaches the cancellation hook and clears any deadline it set.
func (s *stream) close() {
	if s.dl == nil {
		return
	}
	if !s.stop() {
		return
	}
	if s.timeout > 0 {
		_ = s.dl.SetDeadline(time.Time{})
	}
}
