package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rudransh-shrivastava/fastshare/internal/logger"
	"github.com/rudransh-shrivastava/fastshare/internal/protocol"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Config   Config
	Logger   *logrus.Logger
	Observer Observer
}

// Engine runs one side of the metadata handshake and payload stream over an
// established connection.
type Engine struct {
	cfg      Config
	codec    *protocol.Codec
	observer Observer
	logger   *logrus.Logger
}

// Result describes a completed (or partially completed) transfer.
type Result struct {
	Metadata    protocol.FileMetadata
	Path        string
	Transferred uint64
}

func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}

	return &Engine{
		cfg:      cfg,
		codec:    protocol.NewCodec(),
		observer: obs,
		logger:   log,
	}
}

// Send writes src's metadata frame followed by exactly src.Size payload bytes.
func (e *Engine) Send(ctx context.Context, conn io.ReadWriter, src *Source) (Result, error) {
	meta := protocol.FileMetadata{Name: src.Name, Size: src.Size}
	res := Result{Metadata: meta}

	if err := meta.Validate(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrIO, err)
	}

	s := newStream(ctx, conn, e.cfg.IOTimeout)
	defer s.close()

	if err := e.codec.Encode(s, meta); err != nil {
		return res, connErr(ctx, "sending metadata", err)
	}

	e.logger.WithFields(logrus.Fields{
		"file":       meta.Name,
		"size":       meta.Size,
		"chunk_size": e.cfg.ChunkSize,
		"chunks":     CalculateTotalChunks(meta.Size, e.cfg.ChunkSize),
	}).Debug("Metadata sent")

	e.observer.OnProgress(0, meta.Size)

	r := io.LimitReader(src.r, int64(meta.Size))
	buf := make([]byte, e.cfg.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return res, connErr(ctx, "sending payload", err)
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := s.Write(buf[:n]); err != nil {
				return res, connErr(ctx, "sending payload", err)
			}
			res.Transferred += uint64(n)
			e.observer.OnProgress(res.Transferred, meta.Size)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return res, fmt.Errorf("%w: reading %s: %w", ErrIO, src.Name, rerr)
		}
	}

	if res.Transferred < meta.Size {
		return res, fmt.Errorf("%w: %w: sent %d of %d bytes", ErrIO, ErrSourceChanged, res.Transferred, meta.Size)
	}

	return res, nil
}

// Receive reads one metadata frame and writes the payload that follows to
// outputDir/<name>, overwriting any existing file. On failure the partial
// file is left in place and Result.Path names it.
func (e *Engine) Receive(ctx context.Context, conn io.ReadWriter, outputDir string) (Result, error) {
	var res Result

	s := newStream(ctx, conn, e.cfg.IOTimeout)
	defer s.close()

	meta, err := e.codec.Decode(s)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) {
			return res, connErr(ctx, "reading metadata", err)
		}
		return res, fmt.Errorf("%w: reading metadata: %w", ErrProtocol, err)
	}
	res.Metadata = meta

	if err := meta.Validate(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	e.logger.WithFields(logrus.Fields{
		"file":   meta.Name,
		"size":   meta.Size,
		"chunks": CalculateTotalChunks(meta.Size, e.cfg.ChunkSize),
	}).Debug("Metadata received")

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return res, fmt.Errorf("%w: creating %s: %w", ErrIO, outputDir, err)
	}

	res.Path = filepath.Join(outputDir, meta.Name)
	f, err := os.Create(res.Path)
	if err != nil {
		return res, fmt.Errorf("%w: creating %s: %w", ErrIO, res.Path, err)
	}
	defer func() { _ = f.Close() }()

	e.observer.OnProgress(0, meta.Size)

	buf := make([]byte, e.cfg.ChunkSize)
	for res.Transferred < meta.Size {
		if err := ctx.Err(); err != nil {
			return res, connErr(ctx, "receiving payload", err)
		}

		want := min(uint64(len(buf)), meta.Size-res.Transferred)
		n, err := io.ReadFull(s, buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return res, fmt.Errorf("%w: writing %s: %w", ErrIO, res.Path, werr)
			}
			res.Transferred += uint64(n)
			e.observer.OnProgress(res.Transferred, meta.Size)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return res, connErr(ctx, fmt.Sprintf("receiving payload after %d of %d bytes", res.Transferred, meta.Size), err)
		}
	}

	if err := f.Sync(); err != nil {
		return res, fmt.Errorf("%w: syncing %s: %w", ErrIO, res.Path, err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("%w: closing %s: %w", ErrIO, res.Path, err)
	}

	return res, nil
}
