package node

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rudransh-shrivastava/fastshare/internal/config"
	"github.com/rudransh-shrivastava/fastshare/internal/db"
	"github.com/rudransh-shrivastava/fastshare/internal/logger"
	"github.com/rudransh-shrivastava/fastshare/internal/protocol"
	"github.com/rudransh-shrivastava/fastshare/internal/store"
	"github.com/rudransh-shrivastava/fastshare/internal/transfer"
	"github.com/rudransh-shrivastava/fastshare/internal/transport"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Observer transfer.Observer
	// History records every transfer when set.
	History store.TransferRepository
	// OnListening is called once the sender is bound, before it blocks
	// waiting for the receiver.
	OnListening func(addr *net.TCPAddr, meta protocol.FileMetadata)
	// ListenHost overrides the sender's bind address. Defaults to all interfaces.
	ListenHost string
}

// Node runs a single send or receive: it owns the connection for the
// duration of the call and closes it before returning.
type Node struct {
	cfg     *config.Config
	engine  *transfer.Engine
	history store.TransferRepository
	logger  *logrus.Logger

	onListening func(*net.TCPAddr, protocol.FileMetadata)
	listenHost  string
}

func New(opts Options) *Node {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	host := opts.ListenHost
	if host == "" {
		host = "0.0.0.0"
	}

	return &Node{
		cfg: cfg,
		engine: transfer.NewEngine(transfer.Options{
			Config:   cfg.TransferConfig(),
			Logger:   log,
			Observer: opts.Observer,
		}),
		history:     opts.History,
		logger:      log,
		onListening: opts.OnListening,
		listenHost:  host,
	}
}

// Send serves path to the first receiver that connects on the configured port.
func (n *Node) Send(ctx context.Context, path string) (transfer.Result, error) {
	src, err := transfer.OpenSource(path)
	if err != nil {
		return transfer.Result{}, err
	}
	defer func() { _ = src.Close() }()

	meta := protocol.FileMetadata{Name: src.Name, Size: src.Size}
	if err := meta.Validate(); err != nil {
		return transfer.Result{Metadata: meta}, fmt.Errorf("%w: %w", transfer.ErrIO, err)
	}

	ln, err := transport.Listen(ctx, transport.HostPort(n.listenHost, n.cfg.Port), n.cfg.TransportConfig())
	if err != nil {
		return transfer.Result{Metadata: meta}, err
	}
	defer func() { _ = ln.Close() }()

	n.logger.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"file": meta.Name,
		"size": humanize.IBytes(meta.Size),
	}).Info("Waiting for receiver")

	if n.onListening != nil {
		n.onListening(ln.Addr(), meta)
	}

	conn, err := ln.Accept(ctx)
	if err != nil {
		return transfer.Result{Metadata: meta}, acceptErr(ctx, err)
	}
	defer func() { _ = conn.Close() }()

	peer := conn.RemoteAddr().String()
	n.logger.WithField("peer", peer).Info("Receiver connected")

	id := n.recordStart(ctx, db.RoleSend, meta, peer)
	res, err := n.engine.Send(ctx, conn, src)
	n.recordFinish(ctx, id, res, err)
	if err != nil {
		return res, err
	}

	n.logger.WithFields(logrus.Fields{
		"file": meta.Name,
		"size": humanize.IBytes(res.Transferred),
		"peer": peer,
	}).Info("File sent")
	return res, nil
}

// Receive connects to addr and writes the offered file into outputDir.
func (n *Node) Receive(ctx context.Context, addr, outputDir string) (transfer.Result, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = transport.HostPort(addr, n.cfg.Port)
	}

	n.logger.WithField("addr", addr).Info("Connecting to sender")

	conn, err := transport.Dial(ctx, addr, n.cfg.TransportConfig())
	if err != nil {
		return transfer.Result{}, cancelled(ctx, "connecting to sender", err)
	}
	defer func() { _ = conn.Close() }()

	peer := conn.RemoteAddr().String()
	id := n.recordStart(ctx, db.RoleReceive, protocol.FileMetadata{}, peer)
	res, err := n.engine.Receive(ctx, conn, outputDir)
	n.recordFinish(ctx, id, res, err)
	if err != nil {
		return res, err
	}

	n.logger.WithFields(logrus.Fields{
		"file": res.Metadata.Name,
		"size": humanize.IBytes(res.Transferred),
		"path": res.Path,
	}).Info("File received")
	return res, nil
}

// acceptErr classifies a failed wait for the receiver. Both cancellation and
// the accept timeout end the transfer before any byte moved.
func acceptErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: waiting for receiver: %w", transfer.ErrTransfer, err)
	}
	return cancelled(ctx, "waiting for receiver", err)
}

// cancelled reports a transport wait that ended because ctx did as a
// transfer failure. Other errors pass through unchanged.
func cancelled(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", transfer.ErrTransfer, op, ctxErr)
	}
	return err
}

func (n *Node) recordStart(ctx context.Context, role db.Role, meta protocol.FileMetadata, peer string) string {
	if n.history == nil {
		return ""
	}

	id := uuid.NewString()
	if _, err := n.history.CreateTransfer(context.WithoutCancel(ctx), id, role, meta.Name, meta.Size, peer); err != nil {
		n.logger.Warnf("Failed to record transfer: %v", err)
		return ""
	}
	return id
}

func (n *Node) recordFinish(ctx context.Context, id string, res transfer.Result, transferErr error) {
	if n.history == nil || id == "" {
		return
	}

	err := n.history.FinishTransfer(context.WithoutCancel(ctx), id,
		res.Metadata.Name, res.Metadata.Size, res.Transferred, res.Path, transferErr)
	if err != nil {
		n.logger.Warnf("Failed to update transfer %s: %v", id, err)
		return
	}

	if !n.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	rec, err := n.history.GetTransfer(context.WithoutCancel(ctx), id)
	if err != nil {
		n.logger.Warnf("Failed to read back transfer %s: %v", id, err)
		return
	}
	n.logger.WithFields(logrus.Fields{
		"id":          rec.ID,
		"status":      rec.Status,
		"transferred": rec.Transferred,
	}).Debug("Transfer recorded")
}
