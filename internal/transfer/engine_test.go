package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/rudransh-shrivastava/fastshare/internal/logger"
	"github.com/rudransh-shrivastava/fastshare/internal/protocol"
)

type rwConn struct {
	io.Reader
	io.Writer
}

type recorder struct {
	mu      sync.Mutex
	updates [][2]uint64
}

func (r *recorder) OnProgress(transferred, total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, [2]uint64{transferred, total})
}

func (r *recorder) check(t *testing.T, size uint64) {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.updates) == 0 {
		t.Fatal("expected at least one progress update")
	}
	if first := r.updates[0]; first != [2]uint64{0, size} {
		t.Errorf("expected first update (0, %d), got %v", size, first)
	}
	var prev uint64
	for _, u := range r.updates {
		if u[0] < prev {
			t.Errorf("progress went backwards: %d after %d", u[0], prev)
		}
		if u[1] != size {
			t.Errorf("expected total %d, got %d", size, u[1])
		}
		prev = u[0]
	}
	if prev != size {
		t.Errorf("expected final progress %d, got %d", size, prev)
	}
}

func newTestEngine(cfg Config, obs Observer) *Engine {
	return NewEngine(Options{Config: cfg, Logger: logger.Discard(), Observer: obs})
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func encodeFrame(t *testing.T, meta protocol.FileMetadata) []byte {
	t.Helper()

	b, err := protocol.NewCodec().EncodeToBytes(meta)
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
	}{
		{"empty file", 0, DefaultChunkSize},
		{"smaller than chunk", 1000, DefaultChunkSize},
		{"equal to chunk", 4096, 4096},
		{"multiple chunks", 10000, 1000},
		{"uneven last chunk", 10001, 1000},
		{"tiny chunks", 257, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := randomBytes(tt.size)
			outDir := t.TempDir()
			cfg := Config{ChunkSize: tt.chunkSize}

			sendObs, recvObs := &recorder{}, &recorder{}
			sender := newTestEngine(cfg, sendObs)
			receiver := newTestEngine(cfg, recvObs)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			a, b := net.Pipe()
			defer func() { _ = a.Close() }()
			defer func() { _ = b.Close() }()

			sendErr := make(chan error, 1)
			go func() {
				src := NewSource("data.bin", uint64(len(data)), bytes.NewReader(data))
				_, err := sender.Send(ctx, a, src)
				sendErr <- err
			}()

			res, err := receiver.Receive(ctx, b, outDir)
			if err != nil {
				t.Fatalf("Receive failed: %v", err)
			}

			select {
			case err := <-sendErr:
				if err != nil {
					t.Fatalf("Send failed: %v", err)
				}
			case <-ctx.Done():
				t.Fatal("Timeout waiting for sender")
			}

			if res.Metadata.Name != "data.bin" || res.Metadata.Size != uint64(len(data)) {
				t.Errorf("unexpected metadata %+v", res.Metadata)
			}
			if res.Transferred != uint64(len(data)) {
				t.Errorf("expected %d bytes transferred, got %d", len(data), res.Transferred)
			}

			got, err := os.ReadFile(filepath.Join(outDir, "data.bin"))
			if err != nil {
				t.Fatalf("reading output: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(data))
			}

			sendObs.check(t, uint64(len(data)))
			recvObs.check(t, uint64(len(data)))
		})
	}
}

func TestReceiveFragmentedStream(t *testing.T) {
	data := randomBytes(5000)
	wire := append(encodeFrame(t, protocol.FileMetadata{Name: "frag.bin", Size: uint64(len(data))}), data...)

	conn := rwConn{Reader: iotest.OneByteReader(bytes.NewReader(wire)), Writer: io.Discard}
	outDir := t.TempDir()

	res, err := newTestEngine(Config{ChunkSize: 1024}, nil).Receive(context.Background(), conn, outDir)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("payload mismatch")
	}
}

func TestReceiveBadMetadata(t *testing.T) {
	full := encodeFrame(t, protocol.FileMetadata{Name: "file.txt", Size: 10})
	oversize := []byte{0xff, 0xff, 0xff, 0xff}
	garbage := []byte{0, 0, 0, 3, 0xff, 0xff, 0xff}

	tests := []struct {
		name string
		wire []byte
	}{
		{"empty stream", nil},
		{"truncated header", full[:3]},
		{"truncated body", full[:len(full)-2]},
		{"oversize length", oversize},
		{"garbage body", garbage},
		{"traversal name", encodeFrame(t, protocol.FileMetadata{Name: "../escape.txt", Size: 1})},
		{"dot dot name", encodeFrame(t, protocol.FileMetadata{Name: "..", Size: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			outDir := filepath.Join(parent, "out")
			conn := rwConn{Reader: bytes.NewReader(tt.wire), Writer: io.Discard}

			_, err := newTestEngine(DefaultConfig(), nil).Receive(context.Background(), conn, outDir)
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("Expected ErrProtocol, got %v", err)
			}

			entries, _ := os.ReadDir(parent)
			if len(entries) != 0 {
				t.Errorf("expected nothing created, found %d entries", len(entries))
			}
		})
	}
}

func TestReceiveDisconnectLeavesPartialFile(t *testing.T) {
	data := randomBytes(100)
	wire := append(encodeFrame(t, protocol.FileMetadata{Name: "partial.bin", Size: 100}), data[:40]...)

	conn := rwConn{Reader: bytes.NewReader(wire), Writer: io.Discard}
	obs := &recorder{}

	res, err := newTestEngine(Config{ChunkSize: 16}, obs).Receive(context.Background(), conn, t.TempDir())
	if !errors.Is(err, ErrTransfer) {
		t.Fatalf("Expected ErrTransfer, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
	if res.Transferred != 40 {
		t.Errorf("expected 40 bytes transferred, got %d", res.Transferred)
	}

	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("expected partial file: %v", err)
	}
	if !bytes.Equal(got, data[:40]) {
		t.Errorf("partial file mismatch: %d bytes", len(got))
	}
}

func TestReceiveOverwritesExisting(t *testing.T) {
	outDir := t.TempDir()
	path := filepath.Join(outDir, "same.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("old content ", 100)), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wire := append(encodeFrame(t, protocol.FileMetadata{Name: "same.txt", Size: 3}), "new"...)
	conn := rwConn{Reader: bytes.NewReader(wire), Writer: io.Discard}

	if _, err := newTestEngine(DefaultConfig(), nil).Receive(context.Background(), conn, outDir); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("expected file to be overwritten, got %q", got)
	}
}

func TestReceiveCreatesOutputDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "a", "b")
	wire := append(encodeFrame(t, protocol.FileMetadata{Name: "x.txt", Size: 2}), "hi"...)
	conn := rwConn{Reader: bytes.NewReader(wire), Writer: io.Discard}

	res, err := newTestEngine(DefaultConfig(), nil).Receive(context.Background(), conn, outDir)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if res.Path != filepath.Join(outDir, "x.txt") {
		t.Errorf("unexpected path %q", res.Path)
	}
}

func TestReceiveCancelUnblocksStall(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	frame := encodeFrame(t, protocol.FileMetadata{Name: "stall.bin", Size: 100})
	go func() {
		_, _ = a.Write(frame)
		_, _ = a.Write([]byte("abc"))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	outDir := t.TempDir()

	go func() {
		_, err := newTestEngine(DefaultConfig(), nil).Receive(ctx, b, outDir)
		errChan <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if !errors.Is(err, ErrTransfer) {
			t.Errorf("Expected ErrTransfer, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Receive did not return after cancel")
	}
}

func TestReceiveIOTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	frame := encodeFrame(t, protocol.FileMetadata{Name: "slow.bin", Size: 10})
	go func() {
		_, _ = a.Write(frame)
	}()

	cfg := Config{ChunkSize: DefaultChunkSize, IOTimeout: 100 * time.Millisecond}
	_, err := newTestEngine(cfg, nil).Receive(context.Background(), b, t.TempDir())
	if !errors.Is(err, ErrTransfer) {
		t.Fatalf("Expected ErrTransfer, got %v", err)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Expected os.ErrDeadlineExceeded in chain, got %v", err)
	}
}

func TestReceiveMetadataTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	cfg := Config{ChunkSize: DefaultChunkSize, IOTimeout: 50 * time.Millisecond}
	_, err := newTestEngine(cfg, nil).Receive(context.Background(), b, t.TempDir())
	if !errors.Is(err, ErrTransfer) {
		t.Fatalf("Expected ErrTransfer, got %v", err)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Expected os.ErrDeadlineExceeded in chain, got %v", err)
	}
	if errors.Is(err, ErrProtocol) {
		t.Errorf("silent sender should not be reported as ErrProtocol: %v", err)
	}
}

func TestSendSourceShrank(t *testing.T) {
	var out bytes.Buffer
	conn := rwConn{Reader: strings.NewReader(""), Writer: &out}
	src := NewSource("short.txt", 100, strings.NewReader(strings.Repeat("x", 60)))

	res, err := newTestEngine(DefaultConfig(), nil).Send(context.Background(), conn, src)
	if !errors.Is(err, ErrIO) || !errors.Is(err, ErrSourceChanged) {
		t.Fatalf("Expected ErrIO wrapping ErrSourceChanged, got %v", err)
	}
	if res.Transferred != 60 {
		t.Errorf("expected 60 bytes sent, got %d", res.Transferred)
	}
}

func TestSendNeverExceedsDeclaredSize(t *testing.T) {
	var out bytes.Buffer
	conn := rwConn{Reader: strings.NewReader(""), Writer: &out}
	src := NewSource("grown.txt", 5, strings.NewReader("hello world"))

	if _, err := newTestEngine(DefaultConfig(), nil).Send(context.Background(), conn, src); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	meta, err := protocol.NewCodec().Decode(&out)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if meta.Size != 5 {
		t.Errorf("expected size 5, got %d", meta.Size)
	}
	if rest := out.String(); rest != "hello" {
		t.Errorf("expected payload %q, got %q", "hello", rest)
	}
}

func TestSendConnectionClosed(t *testing.T) {
	a, b := net.Pipe()
	_ = b.Close()
	defer func() { _ = a.Close() }()

	src := NewSource("a.txt", 3, strings.NewReader("abc"))
	_, err := newTestEngine(DefaultConfig(), nil).Send(context.Background(), a, src)
	if !errors.Is(err, ErrTransfer) {
		t.Errorf("Expected ErrTransfer, got %v", err)
	}
}

func TestSendReadError(t *testing.T) {
	var out bytes.Buffer
	conn := rwConn{Reader: strings.NewReader(""), Writer: &out}
	boom := errors.New("disk on fire")
	src := NewSource("a.txt", 10, iotest.ErrReader(boom))

	_, err := newTestEngine(DefaultConfig(), nil).Send(context.Background(), conn, src)
	if !errors.Is(err, ErrIO) || !errors.Is(err, boom) {
		t.Errorf("Expected ErrIO wrapping the read error, got %v", err)
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer func() { _ = src.Close() }()

	if src.Name != "hello.txt" || src.Size != 5 {
		t.Errorf("unexpected source %+v", src)
	}

	if _, err := OpenSource(filepath.Join(dir, "missing.txt")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if _, err := OpenSource(dir); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO for a directory, got %v", err)
	}
}

func TestCalculateTotalChunks(t *testing.T) {
	tests := []struct {
		size      uint64
		chunkSize int
		expected  uint64
	}{
		{1024, 256, 4},
		{1000, 256, 4},
		{256, 256, 1},
		{0, 256, 0},
		{1, 256, 1},
		{257, 256, 2},
		{100, 0, 0},
	}

	for _, tt := range tests {
		if got := CalculateTotalChunks(tt.size, tt.chunkSize); got != tt.expected {
			t.Errorf("CalculateTotalChunks(%d, %d) = %d, want %d", tt.size, tt.chunkSize, got, tt.expected)
		}
	}
}

func TestObserverFunc(t *testing.T) {
	var got [2]uint64
	var obs Observer = ObserverFunc(func(transferred, total uint64) {
		got = [2]uint64{transferred, total}
	})

	obs.OnProgress(3, 9)
	if got != [2]uint64{3, 9} {
		t.Errorf("expected (3, 9), got %v", got)
	}
}
