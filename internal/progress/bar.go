package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Bar renders transfer progress to a terminal. The underlying bar is
// created on the first update, once the total is known; zero-byte
// transfers never draw one.
type Bar struct {
	out         io.Writer
	description string

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	total   uint64
	current uint64
	started time.Time
}

func NewBar(out io.Writer, description string) *Bar {
	return &Bar{out: out, description: description}
}

func (b *Bar) OnProgress(transferred, total uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started.IsZero() {
		b.started = time.Now()
	}
	b.total = total
	b.current = transferred

	if total == 0 {
		return
	}
	if b.bar == nil {
		b.bar = progressbar.NewOptions64(int64(total),
			progressbar.OptionSetDescription(b.description),
			progressbar.OptionSetWriter(b.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(b.out) }),
		)
	}
	_ = b.bar.Set64(int64(transferred))
}

// Finish completes the bar and writes a one-line summary.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil && b.current == b.total {
		_ = b.bar.Finish()
	}
	if b.started.IsZero() {
		return
	}

	elapsed := time.Since(b.started)
	_, _ = fmt.Fprintf(b.out, "%s of %s in %s (%s/s)\n",
		humanize.IBytes(b.current),
		humanize.IBytes(b.total),
		elapsed.Round(time.Millisecond),
		humanize.IBytes(rate(b.current, elapsed)),
	)
}

func rate(n uint64, d time.Duration) uint64 {
	if d <= 0 {
		return n
	}
	return uint64(float64(n) / d.Seconds())
}
