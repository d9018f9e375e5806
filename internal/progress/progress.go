// Package progress aggregates (loaded, total) counters from concurrent work.
//
// Each call tree gets its own Branch, threaded through context.Context. A
// Branch increments atomically; the owning Tracker sums every branch into
// one running aggregate, reports it to the callback with global=true, and
// resets all counters once the aggregate reaches 100%.
package progress

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Callback receives progress updates. global is false for a single branch
// and true for the tracker-wide aggregate.
type Callback func(loaded, total int64, global bool)

// Tracker owns a set of branches.
type Tracker struct {
	mu       sync.Mutex
	branches []*Branch
	callback Callback
}

// NewTracker returns a tracker reporting to cb; cb may be nil.
func NewTracker(cb Callback) *Tracker {
	return &Tracker{callback: cb}
}

// Branch registers a new per-call-site counter.
func (t *Tracker) Branch(name string) *Branch {
	b := &Branch{name: name, tracker: t}
	t.mu.Lock()
	t.branches = append(t.branches, b)
	t.mu.Unlock()
	return b
}

// Snapshot returns the current aggregate.
func (t *Tracker) Snapshot() (loaded, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sumLocked()
}

func (t *Tracker) sumLocked() (loaded, total int64) {
	for _, b := range t.branches {
		loaded += b.loaded.Load()
		total += b.total.Load()
	}
	return loaded, total
}

func (t *Tracker) notify(b *Branch) {
	if t.callback != nil {
		t.callback(b.loaded.Load(), b.total.Load(), false)
	}

	t.mu.Lock()
	loaded, total := t.sumLocked()
	complete := total > 0 && loaded >= total
	if complete {
		for _, branch := range t.branches {
			branch.loaded.Store(0)
			branch.total.Store(0)
		}
	}
	t.mu.Unlock()

	if t.callback != nil {
		t.callback(loaded, total, true)
	}
}

// Branch is one call site's counter. A nil Branch ignores updates, so code
// can report unconditionally.
type Branch struct {
	name    string
	loaded  atomic.Int64
	total   atomic.Int64
	tracker *Tracker
}

// Name returns the branch label.
func (b *Branch) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Expect adds n units of expected work.
func (b *Branch) Expect(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.total.Add(n)
	b.tracker.notify(b)
}

// Done records n units of completed work.
func (b *Branch) Done(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.loaded.Add(n)
	b.tracker.notify(b)
}

// Counts returns the branch counters.
func (b *Branch) Counts() (loaded, total int64) {
	if b == nil {
		return 0, 0
	}
	return b.loaded.Load(), b.total.Load()
}

type branchKey struct{}

// WithBranch attaches b to ctx.
func WithBranch(ctx context.Context, b *Branch) context.Context {
	return context.WithValue(ctx, branchKey{}, b)
}

// FromContext returns the branch attached to ctx, or nil.
func FromContext(ctx context.Context) *Branch {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(branchKey{}).(*Branch)
	return b
}

type countingReader struct {
	r io.Reader
	b *Branch
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.b.Done(int64(n))
	return n, err
}

// Reader reports every byte read from r to b.
func Reader(r io.Reader, b *Branch) io.Reader {
	if b == nil {
		return r
	}
	return &countingReader{r: r, b: b}
}
