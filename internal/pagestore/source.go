package pagestore

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tagview/tagview/internal/retry"
)

// Row is one item as delivered by a page source.
type Row struct {
	Index   int
	Name    string
	Width   int
	Height  int
	IsVideo bool
}

// AspectRatio returns width/height, or 1.0 when dimensions are unknown.
func (r Row) AspectRatio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 1.0
	}
	return float64(r.Width) / float64(r.Height)
}

// Source supplies item counts and pages of rows.
// LoadPage must be safe for concurrent use and idempotent.
type Source interface {
	Count(ctx context.Context) (int, error)
	LoadPage(ctx context.Context, page, pageSize int) ([]Row, error)
}

// MemorySource serves rows from a slice. Used by tests and the simulator.
type MemorySource struct {
	mu    sync.Mutex
	rows  []Row
	calls map[int]int

	// Latency delays every LoadPage call.
	Latency time.Duration

	// FailFn, when set, can fail a load. attempt starts at 1 per page.
	FailFn func(page, attempt int) error
}

// NewMemorySource creates a source over rows. Row indices are rewritten to their position.
func NewMemorySource(rows []Row) *MemorySource {
	m := &MemorySource{calls: make(map[int]int)}
	m.SetRows(rows)
	return m
}

// SetRows replaces the dataset.
func (m *MemorySource) SetRows(rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make([]Row, len(rows))
	copy(m.rows, rows)
	for i := range m.rows {
		m.rows[i].Index = i
	}
}

// Count implements Source.
func (m *MemorySource) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

// LoadPage implements Source.
func (m *MemorySource) LoadPage(ctx context.Context, page, pageSize int) ([]Row, error) {
	m.mu.Lock()
	m.calls[page]++
	attempt := m.calls[page]
	fail := m.FailFn
	latency := m.Latency
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if fail != nil {
		if err := fail(page, attempt); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	start := page * pageSize
	if page < 0 || start >= len(m.rows) {
		return nil, retry.Permanent(fmt.Errorf("page %d out of range", page))
	}
	end := start + pageSize
	if end > len(m.rows) {
		end = len(m.rows)
	}
	out := make([]Row, end-start)
	copy(out, m.rows[start:end])
	return out, nil
}

// Calls returns how many times page was requested.
func (m *MemorySource) Calls(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[page]
}

// TotalCalls returns the number of LoadPage calls across all pages.
func (m *MemorySource) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// GenerateRows builds n rows with a deterministic mix of portrait,
// landscape and square dimensions, plus the occasional video.
func GenerateRows(n int, seed int64) []Row {
	rng := rand.New(rand.NewSource(seed))
	shapes := [][2]int{{1920, 1080}, {1080, 1920}, {1024, 1024}, {800, 1200}, {1600, 900}, {3000, 2000}}
	rows := make([]Row, n)
	for i := range rows {
		s := shapes[rng.Intn(len(shapes))]
		rows[i] = Row{
			Index:   i,
			Name:    fmt.Sprintf("img_%06d.jpg", i),
			Width:   s[0],
			Height:  s[1],
			IsVideo: rng.Intn(50) == 0,
		}
		if rows[i].IsVideo {
			rows[i].Name = fmt.Sprintf("clip_%06d.mp4", i)
		}
	}
	return rows
}
