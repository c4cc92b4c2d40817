// Package pagestore loads, holds and evicts fixed-size pages of rows from a Source.
package pagestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/retry"
)

// State is the lifecycle state of a page.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Evicted
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("page store closed")

// PageRange is an inclusive range of page numbers.
type PageRange struct {
	Start int
	End   int
}

// Contains reports whether p lies in the range.
func (r PageRange) Contains(p int) bool {
	return p >= r.Start && p <= r.End
}

// Completion is the outcome of one page load, delivered to the store owner.
type Completion struct {
	Page  int
	Epoch uint64
	Rows  []Row
	Err   error
}

// Config configures a Store.
type Config struct {
	PageSize    int
	Workers     int
	MaxResident int // 0 = unbounded
	Retry       retry.Config
}

type page struct {
	state   State
	rows    []Row
	touched uint64
}

// Store tracks page states and resident rows.
//
// Loads run on a bounded pool and report through Completions(). The owner
// applies each completion with Apply on its own goroutine, so page state
// only changes where the owner can see it.
type Store struct {
	source Source
	cfg    Config
	bus    *events.EventBus
	logger *logging.Logger

	mu      sync.Mutex
	total   int
	pages   map[int]*page
	epoch   uint64
	clock   uint64
	closed  bool
	pending int

	sem         *semaphore.Weighted
	completions chan Completion
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a store over source. Call Refresh or Reset to set the item count.
func New(source Source, cfg Config, bus *events.EventBus, logger *logging.Logger) *Store {
	if cfg.PageSize < 1 {
		cfg.PageSize = constants.DefaultPageSize
	}
	if cfg.Workers < 1 {
		cfg.Workers = constants.MinLoadWorkers
	}
	if cfg.Retry.MaxRetries < 1 {
		cfg.Retry = retry.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		source:      source,
		cfg:         cfg,
		bus:         bus,
		logger:      logging.OrNop(logger).Component("pagestore"),
		pages:       make(map[int]*page),
		sem:         semaphore.NewWeighted(int64(cfg.Workers)),
		completions: make(chan Completion, 4*cfg.Workers+16),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// PageSize returns the configured page size.
func (s *Store) PageSize() int {
	return s.cfg.PageSize
}

// Completions delivers load outcomes. Closed by Close.
func (s *Store) Completions() <-chan Completion {
	return s.completions
}

// Refresh asks the source for the item count and resets all pages.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	var n int
	err := retry.Execute(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		n, err = s.source.Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	s.Reset(n)
	return n, nil
}

// Reset drops every page and sets the item count. In-flight loads from
// before the reset are ignored when they complete.
func (s *Store) Reset(total int) {
	if total < 0 {
		total = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
	s.pages = make(map[int]*page)
	s.epoch++
	s.pending = 0
}

// TotalCount returns the number of items in the dataset.
func (s *Store) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// PageCount returns the number of pages covering the dataset.
func (s *Store) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCountLocked()
}

func (s *Store) pageCountLocked() int {
	return (s.total + s.cfg.PageSize - 1) / s.cfg.PageSize
}

// Epoch returns the current reset generation.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// EnsureLoaded requests every page overlapping [startIndex, endIndex) that is
// Unloaded or Evicted. Pages already Loading or Loaded are left alone, so
// repeated and overlapping calls request each page once. Returns the pages requested.
func (s *Store) EnsureLoaded(startIndex, endIndex int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if endIndex > s.total {
		endIndex = s.total
	}
	if endIndex <= startIndex {
		return nil, nil
	}

	first := startIndex / s.cfg.PageSize
	last := (endIndex - 1) / s.cfg.PageSize

	var requested []int
	for p := first; p <= last; p++ {
		pg := s.pages[p]
		if pg == nil {
			pg = &page{}
			s.pages[p] = pg
		}
		if pg.state != Unloaded && pg.state != Evicted {
			continue
		}
		pg.state = Loading
		s.pending++
		requested = append(requested, p)
		s.startLoad(p, s.epoch)
	}
	return requested, nil
}

// startLoad is called with s.mu held.
func (s *Store) startLoad(p int, epoch uint64) {
	s.bus.PublishPage(events.EventPageRequested, p, epoch, 0, 0, nil)
	s.logger.Debug().Int("page", p).Uint64("epoch", epoch).Msg("page load requested")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Loads belong to the store and end when it closes.
		loadCtx := s.ctx

		c := Completion{Page: p, Epoch: epoch}
		if err := s.sem.Acquire(loadCtx, 1); err != nil {
			return
		}
		attempts := 0
		c.Err = retry.Execute(loadCtx, s.cfg.Retry, func(ctx context.Context) error {
			attempts++
			rows, err := s.source.LoadPage(ctx, p, s.cfg.PageSize)
			if err != nil {
				return err
			}
			c.Rows = rows
			return nil
		})
		s.sem.Release(1)

		if c.Err != nil {
			s.logger.Warn().Err(c.Err).Int("page", p).Int("attempts", attempts).Msg("page load failed")
		}

		if loadCtx.Err() != nil {
			return
		}
		select {
		case s.completions <- c:
		case <-loadCtx.Done():
		}
	}()
}

// Apply records a completion. Returns false for completions from before the
// last Reset, which are dropped. A failed load returns the page to Unloaded.
func (s *Store) Apply(c Completion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Epoch != s.epoch {
		s.logger.Debug().Int("page", c.Page).Uint64("epoch", c.Epoch).Msg("stale page completion dropped")
		return false
	}
	pg := s.pages[c.Page]
	if pg == nil || pg.state != Loading {
		return false
	}
	s.pending--

	if c.Err != nil {
		pg.state = Unloaded
		pg.rows = nil
		s.bus.PublishPage(events.EventPageFailed, c.Page, c.Epoch, 0, s.cfg.Retry.MaxRetries, c.Err)
		return true
	}

	pg.state = Loaded
	pg.rows = c.Rows
	s.clock++
	pg.touched = s.clock
	s.bus.PublishPage(events.EventPageLoaded, c.Page, c.Epoch, len(c.Rows), 0, nil)
	return true
}

// Touch marks pages in r as recently used.
func (s *Store) Touch(r PageRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	for p := r.Start; p <= r.End; p++ {
		if pg := s.pages[p]; pg != nil && pg.state == Loaded {
			pg.touched = s.clock
		}
	}
}

// EvictFarFrom frees the rows of loaded pages more than keepRadius pages
// from the page holding centerIndex. Pages in protected are never evicted.
// When MaxResident is set, least recently used pages outside protected are
// evicted until the resident count fits. Returns the evicted pages.
func (s *Store) EvictFarFrom(centerIndex, keepRadius int, protected PageRange) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	center := centerIndex / s.cfg.PageSize
	var evicted []int

	for p, pg := range s.pages {
		if pg.state != Loaded || protected.Contains(p) {
			continue
		}
		if p < center-keepRadius || p > center+keepRadius {
			s.evictLocked(p, pg)
			evicted = append(evicted, p)
		}
	}

	if s.cfg.MaxResident > 0 {
		var resident []int
		for p, pg := range s.pages {
			if pg.state == Loaded {
				resident = append(resident, p)
			}
		}
		if over := len(resident) - s.cfg.MaxResident; over > 0 {
			sort.Slice(resident, func(i, j int) bool {
				return s.pages[resident[i]].touched < s.pages[resident[j]].touched
			})
			for _, p := range resident {
				if over == 0 {
					break
				}
				if protected.Contains(p) {
					continue
				}
				s.evictLocked(p, s.pages[p])
				evicted = append(evicted, p)
				over--
			}
		}
	}

	sort.Ints(evicted)
	return evicted
}

func (s *Store) evictLocked(p int, pg *page) {
	pg.state = Evicted
	pg.rows = nil
	s.bus.PublishPage(events.EventPageEvicted, p, s.epoch, 0, 0, nil)
	s.logger.Debug().Int("page", p).Msg("page evicted")
}

// PageState returns the state of page p.
func (s *Store) PageState(p int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pg := s.pages[p]; pg != nil {
		return pg.state
	}
	return Unloaded
}

// IsPageLoaded reports whether page p is Loaded.
func (s *Store) IsPageLoaded(p int) bool {
	return s.PageState(p) == Loaded
}

// LoadedPages returns loaded page numbers in ascending order.
func (s *Store) LoadedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for p, pg := range s.pages {
		if pg.state == Loaded {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Pending returns the number of loads requested but not yet applied.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Row returns the row at index i if its page is loaded.
func (s *Store) Row(i int) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.total {
		return Row{}, false
	}
	pg := s.pages[i/s.cfg.PageSize]
	if pg == nil || pg.state != Loaded {
		return Row{}, false
	}
	off := i % s.cfg.PageSize
	if off >= len(pg.rows) {
		return Row{}, false
	}
	return pg.rows[off], true
}

// LoadedRows returns the loaded rows with index in [minIndex, maxIndex), in index order.
func (s *Store) LoadedRows(minIndex, maxIndex int) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	if minIndex < 0 {
		minIndex = 0
	}
	if maxIndex > s.total {
		maxIndex = s.total
	}
	if maxIndex <= minIndex {
		return nil
	}

	var out []Row
	for p := minIndex / s.cfg.PageSize; p <= (maxIndex-1)/s.cfg.PageSize; p++ {
		pg := s.pages[p]
		if pg == nil || pg.state != Loaded {
			continue
		}
		base := p * s.cfg.PageSize
		for off, r := range pg.rows {
			idx := base + off
			if idx < minIndex || idx >= maxIndex {
				continue
			}
			r.Index = idx
			out = append(out, r)
		}
	}
	return out
}

// Close cancels in-flight loads, waits for workers and closes Completions.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	close(s.completions)
}
