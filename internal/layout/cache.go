package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/diskspace"
	"github.com/tagview/tagview/internal/logging"
)

// Cache memoizes packing results in memory and, when a directory is set,
// on disk keyed by dataset.
type Cache struct {
	mem    *lru.Cache[string, *Result]
	dir    string
	logger *logging.Logger
}

// CacheStats reports where a lookup was served from.
type CacheStats struct {
	MemoryHit bool
	DiskHit   bool
}

// NewCache creates a cache holding up to entries results in memory.
// dir may be empty to disable the disk tier.
func NewCache(entries int, dir string, logger *logging.Logger) (*Cache, error) {
	if entries < 1 {
		entries = constants.DefaultMemoryCacheEntries
	}
	mem, err := lru.New[string, *Result](entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create layout cache: %w", err)
	}
	if dir != "" {
		dir = filepath.Join(dir, "masonry")
	}
	return &Cache{mem: mem, dir: dir, logger: logging.OrNop(logger)}, nil
}

// Compute returns a cached result for tokens and geometry, or packs and stores one.
// datasetKey names the dataset (directory, sort and filter); an empty key skips the disk tier.
func (c *Cache) Compute(datasetKey string, tokens []Token, columnWidth, spacing, numColumns int) (Result, CacheStats, error) {
	var stats CacheStats

	fp := fingerprint(datasetKey, tokens, columnWidth, spacing, numColumns)
	if r, ok := c.mem.Get(fp); ok {
		stats.MemoryHit = true
		return *r, stats, nil
	}

	if datasetKey != "" && c.dir != "" {
		if r, ok := c.loadDisk(datasetKey, tokens, columnWidth, spacing, numColumns); ok {
			stats.DiskHit = true
			c.mem.Add(fp, &r)
			return r, stats, nil
		}
	}

	r, err := Compute(tokens, columnWidth, spacing, numColumns)
	if err != nil {
		return Result{}, stats, err
	}
	c.mem.Add(fp, &r)

	if datasetKey != "" && c.dir != "" {
		if err := c.saveDisk(datasetKey, tokens, &r); err != nil {
			c.logger.Warn().Err(err).Msg("layout cache write failed")
		}
	}
	return r, stats, nil
}

// Purge drops every in-memory entry.
func (c *Cache) Purge() {
	c.mem.Purge()
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return c.mem.Len()
}

func fingerprint(datasetKey string, tokens []Token, columnWidth, spacing, numColumns int) string {
	h := sha256.New()
	h.Write([]byte(datasetKey))
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(columnWidth))
	put(uint64(spacing))
	put(uint64(numColumns))
	for _, t := range tokens {
		put(uint64(t.Kind))
		if t.IsSpacer() {
			put(uint64(t.Height))
			continue
		}
		put(uint64(t.Index))
		put(math.Float64bits(t.AspectRatio))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// diskEntry is the on-disk JSON form.
type diskEntry struct {
	CacheVersion int         `json:"cache_version"`
	ColumnWidth  int         `json:"column_width"`
	Spacing      int         `json:"spacing"`
	NumColumns   int         `json:"num_columns"`
	TokenCount   int         `json:"token_count"`
	Tokens       []diskToken `json:"tokens"`
	Items        [][5]int    `json:"items"`
	TotalHeight  int         `json:"total_height"`
}

type diskToken struct {
	Index       int     `json:"i,omitempty"`
	AspectRatio float64 `json:"ar,omitempty"`
	Spacer      int     `json:"s,omitempty"`
	IsSpacer    bool    `json:"sp,omitempty"`
}

func (c *Cache) diskPath(datasetKey string, columnWidth, spacing, numColumns int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d", datasetKey, columnWidth, spacing, numColumns)))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".json")
}

func (c *Cache) loadDisk(datasetKey string, tokens []Token, columnWidth, spacing, numColumns int) (Result, bool) {
	path := c.diskPath(datasetKey, columnWidth, spacing, numColumns)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Debug().Err(err).Str("path", path).Msg("layout cache read failed")
		}
		return Result{}, false
	}

	var e diskEntry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("layout cache entry corrupt")
		return Result{}, false
	}
	if !e.matches(tokens, columnWidth, spacing, numColumns) {
		return Result{}, false
	}

	r := Result{
		Items:       make([]PositionedItem, len(e.Items)),
		TotalHeight: e.TotalHeight,
		ColumnWidth: e.ColumnWidth,
		Spacing:     e.Spacing,
		NumColumns:  e.NumColumns,
	}
	for i, it := range e.Items {
		r.Items[i] = PositionedItem{Index: it[0], X: it[1], Y: it[2], Width: it[3], Height: it[4]}
		if it[4] > r.MaxItemHeight {
			r.MaxItemHeight = it[4]
		}
	}
	return r, true
}

func (e *diskEntry) matches(tokens []Token, columnWidth, spacing, numColumns int) bool {
	if e.CacheVersion != constants.LayoutCacheVersion ||
		e.ColumnWidth != columnWidth || e.Spacing != spacing || e.NumColumns != numColumns ||
		e.TokenCount != len(tokens) || len(e.Tokens) != len(tokens) {
		return false
	}
	for i, t := range tokens {
		d := e.Tokens[i]
		if t.IsSpacer() != d.IsSpacer {
			return false
		}
		if t.IsSpacer() {
			if t.Height != d.Spacer {
				return false
			}
			continue
		}
		if t.Index != d.Index {
			return false
		}
		if math.Abs(SanitizeAspectRatio(t.AspectRatio)-d.AspectRatio) > constants.AspectRatioTolerance {
			return false
		}
	}
	return true
}

func (c *Cache) saveDisk(datasetKey string, tokens []Token, r *Result) error {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	e := diskEntry{
		CacheVersion: constants.LayoutCacheVersion,
		ColumnWidth:  r.ColumnWidth,
		Spacing:      r.Spacing,
		NumColumns:   r.NumColumns,
		TokenCount:   len(tokens),
		Tokens:       make([]diskToken, len(tokens)),
		Items:        make([][5]int, len(r.Items)),
		TotalHeight:  r.TotalHeight,
	}
	for i, t := range tokens {
		if t.IsSpacer() {
			e.Tokens[i] = diskToken{IsSpacer: true, Spacer: t.Height}
			continue
		}
		e.Tokens[i] = diskToken{Index: t.Index, AspectRatio: SanitizeAspectRatio(t.AspectRatio)}
	}
	for i, it := range r.Items {
		e.Items[i] = [5]int{it.Index, it.X, it.Y, it.Width, it.Height}
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to encode layout cache entry: %w", err)
	}

	path := c.diskPath(datasetKey, r.ColumnWidth, r.Spacing, r.NumColumns)
	if err := diskspace.CheckAvailableSpace(path, int64(len(data)), constants.DiskSafetyMargin); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write layout cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save layout cache entry: %w", err)
	}
	return nil
}
