package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/retry"
)

// Sort fields accepted by SetSort.
const (
	SortMTime       = "mtime"
	SortName        = "file_name"
	SortAspectRatio = "aspect_ratio"
	SortRating      = "rating"
)

const aspectExpr = `CASE WHEN width > 0 AND height > 0 THEN CAST(width AS REAL) / height ELSE 1.0 END`

var sortColumns = map[string]string{
	SortMTime:       "mtime",
	SortName:        "file_name",
	SortAspectRatio: aspectExpr,
	SortRating:      "rating",
}

// Sort is the row order served by LoadPage. file_name breaks ties.
type Sort struct {
	Field string
	Desc  bool
}

// DefaultSort orders newest first.
func DefaultSort() Sort {
	return Sort{Field: SortMTime, Desc: true}
}

func (s Sort) orderBy() string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	if s.Field == SortName {
		return "file_name " + dir
	}
	return sortColumns[s.Field] + " " + dir + ", file_name ASC"
}

// SetSort changes the row order. Callers re-plan the view afterwards.
func (d *DB) SetSort(s Sort) error {
	if _, ok := sortColumns[s.Field]; !ok {
		return fmt.Errorf("%q: %w", s.Field, ErrInvalidSort)
	}
	d.mu.Lock()
	d.sort = s
	d.mu.Unlock()
	return nil
}

// SetFilter restricts rows to file names containing substr (case-insensitive
// for ASCII). An empty filter matches everything.
func (d *DB) SetFilter(substr string) {
	d.mu.Lock()
	d.filter = substr
	d.mu.Unlock()
}

// Query returns the current sort and filter.
func (d *DB) Query() (Sort, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sort, d.filter
}

func likePattern(substr string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(substr) + "%"
}

func whereClause(filter string) (string, []any) {
	if filter == "" {
		return "", nil
	}
	return ` WHERE file_name LIKE ? ESCAPE '\'`, []any{likePattern(filter)}
}

// Count implements pagestore.Source.
func (d *DB) Count(ctx context.Context) (int, error) {
	_, filter := d.Query()
	where, args := whereClause(filter)

	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// LoadPage implements pagestore.Source.
func (d *DB) LoadPage(ctx context.Context, page, pageSize int) ([]pagestore.Row, error) {
	if page < 0 || pageSize <= 0 {
		return nil, retry.Permanent(fmt.Errorf("invalid page %d (size %d)", page, pageSize))
	}
	s, filter := d.Query()
	where, args := whereClause(filter)
	args = append(args, pageSize, page*pageSize)

	q := `SELECT file_name, width, height, is_video FROM images` + where +
		` ORDER BY ` + s.orderBy() + ` LIMIT ? OFFSET ?`
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", page, err)
	}
	defer rows.Close()

	out := make([]pagestore.Row, 0, pageSize)
	for rows.Next() {
		var r pagestore.Row
		var video int
		if err := rows.Scan(&r.Name, &r.Width, &r.Height, &video); err != nil {
			return nil, fmt.Errorf("load page %d: %w", page, err)
		}
		r.Index = page*pageSize + len(out)
		r.IsVideo = video != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load page %d: %w", page, err)
	}
	if len(out) == 0 && page > 0 {
		return nil, retry.Permanent(fmt.Errorf("page %d out of range", page))
	}
	return out, nil
}

// SetRating stores a 0..5 rating for a file.
func (d *DB) SetRating(ctx context.Context, fileName string, rating int) error {
	if rating < 0 || rating > 5 {
		return ErrInvalidRating
	}
	res, err := d.db.ExecContext(ctx, `UPDATE images SET rating = ? WHERE file_name = ?`, rating, fileName)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", fileName, ErrNotFound)
	}
	return nil
}

// Stats summarizes the indexed files, ignoring the filter.
type Stats struct {
	Total     int
	Videos    int
	Unknown   int // no dimensions
	Portrait  int // aspect < 0.9
	Square    int // 0.9 <= aspect < 1.1
	Landscape int // 1.1 <= aspect < 2
	Wide      int // aspect >= 2
	Bytes     int64
}

// Stats returns totals and an aspect ratio histogram.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	const q = `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_video), 0),
			COALESCE(SUM(CASE WHEN width <= 0 OR height <= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width > 0 AND height > 0 AND CAST(width AS REAL) / height < 0.9 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width > 0 AND height > 0 AND CAST(width AS REAL) / height >= 0.9 AND CAST(width AS REAL) / height < 1.1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width > 0 AND height > 0 AND CAST(width AS REAL) / height >= 1.1 AND CAST(width AS REAL) / height < 2.0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN width > 0 AND height > 0 AND CAST(width AS REAL) / height >= 2.0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(size), 0)
		FROM images`

	var s Stats
	err := d.db.QueryRowContext(ctx, q).Scan(
		&s.Total, &s.Videos, &s.Unknown, &s.Portrait, &s.Square, &s.Landscape, &s.Wide, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

var _ pagestore.Source = (*DB)(nil)
