package index

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"math"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/diskspace"
	"github.com/tagview/tagview/internal/localfs"
	"github.com/tagview/tagview/internal/progress"
)

// mtimeTolerance absorbs float rounding in stored modification times.
const mtimeTolerance = 0.1

// ScanOptions configures Scan.
type ScanOptions struct {
	// Recursive includes subdirectories.
	Recursive bool

	// IncludeHidden includes dot files and dot directories.
	IncludeHidden bool

	// Progress receives one update per file (nil = no reporting).
	Progress progress.Reporter
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Total     int
	Added     int
	Updated   int
	Unchanged int
	Removed   int
	Failed    int
	Elapsed   time.Duration
}

type record struct {
	name    string
	width   int
	height  int
	isVideo bool
	size    int64
	mtime   float64
}

// Scan brings the index in line with the directory. Files whose modification
// time is unchanged keep their stored dimensions. Videos are stored without
// dimensions. Files that are gone are removed.
func (d *DB) Scan(ctx context.Context, opts ScanOptions) (ScanResult, error) {
	started := time.Now()
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	known, err := d.storedMtimes(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	entries, err := localfs.CollectMedia(ctx, d.dir, localfs.WalkOptions{
		Recursive:     opts.Recursive,
		IncludeHidden: opts.IncludeHidden,
	})
	if err != nil {
		reporter.Error(err)
		return ScanResult{}, fmt.Errorf("walk %s: %w", d.dir, err)
	}

	if added := len(entries) - len(known); added > 0 {
		need := int64(added) * constants.IndexRowEstimate
		if err := diskspace.CheckAvailableSpace(d.path, need, constants.DiskSafetyMargin); err != nil {
			reporter.Error(err)
			return ScanResult{}, err
		}
	}

	res := ScanResult{Total: len(entries)}
	reporter.Start(int64(len(entries)), "Indexing "+d.dir)

	seen := make(map[string]bool, len(entries))
	batch := make([]record, 0, constants.IndexCommitBatch)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			reporter.Error(err)
			return res, err
		}
		seen[e.Rel] = true
		mtime := float64(e.ModTime.UnixNano()) / 1e9

		prev, exists := known[e.Rel]
		if exists && math.Abs(prev-mtime) < mtimeTolerance {
			res.Unchanged++
			reporter.Update(int64(i + 1))
			continue
		}

		rec := record{name: e.Rel, size: e.Size, mtime: mtime, isVideo: e.Kind == localfs.KindVideo}
		if !rec.isVideo {
			w, h, err := measure(e.Path)
			if err != nil {
				res.Failed++
				d.logger.Debug().Err(err).Str("file", e.Rel).Msg("could not read dimensions")
			}
			rec.width, rec.height = w, h
		}
		if exists {
			res.Updated++
		} else {
			res.Added++
		}

		batch = append(batch, rec)
		if len(batch) >= constants.IndexCommitBatch {
			if err := d.upsert(ctx, batch); err != nil {
				reporter.Error(err)
				return res, err
			}
			batch = batch[:0]
		}
		reporter.Update(int64(i + 1))
	}
	if err := d.upsert(ctx, batch); err != nil {
		reporter.Error(err)
		return res, err
	}

	var gone []string
	for name := range known {
		if !seen[name] {
			gone = append(gone, name)
		}
	}
	if err := d.remove(ctx, gone); err != nil {
		reporter.Error(err)
		return res, err
	}
	res.Removed = len(gone)
	res.Elapsed = time.Since(started)
	reporter.Finish()

	d.logger.Info().
		Int("total", res.Total).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("removed", res.Removed).
		Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("scan complete")
	return res, nil
}

func (d *DB) storedMtimes(ctx context.Context) (map[string]float64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT file_name, mtime FROM images`)
	if err != nil {
		return nil, fmt.Errorf("query mtimes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var mtime float64
		if err := rows.Scan(&name, &mtime); err != nil {
			return nil, err
		}
		out[name] = mtime
	}
	return out, rows.Err()
}

func (d *DB) upsert(ctx context.Context, batch []record) error {
	if len(batch) == 0 {
		return nil
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO images (file_name, width, height, is_video, size, mtime)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_name) DO UPDATE SET
				width = excluded.width,
				height = excluded.height,
				is_video = excluded.is_video,
				size = excluded.size,
				mtime = excluded.mtime`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range batch {
			if _, err := stmt.ExecContext(ctx, r.name, r.width, r.height, boolInt(r.isVideo), r.size, r.mtime); err != nil {
				return fmt.Errorf("upsert %s: %w", r.name, err)
			}
		}
		return nil
	})
}

func (d *DB) remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, n := range names {
			if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE file_name = ?`, n); err != nil {
				return fmt.Errorf("delete %s: %w", n, err)
			}
		}
		return nil
	})
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// measure reads image dimensions from the file header.
func measure(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
