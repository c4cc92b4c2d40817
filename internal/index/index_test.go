package index

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/retry"
)

func writePNG(t *testing.T, dir, name string, w, h int, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		f.Close()
		t.Fatal(err)
	}
	f.Close()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really media"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

// fixture: a.png 40x20 (oldest), b.png 10x30, c.png 25x25, d.mp4 (newest)
func openFixture(t *testing.T) (*DB, string) {
	t.Helper()
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writePNG(t, dir, "a.png", 40, 20, base)
	writePNG(t, dir, "b.png", 10, 30, base.Add(time.Minute))
	writePNG(t, dir, "c.png", 25, 25, base.Add(2*time.Minute))
	writeFile(t, dir, "d.mp4", base.Add(3*time.Minute))
	writeFile(t, dir, "notes.txt", base)

	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Scan(context.Background(), ScanOptions{}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return db, dir
}

func names(t *testing.T, db *DB, page, size int) []string {
	t.Helper()
	rows, err := db.LoadPage(context.Background(), page, size)
	if err != nil {
		t.Fatalf("LoadPage(%d) failed: %v", page, err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		if r.Index != page*size+i {
			t.Errorf("row %d has index %d", i, r.Index)
		}
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if filepath.Base(db.Path()) != constants.IndexDBName || !filepath.IsAbs(db.Dir()) {
		t.Errorf("unexpected path %q", db.Path())
	}
	if _, err := os.Stat(db.Path()); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	n, err := db.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Count() = %d, %v; want 0, nil", n, err)
	}
}

func TestOpen_NotDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.png")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
}

func TestOpen_RecreatesCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.IndexDBName), garbage, 0644); err != nil {
		t.Fatal(err)
	}

	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open should recover from a corrupt file, got %v", err)
	}
	defer db.Close()
	if _, err := db.Count(context.Background()); err != nil {
		t.Errorf("Count after recovery failed: %v", err)
	}
}

func TestOpen_VersionMismatchClearsImages(t *testing.T) {
	db, dir := openFixture(t)
	if _, err := db.db.Exec(`UPDATE meta SET value = '0' WHERE key = 'version'`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	reopened, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close()
	n, _ := reopened.Count(context.Background())
	if n != 0 {
		t.Errorf("Expected images cleared after version change, got %d", n)
	}
}

func TestScan(t *testing.T) {
	db, dir := openFixture(t)
	ctx := context.Background()

	n, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("Count() = %d, want 4", n)
	}

	rows, err := db.LoadPage(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string][2]int)
	for _, r := range rows {
		byName[r.Name] = [2]int{r.Width, r.Height}
		if r.Name == "d.mp4" && !r.IsVideo {
			t.Error("d.mp4 should be a video")
		}
	}
	if byName["a.png"] != [2]int{40, 20} {
		t.Errorf("a.png dimensions = %v", byName["a.png"])
	}
	if byName["b.png"] != [2]int{10, 30} {
		t.Errorf("b.png dimensions = %v", byName["b.png"])
	}
	if byName["d.mp4"] != [2]int{0, 0} {
		t.Errorf("d.mp4 dimensions = %v", byName["d.mp4"])
	}

	// Rescan: nothing changed, then one file modified and one removed.
	res, err := db.Scan(ctx, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Unchanged != 4 || res.Added != 0 || res.Removed != 0 {
		t.Errorf("unexpected rescan result %+v", res)
	}

	writePNG(t, dir, "a.png", 30, 60, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err := os.Remove(filepath.Join(dir, "c.png")); err != nil {
		t.Fatal(err)
	}
	res, err = db.Scan(ctx, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 || res.Removed != 1 || res.Unchanged != 2 {
		t.Errorf("unexpected rescan result %+v", res)
	}
	if err := db.SetSort(Sort{Field: SortName}); err != nil {
		t.Fatal(err)
	}
	rows, _ = db.LoadPage(ctx, 0, 10)
	if len(rows) != 3 || rows[0].Name != "a.png" || rows[0].Width != 30 || rows[0].Height != 60 {
		t.Errorf("unexpected rows after rescan: %+v", rows)
	}
}

func TestScan_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4, 4, time.Now())
	db, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.Scan(ctx, ScanOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLoadPage_Sorting(t *testing.T) {
	db, _ := openFixture(t)

	tests := []struct {
		sort Sort
		want []string
	}{
		{DefaultSort(), []string{"d.mp4", "c.png", "b.png", "a.png"}},
		{Sort{Field: SortMTime}, []string{"a.png", "b.png", "c.png", "d.mp4"}},
		{Sort{Field: SortName, Desc: true}, []string{"d.mp4", "c.png", "b.png", "a.png"}},
		// b 0.33, c 1.0, d 1.0 (unknown), a 2.0; ties by name
		{Sort{Field: SortAspectRatio}, []string{"b.png", "c.png", "d.mp4", "a.png"}},
		{Sort{Field: SortAspectRatio, Desc: true}, []string{"a.png", "c.png", "d.mp4", "b.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.sort.Field, func(t *testing.T) {
			if err := db.SetSort(tt.sort); err != nil {
				t.Fatal(err)
			}
			if got := names(t, db, 0, 10); !equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadPage_Paging(t *testing.T) {
	db, _ := openFixture(t)
	if err := db.SetSort(Sort{Field: SortName}); err != nil {
		t.Fatal(err)
	}

	if got := names(t, db, 0, 3); !equal(got, []string{"a.png", "b.png", "c.png"}) {
		t.Errorf("page 0 = %v", got)
	}
	if got := names(t, db, 1, 3); !equal(got, []string{"d.mp4"}) {
		t.Errorf("page 1 = %v", got)
	}

	_, err := db.LoadPage(context.Background(), 2, 3)
	if !retry.IsPermanent(err) {
		t.Errorf("Expected permanent error past the end, got %v", err)
	}
	_, err = db.LoadPage(context.Background(), -1, 3)
	if !retry.IsPermanent(err) {
		t.Errorf("Expected permanent error for negative page, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	db, _ := openFixture(t)
	ctx := context.Background()
	if err := db.SetSort(Sort{Field: SortName}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a.png", "b.png", "c.png", "d.mp4"}},
		{".PNG", []string{"a.png", "b.png", "c.png"}},
		{"mp4", []string{"d.mp4"}},
		{"%", nil},
		{"_", nil},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			db.SetFilter(tt.filter)
			n, err := db.Count(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(tt.want) {
				t.Errorf("Count() = %d, want %d", n, len(tt.want))
			}
			if len(tt.want) == 0 {
				return
			}
			if got := names(t, db, 0, 10); !equal(got, tt.want) {
				t.Errorf("rows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetSort_Invalid(t *testing.T) {
	db, _ := openFixture(t)
	if err := db.SetSort(Sort{Field: "width; DROP TABLE images"}); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("Expected ErrInvalidSort, got %v", err)
	}
	if s, _ := db.Query(); s != DefaultSort() {
		t.Errorf("sort changed to %+v", s)
	}
}

func TestSetRating(t *testing.T) {
	db, _ := openFixture(t)
	ctx := context.Background()

	if err := db.SetRating(ctx, "b.png", 5); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRating(ctx, "c.png", 3); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRating(ctx, "a.png", 9); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("Expected ErrInvalidRating, got %v", err)
	}
	if err := db.SetRating(ctx, "zz.png", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := db.SetSort(Sort{Field: SortRating, Desc: true}); err != nil {
		t.Fatal(err)
	}
	if got := names(t, db, 0, 10); !equal(got, []string{"b.png", "c.png", "a.png", "d.mp4"}) {
		t.Errorf("rating order = %v", got)
	}

	// A rescan keeps ratings.
	if _, err := db.Scan(ctx, ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := names(t, db, 0, 1); !equal(got, []string{"b.png"}) {
		t.Errorf("rating lost after rescan: %v", got)
	}
}

func TestStats(t *testing.T) {
	db, _ := openFixture(t)
	s, err := db.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 4, Videos: 1, Unknown: 1, Portrait: 1, Square: 1, Wide: 1}
	s.Bytes = 0
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}
