package localfs

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

// FileEntry is one media file found by WalkMedia.
type FileEntry struct {
	Path    string // full path
	Rel     string // slash-separated path relative to the root
	Size    int64
	ModTime time.Time
	Kind    Kind
}

// WalkOptions configures WalkMedia.
type WalkOptions struct {
	// IncludeHidden visits hidden files and directories.
	IncludeHidden bool

	// Recursive descends into subdirectories.
	Recursive bool
}

// WalkFunc is called for every media file. Returning an error stops the walk.
type WalkFunc func(entry FileEntry) error

// WalkMedia visits the image and video files under root in lexical order.
// Unreadable entries are skipped. The walk stops when ctx is cancelled.
func WalkMedia(ctx context.Context, root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || (!opts.IncludeHidden && IsHiddenName(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}

		if !opts.IncludeHidden && IsHiddenName(d.Name()) {
			return nil
		}
		kind := Classify(d.Name())
		if kind == KindOther {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		return fn(FileEntry{
			Path:    path,
			Rel:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    kind,
		})
	})
}

// CollectMedia returns every media file under root.
func CollectMedia(ctx context.Context, root string, opts WalkOptions) ([]FileEntry, error) {
	var out []FileEntry
	err := WalkMedia(ctx, root, opts, func(e FileEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
