// Package bundle packs a recording (event log, session manifest and raw
// media) into a single .tar.gz for hand-off to enrichment tools.
package bundle

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/offlinefirst/action-observer/pkg/runmanifest"
)

// IndexName is the archive member listing every bundled file.
const IndexName = "index.json"

// Options configure an export.
type Options struct {
	Layout runmanifest.Layout
	// Path is the archive to write. Empty picks a fresh name in the bundles
	// directory.
	Path  string
	Clock func() time.Time
}

// Entry describes one archived file.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Index is written into the archive as IndexName.
type Index struct {
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `json:"session_id,omitempty"`
	Files     []Entry   `json:"files"`
}

// Result summarises a finished export.
type Result struct {
	Path           string
	Files          int
	Bytes          int64
	CompressedSize int64
}

// Export writes the archive. The event log must exist; the manifest and raw
// media are included when present.
func Export(ctx context.Context, opts Options) (Result, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if _, err := os.Stat(opts.Layout.LogPath); err != nil {
		return Result{}, fmt.Errorf("stat event log: %w", err)
	}

	target := opts.Path
	if strings.TrimSpace(target) == "" {
		if err := os.MkdirAll(opts.Layout.BundlesDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create bundles directory: %w", err)
		}
		var err error
		target, err = runmanifest.ResolveBundlePath(opts.Layout.BundlesDir, clock())
		if err != nil {
			return Result{}, err
		}
	}

	files, err := collect(opts.Layout)
	if err != nil {
		return Result{}, err
	}

	index := Index{CreatedAt: clock().UTC()}
	if man, err := runmanifest.Load(opts.Layout.ManifestPath); err == nil {
		index.SessionID = man.SessionID
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".bundle-*.tmp")
	if err != nil {
		return Result{}, fmt.Errorf("create bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	result := Result{Path: target}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return Result{}, err
		}
		entry, err := addFile(tw, f.source, f.name)
		if err != nil {
			tmp.Close()
			return Result{}, err
		}
		index.Files = append(index.Files, entry)
		result.Files++
		result.Bytes += entry.Size
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("marshal bundle index: %w", err)
	}
	hdr := &tar.Header{Name: IndexName, Mode: 0o644, Size: int64(len(data)), ModTime: index.CreatedAt}
	if err := tw.WriteHeader(hdr); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write index header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write index: %w", err)
	}

	if err := tw.Close(); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("finalise tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("finalise gzip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Result{}, fmt.Errorf("move bundle into place: %w", err)
	}
	if info, err := os.Stat(target); err == nil {
		result.CompressedSize = info.Size()
	}
	return result, nil
}

type member struct {
	source string
	name   string
}

func collect(layout runmanifest.Layout) ([]member, error) {
	members := []member{{source: layout.LogPath, name: filepath.Base(layout.LogPath)}}
	if _, err := os.Stat(layout.ManifestPath); err == nil {
		members = append(members, member{source: layout.ManifestPath, name: filepath.Base(layout.ManifestPath)})
	}

	var media []member
	err := filepath.WalkDir(layout.RawDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == layout.RawDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() && p == layout.BundlesDir {
			return filepath.SkipDir
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(layout.RawDir, p)
		if err != nil {
			return err
		}
		media = append(media, member{source: p, name: path.Join("raw", filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk raw media: %w", err)
	}
	sort.Slice(media, func(i, j int) bool { return media[i].name < media[j].name })
	return append(members, media...), nil
}

func addFile(tw *tar.Writer, source, name string) (Entry, error) {
	f, err := os.Open(source)
	if err != nil {
		return Entry{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", name, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return Entry{}, fmt.Errorf("header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return Entry{}, fmt.Errorf("write header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return Entry{}, fmt.Errorf("copy %s: %w", name, err)
	}
	return Entry{Name: name, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}
