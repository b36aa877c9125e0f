// Package workspace manages the on-disk working area: uploaded sources,
// per-render scratch directories, and finished outputs. Scratch dirs are
// flock-guarded so two renders, even across processes, never share one.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockFileName = ".lock"

type Workspace struct {
	log  *zap.Logger
	root string
}

// New creates the working area under root, building the uploads, renders
// and outputs subdirectories.
func New(log *zap.Logger, root string) (*Workspace, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if root == "" {
		return nil, fmt.Errorf("workspace: empty root")
	}
	w := &Workspace{log: log.Named("workspace"), root: root}
	for _, dir := range []string{root, w.uploadsDir(), w.rendersDir(), w.outputsDir(), w.thumbsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("workspace: create %s: %w", dir, err)
		}
	}
	return w, nil
}

func (w *Workspace) Root() string       { return w.root }
func (w *Workspace) uploadsDir() string { return filepath.Join(w.root, "uploads") }
func (w *Workspace) rendersDir() string { return filepath.Join(w.root, "renders") }
func (w *Workspace) outputsDir() string { return filepath.Join(w.root, "outputs") }
func (w *Workspace) thumbsDir() string  { return filepath.Join(w.root, "thumbs") }

// SaveUpload streams r into the uploads area under the given id, keeping
// only the original extension. Returns the stored path and size.
func (w *Workspace) SaveUpload(id uuid.UUID, filename string, r io.Reader) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(w.uploadsDir(), id.String()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("save upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("save upload: %w", err)
	}
	return path, n, nil
}

// AdoptFile moves an externally produced file (a yt-dlp download) into
// the uploads area under a fresh id.
func (w *Workspace) AdoptFile(id uuid.UUID, src string) (string, error) {
	dst := filepath.Join(w.uploadsDir(), id.String()+strings.ToLower(filepath.Ext(src)))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("adopt %s: %w", src, err)
	}
	return dst, nil
}

// TempDir makes a throwaway directory inside the workspace, for fetches
// and other staging that precedes adoption.
func (w *Workspace) TempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(w.root, prefix)
	if err != nil {
		return "", fmt.Errorf("workspace temp dir: %w", err)
	}
	return dir, nil
}

// OutputPath is where a job's final encode lands. Outputs live outside
// the scratch area so releasing a render dir never deletes them.
func (w *Workspace) OutputPath(id uuid.UUID, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.outputsDir(), id.String()+ext)
}

// ThumbnailPath is where the poster frame for an upload is cached.
func (w *Workspace) ThumbnailPath(id uuid.UUID) string {
	return filepath.Join(w.thumbsDir(), id.String()+".jpg")
}

// RenderDir is a locked scratch directory for one render invocation.
type RenderDir struct {
	Path string
	lock *flock.Flock
}

// AcquireRenderDir creates and locks the scratch dir for a job. The lock
// is held until Release; a second acquisition of the same id fails.
func (w *Workspace) AcquireRenderDir(id uuid.UUID) (*RenderDir, error) {
	dir := filepath.Join(w.rendersDir(), id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("render dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock render dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("render dir %s is in use by another render", dir)
	}
	return &RenderDir{Path: dir, lock: lock}, nil
}

// LayerPath names the rasterized layer file for a cue inside the scratch
// dir. Zero-padding keeps directory listings in cue order.
func (d *RenderDir) LayerPath(index int) string {
	return filepath.Join(d.Path, fmt.Sprintf("layer_%04d.png", index))
}

// File returns the path for an arbitrary intermediate inside the dir.
func (d *RenderDir) File(name string) string {
	return filepath.Join(d.Path, name)
}

// Release unlocks and removes the scratch directory with everything in
// it. Outputs live elsewhere, so this is always safe after a render.
func (d *RenderDir) Release() error {
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock render dir: %w", err)
	}
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("remove render dir: %w", err)
	}
	return nil
}

// Sweep deletes uploads, outputs and render scratch older than maxAge.
// Scratch dirs still holding their lock are skipped.
func (w *Workspace) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range []string{w.uploadsDir(), w.outputsDir(), w.thumbsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}

	entries, err := os.ReadDir(w.rendersDir())
	if err != nil {
		return removed
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(w.rendersDir(), e.Name())
		lock := flock.New(filepath.Join(path, lockFileName))
		ok, err := lock.TryLock()
		if err != nil || !ok {
			continue // active render
		}
		lock.Unlock()
		if err := os.RemoveAll(path); err == nil {
			removed++
		}
	}

	if removed > 0 {
		w.log.Info("swept stale workspace entries", zap.Int("removed", removed))
	}
	return removed
}
