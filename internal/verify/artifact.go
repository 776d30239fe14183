package verify

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/FranksOps/pdfsearch/internal/metrics"
	"github.com/google/uuid"
)

const artifactPrefix = "pdfsearch-"

// artifact is a transient download owned by exactly one filter task.
type artifact struct {
	path    string
	f       *os.File
	removed bool
}

// newArtifact creates a fresh, uniquely named file in dir. O_EXCL guarantees
// no two tasks ever share a path.
func newArtifact(dir, ext string) (*artifact, error) {
	path := filepath.Join(dir, artifactPrefix+uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("verify: create artifact: %w", err)
	}
	metrics.ArtifactsActive.Inc()
	return &artifact{path: path, f: f}, nil
}

// fill streams r to disk and closes the file.
func (a *artifact) fill(r io.Reader) (int64, error) {
	n, err := io.Copy(a.f, r)
	cerr := a.f.Close()
	a.f = nil
	if err != nil {
		return n, fmt.Errorf("verify: write artifact: %w", err)
	}
	if cerr != nil {
		return n, fmt.Errorf("verify: close artifact: %w", cerr)
	}
	return n, nil
}

// remove deletes the file. Safe to call after any step. A failed removal
// leaves the artifact counted as active and may be retried.
func (a *artifact) remove() error {
	if a.removed {
		return nil
	}
	if a.f != nil {
		_ = a.f.Close()
		a.f = nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("verify: remove artifact: %w", err)
	}
	a.removed = true
	metrics.ArtifactsActive.Dec()
	return nil
}
