// Package archive copies a finished run's artifact tree into blob storage
// and restores it back onto local disk.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/plugpep/pkg/storage"
	"github.com/JaimeStill/plugpep/workflow"
)

// ManifestFile is written last, so its presence marks a complete archive.
const ManifestFile = "manifest.json"

const uploadConcurrency = 4

var (
	// ErrNotArchived indicates no manifest exists for the workflow.
	ErrNotArchived = errors.New("workflow is not archived")
	// ErrNoWorkflowDir indicates the state has no artifact directory to archive.
	ErrNoWorkflowDir = errors.New("workflow directory is not set")
)

// Entry describes one archived (or skipped) file.
type Entry struct {
	Path        string `json:"path"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Manifest lists what an archive holds.
type Manifest struct {
	WorkflowID string          `json:"workflow_id"`
	Status     workflow.Status `json:"status"`
	ArchivedAt time.Time       `json:"archived_at"`
	Files      []Entry         `json:"files"`
	Skipped    []Entry         `json:"skipped"`
}

// Archiver uploads run directories under the "<workflowID>/" key prefix.
type Archiver struct {
	store       storage.System
	maxFileSize int64
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Archiver. Files larger than maxFileSize are listed in the
// manifest as skipped; a non-positive maxFileSize disables the limit.
func New(store storage.System, maxFileSize int64, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:       store,
		maxFileSize: maxFileSize,
		logger:      logger.With("system", "archive"),
		now:         time.Now,
	}
}

// Key returns the blob key for a file path relative to the workflow directory.
func Key(workflowID, rel string) string {
	return path.Join(workflowID, filepath.ToSlash(rel))
}

// Archive uploads every regular file under s.WorkflowDir followed by the
// manifest. If any upload fails, blobs already written are removed.
func (a *Archiver) Archive(ctx context.Context, s *workflow.State) (*Manifest, error) {
	if s == nil {
		return nil, workflow.ErrNilState
	}
	if s.WorkflowDir == "" {
		return nil, ErrNoWorkflowDir
	}

	files, skipped, err := a.collect(s)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	uploaded := make([]bool, len(files))
	for i, e := range files {
		g.Go(func() error {
			if err := a.upload(gctx, filepath.Join(s.WorkflowDir, filepath.FromSlash(e.Path)), e); err != nil {
				return err
			}
			uploaded[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.rollback(ctx, files, uploaded)
		return nil, fmt.Errorf("archive %s: %w", s.WorkflowID, err)
	}

	m := &Manifest{
		WorkflowID: s.WorkflowID,
		Status:     s.Orchestrator.WorkflowStatus,
		ArchivedAt: a.now().UTC(),
		Files:      files,
		Skipped:    skipped,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		a.rollback(ctx, files, uploaded)
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	key := Key(s.WorkflowID, ManifestFile)
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		a.rollback(ctx, files, uploaded)
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	a.logger.InfoContext(
		ctx, "workflow archived",
		"workflow_id", s.WorkflowID,
		"files", len(files),
		"skipped", len(skipped),
	)

	return m, nil
}

// Archived reports whether a complete archive exists for workflowID.
func (a *Archiver) Archived(ctx context.Context, workflowID string) (bool, error) {
	return a.store.Exists(ctx, Key(workflowID, ManifestFile))
}

// Manifest downloads and decodes the manifest for workflowID.
func (a *Archiver) Manifest(ctx context.Context, workflowID string) (*Manifest, error) {
	rc, err := a.store.Download(ctx, Key(workflowID, ManifestFile))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotArchived, workflowID)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Restore downloads the archived files for workflowID into root/<workflowID>/
// and loads the snapshot found there. The restored state's WorkflowDir points
// at the new location.
func (a *Archiver) Restore(ctx context.Context, workflowID, root string) (*workflow.State, error) {
	m, err := a.Manifest(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(root, workflowID)
	for _, e := range m.Files {
		if err := a.download(ctx, e.Key, filepath.Join(dir, filepath.FromSlash(e.Path))); err != nil {
			return nil, err
		}
	}

	s, err := workflow.Load(filepath.Join(dir, workflow.StateFile))
	if err != nil {
		return nil, fmt.Errorf("load restored state: %w", err)
	}
	s.WorkflowDir = dir

	a.logger.InfoContext(ctx, "workflow restored", "workflow_id", workflowID, "dir", dir)
	return s, nil
}

func (a *Archiver) collect(s *workflow.State) (files, skipped []Entry, err error) {
	files, skipped = []Entry{}, []Entry{}

	err = filepath.WalkDir(s.WorkflowDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(s.WorkflowDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestFile || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		e := Entry{
			Path:        rel,
			Key:         Key(s.WorkflowID, rel),
			Size:        info.Size(),
			ContentType: ContentType(rel),
		}

		if a.maxFileSize > 0 && e.Size > a.maxFileSize {
			skipped = append(skipped, e)
			return nil
		}
		files = append(files, e)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", s.WorkflowDir, err)
	}

	byPath := func(x, y Entry) int { return strings.Compare(x.Path, y.Path) }
	slices.SortFunc(files, byPath)
	slices.SortFunc(skipped, byPath)
	return files, skipped, nil
}

func (a *Archiver) upload(ctx context.Context, src string, e Entry) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer f.Close()

	if err := a.store.Upload(ctx, e.Key, f, e.ContentType); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "artifact uploaded", "key", e.Key, "size", e.Size)
	return nil
}

func (a *Archiver) rollback(ctx context.Context, files []Entry, uploaded []bool) {
	for i, e := range files {
		if !uploaded[i] {
			continue
		}
		if err := a.store.Delete(ctx, e.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.logger.WarnContext(ctx, "compensating blob delete failed", "key", e.Key, "error", err)
		}
	}
}

func (a *Archiver) download(ctx context.Context, key, dest string) error {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}

// ContentType guesses the MIME type of an artifact from its extension.
func ContentType(name string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".pdb":
		return "chemical/x-pdb"
	case ".cif":
		return "chemical/x-cif"
	case ".json":
		return "application/json"
	case ".prom":
		return "text/plain; version=0.0.4"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
