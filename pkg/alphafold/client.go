// Package alphafold provides a client for the AlphaFold protein structure
// database: accession validation, prediction lookup, artifact download, and
// confidence derivation from the predicted aligned error matrix.
package alphafold

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL      = "https://alphafold.ebi.ac.uk"
	DefaultModelVersion = 4
)

// Artifacts describes the files saved for one accession.
type Artifacts struct {
	Accession  string  `json:"accession_id"`
	PDBPath    string  `json:"pdb_path"`
	CIFPath    string  `json:"cif_path"`
	PAEPath    string  `json:"pae_path"`
	Confidence float64 `json:"confidence_score"`
	Source     string  `json:"source"`
}

// Client talks to the AlphaFold database HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	version int
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client from a finalized configuration.
func New(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		version: cfg.ModelVersion,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger.With("system", "alphafold"),
	}
}

// Exists reports whether the database has a prediction for id.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := c.get(ctx, "/api/prediction/"+url.PathEscape(id))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: prediction lookup returned %s", ErrDownload, resp.Status)
	}
}

// Fetch validates id, confirms it exists, and downloads the coordinate
// model, the alternate coordinate model, and the error matrix into dir.
// Files are saved as <id>.pdb, <id>.cif and <id>_pae.json. On failure no
// partial artifact is left behind.
func (c *Client) Fetch(ctx context.Context, id, dir string) (*Artifacts, error) {
	id = NormalizeAccession(id)
	if err := ValidateAccession(id); err != nil {
		return nil, err
	}

	ok, err := c.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	art := &Artifacts{
		Accession: id,
		PDBPath:   filepath.Join(dir, id+".pdb"),
		CIFPath:   filepath.Join(dir, id+".cif"),
		PAEPath:   filepath.Join(dir, id+"_pae.json"),
		Source:    "alphafold",
	}

	var pae []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.download(gctx, c.modelFile(id, "pdb"), art.PDBPath)
		return err
	})
	g.Go(func() error {
		_, err := c.download(gctx, c.modelFile(id, "cif"), art.CIFPath)
		return err
	})
	g.Go(func() error {
		data, err := c.download(gctx, c.paeFile(id), "")
		if err != nil {
			return err
		}
		pae = data
		return writeIndented(art.PAEPath, data)
	})

	if err := g.Wait(); err != nil {
		for _, p := range []string{art.PDBPath, art.CIFPath, art.PAEPath} {
			os.Remove(p)
		}
		return nil, err
	}

	art.Confidence = ParseConfidence(pae)

	c.logger.InfoContext(
		ctx, "alphafold artifacts saved",
		"accession", id,
		"dir", dir,
		"confidence", art.Confidence,
	)

	return art, nil
}

func (c *Client) modelFile(id, ext string) string {
	return fmt.Sprintf("/files/AF-%s-F1-model_v%d.%s", id, c.version, ext)
}

func (c *Client) paeFile(id string) string {
	return fmt.Sprintf("/files/AF-%s-F1-predicted_aligned_error_v%d.json", id, c.version)
}

// download fetches path and writes the body to dest when dest is set.
// The body is returned when dest is empty.
func (c *Client) download(ctx context.Context, path, dest string) ([]byte, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s %s", ErrDownload, path, resp.Status, bytes.TrimSpace(body))
	}

	if dest == "" {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrDownload, path, err)
		}
		return data, nil
	}

	if err := writeAtomic(dest, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return nil, nil
}

// writeAtomic writes to a temp file next to dest and renames it into place
// once fill and Close succeed. The temp file is removed on any failure.
func writeAtomic(dest string, fill func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	tmp := f.Name()

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("key", c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return resp, nil
}

func writeIndented(path string, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		buf.Reset()
		buf.Write(data)
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
}
