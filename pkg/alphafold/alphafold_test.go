package alphafold_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/plugpep/pkg/alphafold"
)

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"object form", `{"predicted_aligned_error":[[0,10],[10,20]]}`, 1.0 - 20.0/31.0},
		{"array form", `[{"predicted_aligned_error":[[0,10],[10,20]]}]`, 1.0 - 20.0/31.0},
		{"perfect", `{"predicted_aligned_error":[[0,0],[0,0]]}`, 1.0},
		{"above ceiling clamps", `{"predicted_aligned_error":[[0,40]]}`, 0.0},
		{"non-list row", `{"predicted_aligned_error":[[0,10],5]}`, 0.0},
		{"non-numeric cell", `{"predicted_aligned_error":[[0,"x"]]}`, 0.0},
		{"empty matrix", `{"predicted_aligned_error":[]}`, 0.0},
		{"empty row", `{"predicted_aligned_error":[[]]}`, 0.0},
		{"missing key", `{"pae":[[1]]}`, 0.0},
		{"empty array", `[]`, 0.0},
		{"not json", `<html>`, 0.0},
		{"scalar", `42`, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alphafold.ParseConfidence([]byte(tt.doc))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseConfidence() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("reference value", func(t *testing.T) {
		got := alphafold.ParseConfidence([]byte(`{"predicted_aligned_error":[[0,10],[10,20]]}`))
		if math.Abs(got-0.3548) > 1e-4 {
			t.Errorf("got %v, want ~0.3548", got)
		}
	})
}

func TestValidateAccession(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"P10415", true},
		{"A0A024R161", true},
		{"Q9Y6K9", true},
		{"P1041", false},
		{"A0A024R1612", false},
		{"110415", false},
		{"P10-15", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := alphafold.ValidateAccession(tt.id)
			if tt.valid && err != nil {
				t.Errorf("ValidateAccession(%q) error = %v", tt.id, err)
			}
			if !tt.valid && !errors.Is(err, alphafold.ErrInvalidAccession) {
				t.Errorf("ValidateAccession(%q) error = %v, want ErrInvalidAccession", tt.id, err)
			}
		})
	}
}

func newServer(t *testing.T, known string, fail map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prediction/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != known {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `[{"entryId":"AF-`+known+`-F1"}]`)
	})
	mux.HandleFunc("/files/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if code, ok := fail[name]; ok {
			http.Error(w, "unavailable", code)
			return
		}
		switch {
		case strings.HasSuffix(name, ".pdb"):
			io.WriteString(w, "ATOM      1  N   MET A   1      0.0   0.0   0.0\nEND\n")
		case strings.HasSuffix(name, ".cif"):
			io.WriteString(w, "data_AF\n")
		case strings.Contains(name, "predicted_aligned_error"):
			io.WriteString(w, `[{"predicted_aligned_error":[[0,10],[10,20]],"max_predicted_aligned_error":31.75}]`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *alphafold.Client {
	t.Helper()
	cfg := &alphafold.Config{BaseURL: baseURL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return alphafold.New(cfg, slog.New(slog.DiscardHandler))
}

func TestFetch(t *testing.T) {
	srv := newServer(t, "P10415", nil)
	client := newClient(t, srv.URL)
	dir := t.TempDir()

	art, err := client.Fetch(context.Background(), " p10415 ", dir)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if art.Accession != "P10415" {
		t.Errorf("accession = %s", art.Accession)
	}
	for _, p := range []string{art.PDBPath, art.CIFPath, art.PAEPath} {
		if filepath.Dir(p) != dir {
			t.Errorf("%s not saved in %s", p, dir)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
	if filepath.Base(art.PAEPath) != "P10415_pae.json" {
		t.Errorf("pae file = %s", art.PAEPath)
	}
	if math.Abs(art.Confidence-(1.0-20.0/31.0)) > 1e-9 {
		t.Errorf("confidence = %v", art.Confidence)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only the three artifacts", names)
	}
}

func TestFetchTruncatedBody(t *testing.T) {
	srv := newServer(t, "P10415", nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/files/AF-P10415-F1-model_v4.pdb", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4096")
		io.WriteString(w, "ATOM      1  N")
	})
	mux.Handle("/", srv.Config.Handler)
	proxy := httptest.NewServer(mux)
	t.Cleanup(proxy.Close)

	dir := t.TempDir()
	_, err := newClient(t, proxy.URL).Fetch(context.Background(), "P10415", dir)
	if !errors.Is(err, alphafold.ErrDownload) {
		t.Fatalf("Fetch() error = %v, want %v", err, alphafold.ErrDownload)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Errorf("left behind: %s", e.Name())
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		fail map[string]int
		want error
	}{
		{"invalid accession", "12", nil, alphafold.ErrInvalidAccession},
		{"unknown accession", "Q00000", nil, alphafold.ErrNotFound},
		{
			"download failure",
			"P10415",
			map[string]int{"AF-P10415-F1-model_v4.cif": http.StatusServiceUnavailable},
			alphafold.ErrDownload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, "P10415", tt.fail)
			client := newClient(t, srv.URL)
			dir := t.TempDir()

			_, err := client.Fetch(context.Background(), tt.id, dir)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.want)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("partial artifacts left: %d entries", len(entries))
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &alphafold.Config{BaseURL: srv.URL, APIKey: "secret"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	client := alphafold.New(cfg, slog.New(slog.DiscardHandler))

	ok, err := client.Exists(context.Background(), "P10415")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	if got != "secret" {
		t.Errorf("api key = %q, want secret", got)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &alphafold.Config{}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if cfg.BaseURL != alphafold.DefaultBaseURL || cfg.ModelVersion != alphafold.DefaultModelVersion {
			t.Errorf("defaults = %+v", cfg)
		}
		if cfg.TimeoutDuration().Seconds() != 60 {
			t.Errorf("timeout = %v", cfg.TimeoutDuration())
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_AF_VERSION", "5")
		t.Setenv("TEST_AF_KEY", "k")
		cfg := &alphafold.Config{}
		env := &alphafold.Env{ModelVersion: "TEST_AF_VERSION", APIKey: "TEST_AF_KEY"}
		if err := cfg.Finalize(env); err != nil {
			t.Fatal(err)
		}
		if cfg.ModelVersion != 5 || cfg.APIKey != "k" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := &alphafold.Config{BaseURL: "not a url", Timeout: "soon"}
		if err := cfg.Finalize(nil); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("merge", func(t *testing.T) {
		base := &alphafold.Config{BaseURL: "http://a", ModelVersion: 3}
		base.Merge(&alphafold.Config{BaseURL: "http://b"})
		if base.BaseURL != "http://b" || base.ModelVersion != 3 {
			t.Errorf("merged = %+v", base)
		}
	})
}
