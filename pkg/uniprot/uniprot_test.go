package uniprot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/plugpep/pkg/uniprot"
)

const bcl2Result = `{"results":[{
	"primaryAccession":"P10415",
	"proteinDescription":{"recommendedName":{"fullName":{"value":"Apoptosis regulator Bcl-2"}}},
	"organism":{"scientificName":"Homo sapiens"},
	"genes":[{"geneName":{"value":"BCL2"}}],
	"sequence":{"value":"MAHAGRTGYD","length":239}
}]}`

func newClient(t *testing.T, handler http.HandlerFunc) *uniprot.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &uniprot.Config{BaseURL: srv.URL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return uniprot.New(cfg, slog.New(slog.DiscardHandler))
}

func TestSearchHumanFirst(t *testing.T) {
	var queries []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		queries = append(queries, q)
		if r.URL.Path != "/uniprotkb/search" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, bcl2Result)
	})

	entry, err := client.Search(context.Background(), "BCL-2")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if entry.Accession != "P10415" || entry.Name != "Apoptosis regulator Bcl-2" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Organism != "Homo sapiens" || entry.Length != 239 || len(entry.Genes) != 1 {
		t.Errorf("entry = %+v", entry)
	}
	if len(queries) != 1 || !strings.Contains(queries[0], "organism_id:9606") {
		t.Errorf("queries = %v", queries)
	}
}

func TestSearchFallsBackToAnyOrganism(t *testing.T) {
	var queries []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		queries = append(queries, q)
		if strings.Contains(q, "organism_id") {
			io.WriteString(w, `{"results":[]}`)
			return
		}
		io.WriteString(w, bcl2Result)
	})

	if _, err := client.Search(context.Background(), "Lysozyme Receptor"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries = %v, want 2", queries)
	}
	if strings.Contains(queries[1], "Receptor") {
		t.Errorf("generic term not stripped: %s", queries[1])
	}
}

func TestSearchErrors(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"results":[]}`)
		})
		if _, err := client.Search(context.Background(), "nothing"); !errors.Is(err, uniprot.ErrNoMatch) {
			t.Errorf("error = %v, want ErrNoMatch", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})
		_, err := client.Search(context.Background(), "BCL-2")
		if err == nil || errors.Is(err, uniprot.ErrNoMatch) {
			t.Errorf("error = %v, want transport error", err)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		if _, err := client.Search(context.Background(), "  "); !errors.Is(err, uniprot.ErrNoMatch) {
			t.Errorf("error = %v", err)
		}
	})
}
