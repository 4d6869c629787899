// Package uniprot resolves protein names to UniProt accessions through the
// UniProtKB search API.
package uniprot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://rest.uniprot.org"
	humanOrganism  = "9606"
)

// ErrNoMatch indicates the search returned no reviewed entry.
var ErrNoMatch = errors.New("no uniprot entry matched")

// Config holds UniProt search client parameters.
type Config struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL string
	Timeout string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if env != nil {
		if v := os.Getenv(env.BaseURL); env.BaseURL != "" && v != "" {
			c.BaseURL = v
		}
		if v := os.Getenv(env.Timeout); env.Timeout != "" && v != "" {
			c.Timeout = v
		}
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

// Entry is the subset of a UniProtKB record the pipeline uses.
type Entry struct {
	Accession string   `json:"accession_id"`
	Name      string   `json:"target_name"`
	Organism  string   `json:"organism"`
	Genes     []string `json:"gene_names"`
	Length    int      `json:"length"`
	Sequence  string   `json:"sequence"`
}

// Client searches UniProtKB.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client from a finalized configuration.
func New(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger.With("system", "uniprot"),
	}
}

// Search returns the best reviewed entry for query, preferring human
// proteins and falling back to any organism.
func (c *Client) Search(ctx context.Context, query string) (*Entry, error) {
	term := strings.TrimSpace(strings.ReplaceAll(query, "Receptor", ""))
	if term == "" {
		return nil, fmt.Errorf("%w: empty query", ErrNoMatch)
	}

	filters := []string{
		fmt.Sprintf("%s AND reviewed:true AND organism_id:%s", term, humanOrganism),
		fmt.Sprintf("%s AND reviewed:true", term),
	}
	for _, q := range filters {
		entry, err := c.search(ctx, q)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			c.logger.InfoContext(ctx, "uniprot match", "query", q, "accession", entry.Accession)
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, term)
}

type searchResponse struct {
	Results []struct {
		PrimaryAccession   string `json:"primaryAccession"`
		ProteinDescription struct {
			RecommendedName struct {
				FullName struct {
					Value string `json:"value"`
				} `json:"fullName"`
			} `json:"recommendedName"`
		} `json:"proteinDescription"`
		Organism struct {
			ScientificName string `json:"scientificName"`
		} `json:"organism"`
		Genes []struct {
			GeneName struct {
				Value string `json:"value"`
			} `json:"geneName"`
		} `json:"genes"`
		Sequence struct {
			Value  string `json:"value"`
			Length int    `json:"length"`
		} `json:"sequence"`
	} `json:"results"`
}

func (c *Client) search(ctx context.Context, query string) (*Entry, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("fields", "accession,id,protein_name,organism_name,gene_names,length,sequence")
	params.Set("size", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/uniprotkb/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uniprot search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("uniprot search: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode uniprot response: %w", err)
	}
	if len(sr.Results) == 0 {
		return nil, nil
	}

	r := sr.Results[0]
	entry := &Entry{
		Accession: r.PrimaryAccession,
		Name:      r.ProteinDescription.RecommendedName.FullName.Value,
		Organism:  r.Organism.ScientificName,
		Genes:     []string{},
		Length:    r.Sequence.Length,
		Sequence:  r.Sequence.Value,
	}
	for _, g := range r.Genes {
		if g.GeneName.Value != "" {
			entry.Genes = append(entry.Genes, g.GeneName.Value)
		}
	}
	return entry, nil
}
