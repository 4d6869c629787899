// Package backbone reduces a PDB coordinate file to its protein backbone:
// the N, CA, C and O atoms of every residue plus header and footer records.
package backbone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoAtoms indicates the input has no ATOM or HETATM records.
	ErrNoAtoms = errors.New("invalid pdb format: no atom records")
	// ErrInputNotFound indicates the input coordinate file does not exist.
	ErrInputNotFound = errors.New("input pdb file not found")
)

var backboneAtoms = map[string]bool{
	"N":  true,
	"CA": true,
	"C":  true,
	"O":  true,
}

var headerRecords = []string{
	"REMARK",
	"TITLE",
	"EXPDTA",
	"AUTHOR",
	"REVDAT",
	"JRNL",
	"SEQRES",
}

// Stats counts the records written by Filter.
type Stats struct {
	Atoms   int `json:"atoms"`
	Headers int `json:"headers"`
	Scanned int `json:"scanned"`
}

// Result describes a completed extraction.
type Result struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Stats
}

// Extract filters the PDB file at input into output. When output is empty
// the result is written next to input with a _backbone suffix. A failed
// extraction removes any partial output.
func Extract(input, output string) (*Result, error) {
	in, err := os.Open(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, input)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_backbone.pdb"
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	out, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	stats, err := Filter(in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		os.Remove(output)
		return nil, err
	}

	return &Result{
		InputPath:  input,
		OutputPath: output,
		Stats:      stats,
	}, nil
}

// Filter copies backbone atom records and header records from r to w,
// stopping after the first END record.
func Filter(r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	bw := bufio.NewWriter(w)

	sawAtom := false
	for scanner.Scan() {
		line := scanner.Text()
		stats.Scanned++

		switch record := recordName(line); {
		case record == "ATOM" || record == "HETATM":
			sawAtom = true
			if !backboneAtoms[atomName(line)] {
				continue
			}
			stats.Atoms++
		case isHeader(line):
			stats.Headers++
		case record == "END":
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return stats, fmt.Errorf("write output: %w", err)
			}
			return stats, finish(bw, sawAtom)
		default:
			continue
		}

		if _, err := fmt.Fprintln(bw, line); err != nil {
			return stats, fmt.Errorf("write output: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}
	return stats, finish(bw, sawAtom)
}

func finish(bw *bufio.Writer, sawAtom bool) error {
	if !sawAtom {
		return ErrNoAtoms
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// recordName returns the record type in columns 1-6.
func recordName(line string) string {
	if len(line) > 6 {
		line = line[:6]
	}
	return strings.TrimSpace(line)
}

// atomName returns the atom name in columns 13-16.
func atomName(line string) string {
	if len(line) < 13 {
		return ""
	}
	end := min(len(line), 16)
	return strings.TrimSpace(line[12:end])
}

func isHeader(line string) bool {
	for _, prefix := range headerRecords {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
