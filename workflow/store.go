package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// StateFile is the snapshot file name written inside every run directory.
const StateFile = "state.json"

// Store persists workflow state snapshots.
type Store interface {
	Save(ctx context.Context, s *State) error
	Load(ctx context.Context, id string) (*State, error)
}

// Save writes a complete snapshot of s to path as indented JSON. The file
// is written to a sibling temp file and renamed into place so a reader
// never observes a partial snapshot.
func Save(s *State, path string) error {
	if s == nil {
		return ErrNilState
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, path)
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return Decode(data)
}

// Encode renders s as the human-readable snapshot document.
func Encode(s *State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot document and normalizes embedded payloads to
// their compact form so a decoded state equals the one that was encoded.
func Decode(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if s.Steps == nil {
		s.Steps = make(map[StepName]StepState)
	}
	for name, st := range s.Steps {
		if len(st.Output) == 0 {
			continue
		}
		compact, err := compactJSON(st.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: step %s output: %w", ErrInvalidState, name, err)
		}
		st.Output = compact
		s.Steps[name] = st
	}
	for name, raw := range s.Output {
		compact, err := compactJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: output %s: %w", ErrInvalidState, name, err)
		}
		s.Output[name] = compact
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func compactJSON(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// FileStore keeps each run's snapshot at <root>/<id>/state.json, which is
// the run's WorkflowDir when runs are created with NewState(root, ...).
type FileStore struct {
	mu   sync.Mutex
	root string
}

// NewFileStore returns a store rooted at the directory holding run dirs.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Path returns the snapshot path for a run.
func (f *FileStore) Path(s *State) string {
	if s.WorkflowDir != "" {
		return filepath.Join(s.WorkflowDir, StateFile)
	}
	return filepath.Join(f.root, s.WorkflowID, StateFile)
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, s *State) error {
	if s == nil {
		return ErrNilState
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return Save(s, f.Path(s))
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context, id string) (*State, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", ErrInvalidState)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return Load(filepath.Join(f.root, id, StateFile))
}

// MultiStore writes to a primary store and then to each mirror. Loads are
// served by the primary, falling back to mirrors in order.
type MultiStore struct {
	primary Store
	mirrors []Store
}

// NewMultiStore combines a primary store with optional mirrors.
func NewMultiStore(primary Store, mirrors ...Store) *MultiStore {
	return &MultiStore{primary: primary, mirrors: mirrors}
}

// Save implements Store. The primary must succeed. Every mirror is
// attempted and their failures are returned wrapped in ErrMirrorFailed.
func (m *MultiStore) Save(ctx context.Context, s *State) error {
	if err := m.primary.Save(ctx, s); err != nil {
		return err
	}
	var errs []error
	for _, mirror := range m.mirrors {
		if err := mirror.Save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMirrorFailed, errors.Join(errs...))
	}
	return nil
}

// Load implements Store.
func (m *MultiStore) Load(ctx context.Context, id string) (*State, error) {
	s, err := m.primary.Load(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}
	for _, mirror := range m.mirrors {
		if s, merr := mirror.Load(ctx, id); merr == nil {
			return s, nil
		}
	}
	return nil, err
}
