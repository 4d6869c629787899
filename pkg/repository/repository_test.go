package repository_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/plugpep/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
	errInvalid   = errors.New("invalid")
)

func TestErrorsMap(t *testing.T) {
	mapping := repository.Errors{
		NotFound:  errNotFound,
		Duplicate: errDuplicate,
		Invalid:   errInvalid,
	}
	other := errors.New("some other error")
	foreignKey := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"check violation", &pgconn.PgError{Code: "23514"}, errInvalid},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "workflow_states" does not exist`}, repository.ErrNotMigrated},
		{"other pg error", foreignKey, foreignKey},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapping.Map(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("Map() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("Map() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsMapKeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}

	got := repository.Errors{Duplicate: errDuplicate}.Map(pgErr)

	var cause *pgconn.PgError
	if !errors.As(got, &cause) || cause.Message != "duplicate key" {
		t.Errorf("Map() = %v, want wrapped pg error", got)
	}
}

func TestErrorsMapUnset(t *testing.T) {
	var mapping repository.Errors

	if got := mapping.Map(sql.ErrNoRows); !errors.Is(got, sql.ErrNoRows) {
		t.Errorf("Map(ErrNoRows) = %v, want ErrNoRows", got)
	}

	check := &pgconn.PgError{Code: "23514"}
	if got := mapping.Map(check); got != error(check) {
		t.Errorf("Map(check) = %v, want unchanged", got)
	}
}

type row struct {
	values []string
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*string)) = r.values[i]
	}
	return nil
}

func TestScanFunc(t *testing.T) {
	scan := repository.ScanFunc[string](func(s repository.Scanner) (string, error) {
		var v string
		err := s.Scan(&v)
		return v, err
	})

	got, err := scan(row{values: []string{"wf-1"}})
	if err != nil || got != "wf-1" {
		t.Errorf("scan() = %q, %v", got, err)
	}

	if _, err := scan(row{err: sql.ErrNoRows}); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("scan() error = %v, want ErrNoRows", err)
	}
}
