package alphafold

import "errors"

var (
	// ErrInvalidAccession indicates the identifier is not a well-formed UniProt accession.
	ErrInvalidAccession = errors.New("invalid uniprot accession")
	// ErrNotFound indicates the database holds no prediction for the accession.
	ErrNotFound = errors.New("accession not found in alphafold database")
	// ErrDownload indicates an artifact could not be fetched.
	ErrDownload = errors.New("alphafold download failed")
)
