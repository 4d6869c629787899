package alphafold

import (
	"fmt"
	"strings"
)

// ValidateAccession checks the UniProt accession shape: 6 to 10 ASCII
// alphanumerics with a leading letter.
func ValidateAccession(id string) error {
	if n := len(id); n < 6 || n > 10 {
		return fmt.Errorf("%w: %q must be 6-10 characters", ErrInvalidAccession, id)
	}
	if !isLetter(id[0]) {
		return fmt.Errorf("%w: %q must start with a letter", ErrInvalidAccession, id)
	}
	for i := 1; i < len(id); i++ {
		if !isLetter(id[i]) && !isDigit(id[i]) {
			return fmt.Errorf("%w: %q must be alphanumeric", ErrInvalidAccession, id)
		}
	}
	return nil
}

// NormalizeAccession trims surrounding space and upper-cases id.
func NormalizeAccession(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func isLetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}
