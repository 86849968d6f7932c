package slug

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/trimrr/trimr/internal/models"
)

// Ambiguous characters (0/O, 1/l/I) are excluded from generated codes.
const charset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

const (
	codeLength = 7
	maxRetries = 10
)

var (
	// ErrAllocationExhausted is returned when repeated generation attempts
	// all collided, which practically never happens at this code length.
	ErrAllocationExhausted = errors.New("short code allocation exhausted")

	// ErrInvalidAlias is returned for a requested alias with an unacceptable shape.
	ErrInvalidAlias = errors.New("invalid custom alias")

	maxIdx  = big.NewInt(int64(len(charset)))
	aliasRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)
)

// Generate returns a random 7-character code from the unambiguous alphabet.
func Generate() (string, error) {
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, maxIdx)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// ValidAlias reports whether a requested custom alias has an acceptable shape.
func ValidAlias(alias string) bool {
	return aliasRe.MatchString(alias)
}

// Allocate picks a short code. A requested alias is validated against the
// uniqueness namespace and returned as-is; otherwise a random code is
// generated with bounded collision retries. Allocation is advisory: the
// store re-enforces uniqueness atomically at insert, so a race between
// two allocations for the same alias cannot make both creates succeed.
func Allocate(db *sql.DB, requestedAlias string) (string, error) {
	if requestedAlias != "" {
		if !ValidAlias(requestedAlias) {
			return "", fmt.Errorf("alias %q: %w", requestedAlias, ErrInvalidAlias)
		}
		taken, err := models.CodeInUse(db, requestedAlias)
		if err != nil {
			return "", fmt.Errorf("check alias: %w", err)
		}
		if taken {
			return "", models.ErrAliasTaken
		}
		return requestedAlias, nil
	}

	for range maxRetries {
		code, err := Generate()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		taken, err := models.CodeInUse(db, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrAllocationExhausted
}
