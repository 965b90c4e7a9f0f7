package identity

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidVIN marks an identity code that fails the structural check.
// Listings carrying one are skipped and counted, never written.
var ErrInvalidVIN = errors.New("invalid vin")

const vinLength = 17

// VINs never contain I, O or Q.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

var separatorReplacer = strings.NewReplacer(" ", "", "-", "", "\t", "")

// Normalize canonicalizes a raw identity code: uppercase, separators
// stripped. Returns ErrInvalidVIN when the result is not a structurally
// valid 17-character VIN.
func Normalize(raw string) (string, error) {
	vin := strings.ToUpper(separatorReplacer.Replace(strings.TrimSpace(raw)))
	if len(vin) != vinLength {
		return "", ErrInvalidVIN
	}
	if !vinPattern.MatchString(vin) {
		return "", ErrInvalidVIN
	}
	return vin, nil
}

// Valid reports whether raw normalizes to a structurally valid VIN.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
