// Package filename turns upload file names into safe, canonical names.
//
// Multipart clients (and some proxies) deliver UTF-8 names whose bytes were
// read as ISO-8859-1 on the way, so "güzel" shows up as "gÃ¼zel". Repair
// reverses that when it can tell, and leaves the name alone otherwise. It is a
// heuristic: a name that really was meant as Latin-1 and happens to also form
// valid UTF-8 bytes gets "repaired" wrongly. Such names are rare in practice.
package filename

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned for empty names and names that could escape the
// shared directory.
var ErrInvalidName = errors.New("invalid file name")

// Normalize repairs, canonicalizes and validates a raw upload name.
func Normalize(raw string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(Repair(raw)))
	if err := Validate(name); err != nil {
		return "", err
	}
	return name, nil
}

// Repair undoes a UTF-8 -> ISO-8859-1 mis-decoding. It only applies when every
// rune of raw fits in a single Latin-1 byte and at least one of them is outside
// ASCII; the re-encoded bytes must then decode as UTF-8 to something different.
// In every other case raw is returned unchanged.
func Repair(raw string) string {
	if !needsRepair(raw) {
		return raw
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(raw))
	if err != nil {
		return raw
	}
	if !utf8.Valid(b) {
		return raw
	}
	repaired := string(b)
	if repaired == raw {
		return raw
	}
	return repaired
}

func needsRepair(s string) bool {
	high := false
	for _, r := range s {
		if r > 0xFF || r == utf8.RuneError {
			return false
		}
		if r >= 0x80 {
			high = true
		}
	}
	return high
}

// Validate rejects names that are empty, contain separators or traversal
// fragments, carry a drive or absolute prefix, or contain control characters.
func Validate(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if !utf8.ValidString(name) {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	// "C:report.txt" is relative to the current directory of drive C on Windows
	if len(name) >= 2 && name[1] == ':' && isASCIILetter(name[0]) {
		return ErrInvalidName
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
