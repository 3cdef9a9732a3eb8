package recall

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Normalization strips the incidental parts of an error text so that the same
// failure produces the same fingerprint across runs: line numbers, hex
// addresses, file:line suffixes, and whitespace runs are all collapsed.
// The hash is content-addressing for dedup, not a security primitive.
var (
	reLineNo     = regexp.MustCompile(`\bline \d+\b`)
	reFileLine   = regexp.MustCompile(`:\d+(:\d+)?\b`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	reGoroutine  = regexp.MustCompile(`\bgoroutine \d+\b`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Normalize reduces raw error text to its stable signature form.
func Normalize(raw string) string {
	s := reLineNo.ReplaceAllString(raw, "line N")
	s = reFileLine.ReplaceAllString(s, ":N")
	s = reHexAddr.ReplaceAllString(s, "0xN")
	s = reGoroutine.ReplaceAllString(s, "goroutine N")
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint returns the deterministic hash of the normalized error text.
func Fingerprint(raw string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Normalize(raw)))
}
