package fingerprint

import (
	"encoding/hex"
	"unicode/utf8"
)

// Sequence is the ordered list of fingerprints captured during a run.
// Index 0 is the baseline taken before any apply; index i is the state
// after the i-th apply. Entries are only ever appended.
type Sequence struct {
	entries []string
}

// NewSequence creates a sequence holding the given fingerprints in order.
func NewSequence(fps ...string) *Sequence {
	s := &Sequence{}
	s.entries = append(s.entries, fps...)
	return s
}

// Append adds the next fingerprint.
func (s *Sequence) Append(fp string) {
	s.entries = append(s.entries, fp)
}

// Len returns the number of captured fingerprints.
func (s *Sequence) Len() int {
	return len(s.entries)
}

// Baseline returns the first fingerprint and whether one exists.
func (s *Sequence) Baseline() (string, bool) {
	if len(s.entries) == 0 {
		return "", false
	}
	return s.entries[0], true
}

// Entries returns a copy of the fingerprints.
func (s *Sequence) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Stable reports whether every fingerprint equals the baseline.
// An empty sequence is not stable.
func (s *Sequence) Stable() bool {
	base, ok := s.Baseline()
	if !ok {
		return false
	}
	for _, fp := range s.entries[1:] {
		if fp != base {
			return false
		}
	}
	return true
}

// Divergent returns the indexes of every fingerprint that differs from
// the baseline, in ascending order.
func (s *Sequence) Divergent() []int {
	base, ok := s.Baseline()
	if !ok {
		return nil
	}
	var idx []int
	for i, fp := range s.entries {
		if fp != base {
			idx = append(idx, i)
		}
	}
	return idx
}

// HexIfBinary returns the hex encoding of every fingerprint when at least
// one of them is not valid UTF-8, and nil otherwise. JSON cannot carry
// such bytes, so the hex form is the exact one.
func HexIfBinary(fps []string) []string {
	binary := false
	for _, fp := range fps {
		if !utf8.ValidString(fp) {
			binary = true
			break
		}
	}
	if !binary {
		return nil
	}
	out := make([]string, len(fps))
	for i, fp := range fps {
		out[i] = hex.EncodeToString([]byte(fp))
	}
	return out
}
