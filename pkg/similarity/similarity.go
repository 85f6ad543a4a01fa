// Package similarity detects near-duplicate page content with MinHash
// fingerprints over the set of words on a page.
package similarity

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// Slots is the number of MinHash values in a fingerprint.
	Slots = 256
	// ShingleSize is the number of words per shingle. Single words keep a
	// handful of edits in a long page from moving it under DefaultThreshold;
	// each edit touches ShingleSize shingles.
	ShingleSize = 1
	// DefaultThreshold is the similarity at or above which two pages are duplicates.
	DefaultThreshold = 0.9
)

// ErrInvalidFingerprint is returned by Parse for malformed input.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// Fingerprint is a fixed-length MinHash signature.
type Fingerprint [Slots]uint64

var seeds = func() [Slots]uint64 {
	// splitmix64 from a fixed state so fingerprints are stable across runs
	var out [Slots]uint64
	state := uint64(0x9e3779b97f4a7c15)
	for i := range out {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		out[i] = z ^ (z >> 31)
	}
	return out
}()

// Normalize prepares text for shingling: lower case, digits folded to a
// single "0" per run, punctuation dropped, whitespace collapsed.
func Normalize(content string) []string {
	var sb strings.Builder
	sb.Grow(len(content))
	inDigits := false
	for _, r := range strings.ToLower(content) {
		switch {
		case unicode.IsDigit(r):
			if !inDigits {
				sb.WriteRune('0')
			}
			inDigits = true
			continue
		case unicode.IsLetter(r):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
		inDigits = false
	}
	return strings.Fields(sb.String())
}

// Hash returns the fingerprint of content. Empty content yields the
// all-max fingerprint, which is only similar to other empty content.
func Hash(content string) Fingerprint {
	var fp Fingerprint
	for i := range fp {
		fp[i] = math.MaxUint64
	}

	words := Normalize(content)
	if len(words) == 0 {
		return fp
	}

	for _, sh := range shingles(words) {
		h := fnv.New64a()
		h.Write([]byte(sh))
		base := h.Sum64()
		for i, seed := range seeds {
			v := mix(base ^ seed)
			if v < fp[i] {
				fp[i] = v
			}
		}
	}
	return fp
}

func shingles(words []string) []string {
	if len(words) < ShingleSize {
		return []string{strings.Join(words, " ")}
	}
	out := make([]string, 0, len(words)-ShingleSize+1)
	for i := 0; i+ShingleSize <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+ShingleSize], " "))
	}
	return out
}

func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// Similarity estimates the Jaccard similarity of the shingle sets behind
// two fingerprints. The result is in [0, 1].
func Similarity(a, b Fingerprint) float64 {
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / Slots
}

// IsDuplicate reports whether fp is at least threshold-similar to any of
// existing. A non-positive threshold uses DefaultThreshold.
func IsDuplicate(fp Fingerprint, existing []Fingerprint, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	for _, other := range existing {
		if Similarity(fp, other) >= threshold {
			return true
		}
	}
	return false
}

// String encodes the fingerprint as hex.
func (f Fingerprint) String() string {
	buf := make([]byte, Slots*8)
	for i, v := range f {
		binary.BigEndian.PutUint64(buf[i*8:], v)
	}
	return hex.EncodeToString(buf)
}

// Parse decodes a fingerprint produced by String.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	buf, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	if len(buf) != Slots*8 {
		return fp, fmt.Errorf("%w: length %d", ErrInvalidFingerprint, len(buf))
	}
	for i := range fp {
		fp[i] = binary.BigEndian.Uint64(buf[i*8:])
	}
	return fp, nil
}

// Index accumulates the fingerprints seen in one crawl.
type Index struct {
	threshold float64
	prints    []Fingerprint
}

// NewIndex returns an empty index with the given duplicate threshold.
func NewIndex(threshold float64) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{threshold: threshold}
}

// Add records fp unless it duplicates a fingerprint already in the index.
// It reports whether fp was added.
func (ix *Index) Add(fp Fingerprint) bool {
	if IsDuplicate(fp, ix.prints, ix.threshold) {
		return false
	}
	ix.prints = append(ix.prints, fp)
	return true
}

// Len returns the number of distinct fingerprints.
func (ix *Index) Len() int {
	return len(ix.prints)
}
