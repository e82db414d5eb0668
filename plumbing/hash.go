// Package plumbing defines the content hash and parent-set types shared by
// every change in the graph.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// DigestSize is the length in bytes of a Hash.
const DigestSize = 32

// ZeroHash is the Hash with all bytes zero.
var ZeroHash Hash

// Hash is a BLAKE3-256 content digest of a Change's canonical encoding.
type Hash [DigestSize]byte

// NewHash decodes a lowercase hex string (with or without a "0x" prefix)
// into a Hash. Malformed input yields the zero Hash, mirroring the
// teacher's permissive NewHash.
func NewHash(s string) Hash {
	s = trimPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash
	}
	var h Hash
	copy(h[:], b)
	return h
}

func trimPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders h as lowercase hex with a 0x prefix.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Less reports whether h sorts lexicographically before other.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Compare returns -1, 0 or 1 as h is less than, equal to, or greater than
// other, in lexicographic byte order.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// HashesSort sorts a slice of Hashes into increasing order.
func HashesSort(a []Hash) {
	sort.Slice(a, func(i, j int) bool { return a[i].Less(a[j]) })
}

// Hasher accumulates bytes and produces a Hash, backed by BLAKE3.
type Hasher struct {
	h *blake3.Hasher
}

// NewHasher returns a ready-to-use Hasher.
func NewHasher() Hasher {
	return Hasher{h: blake3.New()}
}

// Write implements io.Writer.
func (h Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest of everything written so far.
func (h Hasher) Sum() (sum Hash) {
	copy(sum[:], h.h.Sum(nil))
	return
}

// SumBytes hashes a single byte slice in one call.
func SumBytes(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
}

// Parents is the canonical 1-or-2 ancestor set of a Change. When there are
// two parents they are stored with the lexicographically smaller hash
// first; constructing a set with two identical parents is a domain error.
type Parents struct {
	first  Hash
	second *Hash
}

// ErrParentHashSame is returned by TwoParents when both parents are
// identical.
type ErrParentHashSame struct{}

func (*ErrParentHashSame) Error() string {
	return "tried to construct parents with two times the same parent"
}

// IsErrParentHashSame reports whether err is an *ErrParentHashSame.
func IsErrParentHashSame(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrParentHashSame)
	return ok
}

// OneParent builds a single-parent Parents set. This never fails.
func OneParent(h Hash) Parents {
	return Parents{first: h}
}

// TwoParents builds a two-parent Parents set, ordering the hashes
// ascending. It fails if p1 == p2.
func TwoParents(p1, p2 Hash) (Parents, error) {
	switch {
	case p1 == p2:
		return Parents{}, &ErrParentHashSame{}
	case p1.Less(p2):
		return Parents{first: p1, second: &p2}, nil
	default:
		return Parents{first: p2, second: &p1}, nil
	}
}

// Len returns 1 or 2, the number of parents.
func (p Parents) Len() int {
	if p.second == nil {
		return 1
	}
	return 2
}

// Slice returns the parents in ascending order as a plain slice.
func (p Parents) Slice() []Hash {
	if p.second == nil {
		return []Hash{p.first}
	}
	return []Hash{p.first, *p.second}
}

// First returns the (smaller, if two) parent hash.
func (p Parents) First() Hash { return p.first }

// Second returns the larger parent hash and true if there are two parents.
func (p Parents) Second() (Hash, bool) {
	if p.second == nil {
		return Hash{}, false
	}
	return *p.second, true
}

// Contains reports whether h is one of the parents.
func (p Parents) Contains(h Hash) bool {
	if p.first == h {
		return true
	}
	return p.second != nil && *p.second == h
}

func (p Parents) String() string {
	if p.second == nil {
		return fmt.Sprintf("[%s]", p.first)
	}
	return fmt.Sprintf("[%s %s]", p.first, *p.second)
}
