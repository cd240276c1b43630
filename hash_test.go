// Snapshot checksum tests.
//
// The checksum is stored as 16 hex characters in a fixed-size header, and
// the algorithm number is persisted next to it. A snapshot written today
// must verify with the same function tomorrow.
package dsv

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

var algorithms = []int{AlgXXHash3, AlgFNV1a, AlgBlake2b}

// TestHashFormat verifies every algorithm yields exactly 16 hex chars,
// including for an empty body (an index of a header-only file).
func TestHashFormat(t *testing.T) {
	for _, alg := range algorithms {
		for _, in := range []string{"test", ""} {
			if got := hash([]byte(in), alg); !hexPattern.MatchString(got) {
				t.Errorf("alg %d, input %q: got %q", alg, in, got)
			}
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	for _, alg := range algorithms {
		if hash([]byte("foo"), alg) != hash([]byte("foo"), alg) {
			t.Errorf("alg %d: not deterministic", alg)
		}
		if hash([]byte("foo"), alg) == hash([]byte("bar"), alg) {
			t.Errorf("alg %d: foo and bar collide", alg)
		}
	}
}

// TestHashDifferentAlgorithms verifies that verifying with the wrong
// algorithm fails instead of passing by accident.
func TestHashDifferentAlgorithms(t *testing.T) {
	h1 := hash([]byte("foo"), AlgXXHash3)
	h2 := hash([]byte("foo"), AlgFNV1a)
	h3 := hash([]byte("foo"), AlgBlake2b)

	if h1 == h2 || h1 == h3 || h2 == h3 {
		t.Errorf("algorithms agree: xxh3=%q fnv=%q blake2b=%q", h1, h2, h3)
	}
}

func TestHashInvalidAlgorithm(t *testing.T) {
	if got := hash([]byte("test"), 99); got != "" {
		t.Errorf("invalid alg should return empty string, got: %q", got)
	}
	if validAlgorithm(0) || validAlgorithm(4) {
		t.Error("validAlgorithm accepts an unknown id")
	}
}

// TestHashAlgorithmConstants guards the values persisted in snapshot
// headers.
func TestHashAlgorithmConstants(t *testing.T) {
	if AlgXXHash3 != 1 || AlgFNV1a != 2 || AlgBlake2b != 3 {
		t.Errorf("constants = %d %d %d, want 1 2 3", AlgXXHash3, AlgFNV1a, AlgBlake2b)
	}
}
