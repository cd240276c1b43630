// Error taxonomy and the fail-fast assertion primitive.
//
// Recoverable conditions are sentinel errors, wrapped with context and
// matched with errors.Is. Broken internal invariants are not errors: they
// panic with a *Fault, because a reader in an inconsistent buffer state
// cannot produce trustworthy offsets and must not be used further.
package dsv

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Sentinel errors for programmatic handling. Stream failures (ErrCannotOpen,
// ErrSeek, ErrRead, ErrClose, ErrTruncated) wrap the underlying cause.
var (
	ErrAlreadyOpen     = errors.New("reader already open")
	ErrCannotOpen      = errors.New("cannot open file")
	ErrOutOfRange      = errors.New("offset out of range")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrSeek            = errors.New("seek failed")
	ErrRead            = errors.New("read failed")
	ErrClose           = errors.New("close failed")
	ErrTruncated       = errors.New("file shorter than reported size")
	ErrDuplicateKey    = errors.New("duplicate group key")
	ErrMalformedRecord = errors.New("malformed record")
	ErrCorruptHeader   = errors.New("corrupt snapshot header")
	ErrCorruptIndex    = errors.New("corrupt snapshot index")
	ErrDecompress      = errors.New("decompression failed")
	ErrStaleIndex      = errors.New("index does not match file")
	ErrInvariant       = errors.New("internal invariant violated")
)

// Severity distinguishes the two assertion tiers.
type Severity int

const (
	// SeverityCheck marks internal assertions. They are compiled in only
	// when building with the dsvdebug tag.
	SeverityCheck Severity = iota
	// SeverityEnsure marks preconditions that are always verified.
	SeverityEnsure
)

func (s Severity) String() string {
	switch s {
	case SeverityCheck:
		return "CHECK"
	case SeverityEnsure:
		return "ENSURE"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Fault is the panic value raised when an assertion fails.
type Fault struct {
	Severity Severity
	Cond     string // the condition that did not hold
	File     string // caller source file, base name only
	Line     int
}

func (f *Fault) Error() string {
	if f.File == "" {
		return fmt.Sprintf("%s failed: %s", f.Severity, f.Cond)
	}
	return fmt.Sprintf("%s failed: %s (%s:%d)", f.Severity, f.Cond, f.File, f.Line)
}

// Unwrap lets recovered faults be matched with errors.Is(err, ErrInvariant).
func (f *Fault) Unwrap() error {
	return ErrInvariant
}

// raise panics with a Fault located at the caller of ensure/check.
func raise(sev Severity, cond string) {
	f := &Fault{Severity: sev, Cond: cond}
	if _, file, line, ok := runtime.Caller(2); ok {
		f.File = filepath.Base(file)
		f.Line = line
	}
	panic(f)
}

// ensure is always active.
func ensure(ok bool, cond string) {
	if !ok {
		raise(SeverityEnsure, cond)
	}
}

// check is a no-op unless debugChecks is set by the dsvdebug build tag.
func check(ok bool, cond string) {
	if debugChecks && !ok {
		raise(SeverityCheck, cond)
	}
}
