package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/dirpatch/internal/digest"
)

var (
	ErrScan               = errors.New("scan failed")
	ErrEncode             = errors.New("encode failed")
	ErrVerificationFailed = errors.New("verification failed")
	ErrStaleBase          = errors.New("stale base")
	ErrApplyIO            = errors.New("apply i/o error")
	ErrCorruptArtifact    = errors.New("corrupt artifact")

	ErrFailureThreshold = errors.New("failure threshold exceeded")
	ErrNoChanges        = errors.New("no changes between source and target")
	ErrOutputExists     = errors.New("output already exists")
	ErrCheckFileMissing = errors.New("check file not found in source tree")
)

// ScanError is returned when a tree cannot be fully read.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() []error { return []error{ErrScan, e.Err} }

// EncodeError is returned when a payload cannot be written into the artifact.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() []error { return []error{ErrEncode, e.Err} }

// Failure reasons reported by check-file verification.
const (
	ReasonMissing    = "missing"
	ReasonMismatch   = "mismatch"
	ReasonUnreadable = "unreadable"
)

// CheckFailure is one failed check file.
type CheckFailure struct {
	Path   string
	Reason string
	Err    error
}

// VerificationFailed lists every check file that did not match.
type VerificationFailed struct {
	Failures []CheckFailure
}

func (e *VerificationFailed) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Path+" ("+f.Reason+")")
	}
	return fmt.Sprintf("verification failed: %s", strings.Join(parts, ", "))
}

func (e *VerificationFailed) Unwrap() error { return ErrVerificationFailed }

// StaleBaseError means the live file matches neither the diff base nor the
// diff result.
type StaleBaseError struct {
	Path     string
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *StaleBaseError) Error() string {
	return fmt.Sprintf("stale base %s: expected %s, found %s", e.Path, e.Expected.Short(), e.Actual.Short())
}

func (e *StaleBaseError) Unwrap() error { return ErrStaleBase }

// ApplyIOError wraps a filesystem failure while applying one entry.
type ApplyIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *ApplyIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ApplyIOError) Unwrap() []error { return []error{ErrApplyIO, e.Err} }

// CorruptArtifactError is returned for any artifact that cannot be trusted.
type CorruptArtifactError struct {
	Reason string
	Err    error
}

func (e *CorruptArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt artifact: %s: %v", e.Reason, e.Err)
	}
	return "corrupt artifact: " + e.Reason
}

func (e *CorruptArtifactError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptArtifact}
	}
	return []error{ErrCorruptArtifact, e.Err}
}

// Corrupt is shorthand for a CorruptArtifactError.
func Corrupt(reason string, err error) error {
	return &CorruptArtifactError{Reason: reason, Err: err}
}
