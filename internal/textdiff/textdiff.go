// Package textdiff computes, encodes and applies line diffs between two text
// buffers. Everything here is pure; callers do the I/O.
package textdiff

import (
	"bytes"
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// MaxTextSize bounds the files considered for diffing.
const MaxTextSize = 8 << 20

// DiffTimeout caps a single line diff. Decide bounds the common rewrite case
// before diffing; the timeout only cuts off reordered inputs, and a cut-off
// diff is still exact, just larger.
const DiffTimeout = 2 * time.Second

// ErrMismatch is returned when ops do not fit the base they are applied to.
var ErrMismatch = errors.New("diff does not match base")

// OpKind is one of '=', '-' or '+'.
type OpKind byte

const (
	OpKeep   OpKind = '='
	OpDrop   OpKind = '-'
	OpInsert OpKind = '+'
)

// Op is one diff instruction. Keep and Drop count lines of the base; Insert
// carries raw bytes.
type Op struct {
	Kind OpKind
	N    int
	Data []byte
}

// IsText reports whether data looks like text worth diffing line by line.
func IsText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if len(data) > MaxTextSize {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	ctrl := 0
	for _, b := range data {
		if isControl(b) {
			ctrl++
		}
	}
	if ctrl*100 > len(data) {
		return false
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func isControl(b byte) bool {
	switch b {
	case '\t', '\n', '\r', '\f', '\v', '\b', 0x1b:
		return false
	}
	return b < 0x20 || b == 0x7f
}

// Compute returns the line diff turning base into target. Lines keep their
// terminators so applying the ops reproduces target byte for byte.
func Compute(base, target []byte) []Op {
	dmp := diffpatch.New()
	dmp.DiffTimeout = DiffTimeout

	a, b, lines := dmp.DiffLinesToChars(string(base), string(target))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var ops []Op
	push := func(op Op) {
		if n := len(ops); n > 0 && ops[n-1].Kind == op.Kind {
			if op.Kind == OpInsert {
				ops[n-1].Data = append(ops[n-1].Data, op.Data...)
			} else {
				ops[n-1].N += op.N
			}
			return
		}
		ops = append(ops, op)
	}
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		switch d.Type {
		case diffpatch.DiffEqual:
			push(Op{Kind: OpKeep, N: countLines([]byte(d.Text))})
		case diffpatch.DiffDelete:
			push(Op{Kind: OpDrop, N: countLines([]byte(d.Text))})
		case diffpatch.DiffInsert:
			push(Op{Kind: OpInsert, Data: []byte(d.Text)})
		}
	}
	return ops
}

// Apply replays ops against base.
func Apply(base []byte, ops []Op) ([]byte, error) {
	lines := splitLines(base)
	var out bytes.Buffer
	out.Grow(len(base))
	pos := 0
	for _, op := range ops {
		switch op.Kind {
		case OpKeep:
			if op.N < 0 || pos+op.N > len(lines) {
				return nil, ErrMismatch
			}
			for _, l := range lines[pos : pos+op.N] {
				out.Write(l)
			}
			pos += op.N
		case OpDrop:
			if op.N < 0 || pos+op.N > len(lines) {
				return nil, ErrMismatch
			}
			pos += op.N
		case OpInsert:
			out.Write(op.Data)
		default:
			return nil, ErrMismatch
		}
	}
	if pos != len(lines) {
		return nil, ErrMismatch
	}
	return out.Bytes(), nil
}

// Decide returns an encoded diff when it is worth shipping instead of the
// whole target: both sides are text, the payload is smaller than ratio times
// the target size, and it reproduces target exactly.
func Decide(base, target []byte, ratio float64) ([]byte, bool) {
	if ratio <= 0 || !IsText(base) || !IsText(target) {
		return nil, false
	}
	// Lines of target missing from base must be inserted verbatim, so they
	// bound the payload from below.
	if float64(len(header)+unmatchedBytes(base, target)) >= ratio*float64(len(target)) {
		return nil, false
	}
	payload := Encode(Compute(base, target))
	if float64(len(payload)) >= ratio*float64(len(target)) {
		return nil, false
	}
	ops, err := Decode(payload)
	if err != nil {
		return nil, false
	}
	out, err := Apply(base, ops)
	if err != nil || !bytes.Equal(out, target) {
		return nil, false
	}
	return payload, true
}

// unmatchedBytes sums the target lines that have no counterpart in base,
// counting duplicates.
func unmatchedBytes(base, target []byte) int {
	counts := make(map[string]int)
	for _, l := range splitLines(base) {
		counts[string(l)]++
	}
	n := 0
	for _, l := range splitLines(target) {
		if counts[string(l)] > 0 {
			counts[string(l)]--
			continue
		}
		n += len(l)
	}
	return n
}

func countLines(b []byte) int {
	n := bytes.Count(b, []byte{'\n'})
	if len(b) > 0 && b[len(b)-1] != '\n' {
		n++
	}
	return n
}

func splitLines(b []byte) [][]byte {
	if len(b) == 0 {
		return nil
	}
	lines := bytes.SplitAfter(b, []byte{'\n'})
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}
