package textdiff

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, base, target string) []byte {
	t.Helper()
	payload := Encode(Compute([]byte(base), []byte(target)))
	ops, err := Decode(payload)
	require.NoError(t, err)
	out, err := Apply([]byte(base), ops)
	require.NoError(t, err)
	require.Equal(t, target, string(out))
	return payload
}

func TestRoundTrip(t *testing.T) {
	cases := []struct{ name, base, target string }{
		{"identical", "a\nb\nc\n", "a\nb\nc\n"},
		{"append line", "a\nb\n", "a\nb\nc\n"},
		{"drop line", "a\nb\nc\n", "a\nc\n"},
		{"change middle", "a\nb\nc\n", "a\nB\nc\n"},
		{"no trailing newline", "a\nb", "a\nb\nc"},
		{"gain trailing newline", "a\nb", "a\nb\n"},
		{"lose trailing newline", "a\nb\n", "a\nb"},
		{"crlf", "one\r\ntwo\r\n", "one\r\n2\r\nthree\r\n"},
		{"empty base", "", "x\ny\n"},
		{"empty target", "x\ny\n", ""},
		{"both empty", "", ""},
		{"duplicate lines", "x\nx\nx\n", "x\ny\nx\nx\nx\n"},
		{"unicode", "héllo\nwörld\n", "héllo\nмир\n"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			roundTrip(t, tt.base, tt.target)
		})
	}
}

func TestRoundTripLarge(t *testing.T) {
	var base, target strings.Builder
	for i := range 5000 {
		fmt.Fprintf(&base, "line %d\n", i)
		if i%97 == 0 {
			fmt.Fprintf(&target, "changed %d\n", i)
			continue
		}
		fmt.Fprintf(&target, "line %d\n", i)
	}
	payload := roundTrip(t, base.String(), target.String())
	require.Less(t, len(payload), target.Len()/4)
}

func TestApplyMismatch(t *testing.T) {
	ops := Compute([]byte("a\nb\nc\n"), []byte("a\nc\n"))
	_, err := Apply([]byte("a\n"), ops)
	require.ErrorIs(t, err, ErrMismatch)

	_, err = Apply([]byte("a\nb\nc\nd\n"), ops)
	require.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"",
		"not a diff",
		header + "=x\n",
		header + "=3",
		header + "+10\nabc",
		header + "?1\n",
		header + "--1\n",
	} {
		_, err := Decode([]byte(in))
		require.Error(t, err, "input %q", in)
	}
}

func TestEncodeFormat(t *testing.T) {
	got := Encode([]Op{{Kind: OpKeep, N: 2}, {Kind: OpDrop, N: 1}, {Kind: OpInsert, Data: []byte("x\n")}})
	require.Equal(t, header+"=2\n-1\n+2\nx\n", string(got))
}

func TestIsText(t *testing.T) {
	require.True(t, IsText(nil))
	require.True(t, IsText([]byte("plain ascii\nwith lines\n")))
	require.True(t, IsText([]byte("{\"json\": true}\n")))
	require.True(t, IsText([]byte("<html><body>hi</body></html>\n")))
	require.True(t, IsText([]byte("tab\tand\x1b[0mescape\n")))

	require.False(t, IsText([]byte("has\x00nul")))
	require.False(t, IsText(bytes.Repeat([]byte{0x01, 'a', 'b', 'c'}, 100)))
	require.False(t, IsText([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	require.False(t, IsText(bytes.Repeat([]byte("a"), MaxTextSize+1)))
}

func TestDecide(t *testing.T) {
	var base strings.Builder
	for i := range 200 {
		fmt.Fprintf(&base, "configuration line number %d\n", i)
	}
	target := strings.Replace(base.String(), "number 100\n", "number one hundred\n", 1)

	payload, ok := Decide([]byte(base.String()), []byte(target), 0.8)
	require.True(t, ok)
	require.Less(t, len(payload), len(target))

	// rewriting everything is not worth a diff
	_, ok = Decide([]byte("a\nb\n"), []byte("c\nd\n"), 0.8)
	require.False(t, ok)

	// binary never diffs
	_, ok = Decide([]byte("a\x00b"), []byte("a\x00c"), 0.8)
	require.False(t, ok)

	// empty target
	_, ok = Decide([]byte("a\n"), nil, 0.8)
	require.False(t, ok)

	_, ok = Decide([]byte(base.String()), []byte(target), 0)
	require.False(t, ok)
}

func generated(n int, suffix string) []byte {
	var b bytes.Buffer
	for i := range n {
		fmt.Fprintf(&b, "generated record %06d value %s\n", i, suffix)
	}
	return b.Bytes()
}

func TestDecideRewrittenFileIsFast(t *testing.T) {
	base := generated(100000, "a")
	target := generated(100000, "b")
	require.Greater(t, len(target), 2<<20)
	require.True(t, IsText(target))

	start := time.Now()
	_, ok := Decide(base, target, 0.8)
	require.False(t, ok)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestDecideLargeSingleInsert(t *testing.T) {
	base := generated(70000, "a")
	target := bytes.Replace(base, []byte("record 035000 value a\n"), []byte("record 035000 value a\ninserted line\n"), 1)

	payload, ok := Decide(base, target, 0.8)
	require.True(t, ok)
	require.Less(t, len(payload), 100)
}

func TestUnmatchedBytes(t *testing.T) {
	require.Equal(t, 0, unmatchedBytes([]byte("a\nb\n"), []byte("b\na\n")))
	require.Equal(t, 2, unmatchedBytes([]byte("a\n"), []byte("a\na\n")))
	require.Equal(t, 1, unmatchedBytes([]byte("a\n"), []byte("a\nx")))
	require.Equal(t, 0, unmatchedBytes([]byte("a\n"), nil))
}
