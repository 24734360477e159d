package digest_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/fs"
)

func TestSumKnownVector(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	require.Equal(t, want, digest.Sum([]byte("abc")).String())
	require.Equal(t, want[:12], digest.Sum([]byte("abc")).Short())
}

func TestReaderMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10000)
	d, n, err := digest.Reader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, digest.Sum(data), d)
}

func TestParse(t *testing.T) {
	d := digest.Sum([]byte("x"))
	p, err := digest.Parse(d.String())
	require.NoError(t, err)
	require.Equal(t, d, p)

	_, err = digest.Parse("abc")
	require.Error(t, err)
	_, err = digest.Parse(string(bytes.Repeat([]byte("z"), 64)))
	require.Error(t, err)
}

func TestJSONText(t *testing.T) {
	type rec struct {
		Hash digest.Digest `json:"hash"`
	}
	in := rec{Hash: digest.Sum([]byte("payload"))}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), in.Hash.String())

	var out rec
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
	require.False(t, out.Hash.IsZero())
	require.True(t, digest.Digest{}.IsZero())
}

func TestFile(t *testing.T) {
	m := fs.NewMemFS()
	require.NoError(t, m.WriteFile("/a.txt", []byte("hello"), 0o644))

	d, n, err := digest.File(m, "/a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, digest.Sum([]byte("hello")), d)

	_, _, err = digest.File(m, "/missing")
	require.True(t, m.IsNotExist(err))
}
