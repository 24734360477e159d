package patch_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keshon/dirpatch/internal/digest"
	"github.com/keshon/dirpatch/internal/patch"
)

func validManifest() *patch.Manifest {
	h := digest.Sum([]byte("new"))
	return &patch.Manifest{
		FormatVersion: patch.FormatVersion,
		CheckFiles:    []patch.CheckFile{{Path: "app.exe", Hash: digest.Sum([]byte("app"))}},
		Entries: []patch.Entry{
			{Kind: patch.KindAdded, Path: "a/new.txt", Size: 3, Hash: h, Mode: 0o644,
				Payload: &patch.Locator{Name: "payload/000000", Size: 3, Checksum: "c0"}},
			{Kind: patch.KindModifiedDiff, Path: "b.txt", Size: 10, Hash: h, BaseHash: digest.Sum([]byte("old")), Mode: 0o644,
				Payload: &patch.Locator{Name: "payload/000001", Size: 4, Checksum: "c1"}},
			{Kind: patch.KindRemoved, Path: "c.txt", BaseHash: digest.Sum([]byte("c"))},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validManifest().Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(m *patch.Manifest){
		"version":        func(m *patch.Manifest) { m.FormatVersion = 99 },
		"absolute":       func(m *patch.Manifest) { m.Entries[0].Path = "/etc/passwd" },
		"dotdot":         func(m *patch.Manifest) { m.Entries[0].Path = "a/../../x" },
		"unclean":        func(m *patch.Manifest) { m.Entries[0].Path = "a//x" },
		"duplicate":      func(m *patch.Manifest) { m.Entries[1].Path = m.Entries[0].Path },
		"kind":           func(m *patch.Manifest) { m.Entries[0].Kind = "renamed" },
		"no payload":     func(m *patch.Manifest) { m.Entries[0].Payload = nil },
		"size mismatch":  func(m *patch.Manifest) { m.Entries[0].Payload.Size = 99 },
		"no base":        func(m *patch.Manifest) { m.Entries[1].BaseHash = digest.Digest{} },
		"shared blob":    func(m *patch.Manifest) { m.Entries[1].Payload.Name = m.Entries[0].Payload.Name },
		"removed blob":   func(m *patch.Manifest) { m.Entries[2].Payload = &patch.Locator{Name: "x"} },
		"check path":     func(m *patch.Manifest) { m.CheckFiles[0].Path = "../app.exe" },
		"file as parent": func(m *patch.Manifest) { m.Entries[1].Path = "a/new.txt/inner" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := validManifest()
			mutate(m)
			require.Error(t, m.Validate())
		})
	}
}

func TestRemovedParentOfWrittenIsAllowed(t *testing.T) {
	m := validManifest()
	m.Entries[2].Path = "a"
	m.Entries[2], m.Entries[0] = m.Entries[0], m.Entries[2]
	require.NoError(t, m.Validate())
}

func TestManifestJSONShape(t *testing.T) {
	data, err := json.Marshal(validManifest())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	entries := raw["entries"].([]any)
	removed := entries[2].(map[string]any)
	require.Equal(t, "removed", removed["kind"])
	require.NotContains(t, removed, "hash")
	require.NotContains(t, removed, "payload")

	var back patch.Manifest
	require.NoError(t, json.Unmarshal(data, &back))
	require.NoError(t, back.Validate())
	require.Equal(t, validManifest().Entries[1].BaseHash, back.Entries[1].BaseHash)
}

func TestErrorsUnwrapToSentinels(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	cases := []struct {
		err      error
		sentinel error
	}{
		{&patch.ScanError{Path: "x", Err: cause}, patch.ErrScan},
		{&patch.EncodeError{Path: "x", Err: cause}, patch.ErrEncode},
		{&patch.VerificationFailed{Failures: []patch.CheckFailure{{Path: "a", Reason: patch.ReasonMissing}}}, patch.ErrVerificationFailed},
		{&patch.StaleBaseError{Path: "x"}, patch.ErrStaleBase},
		{&patch.ApplyIOError{Path: "x", Op: "write", Err: cause}, patch.ErrApplyIO},
		{patch.Corrupt("bad trailer", cause), patch.ErrCorruptArtifact},
		{patch.Corrupt("no manifest", nil), patch.ErrCorruptArtifact},
	}
	for _, tt := range cases {
		wrapped := fmt.Errorf("run: %w", tt.err)
		require.ErrorIs(t, wrapped, tt.sentinel, tt.err.Error())
	}

	require.ErrorIs(t, &patch.ApplyIOError{Err: cause}, cause)

	var vf *patch.VerificationFailed
	require.True(t, errors.As(fmt.Errorf("w: %w", cases[2].err), &vf))
	require.Len(t, vf.Failures, 1)
	require.Contains(t, vf.Error(), "a (missing)")
}

func TestReportCounts(t *testing.T) {
	r := &patch.Report{Outcomes: []patch.Outcome{
		{Path: "z", Status: patch.StatusApplied},
		{Path: "b", Status: patch.StatusFailed},
		{Path: "a", Status: patch.StatusSkipped},
		{Path: "c", Status: patch.StatusApplied},
	}}
	require.Equal(t, 2, r.Applied())
	require.Equal(t, 1, r.Skipped())
	require.Equal(t, 1, r.Failed())

	sorted := r.Sorted()
	require.Equal(t, []string{"a", "b", "c", "z"}, []string{sorted[0].Path, sorted[1].Path, sorted[2].Path, sorted[3].Path})
	require.Equal(t, "z", r.Outcomes[0].Path, "Sorted must not reorder the report")
	require.Len(t, r.Failures(), 1)

	o, ok := r.Lookup("c")
	require.True(t, ok)
	require.Equal(t, patch.StatusApplied, o.Status)
}
