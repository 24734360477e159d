// Package archive reads and writes patch artifacts.
//
// An artifact is a zip file. The first member is manifest.json (deflate); it
// is followed by one payload/NNNNNN member per entry that carries content,
// compressed with zstd (zip method 93); empty payloads are stored. Headers
// carry no timestamps, so the same input always yields the same bytes.
//
// An artifact may be appended to an executable stub and located through a
// trailer at the end of the file:
//
//	stub || zip || u64le(len(zip)) || "DIRPATCH_END"
package archive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

const (
	ManifestName  = "manifest.json"
	payloadPrefix = "payload/"

	trailerMagic = "DIRPATCH_END"
	trailerSize  = 8 + len(trailerMagic)

	// MethodZstd is the zip method id for zstd-compressed members.
	MethodZstd uint16 = zstd.ZipMethodWinZip

	maxManifestSize = 256 << 20
)

// PayloadName returns the member name for the i-th payload.
func PayloadName(i int) string {
	return fmt.Sprintf("%s%06d", payloadPrefix, i)
}

func checksum(h *xxh3.Hasher) string {
	return fmt.Sprintf("%x", h.Sum128().Bytes())
}

// Checksum returns the payload checksum of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%x", xxh3.Hash128(data).Bytes())
}
