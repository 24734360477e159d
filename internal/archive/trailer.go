package archive

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wrap writes stub followed by archive and the trailer that lets Open find
// the archive again.
func Wrap(w io.Writer, stub, archive io.Reader) error {
	if _, err := io.Copy(w, stub); err != nil {
		return fmt.Errorf("copy stub: %w", err)
	}
	n, err := io.Copy(w, archive)
	if err != nil {
		return fmt.Errorf("copy archive: %w", err)
	}
	return writeTrailer(w, n)
}

func writeTrailer(w io.Writer, n int64) error {
	var buf [trailerSize]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(n))
	copy(buf[8:], trailerMagic)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// readTrailer returns the archive section length when ra ends with a trailer.
func readTrailer(ra io.ReaderAt, size int64) (int64, bool, error) {
	if size < int64(trailerSize) {
		return 0, false, nil
	}
	var buf [trailerSize]byte
	if _, err := ra.ReadAt(buf[:], size-int64(trailerSize)); err != nil {
		return 0, false, err
	}
	if string(buf[8:]) != trailerMagic {
		return 0, false, nil
	}
	n := binary.LittleEndian.Uint64(buf[:8])
	if n > uint64(size-int64(trailerSize)) {
		return 0, true, fmt.Errorf("trailer length %d exceeds file size %d", n, size)
	}
	return int64(n), true, nil
}

// HasTrailer reports whether ra ends with an artifact trailer.
func HasTrailer(ra io.ReaderAt, size int64) bool {
	_, ok, err := readTrailer(ra, size)
	return ok && err == nil
}
