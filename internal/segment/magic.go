// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package segment

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// EBMLMagic is the 4-byte header identifying the WebM/Matroska container.
var EBMLMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// HeaderScanLimit bounds how far into a corrupted file the repair fallback
// searches for the real container header.
const HeaderScanLimit = 4 << 20 // 4 MiB

// HasValidHeader reports whether the file starts with the EBML magic bytes.
// Short or unreadable files are invalid, not errors: the caller treats them
// as repair candidates either way.
func HasValidHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck // read-only

	header := make([]byte, len(EBMLMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, EBMLMagic)
}

// ScanForMagic searches the first HeaderScanLimit bytes of the file for the
// EBML magic sequence and returns its offset. found is false when the magic
// does not occur within the window.
func ScanForMagic(path string) (offset int64, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open %s for header scan: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	buf, err := io.ReadAll(io.LimitReader(f, HeaderScanLimit))
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s for header scan: %w", path, err)
	}

	idx := bytes.Index(buf, EBMLMagic)
	if idx < 0 {
		return 0, false, nil
	}
	return int64(idx), true, nil
}

// WriteTrimmedCopy writes the tail of src starting at offset into dst,
// producing a file whose first bytes are the real container header. The
// destination is written via a temp sibling and renamed into place so a
// failed copy never leaves a partial repaired file behind.
func WriteTrimmedCopy(src, dst string, offset int64) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only

	if _, err := in.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s to offset %d: %w", src, offset, err)
	}

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()    //nolint:errcheck // already failing
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to copy trimmed data to %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to move trimmed copy into place: %w", err)
	}
	return nil
}
