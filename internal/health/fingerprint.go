// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package health

import "golang.org/x/crypto/blake2b"

// Fingerprint grid dimensions. The frame is reduced to an 8x6 grid of
// average-luma buckets before hashing, so minor pixel noise does not
// defeat frozen-frame detection while any real content change does.
const (
	fingerprintCols = 8
	fingerprintRows = 6
)

// Fingerprint reduces a frame to a coarse luma grid and returns a BLAKE2b
// digest of the quantized buckets. Identical digests across consecutive
// checks indicate a frozen image.
func Fingerprint(f Frame) [blake2b.Size256]byte {
	var buckets [fingerprintCols * fingerprintRows]byte

	if f.Width > 0 && f.Height > 0 && len(f.Pix) >= f.Width*f.Height*4 {
		for row := range fingerprintRows {
			for col := range fingerprintCols {
				x0 := col * f.Width / fingerprintCols
				x1 := (col + 1) * f.Width / fingerprintCols
				y0 := row * f.Height / fingerprintRows
				y1 := (row + 1) * f.Height / fingerprintRows
				if x1 <= x0 {
					x1 = x0 + 1
				}
				if y1 <= y0 {
					y1 = y0 + 1
				}

				var sum, count int
				for y := y0; y < y1 && y < f.Height; y++ {
					for x := x0; x < x1 && x < f.Width; x++ {
						i := (y*f.Width + x) * 4
						// Integer Rec. 601 luma approximation.
						sum += (299*int(f.Pix[i]) + 587*int(f.Pix[i+1]) + 114*int(f.Pix[i+2])) / 1000
						count++
					}
				}
				if count > 0 {
					// Quantize to 16 levels so compression noise
					// does not churn the digest.
					buckets[row*fingerprintCols+col] = byte(sum/count) >> 4
				}
			}
		}
	}

	return blake2b.Sum256(buckets[:])
}
