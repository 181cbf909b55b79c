// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package download

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// decompressZstd wraps src in a zstd decoder, for tile bundles that arrive
// zstd-compressed outside the SRTM .zip path (e.g. a pre-built GMTED
// mirror that serves .tif.zst directly instead of plain .tif).
func decompressZstd(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("download: opening zstd stream: %w", err)
	}
	return dec.IOReadCloser(), nil
}
