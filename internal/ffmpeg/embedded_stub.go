//go:build !ffmpeg_embedded

package ffmpeg

import "io"

// without the ffmpeg_embedded tag the bundle is always downloaded
func openEmbeddedAsset(string) (io.ReadCloser, bool, error) {
	return nil, false, nil
}
