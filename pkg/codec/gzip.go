package codec

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCompressor implements Compressor with gzip at the default level.
type GzipCompressor struct{}

// NewGzipCompressor returns a gzip-backed Compressor.
func NewGzipCompressor() *GzipCompressor {
	return &GzipCompressor{}
}

// Compress wraps w with a gzip writer. Closing the returned writer flushes
// the gzip trailer but leaves w open.
func (c *GzipCompressor) Compress(w io.Writer) io.WriteCloser {
	return gzip.NewWriter(w)
}

// Decompress wraps r with a gzip reader. Fails if r does not start with a
// gzip header, which is the usual symptom of a compression mismatch
// between nodes.
func (c *GzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

var _ Compressor = (*GzipCompressor)(nil)
