// Package codec provides the compression and serialization codecs used by
// the broadcast transfer protocol.
//
// Both concerns are process-wide: the origin and every worker must be
// configured with the same compressor (or none) and the same serializer,
// because the on-disk format carries no self-describing header.
package codec

import (
	"io"
)

// Compressor wraps streams with a compression codec.
//
// Compress returns a WriteCloser; closing it flushes compressed output to
// the underlying writer without closing the writer itself. Decompress
// returns a ReadCloser over the decompressed stream.
type Compressor interface {
	// Compress wraps w with a compressing stream.
	Compress(w io.Writer) io.WriteCloser

	// Decompress wraps r with a decompressing stream.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// Serializer encodes and decodes broadcast payloads.
//
// Implementations must be safe for concurrent use.
type Serializer interface {
	// Encode writes one value to w.
	Encode(w io.Writer, value any) error

	// Decode reads one value from r.
	Decode(r io.Reader) (any, error)
}
