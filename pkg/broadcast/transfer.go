package broadcast

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/codec"
	"github.com/xystevensun/spark-private/pkg/transport"
)

// publishState is a snapshot of the origin-side fields one publish
// needs, taken under the manager lock so a concurrent Stop cannot nil
// them mid-write.
type publishState struct {
	dir        string
	registry   *FileRegistry
	compressor codec.Compressor
	bufferSize int
}

// writeBroadcastFile persists already-serialized payload bytes for id:
// derive the deterministic path, write the bytes through the compressor
// (or a plain buffered stream), and register the file.
//
// Stream ordering matters: the compressing stream is closed before the
// file handle so buffered output is flushed. The registry entry is
// written only after every stream closed cleanly; a failure mid-write
// leaves no entry behind a partial file.
func (m *Manager) writeBroadcastFile(id int64, payload []byte, ps publishState) error {
	path := filepath.Join(ps.dir, transport.FileName(id))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create broadcast file for %d: %w", id, err)
	}

	if err := encodeStream(f, payload, ps.compressor, ps.bufferSize); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write broadcast %d: %w", id, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close broadcast file for %d: %w", id, err)
	}

	ps.registry.Register(id, path)
	m.opts.Metrics.SetRegistrySize(ps.registry.Len())
	return nil
}

// encodeStream writes payload through the configured wrapping stream.
func encodeStream(f *os.File, payload []byte, compressor codec.Compressor, bufferSize int) error {
	if compressor != nil {
		cw := compressor.Compress(f)
		if _, err := cw.Write(payload); err != nil {
			_ = cw.Close()
			return err
		}
		return cw.Close()
	}

	bw := bufio.NewWriterSize(f, bufferSize)
	if _, err := bw.Write(payload); err != nil {
		return err
	}
	return bw.Flush()
}

// fetch retrieves the serialized payload bytes for id from the origin.
//
// The request URL joins the base URI with the identifier's path segment
// and is signed when authentication is enabled. The connect timeout is
// configured; the read timeout is fixed by the protocol. A timeout or
// transport fault is returned as-is and never retried here; retry policy
// belongs to the caller.
func (m *Manager) fetch(ctx context.Context, id int64) ([]byte, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	baseURI := m.baseURI
	client := m.client
	compressor := m.compressor
	bufferSize := m.bufferSize
	m.mu.Unlock()

	fetchURL, err := url.JoinPath(baseURI, "broadcast", transport.IDSegment(id))
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch url for broadcast %d: %w", id, err)
	}

	if m.opts.Security.Enabled() {
		fetchURL, err = m.opts.Security.SignURL(fetchURL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign fetch url for broadcast %d: %w", id, err)
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request for broadcast %d: %w", id, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broadcast %d transfer failed: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("broadcast %d: %w", id, ErrNotFound)
	default:
		return nil, fmt.Errorf("broadcast %d transfer failed: unexpected status %d", id, resp.StatusCode)
	}

	payload, err := m.decodeStream(resp.Body, compressor, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read broadcast %d: %w", id, err)
	}

	logger.Debug("broadcast fetched",
		"id", id,
		"bytes", len(payload),
		"duration", time.Since(start).String(),
	)
	m.opts.Metrics.ObserveFetchDuration(time.Since(start).Seconds())

	return payload, nil
}

// decodeStream reads the whole serialized payload out of the response
// body, unwrapping the compression layer when configured. The
// decompressing stream is closed on every exit path.
func (m *Manager) decodeStream(body io.Reader, compressor codec.Compressor, bufferSize int) ([]byte, error) {
	if compressor != nil {
		cr, err := compressor.Decompress(body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = cr.Close() }()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, cr); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, bufio.NewReaderSize(body, bufferSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
