package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/zkintents/taralli/pkg/systems"
)

// BrotliOptions mirrors the {buffer_size, quality, window_size} triple
// spec.md §4.A reads from config, defaulting to {0, 7, 24}.
type BrotliOptions struct {
	BufferSize int
	Quality    int
	LGWin      int
}

// DefaultBrotliOptions returns the spec-mandated defaults.
func DefaultBrotliOptions() BrotliOptions {
	return BrotliOptions{BufferSize: 0, Quality: 7, LGWin: 24}
}

func (o BrotliOptions) copyBufferSize() int {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return 4096
}

// CompressSystemParams Brotli-compresses the JSON encoding of params, the
// `system_bytes` multipart part / the `system` field of the streaming wire
// record. A fresh encoder is instantiated per call, per spec.md §4.A.
func CompressSystemParams(params *systems.RawSystemParams, opts BrotliOptions) ([]byte, error) {
	plain, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal system params: %w", err)
	}
	var buf bytes.Buffer
	w := brotli.NewWriterOptions(&buf, brotli.WriterOptions{Quality: opts.Quality, LGWin: opts.LGWin})
	if _, err := io.CopyBuffer(w, bytes.NewReader(plain), make([]byte, opts.copyBufferSize())); err != nil {
		w.Close()
		return nil, fmt.Errorf("codec: brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressSystemParams reverses CompressSystemParams.
func DecompressSystemParams(compressed []byte, opts BrotliOptions) (*systems.RawSystemParams, error) {
	r := brotli.NewReader(bytes.NewReader(compressed))
	var buf bytes.Buffer
	if _, err := io.CopyBuffer(&buf, r, make([]byte, opts.copyBufferSize())); err != nil {
		return nil, fmt.Errorf("codec: brotli decompress: %w", err)
	}
	var params systems.RawSystemParams
	if err := json.Unmarshal(buf.Bytes(), &params); err != nil {
		return nil, fmt.Errorf("codec: unmarshal system params: %w", err)
	}
	return &params, nil
}
