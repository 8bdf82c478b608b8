package source

import (
	"errors"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the streaming decompressor applied to a source.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// DetectCompression picks the decompressor from the location suffix.
func DetectCompression(location string) Compression {
	lower := strings.ToLower(location)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".gzip"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// readCloser closes the decompressor before the underlying source.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func decompress(raw io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, raw.Close}}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(raw, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		closeDec := func() error {
			dec.Close()
			return nil
		}
		return &readCloser{Reader: dec, closers: []func() error{closeDec, raw.Close}}, nil
	case CompressionLZ4:
		return &readCloser{Reader: lz4.NewReader(raw), closers: []func() error{raw.Close}}, nil
	default:
		return raw, nil
	}
}
