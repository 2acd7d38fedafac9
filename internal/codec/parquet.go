// Package codec encodes partitions as parquet and decodes raw partitions
// written by any producer, mapping their columns to the business vocabulary.
package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"b3-dataflow/internal/errors"
)

// Compression names a parquet compression codec.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
	CompressionGzip   Compression = "gzip"
	CompressionLZ4    Compression = "lz4"
)

// Options configures parquet encoding.
type Options struct {
	Compression Compression
}

// DefaultOptions returns zstd compression.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompression maps a config string to a Compression. Empty means zstd;
// an unknown name is ErrInvalidConfig.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionZstd, nil
	case CompressionNone, CompressionSnappy, CompressionZstd, CompressionGzip, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("compression %q: %w", s, errors.ErrInvalidConfig)
	}
}

func (c Compression) codec() compress.Codec {
	switch c {
	case CompressionNone:
		return &parquet.Uncompressed
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionGzip:
		return &parquet.Gzip
	case CompressionLZ4:
		return &parquet.Lz4Raw
	default:
		return &parquet.Zstd
	}
}

// Extension is the file extension of encoded partitions.
func Extension() string { return "parquet" }

// Encode writes rows as a single parquet file. The schema comes from the
// parquet tags of T. Output depends only on rows and opts, so equal input
// gives byte-identical files.
func Encode[T any](rows []T, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(opts.Compression.codec()))
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every row of a file written by Encode[T].
func Decode[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

// Columns returns the top-level column names of an encoded file.
func Columns(data []byte) ([]string, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %v: %w", err, errors.ErrSchemaMismatch)
	}
	var names []string
	for _, path := range f.Schema().Columns() {
		names = append(names, strings.Join(path, "."))
	}
	return names, nil
}
