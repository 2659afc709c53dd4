// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compression selects how the body of an archive is compressed. The header
// is never compressed.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses the LZ4 frame format. It is fast and suits
	// archives that are read back soon.
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd, which compresses better than LZ4.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZstd
}

// bodyWriter is the compressing stage between a Writer and its destination.
type bodyWriter interface {
	io.Writer
	// Close flushes everything buffered without closing the destination.
	Close() error
}

// bufferedBody adapts a bufio.Writer to bodyWriter.
type bufferedBody struct {
	*bufio.Writer
}

func (b bufferedBody) Close() error {
	return b.Flush()
}

func newBodyWriter(w io.Writer, c Compression, zstdLevel int) (bodyWriter, error) {
	switch c {
	case CompressionNone:
		return bufferedBody{bufio.NewWriter(w)}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		level := zstd.EncoderLevelFromZstd(zstdLevel)
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, "archive: creating zstd encoder")
		}
		return enc, nil
	default:
		return nil, errors.Errorf("archive: unsupported compression %s", c)
	}
}

// newBodyReader returns a reader of the decompressed body, and a function
// releasing the decompressor's resources.
func newBodyReader(r *bufio.Reader, c Compression) (*bufio.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return bufio.NewReader(lz4.NewReader(r)), func() {}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "archive: creating zstd decoder")
		}
		return bufio.NewReader(dec), dec.Close, nil
	default:
		return nil, nil, errors.Errorf("archive: unsupported compression %s", c)
	}
}
