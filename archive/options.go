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

import "encoding/binary"

// Option provides an interface to do work on a Writer while it is being
// created.
type Option interface {
	apply(o *writerOptions)
}

type writerOptions struct {
	order       binary.AppendByteOrder
	compression Compression
	zstdLevel   int
	registry    *Registry
}

func makeWriterOptions(options []Option) writerOptions {
	o := writerOptions{
		order:       binary.LittleEndian,
		compression: CompressionNone,
		zstdLevel:   3,
	}
	for _, op := range options {
		op.apply(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	return o
}

type byteOrderOption struct {
	bigEndian bool
}

func (op byteOrderOption) apply(o *writerOptions) {
	if op.bigEndian {
		o.order = binary.BigEndian
	} else {
		o.order = binary.LittleEndian
	}
}

// WithByteOrder sets the byte order of fixed-width values in the body. Only
// binary.BigEndian and binary.LittleEndian are supported; anything else
// means little-endian. The default is little-endian.
func WithByteOrder(order binary.ByteOrder) Option {
	return byteOrderOption{bigEndian: order == binary.BigEndian}
}

type compressionOption Compression

func (op compressionOption) apply(o *writerOptions) {
	o.compression = Compression(op)
}

// WithCompression sets the body compression. The default is
// CompressionNone.
func WithCompression(c Compression) Option {
	return compressionOption(c)
}

type zstdLevelOption int

func (op zstdLevelOption) apply(o *writerOptions) {
	o.zstdLevel = int(op)
}

// WithZstdLevel sets the zstd compression level, on zstd's own 1-22 scale.
// It is ignored unless the compression is CompressionZstd.
func WithZstdLevel(level int) Option {
	return zstdLevelOption(level)
}

type registryOption struct {
	r *Registry
}

func (op registryOption) apply(o *writerOptions) {
	o.registry = op.r
}

// WithRegistry sets the registry whose custom versions are recorded in the
// header. The default is DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return registryOption{r: r}
}
