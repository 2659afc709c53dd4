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

// Package archive implements the versioned binary stream that the sparse
// containers serialize themselves into.
//
// An archive starts with an uncompressed header:
//
//	"SPAR"            magic
//	uint16            format version (big-endian)
//	byte              flags; bit 0 set means the body is big-endian
//	byte              body compression (see Compression)
//	uvarint           number of custom versions, then for each:
//	  [16]byte          key
//	  int32             version (big-endian)
//	  uvarint, bytes    name
//
// The body follows, possibly compressed. Fixed-width values in the body use
// the byte order recorded in the flags. Variable-length integers, strings
// and byte slices are encoded the same way in either byte order.
//
// Errors on both Writer and Reader are sticky: after the first failure every
// further operation is a no-op (reads return zero values) and Err reports
// the failure. Callers can therefore encode or decode a whole structure and
// check for an error once at the end.
package archive

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	magic = "SPAR"
	// FormatVersion is the version of the header layout written by this
	// package.
	FormatVersion uint16 = 1

	flagBigEndian byte = 1 << 0

	// MaxBytesLen bounds the length of a string or byte slice read from an
	// archive, so a corrupt length cannot trigger a huge allocation.
	MaxBytesLen = 1 << 30

	maxCustomVersions = 1 << 16
	maxNameLen        = 1 << 10
)

// Writer encodes values into an archive. A Writer is not safe for
// concurrent use.
type Writer struct {
	body    bodyWriter
	order   binary.AppendByteOrder
	scratch [binary.MaxVarintLen64]byte
	err     error
	closed  bool
}

// NewWriter writes an archive header to w and returns a Writer for the
// body. The caller must Close the Writer to flush the body; closing does not
// close w.
func NewWriter(w io.Writer, options ...Option) (*Writer, error) {
	o := makeWriterOptions(options)
	if !o.compression.valid() {
		return nil, errors.Errorf("archive: unsupported compression %s", o.compression)
	}
	if _, err := w.Write(appendHeader(nil, o)); err != nil {
		return nil, errors.Wrap(err, "archive: writing header")
	}
	body, err := newBodyWriter(w, o.compression, o.zstdLevel)
	if err != nil {
		return nil, err
	}
	return &Writer{body: body, order: o.order}, nil
}

func appendHeader(buf []byte, o writerOptions) []byte {
	buf = append(buf, magic...)
	buf = binary.BigEndian.AppendUint16(buf, FormatVersion)
	var flags byte
	if o.order == binary.BigEndian {
		flags |= flagBigEndian
	}
	buf = append(buf, flags, byte(o.compression))
	versions := o.registry.Versions()
	buf = binary.AppendUvarint(buf, uint64(len(versions)))
	for _, v := range versions {
		buf = append(buf, v.Key[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(v.Version))
		buf = binary.AppendUvarint(buf, uint64(len(v.Name)))
		buf = append(buf, v.Name...)
	}
	return buf
}

// Err returns the first error encountered by w.
func (w *Writer) Err() error {
	return w.err
}

// ByteOrder returns the byte order of fixed-width values.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order.(binary.ByteOrder)
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	if w.closed {
		w.err = errors.New("archive: write after close")
		return
	}
	if _, err := w.body.Write(b); err != nil {
		w.err = errors.Wrap(err, "archive: write")
	}
}

// WriteUvarint writes v as a variable-length unsigned integer.
func (w *Writer) WriteUvarint(v uint64) {
	w.write(binary.AppendUvarint(w.scratch[:0], v))
}

// WriteVarint writes v as a variable-length zig-zag integer.
func (w *Writer) WriteVarint(v int64) {
	w.write(binary.AppendVarint(w.scratch[:0], v))
}

// WriteByte writes a single byte. It always returns nil; check Err.
func (w *Writer) WriteByte(b byte) error {
	w.write(append(w.scratch[:0], b))
	return nil
}

// WriteBool writes b as a single byte.
func (w *Writer) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	_ = w.WriteByte(v)
}

// WriteUint16 writes v in the archive's byte order.
func (w *Writer) WriteUint16(v uint16) {
	w.write(w.order.AppendUint16(w.scratch[:0], v))
}

// WriteUint32 writes v in the archive's byte order.
func (w *Writer) WriteUint32(v uint32) {
	w.write(w.order.AppendUint32(w.scratch[:0], v))
}

// WriteUint64 writes v in the archive's byte order.
func (w *Writer) WriteUint64(v uint64) {
	w.write(w.order.AppendUint64(w.scratch[:0], v))
}

// WriteInt32 writes v in the archive's byte order.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteInt64 writes v in the archive's byte order.
func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFloat64 writes the IEEE 754 bits of v in the archive's byte order.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteBytes writes the length of b followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.write(b)
}

// WriteString writes the length of s followed by s.
func (w *Writer) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.write([]byte(s))
}

// Close flushes the body. It returns the first error encountered by w.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if err := w.body.Close(); err != nil && w.err == nil {
		w.err = errors.Wrap(err, "archive: flushing body")
	}
	return w.err
}

// Reader decodes values from an archive. A Reader is not safe for
// concurrent use.
type Reader struct {
	body        *bufio.Reader
	release     func()
	order       binary.ByteOrder
	version     uint16
	compression Compression
	versions    []CustomVersion
	scratch     [8]byte
	err         error
}

// NewReader reads the archive header from r and returns a Reader for the
// body.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	rd := &Reader{}
	if err := rd.readHeader(br); err != nil {
		return nil, err
	}
	body, release, err := newBodyReader(br, rd.compression)
	if err != nil {
		return nil, err
	}
	rd.body, rd.release = body, release
	return rd, nil
}

func (r *Reader) readHeader(br *bufio.Reader) error {
	var fixed [len(magic) + 4]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return errors.Wrap(noEOF(err), "archive: reading header")
	}
	if string(fixed[:len(magic)]) != magic {
		return errors.Errorf("archive: bad magic %q", fixed[:len(magic)])
	}
	r.version = binary.BigEndian.Uint16(fixed[len(magic):])
	if r.version == 0 || r.version > FormatVersion {
		return errors.Errorf("archive: unsupported format version %d", r.version)
	}
	flags := fixed[len(magic)+2]
	if flags&^flagBigEndian != 0 {
		return errors.Errorf("archive: unknown flags %#x", flags)
	}
	r.order = binary.LittleEndian
	if flags&flagBigEndian != 0 {
		r.order = binary.BigEndian
	}
	r.compression = Compression(fixed[len(magic)+3])
	if !r.compression.valid() {
		return errors.Errorf("archive: unsupported compression %s", r.compression)
	}

	n, err := binary.ReadUvarint(br)
	if err != nil {
		return errors.Wrap(noEOF(err), "archive: reading custom version count")
	}
	if n > maxCustomVersions {
		return errors.Errorf("archive: %d custom versions exceeds %d", n, maxCustomVersions)
	}
	r.versions = make([]CustomVersion, 0, n)
	for i := uint64(0); i < n; i++ {
		var entry [16 + 4]byte
		if _, err := io.ReadFull(br, entry[:]); err != nil {
			return errors.Wrapf(noEOF(err), "archive: reading custom version %d", i)
		}
		v := CustomVersion{Version: int32(binary.BigEndian.Uint32(entry[16:]))}
		copy(v.Key[:], entry[:16])
		nameLen, err := binary.ReadUvarint(br)
		if err != nil {
			return errors.Wrapf(noEOF(err), "archive: reading custom version %d name", i)
		}
		if nameLen > maxNameLen {
			return errors.Errorf("archive: custom version %d name length %d exceeds %d", i, nameLen, maxNameLen)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return errors.Wrapf(noEOF(err), "archive: reading custom version %d name", i)
		}
		v.Name = string(name)
		r.versions = append(r.versions, v)
	}
	return nil
}

// noEOF turns io.EOF into io.ErrUnexpectedEOF. Running out of input in the
// middle of a value is never a clean end of stream.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Err returns the first error encountered by r.
func (r *Reader) Err() error {
	return r.err
}

// Version returns the format version of the header.
func (r *Reader) Version() uint16 {
	return r.version
}

// Compression returns the body compression.
func (r *Reader) Compression() Compression {
	return r.compression
}

// ByteOrder returns the byte order of fixed-width values.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}

// CustomVersion returns the version recorded for key by the writer.
func (r *Reader) CustomVersion(key uuid.UUID) (int32, bool) {
	for _, v := range r.versions {
		if v.Key == key {
			return v.Version, true
		}
	}
	return 0, false
}

// CustomVersions returns every version recorded by the writer, ordered by
// key.
func (r *Reader) CustomVersions() []CustomVersion {
	return append([]CustomVersion(nil), r.versions...)
}

func (r *Reader) fail(err error, what string) {
	if r.err == nil {
		r.err = errors.Wrapf(noEOF(err), "archive: reading %s", what)
	}
}

func (r *Reader) readFixed(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	b := r.scratch[:n]
	if _, err := io.ReadFull(r.body, b); err != nil {
		r.fail(err, what)
		return nil
	}
	return b
}

// ReadUvarint reads a variable-length unsigned integer.
func (r *Reader) ReadUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(r.body)
	if err != nil {
		r.fail(err, "uvarint")
		return 0
	}
	return v
}

// ReadVarint reads a variable-length zig-zag integer.
func (r *Reader) ReadVarint() int64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadVarint(r.body)
	if err != nil {
		r.fail(err, "varint")
		return 0
	}
	return v
}

// ReadByte reads a single byte. The returned error is the sticky error.
func (r *Reader) ReadByte() (byte, error) {
	b := r.readFixed(1, "byte")
	if b == nil {
		return 0, r.err
	}
	return b[0], nil
}

// ReadBool reads a byte written by WriteBool.
func (r *Reader) ReadBool() bool {
	b, err := r.ReadByte()
	if err != nil {
		return false
	}
	if b > 1 {
		r.err = errors.Errorf("archive: invalid bool byte %#x", b)
		return false
	}
	return b == 1
}

// ReadUint16 reads a uint16 in the archive's byte order.
func (r *Reader) ReadUint16() uint16 {
	if b := r.readFixed(2, "uint16"); b != nil {
		return r.order.Uint16(b)
	}
	return 0
}

// ReadUint32 reads a uint32 in the archive's byte order.
func (r *Reader) ReadUint32() uint32 {
	if b := r.readFixed(4, "uint32"); b != nil {
		return r.order.Uint32(b)
	}
	return 0
}

// ReadUint64 reads a uint64 in the archive's byte order.
func (r *Reader) ReadUint64() uint64 {
	if b := r.readFixed(8, "uint64"); b != nil {
		return r.order.Uint64(b)
	}
	return 0
}

// ReadInt32 reads an int32 in the archive's byte order.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadInt64 reads an int64 in the archive's byte order.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadFloat64 reads a float64 written by WriteFloat64.
func (r *Reader) ReadFloat64() float64 {
	return math.Float64frombits(r.ReadUint64())
}

// ReadBytes reads a byte slice written by WriteBytes.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadUvarint()
	if r.err != nil {
		return nil
	}
	if n > MaxBytesLen {
		r.err = errors.Errorf("archive: length %d exceeds %d", n, MaxBytesLen)
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.body, b); err != nil {
		r.fail(err, "bytes")
		return nil
	}
	return b
}

// ReadString reads a string written by WriteString.
func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

// AtEOF reports whether the whole body has been consumed.
func (r *Reader) AtEOF() bool {
	if r.err != nil {
		return false
	}
	_, err := r.body.Peek(1)
	return err == io.EOF
}

// Close releases the decompressor. It does not close the source.
func (r *Reader) Close() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}
