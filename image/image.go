// Package image provides a block-addressable view over the raw bytes of a
// disk image, the substrate the MBR and GPT codecs read and write through.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// BlockSize is the logical block size, in bytes, assumed throughout this
// core. Every Image operation is expressed in whole blocks of this size.
const BlockSize = 512

// ErrOpen is returned when the backing file cannot be opened.
var ErrOpen = errors.New("image: failed to open backing file")

// ErrMap is returned when the backing file cannot be memory-mapped with
// read/write access.
var ErrMap = errors.New("image: failed to map backing file")

// closer is satisfied by whatever platform-specific resource backs an
// Image's bytes (an mmap region, or nothing at all for an in-memory image).
type closer interface {
	Close() error
}

// Image is a contiguous, block-addressable byte region of fixed length. It
// never resizes once opened. All reads and writes are bounds-checked against
// the region's length; a violation is a programming error and panics rather
// than returning an error, per this core's fail-fast bounds discipline.
type Image struct {
	data   []byte
	closer closer
}

// FromBytes wraps an already-sized, in-memory byte slice as an Image. It
// does not map any file and Close is a no-op; it exists for constructing
// images in tests and for callers who manage their own backing storage
// (e.g. an in-memory image the caller will flush itself).
func FromBytes(b []byte) *Image {
	return &Image{data: b}
}

// Len returns the image's length in bytes.
func (img *Image) Len() int {
	return len(img.data)
}

// BlockCount returns the number of whole BlockSize blocks in the image.
func (img *Image) BlockCount() int {
	return len(img.data) / BlockSize
}

// Close releases any resources backing the image (unmapping and closing the
// file for an image opened with Open). It is a no-op for images constructed
// with FromBytes.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	c := img.closer
	img.closer = nil
	return c.Close()
}

func (img *Image) checkRange(start, end int) {
	if start < 0 || end < start || end > len(img.data) {
		panic(fmt.Sprintf("image: out-of-range access [%d:%d) against image of length %d", start, end, len(img.data)))
	}
}

// GetBlocks returns an immutable view of n blocks starting at block i.
func (img *Image) GetBlocks(i, n int) []byte {
	start, end := i*BlockSize, (i+n)*BlockSize
	img.checkRange(start, end)
	return img.data[start:end]
}

// GetBlocksMut returns a mutable view of n blocks starting at block i.
// Go slices already alias their backing array, so this returns the same
// view as GetBlocks; it is kept as a distinct name to mirror the
// read/write-borrow distinction the rest of this core's API makes.
func (img *Image) GetBlocksMut(i, n int) []byte {
	return img.GetBlocks(i, n)
}

// Read decodes a little-endian, fixed-size value of type T starting at byte
// offset. T must be a type encoding/binary can read — a fixed-size struct of
// fixed-size fields, with no pointers or slices.
func Read[T any](img *Image, offset int) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		return v, fmt.Errorf("image: type %T has no fixed binary size", v)
	}
	img.checkRange(offset, offset+size)
	if err := binary.Read(bytes.NewReader(img.data[offset:offset+size]), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("image: read at offset %d: %w", offset, err)
	}
	return v, nil
}

// Write encodes v as little-endian bytes and copies them into the image
// starting at byte offset.
func Write[T any](img *Image, offset int, v T) error {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("image: encode %T: %w", v, err)
	}
	img.checkRange(offset, offset+buf.Len())
	copy(img.data[offset:], buf.Bytes())
	return nil
}
