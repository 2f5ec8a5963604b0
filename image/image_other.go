//go:build !linux && !darwin

package image

import (
	"os"

	"github.com/pkg/errors"
)

// fileCloser flushes the in-memory copy back to disk and closes the file,
// used on platforms where this core does not have a memory-mapping path.
type fileCloser struct {
	data []byte
	file *os.File
}

func (c *fileCloser) Close() error {
	_, err := c.file.WriteAt(c.data, 0)
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open reads path fully into memory and returns an Image backed by it,
// writing the bytes back on Close. This platform has no memory-mapping
// implementation in this core; behavior is otherwise identical to the
// mmap-backed Open on Linux and Darwin.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%s: %v", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrOpen, "%s: stat: %v", path, err)
	}

	data := make([]byte, fi.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrMap, "%s: %v", path, err)
	}

	return &Image{
		data:   data,
		closer: &fileCloser{data: data, file: f},
	}, nil
}
