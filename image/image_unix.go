//go:build linux || darwin

package image

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mmapCloser unmaps a region and closes the file descriptor that backed it.
type mmapCloser struct {
	data []byte
	file *os.File
}

func (c *mmapCloser) Close() error {
	err := unix.Munmap(c.data)
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open maps path read/write and returns an Image backed by it. The file
// must already exist and be sized to the image the caller intends to read
// or write; Open never truncates, creates, or resizes it.
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

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrMap, "%s: %v", path, err)
	}

	return &Image{
		data:   data,
		closer: &mmapCloser{data: data, file: f},
	}, nil
}
