package transfer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Source is the payload of one send: a name, a size fixed before the
// metadata goes out, and the bytes themselves.
type Source struct {
	Name string
	Size uint64

	r      io.Reader
	closer io.Closer
}

// OpenSource opens a regular file and records its base name and size.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIO, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrIO, path)
	}

	return &Source{
		Name:   filepath.Base(path),
		Size:   uint64(info.Size()),
		r:      f,
		closer: f,
	}, nil
}

// NewSource sends size bytes read from r under the given name.
func NewSource(name string, size uint64, r io.Reader) *Source {
	return &Source{Name: name, Size: size, r: r}
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
