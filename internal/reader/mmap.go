package reader

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory map of a file on disk. The returned
// Data slice aliases the kernel's page cache directly; no bytes are copied
// on open, and slicing Data never allocates.
type mappedFile struct {
	f    *os.File
	Data []byte
}

func openMapped(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: empty file", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: mmap: %w", path, err)
	}
	return &mappedFile{f: f, Data: data}, nil
}

func (m *mappedFile) Close() error {
	err := unix.Munmap(m.Data)
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
