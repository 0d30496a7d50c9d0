// Package osfs is a real-disk dbs.FileSystem backed by two ordinary
// files: the addressing blob and the data file. It is the filesystem
// dbsctl opens against, as opposed to memfs which is test-only.
package osfs

import (
	"fmt"
	"io"
	"os"

	"github.com/agraphon-io/vault/dbs"
)

// FS is an os.File-backed dbs.FileSystem over two paths.
type FS struct {
	addr *os.File
	data *os.File
}

// Open opens (creating if necessary) the addressing file at addrPath
// and the data file at dataPath.
func Open(addrPath, dataPath string) (*FS, error) {
	addr, err := os.OpenFile(addrPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("osfs: opening %s: %w", addrPath, err)
	}
	data, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		addr.Close()
		return nil, fmt.Errorf("osfs: opening %s: %w", dataPath, err)
	}
	return &FS{addr: addr, data: data}, nil
}

func (f *FS) file(id dbs.FileID) *os.File {
	if id == dbs.FileAddr {
		return f.addr
	}
	return f.data
}

func (f *FS) ReadBytes(id dbs.FileID, offset uint64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := f.file(id).ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("osfs: read: %w", err)
	}
	for i := n; i < length; i++ {
		buf[i] = 0
	}
	return buf, nil
}

func (f *FS) WriteBytes(id dbs.FileID, offset uint64, data []byte) error {
	if _, err := f.file(id).WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("osfs: write: %w", err)
	}
	return nil
}

func (f *FS) Size(id dbs.FileID) (uint64, error) {
	fi, err := f.file(id).Stat()
	if err != nil {
		return 0, fmt.Errorf("osfs: stat: %w", err)
	}
	return uint64(fi.Size()), nil
}

func (f *FS) Flush(id dbs.FileID) error {
	if err := f.file(id).Sync(); err != nil {
		return fmt.Errorf("osfs: sync: %w", err)
	}
	return nil
}

// Close closes both underlying files.
func (f *FS) Close() error {
	errAddr := f.addr.Close()
	errData := f.data.Close()
	if errAddr != nil {
		return errAddr
	}
	return errData
}
