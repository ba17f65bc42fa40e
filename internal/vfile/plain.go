package vfile

import (
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/siodb/iomgr/internal/ioerr"
)

// PlainFile is a thin wrapper over positional OS file I/O (spec §4.2):
// read/write retry until the full count is transferred or a hard error
// occurs, and extend uses an exact fallocate-style allocation.
type PlainFile struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenPlain opens or creates path as a plain (unencrypted) file.
func OpenPlain(path string, create bool) (*PlainFile, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, ioerr.IO("FileOpenFailed", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioerr.IO("FileStatFailed", err)
	}
	return &PlainFile{f: f, size: info.Size()}, nil
}

func (p *PlainFile) Read(buf []byte, offset int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for total < len(buf) {
		n, err := p.f.ReadAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, ioerr.IO("ShortRead", err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (p *PlainFile) Write(buf []byte, offset int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for total < len(buf) {
		n, err := p.f.WriteAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			return total, ioerr.IO("ShortWrite", err)
		}
		if n == 0 {
			return total, ioerr.IO("ShortWrite", errors.New("zero-length write"))
		}
	}
	if end := offset + int64(total); end > p.size {
		p.size = end
	}
	return total, nil
}

func (p *PlainFile) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *PlainFile) Stat() (Stat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, err := p.f.Stat()
	if err != nil {
		return Stat{}, ioerr.IO("FileStatFailed", err)
	}
	return Stat{Size: info.Size()}, nil
}

func (p *PlainFile) Extend(length int64) error {
	if length < 0 {
		return ioerr.Userf("InvalidArgument", "negative extend length %d", length)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	newSize := p.size + length
	if err := fallocateExact(p.f, p.size, newSize); err != nil {
		return ioerr.IO("FallocateFailed", err)
	}
	p.size = newSize
	return nil
}

func (p *PlainFile) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.f.Sync(); err != nil {
		return ioerr.IO("FsyncFailed", err)
	}
	return nil
}

func (p *PlainFile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.f.Close()
}

// openDurable opens path with O_DSYNC semantics where the platform
// supports it, for the catalog save path (spec §5 "the catalog save path
// uses O_DSYNC plus rename").
func openDurable(path string, flags int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flags|unix.O_DSYNC, perm)
}
