package image

import (
	"io"
	"os"
	"sync"

	"github.com/ardnew/softmmc/hal"
)

// Backend defines the interface for image storage behind a [Controller].
// Offsets are in bytes; the controller converts sector addresses.
type Backend interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the image size in bytes.
	Size() int64

	// Sync flushes any cached writes to storage.
	Sync() error

	// IsReadOnly returns true if the image rejects writes.
	IsReadOnly() bool
}

// Memory implements Backend using an in-memory buffer.
type Memory struct {
	data     []byte
	readOnly bool
	mutex    sync.RWMutex
}

// NewMemory creates an in-memory image with the given size in bytes.
// The size is rounded down to a whole number of sectors.
func NewMemory(size int64) *Memory {
	size -= size % hal.BlockSize
	if size < 0 {
		size = 0
	}
	return &Memory{
		data: make([]byte, size),
	}
}

// NewMemoryFrom wraps an existing buffer as an image without copying it.
func NewMemoryFrom(data []byte) *Memory {
	return &Memory{
		data: data[:len(data)-len(data)%hal.BlockSize],
	}
}

// Size returns the image size.
func (m *Memory) Size() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return int64(len(m.data))
}

// ReadAt reads from the image.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, io.EOF
	}

	return copy(p, m.data[off:]), nil
}

// WriteAt writes to the image.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.readOnly {
		return 0, os.ErrPermission
	}

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, io.EOF
	}

	return copy(m.data[off:], p), nil
}

// Sync is a no-op for memory images.
func (m *Memory) Sync() error {
	return nil
}

// IsReadOnly returns whether the image is read-only.
func (m *Memory) IsReadOnly() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.readOnly
}

// SetReadOnly sets the read-only flag.
func (m *Memory) SetReadOnly(readOnly bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.readOnly = readOnly
}

// File implements Backend using a disk image file.
type File struct {
	file     *os.File
	size     int64
	readOnly bool
	mutex    sync.RWMutex
}

// OpenFile opens a file-backed image.
// If readOnly is true, the file is opened in read-only mode.
func OpenFile(path string, readOnly bool) (*File, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &File{
		file:     file,
		size:     stat.Size() - stat.Size()%hal.BlockSize,
		readOnly: readOnly,
	}, nil
}

// CreateFile creates (or truncates) an image file of the given size.
func CreateFile(path string, size int64) (*File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	size -= size % hal.BlockSize
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, err
	}

	return &File{
		file: file,
		size: size,
	}, nil
}

// Size returns the image size.
func (f *File) Size() int64 {
	return f.size
}

// ReadAt reads from the image file.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}

	if off < 0 || off+int64(len(p)) > f.size {
		return 0, io.EOF
	}

	n, err := f.file.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// WriteAt writes to the image file.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}

	if f.readOnly {
		return 0, os.ErrPermission
	}

	if off < 0 || off+int64(len(p)) > f.size {
		return 0, io.EOF
	}

	return f.file.WriteAt(p, off)
}

// Sync flushes file writes to disk.
func (f *File) Sync() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.readOnly || f.file == nil {
		return nil
	}

	return f.file.Sync()
}

// IsReadOnly returns whether the image is read-only.
func (f *File) IsReadOnly() bool {
	return f.readOnly
}

// Close closes the underlying file.
func (f *File) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}
