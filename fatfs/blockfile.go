package fatfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/diskfs/go-diskfs/util"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// maxTransferSectors bounds a single device transfer issued by blockFile.
const maxTransferSectors = 128

// blockFile presents the first size bytes of a block device as the
// byte-addressed file go-diskfs reads and writes. Partial sectors are
// read-modify-written. Device calls use the context the file was created
// with.
type blockFile struct {
	ctx    context.Context
	dev    hal.BlockDevice
	size   int64
	offset int64
}

var _ util.File = (*blockFile)(nil)

func newBlockFile(ctx context.Context, dev hal.BlockDevice, sectors uint64) *blockFile {
	return &blockFile{
		ctx:  ctx,
		dev:  dev,
		size: int64(sectors) * hal.BlockSize,
	}
}

// ReadAt implements io.ReaderAt.
func (f *blockFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", pkg.ErrInvalidParameter, off)
	}
	if off >= f.size {
		return 0, io.EOF
	}

	want := p
	if rem := f.size - off; int64(len(want)) > rem {
		want = want[:rem]
	}

	n := 0
	for n < len(want) {
		pos := off + int64(n)
		first := pos / hal.BlockSize
		skip := int(pos % hal.BlockSize)
		count := min((int64(skip+len(want)-n)+hal.BlockSize-1)/hal.BlockSize, maxTransferSectors)

		buf := make([]byte, count*hal.BlockSize)
		if err := f.dev.ReadSectors(f.ctx, uint32(first), uint32(count), buf); err != nil {
			return n, err
		}
		n += copy(want[n:], buf[skip:])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (f *blockFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", pkg.ErrInvalidParameter, off)
	}
	if off+int64(len(p)) > f.size {
		return 0, fmt.Errorf("%w: write of %d bytes at %d past %d", pkg.ErrOutOfBounds, len(p), off, f.size)
	}

	n := 0
	for n < len(p) {
		pos := off + int64(n)
		first := pos / hal.BlockSize
		skip := int(pos % hal.BlockSize)
		count := min((int64(skip+len(p)-n)+hal.BlockSize-1)/hal.BlockSize, maxTransferSectors)

		buf := make([]byte, count*hal.BlockSize)
		span := min(len(buf)-skip, len(p)-n)

		// Partial head or tail sector
		if skip != 0 || span%hal.BlockSize != 0 {
			if err := f.dev.ReadSectors(f.ctx, uint32(first), uint32(count), buf); err != nil {
				return n, err
			}
		}

		copy(buf[skip:], p[n:n+span])
		if err := f.dev.WriteSectors(f.ctx, uint32(first), uint32(count), buf); err != nil {
			return n, err
		}
		n += span
	}

	return n, nil
}

// Seek implements io.Seeker.
func (f *blockFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, fmt.Errorf("%w: negative position %d", pkg.ErrInvalidParameter, abs)
	}
	f.offset = abs
	return abs, nil
}
