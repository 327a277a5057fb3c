package fatfs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/fat32"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Files gives file access to a FAT32 volume. Paths are absolute and use
// forward slashes, e.g. "/boot/config.txt".
type Files struct {
	fs *fat32.FileSystem
}

// OpenFiles opens the FAT32 volume of the given size that starts at sector
// 0 of dev. Block I/O issued through the returned value uses ctx.
func OpenFiles(ctx context.Context, dev hal.BlockDevice, sectors uint64) (*Files, error) {
	fs, err := fat32.Read(newBlockFile(ctx, dev, sectors), int64(sectors)*hal.BlockSize, 0, hal.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkg.ErrFilesystem, err)
	}
	return &Files{fs: fs}, nil
}

// Files opens the volume mounted at volume for file access. Only FAT32
// volumes support file access.
func (b *Binding) Files(ctx context.Context, volume string) (*Files, error) {
	v, ok := b.Volume(volume)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not mounted", pkg.ErrNoFilesystem, volume)
	}
	if v.Type != TypeFAT32 {
		return nil, fmt.Errorf("%w: file access on %s volume %s", pkg.ErrNotSupported, v.Type, volume)
	}
	return OpenFiles(ctx, v.Device(), v.Sectors)
}

// Label returns the volume label.
func (f *Files) Label() string {
	return f.fs.Label()
}

// Open opens the file at path for reading.
func (f *Files) Open(path string) (filesystem.File, error) {
	return f.open(path, os.O_RDONLY)
}

// Create opens the file at path for reading and writing, creating it if it
// does not exist.
func (f *Files) Create(path string) (filesystem.File, error) {
	return f.open(path, os.O_RDWR|os.O_CREATE)
}

func (f *Files) open(path string, flag int) (filesystem.File, error) {
	file, err := f.fs.OpenFile(path, flag)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", pkg.ErrFilesystem, path, err)
	}
	return file, nil
}

// ReadFile returns the contents of the file at path.
func (f *Files) ReadFile(path string) ([]byte, error) {
	file, err := f.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", pkg.ErrFilesystem, path, err)
	}
	return data, nil
}

// WriteFile writes data to the file at path, creating it if needed.
func (f *Files) WriteFile(path string, data []byte) error {
	file, err := f.Create(path)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("%w: write %s: %w", pkg.ErrFilesystem, path, err)
	}
	return file.Close()
}

// ReadDir lists the directory at path.
func (f *Files) ReadDir(path string) ([]os.FileInfo, error) {
	entries, err := f.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", pkg.ErrFilesystem, path, err)
	}
	return entries, nil
}

// Mkdir creates the directory at path and any missing parents.
func (f *Files) Mkdir(path string) error {
	if err := f.fs.Mkdir(path); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", pkg.ErrFilesystem, path, err)
	}
	return nil
}
