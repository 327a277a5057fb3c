package fatfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

const filesSectors = 70000

// =============================================================================
// blockFile Tests
// =============================================================================

func TestBlockFile_UnalignedRoundTrip(t *testing.T) {
	ctx := context.Background()
	const sectors = maxTransferSectors + 8
	disk := newBlankDisk(t, sectors)
	f := newBlockFile(ctx, disk, sectors)

	tests := []struct {
		name string
		off  int64
		size int
	}{
		{"inside one sector", 100, 50},
		{"across a boundary", 500, 30},
		{"aligned", 1024, 1024},
		{"head and tail", 1000, 3000},
		{"beyond one transfer", 7, (maxTransferSectors + 3) * hal.BlockSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xA5, 0x5A, 0x3C}, tt.size/3+1)[:tt.size]

			// Neighbouring bytes must survive the read-modify-write
			before := make([]byte, 1)
			f.ReadAt(before, tt.off-1)

			n, err := f.WriteAt(data, tt.off)
			if err != nil || n != tt.size {
				t.Fatalf("WriteAt() = %d, %v", n, err)
			}

			got := make([]byte, tt.size)
			if n, err := f.ReadAt(got, tt.off); err != nil || n != tt.size {
				t.Fatalf("ReadAt() = %d, %v", n, err)
			}
			if !bytes.Equal(got, data) {
				t.Error("read back data differs")
			}

			after := make([]byte, 1)
			f.ReadAt(after, tt.off-1)
			if after[0] != before[0] {
				t.Errorf("byte before write changed: %#x -> %#x", before[0], after[0])
			}
		})
	}
}

func TestBlockFile_Bounds(t *testing.T) {
	ctx := context.Background()
	disk := newBlankDisk(t, 8)
	f := newBlockFile(ctx, disk, 4)

	buf := make([]byte, 100)
	if n, err := f.ReadAt(buf, 4*hal.BlockSize-10); n != 10 || err != io.EOF {
		t.Errorf("ReadAt() at end = %d, %v, want 10, EOF", n, err)
	}
	if _, err := f.ReadAt(buf, 4*hal.BlockSize); err != io.EOF {
		t.Errorf("ReadAt() past end error = %v, want EOF", err)
	}
	if _, err := f.WriteAt(buf, 4*hal.BlockSize-10); !errors.Is(err, pkg.ErrOutOfBounds) {
		t.Errorf("WriteAt() past end error = %v, want ErrOutOfBounds", err)
	}
	if disk.WriteCalls() != 0 {
		t.Errorf("rejected write issued %d device writes", disk.WriteCalls())
	}

	if pos, err := f.Seek(-1, io.SeekEnd); err != nil || pos != 4*hal.BlockSize-1 {
		t.Errorf("Seek(-1, End) = %d, %v", pos, err)
	}
	if _, err := f.Seek(-1, io.SeekStart); err == nil {
		t.Error("Seek() to negative position succeeded")
	}
}

// =============================================================================
// Files Tests
// =============================================================================

func newFAT32Disk(t *testing.T, label string) (*Binding, context.Context) {
	t.Helper()
	ctx := context.Background()
	disk := newBlankDisk(t, filesSectors)

	if _, err := Format(ctx, disk, filesSectors, FormatOptions{Label: label, Serial: 0x12345678}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	b := New()
	if res := b.Mount(ctx, "sd:", disk); res != pkg.FROK {
		t.Fatalf("Mount() = %s", res)
	}
	return b, ctx
}

func TestFiles_WriteReadList(t *testing.T) {
	b, ctx := newFAT32Disk(t, "DATA")

	files, err := b.Files(ctx, "sd:")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}

	if got := strings.TrimSpace(files.Label()); got != "DATA" {
		t.Errorf("Label() = %q, want DATA", got)
	}

	if err := files.Mkdir("/BOOT"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	payload := bytes.Repeat([]byte("payload-"), 200)
	if err := files.WriteFile("/BOOT/KERNEL.BIN", payload); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// A fresh handle sees what the first one wrote
	reopened, err := b.Files(ctx, "sd:")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	got, err := reopened.ReadFile("/BOOT/KERNEL.BIN")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFile() = %d bytes, want %d", len(got), len(payload))
	}

	entries, err := reopened.ReadDir("/BOOT")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.EqualFold(e.Name(), "KERNEL.BIN") {
			found = true
			if e.Size() != int64(len(payload)) {
				t.Errorf("size = %d, want %d", e.Size(), len(payload))
			}
		}
	}
	if !found {
		t.Errorf("ReadDir() missing KERNEL.BIN: %v", entries)
	}
}

func TestFiles_OpenMissing(t *testing.T) {
	b, ctx := newFAT32Disk(t, "DATA")

	files, err := b.Files(ctx, "sd:")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if _, err := files.Open("/MISSING.TXT"); !errors.Is(err, pkg.ErrFilesystem) {
		t.Errorf("Open() error = %v, want ErrFilesystem", err)
	}
}

func TestBinding_FilesErrors(t *testing.T) {
	ctx := context.Background()
	b := New()

	if _, err := b.Files(ctx, "sd:"); !errors.Is(err, pkg.ErrNoFilesystem) {
		t.Errorf("Files() on unmounted volume error = %v, want ErrNoFilesystem", err)
	}

	disk := newBlankDisk(t, MinFormatSectors)
	if _, err := Format(ctx, disk, MinFormatSectors, FormatOptions{}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if res := b.Mount(ctx, "sd:", disk); res != pkg.FROK {
		t.Fatalf("Mount() = %s", res)
	}
	if _, err := b.Files(ctx, "sd:"); !errors.Is(err, pkg.ErrNotSupported) {
		t.Errorf("Files() on FAT16 error = %v, want ErrNotSupported", err)
	}
}
