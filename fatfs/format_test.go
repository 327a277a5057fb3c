package fatfs

import (
	"context"
	"errors"
	"testing"

	"github.com/ardnew/softmmc/gpt"
	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/hal/image"
	"github.com/ardnew/softmmc/pkg"
)

func newBlankDisk(t *testing.T, sectors uint64) *image.Controller {
	t.Helper()
	ctrl := image.New(image.NewMemory(int64(sectors) * hal.BlockSize))
	if err := ctrl.Init(context.Background(), hal.BusWidth8, hal.TimingMMCHS52); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return ctrl
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		sectors uint64
		want    Type
		spc     uint32 // Zero leaves the cluster size to go-diskfs
	}{
		{"minimum", MinFormatSectors, TypeFAT16, 1},
		{"small FAT16", 20000, TypeFAT16, 1},
		{"FAT16 with larger clusters", MinFAT32Sectors - 1, TypeFAT16, 2},
		{"minimum FAT32", MinFAT32Sectors, TypeFAT32, 0},
		{"FAT32", 70000, TypeFAT32, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			disk := newBlankDisk(t, tt.sectors)

			typ, err := Format(ctx, disk, tt.sectors, FormatOptions{Label: "SOFTMMC", Serial: 0xCAFEF00D})
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if typ != tt.want {
				t.Errorf("Format() type = %s, want %s", typ, tt.want)
			}

			b := New()
			if res := b.Mount(ctx, "emmc:", disk); res != pkg.FROK {
				t.Fatalf("Mount() = %s", res)
			}
			v, _ := b.Volume("emmc:")
			if v.Type != tt.want {
				t.Errorf("mounted type = %s, want %s", v.Type, tt.want)
			}
			if tt.spc != 0 && v.SectorsPerCluster != tt.spc {
				t.Errorf("SectorsPerCluster = %d, want %d", v.SectorsPerCluster, tt.spc)
			}
			if v.Sectors != tt.sectors {
				t.Errorf("Sectors = %d, want %d", v.Sectors, tt.sectors)
			}
			if v.Label != "SOFTMMC" || v.Serial != 0xCAFEF00D {
				t.Errorf("identity = %q/%08X", v.Label, v.Serial)
			}
		})
	}
}

func TestFormat_NoLabel(t *testing.T) {
	ctx := context.Background()
	disk := newBlankDisk(t, MinFormatSectors)

	if _, err := Format(ctx, disk, MinFormatSectors, FormatOptions{}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	b := New()
	b.Mount(ctx, "sd:", disk)
	if v, _ := b.Volume("sd:"); v.Label != "" {
		t.Errorf("Label = %q, want empty", v.Label)
	}
}

func TestFormat_Errors(t *testing.T) {
	ctx := context.Background()
	disk := newBlankDisk(t, MinFormatSectors)

	tests := []struct {
		name    string
		sectors uint64
		opts    FormatOptions
		want    error
	}{
		{"too small", MinFormatSectors - 1, FormatOptions{}, pkg.ErrInvalidParameter},
		{"label too long", MinFormatSectors, FormatOptions{Label: "TWELVE CHARS"}, pkg.ErrInvalidParameter},
		{"beyond 32-bit", 1 << 32, FormatOptions{}, pkg.ErrOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Format(ctx, disk, tt.sectors, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("Format() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFormat_GPTPartition(t *testing.T) {
	ctx := context.Background()
	const sectors = 32768
	disk := newBlankDisk(t, sectors)

	parts := []gpt.Partition{
		{Name: "BCT", LBAStart: 34, LBAEnd: 1023, TypeGUID: gpt.TypeBasicData},
		{Name: "SOS", LBAStart: 1024, LBAEnd: 1024 + MinFormatSectors*2 - 1, TypeGUID: gpt.TypeBasicData},
	}
	window := gpt.Marshal(gpt.NewHeader(sectors, gpt.GUID{1}), parts)
	if err := disk.WriteSectors(ctx, gpt.HeaderLBA, gpt.StagingSectors, window); err != nil {
		t.Fatalf("write GPT: %v", err)
	}
	mbr := mbrSector(mbrEntry{typ: mbrTypeGPT, lbaStart: 1, sectors: sectors - 1})
	if err := disk.WriteSectors(ctx, 0, 1, mbr); err != nil {
		t.Fatalf("write MBR: %v", err)
	}

	sos := parts[1]
	if _, err := Format(ctx, sos.Device(disk), sos.Sectors(), FormatOptions{Label: "SOS"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	b := New()
	if res := b.Mount(ctx, "emmc:", disk); res != pkg.FROK {
		t.Fatalf("Mount() = %s", res)
	}
	v, _ := b.Volume("emmc:")
	if v.Partition != "SOS" || v.StartLBA != 1024 || v.Label != "SOS" {
		t.Errorf("volume = %+v", v)
	}
}
