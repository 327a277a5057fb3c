package fatfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ardnew/softmmc/gpt"
	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/hal/image"
	"github.com/ardnew/softmmc/pkg"
	"github.com/ardnew/softmmc/storage"
)

const diskSectors = 8192

type bpb struct {
	spc     uint8
	rsvd    uint16
	nfats   uint8
	rootEnt uint16
	totSec  uint32
	fatSz   uint32
	fat32   bool
	serial  uint32
	label   string
}

var (
	bpbFAT12      = bpb{spc: 1, rsvd: 1, nfats: 2, rootEnt: 224, totSec: 2880, fatSz: 9, serial: 0x1212, label: "FLOPPY"}
	bpbFAT16      = bpb{spc: 4, rsvd: 4, nfats: 2, rootEnt: 512, totSec: 65536, fatSz: 64, serial: 0x1616, label: "SMALL"}
	bpbSmallFAT32 = bpb{spc: 8, rsvd: 32, nfats: 2, totSec: 20000, fatSz: 20, fat32: true, serial: 0x3333, label: "TINY"}
	bpbFAT32      = bpb{spc: 1, rsvd: 32, nfats: 2, totSec: 1 << 20, fatSz: 8192, fat32: true, serial: 0x3232, label: "SWITCH SD"}
)

func (b bpb) sector() []byte {
	s := make([]byte, hal.BlockSize)
	copy(s[0:3], []byte{0xEB, 0x58, 0x90})
	copy(s[3:11], "MSWIN4.1")
	binary.LittleEndian.PutUint16(s[11:], hal.BlockSize)
	s[13] = b.spc
	binary.LittleEndian.PutUint16(s[14:], b.rsvd)
	s[16] = b.nfats
	binary.LittleEndian.PutUint16(s[17:], b.rootEnt)

	label := bytes.Repeat([]byte{' '}, 11)
	copy(label, b.label)

	if b.fat32 {
		binary.LittleEndian.PutUint32(s[32:], b.totSec)
		binary.LittleEndian.PutUint32(s[36:], b.fatSz)
		binary.LittleEndian.PutUint32(s[67:], b.serial)
		copy(s[71:82], label)
		copy(s[82:90], "FAT32   ")
	} else {
		if b.totSec < 0x10000 {
			binary.LittleEndian.PutUint16(s[19:], uint16(b.totSec))
		} else {
			binary.LittleEndian.PutUint32(s[32:], b.totSec)
		}
		binary.LittleEndian.PutUint16(s[22:], uint16(b.fatSz))
		binary.LittleEndian.PutUint32(s[39:], b.serial)
		copy(s[43:54], label)
		copy(s[54:62], "FAT     ")
	}

	binary.LittleEndian.PutUint16(s[510:], 0xAA55)
	return s
}

func exFATSector() []byte {
	s := make([]byte, hal.BlockSize)
	copy(s[0:3], []byte{0xEB, 0x76, 0x90})
	copy(s[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint64(s[72:], 1<<24)
	binary.LittleEndian.PutUint32(s[100:], 0xE0E0E0E0)
	s[108] = 9
	s[109] = 8
	binary.LittleEndian.PutUint16(s[510:], 0xAA55)
	return s
}

func mbrSector(entries ...mbrEntry) []byte {
	s := make([]byte, hal.BlockSize)
	for i, e := range entries {
		off := offsetMBRTable + i*sizePartEntry
		s[off+4] = e.typ
		binary.LittleEndian.PutUint32(s[off+8:], e.lbaStart)
		binary.LittleEndian.PutUint32(s[off+12:], e.sectors)
	}
	binary.LittleEndian.PutUint16(s[510:], 0xAA55)
	return s
}

// newDisk returns a negotiated image controller with the given sectors
// written at their LBAs.
func newDisk(t *testing.T, sectors map[uint32][]byte) *image.Controller {
	t.Helper()
	ctrl := image.New(image.NewMemory(diskSectors * hal.BlockSize))
	ctx := context.Background()
	if err := ctrl.Init(ctx, hal.BusWidth4, hal.TimingSDHS25); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	for lba, data := range sectors {
		n := uint32(len(data) / hal.BlockSize)
		if err := ctrl.WriteSectors(ctx, lba, n, data); err != nil {
			t.Fatalf("WriteSectors(%d) error = %v", lba, err)
		}
	}
	return ctrl
}

func TestParseBootSector(t *testing.T) {
	tests := []struct {
		name   string
		sector []byte
		status sectorStatus
		typ    Type
		label  string
	}{
		{"FAT12", bpbFAT12.sector(), sectorFAT, TypeFAT12, "FLOPPY"},
		{"FAT16", bpbFAT16.sector(), sectorFAT, TypeFAT16, "SMALL"},
		{"FAT32", bpbFAT32.sector(), sectorFAT, TypeFAT32, "SWITCH SD"},
		{"FAT32 with few clusters", bpbSmallFAT32.sector(), sectorFAT, TypeFAT32, "TINY"},
		{"exFAT", exFATSector(), sectorFAT, TypeExFAT, ""},
		{"MBR", mbrSector(mbrEntry{typ: 0x0C, lbaStart: 2048, sectors: 4096}), sectorBootable, TypeUnknown, ""},
		{"blank", make([]byte, hal.BlockSize), sectorInvalid, TypeUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bs bootSector
			if got := parseBootSector(tt.sector, &bs); got != tt.status {
				t.Fatalf("parseBootSector() = %d, want %d", got, tt.status)
			}
			if bs.typ != tt.typ {
				t.Errorf("type = %v, want %v", bs.typ, tt.typ)
			}
			if bs.label != tt.label {
				t.Errorf("label = %q, want %q", bs.label, tt.label)
			}
		})
	}
}

func TestParseBootSector_NoNameLabel(t *testing.T) {
	b := bpbFAT32
	b.label = ""

	var bs bootSector
	parseBootSector(b.sector(), &bs)
	if bs.label != "" {
		t.Errorf("label = %q, want empty for NO NAME", bs.label)
	}
}

func TestBinding_Mount(t *testing.T) {
	tests := []struct {
		name      string
		sectors   map[uint32][]byte
		want      pkg.FSResult
		typ       Type
		start     uint64
		partition string
	}{
		{
			name:    "superfloppy",
			sectors: map[uint32][]byte{0: bpbFAT32.sector()},
			want:    pkg.FROK, typ: TypeFAT32, start: 0,
		},
		{
			name: "MBR second partition",
			sectors: map[uint32][]byte{
				0:    mbrSector(mbrEntry{typ: 0x83, lbaStart: 64, sectors: 64}, mbrEntry{typ: 0x0C, lbaStart: 2048, sectors: 4096}),
				2048: bpbFAT16.sector(),
			},
			want: pkg.FROK, typ: TypeFAT16, start: 2048,
		},
		{
			name:    "MBR without FAT",
			sectors: map[uint32][]byte{0: mbrSector(mbrEntry{typ: 0x83, lbaStart: 64, sectors: 64})},
			want:    pkg.FRNoFilesystem,
		},
		{
			name:    "blank",
			sectors: nil,
			want:    pkg.FRNoFilesystem,
		},
		{
			name:    "exFAT",
			sectors: map[uint32][]byte{0: exFATSector()},
			want:    pkg.FROK, typ: TypeExFAT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			res := b.Mount(context.Background(), "sd:", newDisk(t, tt.sectors))
			if res != tt.want {
				t.Fatalf("Mount() = %v, want %v", res, tt.want)
			}

			v, ok := b.Volume("sd:")
			if tt.want != pkg.FROK {
				if ok {
					t.Error("failed mount registered a volume")
				}
				return
			}
			if !ok {
				t.Fatal("Volume(sd:) not found")
			}
			if v.Type != tt.typ || v.StartLBA != tt.start || v.Partition != tt.partition {
				t.Errorf("volume = %+v", v)
			}
			if v.Name != "sd:" {
				t.Errorf("Name = %q, want sd:", v.Name)
			}
		})
	}
}

func TestBinding_MountGPT(t *testing.T) {
	parts := []gpt.Partition{
		{Name: "hos_data", LBAStart: 64, LBAEnd: 1023, TypeGUID: gpt.TypeBasicData},
		{Name: "USER", LBAStart: 1024, LBAEnd: 8000, TypeGUID: gpt.TypeBasicData},
	}
	window := gpt.Marshal(gpt.NewHeader(diskSectors, gpt.GUID{1}), parts)

	disk := newDisk(t, map[uint32][]byte{
		0:    mbrSector(mbrEntry{typ: mbrTypeGPT, lbaStart: 1, sectors: diskSectors - 1}),
		1:    window,
		1024: bpbFAT32.sector(),
	})

	b := New()
	if res := b.Mount(context.Background(), "emmc:", disk); res != pkg.FROK {
		t.Fatalf("Mount() = %v", res)
	}

	v, _ := b.Volume("emmc:")
	if v.Partition != "USER" || v.StartLBA != 1024 || v.Type != TypeFAT32 {
		t.Errorf("volume = %+v, want FAT32 on USER at 1024", v)
	}
	if v.Serial != 0x3232 || v.Label != "SWITCH SD" {
		t.Errorf("serial/label = %x/%q", v.Serial, v.Label)
	}

	// The volume device is relative to the partition start
	sector := make([]byte, hal.BlockSize)
	if err := v.Device().ReadSectors(context.Background(), 0, 1, sector); err != nil {
		t.Fatalf("ReadSectors() error = %v", err)
	}
	if binary.LittleEndian.Uint16(sector[510:]) != 0xAA55 || sector[0] != 0xEB {
		t.Error("volume sector 0 is not the boot sector")
	}
}

func TestBinding_MountErrors(t *testing.T) {
	b := New()
	disk := newDisk(t, map[uint32][]byte{0: bpbFAT32.sector()})

	for _, volume := range []string{"", ":", "sd", "a/b:", "sd::"} {
		if res := b.Mount(context.Background(), volume, disk); res != pkg.FRInvalidDrive {
			t.Errorf("Mount(%q) = %v, want invalid drive", volume, res)
		}
	}

	disk.End()
	if res := b.Mount(context.Background(), "sd:", disk); res != pkg.FRNotReady {
		t.Errorf("Mount() on a powered-down disk = %v, want not ready", res)
	}

	disk.Init(context.Background(), hal.BusWidth4, hal.TimingSDHS25)
	disk.InjectFaults(image.DefaultRetryBudget + 1)
	if res := b.Mount(context.Background(), "sd:", disk); res != pkg.FRDiskErr {
		t.Errorf("Mount() with failing reads = %v, want disk error", res)
	}
}

func TestBinding_UnmountAndVolumes(t *testing.T) {
	b := New()
	ctx := context.Background()
	disk := newDisk(t, map[uint32][]byte{0: bpbFAT12.sector()})

	b.Mount(ctx, "sd:", disk)
	b.Mount(ctx, "emmc:", disk)

	got := b.Volumes()
	if len(got) != 2 || got[0] != "emmc:" || got[1] != "sd:" {
		t.Errorf("Volumes() = %v, want [emmc: sd:]", got)
	}

	b.Unmount("sd:")
	b.Unmount("sd:")
	b.Unmount("nand:")

	if _, ok := b.Volume("sd:"); ok {
		t.Error("sd: still mounted")
	}
	if _, ok := b.Volume("emmc:"); !ok {
		t.Error("emmc: should stay mounted")
	}
}

// =============================================================================
// Storage session integration
// =============================================================================

func TestSessionMount(t *testing.T) {
	ctrl := image.New(image.NewMemory(diskSectors*hal.BlockSize),
		image.WithMaxTiming(hal.TimingUHSSDR82),
		image.WithRemovable(true))
	ctx := context.Background()

	// Lay down a filesystem through a throwaway negotiation
	ctrl.Init(ctx, hal.BusWidth4, hal.TimingSDHS25)
	ctrl.WriteSectors(ctx, 0, 1, bpbFAT32.sector())
	ctrl.End()

	b := New()
	s := storage.NewSD(ctrl, b)

	if err := s.Mount(ctx); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if s.Mode() != storage.SDUHSSDR82 {
		t.Errorf("Mode() = %s, want UHS_SDR82", s.Tier().Name)
	}
	if _, ok := b.Volume(storage.VolumeSD); !ok {
		t.Error("session mount did not register sd:")
	}

	s.End()
	if len(b.Volumes()) != 0 {
		t.Errorf("Volumes() after End = %v", b.Volumes())
	}
}

func TestSessionMount_NoFilesystem(t *testing.T) {
	ctrl := image.New(image.NewMemory(diskSectors * hal.BlockSize))
	s := storage.NewEMMC(ctrl, New())

	err := s.Mount(context.Background())
	if !errors.Is(err, pkg.ErrNoFilesystem) || !errors.Is(err, pkg.ErrMount) {
		t.Fatalf("Mount() error = %v, want ErrMount and ErrNoFilesystem", err)
	}
	if !s.IsInitialized() {
		t.Error("filesystem failure should leave the bus negotiated")
	}
	if msg := storage.Diagnose(err); msg == "" {
		t.Error("Diagnose() returned no advice")
	}
}
