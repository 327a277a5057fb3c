package fatfs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/ardnew/softmmc/gpt"
	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
	"github.com/ardnew/softmmc/storage"
)

// Volume is a mounted FAT volume.
type Volume struct {
	Name              string // Logical volume designator, e.g. "sd:"
	Type              Type
	StartLBA          uint64 // Absolute sector of the boot sector
	Sectors           uint64
	BytesPerSector    uint32
	SectorsPerCluster uint32
	Clusters          uint32 // Zero for exFAT
	Serial            uint32
	Label             string
	Partition         string // GPT partition name, empty for MBR or unpartitioned media

	dev hal.BlockDevice
}

// Size returns the volume size in bytes.
func (v *Volume) Size() uint64 {
	return v.Sectors * uint64(v.BytesPerSector)
}

// Device returns the block device addressing the volume with sectors
// relative to its boot sector.
func (v *Volume) Device() hal.BlockDevice {
	return v.dev
}

// Binding mounts FAT volumes discovered on block devices under logical
// volume designators. It implements [storage.Filesystem] and is safe for
// concurrent use.
type Binding struct {
	volumes map[string]*Volume
	mutex   sync.RWMutex
}

var _ storage.Filesystem = (*Binding)(nil)

// New creates a binding with no mounted volumes.
func New() *Binding {
	return &Binding{
		volumes: make(map[string]*Volume),
	}
}

// Mount finds the first FAT volume on dev and attaches it to volume.
//
// Discovery follows the FatFs order: a boot sector at LBA 0, otherwise a
// protective MBR leads to the GPT partitions and a DOS MBR to its four
// primary partitions, first FAT volume wins. A volume that is already
// mounted is replaced.
func (b *Binding) Mount(ctx context.Context, volume string, dev hal.BlockDevice) pkg.FSResult {
	if !validVolume(volume) {
		return pkg.FRInvalidDrive
	}

	v, res := findVolume(ctx, dev)
	if res != pkg.FROK {
		pkg.LogDebug(pkg.ComponentFS, "no volume found",
			"volume", volume,
			"result", res.String())
		return res
	}
	v.Name = volume

	b.mutex.Lock()
	b.volumes[volume] = v
	b.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentFS, "volume mounted",
		"volume", volume,
		"type", v.Type.String(),
		"start", v.StartLBA,
		"sectors", v.Sectors,
		"label", v.Label)

	return pkg.FROK
}

// Unmount detaches volume. It is a no-op for volumes that are not mounted.
func (b *Binding) Unmount(volume string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.volumes[volume]; ok {
		delete(b.volumes, volume)
		pkg.LogDebug(pkg.ComponentFS, "volume unmounted", "volume", volume)
	}
}

// Volume returns a copy of the mounted volume.
func (b *Binding) Volume(volume string) (Volume, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	v, ok := b.volumes[volume]
	if !ok {
		return Volume{}, false
	}
	return *v, true
}

// Volumes returns the mounted volume designators in sorted order.
func (b *Binding) Volumes() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	names := make([]string, 0, len(b.volumes))
	for name := range b.volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validVolume(volume string) bool {
	return len(volume) > 1 && strings.HasSuffix(volume, ":") &&
		!strings.ContainsAny(volume[:len(volume)-1], ":/\\")
}

// findVolume locates the first FAT volume on dev.
func findVolume(ctx context.Context, dev hal.BlockDevice) (*Volume, pkg.FSResult) {
	sector := make([]byte, hal.BlockSize)
	if err := dev.ReadSectors(ctx, 0, 1, sector); err != nil {
		return nil, diskResult(err)
	}

	var bs bootSector
	switch parseBootSector(sector, &bs) {
	case sectorFAT:
		return newVolume(&bs, 0, "", dev), pkg.FROK
	case sectorInvalid:
		return nil, pkg.FRNoFilesystem
	}

	entries := parseMBR(sector)
	if entries[0].typ == mbrTypeGPT {
		return findGPTVolume(ctx, dev)
	}

	for _, e := range entries {
		if e.lbaStart == 0 || e.sectors == 0 || e.typ == 0 {
			continue
		}
		part := gpt.Partition{
			LBAStart: uint64(e.lbaStart),
			LBAEnd:   uint64(e.lbaStart) + uint64(e.sectors) - 1,
		}
		v, res := checkPartition(ctx, dev, &part)
		if res != pkg.FRNoFilesystem {
			return v, res
		}
	}

	return nil, pkg.FRNoFilesystem
}

func findGPTVolume(ctx context.Context, dev hal.BlockDevice) (*Volume, pkg.FSResult) {
	table, err := gpt.Parse(ctx, dev)
	if err != nil {
		return nil, diskResult(err)
	}
	defer table.Release()

	for _, p := range table.Partitions() {
		v, res := checkPartition(ctx, dev, &p)
		if res != pkg.FRNoFilesystem {
			return v, res
		}
	}

	return nil, pkg.FRNoFilesystem
}

// checkPartition reads the first sector of part and returns a volume if it
// holds a FAT boot sector.
func checkPartition(ctx context.Context, dev hal.BlockDevice, part *gpt.Partition) (*Volume, pkg.FSResult) {
	pdev := part.Device(dev)

	sector := make([]byte, hal.BlockSize)
	if err := pdev.ReadSectors(ctx, 0, 1, sector); err != nil {
		return nil, diskResult(err)
	}

	var bs bootSector
	if parseBootSector(sector, &bs) != sectorFAT {
		return nil, pkg.FRNoFilesystem
	}

	return newVolume(&bs, part.LBAStart, part.Name, pdev), pkg.FROK
}

func newVolume(bs *bootSector, start uint64, partition string, dev hal.BlockDevice) *Volume {
	return &Volume{
		Type:              bs.typ,
		StartLBA:          start,
		Sectors:           bs.totalSectors,
		BytesPerSector:    bs.bytesPerSector,
		SectorsPerCluster: bs.sectorsPerCluster,
		Clusters:          bs.clusters,
		Serial:            bs.serial,
		Label:             bs.label,
		Partition:         partition,
		dev:               dev,
	}
}

func diskResult(err error) pkg.FSResult {
	switch {
	case errors.Is(err, pkg.ErrNotInitialized), errors.Is(err, pkg.ErrNoCard):
		return pkg.FRNotReady
	default:
		return pkg.FRDiskErr
	}
}
