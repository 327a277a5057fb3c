package fatfs

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/diskfs/go-diskfs/filesystem/fat32"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Format limits, in sectors.
const (
	MinFormatSectors   = 8400  // Smallest volume that holds a FAT16 cluster count
	MinFAT32Sectors    = 67000 // Smallest volume formatted as FAT32
	fat16RootEntries   = 512
	mediaFixed         = 0xF8
	extBootSignature   = 0x29
	zeroChunkSectors   = 64
	offsetMedia        = 21
	offsetSecPerTrk    = 24
	offsetNumHeads     = 26
	offsetBkBootSec    = 50
	offsetDrvNum16     = 36
	offsetBootSig16    = 38
	offsetFilSysType16 = 54
)

// FormatOptions are the volume identity fields written by [Format].
type FormatOptions struct {
	Label  string // At most 11 characters, empty writes "NO NAME"
	Serial uint32
}

func (o *FormatOptions) label() string {
	if o.Label == "" {
		return "NO NAME"
	}
	return o.Label
}

type layout struct {
	spc     uint32
	rsvd    uint32
	rootEnt uint32
	fatSz   uint32
}

func (l *layout) rootDirSectors() uint32 {
	return (l.rootEnt*32 + hal.BlockSize - 1) / hal.BlockSize
}

func (l *layout) meta() uint32 {
	return l.rsvd + 2*l.fatSz + l.rootDirSectors()
}

func (l *layout) clusters(total uint32) uint32 {
	return (total - l.meta()) / l.spc
}

// planFAT16 picks the smallest cluster size that keeps the cluster count
// inside the FAT16 range.
func planFAT16(total uint32) (layout, error) {
	l := layout{rsvd: 1, rootEnt: fat16RootEntries}

	for l.spc = 1; l.spc <= 128; l.spc <<= 1 {
		data := total - l.rsvd - l.rootDirSectors()
		l.fatSz = ((data/l.spc+2)*2 + hal.BlockSize - 1) / hal.BlockSize

		if n := l.clusters(total); n >= maxClust12 && n < maxClust16 {
			return l, nil
		}
	}

	return layout{}, fmt.Errorf("%w: no FAT16 layout for %d sectors", pkg.ErrInvalidParameter, total)
}

// Format writes an empty FAT volume of the given size starting at sector 0
// of dev. Volumes under [MinFAT32Sectors] are FAT16, larger ones FAT32.
//
// FAT32 volumes are created by go-diskfs and then stamped with the
// requested serial. FAT16 volumes get their reserved region, both FATs and
// the root directory written; the data region is left as is.
func Format(ctx context.Context, dev hal.BlockDevice, sectors uint64, opts FormatOptions) (Type, error) {
	if sectors > 0xFFFFFFFF {
		return TypeUnknown, fmt.Errorf("%w: %d sectors", pkg.ErrOutOfBounds, sectors)
	}
	if len(opts.Label) > volumeLabelSize {
		return TypeUnknown, fmt.Errorf("%w: label %q", pkg.ErrInvalidParameter, opts.Label)
	}
	if sectors < MinFormatSectors {
		return TypeUnknown, fmt.Errorf("%w: %d sectors is below the %d sector minimum",
			pkg.ErrInvalidParameter, sectors, MinFormatSectors)
	}

	total := uint32(sectors)
	if total >= MinFAT32Sectors {
		if err := formatFAT32(ctx, dev, total, opts); err != nil {
			return TypeUnknown, err
		}
		return TypeFAT32, nil
	}

	if err := formatFAT16(ctx, dev, total, opts); err != nil {
		return TypeUnknown, err
	}
	return TypeFAT16, nil
}

func formatFAT32(ctx context.Context, dev hal.BlockDevice, total uint32, opts FormatOptions) error {
	file := newBlockFile(ctx, dev, uint64(total))
	if _, err := fat32.Create(file, int64(total)*hal.BlockSize, 0, hal.BlockSize, opts.label()); err != nil {
		return fmt.Errorf("%w: create FAT32: %w", pkg.ErrFilesystem, err)
	}

	// go-diskfs derives the volume ID from the clock; replace it in the
	// boot sector and its backup.
	boot := make([]byte, hal.BlockSize)
	if err := dev.ReadSectors(ctx, 0, 1, boot); err != nil {
		return fmt.Errorf("read boot sector: %w", err)
	}
	backup := uint32(binary.LittleEndian.Uint16(boot[offsetBkBootSec:]))
	binary.LittleEndian.PutUint32(boot[offsetVolID32:], opts.Serial)

	sectors := []uint32{0}
	if backup != 0 && backup < total {
		sectors = append(sectors, backup)
	}
	for _, sector := range sectors {
		if err := dev.WriteSectors(ctx, sector, 1, boot); err != nil {
			return fmt.Errorf("write boot sector %d: %w", sector, err)
		}
	}

	var bs bootSector
	parseBootSector(boot, &bs)
	pkg.LogInfo(pkg.ComponentFS, "volume formatted",
		"type", TypeFAT32.String(),
		"sectors", total,
		"clusterSectors", bs.sectorsPerCluster,
		"clusters", bs.clusters,
		"label", opts.Label)

	return nil
}

func formatFAT16(ctx context.Context, dev hal.BlockDevice, total uint32, opts FormatOptions) error {
	l, err := planFAT16(total)
	if err != nil {
		return err
	}

	if err := zeroSectors(ctx, dev, 0, l.meta()); err != nil {
		return err
	}

	boot := make([]byte, hal.BlockSize)
	l.marshalBootSector(boot, total, opts)
	if err := dev.WriteSectors(ctx, 0, 1, boot); err != nil {
		return fmt.Errorf("write boot sector: %w", err)
	}

	fat := make([]byte, hal.BlockSize)
	binary.LittleEndian.PutUint16(fat[0:], 0xFF00|mediaFixed)
	binary.LittleEndian.PutUint16(fat[2:], 0xFFFF)
	for i := uint32(0); i < 2; i++ {
		sector := l.rsvd + i*l.fatSz
		if err := dev.WriteSectors(ctx, sector, 1, fat); err != nil {
			return fmt.Errorf("write FAT %d: %w", i, err)
		}
	}

	pkg.LogInfo(pkg.ComponentFS, "volume formatted",
		"type", TypeFAT16.String(),
		"sectors", total,
		"clusterSectors", l.spc,
		"clusters", l.clusters(total),
		"label", opts.Label)

	return nil
}

func (l *layout) marshalBootSector(buf []byte, total uint32, opts FormatOptions) {
	buf[offsetJmpBoot] = 0xEB
	buf[offsetJmpBoot+1] = 0x3C
	buf[offsetJmpBoot+2] = 0x90
	copy(buf[offsetOEMName:offsetOEMName+8], "SOFTMMC ")
	binary.LittleEndian.PutUint16(buf[offsetBytsPerSec:], hal.BlockSize)
	buf[offsetSecPerClus] = uint8(l.spc)
	binary.LittleEndian.PutUint16(buf[offsetRsvdSecCnt:], uint16(l.rsvd))
	buf[offsetNumFATs] = 2
	binary.LittleEndian.PutUint16(buf[offsetRootEntCnt:], uint16(l.rootEnt))
	buf[offsetMedia] = mediaFixed
	binary.LittleEndian.PutUint16(buf[offsetSecPerTrk:], 63)
	binary.LittleEndian.PutUint16(buf[offsetNumHeads:], 255)

	if total < 0x10000 {
		binary.LittleEndian.PutUint16(buf[offsetTotSec16:], uint16(total))
	} else {
		binary.LittleEndian.PutUint32(buf[offsetTotSec32:], total)
	}

	labelField := []byte("           ")
	copy(labelField, opts.label())

	binary.LittleEndian.PutUint16(buf[offsetFATSz16:], uint16(l.fatSz))
	buf[offsetDrvNum16] = 0x80
	buf[offsetBootSig16] = extBootSignature
	binary.LittleEndian.PutUint32(buf[offsetVolID16:], opts.Serial)
	copy(buf[offsetVolLab16:offsetVolLab16+volumeLabelSize], labelField)
	copy(buf[offsetFilSysType16:offsetFilSysType16+8], "FAT16   ")

	binary.LittleEndian.PutUint16(buf[offsetSignature:], bootSignature)
}

func zeroSectors(ctx context.Context, dev hal.BlockDevice, start, count uint32) error {
	zero := make([]byte, zeroChunkSectors*hal.BlockSize)
	for count > 0 {
		n := min(count, zeroChunkSectors)
		if err := dev.WriteSectors(ctx, start, n, zero); err != nil {
			return fmt.Errorf("clear sector %d: %w", start, err)
		}
		start += n
		count -= n
	}
	return nil
}
