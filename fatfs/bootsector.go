package fatfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ardnew/softmmc/hal"
)

// Type is the FAT variant of a volume.
type Type uint8

// FAT variants.
const (
	TypeUnknown Type = iota
	TypeFAT12
	TypeFAT16
	TypeFAT32
	TypeExFAT
)

// String returns a human-readable FAT variant.
func (t Type) String() string {
	switch t {
	case TypeFAT12:
		return "FAT12"
	case TypeFAT16:
		return "FAT16"
	case TypeFAT32:
		return "FAT32"
	case TypeExFAT:
		return "exFAT"
	default:
		return fmt.Sprintf("Unknown Type (%d)", uint8(t))
	}
}

// Boot sector and MBR offsets.
const (
	offsetJmpBoot     = 0
	offsetOEMName     = 3
	offsetBytsPerSec  = 11
	offsetSecPerClus  = 13
	offsetRsvdSecCnt  = 14
	offsetNumFATs     = 16
	offsetRootEntCnt  = 17
	offsetTotSec16    = 19
	offsetFATSz16     = 22
	offsetTotSec32    = 32
	offsetFATSz32     = 36
	offsetVolID16     = 39
	offsetVolLab16    = 43
	offsetVolID32     = 67
	offsetVolLab32    = 71
	offsetExVolLength = 72
	offsetExVolSerial = 100
	offsetExBPSShift  = 108
	offsetExSPCShift  = 109
	offsetSignature   = 510
	offsetMBRTable    = 446

	sizePartEntry   = 16
	mbrPartitions   = 4
	mbrTypeGPT      = 0xEE
	bootSignature   = 0xAA55
	maxClust12      = 4085
	maxClust16      = 65525
	volumeLabelSize = 11
)

var exFATName = []byte("EXFAT   ")

// sectorStatus classifies a sector examined during volume discovery.
type sectorStatus uint8

const (
	sectorFAT      sectorStatus = iota // FAT or exFAT boot sector
	sectorBootable                     // Valid 0xAA55 signature, not FAT
	sectorInvalid                      // Neither
)

// bootSector holds the fields of a FAT or exFAT boot sector the binding
// reports.
type bootSector struct {
	typ               Type
	bytesPerSector    uint32
	sectorsPerCluster uint32
	totalSectors      uint64
	clusters          uint32
	serial            uint32
	label             string
}

// parseBootSector classifies sector and, for FAT volumes, fills out.
func parseBootSector(sector []byte, out *bootSector) sectorStatus {
	if len(sector) < hal.BlockSize {
		return sectorInvalid
	}

	signed := binary.LittleEndian.Uint16(sector[offsetSignature:]) == bootSignature

	if signed && bytes.Equal(sector[offsetOEMName:offsetOEMName+len(exFATName)], exFATName) {
		return parseExFAT(sector, out)
	}

	switch sector[offsetJmpBoot] {
	case 0xEB, 0xE9, 0xE8:
	default:
		if signed {
			return sectorBootable
		}
		return sectorInvalid
	}

	bps := uint32(binary.LittleEndian.Uint16(sector[offsetBytsPerSec:]))
	spc := uint32(sector[offsetSecPerClus])
	rsvd := uint32(binary.LittleEndian.Uint16(sector[offsetRsvdSecCnt:]))
	nfats := uint32(sector[offsetNumFATs])
	rootEnt := uint32(binary.LittleEndian.Uint16(sector[offsetRootEntCnt:]))

	if bps < hal.BlockSize || bps > 4096 || bps&(bps-1) != 0 ||
		spc == 0 || spc&(spc-1) != 0 || rsvd == 0 || (nfats != 1 && nfats != 2) {
		if signed {
			return sectorBootable
		}
		return sectorInvalid
	}

	fatSz := uint32(binary.LittleEndian.Uint16(sector[offsetFATSz16:]))
	fat32BPB := fatSz == 0
	if fat32BPB {
		fatSz = binary.LittleEndian.Uint32(sector[offsetFATSz32:])
	}
	totSec := uint32(binary.LittleEndian.Uint16(sector[offsetTotSec16:]))
	if totSec == 0 {
		totSec = binary.LittleEndian.Uint32(sector[offsetTotSec32:])
	}

	rootDirSectors := (rootEnt*32 + bps - 1) / bps
	meta := rsvd + nfats*fatSz + rootDirSectors
	if fatSz == 0 || totSec <= meta {
		return sectorInvalid
	}

	out.bytesPerSector = bps
	out.sectorsPerCluster = spc
	out.totalSectors = uint64(totSec)
	out.clusters = (totSec - meta) / spc

	// A FAT32 BPB is FAT32 whatever its cluster count; go-diskfs creates
	// small FAT32 volumes.
	switch {
	case fat32BPB:
		out.typ = TypeFAT32
	case out.clusters < maxClust12:
		out.typ = TypeFAT12
	case out.clusters < maxClust16:
		out.typ = TypeFAT16
	default:
		out.typ = TypeFAT32
	}

	if out.typ == TypeFAT32 {
		out.serial = binary.LittleEndian.Uint32(sector[offsetVolID32:])
		out.label = trimLabel(sector[offsetVolLab32 : offsetVolLab32+volumeLabelSize])
	} else {
		out.serial = binary.LittleEndian.Uint32(sector[offsetVolID16:])
		out.label = trimLabel(sector[offsetVolLab16 : offsetVolLab16+volumeLabelSize])
	}

	return sectorFAT
}

func parseExFAT(sector []byte, out *bootSector) sectorStatus {
	bpsShift := sector[offsetExBPSShift]
	spcShift := sector[offsetExSPCShift]
	if bpsShift < 9 || bpsShift > 12 || spcShift > 25-bpsShift {
		return sectorInvalid
	}

	out.typ = TypeExFAT
	out.bytesPerSector = 1 << bpsShift
	out.sectorsPerCluster = 1 << spcShift
	out.totalSectors = binary.LittleEndian.Uint64(sector[offsetExVolLength:])
	out.serial = binary.LittleEndian.Uint32(sector[offsetExVolSerial:])

	return sectorFAT
}

func trimLabel(b []byte) string {
	label := strings.TrimRight(string(b), " \x00")
	if label == "NO NAME" {
		return ""
	}
	return label
}

// mbrEntry is one primary partition of a DOS partition table.
type mbrEntry struct {
	typ      uint8
	lbaStart uint32
	sectors  uint32
}

func parseMBR(sector []byte) [mbrPartitions]mbrEntry {
	var entries [mbrPartitions]mbrEntry
	for i := range entries {
		e := sector[offsetMBRTable+i*sizePartEntry:]
		entries[i] = mbrEntry{
			typ:      e[4],
			lbaStart: binary.LittleEndian.Uint32(e[8:12]),
			sectors:  binary.LittleEndian.Uint32(e[12:16]),
		}
	}
	return entries
}
