package gpt

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Partition is one GPT entry that passed the first-usable-LBA filter.
type Partition struct {
	Index      uint32 // Position in the on-disk entry array
	Name       string
	LBAStart   uint64
	LBAEnd     uint64 // Inclusive
	Attrs      uint64
	TypeGUID   GUID
	UniqueGUID GUID
}

// parseEntry fills p from a 128-byte entry. The name keeps the low byte of
// each UTF-16 code unit, at most MaxNameLen of them, and stops at the first
// NUL. Non-ASCII names are mangled.
func parseEntry(data []byte, p *Partition) {
	copy(p.TypeGUID[:], data[0:16])
	copy(p.UniqueGUID[:], data[16:32])
	p.LBAStart = binary.LittleEndian.Uint64(data[32:40])
	p.LBAEnd = binary.LittleEndian.Uint64(data[40:48])
	p.Attrs = binary.LittleEndian.Uint64(data[48:56])

	var name [MaxNameLen]byte
	n := 0
	for ; n < MaxNameLen; n++ {
		b := data[56+n*2]
		if b == 0 {
			break
		}
		name[n] = b
	}
	p.Name = string(name[:n])
}

// MarshalEntryTo writes p as a 128-byte entry and returns the number of
// bytes written. Returns 0 if buf is too small. Name bytes are widened to
// UTF-16LE code units.
func (p *Partition) MarshalEntryTo(buf []byte) int {
	if len(buf) < EntrySize {
		return 0
	}

	copy(buf[0:16], p.TypeGUID[:])
	copy(buf[16:32], p.UniqueGUID[:])
	binary.LittleEndian.PutUint64(buf[32:40], p.LBAStart)
	binary.LittleEndian.PutUint64(buf[40:48], p.LBAEnd)
	binary.LittleEndian.PutUint64(buf[48:56], p.Attrs)

	clear(buf[56:EntrySize])
	for i := 0; i < len(p.Name) && i < NameUnits; i++ {
		binary.LittleEndian.PutUint16(buf[56+i*2:], uint16(p.Name[i]))
	}

	return EntrySize
}

// Sectors returns the number of sectors in the partition.
func (p *Partition) Sectors() uint64 {
	if p.LBAEnd < p.LBAStart {
		return 0
	}
	return p.LBAEnd - p.LBAStart + 1
}

// Size returns the partition size in bytes.
func (p *Partition) Size() uint64 {
	return p.Sectors() * hal.BlockSize
}

// String returns a one-line description of the partition.
func (p *Partition) String() string {
	return fmt.Sprintf("%d %q [%d..%d]", p.Index, p.Name, p.LBAStart, p.LBAEnd)
}

// sector returns the absolute sector for a partition-relative offset.
//
// Only the start sector is checked against LBAEnd. A request for more
// sectors than remain in the partition is passed through to dev; callers
// must not rely on this layer to clip the range.
func (p *Partition) sector(offset uint32) (uint32, error) {
	if p.LBAEnd < p.LBAStart || uint64(offset) > p.LBAEnd-p.LBAStart {
		return 0, fmt.Errorf("%w: partition %q offset %d", pkg.ErrOutOfBounds, p.Name, offset)
	}
	abs := p.LBAStart + uint64(offset)
	if abs > math.MaxUint32 {
		return 0, fmt.Errorf("%w: partition %q offset %d", pkg.ErrOutOfBounds, p.Name, offset)
	}
	return uint32(abs), nil
}

// Read reads count sectors starting at the partition-relative offset.
func (p *Partition) Read(ctx context.Context, dev hal.BlockDevice, offset, count uint32, buf []byte) error {
	sector, err := p.sector(offset)
	if err != nil {
		return err
	}
	return dev.ReadSectors(ctx, sector, count, buf)
}

// Write writes count sectors starting at the partition-relative offset.
func (p *Partition) Write(ctx context.Context, dev hal.BlockDevice, offset, count uint32, buf []byte) error {
	sector, err := p.sector(offset)
	if err != nil {
		return err
	}
	return dev.WriteSectors(ctx, sector, count, buf)
}

// Device returns a block device addressing the partition with relative
// sectors, with the bounds behaviour of [Partition.Read].
func (p *Partition) Device(dev hal.BlockDevice) hal.BlockDevice {
	return &partitionDevice{part: *p, dev: dev}
}

type partitionDevice struct {
	part Partition
	dev  hal.BlockDevice
}

func (d *partitionDevice) ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	return d.part.Read(ctx, d.dev, sector, count, buf)
}

func (d *partitionDevice) WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	return d.part.Write(ctx, d.dev, sector, count, buf)
}
