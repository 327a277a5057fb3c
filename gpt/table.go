package gpt

import (
	"context"
	"fmt"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Table is a parsed partition list in on-disk entry order.
type Table struct {
	header Header
	valid  bool
	parts  []Partition
}

// Parse reads the GPT through dev and returns its partition list.
//
// A missing or malformed GPT (bad signature, more than [MaxEntries]
// entries) is not an error: Parse returns an empty table. Only a failed
// read is reported. Entries starting before the header's first usable LBA
// are skipped but still consume an index.
func Parse(ctx context.Context, dev hal.BlockDevice) (*Table, error) {
	buf := make([]byte, StagingSectors*hal.BlockSize)
	if err := dev.ReadSectors(ctx, HeaderLBA, StagingSectors, buf); err != nil {
		return nil, fmt.Errorf("gpt: read LBA %d: %w", HeaderLBA, err)
	}

	table := &Table{}
	if err := ParseHeader(buf[:hal.BlockSize], &table.header); err != nil {
		pkg.LogDebug(pkg.ComponentGPT, "no GPT", "reason", err)
		return table, nil
	}
	table.valid = true

	entries := buf[hal.BlockSize:]
	for i := uint32(0); i < table.header.NumEntries; i++ {
		var p Partition
		parseEntry(entries[i*EntrySize:(i+1)*EntrySize], &p)

		if p.LBAStart < table.header.FirstUsableLBA {
			continue
		}

		p.Index = i
		table.parts = append(table.parts, p)
	}

	pkg.LogDebug(pkg.ComponentGPT, "partition table parsed",
		"entries", table.header.NumEntries,
		"partitions", len(table.parts),
		"disk", table.header.DiskGUID.String())

	return table, nil
}

// Header returns the parsed header and whether a valid GPT was found.
func (t *Table) Header() (Header, bool) {
	return t.header, t.valid
}

// Partitions returns the partitions in entry order. The slice is owned by
// the table and invalidated by Release.
func (t *Table) Partitions() []Partition {
	return t.parts
}

// Len returns the number of partitions.
func (t *Table) Len() int {
	return len(t.parts)
}

// Find returns the first partition named name, or nil.
func (t *Table) Find(name string) *Partition {
	for i := range t.parts {
		if t.parts[i].Name == name {
			return &t.parts[i]
		}
	}
	return nil
}

// FindType returns the first partition with the given type GUID, or nil.
func (t *Table) FindType(typ GUID) *Partition {
	for i := range t.parts {
		if t.parts[i].TypeGUID == typ {
			return &t.parts[i]
		}
	}
	return nil
}

// Release drops every partition.
func (t *Table) Release() {
	t.parts = nil
}
