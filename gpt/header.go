package gpt

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// On-media layout constants.
const (
	// Signature is the header magic at offset 0 of LBA 1.
	Signature = "EFI PART"

	// HeaderLBA is the sector holding the primary header.
	HeaderLBA = 1

	// HeaderSize is the size of the header structure in bytes.
	HeaderSize = 92

	// EntrySize is the stride between partition entries in bytes.
	EntrySize = 128

	// MaxEntries is the number of entries the staging window holds.
	MaxEntries = 128

	// NameUnits is the number of UTF-16 code units in an entry name.
	NameUnits = 36

	// MaxNameLen is the longest name kept after conversion.
	MaxNameLen = NameUnits - 1

	// StagingSectors is the size of the window read from HeaderLBA: the
	// header sector followed by MaxEntries entries.
	StagingSectors = 1 + MaxEntries*EntrySize/hal.BlockSize

	// Revision1 is the UEFI 2.x header revision.
	Revision1 = 0x00010000
)

// Header is the GPT header.
type Header struct {
	Signature      [8]byte
	Revision       uint32
	HeaderSize     uint32
	HeaderCRC32    uint32
	MyLBA          uint64
	AlternateLBA   uint64
	FirstUsableLBA uint64
	LastUsableLBA  uint64
	DiskGUID       GUID
	EntriesLBA     uint64
	NumEntries     uint32
	EntrySize      uint32
	EntriesCRC32   uint32
}

// ParseHeader parses a GPT header from data.
// It validates the signature and the entry count; CRCs are not checked.
func ParseHeader(data []byte, out *Header) error {
	if len(data) < HeaderSize {
		return pkg.ErrBufferTooSmall
	}

	copy(out.Signature[:], data[0:8])
	if string(out.Signature[:]) != Signature {
		return pkg.ErrBadSignature
	}

	out.Revision = binary.LittleEndian.Uint32(data[8:12])
	out.HeaderSize = binary.LittleEndian.Uint32(data[12:16])
	out.HeaderCRC32 = binary.LittleEndian.Uint32(data[16:20])
	out.MyLBA = binary.LittleEndian.Uint64(data[24:32])
	out.AlternateLBA = binary.LittleEndian.Uint64(data[32:40])
	out.FirstUsableLBA = binary.LittleEndian.Uint64(data[40:48])
	out.LastUsableLBA = binary.LittleEndian.Uint64(data[48:56])
	copy(out.DiskGUID[:], data[56:72])
	out.EntriesLBA = binary.LittleEndian.Uint64(data[72:80])
	out.NumEntries = binary.LittleEndian.Uint32(data[80:84])
	out.EntrySize = binary.LittleEndian.Uint32(data[84:88])
	out.EntriesCRC32 = binary.LittleEndian.Uint32(data[88:92])

	if out.NumEntries > MaxEntries {
		return pkg.ErrTooManyEntries
	}

	return nil
}

// MarshalTo writes the header to buf and returns the number of bytes
// written. Returns 0 if buf is too small.
func (h *Header) MarshalTo(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}

	copy(buf[0:8], h.Signature[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Revision)
	binary.LittleEndian.PutUint32(buf[12:16], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.HeaderCRC32)
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	binary.LittleEndian.PutUint64(buf[24:32], h.MyLBA)
	binary.LittleEndian.PutUint64(buf[32:40], h.AlternateLBA)
	binary.LittleEndian.PutUint64(buf[40:48], h.FirstUsableLBA)
	binary.LittleEndian.PutUint64(buf[48:56], h.LastUsableLBA)
	copy(buf[56:72], h.DiskGUID[:])
	binary.LittleEndian.PutUint64(buf[72:80], h.EntriesLBA)
	binary.LittleEndian.PutUint32(buf[80:84], h.NumEntries)
	binary.LittleEndian.PutUint32(buf[84:88], h.EntrySize)
	binary.LittleEndian.PutUint32(buf[88:92], h.EntriesCRC32)

	return HeaderSize
}

// NewHeader returns a header for a disk of the given size in sectors with
// the standard layout: entries at LBA 2, usable space after the entry
// array and before the backup.
func NewHeader(sectors uint64, disk GUID) Header {
	h := Header{
		Revision:       Revision1,
		HeaderSize:     HeaderSize,
		MyLBA:          HeaderLBA,
		AlternateLBA:   sectors - 1,
		FirstUsableLBA: HeaderLBA + StagingSectors,
		LastUsableLBA:  sectors - StagingSectors - 1,
		DiskGUID:       disk,
		EntriesLBA:     HeaderLBA + 1,
		EntrySize:      EntrySize,
	}
	copy(h.Signature[:], Signature)
	return h
}

// Marshal renders the header and entries into a staging window of
// [StagingSectors] sectors, ready to be written at [HeaderLBA].
// NumEntries and both CRCs are filled in. Returns nil if parts holds more
// than [MaxEntries] partitions.
func Marshal(h Header, parts []Partition) []byte {
	if len(parts) > MaxEntries {
		return nil
	}

	buf := make([]byte, StagingSectors*hal.BlockSize)
	entries := buf[hal.BlockSize:]

	for i := range parts {
		parts[i].MarshalEntryTo(entries[i*EntrySize:])
	}

	h.NumEntries = uint32(len(parts))
	h.EntriesCRC32 = crc32.ChecksumIEEE(entries[:len(parts)*EntrySize])
	h.HeaderCRC32 = 0
	h.MarshalTo(buf)
	h.HeaderCRC32 = crc32.ChecksumIEEE(buf[:HeaderSize])
	h.MarshalTo(buf)

	return buf
}
