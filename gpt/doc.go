// Package gpt reads GUID Partition Tables through a sector-addressed block
// device.
//
// [Parse] reads a fixed 33-sector window starting at LBA 1 (the header and
// up to 128 entries of 128 bytes) and returns a [Table] of named
// partitions. Lookup by name is a linear scan; the first match wins.
//
// Partition names are reduced to the low byte of each UTF-16 code unit, so
// only ASCII names survive intact.
//
// [Partition.Read] and [Partition.Write] reject requests whose start sector
// lies past the partition end without issuing any I/O. The length of the
// request is not checked.
package gpt
