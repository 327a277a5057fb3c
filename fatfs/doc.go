// Package fatfs binds FAT volumes to storage sessions.
//
// A [Binding] implements the storage session's filesystem contract: it
// locates a FAT12/16/32 or exFAT volume on a block device and registers it
// under a logical volume designator such as "sd:". Results are reported as
// FatFs-style [pkg.FSResult] codes, so a card without a FAT partition
// yields [pkg.FRNoFilesystem] while a read failure yields [pkg.FRDiskErr].
//
// File access on FAT32 volumes goes through go-diskfs: [Binding.Files]
// returns a [Files] handle with open, read, write, list and mkdir verbs. An
// adapter presents the volume's [hal.BlockDevice] as the byte-addressed
// file go-diskfs expects. [Format] creates FAT32 volumes with go-diskfs and
// writes small FAT16 volumes itself.
//
// [pkg.FSResult]: github.com/ardnew/softmmc/pkg.FSResult
// [pkg.FRNoFilesystem]: github.com/ardnew/softmmc/pkg.FRNoFilesystem
// [pkg.FRDiskErr]: github.com/ardnew/softmmc/pkg.FRDiskErr
package fatfs
