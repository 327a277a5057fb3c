package pkg

import (
	"errors"
	"strconv"
)

// Negotiation and lifecycle errors.
var (
	// ErrInitFailed indicates bus negotiation failed at every tier.
	ErrInitFailed = errors.New("storage initialization failed")

	// ErrNotInserted indicates the card detect line reports no card.
	ErrNotInserted = errors.New("card not inserted")

	// ErrNotInitialized indicates the session has no negotiated bus.
	ErrNotInitialized = errors.New("storage not initialized")

	// ErrNoCard indicates the controller has no media behind it.
	ErrNoCard = errors.New("no media")
)

// Block I/O errors.
var (
	// ErrIO indicates a read or write failed after the controller's own retries.
	ErrIO = errors.New("storage I/O error")

	// ErrOutOfBounds indicates a sector request outside the addressed region.
	ErrOutOfBounds = errors.New("sector out of bounds")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrReadOnly indicates a write to read-only media.
	ErrReadOnly = errors.New("media is read-only")
)

// Partition table errors.
var (
	// ErrBadSignature indicates a partition table header with the wrong magic.
	ErrBadSignature = errors.New("bad partition table signature")

	// ErrTooManyEntries indicates a partition table declaring more entries
	// than the staging window holds.
	ErrTooManyEntries = errors.New("too many partition entries")
)

// Filesystem errors.
var (
	// ErrMount indicates the filesystem binding rejected the volume.
	ErrMount = errors.New("mount failed")

	// ErrNoFilesystem indicates there is no valid FAT volume.
	ErrNoFilesystem = errors.New("no filesystem")

	// ErrDiskIO indicates a hard error in the low level disk I/O layer.
	ErrDiskIO = errors.New("disk I/O error")

	// ErrNotReady indicates the physical drive cannot work.
	ErrNotReady = errors.New("drive not ready")

	// ErrInvalidDrive indicates the volume designator is not valid.
	ErrInvalidDrive = errors.New("invalid drive")

	// ErrFilesystem indicates any other filesystem failure.
	ErrFilesystem = errors.New("filesystem error")
)

// General errors.
var (
	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// FSResult is a filesystem binding result code. Values follow the FatFs
// FRESULT numbering so codes reported to users match the FAT library.
type FSResult int

// Filesystem result codes.
const (
	FROK             FSResult = iota // Succeeded
	FRDiskErr                        // A hard error occurred in the low level disk I/O layer
	FRIntErr                         // Assertion failed
	FRNotReady                       // The physical drive cannot work
	FRNoFile                         // Could not find the file
	FRNoPath                         // Could not find the path
	FRInvalidName                    // The path name format is invalid
	FRDenied                         // Access denied or directory full
	FRExist                          // Access denied, object exists
	FRInvalidObject                  // The file/directory object is invalid
	FRWriteProtected                 // The physical drive is write protected
	FRInvalidDrive                   // The logical drive number is invalid
	FRNotEnabled                     // The volume has no work area
	FRNoFilesystem                   // There is no valid FAT volume
)

// String returns a string representation of the result code.
func (r FSResult) String() string {
	switch r {
	case FROK:
		return "ok"
	case FRDiskErr:
		return "disk error"
	case FRIntErr:
		return "internal error"
	case FRNotReady:
		return "not ready"
	case FRNoFile:
		return "no file"
	case FRNoPath:
		return "no path"
	case FRInvalidName:
		return "invalid name"
	case FRDenied:
		return "denied"
	case FRExist:
		return "exists"
	case FRInvalidObject:
		return "invalid object"
	case FRWriteProtected:
		return "write protected"
	case FRInvalidDrive:
		return "invalid drive"
	case FRNotEnabled:
		return "not enabled"
	case FRNoFilesystem:
		return "no filesystem"
	default:
		return "unknown (" + strconv.Itoa(int(r)) + ")"
	}
}

// Err returns the corresponding sentinel error for the result code.
func (r FSResult) Err() error {
	switch r {
	case FROK:
		return nil
	case FRDiskErr:
		return ErrDiskIO
	case FRNotReady:
		return ErrNotReady
	case FRInvalidDrive:
		return ErrInvalidDrive
	case FRNoFilesystem:
		return ErrNoFilesystem
	default:
		return ErrFilesystem
	}
}
