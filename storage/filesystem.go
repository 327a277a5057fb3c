package storage

import (
	"context"
	"fmt"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Filesystem is the filesystem binding a session mounts on top of its block
// interface.
type Filesystem interface {
	// Mount attaches the filesystem found on dev to the logical volume.
	Mount(ctx context.Context, volume string, dev hal.BlockDevice) pkg.FSResult

	// Unmount detaches the logical volume. It is a no-op for volumes that
	// are not mounted.
	Unmount(volume string)
}

// MountError reports a filesystem-level mount failure on a negotiated bus.
// It matches both [pkg.ErrMount] and the sentinel for its result code.
type MountError struct {
	Volume string
	Result pkg.FSResult
}

// Error implements the error interface.
func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s: %s (%d)", e.Volume, e.Result, int(e.Result))
}

// Unwrap returns the errors matched by [errors.Is].
func (e *MountError) Unwrap() []error {
	if err := e.Result.Err(); err != nil {
		return []error{pkg.ErrMount, err}
	}
	return []error{pkg.ErrMount}
}
