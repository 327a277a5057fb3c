package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/softmmc/pkg"
)

// Diagnose returns user-facing advice for an error returned by a session.
// It distinguishes a missing card, a card that does not negotiate, a volume
// without a usable filesystem, and failing I/O. It returns "" for nil.
func Diagnose(err error) string {
	if err == nil {
		return ""
	}

	var mountErr *MountError

	switch {
	case errors.Is(err, pkg.ErrNotInserted):
		return "Card is not inserted.\nInsert a card and retry."
	case errors.Is(err, pkg.ErrInitFailed):
		return "Failed to initialize storage.\nMake sure that the card is inserted\nor that the reader is properly seated!"
	case errors.As(err, &mountErr) && errors.Is(err, pkg.ErrNoFilesystem):
		return fmt.Sprintf("Failed to mount %s (no filesystem).\nMake sure that a FAT partition exists.", mountErr.Volume)
	case errors.As(err, &mountErr):
		return fmt.Sprintf("Failed to mount %s (FatFS Error %d: %s).", mountErr.Volume, int(mountErr.Result), mountErr.Result)
	case errors.Is(err, pkg.ErrIO):
		return "Storage I/O failed.\nThe card may be failing; reinitialize and retry."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Storage operation cancelled."
	default:
		return err.Error()
	}
}
