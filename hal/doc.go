// Package hal defines the Hardware Abstraction Layer interface for SD and
// eMMC host controllers.
//
// The HAL provides a platform-agnostic interface between the storage session
// manager and the SDMMC host controller hardware. Platform vendors implement
// this interface to drive the session on their specific controller.
//
// # Design Principles
//
// The HAL is designed to be:
//
//   - Minimal: Only expose bus negotiation, sector I/O and power down
//   - Generic: No register layouts, clock dividers or tuning details
//   - Composable: Optional capabilities are separate interfaces
//
// The session implements the mode ladder, error accounting and the mount
// lifecycle, leaving the HAL to bring the media up at one requested tier.
//
// # Interface Overview
//
// The [Controller] interface is required. Controllers may additionally
// implement:
//
//   - [CardDetector] for a card detect line (removable SD slots)
//   - [RetryReporter] to surface internal transaction retries
//   - [PartitionSwitcher] to select eMMC hardware partitions
//
// # Example
//
//	type MyController struct {
//	    // Platform-specific fields
//	}
//
//	func (c *MyController) Init(ctx context.Context, w hal.BusWidth, t hal.Timing) error {
//	    // Power the rail, run the card init sequence at w and t
//	    return nil
//	}
//
//	// ... implement ReadSectors, WriteSectors and End
//
// An image-backed controller for testing and simulation is available in
// [github.com/ardnew/softmmc/hal/image].
package hal
