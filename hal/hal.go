package hal

import (
	"context"
	"fmt"
)

// BlockSize is the sector size in bytes used by SD and eMMC media.
const BlockSize = 512

// BusWidth is the number of data lines used on the SDMMC bus.
type BusWidth uint8

// Bus width constants.
const (
	BusWidth1 BusWidth = 1 // 1-bit data bus
	BusWidth4 BusWidth = 4 // 4-bit data bus
	BusWidth8 BusWidth = 8 // 8-bit data bus (eMMC only)
)

// String returns a human-readable bus width.
func (w BusWidth) String() string {
	switch w {
	case BusWidth1, BusWidth4, BusWidth8:
		return fmt.Sprintf("%d-bit", uint8(w))
	default:
		return fmt.Sprintf("Unknown Width (%d)", uint8(w))
	}
}

// Timing is the signaling protocol and clock used on the SDMMC bus.
type Timing uint8

// Timing constants (SD Physical Layer 6.0, JESD84-B51).
const (
	TimingNone      Timing = iota // No timing, used by the failure sentinel
	TimingSDHS25                  // SD High Speed, 25 MB/s, 3.3V
	TimingUHSSDR82                // SD UHS-I SDR, 82 MB/s, 1.8V
	TimingUHSSDR104               // SD UHS-I SDR104, 104 MB/s, 1.8V
	TimingMMCHS52                 // eMMC High Speed, 52 MHz
	TimingMMCHS200                // eMMC HS200, 200 MHz SDR, 1.8V
	TimingMMCHS400                // eMMC HS400, 200 MHz DDR, 1.8V
)

// String returns a human-readable timing name.
func (t Timing) String() string {
	switch t {
	case TimingNone:
		return "None"
	case TimingSDHS25:
		return "SD HS25"
	case TimingUHSSDR82:
		return "UHS SDR82"
	case TimingUHSSDR104:
		return "UHS SDR104"
	case TimingMMCHS52:
		return "MMC HS52"
	case TimingMMCHS200:
		return "MMC HS200"
	case TimingMMCHS400:
		return "MMC HS400"
	default:
		return fmt.Sprintf("Unknown Timing (%d)", uint8(t))
	}
}

// IsUHS reports whether the timing requires 1.8V signaling.
func (t Timing) IsUHS() bool {
	switch t {
	case TimingUHSSDR82, TimingUHSSDR104, TimingMMCHS200, TimingMMCHS400:
		return true
	default:
		return false
	}
}

// Tier is one point of a negotiation ladder: a named bus width and timing
// pair that a controller is asked to bring the media up at.
type Tier struct {
	Name   string
	Width  BusWidth
	Timing Timing
}

// String returns the tier name with its bus configuration.
func (t Tier) String() string {
	if t.Timing == TimingNone {
		return t.Name
	}
	return fmt.Sprintf("%s (%s, %s)", t.Name, t.Width, t.Timing)
}

// PhysicalPartition selects an eMMC hardware partition.
type PhysicalPartition uint8

// eMMC hardware partitions (EXT_CSD PARTITION_CONFIG access bits).
const (
	PartitionUser  PhysicalPartition = 0 // User data area
	PartitionBoot0 PhysicalPartition = 1 // Boot partition 0
	PartitionBoot1 PhysicalPartition = 2 // Boot partition 1
	PartitionRPMB  PhysicalPartition = 3 // Replay protected memory block
)

// String returns a human-readable partition name.
func (p PhysicalPartition) String() string {
	switch p {
	case PartitionUser:
		return "USER"
	case PartitionBoot0:
		return "BOOT0"
	case PartitionBoot1:
		return "BOOT1"
	case PartitionRPMB:
		return "RPMB"
	default:
		return fmt.Sprintf("Unknown Partition (%d)", uint8(p))
	}
}

// BlockDevice is sector-addressed storage.
//
// Sectors are [BlockSize] bytes. buf must hold at least count*BlockSize
// bytes. Both methods block until the transaction completes or the
// underlying hardware times out.
type BlockDevice interface {
	// ReadSectors reads count sectors starting at the absolute sector into buf.
	ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error

	// WriteSectors writes count sectors from buf starting at the absolute sector.
	WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error
}

// Controller defines the Hardware Abstraction Layer interface for an SDMMC
// host controller together with the card negotiation performed on top of it.
//
// The storage session drives a Controller through its negotiation ladder:
// it calls Init with successively less capable tiers and calls End between
// attempts. Read and write failures are reported only after the
// controller's own internal retry budget is exhausted.
type Controller interface {
	BlockDevice

	// Init powers the bus and negotiates the media at the given bus width
	// and timing. A nil return means the media is ready for I/O.
	Init(ctx context.Context, width BusWidth, timing Timing) error

	// End powers down the bus and resets the negotiation state.
	// It is safe to call when the bus is already down.
	End() error
}

// CardDetector is implemented by controllers with a card detect line.
type CardDetector interface {
	// CardPresent reports the current state of the card detect line.
	CardPresent() bool
}

// RetryCounter records internal read/write retries.
type RetryCounter interface {
	// CountRetry records one internal retry within a single read or write.
	CountRetry()
}

// RetryReporter is implemented by controllers that retry transactions
// internally and can report each retry to a counter.
type RetryReporter interface {
	// SetRetryCounter installs the counter that receives retry events.
	SetRetryCounter(c RetryCounter)
}

// PartitionSwitcher is implemented by eMMC controllers that can switch the
// active hardware partition.
type PartitionSwitcher interface {
	// SetPartition selects the hardware partition addressed by subsequent I/O.
	SetPartition(ctx context.Context, part PhysicalPartition) error
}
