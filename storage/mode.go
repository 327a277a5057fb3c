package storage

import (
	"fmt"

	"github.com/ardnew/softmmc/hal"
)

// Mode is an index into a session's tier table. Higher modes are faster.
type Mode uint8

// ModeInitFail is the terminal mode below the slowest tier.
const ModeInitFail Mode = 0

// SD modes.
const (
	SD1BitHS25  Mode = 1 // 1-bit, High Speed 25 MB/s
	SD4BitHS25  Mode = 2 // 4-bit, High Speed 25 MB/s
	SDUHSSDR82  Mode = 3 // 4-bit, UHS-I SDR 82 MB/s
	SDUHSSDR104 Mode = 4 // 4-bit, UHS-I SDR104
)

// eMMC modes.
const (
	EMMC1BitHS52 Mode = 1 // 1-bit, High Speed 52 MHz
	EMMC8BitHS52 Mode = 2 // 8-bit, High Speed 52 MHz
	EMMCHS200    Mode = 3 // 8-bit, HS200
	EMMCHS400    Mode = 4 // 8-bit, HS400
)

var initFailTier = hal.Tier{Name: "INIT_FAIL"}

// SDTiers is the SD negotiation ladder indexed by [Mode].
var SDTiers = []hal.Tier{
	ModeInitFail: initFailTier,
	SD1BitHS25:   {Name: "1BIT_HS25", Width: hal.BusWidth1, Timing: hal.TimingSDHS25},
	SD4BitHS25:   {Name: "4BIT_HS25", Width: hal.BusWidth4, Timing: hal.TimingSDHS25},
	SDUHSSDR82:   {Name: "UHS_SDR82", Width: hal.BusWidth4, Timing: hal.TimingUHSSDR82},
	SDUHSSDR104:  {Name: "UHS_SDR104", Width: hal.BusWidth4, Timing: hal.TimingUHSSDR104},
}

// EMMCTiers is the eMMC negotiation ladder indexed by [Mode].
var EMMCTiers = []hal.Tier{
	ModeInitFail: initFailTier,
	EMMC1BitHS52: {Name: "1BIT_HS52", Width: hal.BusWidth1, Timing: hal.TimingMMCHS52},
	EMMC8BitHS52: {Name: "8BIT_HS52", Width: hal.BusWidth8, Timing: hal.TimingMMCHS52},
	EMMCHS200:    {Name: "HS200", Width: hal.BusWidth8, Timing: hal.TimingMMCHS200},
	EMMCHS400:    {Name: "HS400", Width: hal.BusWidth8, Timing: hal.TimingMMCHS400},
}

// Kind identifies the class of storage device a session drives.
type Kind uint8

// Storage device kinds.
const (
	KindSD   Kind = iota // Removable SD card
	KindEMMC             // Soldered eMMC
)

// String returns a human-readable device kind.
func (k Kind) String() string {
	switch k {
	case KindSD:
		return "SD"
	case KindEMMC:
		return "eMMC"
	default:
		return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
	}
}

// Logical volume designators passed to the filesystem binding.
const (
	VolumeSD   = "sd:"
	VolumeEMMC = "emmc:"
)

// State is the lifecycle state of a session.
type State uint8

// Session states.
const (
	StateFresh   State = 0 // Never attempted, mode at the fastest tier
	StateProbing State = 1 // Negotiating at the current mode
	StateReady   State = 2 // Bus negotiated, filesystem detached
	StateMounted State = 3 // Filesystem binding engaged
	StateEnded   State = 4 // Bus powered down
	StateFailed  State = 5 // Every tier failed; terminal until Reset
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateProbing:
		return "Probing"
	case StateReady:
		return "Ready"
	case StateMounted:
		return "Mounted"
	case StateEnded:
		return "Ended"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown State (%d)", uint8(s))
	}
}
