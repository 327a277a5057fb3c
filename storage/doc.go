// Package storage implements the SD and eMMC storage session manager.
//
// A [Session] owns the negotiation state of one physical storage device. It
// drives a [hal.Controller] through a ladder of bus configurations ("tiers"),
// ordered from the most compatible to the most capable, and degrades one
// tier at a time when negotiation fails. It tracks health counters, manages
// the mount/unmount/end lifecycle of a [Filesystem] binding, and detects
// removable media being pulled.
//
// # Mode Ladder
//
// A session starts at the fastest tier of its table ([SDTiers] or
// [EMMCTiers]). Each failed negotiation increments the init-failure counter,
// ends the bus, and retries one tier lower:
//
//	SD:   UHS_SDR104 → UHS_SDR82 → 4BIT_HS25 → 1BIT_HS25 → INIT_FAIL
//	eMMC: HS400 → HS200 → 8BIT_HS52 → 1BIT_HS52 → INIT_FAIL
//
// The mode never increases except through [Session.Reset]. Once a session
// reaches [ModeInitFail] it stays in [StateFailed] until reset.
//
// # Lifecycle
//
//	Fresh → Probing → Ready ⇄ Mounted
//	                    ↓
//	                  Ended
//
// [Session.Unmount] detaches the filesystem and keeps the bus powered.
// [Session.End] additionally powers the bus down. Both are no-ops on state
// that is already absent.
//
// # I/O
//
// [Session.ReadSectors] and [Session.WriteSectors] are not retried at the
// session level. A failure increments the read/write failure counter and is
// returned to the caller, who decides whether to reinitialize.
//
// A Session is not safe for concurrent use. SD and eMMC sessions share no
// state and may be driven from separate goroutines.
//
// [hal.Controller]: github.com/ardnew/softmmc/hal.Controller
package storage
