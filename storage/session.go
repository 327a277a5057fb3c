package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// Session is the storage session of one physical SD or eMMC device.
type Session struct {
	kind      Kind
	volume    string
	component pkg.Component
	tiers     []hal.Tier

	// Collaborators
	ctrl     hal.Controller
	detector hal.CardDetector // nil for fixed media
	fs       Filesystem

	// Negotiation state
	mode        Mode
	initialized bool
	mounted     bool
	inserted    bool // A card was negotiated since the last End
	state       State

	errors errorCounters

	onStateChange func(old, new State)
}

var _ hal.BlockDevice = (*Session)(nil)

// NewSD creates a session for a removable SD card.
// If ctrl implements [hal.CardDetector] the session tracks removal.
func NewSD(ctrl hal.Controller, fs Filesystem) *Session {
	s := newSession(KindSD, SDTiers, VolumeSD, pkg.ComponentSD, ctrl, fs)
	if detector, ok := ctrl.(hal.CardDetector); ok {
		s.detector = detector
	}
	return s
}

// NewEMMC creates a session for a soldered eMMC device.
func NewEMMC(ctrl hal.Controller, fs Filesystem) *Session {
	return newSession(KindEMMC, EMMCTiers, VolumeEMMC, pkg.ComponentEMMC, ctrl, fs)
}

func newSession(kind Kind, tiers []hal.Tier, volume string, component pkg.Component,
	ctrl hal.Controller, fs Filesystem) *Session {
	s := &Session{
		kind:      kind,
		volume:    volume,
		component: component,
		tiers:     tiers,
		ctrl:      ctrl,
		fs:        fs,
		mode:      Mode(len(tiers) - 1),
		state:     StateFresh,
	}

	if reporter, ok := ctrl.(hal.RetryReporter); ok {
		reporter.SetRetryCounter(&s.errors)
	}

	return s
}

// fastest returns the top of the tier table.
func (s *Session) fastest() Mode {
	return Mode(len(s.tiers) - 1)
}

// setState changes the session state and triggers the callback.
func (s *Session) setState(newState State) {
	oldState := s.state
	s.state = newState

	if oldState != newState {
		pkg.LogDebug(pkg.ComponentSession, "session state changed",
			"kind", s.kind.String(),
			"from", oldState.String(),
			"to", newState.String())
		if s.onStateChange != nil {
			s.onStateChange(oldState, newState)
		}
	}
}

// Initialize negotiates the bus, starting at the current mode and falling
// back one tier after each failure.
//
// If the session is mounted it is unmounted first. The bus is ended before
// the first attempt when powerCycle is set or the session is already
// initialized. A session whose mode reached [ModeInitFail] returns
// [pkg.ErrInitFailed] without touching the hardware until [Session.Reset].
//
// A failure while a card detector reports the card absent returns
// [pkg.ErrNotInserted], restores the fastest mode, and is not counted.
func (s *Session) Initialize(ctx context.Context, powerCycle bool) error {
	if s.mounted {
		s.Unmount()
	}

	if s.mode == ModeInitFail {
		s.setState(StateFailed)
		return pkg.ErrInitFailed
	}

	if powerCycle || s.initialized {
		s.endBus()
	}

	for {
		if err := ctx.Err(); err != nil {
			if s.state == StateProbing {
				s.setState(StateEnded)
			}
			return err
		}

		tier := s.tiers[s.mode]
		s.setState(StateProbing)

		pkg.LogDebug(s.component, "negotiating",
			"tier", tier.Name,
			"width", tier.Width.String(),
			"timing", tier.Timing.String())

		err := s.ctrl.Init(ctx, tier.Width, tier.Timing)
		if err == nil {
			s.initialized = true
			if s.kind == KindSD {
				s.inserted = true
			}
			s.setState(StateReady)
			pkg.LogInfo(s.component, "storage initialized",
				"tier", tier.Name)
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			s.endBus()
			s.setState(StateEnded)
			return ctxErr
		}

		if s.detector != nil && !s.detector.CardPresent() {
			s.mode = s.fastest()
			s.endBus()
			s.setState(StateEnded)
			pkg.LogWarn(s.component, "card not inserted")
			return pkg.ErrNotInserted
		}

		s.errors.initFail++
		s.mode--
		s.endBus()

		pkg.LogWarn(s.component, "negotiation failed",
			"tier", tier.Name,
			"next", s.tiers[s.mode].Name,
			"error", err)

		if s.mode == ModeInitFail {
			s.setState(StateFailed)
			pkg.LogError(s.component, "storage initialization failed",
				"attempts", s.errors.initFail)
			return fmt.Errorf("%w: %w", pkg.ErrInitFailed, err)
		}
	}
}

// endBus powers down the controller and clears the negotiated flag.
func (s *Session) endBus() {
	if err := s.ctrl.End(); err != nil {
		pkg.LogDebug(s.component, "controller end failed", "error", err)
	}
	s.initialized = false
}

// Mount negotiates the bus if needed and mounts the filesystem on the
// session's volume. It returns immediately when already mounted.
//
// A filesystem failure is returned as a [*MountError] and does not rerun
// the negotiation ladder.
func (s *Session) Mount(ctx context.Context) error {
	if s.initialized && s.mounted {
		return nil
	}

	if !s.initialized {
		if err := s.Initialize(ctx, false); err != nil {
			return err
		}
	}

	if s.fs == nil {
		return fmt.Errorf("%w: no filesystem binding for %s", pkg.ErrNotSupported, s.volume)
	}

	res := s.fs.Mount(ctx, s.volume, s)
	if res != pkg.FROK {
		pkg.LogWarn(s.component, "mount failed",
			"volume", s.volume,
			"result", res.String())
		return &MountError{Volume: s.volume, Result: res}
	}

	s.mounted = true
	s.setState(StateMounted)
	pkg.LogDebug(s.component, "mounted", "volume", s.volume)
	return nil
}

// Unmount detaches the filesystem and keeps the bus powered.
func (s *Session) Unmount() {
	if !s.mounted {
		return
	}

	s.fs.Unmount(s.volume)
	s.mounted = false
	s.setState(StateReady)
}

// End unmounts, powers the bus down, and clears the insertion event.
// The mode is kept so a later Mount resumes at the last working tier.
func (s *Session) End() {
	s.Unmount()

	wasInitialized := s.initialized
	if wasInitialized {
		s.endBus()
	}
	s.inserted = false

	if wasInitialized {
		s.setState(StateEnded)
	}
}

// Reset ends the session and restores the fastest mode. It is the only way
// out of [StateFailed].
func (s *Session) Reset() {
	s.End()
	s.mode = s.fastest()
	s.setState(StateFresh)
}

// ReadSectors reads count sectors starting at the absolute sector.
func (s *Session) ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	return s.transfer(ctx, "read", sector, count, buf, s.ctrl.ReadSectors)
}

// WriteSectors writes count sectors starting at the absolute sector.
func (s *Session) WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	return s.transfer(ctx, "write", sector, count, buf, s.ctrl.WriteSectors)
}

func (s *Session) transfer(ctx context.Context, op string, sector, count uint32, buf []byte,
	fn func(context.Context, uint32, uint32, []byte) error) error {
	if !s.initialized {
		return pkg.ErrNotInitialized
	}

	if uint64(len(buf)) < uint64(count)*hal.BlockSize {
		return pkg.ErrBufferTooSmall
	}

	err := fn(ctx, sector, count, buf)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	s.errors.rwFail++
	pkg.LogWarn(s.component, op+" failed",
		"sector", sector,
		"count", count,
		"error", err)

	return fmt.Errorf("%w: %s sector %d count %d: %w", pkg.ErrIO, op, sector, count, err)
}

// SetPartition selects the eMMC hardware partition addressed by subsequent
// I/O. The controller must implement [hal.PartitionSwitcher].
func (s *Session) SetPartition(ctx context.Context, part hal.PhysicalPartition) error {
	switcher, ok := s.ctrl.(hal.PartitionSwitcher)
	if !ok {
		return fmt.Errorf("%w: %s partition switching", pkg.ErrNotSupported, s.kind)
	}

	if !s.initialized {
		return pkg.ErrNotInitialized
	}

	if err := switcher.SetPartition(ctx, part); err != nil {
		return fmt.Errorf("set partition %s: %w", part, err)
	}

	pkg.LogDebug(s.component, "partition selected", "partition", part.String())
	return nil
}

// IsRemoved reports whether a card was negotiated and the card detect line
// now reads absent. It is always false before the first successful
// negotiation and for sessions without a card detector.
func (s *Session) IsRemoved() bool {
	return s.detector != nil && s.inserted && !s.detector.CardPresent()
}

// IsInserted returns the raw card detect line. Fixed media always reports
// inserted.
func (s *Session) IsInserted() bool {
	return s.detector == nil || s.detector.CardPresent()
}

// IsMounted reports whether the filesystem is mounted.
func (s *Session) IsMounted() bool {
	return s.mounted
}

// IsInitialized reports whether the bus is negotiated.
func (s *Session) IsInitialized() bool {
	return s.initialized
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Tier returns the tier at the current mode.
func (s *Session) Tier() hal.Tier {
	return s.tiers[s.mode]
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Kind returns the device class.
func (s *Session) Kind() Kind {
	return s.kind
}

// Volume returns the logical volume designator.
func (s *Session) Volume() string {
	return s.volume
}

// ErrorCounts returns a snapshot of the health counters.
func (s *Session) ErrorCounts() ErrorCounts {
	return s.errors.snapshot()
}

// ResetErrorCounts zeroes the health counters.
func (s *Session) ResetErrorCounts() {
	s.errors = errorCounters{}
}

// SetOnStateChange sets the state change callback.
func (s *Session) SetOnStateChange(cb func(old, new State)) {
	s.onStateChange = cb
}
