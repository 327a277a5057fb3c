package image

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/softmmc/hal"
	"github.com/ardnew/softmmc/pkg"
)

// DefaultRetryBudget is the number of internal retries a transaction gets
// before the controller reports it failed.
const DefaultRetryBudget = 3

// Controller implements hal.Controller on top of image backends.
// It emulates the parts of an SDMMC host controller the session depends
// on: tier acceptance, a card detect line, transient transfer faults with
// an internal retry budget, and eMMC hardware partitions.
type Controller struct {
	// Images indexed by hardware partition; USER is always present
	backends [hal.PartitionRPMB + 1]Backend
	part     hal.PhysicalPartition

	// Media behaviour
	accept      func(hal.BusWidth, hal.Timing) bool
	removable   bool
	present     bool
	retryBudget int
	faults      int
	counter     hal.RetryCounter

	// Bus state
	powered bool
	width   hal.BusWidth
	timing  hal.Timing

	// Call accounting
	initCalls  int
	endCalls   int
	readCalls  int
	writeCalls int

	mutex sync.Mutex
}

var (
	_ hal.Controller        = (*Controller)(nil)
	_ hal.CardDetector      = (*Controller)(nil)
	_ hal.RetryReporter     = (*Controller)(nil)
	_ hal.PartitionSwitcher = (*Controller)(nil)
)

// Option configures a Controller.
type Option func(*Controller)

// WithAccept sets the predicate deciding which bus configurations the
// media negotiates successfully. The default accepts every configuration.
func WithAccept(accept func(hal.BusWidth, hal.Timing) bool) Option {
	return func(c *Controller) {
		c.accept = accept
	}
}

// WithMaxTiming accepts only timings up to max within the same family
// (SD timings or MMC timings). It replaces any previous predicate.
func WithMaxTiming(max hal.Timing) Option {
	return WithAccept(func(_ hal.BusWidth, t hal.Timing) bool {
		if isMMC(t) != isMMC(max) {
			return false
		}
		return t <= max
	})
}

// WithMaxWidth accepts only bus widths up to max. It replaces any previous
// predicate.
func WithMaxWidth(max hal.BusWidth) Option {
	return WithAccept(func(w hal.BusWidth, _ hal.Timing) bool {
		return w <= max
	})
}

// WithRemovable gives the controller a card detect line. The card starts
// present.
func WithRemovable(removable bool) Option {
	return func(c *Controller) {
		c.removable = removable
	}
}

// WithRetryBudget sets the number of internal retries per transaction.
func WithRetryBudget(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.retryBudget = n
		}
	}
}

// WithBootPartitions adds in-memory BOOT0 and BOOT1 hardware partitions of
// the given size in bytes.
func WithBootPartitions(size int64) Option {
	return func(c *Controller) {
		c.backends[hal.PartitionBoot0] = NewMemory(size)
		c.backends[hal.PartitionBoot1] = NewMemory(size)
	}
}

// WithPartition attaches a backend to a hardware partition.
func WithPartition(part hal.PhysicalPartition, b Backend) Option {
	return func(c *Controller) {
		if part <= hal.PartitionRPMB {
			c.backends[part] = b
		}
	}
}

// New creates a controller whose user area is backed by b.
func New(b Backend, opts ...Option) *Controller {
	c := &Controller{
		accept:      func(hal.BusWidth, hal.Timing) bool { return true },
		present:     true,
		retryBudget: DefaultRetryBudget,
	}
	c.backends[hal.PartitionUser] = b

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func isMMC(t hal.Timing) bool {
	return t >= hal.TimingMMCHS52
}

// Init negotiates the media at the given bus width and timing.
func (c *Controller) Init(ctx context.Context, width hal.BusWidth, timing hal.Timing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.initCalls++

	if c.removable && !c.present {
		return pkg.ErrNoCard
	}

	if timing == hal.TimingNone || !c.accept(width, timing) {
		c.powered = false
		pkg.LogDebug(pkg.ComponentHAL, "negotiation rejected",
			"width", width.String(),
			"timing", timing.String())
		return fmt.Errorf("%w: %s at %s", pkg.ErrNotReady, timing, width)
	}

	c.powered = true
	c.width = width
	c.timing = timing
	c.part = hal.PartitionUser

	pkg.LogDebug(pkg.ComponentHAL, "media negotiated",
		"width", width.String(),
		"timing", timing.String())

	return nil
}

// End powers down the bus.
func (c *Controller) End() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.endCalls++
	c.powered = false
	c.width = 0
	c.timing = hal.TimingNone

	return nil
}

// ReadSectors reads sectors from the active partition.
func (c *Controller) ReadSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.readCalls++

	b, off, length, err := c.prepare(sector, count, buf)
	if err != nil {
		return err
	}

	return c.transact(func() error {
		_, err := b.ReadAt(buf[:length], off)
		return err
	})
}

// WriteSectors writes sectors to the active partition.
func (c *Controller) WriteSectors(ctx context.Context, sector, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.writeCalls++

	b, off, length, err := c.prepare(sector, count, buf)
	if err != nil {
		return err
	}

	if b.IsReadOnly() {
		return pkg.ErrReadOnly
	}

	return c.transact(func() error {
		_, err := b.WriteAt(buf[:length], off)
		return err
	})
}

// prepare validates a transfer and returns the backend, byte offset and
// byte length it addresses. The caller must hold the mutex.
func (c *Controller) prepare(sector, count uint32, buf []byte) (Backend, int64, int64, error) {
	if !c.powered {
		return nil, 0, 0, pkg.ErrNotInitialized
	}

	if c.removable && !c.present {
		return nil, 0, 0, pkg.ErrNoCard
	}

	off := int64(sector) * hal.BlockSize
	length := int64(count) * hal.BlockSize

	if int64(len(buf)) < length {
		return nil, 0, 0, pkg.ErrBufferTooSmall
	}

	b := c.backends[c.part]
	if off+length > b.Size() {
		return nil, 0, 0, fmt.Errorf("%w: sector %d count %d", pkg.ErrOutOfBounds, sector, count)
	}

	return b, off, length, nil
}

// transact runs op, consuming injected faults and retrying up to the retry
// budget. Each retry is reported to the installed counter. The caller must
// hold the mutex.
func (c *Controller) transact(op func() error) error {
	for attempt := 0; ; attempt++ {
		if c.faults == 0 {
			if err := op(); err != nil {
				if err == io.EOF {
					return pkg.ErrOutOfBounds
				}
				return err
			}
			return nil
		}

		c.faults--

		if attempt >= c.retryBudget {
			pkg.LogDebug(pkg.ComponentHAL, "transfer failed",
				"attempts", attempt+1)
			return fmt.Errorf("%w: retry budget exhausted after %d attempts", pkg.ErrDiskIO, attempt+1)
		}

		if c.counter != nil {
			c.counter.CountRetry()
		}
	}
}

// SetRetryCounter installs the counter that receives internal retry events.
func (c *Controller) SetRetryCounter(counter hal.RetryCounter) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.counter = counter
}

// SetPartition selects the hardware partition addressed by subsequent I/O.
func (c *Controller) SetPartition(ctx context.Context, part hal.PhysicalPartition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.powered {
		return pkg.ErrNotInitialized
	}

	if part > hal.PartitionRPMB || c.backends[part] == nil {
		return fmt.Errorf("%w: partition %s", pkg.ErrNotSupported, part)
	}

	c.part = part
	return nil
}

// Partition returns the active hardware partition.
func (c *Controller) Partition() hal.PhysicalPartition {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.part
}

// CardPresent reports the card detect line. Controllers without a card
// detect line always report present.
func (c *Controller) CardPresent() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return !c.removable || c.present
}

// SetPresent sets the card detect line, simulating insertion or removal.
func (c *Controller) SetPresent(present bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.present = present
}

// InjectFaults queues n transient transfer faults. Each fault fails one
// transfer attempt.
func (c *Controller) InjectFaults(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if n > 0 {
		c.faults += n
	}
}

// Sectors returns the number of sectors in the active partition.
func (c *Controller) Sectors() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return uint64(c.backends[c.part].Size() / hal.BlockSize)
}

// Initialized reports whether the bus is powered and negotiated.
func (c *Controller) Initialized() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.powered
}

// Bus returns the negotiated bus width and timing.
func (c *Controller) Bus() (hal.BusWidth, hal.Timing) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.width, c.timing
}

// InitCalls returns the number of Init calls.
func (c *Controller) InitCalls() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.initCalls
}

// EndCalls returns the number of End calls.
func (c *Controller) EndCalls() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.endCalls
}

// ReadCalls returns the number of ReadSectors calls.
func (c *Controller) ReadCalls() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.readCalls
}

// WriteCalls returns the number of WriteSectors calls.
func (c *Controller) WriteCalls() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.writeCalls
}

// Sync flushes every backend.
func (c *Controller) Sync() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, b := range c.backends {
		if b == nil {
			continue
		}
		if err := b.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every backend that holds a resource.
func (c *Controller) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var first error
	for _, b := range c.backends {
		if closer, ok := b.(io.Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	c.powered = false
	return first
}
