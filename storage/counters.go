package storage

// ErrorCounts is a snapshot of a session's health counters.
type ErrorCounts struct {
	InitFail uint32 // Failed negotiation attempts
	RWFail   uint32 // Reads and writes that failed after controller retries
	RWRetry  uint32 // Internal retries reported by the controller
}

// errorCounters is the live accounting object. The controller reaches it
// through hal.RetryCounter.
type errorCounters struct {
	initFail uint32
	rwFail   uint32
	rwRetry  uint32
}

// CountRetry implements hal.RetryCounter.
func (c *errorCounters) CountRetry() {
	c.rwRetry++
}

func (c *errorCounters) snapshot() ErrorCounts {
	return ErrorCounts{
		InitFail: c.initFail,
		RWFail:   c.rwFail,
		RWRetry:  c.rwRetry,
	}
}
