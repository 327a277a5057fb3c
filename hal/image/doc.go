// Package image implements an image-backed SDMMC controller HAL.
//
// This HAL is primarily intended for testing and simulation. It serves
// sector I/O from an in-memory buffer or a disk image file and emulates the
// controller behaviour the storage session reacts to, so the negotiation
// ladder, removal detection and error accounting can be exercised without
// hardware.
//
// # Negotiation
//
// By default every bus configuration negotiates successfully. A predicate
// restricts what the simulated media accepts:
//
//	// A card that cannot run UHS-I timings
//	ctrl := image.New(image.NewMemory(64<<20), image.WithMaxTiming(hal.TimingSDHS25))
//
// # Faults
//
// [Controller.InjectFaults] queues transient transfer faults. Each
// transaction retries internally up to the retry budget
// ([DefaultRetryBudget] unless set with [WithRetryBudget]) and reports every
// retry to the counter installed with [Controller.SetRetryCounter].
//
// # Card Detect
//
// Controllers created with [WithRemovable] have a card detect line driven
// by [Controller.SetPresent].
package image
