// Package pkg provides shared utilities for the softmmc storage stack.
//
// This package contains common functionality used by the session manager,
// the partition table reader, the filesystem binding and the HALs,
// including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for negotiation, I/O and filesystem failures
//   - Filesystem result codes returned by filesystem bindings
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with storage-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSD, "card initialized", "mode", "UHS_SDR104")
//
// Levels can be lowered or raised per component, e.g. to trace GPT parsing
// while everything else logs warnings only:
//
//	pkg.SetComponentLevel(pkg.ComponentGPT, slog.LevelDebug)
//
// # Errors
//
// Common storage errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrNotInserted) {
//	    // Ask the user to insert a card
//	}
package pkg
