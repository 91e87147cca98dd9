// Package services defines shared utilities consumed by the pipeline stages
// and the wrappers around external tools.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and subject names for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     corrupt slice file from a failed copy or a crashed external tool.
//
// Wrappers for external binaries live in subpackages (dcm2niix, totalseg) and
// follow the same pattern: a Config, a Service, and an injectable command
// runner for tests.
package services
