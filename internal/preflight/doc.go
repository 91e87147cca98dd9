// Package preflight provides readiness checks for the directories and
// external binaries a dcmorg stage depends on.
//
// The CLI runs the checks for a stage right before starting it so a missing
// converter or an unwritable output root is reported before any subject is
// touched. The "deps" command prints the binary checks as a table.
package preflight
