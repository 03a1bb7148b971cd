// Package runner executes a suite tree and publishes its progress on an
// event bus.
//
// It provides functionality for:
//   - Walking contexts depth-first, siblings in numeric-aware label order
//   - Running setup/teardown once per context and before/after per test
//   - Skip cascading and per-context exclusive ("only") selection
//   - Isolating test failures while letting setup/teardown failures stop
//     the whole subtree
//   - Timing every hook, test and context phase
//
// Execution is strictly sequential: at most one task body is in flight.
package runner
