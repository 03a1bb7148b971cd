// Package suite holds the registration tree executed by the runner.
//
// It provides:
//   - Context: a named, nestable group of tests and lifecycle hooks
//   - Task: a single test or hook with exactly one recorded outcome
//   - Runnable: the body of a task (plain, channel-based or callback-based)
//   - Builder: the registration cursor used while suites are defined
//
// Suites are defined by calling Builder methods synchronously from a
// Definition. Once a tree is handed to the runner its builder is sealed and
// further registration panics with ErrSealed.
package suite
