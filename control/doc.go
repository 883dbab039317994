// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot reload, runtime metrics and debug introspection for the
// wait runtime.
//
// Provides concurrent-safe state handling primitives including:
//   - TOML configuration with defaults and validation
//   - A live config snapshot with reload listeners and file watching
//   - Counters fed by the wait coordinator
//   - Debug probes with a msgpack state dump
package control
