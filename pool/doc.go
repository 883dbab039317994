// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded connection-slot table for hioload-wait.
// The slot table models the host's fixed-size connection array: every watched
// descriptor occupies exactly one slot for the lifetime of one wait.
package pool
