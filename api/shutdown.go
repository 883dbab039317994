// File: api/shutdown.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own the event loop or the
// multiplexer. Shutdown must be safe to call before Run and more than once.
type GracefulShutdown interface {
	Shutdown() error
}
