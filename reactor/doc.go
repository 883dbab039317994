// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the read-interest multiplexer used by the wait loop:
// epoll on Linux, an unsupported-platform stub elsewhere.
package reactor
