// Package host
// Author: momentics <momentics@gmail.com>
//
// Minimal phase-staged request pipeline hosting fibers: requests walk a fixed
// list of phases, each fiber owns one suspension slot (CoContext), and work can
// be posted against a connection or a request. All methods are meant to be
// called from the event loop goroutine.
package host
