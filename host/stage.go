// File: host/stage.go
// Author: momentics <momentics@gmail.com>

package host

import (
	"fmt"
	"strings"
)

// Stage is a processing context bit; a set of them forms an allow-mask.
type Stage uint16

const (
	StageSet Stage = 1 << iota
	StageRewrite
	StageAccess
	StageContent
	StageLog
	StageHeaderFilter
	StageBodyFilter
	StageTimer
	StageInitWorker
	StageBalancer
	StageSSLCert
	StageSSLSessStore
	StageSSLSessFetch
)

var stageNames = []struct {
	s    Stage
	name string
}{
	{StageSet, "set"},
	{StageRewrite, "rewrite"},
	{StageAccess, "access"},
	{StageContent, "content"},
	{StageLog, "log"},
	{StageHeaderFilter, "header_filter"},
	{StageBodyFilter, "body_filter"},
	{StageTimer, "timer"},
	{StageInitWorker, "init_worker"},
	{StageBalancer, "balancer"},
	{StageSSLCert, "ssl_cert"},
	{StageSSLSessStore, "ssl_session_store"},
	{StageSSLSessFetch, "ssl_session_fetch"},
}

// Has reports whether every bit of o is in s.
func (s Stage) Has(o Stage) bool { return s&o == o && o != 0 }

func (s Stage) String() string {
	var parts []string
	for _, n := range stageNames {
		if s&n.s != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "(unknown)"
	}
	return strings.Join(parts, "|")
}

// Code is a phase handler / continuation return code.
type Code int

const (
	CodeOK       Code = 0
	CodeError    Code = -1
	CodeAgain    Code = -2
	CodeDone     Code = -4
	CodeDeclined Code = -5
	CodeAborted  Code = 499
	CodeInternal Code = 500
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeError:
		return "error"
	case CodeAgain:
		return "again"
	case CodeDone:
		return "done"
	case CodeDeclined:
		return "declined"
	case CodeAborted:
		return "aborted"
	case CodeInternal:
		return "internal"
	default:
		return fmt.Sprintf("status %d", int(c))
	}
}
