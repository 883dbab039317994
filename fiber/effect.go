package fiber

import (
	"code.hybscloud.com/kont"

	"github.com/momentics/hioload-wait/api"
)

// WaitResult is what a Wait effect resumes with. Err is set when the wait was
// rejected before suspending; Outcome is meaningful only when Err is nil.
type WaitResult struct {
	Outcome api.Outcome
	Err     error
}

// Wait asks to suspend until Args[0] (a descriptor) is read-ready or Args[1]
// seconds elapse. Args is kept loose so arity is validated by the suspender.
type Wait struct {
	kont.Phantom[WaitResult]
	Args []float64
}

// Exit is the final value of a fiber body.
type Exit struct {
	Code int
	Err  error
}

// WaitThen performs a raw Wait with args and continues with then.
func WaitThen[B any](args []float64, then func(WaitResult) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Wait{Args: args}), then)
}

// WaitFD waits for fd to become read-ready, without a timeout.
func WaitFD[B any](fd int, then func(WaitResult) kont.Eff[B]) kont.Eff[B] {
	return WaitThen([]float64{float64(fd)}, then)
}

// WaitTimeout waits for fd or for seconds to elapse, whichever comes first.
func WaitTimeout[B any](fd int, seconds float64, then func(WaitResult) kont.Eff[B]) kont.Eff[B] {
	return WaitThen([]float64{float64(fd), seconds}, then)
}

// Done finishes a body with code.
func Done(code int) kont.Eff[Exit] {
	return kont.Pure(Exit{Code: code})
}

// Fail finishes a body with err.
func Fail(err error) kont.Eff[Exit] {
	return kont.Pure(Exit{Err: err})
}
