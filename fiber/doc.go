// Package fiber is the cooperative execution engine used by hioload-wait.
//
// A fiber body is a kont computation (kont.Eff[Exit]). Waiting on a descriptor
// is the Wait effect: when a body performs it, the Engine hands the arguments to
// a Suspender and, if the suspender accepts, parks the fiber. A later Resume
// pushes one value into the parked computation and drives it to its next
// suspension or to completion.
//
//	body := fiber.WaitTimeout(fd, 0.05, func(r fiber.WaitResult) kont.Eff[fiber.Exit] {
//		if r.Err != nil {
//			return fiber.Fail(r.Err)
//		}
//		return fiber.Done(int(r.Outcome))
//	})
package fiber
