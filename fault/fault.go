// fault.go - process-wide fault sentry for guest memory faults
//
// (c) 2026 duoisa contributors - GPLv3 or later

// Package fault re-architects a process-wide segfault trap as scoped
// acquisition of a run-loop guard. Only one CPU instance may be inside
// Guard at a time; the guard is released on every exit path, including a
// panic.
package fault

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Fault describes a guest memory access that fell outside the mapped
// buffer, or a guest integer division by zero. It is the value recovered
// from a panic raised by guest memory accessors and by the x86 DIV/IDIV
// handler; Guard turns it into an error rather than letting it unwind
// past the run loop.
type Fault struct {
	Addr uint64 // faulting address; EIP for a divide fault
	Op   string // "read", "write", or "divide-by-zero"
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault: %s at guest address 0x%x", f.Op, f.Addr)
}

// Raise panics with a *Fault. Guest memory implementations call this when
// an access falls outside their mapped buffer; Guard is the only place the
// panic is expected to be recovered.
func Raise(op string, addr uint64) {
	panic(&Fault{Addr: addr, Op: op})
}

var sentry = semaphore.NewWeighted(1)

// Guard serializes entry to fn so only one interpreter is ever "inside the
// trap" at once, then runs fn and recovers any *Fault it panics with,
// returning it as an error. Guest state is left as of the last committed
// instruction. Non-Fault panics are not ours to swallow and are
// re-raised.
func Guard(fn func()) (err error) {
	if acqErr := sentry.Acquire(context.Background(), 1); acqErr != nil {
		return acqErr
	}
	defer sentry.Release(1)

	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*Fault); ok {
				err = f
				return
			}
			panic(r)
		}
	}()

	fn()
	return nil
}

var _ error = (*Fault)(nil)
