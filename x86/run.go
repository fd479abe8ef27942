// run.go - the fault-guarded run loop, mirroring riscv/run.go
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

import "github.com/duoisa/duoisa/fault"

func guardedRun(fn func()) error {
	return fault.Guard(fn)
}
