// run.go - fault-sentried run loop
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

import "github.com/duoisa/duoisa/fault"

func guardedRun(fn func()) error {
	return fault.Guard(fn)
}
