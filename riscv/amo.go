// amo.go - the A extension: LR/SC and atomic memory operations
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

// execAmo models a single-hart reservation: LR.W/D records the address,
// SC.W/D writes only if that reservation is still live, and every other
// AMO performs a read-modify-write that no other agent can observe
// mid-flight, because there is no other agent.
func (c *CPU) execAmo(i inst) {
	addr := c.xreg(i.rs1())
	wide := i.funct3() == 0b011 // 010 = .W, 011 = .D

	switch i.funct5() {
	case 0b00010: // LR
		c.reservation = addr
		c.hasReservation = true
		if wide {
			c.setXreg(i.rd(), c.Load64(addr))
		} else {
			c.setXreg(i.rd(), c.mask(uint64(int64(int32(c.Load32(addr))))))
		}
		return
	case 0b00011: // SC
		if c.hasReservation && c.reservation == addr {
			if wide {
				c.Store64(addr, c.xreg(i.rs2()))
			} else {
				c.Store32(addr, uint32(c.xreg(i.rs2())))
			}
			c.setXreg(i.rd(), 0) // success
		} else {
			c.setXreg(i.rd(), 1) // failure, memory untouched
		}
		// SC consumes the reservation whether or not it stored.
		c.hasReservation = false
		c.reservation = noReservation
		return
	}

	rs2 := c.xreg(i.rs2())
	if wide {
		old := c.Load64(addr)
		c.Store64(addr, amoCompute(i.funct5(), old, rs2, false))
		c.setXreg(i.rd(), old)
		return
	}
	old := uint64(int64(int32(c.Load32(addr))))
	c.Store32(addr, uint32(amoCompute(i.funct5(), old, uint64(int64(int32(rs2))), true)))
	c.setXreg(i.rd(), c.mask(old))
}

func amoCompute(funct5 uint32, old, operand uint64, word bool) uint64 {
	switch funct5 {
	case 0b00001: // AMOSWAP
		return operand
	case 0b00000: // AMOADD
		return old + operand
	case 0b00100: // AMOXOR
		return old ^ operand
	case 0b01100: // AMOAND
		return old & operand
	case 0b01000: // AMOOR
		return old | operand
	case 0b10000: // AMOMIN
		if signedLess(old, operand, word) {
			return old
		}
		return operand
	case 0b10100: // AMOMAX
		if signedLess(old, operand, word) {
			return operand
		}
		return old
	case 0b11000: // AMOMINU
		if old < operand {
			return old
		}
		return operand
	case 0b11100: // AMOMAXU
		if old < operand {
			return operand
		}
		return old
	}
	return old
}

func signedLess(a, b uint64, word bool) bool {
	if word {
		return int32(a) < int32(b)
	}
	return int64(a) < int64(b)
}
