// ops_group.go - the ModR/M-reg-keyed group opcodes
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

import "github.com/duoisa/duoisa/fault"

// group1: 0x80 Eb,Ib / 0x81 Ev,Iz / 0x83 Ev,Ib(sign-extended) - ADD/OR/ADC/
// SBB/AND/SUB/XOR/CMP keyed on ModR/M reg.
func (c *CPU) execGroup1(size int, immSize int) {
	c.fetchModRM()
	kind := aluKind(c.modRMReg())
	dest := c.readRM(size)
	var imm uint32
	switch immSize {
	case 8:
		imm = uint32(int32(int8(c.fetch8())))
	case 16:
		imm = uint32(c.fetch16())
	default:
		imm = c.fetch32()
	}
	r := c.aluApply(kind, size, dest, imm)
	if kind != aluCMP {
		c.writeRM(size, r)
	}
}

// group3: 0xF6/0xF7 - TEST/NOT/NEG/MUL/IMUL/DIV/IDIV keyed on ModR/M reg.
func (c *CPU) execGroup3(size int) {
	c.fetchModRM()
	reg := c.modRMReg()
	switch reg {
	case 0, 1: // TEST Eb/Ev, Ib/Iz
		dest := c.readRM(size)
		var imm uint32
		if size == 8 {
			imm = uint32(c.fetch8())
		} else if size == 16 {
			imm = uint32(c.fetch16())
		} else {
			imm = c.fetch32()
		}
		c.updateEFlagsLogic(size, dest&imm&widthMask(size))
	case 2: // NOT
		dest := c.readRM(size)
		c.writeRM(size, ^dest&widthMask(size))
	case 3: // NEG
		dest := c.readRM(size)
		r := c.updateEFlagsArith(size, 0, dest, true)
		c.setFlag(flagCF, dest != 0)
		c.writeRM(size, r)
	case 4: // MUL
		c.execMul(size, false)
	case 5: // IMUL
		c.execMul(size, true)
	case 6: // DIV
		c.execDiv(size, false)
	case 7: // IDIV
		c.execDiv(size, true)
	}
}

func (c *CPU) execMul(size int, signed bool) {
	src := c.readRM(size)
	switch size {
	case 8:
		var product uint32
		if signed {
			product = uint32(int32(int8(c.AL())) * int32(int8(src)))
		} else {
			product = uint32(c.AL()) * src
		}
		c.SetAX(uint16(product))
		overflow := (product >> 8) != 0
		if signed {
			overflow = int16(uint16(product)) != int16(int8(byte(product)))
		}
		c.setFlag(flagCF, overflow)
		c.setFlag(flagOF, overflow)
	case 16:
		var product uint32
		if signed {
			product = uint32(int32(int16(c.AX())) * int32(int16(src)))
		} else {
			product = uint32(c.AX()) * src
		}
		c.SetAX(uint16(product))
		c.SetDX(uint16(product >> 16))
		overflow := (product >> 16) != 0
		if signed {
			overflow = uint16(product>>16) != extend16Sign(uint16(product))
		}
		c.setFlag(flagCF, overflow)
		c.setFlag(flagOF, overflow)
	default:
		var lo, hi uint32
		if signed {
			p := int64(int32(c.EAX())) * int64(int32(src))
			lo, hi = uint32(p), uint32(p>>32)
		} else {
			p := uint64(c.EAX()) * uint64(src)
			lo, hi = uint32(p), uint32(p>>32)
		}
		c.SetEAX(lo)
		c.SetEDX(hi)
		overflow := hi != 0
		if signed {
			overflow = hi != extend32Sign(lo)
		}
		c.setFlag(flagCF, overflow)
		c.setFlag(flagOF, overflow)
	}
}

func extend16Sign(v uint16) uint16 {
	if v&0x8000 != 0 {
		return 0xFFFF
	}
	return 0
}

func extend32Sign(v uint32) uint32 {
	if v&0x80000000 != 0 {
		return 0xFFFFFFFF
	}
	return 0
}

// execDiv raises a guest fault on division by zero; the sentry turns it
// into an error at the run-loop boundary.
func (c *CPU) execDiv(size int, signed bool) {
	src := c.readRM(size)
	if src == 0 {
		fault.Raise("divide-by-zero", uint64(c.EIP))
	}
	switch size {
	case 8:
		dividend := uint32(c.AX())
		if signed {
			q := int32(int16(dividend)) / int32(int8(src))
			r := int32(int16(dividend)) % int32(int8(src))
			c.SetAL(byte(q))
			c.SetAH(byte(r))
		} else {
			c.SetAL(byte(dividend / src))
			c.SetAH(byte(dividend % src))
		}
	case 16:
		dividend := uint32(c.DX())<<16 | uint32(c.AX())
		if signed {
			q := int32(dividend) / int32(int16(src))
			r := int32(dividend) % int32(int16(src))
			c.SetAX(uint16(q))
			c.SetDX(uint16(r))
		} else {
			c.SetAX(uint16(dividend / src))
			c.SetDX(uint16(dividend % src))
		}
	default:
		dividend := uint64(c.EDX())<<32 | uint64(c.EAX())
		if signed {
			q := int64(dividend) / int64(int32(src))
			r := int64(dividend) % int64(int32(src))
			c.SetEAX(uint32(q))
			c.SetEDX(uint32(r))
		} else {
			c.SetEAX(uint32(dividend / uint64(src)))
			c.SetEDX(uint32(dividend % uint64(src)))
		}
	}
}

// group2: 0xC0/0xC1/0xD0-0xD3 - ROL/ROR/RCL/RCR/SHL/SHR/SAL/SAR keyed on
// ModR/M reg, count from an immediate, 1, or CL.
func (c *CPU) execGroup2(size int, count uint32) {
	c.fetchModRM()
	reg := c.modRMReg()
	dest := c.readRM(size)
	r := c.shiftRotate(size, reg, dest, count)
	c.writeRM(size, r)
}

// group5: 0xFF - INC/DEC Ev/PUSH Ev/CALL/JMP near keyed on ModR/M reg.
func (c *CPU) execGroup5() {
	c.fetchModRM()
	reg := c.modRMReg()
	size := c.operandSize()
	switch reg {
	case 0: // INC Ev
		c.writeRM(size, c.incDec(size, true))
	case 1: // DEC Ev
		c.writeRM(size, c.incDec(size, false))
	case 2: // CALL near Ev
		target := c.readRM32()
		c.push32(c.EIP)
		c.EIP = target
	case 4: // JMP near Ev
		c.EIP = c.readRM32()
	case 6: // PUSH Ev
		c.push32(c.readRM32())
	}
}

func (c *CPU) incDec(size int, inc bool) uint32 {
	dest := c.readRM(size)
	savedCF := c.CF()
	var r uint32
	if inc {
		r = c.updateEFlagsArith(size, dest, 1, false)
	} else {
		r = c.updateEFlagsArith(size, dest, 1, true)
	}
	c.setFlag(flagCF, savedCF) // INC/DEC do not affect CF
	return r
}
