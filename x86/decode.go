// decode.go - ModR/M + SIB decoding and effective-address fixup
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

// fetchModRM fetches and caches the ModR/M byte for the current
// instruction, since several group tables need to read it twice (once to
// pick the handler, once to decode the operand).
func (c *CPU) fetchModRM() byte {
	if !c.modrmLoaded {
		c.modrmByte = c.fetch8()
		c.modrmLoaded = true
	}
	return c.modrmByte
}

func (c *CPU) modRMMod() byte { return (c.fetchModRM() >> 6) & 3 }
func (c *CPU) modRMReg() byte { return (c.fetchModRM() >> 3) & 7 }
func (c *CPU) modRMRM() byte  { return c.fetchModRM() & 7 }

func (c *CPU) fetchSIB() byte {
	if !c.sibLoaded {
		c.sibByte = c.fetch8()
		c.sibLoaded = true
	}
	return c.sibByte
}

func (c *CPU) sibScale() byte { return (c.fetchSIB() >> 6) & 3 }
func (c *CPU) sibIndex() byte { return (c.fetchSIB() >> 3) & 7 }
func (c *CPU) sibBase() byte  { return c.fetchSIB() & 7 }

// fetch8/16/32 read at EIP and advance it, the x86 analogue of the RISC-V
// Load helpers but walking the instruction stream instead of a fixed
// address.
func (c *CPU) fetch8() byte {
	v := c.Read8(c.EIP)
	c.EIP++
	return v
}

func (c *CPU) fetch16() uint16 {
	v := c.Read16(c.EIP)
	c.EIP += 2
	return v
}

func (c *CPU) fetch32() uint32 {
	v := c.Read32(c.EIP)
	c.EIP += 4
	return v
}

// effectiveAddress computes the flat address for the current ModR/M +
// optional SIB: regs[index]*scale + regs[base] + displacement. Mod must
// not be 3 (register-direct has no effective address). The result is
// cached per instruction: readRM and writeRM both call this, and a
// displacement or SIB-coded absolute address lives in the instruction
// stream, so recomputing it a second time would re-consume those bytes.
func (c *CPU) effectiveAddress() uint32 {
	if c.addrLoaded {
		return c.addr
	}

	mod := c.modRMMod()
	rm := c.modRMRM()

	var addr uint32
	if rm == 4 {
		scale := c.sibScale()
		index := c.sibIndex()
		base := c.sibBase()
		if base == 5 && mod == 0 {
			addr = c.fetch32()
		} else {
			addr = c.getReg32(base)
		}
		if index != 4 {
			addr += c.getReg32(index) << scale
		}
	} else if rm == 5 && mod == 0 {
		addr = c.fetch32()
	} else {
		addr = c.getReg32(rm)
	}

	switch mod {
	case 1:
		addr = uint32(int32(addr) + int32(int8(c.fetch8())))
	case 2:
		addr += c.fetch32()
	}
	c.addr = addr
	c.addrLoaded = true
	return addr
}

// readRM8/16/32 and writeRM8/16/32 dereference the current ModR/M,
// reading a register directly when mod == 3 and a memory operand
// otherwise.
func (c *CPU) readRM8() byte {
	if c.modRMMod() == 3 {
		return c.getReg8(c.modRMRM())
	}
	return c.Read8(c.effectiveAddress())
}

func (c *CPU) writeRM8(v byte) {
	if c.modRMMod() == 3 {
		c.setReg8(c.modRMRM(), v)
	} else {
		c.Write8(c.effectiveAddress(), v)
	}
}

func (c *CPU) readRM16() uint16 {
	if c.modRMMod() == 3 {
		return c.getReg16(c.modRMRM())
	}
	return c.Read16(c.effectiveAddress())
}

func (c *CPU) writeRM16(v uint16) {
	if c.modRMMod() == 3 {
		c.setReg16(c.modRMRM(), v)
	} else {
		c.Write16(c.effectiveAddress(), v)
	}
}

func (c *CPU) readRM32() uint32 {
	if c.modRMMod() == 3 {
		return c.getReg32(c.modRMRM())
	}
	return c.Read32(c.effectiveAddress())
}

func (c *CPU) writeRM32(v uint32) {
	if c.modRMMod() == 3 {
		c.setReg32(c.modRMRM(), v)
	} else {
		c.Write32(c.effectiveAddress(), v)
	}
}

// operandSize is 16 when the operand-size-override prefix is sticky,
// else 32. Byte-width opcodes bypass it entirely.
func (c *CPU) operandSize() int {
	if c.operandSize16 {
		return 16
	}
	return 32
}

func (c *CPU) readRM(size int) uint32 {
	switch size {
	case 8:
		return uint32(c.readRM8())
	case 16:
		return uint32(c.readRM16())
	default:
		return c.readRM32()
	}
}

func (c *CPU) writeRM(size int, v uint32) {
	switch size {
	case 8:
		c.writeRM8(byte(v))
	case 16:
		c.writeRM16(uint16(v))
	default:
		c.writeRM32(v)
	}
}

func (c *CPU) readReg(size int, idx byte) uint32 {
	switch size {
	case 8:
		return uint32(c.getReg8(idx))
	case 16:
		return uint32(c.getReg16(idx))
	default:
		return c.getReg32(idx)
	}
}

func (c *CPU) writeReg(size int, idx byte, v uint32) {
	switch size {
	case 8:
		c.setReg8(idx, byte(v))
	case 16:
		c.setReg16(idx, uint16(v))
	default:
		c.setReg32(idx, v)
	}
}
