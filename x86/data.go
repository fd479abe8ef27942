// data.go - data movement: MOV family, MOVSX/MOVZX, LEA, XCHG, XLAT, flags
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

func (c *CPU) execMovzx(srcSize int) {
	c.fetchModRM()
	var src uint32
	if srcSize == 8 {
		src = uint32(c.readRM8())
	} else {
		src = uint32(c.readRM16())
	}
	size := c.operandSize()
	c.writeReg(size, c.modRMReg(), src)
}

func (c *CPU) execMovsx(srcSize int) {
	c.fetchModRM()
	var src int32
	if srcSize == 8 {
		src = int32(int8(c.readRM8()))
	} else {
		src = int32(int16(c.readRM16()))
	}
	size := c.operandSize()
	c.writeReg(size, c.modRMReg(), uint32(src)&widthMask(size))
}

// execLea writes the computed effective address with no memory access.
func (c *CPU) execLea() {
	size := c.operandSize()
	c.fetchModRM()
	addr := c.effectiveAddress()
	c.writeReg(size, c.modRMReg(), addr)
}

// execXchg with a memory operand is implicitly locked; there is only one
// hart here so the lock has no observable effect beyond atomicity, which
// a single-threaded interpreter already provides.
func (c *CPU) execXchg(size int) {
	c.fetchModRM()
	a := c.readRM(size)
	b := c.readReg(size, c.modRMReg())
	c.writeRM(size, b)
	c.writeReg(size, c.modRMReg(), a)
}

// execXlat reads [EBX + AL] into AL.
func (c *CPU) execXlat() {
	c.SetAL(c.Read8(c.ebx + uint32(c.AL())))
}

// execLahf/execSahf move the low byte of FLAGS to/from AH. Bit 1 of
// FLAGS always reads as 1.
func (c *CPU) execLahf() {
	c.SetAH(byte(c.EFlags) | 0x2)
}

func (c *CPU) execSahf() {
	c.EFlags = (c.EFlags &^ 0xFF) | uint32(c.AH())
}

func (c *CPU) execCbwCwde() {
	if c.operandSize16 {
		c.SetAX(uint16(int16(int8(c.AL()))))
	} else {
		c.SetEAX(uint32(int32(int16(c.AX()))))
	}
}

func (c *CPU) execCwdCdq() {
	if c.operandSize16 {
		if c.AX()&0x8000 != 0 {
			c.SetDX(0xFFFF)
		} else {
			c.SetDX(0)
		}
	} else {
		if c.EAX()&0x80000000 != 0 {
			c.SetEDX(0xFFFFFFFF)
		} else {
			c.SetEDX(0)
		}
	}
}
