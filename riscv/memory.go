// memory.go - LOAD and STORE
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

func (c *CPU) execLoad(i inst) {
	addr := c.mask(c.xreg(i.rs1()) + uint64(int64(i.immI())))
	var v uint64
	switch i.funct3() {
	case 0b000: // LB
		v = uint64(int64(int8(c.Load8(addr))))
	case 0b001: // LH
		v = uint64(int64(int16(c.Load16(addr))))
	case 0b010: // LW
		v = uint64(int64(int32(c.Load32(addr))))
	case 0b100: // LBU
		v = uint64(c.Load8(addr))
	case 0b101: // LHU
		v = uint64(c.Load16(addr))
	case 0b110: // LWU (RV64 only)
		v = uint64(c.Load32(addr))
	case 0b011: // LD (RV64 only)
		v = c.Load64(addr)
	}
	c.setXreg(i.rd(), c.mask(v))
}

func (c *CPU) execStore(i inst) {
	addr := c.mask(c.xreg(i.rs1()) + uint64(int64(i.immS())))
	v := c.xreg(i.rs2())
	switch i.funct3() {
	case 0b000: // SB
		c.Store8(addr, uint8(v))
	case 0b001: // SH
		c.Store16(addr, uint16(v))
	case 0b010: // SW
		c.Store32(addr, uint32(v))
	case 0b011: // SD (RV64 only)
		c.Store64(addr, v)
	}
}
