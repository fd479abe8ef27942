// ops_alu.go - the eight two-operand ALU families (ADD..CMP)
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

// aluKind identifies one of the eight opcode-map ALU families that share
// the same {Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev / AL,Ib / eAX,Iz} opcode layout.
type aluKind int

const (
	aluADD aluKind = iota
	aluOR
	aluADC
	aluSBB
	aluAND
	aluSUB
	aluXOR
	aluCMP
)

// apply performs the family's operation on a OP b at width size, updating
// flags, and returns the result (ignored by CMP/TEST-shaped callers).
func (c *CPU) aluApply(kind aluKind, size int, a, b uint32) uint32 {
	switch kind {
	case aluADD:
		return c.updateEFlagsArith(size, a, b, false)
	case aluADC:
		return c.updateEFlagsArithCarry(size, a, b, boolToU32(c.CF()), false)
	case aluSUB, aluCMP:
		return c.updateEFlagsArith(size, a, b, true)
	case aluSBB:
		return c.updateEFlagsArithCarry(size, a, b, boolToU32(c.CF()), true)
	case aluOR:
		r := (a | b) & widthMask(size)
		c.updateEFlagsLogic(size, r)
		return r
	case aluAND:
		r := (a & b) & widthMask(size)
		c.updateEFlagsLogic(size, r)
		return r
	case aluXOR:
		r := (a ^ b) & widthMask(size)
		c.updateEFlagsLogic(size, r)
		return r
	}
	return 0
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// aluFamily wires up the six standard opcodes for one ALU family, starting
// at base (e.g. 0x00 for ADD): base+0 Eb,Gb; +1 Ev,Gv; +2 Gb,Eb; +3 Gv,Ev;
// +4 AL,Ib; +5 eAX,Iz.
func (c *CPU) registerAluFamily(table *[256]func(*CPU), base byte, kind aluKind) {
	table[base+0] = func(c *CPU) {
		c.fetchModRM()
		dest := c.readRM8()
		src := c.getReg8(c.modRMReg())
		r := c.aluApply(kind, 8, uint32(dest), uint32(src))
		if kind != aluCMP {
			c.writeRM8(byte(r))
		}
	}
	table[base+1] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		dest := c.readRM(size)
		src := c.readReg(size, c.modRMReg())
		r := c.aluApply(kind, size, dest, src)
		if kind != aluCMP {
			c.writeRM(size, r)
		}
	}
	table[base+2] = func(c *CPU) {
		c.fetchModRM()
		dest := c.getReg8(c.modRMReg())
		src := c.readRM8()
		r := c.aluApply(kind, 8, uint32(dest), uint32(src))
		if kind != aluCMP {
			c.setReg8(c.modRMReg(), byte(r))
		}
	}
	table[base+3] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		dest := c.readReg(size, c.modRMReg())
		src := c.readRM(size)
		r := c.aluApply(kind, size, dest, src)
		if kind != aluCMP {
			c.writeReg(size, c.modRMReg(), r)
		}
	}
	table[base+4] = func(c *CPU) {
		imm := uint32(c.fetch8())
		r := c.aluApply(kind, 8, uint32(c.AL()), imm)
		if kind != aluCMP {
			c.SetAL(byte(r))
		}
	}
	table[base+5] = func(c *CPU) {
		size := c.operandSize()
		var imm uint32
		if size == 16 {
			imm = uint32(c.fetch16())
		} else {
			imm = c.fetch32()
		}
		r := c.aluApply(kind, size, c.readReg(size, 0), imm)
		if kind != aluCMP {
			c.writeReg(size, 0, r)
		}
	}
}

var aluFamilies = []struct {
	base byte
	kind aluKind
}{
	{0x00, aluADD}, {0x08, aluOR}, {0x10, aluADC}, {0x18, aluSBB},
	{0x20, aluAND}, {0x28, aluSUB}, {0x30, aluXOR}, {0x38, aluCMP},
}
