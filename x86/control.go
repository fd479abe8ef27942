// control.go - Jcc, JMP/CALL/RET, LOOP family, ENTER/LEAVE
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

// condName names the 16 flag predicates in opcode-low-nibble order; cond
// evaluates the same predicate against the current flags, so Jcc, SETcc,
// and the disassembler share one table.
var condName = [16]string{
	"O", "NO", "B", "AE", "E", "NE", "BE", "A",
	"S", "NS", "P", "NP", "L", "GE", "LE", "G",
}

func (c *CPU) cond(code byte) bool {
	switch code & 0xF {
	case 0x0:
		return c.OF()
	case 0x1:
		return !c.OF()
	case 0x2:
		return c.CF()
	case 0x3:
		return !c.CF()
	case 0x4:
		return c.ZF()
	case 0x5:
		return !c.ZF()
	case 0x6:
		return c.CF() || c.ZF()
	case 0x7:
		return !c.CF() && !c.ZF()
	case 0x8:
		return c.SF()
	case 0x9:
		return !c.SF()
	case 0xA:
		return c.PF()
	case 0xB:
		return !c.PF()
	case 0xC:
		return c.SF() != c.OF()
	case 0xD:
		return c.SF() == c.OF()
	case 0xE:
		return c.ZF() || c.SF() != c.OF()
	case 0xF:
		return !c.ZF() && c.SF() == c.OF()
	}
	return false
}

func (c *CPU) execJccShort(code byte) {
	rel := int8(c.fetch8())
	if c.cond(code) {
		c.EIP = uint32(int32(c.EIP) + int32(rel))
	}
}

func (c *CPU) execJccNear(code byte) {
	rel := int32(c.fetch32())
	if c.cond(code) {
		c.EIP = uint32(int32(c.EIP) + rel)
	}
}

func (c *CPU) execSetcc(code byte) {
	c.fetchModRM()
	if c.cond(code) {
		c.writeRM8(1)
	} else {
		c.writeRM8(0)
	}
}

func (c *CPU) execJmpShort() {
	rel := int8(c.fetch8())
	c.EIP = uint32(int32(c.EIP) + int32(rel))
}

func (c *CPU) execJmpNear() {
	rel := int32(c.fetch32())
	c.EIP = uint32(int32(c.EIP) + rel)
}

func (c *CPU) execCallNear() {
	rel := int32(c.fetch32())
	c.push32(c.EIP)
	c.EIP = uint32(int32(c.EIP) + rel)
}

func (c *CPU) execRet() {
	c.EIP = c.pop32()
}

func (c *CPU) execRetImm() {
	n := c.fetch16()
	c.EIP = c.pop32()
	c.esp += uint32(n)
}

func (c *CPU) execLoop() {
	rel := int8(c.fetch8())
	c.ecx--
	if c.ecx != 0 {
		c.EIP = uint32(int32(c.EIP) + int32(rel))
	}
}

func (c *CPU) execLoope() {
	rel := int8(c.fetch8())
	c.ecx--
	if c.ecx != 0 && c.ZF() {
		c.EIP = uint32(int32(c.EIP) + int32(rel))
	}
}

func (c *CPU) execLoopne() {
	rel := int8(c.fetch8())
	c.ecx--
	if c.ecx != 0 && !c.ZF() {
		c.EIP = uint32(int32(c.EIP) + int32(rel))
	}
}

func (c *CPU) execJecxz() {
	rel := int8(c.fetch8())
	if c.ecx == 0 {
		c.EIP = uint32(int32(c.EIP) + int32(rel))
	}
}

// execEnter builds a nested stack frame: push EBP, copy up to 31 saved
// display-level frame pointers, subtract the locals size from ESP.
func (c *CPU) execEnter() {
	size := c.fetch16()
	level := c.fetch8() % 32
	c.push32(c.ebp)
	frameTemp := c.esp
	if level > 0 {
		bp := c.ebp
		for i := byte(1); i < level; i++ {
			bp -= 4
			c.push32(c.Read32(bp))
		}
		c.push32(frameTemp)
	}
	c.ebp = frameTemp
	c.esp -= uint32(size)
}

func (c *CPU) execLeave() {
	c.esp = c.ebp
	c.ebp = c.pop32()
}
