// alu.go - arithmetic, logic, and flag computation at width W
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

// addSub performs a+b+cin or a-b-cin (when sub) at width T and reports
// the carry/borrow and signed-overflow outs. One generic body serves all
// three widths; cin is 0 or 1 and threads ADC/SBB's carry through without
// losing the wrap case where b+cin overflows the width.
func addSub[T uintN](a, b, cin T, sub bool) (result T, carry, overflow bool) {
	if sub {
		mid := a - b
		result = mid - cin
		carry = a < b || mid < cin
		signA, signB, signR := msb(a), msb(b), msb(result)
		overflow = signA != signB && signR != signA
	} else {
		mid := a + b
		result = mid + cin
		carry = mid < a || result < mid
		signA, signB, signR := msb(a), msb(b), msb(result)
		overflow = signA == signB && signR != signA
	}
	return
}

func msb[T uintN](v T) bool {
	switch vt := any(v).(type) {
	case uint8:
		return vt&0x80 != 0
	case uint16:
		return vt&0x8000 != 0
	default:
		return vt.(uint32)&0x80000000 != 0
	}
}

func parity(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

// updateEFlagsArith computes dest OP src at the operand width and sets
// CF/PF/AF/ZF/SF/OF.
func (c *CPU) updateEFlagsArith(size int, a, b uint32, sub bool) uint32 {
	return c.updateEFlagsArithCarry(size, a, b, 0, sub)
}

// updateEFlagsArithCarry is the carry-in form backing ADC and SBB.
func (c *CPU) updateEFlagsArithCarry(size int, a, b, cin uint32, sub bool) uint32 {
	var result uint32
	var carry, overflow bool
	switch size {
	case 8:
		r, cf, of := addSub(uint8(a), uint8(b), uint8(cin), sub)
		result, carry, overflow = uint32(r), cf, of
	case 16:
		r, cf, of := addSub(uint16(a), uint16(b), uint16(cin), sub)
		result, carry, overflow = uint32(r), cf, of
	default:
		r, cf, of := addSub(uint32(a), uint32(b), cin, sub)
		result, carry, overflow = r, cf, of
	}
	c.setFlag(flagCF, carry)
	c.setFlag(flagOF, overflow)
	c.setFlag(flagZF, result&widthMask(size) == 0)
	c.setFlag(flagSF, result&signBit(size) != 0)
	c.setFlag(flagPF, parity(byte(result)))
	if sub {
		c.setFlag(flagAF, a&0xF < (b&0xF)+cin)
	} else {
		c.setFlag(flagAF, (a&0xF)+(b&0xF)+cin > 0xF)
	}
	return result
}

// updateEFlagsLogic sets flags after AND/OR/XOR/TEST: CF=OF=0, AF
// undefined (left unchanged), ZF/SF/PF from the result.
func (c *CPU) updateEFlagsLogic(size int, result uint32) {
	c.setFlag(flagCF, false)
	c.setFlag(flagOF, false)
	c.setFlag(flagZF, result&widthMask(size) == 0)
	c.setFlag(flagSF, result&signBit(size) != 0)
	c.setFlag(flagPF, parity(byte(result)))
}

func signExtend(size int, v uint32) int32 {
	switch size {
	case 8:
		return int32(int8(v))
	case 16:
		return int32(int16(v))
	default:
		return int32(v)
	}
}
