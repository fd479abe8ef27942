// bitops.go - BT/BTS/BTR/BTC and BSF/BSR
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

import "math/bits"

// bitTest copies bit (src mod width) of dest into CF, then for non-BT
// forms (op: 's' set, 'r' reset, 'c' complement) updates that bit.
func (c *CPU) bitTest(size int, dest uint32, bit uint32, op byte) uint32 {
	bit %= uint32(size)
	set := dest&(1<<bit) != 0
	c.setFlag(flagCF, set)
	switch op {
	case 's':
		return dest | (1 << bit)
	case 'r':
		return dest &^ (1 << bit)
	case 'c':
		return dest ^ (1 << bit)
	}
	return dest
}

// bsf/bsr set ZF when src is zero; otherwise DEST receives the index of
// the lowest/highest set bit.
func (c *CPU) bsf(size int, src uint32) (uint32, bool) {
	src &= widthMask(size)
	if src == 0 {
		return 0, true
	}
	return uint32(bits.TrailingZeros32(src)), false
}

func (c *CPU) bsr(size int, src uint32) (uint32, bool) {
	src &= widthMask(size)
	if src == 0 {
		return 0, true
	}
	return uint32(31 - bits.LeadingZeros32(src)), false
}

// execBswap reverses the byte order of a 32-bit register.
func (c *CPU) execBswap(reg byte) {
	c.setReg32(reg, bits.ReverseBytes32(c.getReg32(reg)))
}
