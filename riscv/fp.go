// fp.go - the F/D floating point extension
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

import "math"

// F registers are always stored as float64 bit patterns. Single-precision
// values are held widened to double, which sidesteps NaN-boxing; results
// are still rounded through float32 on every single-precision op.
func (c *CPU) freg(i uint32) float64       { return math.Float64frombits(c.F[i]) }
func (c *CPU) setFreg(i uint32, v float64) { c.F[i] = math.Float64bits(v) }

func (c *CPU) execLoadFP(i inst) {
	addr := c.mask(c.xreg(i.rs1()) + uint64(int64(i.immI())))
	if i.funct3() == 0b010 { // FLW
		c.setFreg(i.rd(), float64(math.Float32frombits(c.Load32(addr))))
	} else { // FLD
		c.setFreg(i.rd(), math.Float64frombits(c.Load64(addr)))
	}
}

func (c *CPU) execStoreFP(i inst) {
	addr := c.mask(c.xreg(i.rs1()) + uint64(int64(i.immS())))
	if i.funct3() == 0b010 { // FSW
		c.Store32(addr, math.Float32bits(float32(c.freg(i.rs2()))))
	} else { // FSD
		c.Store64(addr, math.Float64bits(c.freg(i.rs2())))
	}
}

// checkFPResult ORs the exception flags an operation raised into the
// sticky fcsr bits: NaN results raise NV, division by zero raises DZ, and
// an infinity produced by finite operands raises OF.
func (c *CPU) checkFPResult(result float64, divByZero bool, operands ...float64) {
	if math.IsNaN(result) {
		c.FCSR.NV = true
	}
	if divByZero {
		c.FCSR.DZ = true
	}
	finite := true
	for _, v := range operands {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			finite = false
		}
	}
	if math.IsInf(result, 0) && !divByZero && finite {
		c.FCSR.OF = true
	}
}

func (c *CPU) execOpFP(i inst) {
	single := i.fmt() == 0
	rs1, rs2 := c.freg(i.rs1()), c.freg(i.rs2())

	switch {
	case i.funct7()>>2 == 0b00000: // FADD
		r := rs1 + rs2
		c.checkFPResult(r, false, rs1, rs2)
		c.setFreg(i.rd(), c.roundToFmt(r, single))
	case i.funct7()>>2 == 0b00001: // FSUB
		r := rs1 - rs2
		c.checkFPResult(r, false, rs1, rs2)
		c.setFreg(i.rd(), c.roundToFmt(r, single))
	case i.funct7()>>2 == 0b00010: // FMUL
		r := rs1 * rs2
		c.checkFPResult(r, false, rs1, rs2)
		c.setFreg(i.rd(), c.roundToFmt(r, single))
	case i.funct7()>>2 == 0b00011: // FDIV
		dz := rs2 == 0
		r := rs1 / rs2
		c.checkFPResult(r, dz, rs1, rs2)
		c.setFreg(i.rd(), c.roundToFmt(r, single))
	case i.funct7()>>2 == 0b01011: // FSQRT
		if rs1 < 0 {
			c.FCSR.NV = true
		}
		c.setFreg(i.rd(), c.roundToFmt(math.Sqrt(rs1), single))
	case i.funct7()>>2 == 0b00100: // FSGNJ family
		c.setFreg(i.rd(), fsgnj(rs1, rs2, i.funct3()))
	case i.funct7()>>2 == 0b00101: // FMIN/FMAX
		if i.funct3() == 0 {
			c.setFreg(i.rd(), fmin2019(rs1, rs2))
		} else {
			c.setFreg(i.rd(), fmax2019(rs1, rs2))
		}
	case i.funct7()>>2 == 0b10100: // FEQ/FLT/FLE
		var r bool
		switch i.funct3() {
		case 0b010:
			r = rs1 == rs2
		case 0b001:
			r = rs1 < rs2
		case 0b000:
			r = rs1 <= rs2
		}
		if math.IsNaN(rs1) || math.IsNaN(rs2) {
			c.FCSR.NV = true
			r = false
		}
		c.setXreg(i.rd(), boolToUint(r))
	case i.funct7()>>2 == 0b11000: // FCVT.W[U]/L[U].S/D -> integer
		c.setXreg(i.rd(), c.fcvtToInt(rs1, i.rs2(), i.funct3()))
	case i.funct7()>>2 == 0b11010: // FCVT.S/D.W[U]/L[U] -> float
		c.setFreg(i.rd(), c.roundToFmt(c.fcvtFromInt(i.rs2(), i.rs1()), single))
	case i.funct7()>>2 == 0b11100: // FMV.X.W / FCLASS
		if i.funct3() == 0b000 {
			c.setXreg(i.rd(), c.mask(uint64(int64(int32(math.Float32bits(float32(rs1)))))))
		} else {
			c.setXreg(i.rd(), fclass(rs1))
		}
	case i.funct7()>>2 == 0b11110: // FMV.W.X
		bits := uint32(c.xreg(i.rs1()))
		c.setFreg(i.rd(), float64(math.Float32frombits(bits)))
	case i.funct7()>>2 == 0b01000: // FCVT.S.D / FCVT.D.S
		c.setFreg(i.rd(), c.roundToFmt(rs1, i.rs2() == 0))
	}
}

// roundToFmt narrows a result to the instruction's format, raising NX
// when single-precision rounding changed the value.
func (c *CPU) roundToFmt(v float64, single bool) float64 {
	if single {
		n := float64(float32(v))
		if n != v && !math.IsNaN(v) {
			c.FCSR.NX = true
		}
		return n
	}
	return v
}

// roundMode resolves an instruction's rm field: 0b111 selects the dynamic
// mode held in fcsr, anything else is the static mode encoded in the
// instruction itself.
func (c *CPU) roundMode(rm uint32) uint8 {
	if rm == 0b111 {
		return c.FCSR.RM
	}
	return uint8(rm)
}

// roundToInteger applies the resolved rounding mode: RNE, RTZ, RDN, RUP,
// RMM in encoding order.
func roundToInteger(v float64, mode uint8) float64 {
	switch mode {
	case 1:
		return math.Trunc(v)
	case 2:
		return math.Floor(v)
	case 3:
		return math.Ceil(v)
	case 4:
		return math.Round(v)
	default:
		return math.RoundToEven(v)
	}
}

func fsgnj(a, b float64, funct3 uint32) float64 {
	abits := math.Float64bits(a) &^ (1 << 63)
	bsign := math.Float64bits(b) & (1 << 63)
	switch funct3 {
	case 0b000: // FSGNJ
		return math.Float64frombits(abits | bsign)
	case 0b001: // FSGNJN
		return math.Float64frombits(abits | (bsign ^ (1 << 63)))
	case 0b010: // FSGNJX
		return math.Float64frombits(abits | (bsign ^ (math.Float64bits(a) & (1 << 63))))
	}
	return a
}

// fmin2019/fmax2019 implement the IEEE 754-2019 minimum/maximum rules:
// if either operand is NaN the other is returned (NaN only if both are);
// -0 is considered less than +0.
func fmin2019(a, b float64) float64 {
	if math.IsNaN(a) && math.IsNaN(b) {
		return math.NaN()
	}
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func fmax2019(a, b float64) float64 {
	if math.IsNaN(a) && math.IsNaN(b) {
		return math.NaN()
	}
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

// fclass returns the 10-bit class bitmap the ISA defines.
func fclass(v float64) uint64 {
	switch {
	case math.IsInf(v, -1):
		return 1 << 0
	case v < 0 && !isSubnormal(v):
		return 1 << 1
	case v < 0 && isSubnormal(v):
		return 1 << 2
	case v == 0 && math.Signbit(v):
		return 1 << 3
	case v == 0 && !math.Signbit(v):
		return 1 << 4
	case v > 0 && isSubnormal(v):
		return 1 << 5
	case v > 0 && !isSubnormal(v) && !math.IsInf(v, 1):
		return 1 << 6
	case math.IsInf(v, 1):
		return 1 << 7
	case math.IsNaN(v):
		if math.Float64bits(v)&(1<<51) != 0 {
			return 1 << 9 // quiet NaN
		}
		return 1 << 8 // signaling NaN
	}
	return 0
}

func isSubnormal(v float64) bool {
	bits := math.Float64bits(v)
	exp := (bits >> 52) & 0x7FF
	return exp == 0 && (bits&((1<<52)-1)) != 0
}

// fcvtToInt converts to the integer type selected by the rs2 field (W,
// WU, L, LU), rounding by the instruction's rm field. NaN and values past
// the target range raise NV and saturate; a value the rounding changed
// raises NX.
func (c *CPU) fcvtToInt(v float64, rs2 uint32, rm uint32) uint64 {
	r := roundToInteger(v, c.roundMode(rm))
	if !math.IsNaN(v) && r != v {
		c.FCSR.NX = true
	}
	switch rs2 {
	case 0: // FCVT.W
		switch {
		case math.IsNaN(v), r > math.MaxInt32:
			c.FCSR.NV = true
			return c.signExtendXLEN(math.MaxInt32)
		case r < math.MinInt32:
			c.FCSR.NV = true
			return c.signExtendXLEN(math.MinInt32)
		}
		return c.signExtendXLEN(int64(int32(r)))
	case 1: // FCVT.WU
		switch {
		case math.IsNaN(v), r > math.MaxUint32:
			c.FCSR.NV = true
			allOnes := ^uint32(0)
			return c.signExtendXLEN(int64(int32(allOnes)))
		case r < 0:
			c.FCSR.NV = true
			return 0
		}
		return c.signExtendXLEN(int64(int32(uint32(r))))
	case 2: // FCVT.L
		switch {
		case math.IsNaN(v), r >= math.MaxInt64:
			c.FCSR.NV = true
			return uint64(int64(math.MaxInt64))
		case r < math.MinInt64:
			c.FCSR.NV = true
			minInt64 := int64(math.MinInt64)
			return uint64(minInt64)
		}
		return uint64(int64(r))
	case 3: // FCVT.LU
		switch {
		case math.IsNaN(v), r >= math.MaxUint64:
			c.FCSR.NV = true
			return ^uint64(0)
		case r < 0:
			c.FCSR.NV = true
			return 0
		}
		return uint64(r)
	}
	return 0
}

func (c *CPU) fcvtFromInt(rs2 uint32, rs1 uint32) float64 {
	x := c.xreg(rs1)
	switch rs2 {
	case 0: // W
		return float64(int32(x))
	case 1: // WU
		return float64(uint32(x))
	case 2: // L
		return float64(int64(x))
	case 3: // LU
		return float64(x)
	}
	return 0
}

func (c *CPU) execFusedMA(i inst) {
	rs1, rs2, rs3 := c.freg(i.rs1()), c.freg(i.rs2()), c.freg(i.rs3())
	single := i.fmt() == 0
	var r float64
	switch i.opcode() {
	case opMADD:
		r = rs1*rs2 + rs3
	case opMSUB:
		r = rs1*rs2 - rs3
	case opNMSUB:
		r = -(rs1 * rs2) + rs3
	case opNMADD:
		r = -(rs1 * rs2) - rs3
	}
	c.checkFPResult(r, false, rs1, rs2, rs3)
	c.setFreg(i.rd(), c.roundToFmt(r, single))
}
