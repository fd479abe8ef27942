// dispatch.go - the one-byte and two-byte opcode tables and Step/Run
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

var baseOps [256]func(*CPU)
var twoByteOps [256]func(*CPU)

func init() {
	buildBaseOps()
	buildTwoByteOps()
}

func buildBaseOps() {
	for _, f := range aluFamilies {
		(&CPU{}).registerAluFamily(&baseOps, f.base, f.kind)
	}

	for r := byte(0); r < 8; r++ {
		r := r
		baseOps[0x40+r] = func(c *CPU) { c.regIncDec(r, true) }
		baseOps[0x48+r] = func(c *CPU) { c.regIncDec(r, false) }
		baseOps[0x50+r] = func(c *CPU) { c.push32(c.getReg32(r)) }
		baseOps[0x58+r] = func(c *CPU) { c.setReg32(r, c.pop32()) }
		baseOps[0xB0+r] = func(c *CPU) { c.setReg8(r, c.fetch8()) }
		baseOps[0xB8+r] = func(c *CPU) { c.setReg32(r, c.fetch32()) }
	}
	for r := byte(1); r < 8; r++ {
		r := r
		baseOps[0x90+r] = func(c *CPU) {
			size := c.operandSize()
			a, b := c.readReg(size, 0), c.readReg(size, r)
			c.writeReg(size, 0, b)
			c.writeReg(size, r, a)
		}
	}

	baseOps[0x0F] = func(c *CPU) { c.stepTwoByte() }

	baseOps[0x60] = func(c *CPU) { c.execPushad() }
	baseOps[0x61] = func(c *CPU) { c.execPopad() }

	baseOps[0x68] = func(c *CPU) { c.push32(c.fetch32()) }
	baseOps[0x6A] = func(c *CPU) { c.push32(uint32(int32(int8(c.fetch8())))) }

	for code := byte(0x70); code <= 0x7F; code++ {
		code := code
		baseOps[code] = func(c *CPU) { c.execJccShort(code) }
	}

	baseOps[0x80] = func(c *CPU) { c.execGroup1(8, 8) }
	baseOps[0x81] = func(c *CPU) { c.execGroup1(c.operandSize(), opSizeImm(c.operandSize())) }
	baseOps[0x83] = func(c *CPU) { c.execGroup1(c.operandSize(), 8) }

	baseOps[0x84] = func(c *CPU) {
		c.fetchModRM()
		c.updateEFlagsLogic(8, uint32(c.readRM8())&uint32(c.getReg8(c.modRMReg())))
	}
	baseOps[0x85] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		c.updateEFlagsLogic(size, c.readRM(size)&c.readReg(size, c.modRMReg()))
	}
	baseOps[0x86] = func(c *CPU) { c.execXchg(8) }
	baseOps[0x87] = func(c *CPU) { c.execXchg(c.operandSize()) }

	baseOps[0x88] = func(c *CPU) { c.fetchModRM(); c.writeRM8(c.getReg8(c.modRMReg())) }
	baseOps[0x89] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		c.writeRM(size, c.readReg(size, c.modRMReg()))
	}
	baseOps[0x8A] = func(c *CPU) { c.fetchModRM(); c.setReg8(c.modRMReg(), c.readRM8()) }
	baseOps[0x8B] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		c.writeReg(size, c.modRMReg(), c.readRM(size))
	}
	baseOps[0x8D] = func(c *CPU) { c.execLea() }
	baseOps[0x8F] = func(c *CPU) {
		c.decodeModRMOperand()
		c.writeRM32(c.pop32())
	}

	baseOps[0x69] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		src := c.readRM(size)
		var imm uint32
		if size == 16 {
			imm = uint32(c.fetch16())
		} else {
			imm = c.fetch32()
		}
		c.execImul3(size, src, imm)
	}
	baseOps[0x6B] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		src := c.readRM(size)
		imm := uint32(int32(int8(c.fetch8())))
		c.execImul3(size, src, imm)
	}

	baseOps[0x90] = func(c *CPU) {}
	baseOps[0x98] = func(c *CPU) { c.execCbwCwde() }
	baseOps[0x99] = func(c *CPU) { c.execCwdCdq() }
	baseOps[0x9C] = func(c *CPU) { c.push32(c.EFlags | 0x2) }
	baseOps[0x9D] = func(c *CPU) { c.EFlags = c.pop32() }
	baseOps[0x9E] = func(c *CPU) { c.execSahf() }
	baseOps[0x9F] = func(c *CPU) { c.execLahf() }

	baseOps[0xA0] = func(c *CPU) { c.SetAL(c.Read8(c.fetch32())) }
	baseOps[0xA1] = func(c *CPU) {
		size := c.operandSize()
		c.writeReg(size, 0, c.readMemAt(size, c.fetch32()))
	}
	baseOps[0xA2] = func(c *CPU) { c.Write8(c.fetch32(), c.AL()) }
	baseOps[0xA3] = func(c *CPU) {
		size := c.operandSize()
		c.writeMemAt(size, c.fetch32(), c.readReg(size, 0))
	}

	baseOps[0xA4] = func(c *CPU) { c.stringOpWithRep(false, func() bool { c.execMovs(8); return false }) }
	baseOps[0xA5] = func(c *CPU) {
		size := c.operandSize()
		c.stringOpWithRep(false, func() bool { c.execMovs(size); return false })
	}
	baseOps[0xA6] = func(c *CPU) { c.stringOpWithRep(true, func() bool { return c.execCmps(8) }) }
	baseOps[0xA7] = func(c *CPU) {
		size := c.operandSize()
		c.stringOpWithRep(true, func() bool { return c.execCmps(size) })
	}
	baseOps[0xA8] = func(c *CPU) { c.updateEFlagsLogic(8, uint32(c.AL())&uint32(c.fetch8())) }
	baseOps[0xA9] = func(c *CPU) {
		size := c.operandSize()
		var imm uint32
		if size == 16 {
			imm = uint32(c.fetch16())
		} else {
			imm = c.fetch32()
		}
		c.updateEFlagsLogic(size, c.readReg(size, 0)&imm)
	}
	baseOps[0xAA] = func(c *CPU) { c.stringOpWithRep(false, func() bool { c.execStos(8); return false }) }
	baseOps[0xAB] = func(c *CPU) {
		size := c.operandSize()
		c.stringOpWithRep(false, func() bool { c.execStos(size); return false })
	}
	baseOps[0xAC] = func(c *CPU) {
		c.stringOpWithRep(false, func() bool { c.execLods(8); return false })
	}
	baseOps[0xAD] = func(c *CPU) {
		size := c.operandSize()
		c.stringOpWithRep(false, func() bool { c.execLods(size); return false })
	}
	baseOps[0xAE] = func(c *CPU) { c.stringOpWithRep(true, func() bool { return c.execScas(8) }) }
	baseOps[0xAF] = func(c *CPU) {
		size := c.operandSize()
		c.stringOpWithRep(true, func() bool { return c.execScas(size) })
	}

	baseOps[0xC0] = func(c *CPU) {
		c.decodeModRMOperand()
		n := uint32(c.fetch8())
		c.execGroup2Imm(8, n)
	}
	baseOps[0xC1] = func(c *CPU) {
		size := c.operandSize()
		c.decodeModRMOperand()
		n := uint32(c.fetch8())
		c.execGroup2Imm(size, n)
	}
	baseOps[0xC2] = func(c *CPU) { c.execRetImm() }
	baseOps[0xC3] = func(c *CPU) { c.execRet() }
	baseOps[0xC6] = func(c *CPU) {
		c.decodeModRMOperand()
		imm := c.fetch8()
		c.writeRM8(imm)
	}
	baseOps[0xC7] = func(c *CPU) {
		size := c.operandSize()
		c.decodeModRMOperand()
		var imm uint32
		if size == 16 {
			imm = uint32(c.fetch16())
		} else {
			imm = c.fetch32()
		}
		c.writeRM(size, imm)
	}
	baseOps[0xC8] = func(c *CPU) { c.execEnter() }
	baseOps[0xC9] = func(c *CPU) { c.execLeave() }
	baseOps[0xD7] = func(c *CPU) { c.execXlat() }
	baseOps[0xCC] = func(c *CPU) {
		if c.EnvironmentCall != nil {
			c.EnvironmentCall(c)
		}
	}
	baseOps[0xCD] = func(c *CPU) {
		c.fetch8()
		if c.EnvironmentCall != nil {
			c.EnvironmentCall(c)
		}
	}

	for _, code := range []byte{0xD0, 0xD1, 0xD2, 0xD3} {
		code := code
		baseOps[code] = func(c *CPU) {
			size := 8
			if code == 0xD1 || code == 0xD3 {
				size = c.operandSize()
			}
			count := uint32(1)
			if code == 0xD2 || code == 0xD3 {
				count = uint32(c.CL())
			}
			c.execGroup2(size, count)
		}
	}

	baseOps[0xE0] = func(c *CPU) { c.execLoopne() }
	baseOps[0xE1] = func(c *CPU) { c.execLoope() }
	baseOps[0xE2] = func(c *CPU) { c.execLoop() }
	baseOps[0xE3] = func(c *CPU) { c.execJecxz() }
	baseOps[0xE8] = func(c *CPU) { c.execCallNear() }
	baseOps[0xE9] = func(c *CPU) { c.execJmpNear() }
	baseOps[0xEB] = func(c *CPU) { c.execJmpShort() }

	baseOps[0xF4] = func(c *CPU) { c.Halted = true }
	baseOps[0xF5] = func(c *CPU) { c.setFlag(flagCF, !c.CF()) }
	baseOps[0xF6] = func(c *CPU) { c.execGroup3(8) }
	baseOps[0xF7] = func(c *CPU) { c.execGroup3(c.operandSize()) }
	baseOps[0xF8] = func(c *CPU) { c.setFlag(flagCF, false) }
	baseOps[0xF9] = func(c *CPU) { c.setFlag(flagCF, true) }
	baseOps[0xFA] = func(c *CPU) { c.setFlag(flagIF, false) }
	baseOps[0xFB] = func(c *CPU) { c.setFlag(flagIF, true) }
	baseOps[0xFC] = func(c *CPU) { c.setFlag(flagDF, false) }
	baseOps[0xFD] = func(c *CPU) { c.setFlag(flagDF, true) }
	baseOps[0xFE] = func(c *CPU) {
		c.fetchModRM()
		reg := c.modRMReg()
		c.writeRM8(byte(c.incDec(8, reg == 0)))
	}
	baseOps[0xFF] = func(c *CPU) { c.execGroup5() }
}

// regIncDec implements the register-form INC/DEC opcodes (0x40-0x4F),
// which unlike group5's Eb/Ev forms carry no ModR/M byte: the register is
// encoded directly in the opcode's low 3 bits.
func (c *CPU) regIncDec(reg byte, inc bool) {
	size := c.operandSize()
	v := c.readReg(size, reg)
	savedCF := c.CF()
	var r uint32
	if inc {
		r = c.updateEFlagsArith(size, v, 1, false)
	} else {
		r = c.updateEFlagsArith(size, v, 1, true)
	}
	c.setFlag(flagCF, savedCF)
	c.writeReg(size, reg, r)
}

// execPushad pushes the eight general registers in EAX..EDI order, with
// the pre-push ESP in ESP's slot; execPopad restores them, discarding the
// saved ESP.
func (c *CPU) execPushad() {
	saved := c.esp
	c.push32(c.eax)
	c.push32(c.ecx)
	c.push32(c.edx)
	c.push32(c.ebx)
	c.push32(saved)
	c.push32(c.ebp)
	c.push32(c.esi)
	c.push32(c.edi)
}

func (c *CPU) execPopad() {
	c.edi = c.pop32()
	c.esi = c.pop32()
	c.ebp = c.pop32()
	c.pop32() // skip the saved ESP
	c.ebx = c.pop32()
	c.edx = c.pop32()
	c.ecx = c.pop32()
	c.eax = c.pop32()
}

func opSizeImm(size int) int {
	if size == 16 {
		return 16
	}
	return 32
}

func buildTwoByteOps() {
	for code := byte(0x80); code <= 0x8F; code++ {
		code := code
		twoByteOps[code] = func(c *CPU) { c.execJccNear(code) }
	}
	for code := byte(0x90); code <= 0x9F; code++ {
		code := code
		twoByteOps[code] = func(c *CPU) { c.execSetcc(code) }
	}
	twoByteOps[0xA3] = func(c *CPU) { c.twoByteBitTest('t') }
	twoByteOps[0xAB] = func(c *CPU) { c.twoByteBitTest('s') }
	twoByteOps[0xB3] = func(c *CPU) { c.twoByteBitTest('r') }
	twoByteOps[0xBB] = func(c *CPU) { c.twoByteBitTest('c') }
	twoByteOps[0xBA] = func(c *CPU) { c.execGroup8Imm() }
	twoByteOps[0xBC] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		idx, zf := c.bsf(size, c.readRM(size))
		c.setFlag(flagZF, zf)
		if !zf {
			c.writeReg(size, c.modRMReg(), idx)
		}
	}
	twoByteOps[0xBD] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		idx, zf := c.bsr(size, c.readRM(size))
		c.setFlag(flagZF, zf)
		if !zf {
			c.writeReg(size, c.modRMReg(), idx)
		}
	}
	twoByteOps[0xB6] = func(c *CPU) { c.execMovzx(8) }
	twoByteOps[0xB7] = func(c *CPU) { c.execMovzx(16) }
	twoByteOps[0xBE] = func(c *CPU) { c.execMovsx(8) }
	twoByteOps[0xBF] = func(c *CPU) { c.execMovsx(16) }
	for r := byte(0); r < 8; r++ {
		r := r
		twoByteOps[0xC8+r] = func(c *CPU) { c.execBswap(r) }
	}
	twoByteOps[0xA4] = func(c *CPU) { c.execShldOp(false) }
	twoByteOps[0xA5] = func(c *CPU) { c.execShldOp(true) }
	twoByteOps[0xAC] = func(c *CPU) { c.execShrdOp(false) }
	twoByteOps[0xAD] = func(c *CPU) { c.execShrdOp(true) }
	twoByteOps[0xAF] = func(c *CPU) {
		size := c.operandSize()
		c.fetchModRM()
		dest := c.readReg(size, c.modRMReg())
		src := c.readRM(size)
		var product int64
		switch size {
		case 16:
			product = int64(int16(dest)) * int64(int16(src))
		default:
			product = int64(int32(dest)) * int64(int32(src))
		}
		r := uint32(product) & widthMask(size)
		c.writeReg(size, c.modRMReg(), r)
		overflow := product != int64(signExtend(size, r))
		c.setFlag(flagCF, overflow)
		c.setFlag(flagOF, overflow)
	}
}

func (c *CPU) twoByteBitTest(op byte) {
	size := c.operandSize()
	c.fetchModRM()
	dest := c.readRM(size)
	bit := c.readReg(size, c.modRMReg())
	r := c.bitTest(size, dest, bit, op)
	if op != 't' {
		c.writeRM(size, r)
	}
}

func (c *CPU) execGroup8Imm() {
	size := c.operandSize()
	c.fetchModRM()
	reg := c.modRMReg()
	dest := c.readRM(size)
	imm := uint32(c.fetch8())
	var op byte
	switch reg {
	case 4:
		op = 't'
	case 5:
		op = 's'
	case 6:
		op = 'r'
	case 7:
		op = 'c'
	}
	r := c.bitTest(size, dest, imm, op)
	if op != 't' {
		c.writeRM(size, r)
	}
}

// execImul3 implements the three-operand IMUL forms (0x69/0x6B): dest
// (the ModR/M reg field) receives src*imm at width size, with CF/OF set
// when the full-width product doesn't fit back in size.
func (c *CPU) execImul3(size int, src, imm uint32) {
	var product int64
	switch size {
	case 16:
		product = int64(int16(src)) * int64(int16(imm))
	default:
		product = int64(int32(src)) * int64(int32(imm))
	}
	r := uint32(product) & widthMask(size)
	c.writeReg(size, c.modRMReg(), r)
	overflow := product != int64(signExtend(size, r))
	c.setFlag(flagCF, overflow)
	c.setFlag(flagOF, overflow)
}

func (c *CPU) execGroup2Imm(size int, count uint32) {
	c.execGroup2(size, count&0x1F)
}

// decodeModRMOperand fetches the ModR/M byte and, for a memory operand,
// the trailing SIB/displacement bytes and caches the effective address -
// advancing EIP past all of them before any opcodes that place an
// immediate after the operand (0xC0/C1/C6/C7) read it.
func (c *CPU) decodeModRMOperand() {
	c.fetchModRM()
	if c.modRMMod() != 3 {
		c.effectiveAddress()
	}
}

// stringOpWithRep runs one string primitive honoring the sticky REP
// prefix: REP (0xF3) on MOVS/STOS/LODS repeats unconditionally; on
// CMPS/SCAS (isCompare) REPE (0xF3) and REPNE (0xF2) repeat while ZF
// matches.
func (c *CPU) stringOpWithRep(isCompare bool, run func() bool) {
	switch c.repPrefix {
	case 0:
		run()
	case 0xF3:
		if isCompare {
			c.repConditional(run, true)
		} else {
			c.repUnconditional(func() { run() })
		}
	case 0xF2:
		c.repConditional(run, false)
	}
}

// Step executes exactly one instruction: consume prefixes, dispatch the
// opcode, then clear the sticky mode bits. It returns false once the core
// has halted or EIP has left the code window.
func (c *CPU) Step() bool {
	if c.Halted {
		return false
	}
	if c.codeEnd != 0 && (c.EIP < c.codeBegin || c.EIP >= c.codeEnd) {
		return false
	}

	c.segOverride = -1
	c.operandSize16 = false
	c.addressSize16 = false
	c.repPrefix = 0
	c.lockPrefix = false
	c.modrmLoaded = false
	c.sibLoaded = false
	c.addrLoaded = false

	for {
		op := c.fetch8()
		switch op {
		case 0x26:
			c.segOverride = segES
		case 0x2E:
			c.segOverride = segCS
		case 0x36:
			c.segOverride = segSS
		case 0x3E:
			c.segOverride = segDS
		case 0x64:
			c.segOverride = segFS
		case 0x65:
			c.segOverride = segGS
		case 0x66:
			c.operandSize16 = true
		case 0x67:
			c.addressSize16 = true
		case 0xF0:
			c.lockPrefix = true
		case 0xF2:
			c.repPrefix = 0xF2
		case 0xF3:
			c.repPrefix = 0xF3
		default:
			if handler := baseOps[op]; handler != nil {
				handler(c)
			}
			c.operandSize16 = false
			c.repPrefix = 0
			return true
		}
	}
}

func (c *CPU) stepTwoByte() {
	op := c.fetch8()
	if handler := twoByteOps[op]; handler != nil {
		handler(c)
	}
}

// Run steps until Halted or a handler requests a stop, under the fault
// sentry.
func (c *CPU) Run() error {
	return guardedRun(func() {
		c.running = true
		for c.running && !c.Halted {
			if !c.Step() {
				c.running = false
			}
		}
	})
}

// RunOnce executes a single instruction under the fault sentry. The
// returned bool reports whether the core can continue.
func (c *CPU) RunOnce() (bool, error) {
	var ok bool
	err := guardedRun(func() { ok = c.Step() })
	return ok, err
}

func (c *CPU) Stop() { c.running = false }
