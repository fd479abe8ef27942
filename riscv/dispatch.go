// dispatch.go - opcode dispatch and the Issue/Run step engine
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

// opcodeTable is the first-level dispatch table, indexed by the 7-bit
// opcode field. Unknown opcodes fall through to hint, the architectural
// no-op catch-all. Constructed once and never mutated afterward.
var opcodeTable = map[uint32]func(*CPU, inst){
	opLOAD:      (*CPU).execLoad,
	opLOAD_FP:   (*CPU).execLoadFP,
	opMISC_MEM:  func(*CPU, inst) {}, // FENCE/FENCE.I: no cache/ordering model, architectural no-op here
	opOP_IMM:    (*CPU).execOpImm,
	opAUIPC:     (*CPU).execAuipc,
	opOP_IMM_32: (*CPU).execOpImm32,
	opSTORE:     (*CPU).execStore,
	opSTORE_FP:  (*CPU).execStoreFP,
	opAMO:       (*CPU).execAmo,
	opOP:        (*CPU).execOp,
	opLUI:       (*CPU).execLui,
	opOP_32:     (*CPU).execOp32,
	opMADD:      (*CPU).execFusedMA,
	opMSUB:      (*CPU).execFusedMA,
	opNMSUB:     (*CPU).execFusedMA,
	opNMADD:     (*CPU).execFusedMA,
	opOP_FP:     (*CPU).execOpFP,
	opBRANCH:    (*CPU).execBranch,
	opJALR:      (*CPU).execJalr,
	opJAL:       (*CPU).execJal,
	opSYSTEM:    (*CPU).execSystem,
}

func hint(*CPU, inst) {}

// lengthClass reports how many bytes the next instruction occupies, using
// the standard low-bits length-class rule: bits[1:0] != 11 marks a
// 16-bit (compressed) encoding; this interpreter does not decode
// compressed semantics, so such words are treated as HINT of length 2.
func lengthClass(low16 uint16) int {
	if low16&0x3 != 0x3 {
		return 2
	}
	return 4
}

// Issue fetches and executes exactly one instruction, returning false when
// pc has left the code window (the caller should stop looping).
func (c *CPU) Issue() bool {
	if c.PC < c.Begin || c.PC >= c.End {
		return false
	}

	low16 := c.Load16(c.PC)
	length := lengthClass(low16)

	if length == 2 {
		// Compressed encodings are recognized for length only and
		// treated as architectural no-ops.
		c.PC += 2
		c.X[0] = 0
		return true
	}

	i := inst(c.Load32(c.PC))

	pcBefore := c.PC
	if handler, ok := opcodeTable[i.opcode()]; ok {
		handler(c, i)
	} else {
		hint(c, i)
	}
	if c.PC == pcBefore {
		c.PC += uint64(length)
	}

	c.X[0] = 0
	return true
}

// Run steps until pc leaves [Begin, End) or a handler halts it, under the
// fault sentry. It returns the fault, if any; a nil return with the CPU
// still inside the window means a handler requested a stop.
func (c *CPU) Run() error {
	return guardedRun(func() {
		c.running = true
		for c.running {
			if !c.Issue() {
				c.running = false
			}
		}
	})
}

// RunOnce executes a single instruction under the fault sentry. The
// returned bool is false when pc was already outside the code window, so
// no instruction ran.
func (c *CPU) RunOnce() (bool, error) {
	var ok bool
	err := guardedRun(func() { ok = c.Issue() })
	return ok, err
}

// Stop requests that Run return at the next instruction boundary.
func (c *CPU) Stop() { c.running = false }
