// cpu.go - IA-32 CPU state, aliased registers, and guest memory
//
// (c) 2026 duoisa contributors - GPLv3 or later

// Package x86 implements a user-space interpreter for the common IA-32
// integer subset: one- and two-byte opcode maps, ModR/M + SIB addressing,
// string primitives, and a disassembler sharing the ModR/M, SIB and
// instruction-fetch helpers with execution.
package x86

import (
	"encoding/binary"
	"fmt"

	"github.com/duoisa/duoisa/fault"
)

// EFLAGS bit positions this interpreter tracks, matching the subset the
// data model calls for.
const (
	flagCF = 1 << 0
	flagPF = 1 << 2
	flagAF = 1 << 4
	flagZF = 1 << 6
	flagSF = 1 << 7
	flagTF = 1 << 8
	flagIF = 1 << 9
	flagDF = 1 << 10
	flagOF = 1 << 11
)

// CPU is one IA-32 core. The eight general registers are stored as four
// 32-bit cells (A, C, D, B) plus four pointer/index cells (SP, BP, SI, DI);
// the 8/16-bit views are computed from the same storage through the
// accessors below, never held as independent scalars, per the aliasing
// invariant.
type CPU struct {
	eax, ecx, edx, ebx uint32
	esp, ebp, esi, edi uint32

	EIP    uint32
	EFlags uint32

	Mem []byte

	// prefix state, sticky across the prefix-fetch loop and cleared once
	// the next non-prefix instruction retires.
	segOverride     int // -1 == none
	operandSize16   bool
	addressSize16   bool
	repPrefix       byte // 0 none, 0xF2 REPNE, 0xF3 REP/REPE
	lockPrefix      bool

	// code window: Step retires instructions only while EIP stays inside
	// [codeBegin, codeEnd).
	codeBegin uint32
	codeEnd   uint32

	modrmByte   byte
	modrmLoaded bool
	sibByte     byte
	sibLoaded   bool
	addr        uint32
	addrLoaded  bool

	Halted bool

	// EnvironmentCall is invoked on INT3 and on INT imm8 (any vector), the
	// x86 analogue of the RISC-V ECALL host callback.
	EnvironmentCall func(*CPU)

	running bool
}

const (
	segES = iota
	segCS
	segSS
	segDS
	segFS
	segGS
)

// memReserved is the size of the system-reserved region at the bottom of
// guest memory; code is loaded just above it.
const memReserved = 1024

// NewCPU allocates a core with the given guest memory size.
func NewCPU(memSize uint32) *CPU {
	return &CPU{Mem: make([]byte, memSize), segOverride: -1}
}

// Initialize resets the core, loads code at offset 1024, and seeds EIP and
// ESP, matching "code loaded at offset 1024; stack at top minus 16 bytes."
// It fails if the buffer is smaller than 1024+len(code)+65536 or its size
// is not a multiple of 1024, per the programmatic surface contract.
func (c *CPU) Initialize(code []byte) error {
	size := len(c.Mem)
	if size%1024 != 0 {
		return fmt.Errorf("x86: guest memory size %d is not a multiple of 1024", size)
	}
	if uint64(size) < uint64(memReserved)+uint64(len(code))+65536 {
		return fmt.Errorf("x86: guest memory of %d bytes too small for %d bytes of code plus reserve", size, len(code))
	}
	c.Reset()
	copy(c.Mem[memReserved:], code)
	c.EIP = memReserved
	c.codeBegin = memReserved
	c.codeEnd = memReserved + uint32(len(code))
	c.esp = uint32(size) - 16
	return nil
}

// Reset clears registers, flags, and prefix state.
func (c *CPU) Reset() {
	c.eax, c.ecx, c.edx, c.ebx = 0, 0, 0, 0
	c.esp, c.ebp, c.esi, c.edi = 0, 0, 0, 0
	c.EIP = 0
	c.EFlags = 0
	c.codeBegin = 0
	c.codeEnd = 0
	c.segOverride = -1
	c.operandSize16 = false
	c.addressSize16 = false
	c.repPrefix = 0
	c.lockPrefix = false
	c.Halted = false
	c.running = false
}

// --- aliased register accessors -------------------------------------------

func (c *CPU) EAX() uint32 { return c.eax }
func (c *CPU) EBX() uint32 { return c.ebx }
func (c *CPU) ECX() uint32 { return c.ecx }
func (c *CPU) EDX() uint32 { return c.edx }
func (c *CPU) ESP() uint32 { return c.esp }
func (c *CPU) EBP() uint32 { return c.ebp }
func (c *CPU) ESI() uint32 { return c.esi }
func (c *CPU) EDI() uint32 { return c.edi }

func (c *CPU) SetEAX(v uint32) { c.eax = v }
func (c *CPU) SetEBX(v uint32) { c.ebx = v }
func (c *CPU) SetECX(v uint32) { c.ecx = v }
func (c *CPU) SetEDX(v uint32) { c.edx = v }
func (c *CPU) SetESP(v uint32) { c.esp = v }
func (c *CPU) SetEBP(v uint32) { c.ebp = v }
func (c *CPU) SetESI(v uint32) { c.esi = v }
func (c *CPU) SetEDI(v uint32) { c.edi = v }

func (c *CPU) AX() uint16 { return uint16(c.eax) }
func (c *CPU) BX() uint16 { return uint16(c.ebx) }
func (c *CPU) CX() uint16 { return uint16(c.ecx) }
func (c *CPU) DX() uint16 { return uint16(c.edx) }
func (c *CPU) SP() uint16 { return uint16(c.esp) }
func (c *CPU) BP() uint16 { return uint16(c.ebp) }
func (c *CPU) SI() uint16 { return uint16(c.esi) }
func (c *CPU) DI() uint16 { return uint16(c.edi) }

func (c *CPU) SetAX(v uint16) { c.eax = (c.eax &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetBX(v uint16) { c.ebx = (c.ebx &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetCX(v uint16) { c.ecx = (c.ecx &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetDX(v uint16) { c.edx = (c.edx &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetSP(v uint16) { c.esp = (c.esp &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetBP(v uint16) { c.ebp = (c.ebp &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetSI(v uint16) { c.esi = (c.esi &^ 0xFFFF) | uint32(v) }
func (c *CPU) SetDI(v uint16) { c.edi = (c.edi &^ 0xFFFF) | uint32(v) }

func (c *CPU) AL() byte { return byte(c.eax) }
func (c *CPU) AH() byte { return byte(c.eax >> 8) }
func (c *CPU) CL() byte { return byte(c.ecx) }
func (c *CPU) CH() byte { return byte(c.ecx >> 8) }
func (c *CPU) DL() byte { return byte(c.edx) }
func (c *CPU) DH() byte { return byte(c.edx >> 8) }
func (c *CPU) BL() byte { return byte(c.ebx) }
func (c *CPU) BH() byte { return byte(c.ebx >> 8) }

func (c *CPU) SetAL(v byte) { c.eax = (c.eax &^ 0xFF) | uint32(v) }
func (c *CPU) SetAH(v byte) { c.eax = (c.eax &^ 0xFF00) | uint32(v)<<8 }
func (c *CPU) SetCL(v byte) { c.ecx = (c.ecx &^ 0xFF) | uint32(v) }
func (c *CPU) SetCH(v byte) { c.ecx = (c.ecx &^ 0xFF00) | uint32(v)<<8 }
func (c *CPU) SetDL(v byte) { c.edx = (c.edx &^ 0xFF) | uint32(v) }
func (c *CPU) SetDH(v byte) { c.edx = (c.edx &^ 0xFF00) | uint32(v)<<8 }
func (c *CPU) SetBL(v byte) { c.ebx = (c.ebx &^ 0xFF) | uint32(v) }
func (c *CPU) SetBH(v byte) { c.ebx = (c.ebx &^ 0xFF00) | uint32(v)<<8 }

func (c *CPU) getReg32(idx byte) uint32 {
	switch idx & 7 {
	case 0:
		return c.eax
	case 1:
		return c.ecx
	case 2:
		return c.edx
	case 3:
		return c.ebx
	case 4:
		return c.esp
	case 5:
		return c.ebp
	case 6:
		return c.esi
	case 7:
		return c.edi
	}
	return 0
}

func (c *CPU) setReg32(idx byte, v uint32) {
	switch idx & 7 {
	case 0:
		c.eax = v
	case 1:
		c.ecx = v
	case 2:
		c.edx = v
	case 3:
		c.ebx = v
	case 4:
		c.esp = v
	case 5:
		c.ebp = v
	case 6:
		c.esi = v
	case 7:
		c.edi = v
	}
}

func (c *CPU) getReg16(idx byte) uint16 { return uint16(c.getReg32(idx)) }
func (c *CPU) setReg16(idx byte, v uint16) {
	c.setReg32(idx, (c.getReg32(idx)&^0xFFFF)|uint32(v))
}

func (c *CPU) getReg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.AL()
	case 1:
		return c.CL()
	case 2:
		return c.DL()
	case 3:
		return c.BL()
	case 4:
		return c.AH()
	case 5:
		return c.CH()
	case 6:
		return c.DH()
	case 7:
		return c.BH()
	}
	return 0
}

func (c *CPU) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.SetAL(v)
	case 1:
		c.SetCL(v)
	case 2:
		c.SetDL(v)
	case 3:
		c.SetBL(v)
	case 4:
		c.SetAH(v)
	case 5:
		c.SetCH(v)
	case 6:
		c.SetDH(v)
	case 7:
		c.SetBH(v)
	}
}

// --- flags -----------------------------------------------------------------

func (c *CPU) getFlag(mask uint32) bool { return c.EFlags&mask != 0 }
func (c *CPU) setFlag(mask uint32, v bool) {
	if v {
		c.EFlags |= mask
	} else {
		c.EFlags &^= mask
	}
}

func (c *CPU) CF() bool { return c.getFlag(flagCF) }
func (c *CPU) PF() bool { return c.getFlag(flagPF) }
func (c *CPU) AF() bool { return c.getFlag(flagAF) }
func (c *CPU) ZF() bool { return c.getFlag(flagZF) }
func (c *CPU) SF() bool { return c.getFlag(flagSF) }
func (c *CPU) DF() bool { return c.getFlag(flagDF) }
func (c *CPU) OF() bool { return c.getFlag(flagOF) }

// --- guest memory ------------------------------------------------------------

func (c *CPU) checkBounds(addr uint32, size uint32, op string) {
	if uint64(addr)+uint64(size) > uint64(len(c.Mem)) {
		fault.Raise(op, uint64(addr))
	}
}

func (c *CPU) Read8(addr uint32) byte {
	c.checkBounds(addr, 1, "read")
	return c.Mem[addr]
}

func (c *CPU) Read16(addr uint32) uint16 {
	c.checkBounds(addr, 2, "read")
	return binary.LittleEndian.Uint16(c.Mem[addr:])
}

func (c *CPU) Read32(addr uint32) uint32 {
	c.checkBounds(addr, 4, "read")
	return binary.LittleEndian.Uint32(c.Mem[addr:])
}

func (c *CPU) Write8(addr uint32, v byte) {
	c.checkBounds(addr, 1, "write")
	c.Mem[addr] = v
}

func (c *CPU) Write16(addr uint32, v uint16) {
	c.checkBounds(addr, 2, "write")
	binary.LittleEndian.PutUint16(c.Mem[addr:], v)
}

func (c *CPU) Write32(addr uint32, v uint32) {
	c.checkBounds(addr, 4, "write")
	binary.LittleEndian.PutUint32(c.Mem[addr:], v)
}

// --- stack: ESP is the one and only architectural stack pointer ------------

func (c *CPU) push32(v uint32) {
	c.esp -= 4
	c.Write32(c.esp, v)
}

func (c *CPU) pop32() uint32 {
	v := c.Read32(c.esp)
	c.esp += 4
	return v
}

func (c *CPU) push16(v uint16) {
	c.esp -= 2
	c.Write16(c.esp, v)
}

func (c *CPU) pop16() uint16 {
	v := c.Read16(c.esp)
	c.esp += 2
	return v
}
