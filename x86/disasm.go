// disasm.go - a disassembler sharing the addressing-mode decode with Step
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

import (
	"fmt"
	"strings"
)

var aluMnemonic = [8]string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}

var reg32Names = [8]string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI"}
var reg16Names = [8]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}
var reg8Names = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}

func regName(size int, idx byte) string {
	switch size {
	case 8:
		return reg8Names[idx&7]
	case 16:
		return reg16Names[idx&7]
	default:
		return reg32Names[idx&7]
	}
}

// decoder is a side-effect-free addressing-mode cursor over the same guest
// memory Step uses: it shares effectiveAddress/fetchModRM/fetch8 etc. by
// embedding a CPU whose register file is a throwaway copy, so Disassemble
// never mutates the real machine - the "two paths sharing Decode" design.
type decoder struct {
	CPU
}

func newDecoder(c *CPU, eip uint32) *decoder {
	d := &decoder{}
	d.Mem = c.Mem
	d.eax, d.ecx, d.edx, d.ebx = c.eax, c.ecx, c.edx, c.ebx
	d.esp, d.ebp, d.esi, d.edi = c.esp, c.ebp, c.esi, c.edi
	d.EIP = eip
	d.segOverride = -1
	return d
}

// immText renders an immediate as zero-padded hex, using the smallest of
// 2, 4, or 8 digits that fits.
func immText(v uint32) string {
	switch {
	case v <= 0xFF:
		return fmt.Sprintf("%02X", v)
	case v <= 0xFFFF:
		return fmt.Sprintf("%04X", v)
	default:
		return fmt.Sprintf("%08X", v)
	}
}

// rmText renders the current ModR/M+SIB operand as assembler text without
// performing any memory access: a register name when mod is 3, otherwise
// "BYTE|WORD|DWORD PTR [index*scale+base+disp]" with a [0] fallback when
// no components remain.
func (d *decoder) rmText(size int) string {
	if d.modRMMod() == 3 {
		return regName(size, d.modRMRM())
	}
	var ptr string
	switch size {
	case 8:
		ptr = "BYTE PTR "
	case 16:
		ptr = "WORD PTR "
	default:
		ptr = "DWORD PTR "
	}

	rm := d.modRMRM()
	var parts []string
	if rm == 4 {
		scale := d.sibScale()
		index := d.sibIndex()
		base := d.sibBase()
		if index != 4 {
			parts = append(parts, fmt.Sprintf("%s*%d", reg32Names[index], 1<<scale))
		}
		if !(base == 5 && d.modRMMod() == 0) {
			parts = append(parts, reg32Names[base])
		}
	} else if !(rm == 5 && d.modRMMod() == 0) {
		parts = append(parts, reg32Names[rm])
	}

	var disp int32
	hasDisp := false
	switch d.modRMMod() {
	case 0:
		if rm == 5 || (rm == 4 && d.sibBase() == 5) {
			disp = int32(d.fetch32())
			hasDisp = true
		}
	case 1:
		disp = int32(int8(d.fetch8()))
		hasDisp = true
	case 2:
		disp = int32(d.fetch32())
		hasDisp = true
	}

	body := strings.Join(parts, "+")
	switch {
	case hasDisp && body == "":
		body = immText(uint32(disp))
	case hasDisp && disp > 0:
		body += "+" + immText(uint32(disp))
	case hasDisp && disp < 0:
		body += "-" + immText(uint32(-disp))
	}
	if body == "" {
		body = "0"
	}
	return ptr + "[" + body + "]"
}

// Disassemble decodes exactly one instruction at eip and returns its
// mnemonic text and length in bytes.
func Disassemble(c *CPU, eip uint32) (string, int) {
	d := newDecoder(c, eip)
	start := eip
	text := d.decodeOne()
	return text, int(d.EIP - start)
}

// DisassembleN produces a multi-line transcript of count instructions
// starting at eip without advancing or otherwise mutating c. Each line
// follows the "%08X : hex bytes  MNEMONIC operands" layout, the hex byte
// block padded to 16 columns.
func DisassembleN(c *CPU, eip uint32, count int) string {
	var out strings.Builder
	addr := eip
	for i := 0; i < count; i++ {
		text, length := Disassemble(c, addr)
		if length <= 0 {
			length = 1
		}
		hexParts := make([]string, 0, length)
		for j := 0; j < length; j++ {
			hexParts = append(hexParts, fmt.Sprintf("%02X", c.Read8(addr+uint32(j))))
		}
		fmt.Fprintf(&out, "%08X : %-16s %s\n", addr, strings.Join(hexParts, " "), text)
		addr += uint32(length)
	}
	return out.String()
}

func (d *decoder) decodeOne() string {
	op := d.fetch8()

	for _, f := range aluFamilies {
		if op >= f.base && op <= f.base+5 {
			return d.decodeAluForm(op-f.base, aluMnemonic[f.kind])
		}
	}

	switch {
	case op >= 0x40 && op <= 0x47:
		return "INC " + reg32Names[op-0x40]
	case op >= 0x48 && op <= 0x4F:
		return "DEC " + reg32Names[op-0x48]
	case op >= 0x50 && op <= 0x57:
		return "PUSH " + reg32Names[op-0x50]
	case op >= 0x58 && op <= 0x5F:
		return "POP " + reg32Names[op-0x58]
	case op >= 0x70 && op <= 0x7F:
		rel := int8(d.fetch8())
		return fmt.Sprintf("J%s %08X", condName[op-0x70], uint32(int32(d.EIP)+int32(rel)))
	case op >= 0xB0 && op <= 0xB7:
		imm := d.fetch8()
		return fmt.Sprintf("MOV %s, %s", reg8Names[op-0xB0], immText(uint32(imm)))
	case op >= 0xB8 && op <= 0xBF:
		imm := d.fetch32()
		return fmt.Sprintf("MOV %s, %s", reg32Names[op-0xB8], immText(imm))
	}

	switch op {
	case 0x0F:
		return d.decodeTwoByte()
	case 0x68:
		imm := d.fetch32()
		return "PUSH " + immText(imm)
	case 0x6A:
		imm := d.fetch8()
		return "PUSH " + immText(uint32(imm))
	case 0x80:
		return d.decodeGroup1(8, 8)
	case 0x81:
		return d.decodeGroup1(32, 32)
	case 0x83:
		return d.decodeGroup1(32, 8)
	case 0x88:
		d.fetchModRM()
		rm := d.rmText(8)
		return fmt.Sprintf("MOV %s, %s", rm, reg8Names[d.modRMReg()])
	case 0x89:
		d.fetchModRM()
		rm := d.rmText(32)
		return fmt.Sprintf("MOV %s, %s", rm, reg32Names[d.modRMReg()])
	case 0x8A:
		d.fetchModRM()
		rm := d.rmText(8)
		return fmt.Sprintf("MOV %s, %s", reg8Names[d.modRMReg()], rm)
	case 0x8B:
		d.fetchModRM()
		rm := d.rmText(32)
		return fmt.Sprintf("MOV %s, %s", reg32Names[d.modRMReg()], rm)
	case 0x8D:
		d.fetchModRM()
		rm := d.rmText(32)
		return fmt.Sprintf("LEA %s, %s", reg32Names[d.modRMReg()], rm)
	case 0x90:
		return "NOP"
	case 0x98:
		return "CWDE"
	case 0x99:
		return "CDQ"
	case 0xC3:
		return "RET"
	case 0xC6:
		d.fetchModRM()
		rm := d.rmText(8)
		imm := d.fetch8()
		return fmt.Sprintf("MOV %s, %s", rm, immText(uint32(imm)))
	case 0xC7:
		d.fetchModRM()
		rm := d.rmText(32)
		imm := d.fetch32()
		return fmt.Sprintf("MOV %s, %s", rm, immText(imm))
	case 0xC0:
		return d.decodeGroup2(8, 'i')
	case 0xC1:
		return d.decodeGroup2(32, 'i')
	case 0xD0:
		return d.decodeGroup2(8, '1')
	case 0xD1:
		return d.decodeGroup2(32, '1')
	case 0xD2:
		return d.decodeGroup2(8, 'c')
	case 0xD3:
		return d.decodeGroup2(32, 'c')
	case 0xE8:
		rel := int32(d.fetch32())
		return fmt.Sprintf("CALL %08X", uint32(int32(d.EIP)+rel))
	case 0xE9:
		rel := int32(d.fetch32())
		return fmt.Sprintf("JMP %08X", uint32(int32(d.EIP)+rel))
	case 0xEB:
		rel := int8(d.fetch8())
		return fmt.Sprintf("JMP %08X", uint32(int32(d.EIP)+int32(rel)))
	case 0xF4:
		return "HLT"
	case 0xF6:
		return d.decodeGroup3(8)
	case 0xF7:
		return d.decodeGroup3(32)
	case 0xFE:
		d.fetchModRM()
		if d.modRMReg() == 0 {
			return "INC " + d.rmText(8)
		}
		return "DEC " + d.rmText(8)
	case 0xFF:
		return d.decodeGroup5()
	}
	return fmt.Sprintf("DB 0x%02X", op)
}

var shiftMnemonic = [8]string{"ROL", "ROR", "RCL", "RCR", "SHL", "SHR", "SAL", "SAR"}

func (d *decoder) decodeGroup2(size int, countFrom byte) string {
	d.fetchModRM()
	mnemonic := shiftMnemonic[d.modRMReg()&7]
	rm := d.rmText(size)
	switch countFrom {
	case 'i':
		return fmt.Sprintf("%s %s, %s", mnemonic, rm, immText(uint32(d.fetch8())))
	case 'c':
		return fmt.Sprintf("%s %s, CL", mnemonic, rm)
	default:
		return fmt.Sprintf("%s %s, 01", mnemonic, rm)
	}
}

func (d *decoder) decodeTwoByte() string {
	op := d.fetch8()
	switch {
	case op >= 0x80 && op <= 0x8F:
		rel := int32(d.fetch32())
		return fmt.Sprintf("J%s %08X", condName[op-0x80], uint32(int32(d.EIP)+rel))
	case op >= 0x90 && op <= 0x9F:
		d.fetchModRM()
		return fmt.Sprintf("SET%s %s", condName[op-0x90], d.rmText(8))
	case op >= 0xC8 && op <= 0xCF:
		return "BSWAP " + reg32Names[op-0xC8]
	}
	switch op {
	case 0xA4, 0xA5, 0xAC, 0xAD:
		mnemonic := "SHLD"
		if op >= 0xAC {
			mnemonic = "SHRD"
		}
		d.fetchModRM()
		rm := d.rmText(32)
		reg := reg32Names[d.modRMReg()]
		if op&1 == 0 {
			return fmt.Sprintf("%s %s, %s, %s", mnemonic, rm, reg, immText(uint32(d.fetch8())))
		}
		return fmt.Sprintf("%s %s, %s, CL", mnemonic, rm, reg)
	case 0xAF:
		d.fetchModRM()
		return fmt.Sprintf("IMUL %s, %s", reg32Names[d.modRMReg()], d.rmText(32))
	case 0xB6:
		d.fetchModRM()
		return fmt.Sprintf("MOVZX %s, %s", reg32Names[d.modRMReg()], d.rmText(8))
	case 0xB7:
		d.fetchModRM()
		return fmt.Sprintf("MOVZX %s, %s", reg32Names[d.modRMReg()], d.rmText(16))
	case 0xBE:
		d.fetchModRM()
		return fmt.Sprintf("MOVSX %s, %s", reg32Names[d.modRMReg()], d.rmText(8))
	case 0xBF:
		d.fetchModRM()
		return fmt.Sprintf("MOVSX %s, %s", reg32Names[d.modRMReg()], d.rmText(16))
	}
	return fmt.Sprintf("DB 0x0F 0x%02X", op)
}

func (d *decoder) decodeAluForm(variant byte, mnemonic string) string {
	switch variant {
	case 0:
		d.fetchModRM()
		return fmt.Sprintf("%s %s, %s", mnemonic, d.rmText(8), reg8Names[d.modRMReg()])
	case 1:
		d.fetchModRM()
		return fmt.Sprintf("%s %s, %s", mnemonic, d.rmText(32), reg32Names[d.modRMReg()])
	case 2:
		d.fetchModRM()
		return fmt.Sprintf("%s %s, %s", mnemonic, reg8Names[d.modRMReg()], d.rmText(8))
	case 3:
		d.fetchModRM()
		return fmt.Sprintf("%s %s, %s", mnemonic, reg32Names[d.modRMReg()], d.rmText(32))
	case 4:
		imm := d.fetch8()
		return fmt.Sprintf("%s AL, %s", mnemonic, immText(uint32(imm)))
	default:
		imm := d.fetch32()
		return fmt.Sprintf("%s EAX, %s", mnemonic, immText(imm))
	}
}

func (d *decoder) decodeGroup1(size, immSize int) string {
	d.fetchModRM()
	mnemonic := aluMnemonic[d.modRMReg()&7]
	rm := d.rmText(size)
	var imm uint32
	if immSize == 8 {
		imm = uint32(int32(int8(d.fetch8())))
	} else {
		imm = d.fetch32()
	}
	return fmt.Sprintf("%s %s, %s", mnemonic, rm, immText(imm))
}

func (d *decoder) decodeGroup3(size int) string {
	d.fetchModRM()
	rm := d.rmText(size)
	switch d.modRMReg() {
	case 0, 1:
		var imm uint32
		if size == 8 {
			imm = uint32(d.fetch8())
		} else {
			imm = d.fetch32()
		}
		return fmt.Sprintf("TEST %s, %s", rm, immText(imm))
	case 2:
		return "NOT " + rm
	case 3:
		return "NEG " + rm
	case 4:
		return "MUL " + rm
	case 5:
		return "IMUL " + rm
	case 6:
		return "DIV " + rm
	default:
		return "IDIV " + rm
	}
}

func (d *decoder) decodeGroup5() string {
	d.fetchModRM()
	rm := d.rmText(32)
	switch d.modRMReg() {
	case 0:
		return "INC " + rm
	case 1:
		return "DEC " + rm
	case 2:
		return "CALL " + rm
	case 4:
		return "JMP " + rm
	case 6:
		return "PUSH " + rm
	}
	return "DB 0xFF"
}
