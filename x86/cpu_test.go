// cpu_test.go - end-to-end scenarios and universal invariants
//
// (c) 2026 duoisa contributors - GPLv3 or later

package x86

import "testing"

func newTestCPU(t *testing.T, code []byte) *CPU {
	t.Helper()
	c := NewCPU(1 << 17)
	if err := c.Initialize(code); err != nil {
		t.Fatal(err)
	}
	return c
}

// TestHelloArithmeticScenario runs MOV EAX,7 ; MOV EBX,5 ; ADD EAX,EBX and
// checks the retired register state.
func TestHelloArithmeticScenario(t *testing.T) {
	code := []byte{
		0xB8, 0x07, 0x00, 0x00, 0x00, // MOV EAX, 7
		0xBB, 0x05, 0x00, 0x00, 0x00, // MOV EBX, 5
		0x01, 0xD8, // ADD EAX, EBX
	}
	c := newTestCPU(t, code)
	start := c.EIP
	for i := 0; i < 3; i++ {
		if !c.Step() {
			t.Fatalf("step %d: core halted early", i)
		}
	}
	if c.EAX() != 12 {
		t.Fatalf("EAX = %d, want 12", c.EAX())
	}
	if c.EBX() != 5 {
		t.Fatalf("EBX = %d, want 5", c.EBX())
	}
	if c.EIP != start+12 {
		t.Fatalf("EIP = 0x%x, want 0x%x", c.EIP, start+12)
	}
}

// TestXorSelfClearsFlags checks the flag image XOR EAX, EAX leaves.
func TestXorSelfClearsFlags(t *testing.T) {
	c := newTestCPU(t, []byte{0x31, 0xC0})
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0 {
		t.Fatalf("EAX = %d, want 0", c.EAX())
	}
	if !c.ZF() || c.CF() || c.OF() || c.SF() || !c.PF() {
		t.Fatalf("flags ZF=%v CF=%v OF=%v SF=%v PF=%v, want ZF=1 CF=0 OF=0 SF=0 PF=1",
			c.ZF(), c.CF(), c.OF(), c.SF(), c.PF())
	}
}

// TestDisassembleMatchesHelloArithmetic disassembles the same bytes
// TestHelloArithmeticScenario executes, without perturbing register state.
func TestDisassembleMatchesHelloArithmetic(t *testing.T) {
	code := []byte{
		0xB8, 0x07, 0x00, 0x00, 0x00,
		0xBB, 0x05, 0x00, 0x00, 0x00,
		0x01, 0xD8,
	}
	c := newTestCPU(t, code)
	eaxBefore, ebxBefore, eipBefore := c.EAX(), c.EBX(), c.EIP

	addr := c.EIP
	var texts []string
	for i := 0; i < 3; i++ {
		text, length := Disassemble(c, addr)
		texts = append(texts, text)
		addr += uint32(length)
	}

	if c.EAX() != eaxBefore || c.EBX() != ebxBefore || c.EIP != eipBefore {
		t.Fatalf("disassembly perturbed state: EAX=%d EBX=%d EIP=0x%x", c.EAX(), c.EBX(), c.EIP)
	}
	want := []string{"MOV EAX, 07", "MOV EBX, 05", "ADD EAX, EBX"}
	for i, w := range want {
		if texts[i] != w {
			t.Fatalf("mnemonic %d = %q, want %q", i, texts[i], w)
		}
	}
}

// TestAliasedRegistersStayConsistent is the universal invariant: writing
// AL is immediately visible through AX and EAX.
func TestAliasedRegistersStayConsistent(t *testing.T) {
	c := NewCPU(4096)
	c.SetEAX(0xAABBCCDD)
	c.SetAL(0x12)
	want := (uint32(0xAABBCCDD) &^ 0xFF) | 0x12
	if c.EAX() != want {
		t.Fatalf("EAX after SetAL = 0x%x, want 0x%x", c.EAX(), want)
	}
	if c.AX() != uint16(want) {
		t.Fatalf("AX after SetAL = 0x%x, want 0x%x", c.AX(), uint16(want))
	}
}

// TestIncBoundary: INC 0x7FFFFFFF -> 0x80000000 with OF=1, SF=1, ZF=0,
// CF unaffected.
func TestIncBoundary(t *testing.T) {
	// INC EAX is opcode 0x40.
	c := newTestCPU(t, []byte{0x40})
	c.SetEAX(0x7FFFFFFF)
	c.EFlags = 0 // CF starts clear
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0x80000000 {
		t.Fatalf("EAX = 0x%x, want 0x80000000", c.EAX())
	}
	if !c.OF() || !c.SF() || c.ZF() {
		t.Fatalf("OF=%v SF=%v ZF=%v, want OF=1 SF=1 ZF=0", c.OF(), c.SF(), c.ZF())
	}
	if c.CF() {
		t.Fatal("CF must be unaffected by INC")
	}
}

// TestPushPopRoundTrip: PUSH r; POP r leaves r and ESP unchanged.
func TestPushPopRoundTrip(t *testing.T) {
	// PUSH EAX (0x50); POP EAX (0x58).
	c := newTestCPU(t, []byte{0x50, 0x58})
	c.SetEAX(0x12345678)
	espBefore := c.ESP()
	if !c.Step() || !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0x12345678 {
		t.Fatalf("EAX = 0x%x, want 0x12345678", c.EAX())
	}
	if c.ESP() != espBefore {
		t.Fatalf("ESP = 0x%x, want 0x%x", c.ESP(), espBefore)
	}
}

// TestStringMovsHonorsDirectionFlag checks that MOVSB decrements ESI/EDI
// when DF is set.
func TestStringMovsHonorsDirectionFlag(t *testing.T) {
	c := newTestCPU(t, []byte{0xA4}) // MOVSB
	c.SetESI(2000)
	c.SetEDI(3000)
	c.setFlag(flagDF, true)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.ESI() != 1999 || c.EDI() != 2999 {
		t.Fatalf("ESI=%d EDI=%d, want 1999/2999 (DF=1 decrements)", c.ESI(), c.EDI())
	}
}

func TestStringMovsForwardWhenDFClear(t *testing.T) {
	c := newTestCPU(t, []byte{0xA4}) // MOVSB
	c.SetESI(2000)
	c.SetEDI(3000)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.ESI() != 2001 || c.EDI() != 3001 {
		t.Fatalf("ESI=%d EDI=%d, want 2001/3001 (DF=0 increments)", c.ESI(), c.EDI())
	}
}

// TestMulIsMultiplication: MUL EBX widens the product into EDX:EAX.
func TestMulIsMultiplication(t *testing.T) {
	// MUL EBX is opcode 0xF7 /4.
	c := newTestCPU(t, []byte{0xF7, 0xE3})
	c.SetEAX(6)
	c.SetEBX(7)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 42 || c.EDX() != 0 {
		t.Fatalf("EAX:EDX = %d:%d, want 42:0", c.EAX(), c.EDX())
	}
}

// TestNotIsBitwiseComplement: NOT flips every bit of the operand.
func TestNotIsBitwiseComplement(t *testing.T) {
	// NOT EAX is opcode 0xF7 /2.
	c := newTestCPU(t, []byte{0xF7, 0xD0})
	c.SetEAX(0x0000FFFF)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0xFFFF0000 {
		t.Fatalf("EAX = 0x%x, want 0xFFFF0000", c.EAX())
	}
}

// TestShldFillsFromSource: bits SHLD shifts out of dest are replaced by
// src's high bits, not zero.
func TestShldFillsFromSource(t *testing.T) {
	// SHLD EAX, EBX, 4 is 0x0F 0xA4 /r ib with modrm 11 011 000 (reg=EBX, rm=EAX).
	c := newTestCPU(t, []byte{0x0F, 0xA4, 0xD8, 0x04})
	c.SetEAX(0x0000000F)
	c.SetEBX(0xA0000000)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0x000000FA {
		t.Fatalf("EAX = 0x%x, want 0xFA", c.EAX())
	}
	if c.CF() {
		t.Fatal("CF should be clear: bit 28 of dest was 0")
	}
}

// TestShrdFillsFromSource is SHLD's mirror: vacated high bits come from src's
// low bits shifted up, not zero.
func TestShrdFillsFromSource(t *testing.T) {
	// SHRD EAX, EBX, 4 is 0x0F 0xAC /r ib with modrm 11 011 000 (reg=EBX, rm=EAX).
	c := newTestCPU(t, []byte{0x0F, 0xAC, 0xD8, 0x04})
	c.SetEAX(0xF0000000)
	c.SetEBX(0x0000000A)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0xAF000000 {
		t.Fatalf("EAX = 0x%x, want 0xAF000000", c.EAX())
	}
	if c.CF() {
		t.Fatal("CF should be clear: bit 3 of dest was 0")
	}
}

// TestAdcCarriesThroughWidthOverflow: ADC AL, 0xFF with CF set wraps and
// must report carry-out even though 0xFF+1 overflows the byte width.
func TestAdcCarriesThroughWidthOverflow(t *testing.T) {
	// ADC AL, 0xFF is 0x14 0xFF.
	c := newTestCPU(t, []byte{0x14, 0xFF})
	c.SetAL(0x05)
	c.setFlag(flagCF, true)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.AL() != 0x05 {
		t.Fatalf("AL = 0x%x, want 0x05 (0x05+0xFF+1 mod 256)", c.AL())
	}
	if !c.CF() {
		t.Fatal("CF must be set: the sum exceeded 8 bits")
	}
}

// TestRunStopsAtCodeWindowEnd: Run retires the loaded program and stops
// once EIP walks past the last code byte, without needing a HLT.
func TestRunStopsAtCodeWindowEnd(t *testing.T) {
	code := []byte{
		0xB8, 0x07, 0x00, 0x00, 0x00, // MOV EAX, 7
		0x40, // INC EAX
	}
	c := newTestCPU(t, code)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.EAX() != 8 {
		t.Fatalf("EAX = %d, want 8", c.EAX())
	}
	if c.EIP != 1024+uint32(len(code)) {
		t.Fatalf("EIP = 0x%x, want 0x%x", c.EIP, 1024+len(code))
	}
}

// TestRepStosFillsAndDrainsECX: REP STOSB stores AL ECX times and leaves
// ECX at zero.
func TestRepStosFillsAndDrainsECX(t *testing.T) {
	c := newTestCPU(t, []byte{0xF3, 0xAA}) // REP STOSB
	c.SetEAX(0x41)
	c.SetECX(4)
	c.SetEDI(4096)
	if !c.Step() {
		t.Fatal("step failed")
	}
	if c.ECX() != 0 {
		t.Fatalf("ECX = %d, want 0", c.ECX())
	}
	for i := uint32(0); i < 4; i++ {
		if got := c.Read8(4096 + i); got != 0x41 {
			t.Fatalf("mem[%d] = 0x%x, want 0x41", 4096+i, got)
		}
	}
	if c.EDI() != 4100 {
		t.Fatalf("EDI = %d, want 4100", c.EDI())
	}
}

// TestMovsxVersusMovzx: sign- and zero-extension differ on negative
// inputs; widening 0x80 must give 0xFFFFFF80 vs 0x00000080.
func TestMovsxVersusMovzx(t *testing.T) {
	// MOVSX EAX, BL ; MOVZX EDX, BL.
	c := newTestCPU(t, []byte{0x0F, 0xBE, 0xC3, 0x0F, 0xB6, 0xD3})
	c.SetBL(0x80)
	if !c.Step() || !c.Step() {
		t.Fatal("step failed")
	}
	if c.EAX() != 0xFFFFFF80 {
		t.Fatalf("MOVSX EAX = 0x%x, want 0xFFFFFF80", c.EAX())
	}
	if c.EDX() != 0x00000080 {
		t.Fatalf("MOVZX EDX = 0x%x, want 0x80", c.EDX())
	}
}

// TestDisassembleMemoryOperandFormat renders a SIB memory operand in the
// DWORD PTR [index*scale+base+disp] shape.
func TestDisassembleMemoryOperandFormat(t *testing.T) {
	// MOV EAX, [ECX*2+EBX+8] is 0x8B 0x44 0x4B 0x08.
	c := newTestCPU(t, []byte{0x8B, 0x44, 0x4B, 0x08})
	text, length := Disassemble(c, c.EIP)
	if length != 4 {
		t.Fatalf("length = %d, want 4", length)
	}
	if text != "MOV EAX, DWORD PTR [ECX*2+EBX+08]" {
		t.Fatalf("text = %q", text)
	}
}
