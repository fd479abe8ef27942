// cpu_test.go - end-to-end scenarios and universal invariants
//
// (c) 2026 duoisa contributors - GPLv3 or later

package riscv

import "testing"

func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeB(rs1, rs2 uint32, funct3 uint32, imm int32) uint32 {
	u := uint32(imm)
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3F
	bits4_1 := (u >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opBRANCH
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encodeI(opOP_IMM, 0, rd, rs1, imm) }
func add(rd, rs1, rs2 uint32) uint32        { return encodeR(opOP, 0, 0, rd, rs1, rs2) }
func beq(rs1, rs2 uint32, imm int32) uint32 { return encodeB(rs1, rs2, 0, imm) }

func lrw(rd, rs1 uint32) uint32 { return encodeR(opAMO, 0b010, 0b0001000, rd, rs1, 0) }
func scw(rd, rs1, rs2 uint32) uint32 {
	return encodeR(opAMO, 0b010, 0b0001100, rd, rs1, rs2)
}

func putWords(buf []byte, words ...uint32) {
	for idx, w := range words {
		buf[idx*4] = byte(w)
		buf[idx*4+1] = byte(w >> 8)
		buf[idx*4+2] = byte(w >> 16)
		buf[idx*4+3] = byte(w >> 24)
	}
}

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	c := NewCPU(64, 4096)
	return c
}

func TestArithmeticScenario(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 12)
	putWords(prog, addi(1, 0, 7), addi(2, 0, 5), add(3, 1, 2))
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[1] != 7 || c.X[2] != 5 || c.X[3] != 12 {
		t.Fatalf("x1=%d x2=%d x3=%d", c.X[1], c.X[2], c.X[3])
	}
	if c.PC != c.Begin+12 {
		t.Fatalf("pc=%d want %d", c.PC, c.Begin+12)
	}
}

func TestBranchScenario(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 16)
	putWords(prog,
		addi(1, 0, 3),
		beq(1, 1, 8),
		addi(1, 0, 99),
		addi(2, 0, 4),
	)
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[1] != 3 {
		t.Fatalf("x1=%d want 3 (99 store must be skipped)", c.X[1])
	}
	if c.X[2] != 4 {
		t.Fatalf("x2=%d want 4", c.X[2])
	}
}

func TestLRSCScenario(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 12)
	putWords(prog,
		lrw(1, 10),
		addi(2, 1, 1),
		scw(3, 10, 2),
	)
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	dataAddr := uint64(2048)
	c.X[10] = dataAddr
	c.Store32(dataAddr, 0)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if got := c.Load32(dataAddr); got != 1 {
		t.Fatalf("*x10 = %d, want 1", got)
	}
	if c.X[3] != 0 {
		t.Fatalf("x3 = %d, want 0 (SC success)", c.X[3])
	}
}

func TestX0AlwaysZero(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 4)
	putWords(prog, addi(0, 0, 42))
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[0] != 0 {
		t.Fatalf("x0 = %d, want 0", c.X[0])
	}
}

func encodeS(rs1, rs2, funct3 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opSTORE
}

func slt(rd, rs1, rs2 uint32) uint32 { return encodeR(opOP, 0b010, 0, rd, rs1, rs2) }
func sw(rs1, rs2 uint32, imm int32) uint32 {
	return encodeS(rs1, rs2, 0b010, imm)
}

// TestSCWithoutReservationFails: a store-conditional with no prior
// load-reserved writes 1 to rd and leaves memory untouched.
func TestSCWithoutReservationFails(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 4)
	putWords(prog, scw(3, 10, 2))
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	dataAddr := uint64(2048)
	c.X[10] = dataAddr
	c.X[2] = 99
	c.Store32(dataAddr, 77)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[3] != 1 {
		t.Fatalf("x3 = %d, want 1 (SC failure)", c.X[3])
	}
	if got := c.Load32(dataAddr); got != 77 {
		t.Fatalf("*x10 = %d, want 77 (memory unchanged)", got)
	}
}

// TestStoreInvalidatesReservation: a plain store to the reserved address
// between LR and SC makes the SC fail.
func TestStoreInvalidatesReservation(t *testing.T) {
	c := newTestCPU(t)
	prog := make([]byte, 16)
	putWords(prog,
		lrw(1, 10),       // x1 = *x10, reserve
		addi(2, 1, 5),    // x2 = x1 + 5
		sw(10, 2, 0),     // *x10 = x2, drops the reservation
		scw(3, 10, 2),    // must fail
	)
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	dataAddr := uint64(2048)
	c.X[10] = dataAddr
	c.Store32(dataAddr, 10)
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[3] != 1 {
		t.Fatalf("x3 = %d, want 1 (SC after a bracketing store fails)", c.X[3])
	}
	if got := c.Load32(dataAddr); got != 15 {
		t.Fatalf("*x10 = %d, want 15 (only the plain store landed)", got)
	}
}

// TestRV32SignedCompare: on a 32-bit hart, registers holding negative
// values compare as signed even though the cells are stored zero-extended.
func TestRV32SignedCompare(t *testing.T) {
	c := NewCPU(32, 4096)
	prog := make([]byte, 8)
	putWords(prog,
		addi(1, 0, -1),
		slt(2, 1, 0), // x2 = (-1 < 0)
	)
	if err := c.Initialize(0, prog); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if c.X[1] != 0xFFFFFFFF {
		t.Fatalf("x1 = %#x, want 0xFFFFFFFF", c.X[1])
	}
	if c.X[2] != 1 {
		t.Fatalf("x2 = %d, want 1 (signed -1 < 0)", c.X[2])
	}
}

// TestRV32DivSpecialCases: the division special cases hold at XLEN=32,
// where MIN_INT is 0x80000000.
func TestRV32DivSpecialCases(t *testing.T) {
	c := NewCPU(32, 4096)
	if got := c.mask(c.mulDivOp(0b100, 0x80000000, 0xFFFFFFFF)); got != 0x80000000 {
		t.Fatalf("DIV INT32_MIN / -1 = %#x, want 0x80000000", got)
	}
	if got := c.mask(c.mulDivOp(0b110, 0x80000000, 0xFFFFFFFF)); got != 0 {
		t.Fatalf("REM INT32_MIN / -1 = %d, want 0", got)
	}
	if got := c.mask(c.mulDivOp(0b100, 7, 0)); got != 0xFFFFFFFF {
		t.Fatalf("DIV by zero = %#x, want -1", got)
	}
	if got := c.mask(c.mulDivOp(0b001, 0xFFFFFFFF, 2)); got != 0xFFFFFFFF {
		t.Fatalf("MULH -1 * 2 = %#x, want 0xFFFFFFFF (upper half of -2)", got)
	}
}

func TestDivByZero(t *testing.T) {
	c := newTestCPU(t)
	if got := c.mulDivOp(0b100, 7, 0); got != ^uint64(0) {
		t.Fatalf("DIV by zero = %d, want -1", got)
	}
	if got := c.mulDivOp(0b110, 7, 0); got != 7 {
		t.Fatalf("REM by zero = %d, want dividend 7", got)
	}
}

func TestDivOverflow(t *testing.T) {
	c := newTestCPU(t)
	minInt := uint64(1) << 63
	if got := c.mulDivOp(0b100, minInt, ^uint64(0)); got != minInt {
		t.Fatalf("DIV INT_MIN / -1 = %#x, want INT_MIN", got)
	}
	if got := c.mulDivOp(0b110, minInt, ^uint64(0)); got != 0 {
		t.Fatalf("REM INT_MIN / -1 = %d, want 0", got)
	}
}
