// main.go - a thin host harness for the riscv package
//
// (c) 2026 duoisa contributors - GPLv3 or later

// Command riscvrun loads a flat RISC-V binary into a hart, runs it (or
// single-steps it interactively), and dumps the register file. It is the
// host side of the interpreter: program loading, a step/run driver, and
// the ECALL/EBREAK callback slots.
package main

import (
	"bufio"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/duoisa/duoisa/riscv"
)

func main() {
	var xlen int
	var memSize uint64
	var loadAddr uint64
	var step bool
	var script string

	root := &cobra.Command{
		Use:   "riscvrun <program.bin>",
		Short: "Run a flat RISC-V binary under the riscv package interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], xlen, memSize, loadAddr, step, script)
		},
	}
	root.Flags().IntVar(&xlen, "xlen", 64, "integer register width: 32 or 64")
	root.Flags().Uint64Var(&memSize, "mem-size", 1<<20, "guest memory size in bytes")
	root.Flags().Uint64Var(&loadAddr, "load", 0, "byte offset to load the program at")
	root.Flags().BoolVar(&step, "step", false, "single-step interactively, pausing for a keypress between instructions")
	root.Flags().StringVar(&script, "script", "", "Lua script providing on_ecall(a0)/on_ebreak(pc) handlers for the host callbacks")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "riscvrun:", err)
		os.Exit(1)
	}
}

func run(path string, xlen int, memSize, loadAddr uint64, step bool, script string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cpu := riscv.NewCPU(xlen, memSize)
	if err := cpu.Initialize(loadAddr, code); err != nil {
		return err
	}

	console, closeConsole, err := newLuaConsole(script)
	if err != nil {
		return err
	}
	if closeConsole != nil {
		defer closeConsole()
	}
	cpu.EnvironmentCall = func(c *riscv.CPU) {
		if console != nil {
			console.callHook("on_ecall", uint64(c.X[10]))
			return
		}
		fmt.Printf("ecall: a0=0x%x a7=0x%x\n", c.X[10], c.X[17])
	}
	cpu.EnvironmentBreakpoint = func(c *riscv.CPU) {
		if console != nil {
			console.callHook("on_ebreak", c.PC)
			return
		}
		fmt.Printf("ebreak at pc=0x%x\n", c.PC)
	}

	if step {
		if err := runInteractive(cpu); err != nil {
			return err
		}
	} else if err := cpu.Run(); err != nil {
		dumpRegisters(cpu)
		return err
	}

	dumpRegisters(cpu)
	return nil
}

// runInteractive single-steps the hart, pausing for a keypress between
// instructions when stdin is a terminal (raw mode via x/term).
func runInteractive(cpu *riscv.CPU) error {
	fd := int(os.Stdin.Fd())
	isTerminal := term.IsTerminal(fd)

	reader := bufio.NewReader(os.Stdin)
	for {
		if cpu.PC < cpu.Begin || cpu.PC >= cpu.End {
			return nil
		}
		fmt.Printf("pc=0x%08x\n", cpu.PC)
		if isTerminal {
			state, err := term.MakeRaw(fd)
			if err == nil {
				_, _ = reader.ReadByte()
				_ = term.Restore(fd, state)
			}
		}
		ok, err := cpu.RunOnce()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func dumpRegisters(cpu *riscv.CPU) {
	names := [32]string{
		"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
		"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
		"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
		"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
	}
	fmt.Printf("pc = 0x%016x\n", cpu.PC)
	for i := 0; i < 32; i += 4 {
		for j := 0; j < 4; j++ {
			fmt.Printf("x%-2d(%-3s)=0x%016x  ", i+j, names[i+j], cpu.X[i+j])
		}
		fmt.Println()
	}
}

// luaConsole wraps an embedded Lua state used to script the host
// callbacks, so the host policy can change without recompiling.
type luaConsole struct {
	L *lua.LState
}

func newLuaConsole(path string) (*luaConsole, func(), error) {
	if path == "" {
		return nil, nil, nil
	}
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("loading lua script %s: %w", path, err)
	}
	return &luaConsole{L: L}, L.Close, nil
}

func (c *luaConsole) callHook(name string, arg uint64) {
	fn := c.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return
	}
	if err := c.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(arg)); err != nil {
		fmt.Fprintf(os.Stderr, "riscvrun: lua hook %s: %v\n", name, err)
	}
}
