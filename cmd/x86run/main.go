// main.go - a thin host harness for the x86 package
//
// (c) 2026 duoisa contributors - GPLv3 or later

// Command x86run loads a flat IA-32 binary into a core and either
// disassembles it without running it, or runs or single-steps it, printing
// a register dump when it stops.
package main

import (
	"bufio"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/duoisa/duoisa/x86"
)

func main() {
	var memSize uint32
	var disasmCount int
	var step bool
	var script string

	root := &cobra.Command{
		Use:   "x86run <program.bin>",
		Short: "Run a flat IA-32 binary under the x86 package interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], memSize, disasmCount, step, script)
		},
	}
	root.Flags().Uint32Var(&memSize, "mem-size", 1<<20, "guest memory size in bytes (must be a multiple of 1024)")
	root.Flags().IntVar(&disasmCount, "disasm", 0, "disassemble this many instructions instead of running")
	root.Flags().BoolVar(&step, "step", false, "single-step interactively, pausing for a keypress between instructions")
	root.Flags().StringVar(&script, "script", "", "Lua script providing an on_int(eax) handler for the host INT callback")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "x86run:", err)
		os.Exit(1)
	}
}

func run(path string, memSize uint32, disasmCount int, step bool, script string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cpu := x86.NewCPU(memSize)
	if err := cpu.Initialize(code); err != nil {
		return err
	}

	if disasmCount > 0 {
		fmt.Print(x86.DisassembleN(cpu, cpu.EIP, disasmCount))
		return nil
	}

	console, closeConsole, err := newLuaConsole(script)
	if err != nil {
		return err
	}
	if closeConsole != nil {
		defer closeConsole()
	}
	cpu.EnvironmentCall = func(c *x86.CPU) {
		if console != nil {
			console.callHook("on_int", uint64(c.EAX()))
			return
		}
		fmt.Printf("int: eax=0x%x\n", c.EAX())
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

// runInteractive single-steps the core, pausing for a keypress between
// instructions when stdin is a terminal (raw mode via x/term).
func runInteractive(cpu *x86.CPU) error {
	fd := int(os.Stdin.Fd())
	isTerminal := term.IsTerminal(fd)

	reader := bufio.NewReader(os.Stdin)
	for {
		if cpu.Halted {
			return nil
		}
		fmt.Printf("eip=0x%08x\n", cpu.EIP)
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

func dumpRegisters(cpu *x86.CPU) {
	fmt.Printf("eip=0x%08x eflags=0x%08x  CF=%v ZF=%v SF=%v OF=%v PF=%v AF=%v DF=%v\n",
		cpu.EIP, cpu.EFlags, cpu.CF(), cpu.ZF(), cpu.SF(), cpu.OF(), cpu.PF(), cpu.AF(), cpu.DF())
	fmt.Printf("eax=0x%08x ebx=0x%08x ecx=0x%08x edx=0x%08x\n", cpu.EAX(), cpu.EBX(), cpu.ECX(), cpu.EDX())
	fmt.Printf("esp=0x%08x ebp=0x%08x esi=0x%08x edi=0x%08x\n", cpu.ESP(), cpu.EBP(), cpu.ESI(), cpu.EDI())
}

// luaConsole wraps an embedded Lua state used to script the host INT
// callback, so the host policy can change without recompiling.
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
		fmt.Fprintf(os.Stderr, "x86run: lua hook %s: %v\n", name, err)
	}
}
