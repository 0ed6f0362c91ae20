// Package vmcli implements an interactive console for the bare NeoVM
// (§4 virtual machine), the way the teacher's cli/vm package wraps
// pkg/vm for manual script debugging. This module carries no
// compiler, NEF, or manifest packages (confirmed absent — SPEC_FULL.md
// scopes out "alternative VM dialects" and contract tooling), so
// unlike the teacher's 1400-line console this one only ever deals in
// raw bytecode: load a hex/base64 script, step or run it, and inspect
// the stack, gas, and instruction pointer as it goes.
package vmcli

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli"

	"github.com/noriachain/neonode/pkg/vm"
	"github.com/noriachain/neonode/pkg/vm/opcode"
)

// Command returns the "vm" subcommand wiring this console into
// cmd/neonode's command tree.
func Command() cli.Command {
	return cli.Command{
		Name:      "vm",
		Usage:     "Start an interactive NeoVM console",
		UsageText: "neonode vm",
		Action:    run,
	}
}

type console struct {
	vm  *vm.VM
	out io.Writer
}

func run(ctx *cli.Context) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:      "\033[32mng-vm>\033[0m ",
		HistoryFile: "",
	})
	if err != nil {
		return cli.NewExitError(fmt.Errorf("initializing readline: %w", err), 1)
	}
	defer l.Close()

	c := &console{out: l.Stdout()}
	fmt.Fprintln(c.out, "NeoVM console. Type 'help' for a command list, 'exit' to quit.")
	for {
		line, err := l.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := c.handle(fields[0], fields[1:]); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintln(c.out, "error:", err)
		}
	}
}

var errExit = fmt.Errorf("exit")

func (c *console) handle(cmd string, args []string) error {
	switch cmd {
	case "exit", "quit":
		return errExit
	case "help":
		c.help()
	case "load":
		return c.load(args)
	case "run":
		return c.run()
	case "step":
		return c.step(args)
	case "ip":
		c.ip()
	case "stack":
		c.stack()
	case "gas":
		fmt.Fprintln(c.out, "gas consumed:", c.vmOrNil().gasConsumed())
	case "state":
		fmt.Fprintln(c.out, "state:", c.vmOrNil().stateString())
	case "ops":
		c.ops()
	default:
		fmt.Fprintf(c.out, "unknown command %q, type 'help'\n", cmd)
	}
	return nil
}

func (c *console) help() {
	fmt.Fprintln(c.out, `commands:
  load <hex|base64>   load a raw script into a fresh VM
  run                 run the loaded script to completion (or FAULT/BREAK)
  step [n]            execute n instructions (default 1)
  ip                  print the instruction pointer and next opcode
  stack               print the evaluation stack, top first
  gas                 print gas consumed so far
  state               print the VM's run state (NONE/HALT/FAULT/BREAK)
  ops                 disassemble the loaded script
  exit                quit the console`)
}

func (c *console) load(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <hex|base64>")
	}
	script, err := decodeScript(args[0])
	if err != nil {
		return err
	}
	c.vm = vm.New()
	c.vm.Load(script)
	fmt.Fprintf(c.out, "loaded %d-byte script, READY\n", len(script))
	return nil
}

func decodeScript(s string) ([]byte, error) {
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("can't decode %q as hex or base64", s)
}

func (c *console) run() error {
	v := c.vm
	if v == nil {
		return fmt.Errorf("no script loaded")
	}
	v.Run()
	c.reportOutcome()
	return nil
}

func (c *console) step(args []string) error {
	v := c.vm
	if v == nil {
		return fmt.Errorf("no script loaded")
	}
	n := 1
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[0], err)
		}
		n = parsed
	}
	for i := 0; i < n && v.Ready(); i++ {
		v.Step()
	}
	c.reportOutcome()
	return nil
}

func (c *console) reportOutcome() {
	v := c.vm
	fmt.Fprintln(c.out, "state:", v.State())
	if v.State() == vm.StateFault {
		fmt.Fprintln(c.out, "fault:", v.FaultException())
	}
}

func (c *console) ip() {
	v := c.vm
	if v == nil || v.Context() == nil {
		fmt.Fprintln(c.out, "no script loaded")
		return
	}
	ctx := v.Context()
	if ctx.AtEnd() {
		fmt.Fprintln(c.out, "at end of script")
		return
	}
	fmt.Fprintf(c.out, "ip %d: %s\n", ctx.IP(), ctx.NextInstruction())
}

func (c *console) stack() {
	v := c.vm
	if v == nil {
		fmt.Fprintln(c.out, "no script loaded")
		return
	}
	items := v.Estack().Items()
	if len(items) == 0 {
		fmt.Fprintln(c.out, "(empty)")
		return
	}
	for i := len(items) - 1; i >= 0; i-- {
		e := items[i]
		fmt.Fprintf(c.out, "%3d: %s %v\n", len(items)-1-i, e.Item().Type(), e.Item().Value())
	}
}

func (c *console) ops() {
	v := c.vm
	if v == nil || v.Context() == nil {
		fmt.Fprintln(c.out, "no script loaded")
		return
	}
	script := v.Context().Script()
	ip := 0
	for ip < len(script) {
		op := opcode.Opcode(script[ip])
		marker := "  "
		if v.Context().IP() == ip {
			marker = "->"
		}
		fmt.Fprintf(c.out, "%s %4d: %s\n", marker, ip, op)
		sz := opcode.Operand(op)
		n := sz.Fixed
		if sz.Prefix > 0 && ip+1+sz.Prefix <= len(script) {
			n = sz.Prefix
			for i := 0; i < sz.Prefix; i++ {
				n += int(script[ip+1+i]) << (8 * i)
			}
		}
		ip += 1 + n
	}
}

// vmOrNil lets gas/state report cleanly on an unloaded console instead
// of panicking on a nil receiver.
func (c *console) vmOrNil() vmFacade {
	if c.vm == nil {
		return nilVM{}
	}
	return realVM{c.vm}
}

type vmFacade interface {
	gasConsumed() int64
	stateString() string
}

type nilVM struct{}

func (nilVM) gasConsumed() int64  { return 0 }
func (nilVM) stateString() string { return "no script loaded" }

type realVM struct{ v *vm.VM }

func (r realVM) gasConsumed() int64  { return r.v.GasConsumed() }
func (r realVM) stateString() string { return r.v.State().String() }
