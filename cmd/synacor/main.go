// Command synacor loads a Synacor challenge binary and runs it to
// completion, wiring the VM's byte-wise stdio directly to the process's
// own stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enizor/synacor-challenge/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	var trace bool
	var gcOff bool

	cmd := &cobra.Command{
		Use:           "synacor <program.bin>",
		Short:         "Run a Synacor challenge binary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], trace, gcOff)
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "on fault, print the failing instruction alongside the fault")
	cmd.Flags().BoolVar(&gcOff, "gc-off", true, "disable the garbage collector for the duration of the run")

	return cmd
}

func run(path string, trace, gcOff bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	words, oddTrailing, err := vm.DecodeProgram(data)
	if err != nil {
		return err
	}
	if oddTrailing {
		fmt.Fprintf(os.Stderr, "warning: %s has an odd number of bytes; trailing byte was zero-padded\n", path)
	}

	m, err := vm.New(words, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	restoreGC := maybeDisableGC(gcOff)
	defer restoreGC()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := m.Run(ctx)
	switch result.State {
	case vm.Halted:
		return nil
	case vm.Failed:
		fmt.Fprintf(os.Stderr, "fault: %s (ip=%d)\n", result.Err, result.IP)
		if trace {
			fmt.Fprintln(os.Stderr, formatFailingInstruction(m, result.IP))
		}
		return result.Err
	default:
		return fmt.Errorf("unexpected terminal state %s", result.State)
	}
}

// maybeDisableGC disables the collector for the tight dispatch loop. The
// returned func restores the numeric value of the GOGC environment variable,
// or 100 when it is unset or not a number (such as "off").
func maybeDisableGC(disable bool) func() {
	if !disable {
		return func() {}
	}

	prior := 100
	if v, ok := os.LookupEnv("GOGC"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			prior = n
		}
	}

	debug.SetGCPercent(-1)
	return func() { debug.SetGCPercent(prior) }
}

// formatFailingInstruction renders the opcode and raw argument words at
// addr for --trace output. This is a one-shot formatting of state the fault
// already carries, not a VM tracing facility. Words that would lie at or
// past the end of memory are not read.
func formatFailingInstruction(m *vm.Machine, addr uint16) string {
	if int(addr) >= vm.MemSize {
		return fmt.Sprintf("  at %d: past the end of memory", addr)
	}
	op := vm.Opcode(m.MemoryAt(addr))
	parts := []string{op.String()}
	for i := 1; i <= op.Arity() && int(addr)+i < vm.MemSize; i++ {
		parts = append(parts, strconv.Itoa(int(m.MemoryAt(addr+uint16(i)))))
	}
	return fmt.Sprintf("  at %d: %s", addr, strings.Join(parts, " "))
}
