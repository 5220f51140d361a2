// Copyright 2026 The ringzero Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/kernel"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/ringzero/cmd/util"
	"ringzero.dev/ringzero/ringzero/config"
)

// Tables implements subcommands.Command for the "tables" command.
type Tables struct {
	all bool
}

// Name implements subcommands.Command.Name.
func (*Tables) Name() string {
	return "tables"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Tables) Synopsis() string {
	return "print the descriptor tables as the kernel loads them"
}

// Usage implements subcommands.Command.Usage.
func (*Tables) Usage() string {
	return `tables [flags] - initializes the kernel, then prints its GDT, TSS, IDT and the machine's memory map.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Tables) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&t.all, "all", false, "print every IDT gate, including those not present.")
}

// Execute implements subcommands.Command.Execute.
func (t *Tables) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	ctx, cancel := withTimeout(ctx, conf.Timeout)
	defer cancel()

	m, k, err := loadTables(ctx, conf)
	if err != nil {
		util.Fatalf("%v", err)
	}
	printTables(os.Stdout, m, k, t.all)
	return subcommands.ExitSuccess
}

// loadTables boots a kernel that initializes and exits, returning the
// stopped machine and the kernel.
func loadTables(ctx context.Context, conf *config.Config) (*machine.Machine, *kernel.Kernel, error) {
	mconf := machineConfig(conf)
	mconf.TimerHz = 0
	m, err := machine.New(mconf)
	if err != nil {
		return nil, nil, fmt.Errorf("creating machine: %w", err)
	}
	k := kernel.New(kernel.Options{})
	if err := m.Map(k.Regions()...); err != nil {
		return nil, nil, fmt.Errorf("mapping kernel: %w", err)
	}
	exit, err := m.Run(ctx, k.Entry(func() {
		k.Init()
		k.Exit(debugexit.Success)
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("initializing kernel: %w", err)
	}
	if exit.Status() != debugexit.Success.Status() {
		return nil, nil, fmt.Errorf("kernel did not initialize: %v", exit)
	}
	return m, k, nil
}

// printTables writes the tables k loaded on m.
func printTables(w io.Writer, m *machine.Machine, k *kernel.Kernel, all bool) {
	regs := m.Registers()
	d := k.Descriptors()

	fmt.Fprintf(w, "GDT base=%#x limit=%#x\n", regs.GDTR.Base, regs.GDTR.Limit)
	for i := 0; i < d.Entries(); i++ {
		e := d.Entry(i)
		fmt.Fprintf(w, "  [%d] %v\n", i, e)
	}

	tss := d.TaskState()
	fmt.Fprintf(w, "TSS selector=%v base=%#x limit=%#x iopb=%#x\n",
		ring0.Selector(regs.TR.Selector), regs.TR.Base, regs.TR.Limit, tss.IOPermBase())
	for i := 0; i < ring0.ISTSlots; i++ {
		if top := tss.IST(i); top != 0 {
			fmt.Fprintf(w, "  IST[%d] top=%#x\n", i, top)
		}
	}

	idt := k.IDT()
	fmt.Fprintf(w, "IDT base=%#x limit=%#x\n", regs.IDTR.Base, regs.IDTR.Limit)
	for v := 0; v < 256; v++ {
		g := idt.Gate(ring0.Vector(v))
		if !all && !g.Present() {
			continue
		}
		fmt.Fprintf(w, "  [%3d] %-28s %v\n", v, ring0.Vector(v), g)
	}

	fmt.Fprintf(w, "Memory\n")
	for _, r := range m.Regions() {
		fmt.Fprintf(w, "  %v\n", r)
	}
}
