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
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	termconsole "github.com/containerd/console"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"ringzero.dev/ringzero/pkg/kernel"
	"ringzero.dev/ringzero/pkg/keyboard"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/ringzero/cmd/util"
	"ringzero.dev/ringzero/ringzero/config"
)

// interruptKey stops the machine when typed on a raw terminal.
const interruptKey = 0x03 // Ctrl-C

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	input      bool
	dumpScreen bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the kernel and run it until it exits"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - boots the kernel with its serial console on stdout. Keys typed on stdin are sent to the keyboard.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&b.input, "input", true, "forward standard input to the keyboard.")
	f.BoolVar(&b.dumpScreen, "dump-screen", false, "print the screen to stderr when the machine stops.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	ws := args[1].(*unix.WaitStatus)

	ctx, cancel := withTimeout(ctx, conf.Timeout)
	defer cancel()

	var out io.Writer = os.Stdout
	if b.input {
		restore, raw, err := rawTerminal(os.Stdin)
		if err != nil {
			util.Fatalf("setting up terminal: %v", err)
		}
		defer restore()
		if raw {
			out = crlfWriter{os.Stdout}
		}
	}

	mconf := machineConfig(conf)
	mconf.Serial = out
	m, err := machine.New(mconf)
	if err != nil {
		util.Fatalf("creating machine: %v", err)
	}
	k := kernel.New(kernel.Options{
		TickDots:     conf.TickDots,
		MirrorScreen: conf.MirrorScreen,
	})
	if err := m.Map(k.Regions()...); err != nil {
		util.Fatalf("mapping kernel: %v", err)
	}
	if b.input {
		go forwardInput(os.Stdin, m.Keyboard(), cancel)
	}

	exit, err := m.Run(ctx, k.Entry(k.Main))
	if b.dumpScreen {
		fmt.Fprintln(os.Stderr, m.Screen())
	}
	if err := writeMetrics(context.Background(), conf.MetricsFile, m); err != nil {
		log.Warningf("Metrics not written: %v", err)
	}
	if err != nil {
		util.Fatalf("running kernel: %v", err)
	}
	log.Infof("Kernel stopped: %v", exit)
	*ws = waitStatus(exit)
	return subcommands.ExitSuccess
}

// rawTerminal puts f in raw mode if it is a terminal. restore undoes it.
func rawTerminal(f *os.File) (restore func(), raw bool, err error) {
	if !term.IsTerminal(int(f.Fd())) {
		return func() {}, false, nil
	}
	c, err := termconsole.ConsoleFromFile(f)
	if err != nil {
		return nil, false, err
	}
	if err := c.SetRaw(); err != nil {
		return nil, false, err
	}
	return func() {
		if err := c.Reset(); err != nil {
			log.Warningf("Restoring terminal: %v", err)
		}
	}, true, nil
}

// forwardInput types every character read from r on kbd. It returns when r
// is exhausted. Ctrl-C calls stop.
func forwardInput(r io.Reader, kbd *machine.Keyboard, stop func()) {
	br := bufio.NewReader(r)
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warningf("Reading input: %v", err)
			}
			return
		}
		switch ch {
		case interruptKey:
			stop()
			return
		case '\r':
			ch = '\n'
		case 0x7f: // DEL, sent by the backspace key.
			ch = '\b'
		}
		codes, err := keyboard.ScancodesFor(ch)
		if err != nil {
			log.Debugf("Dropping input %q: %v", ch, err)
			continue
		}
		kbd.Inject(codes...)
	}
}

// crlfWriter translates line feeds for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

// Write implements io.Writer.Write.
func (c crlfWriter) Write(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		i := 0
		for i < len(b) && b[i] != '\n' {
			i++
		}
		m, err := c.w.Write(b[:i])
		n += m
		if err != nil {
			return n, err
		}
		if i == len(b) {
			break
		}
		if _, err := io.WriteString(c.w, "\r\n"); err != nil {
			return n, err
		}
		n++
		b = b[i+1:]
	}
	return n, nil
}
