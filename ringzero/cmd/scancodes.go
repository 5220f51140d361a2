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
	"strings"

	"github.com/google/subcommands"
	"ringzero.dev/ringzero/pkg/keyboard"
	"ringzero.dev/ringzero/ringzero/cmd/util"
)

// Scancodes implements subcommands.Command for the "scancodes" command.
type Scancodes struct {
	decode bool
}

// Name implements subcommands.Command.Name.
func (*Scancodes) Name() string {
	return "scancodes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Scancodes) Synopsis() string {
	return "print the set 1 scancodes that type some text"
}

// Usage implements subcommands.Command.Usage.
func (*Scancodes) Usage() string {
	return `scancodes [flags] <text>... - prints the scancodes a US 104-key keyboard sends to type text.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Scancodes) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.decode, "decode", false, "also print what the kernel decodes from each key's scancodes.")
}

// Execute implements subcommands.Command.Execute.
func (s *Scancodes) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := printScancodes(os.Stdout, strings.Join(f.Args(), " "), s.decode); err != nil {
		util.Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// printScancodes writes one line per character of text.
func printScancodes(w io.Writer, text string, decode bool) error {
	kbd := keyboard.New(&keyboard.ScancodeSet1{}, keyboard.Us104Key{}, keyboard.Ignore)
	for _, r := range text {
		codes, err := keyboard.ScancodesFor(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%q\t% x", r, codes)
		if decode {
			var keys []string
			for _, b := range codes {
				key, ok, err := kbd.Decode(b)
				if err != nil {
					return fmt.Errorf("decoding %#x: %w", b, err)
				}
				if ok {
					keys = append(keys, key.String())
				}
			}
			fmt.Fprintf(w, "\t%s", strings.Join(keys, " "))
		}
		fmt.Fprintln(w)
	}
	return nil
}
