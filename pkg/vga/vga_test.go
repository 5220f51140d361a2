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

package vga

import (
	"fmt"
	"strings"
	"testing"

	"ringzero.dev/ringzero/pkg/mmio"
)

func newWriter() (*Writer, mmio.Buffer) {
	buf := mmio.NewBuffer(Width * Height)
	return NewWriter(buf), buf
}

func TestColorCode(t *testing.T) {
	if DefaultColor != 0x0e {
		t.Errorf("DefaultColor = %#x, want 0xe", DefaultColor)
	}
	c := NewColorCode(Blue, White)
	if c.Background() != Blue || c.Foreground() != White {
		t.Errorf("NewColorCode(Blue, White) = %#x", c)
	}
}

func TestCharAppearsOnSecondToLastRow(t *testing.T) {
	w, buf := newWriter()
	const s = "This is a basic line!"
	fmt.Fprintln(w, s)
	for i := 0; i < len(s); i++ {
		if got := w.Char(Height-2, i); got.Char != s[i] || got.Color != DefaultColor {
			t.Errorf("cell %d = %+v, want %q", i, got, s[i])
		}
	}
	if got := Row(buf, Height-1); got != "" {
		t.Errorf("bottom row = %q, want blank", got)
	}
	if w.Column() != 0 {
		t.Errorf("column = %d after newline", w.Column())
	}
}

func TestPrintMany(t *testing.T) {
	w, buf := newWriter()
	for i := 0; i < 200; i++ {
		fmt.Fprintln(w, "test writing many")
	}
	for row := 0; row < Height-1; row++ {
		if got := Row(buf, row); got != "test writing many" {
			t.Fatalf("row %d = %q", row, got)
		}
	}
}

func TestWrapsLongLines(t *testing.T) {
	w, buf := newWriter()
	w.WriteString(strings.Repeat("a", Width) + "b")
	if got := Row(buf, Height-2); got != strings.Repeat("a", Width) {
		t.Errorf("wrapped row = %q", got)
	}
	if got := Row(buf, Height-1); got != "b" {
		t.Errorf("bottom row = %q, want %q", got, "b")
	}
}

func TestUnprintable(t *testing.T) {
	w, _ := newWriter()
	w.WriteString("a\tü~")
	want := []byte{'a', Unprintable, Unprintable, Unprintable, '~'}
	for i, b := range want {
		if got := w.Char(Height-1, i).Char; got != b {
			t.Errorf("cell %d = %#x, want %#x", i, got, b)
		}
	}
}

func TestClearAndDump(t *testing.T) {
	w, buf := newWriter()
	w.WriteString("hello\nworld")
	dump := Dump(buf)
	if !strings.HasSuffix(dump, "hello\nworld\n") {
		t.Errorf("Dump = %q", dump)
	}
	w.Clear()
	if got := Dump(buf); got != strings.Repeat("\n", Height) {
		t.Errorf("Dump after Clear = %q", got)
	}
}

func TestNewWriterPanicsOnSmallBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("NewWriter did not panic")
		}
	}()
	NewWriter(mmio.NewBuffer(10))
}
