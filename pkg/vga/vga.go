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

// Package vga writes text to the VGA text-mode buffer.
//
// The buffer is Height rows of Width cells. Each cell holds a code page 437
// character in the low byte and a colour attribute in the high byte. The
// Writer always writes to the bottom row and scrolls everything up one row
// on newline or when the row is full.
package vga

import (
	"fmt"
	"strings"

	"ringzero.dev/ringzero/pkg/mmio"
)

// Buffer geometry.
const (
	Width  = 80
	Height = 25

	// BufferAddr is the physical address of the text buffer.
	BufferAddr = 0xb8000
)

// Color is a text-mode palette entry.
type Color uint8

// Palette.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	Pink
	Yellow
	White
)

// ColorCode is a cell attribute: background in the high nibble, foreground
// in the low nibble.
type ColorCode uint8

// NewColorCode returns the attribute for fg on bg.
func NewColorCode(bg, fg Color) ColorCode {
	return ColorCode(bg)<<4 | ColorCode(fg)
}

// Foreground returns the foreground colour.
func (c ColorCode) Foreground() Color {
	return Color(c & 0xf)
}

// Background returns the background colour.
func (c ColorCode) Background() Color {
	return Color(c >> 4)
}

// DefaultColor is yellow on black.
var DefaultColor = NewColorCode(Black, Yellow)

// ScreenChar is one cell.
type ScreenChar struct {
	Char  byte
	Color ColorCode
}

func (s ScreenChar) encode() uint16 {
	return uint16(s.Color)<<8 | uint16(s.Char)
}

// DecodeScreenChar decodes a cell as stored in the buffer.
func DecodeScreenChar(v uint16) ScreenChar {
	return ScreenChar{Char: byte(v), Color: ColorCode(v >> 8)}
}

// Unprintable is written in place of bytes outside the printable ASCII
// range.
const Unprintable = 0xfe

// Printable reports whether b is written as itself.
func Printable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// Writer writes text to a buffer. It is not safe for concurrent use.
type Writer struct {
	col   int
	color ColorCode
	buf   mmio.Region
}

// NewWriter returns a writer to buf, which must have Width*Height cells.
func NewWriter(buf mmio.Region) *Writer {
	if n := buf.Cells(); n < Width*Height {
		panic(fmt.Sprintf("text buffer has %d cells, need %d", n, Width*Height))
	}
	return &Writer{color: DefaultColor, buf: buf}
}

// SetColor changes the attribute used for subsequent writes.
func (w *Writer) SetColor(c ColorCode) {
	w.color = c
}

// Column returns the column the next character goes to.
func (w *Writer) Column() int {
	return w.col
}

// WriteByte writes b, which must already be printable or a newline.
func (w *Writer) WriteByte(b byte) error {
	if b == '\n' {
		w.newline()
		return nil
	}
	if w.col >= Width {
		w.newline()
	}
	w.store(Height-1, w.col, ScreenChar{Char: b, Color: w.color})
	w.col++
	return nil
}

// Write implements io.Writer.Write. Bytes that are neither printable nor a
// newline are shown as Unprintable. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		if !Printable(b) && b != '\n' {
			b = Unprintable
		}
		w.WriteByte(b)
	}
	return len(p), nil
}

// WriteString implements io.StringWriter.WriteString.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// newline scrolls every row up by one, dropping the top row, and starts the
// bottom row afresh.
func (w *Writer) newline() {
	for row := 1; row < Height; row++ {
		for col := 0; col < Width; col++ {
			w.buf.Store16(index(row-1, col), w.buf.Load16(index(row, col)))
		}
	}
	w.clearRow(Height - 1)
	w.col = 0
}

func (w *Writer) clearRow(row int) {
	blank := ScreenChar{Char: ' ', Color: w.color}
	for col := 0; col < Width; col++ {
		w.store(row, col, blank)
	}
}

// Clear blanks the whole buffer.
func (w *Writer) Clear() {
	for row := 0; row < Height; row++ {
		w.clearRow(row)
	}
	w.col = 0
}

func (w *Writer) store(row, col int, c ScreenChar) {
	w.buf.Store16(index(row, col), c.encode())
}

// Char returns the cell at row, col.
func (w *Writer) Char(row, col int) ScreenChar {
	return ReadChar(w.buf, row, col)
}

func index(row, col int) int {
	return row*Width + col
}

// ReadChar returns the cell at row, col of buf.
func ReadChar(buf mmio.Region, row, col int) ScreenChar {
	return DecodeScreenChar(buf.Load16(index(row, col)))
}

// Row returns the characters of row in buf with trailing blanks and NULs
// removed.
func Row(buf mmio.Region, row int) string {
	b := make([]byte, Width)
	for col := range b {
		b[col] = ReadChar(buf, row, col).Char
	}
	return strings.TrimRight(string(b), " \x00")
}

// Dump returns the rows of buf, one per line, with trailing blanks removed.
func Dump(buf mmio.Region) string {
	var sb strings.Builder
	for row := 0; row < Height; row++ {
		sb.WriteString(Row(buf, row))
		sb.WriteByte('\n')
	}
	return sb.String()
}
