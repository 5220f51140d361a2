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
package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/pic"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/pkg/serial"
	"ringzero.dev/ringzero/pkg/vga"
)

// tables are a minimal kernel's descriptor tables.
type tables struct {
	d   *ring0.Descriptors
	idt *ring0.IDT
}

func newTables() *tables {
	return &tables{d: ring0.NewDescriptors(), idt: ring0.NewIDT()}
}

func (tb *tables) regions() []ring0.Region {
	return append(tb.d.Regions(), tb.idt.Regions()...)
}

func (tb *tables) load(c cpu.CPU) {
	tb.d.Init()
	tb.d.Load(c)
	tb.idt.Load(c)
}

func newMachine(t *testing.T, cfg Config, regions ...ring0.Region) *Machine {
	t.Helper()
	cfg.Log = log.Test(t)
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Map(regions...); err != nil {
		t.Fatalf("Map: %v", err)
	}
	return m
}

func run(t *testing.T, m *Machine, entry func(cpu.CPU)) Exit {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exit, err := m.Run(ctx, entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return exit
}

// overflow recurses until the stack runs out. Each frame, with its return
// address, is one page, so the boot stack is used up exactly.
func overflow(c cpu.CPU) {
	c.Call(4096-8, func() {
		c.Touch()
		overflow(c)
	})
}

func TestNewValidatesStackSize(t *testing.T) {
	for _, size := range []uint64{8, BootStackTop} {
		if _, err := New(Config{BootStackSize: size, Log: log.Test(t)}); err == nil {
			t.Errorf("New(BootStackSize: %#x) succeeded", size)
		}
	}
}

func TestMapErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		r    ring0.Region
		want error
	}{
		{"empty", ring0.Region{Name: "empty", Addr: 0x100000}, ErrBadRegion},
		{"wraps", ring0.Region{Name: "wraps", Addr: ^uint64(0) - 3, Data: make([]byte, 8)}, ErrBadRegion},
		{"stack", ring0.Region{Name: "stack", Addr: BootStackTop - 8, Data: make([]byte, 16)}, ErrOverlap},
		{"gdt", ring0.Region{Name: "gdt", Addr: 0x6ff8, Data: make([]byte, 16)}, ErrOverlap},
		{"same-base", ring0.Region{Name: "same-base", Addr: bootGDTAddr, Data: make([]byte, 8)}, ErrOverlap},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newMachine(t, Config{})
			if err := m.Map(tc.r); !errors.Is(err, tc.want) {
				t.Errorf("Map(%v) = %v, want %v", tc.r, err, tc.want)
			}
		})
	}
}

func TestRegions(t *testing.T) {
	m := newMachine(t, Config{BootStackSize: 0x1000})
	if err := m.Map(ring0.Region{Name: "kernel", Addr: 0x300000, Data: make([]byte, 0x100)}); err != nil {
		t.Fatalf("Map: %v", err)
	}
	var got []string
	for _, r := range m.Regions() {
		got = append(got, fmt.Sprintf("%s@%#x", r.Name, r.Addr))
	}
	want := []string{"boot-gdt@0x7000", "kernel@0x300000", "boot-stack@0x7ff000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Regions() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory(t *testing.T) {
	var mem memory
	for _, r := range []ring0.Region{
		{Name: "b", Addr: 0x2000, Data: make([]byte, 0x1000)},
		{Name: "a", Addr: 0x1000, Data: make([]byte, 0x1000)},
		{Name: "c", Addr: 0x4000, Data: make([]byte, 0x1000)},
	} {
		if err := mem.add(r); err != nil {
			t.Fatalf("add(%v): %v", r, err)
		}
	}
	var names []string
	mem.each(func(r ring0.Region) {
		names = append(names, r.Name)
	})
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		addr, n       uint64
		slice, mapped bool
	}{
		{0x1000, 8, true, true},
		{0x1ffc, 8, false, true}, // Spans a and b.
		{0x2ffc, 8, false, false},
		{0x3000, 1, false, false},
		{0x4ff8, 8, true, true},
		{0x0ff8, 16, false, false},
	} {
		if _, ok := mem.slice(tc.addr, tc.n); ok != tc.slice {
			t.Errorf("slice(%#x, %d) ok = %v, want %v", tc.addr, tc.n, ok, tc.slice)
		}
		if ok := mem.mapped(tc.addr, tc.n); ok != tc.mapped {
			t.Errorf("mapped(%#x, %d) = %v, want %v", tc.addr, tc.n, ok, tc.mapped)
		}
	}
	if !mem.write64(0x4008, 0xdeadbeef) {
		t.Fatalf("write64 failed")
	}
	if v, ok := mem.read64(0x4008); !ok || v != 0xdeadbeef {
		t.Errorf("read64 = %#x, %v, want 0xdeadbeef", v, ok)
	}
}

func TestRunOnce(t *testing.T) {
	m := newMachine(t, Config{})
	exit := run(t, m, func(cpu.CPU) {})
	if exit.Reason != ExitHalted {
		t.Errorf("exit = %v, want %v", exit, ExitHalted)
	}
	if _, err := m.Run(context.Background(), func(cpu.CPU) {}); !errors.Is(err, ErrStarted) {
		t.Errorf("second Run error = %v, want %v", err, ErrStarted)
	}
	if err := m.Map(ring0.Region{Name: "late", Addr: 0x100000, Data: make([]byte, 8)}); !errors.Is(err, ErrStarted) {
		t.Errorf("Map after Run error = %v, want %v", err, ErrStarted)
	}
}

func TestDebugExit(t *testing.T) {
	for _, tc := range []struct {
		code   debugexit.Code
		status int
	}{
		{debugexit.Success, 33},
		{debugexit.Failed, 35},
	} {
		t.Run(tc.code.String(), func(t *testing.T) {
			m := newMachine(t, Config{})
			exit := run(t, m, func(c cpu.CPU) {
				debugexit.Signal(c, tc.code)
				t.Errorf("Signal returned")
			})
			want := Exit{Reason: ExitDebugPort, Code: uint32(tc.code)}
			if exit != want {
				t.Errorf("exit = %v, want %v", exit, want)
			}
			if got := exit.Status(); got != tc.status {
				t.Errorf("Status() = %d, want %d", got, tc.status)
			}
		})
	}
}

func TestHaltWithInterruptsDisabled(t *testing.T) {
	m := newMachine(t, Config{TimerHz: 1000})
	exit := run(t, m, func(c cpu.CPU) {
		c.DisableInterrupts()
		c.Halt()
		t.Errorf("Halt returned")
	})
	if exit.Reason != ExitHalted {
		t.Errorf("exit = %v, want %v", exit, ExitHalted)
	}
}

func TestCancel(t *testing.T) {
	m := newMachine(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	exit, err := m.Run(ctx, func(c cpu.CPU) {
		c.EnableInterrupts()
		cpu.HaltLoop(c)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exit.Reason != ExitCanceled || exit.Status() != -1 {
		t.Errorf("exit = %v (status %d), want canceled", exit, exit.Status())
	}
}

func TestKernelPanic(t *testing.T) {
	m := newMachine(t, Config{})
	_, err := m.Run(context.Background(), func(cpu.CPU) {
		panic("boom")
	})
	if !errors.Is(err, ErrKernelPanic) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Run error = %v, want kernel panic with the value", err)
	}
}

func TestBreakpointWithoutIDTTripleFaults(t *testing.T) {
	m := newMachine(t, Config{})
	exit := run(t, m, func(c cpu.CPU) {
		c.Breakpoint()
		t.Errorf("Breakpoint returned")
	})
	if exit.Reason != ExitTripleFault || exit.Status() != 0 {
		t.Errorf("exit = %v (status %d), want triple fault", exit, exit.Status())
	}
	if got := m.Escalations(); got != 1 {
		t.Errorf("%d escalations, want 1", got)
	}
}

func TestBreakpointFrame(t *testing.T) {
	tb := newTables()
	m := newMachine(t, Config{}, tb.regions()...)

	var (
		before  Registers
		frame   ring0.Frame
		inside  bool
		resumed uint64
	)
	exit := run(t, m, func(c cpu.CPU) {
		tb.idt.SetHandler(ring0.Breakpoint, func(f *ring0.Frame) {
			frame = *f
			inside = c.InterruptsEnabled()
		})
		tb.load(c)
		c.EnableInterrupts()
		before = m.Registers()
		c.Breakpoint()
		resumed = m.Registers().RIP
		debugexit.Signal(c, debugexit.Success)
	})
	if exit.Status() != debugexit.Success.Status() {
		t.Fatalf("exit = %v, want success", exit)
	}
	want := ring0.Frame{
		RIP:    before.RIP + lenInt3,
		CS:     uint64(ring0.Kcode),
		RFlags: before.RFlags,
		RSP:    before.RSP,
	}
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if inside {
		t.Errorf("interrupts enabled inside an interrupt gate handler")
	}
	if resumed != want.RIP {
		t.Errorf("resumed at %#x, want %#x", resumed, want.RIP)
	}
	if got := m.Deliveries(uint8(ring0.Breakpoint)); got != 1 {
		t.Errorf("breakpoint delivered %d times, want 1", got)
	}
}

func TestLoadTaskRegister(t *testing.T) {
	tb := newTables()
	m := newMachine(t, Config{}, tb.regions()...)
	run(t, m, func(c cpu.CPU) {
		tb.load(c)
	})

	base, limit, _ := tb.d.TSS()
	want := TaskRegister{Selector: uint16(ring0.Tss), Base: base, Limit: uint32(limit)}
	if diff := cmp.Diff(want, m.Registers().TR); diff != "" {
		t.Errorf("TR mismatch (-want +got):\n%s", diff)
	}
	d := tb.d.Entry(3)
	if got := d.Type(); got != ring0.SystemTypeTSSBusy {
		t.Errorf("TSS descriptor type = %#x, want busy", got)
	}
	gdtBase, gdtLimit := tb.d.GDT()
	if got := m.Registers().GDTR; got != (DescriptorTable{Base: gdtBase, Limit: gdtLimit}) {
		t.Errorf("GDTR = %+v", got)
	}
}

func TestStackOverflow(t *testing.T) {
	for _, tc := range []struct {
		name string
		ist  bool
		want Exit
	}{
		{"ist", true, Exit{Reason: ExitDebugPort, Code: uint32(debugexit.Success)}},
		{"no-ist", false, Exit{Reason: ExitTripleFault}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tb := newTables()
			m := newMachine(t, Config{}, tb.regions()...)
			var code uint64 = 1
			exit := run(t, m, func(c cpu.CPU) {
				g := tb.idt.SetHandlerWithCode(ring0.DoubleFault, func(f *ring0.Frame, errorCode uint64) {
					code = errorCode
					debugexit.Signal(c, debugexit.Success)
				})
				if tc.ist {
					g.SetStackIndex(ring0.DoubleFaultISTIndex)
				}
				tb.load(c)
				overflow(c)
			})
			if exit != tc.want {
				t.Errorf("exit = %v, want %v", exit, tc.want)
			}
			if tc.ist && code != 0 {
				t.Errorf("double fault error code = %#x, want 0", code)
			}
			if got := m.Registers().CR2; got >= BootStackTop-DefaultBootStackSize {
				t.Errorf("CR2 = %#x, want below the boot stack", got)
			}
		})
	}
}

func TestTimerInterrupts(t *testing.T) {
	tb := newTables()
	m := newMachine(t, Config{TimerHz: 1000}, tb.regions()...)

	const want = 3
	var (
		handled int
		ifSet   bool
	)
	exit := run(t, m, func(c cpu.CPU) {
		pics, err := pic.New(c, 32, 40)
		if err != nil {
			t.Errorf("pic.New: %v", err)
			return
		}
		tb.idt.SetHandler(32, func(*ring0.Frame) {
			handled++
			ifSet = ifSet || c.InterruptsEnabled()
			pics.NotifyEndOfInterrupt(32)
		})
		tb.load(c)
		pics.Initialize()
		pics.SetMasks(0xfe, 0xff)
		c.EnableInterrupts()
		for handled < want {
			c.Halt()
		}
		debugexit.Signal(c, debugexit.Success)
	})
	if exit.Reason != ExitDebugPort {
		t.Fatalf("exit = %v, want debug exit", exit)
	}
	if ifSet {
		t.Errorf("interrupts enabled inside the timer handler")
	}
	// One more tick may be taken before the exit.
	if got := m.Deliveries(32); got < want || got > want+1 {
		t.Errorf("timer delivered %d times, want %d", got, want)
	}
	if got, delivered := m.EOIs(0), m.Deliveries(32); got != delivered {
		t.Errorf("IRQ 0 retired %d times, delivered %d", got, delivered)
	}
	if got := m.Ticks(); got < want {
		t.Errorf("Ticks() = %d, want at least %d", got, want)
	}
}

func TestUnboundVectorWithPresentGate(t *testing.T) {
	tb := newTables()
	m := newMachine(t, Config{}, tb.regions()...)
	_, err := m.Run(context.Background(), func(c cpu.CPU) {
		tb.idt.SetHandler(ring0.Breakpoint, nil)
		tb.load(c)
		c.Breakpoint()
	})
	if !errors.Is(err, ring0.ErrNoHandler) {
		t.Errorf("Run error = %v, want %v", err, ring0.ErrNoHandler)
	}
}

func TestScreenAndSerial(t *testing.T) {
	var out bytes.Buffer
	m := newMachine(t, Config{Serial: &out})
	run(t, m, func(c cpu.CPU) {
		w := vga.NewWriter(c.DeviceMemory(vga.BufferAddr, vga.Width*vga.Height))
		w.WriteString("hello screen")
		p := serial.New(c, COM1)
		p.Init()
		p.Write([]byte("hello serial"))
		if got := c.DeviceMemory(0xa0000, 16).Load16(0); got != 0xffff {
			t.Errorf("open bus read %#x, want 0xffff", got)
		}
	})
	if s := m.Screen(); !strings.Contains(s, "hello screen") {
		t.Errorf("screen missing output:\n%s", s)
	}
	if got := out.String(); got != "hello serial" {
		t.Errorf("serial = %q, want %q", got, "hello serial")
	}
}

func TestMetrics(t *testing.T) {
	tb := newTables()
	m := newMachine(t, Config{}, tb.regions()...)
	run(t, m, func(c cpu.CPU) {
		tb.idt.SetHandler(ring0.Breakpoint, func(*ring0.Frame) {})
		tb.load(c)
		c.Breakpoint()
		c.Breakpoint()
		m.Keyboard().Inject(0x1e)
		c.In8(KeyboardDataPort)
	})

	var buf bytes.Buffer
	if err := m.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("parsing metrics: %v\n%s", err, buf.String())
	}

	deliveries, ok := families[MetricDeliveries]
	if !ok || len(deliveries.GetMetric()) != 1 {
		t.Fatalf("deliveries family = %v", deliveries)
	}
	metric := deliveries.GetMetric()[0]
	labels := make(map[string]string)
	for _, l := range metric.GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	wantLabels := map[string]string{"vector": "3", "name": ring0.Breakpoint.String()}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("breakpoint deliveries = %v, want 2", got)
	}

	for name, want := range map[string]float64{
		MetricEscalations:   0,
		MetricTripleFaults:  0,
		MetricTicks:         0,
		MetricKeyboardBytes: 1,
	} {
		f, ok := families[name]
		if !ok || len(f.GetMetric()) != 1 {
			t.Errorf("family %s = %v", name, f)
			continue
		}
		if got := f.GetMetric()[0].GetCounter().GetValue(); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	if _, ok := families[MetricEOIs]; ok {
		t.Errorf("%s present with no EOIs", MetricEOIs)
	}
}
