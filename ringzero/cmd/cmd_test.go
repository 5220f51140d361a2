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
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sys/unix"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/keyboard"
	"ringzero.dev/ringzero/pkg/ktest"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/ringzero/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	return conf
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWaitStatus(t *testing.T) {
	for _, tc := range []struct {
		exit machine.Exit
		want int
	}{
		{machine.Exit{Reason: machine.ExitDebugPort, Code: uint32(debugexit.Success)}, 33},
		{machine.Exit{Reason: machine.ExitDebugPort, Code: uint32(debugexit.Failed)}, 35},
		{machine.Exit{Reason: machine.ExitTripleFault}, 0},
		{machine.Exit{Reason: machine.ExitHalted}, 1},
		{machine.Exit{Reason: machine.ExitCanceled}, 1},
	} {
		ws := waitStatus(tc.exit)
		if !ws.Exited() || ws.ExitStatus() != tc.want {
			t.Errorf("waitStatus(%v) = %v (exited %t), want status %d", tc.exit, ws.ExitStatus(), ws.Exited(), tc.want)
		}
	}
}

func TestCRLFWriter(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"a\n", "a\r\n"},
		{"\n\nb\nc", "\r\n\r\nb\r\nc"},
	} {
		var buf bytes.Buffer
		n, err := crlfWriter{&buf}.Write([]byte(tc.in))
		if err != nil {
			t.Errorf("Write(%q): %v", tc.in, err)
		}
		if n != len(tc.in) {
			t.Errorf("Write(%q) = %d, want %d", tc.in, n, len(tc.in))
		}
		if got := buf.String(); got != tc.want {
			t.Errorf("Write(%q) wrote %q, want %q", tc.in, got, tc.want)
		}
	}
}

func scancodes(t *testing.T, text string) []byte {
	t.Helper()
	var out []byte
	for _, r := range text {
		codes, err := keyboard.ScancodesFor(r)
		if err != nil {
			t.Fatalf("ScancodesFor(%q): %v", r, err)
		}
		out = append(out, codes...)
	}
	return out
}

func TestForwardInput(t *testing.T) {
	m, err := machine.New(machine.Config{})
	if err != nil {
		t.Fatalf("machine.New: %v", err)
	}
	stopped := false
	forwardInput(strings.NewReader("Hi\r\x7f\u00e9"), m.Keyboard(), func() { stopped = true })
	if stopped {
		t.Errorf("input without Ctrl-C stopped the machine")
	}
	// The carriage return is typed as Enter, DEL as backspace and the
	// character with no key is dropped.
	if got, want := m.Keyboard().Pending(), len(scancodes(t, "Hi\n\b")); got != want {
		t.Errorf("Pending() = %d, want %d", got, want)
	}
}

func TestForwardInputInterrupt(t *testing.T) {
	m, err := machine.New(machine.Config{})
	if err != nil {
		t.Fatalf("machine.New: %v", err)
	}
	stopped := false
	forwardInput(strings.NewReader("a\x03b"), m.Keyboard(), func() { stopped = true })
	if !stopped {
		t.Errorf("Ctrl-C did not stop the machine")
	}
	if got, want := m.Keyboard().Pending(), len(scancodes(t, "a")); got != want {
		t.Errorf("Pending() = %d, want %d", got, want)
	}
}

func TestPrintScancodes(t *testing.T) {
	var buf bytes.Buffer
	if err := printScancodes(&buf, "aB", true); err != nil {
		t.Fatalf("printScancodes: %v", err)
	}
	want := "'a'\t1e 9e\tUnicode('a')\n" +
		"'B'\t2a 30 b0 aa\tUnicode('B')\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if err := printScancodes(&buf, "\u00e9", false); err == nil {
		t.Errorf("printScancodes(é) succeeded, want error")
	}
}

func TestTables(t *testing.T) {
	m, k, err := loadTables(testContext(t), testConfig(t))
	if err != nil {
		t.Fatalf("loadTables: %v", err)
	}
	var buf bytes.Buffer
	printTables(&buf, m, k, false)
	out := buf.String()
	for _, want := range []string{
		"GDT base=",
		"IST[0] top=",
		"[  3] breakpoint",
		"[  8] double fault",
		"[ 32] vector 32",
		"[ 33] vector 33",
		"double-fault-stack [",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "double fault ") && !strings.Contains(line, "ist=1") {
			t.Errorf("double fault gate does not switch stacks: %q", line)
		}
	}
	if strings.Contains(out, "[ 14]") {
		t.Errorf("unbound vector printed without -all:\n%s", out)
	}

	buf.Reset()
	printTables(&buf, m, k, true)
	var gates, absent int
	inIDT := false
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "IDT "):
			inIDT = true
		case !strings.HasPrefix(line, "  "):
			inIDT = false
		case inIDT:
			gates++
			if strings.HasSuffix(line, " not present") {
				absent++
			}
		}
	}
	if gates != 256 {
		t.Errorf("printed %d gates with all, want 256", gates)
	}
	if want := 256 - 4; absent != want {
		t.Errorf("not present gates = %d, want %d", absent, want)
	}
}

func TestWriteMetrics(t *testing.T) {
	m, _, err := loadTables(testContext(t), testConfig(t))
	if err != nil {
		t.Fatalf("loadTables: %v", err)
	}
	path := filepath.Join(t.TempDir(), "metrics.txt")
	if err := writeMetrics(testContext(t), path, m); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(f)
	if err != nil {
		t.Fatalf("parsing metrics: %v", err)
	}
	for _, name := range []string{machine.MetricEscalations, machine.MetricTripleFaults} {
		if _, ok := families[name]; !ok {
			t.Errorf("metric %s missing", name)
		}
	}

	if err := writeMetrics(testContext(t), "", m); err != nil {
		t.Errorf("writeMetrics with no path: %v", err)
	}
}

func TestWriteMetricsLocked(t *testing.T) {
	m, _, err := loadTables(testContext(t), testConfig(t))
	if err != nil {
		t.Fatalf("loadTables: %v", err)
	}
	path := filepath.Join(t.TempDir(), "metrics.txt")
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := writeMetrics(ctx, path, m); err == nil || !strings.Contains(err.Error(), "locking metrics file") {
		t.Errorf("writeMetrics with the lock held = %v, want locking error", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("metrics file written while locked: %v", err)
	}
}

func TestSelectSuites(t *testing.T) {
	all, err := selectSuites(nil)
	if err != nil {
		t.Fatalf("selectSuites(nil): %v", err)
	}
	if got, want := len(all), len(ktest.Suites()); got != want {
		t.Errorf("selectSuites(nil) = %d suites, want %d", got, want)
	}

	named, err := selectSuites([]string{"basic_boot", "lib"})
	if err != nil {
		t.Fatalf("selectSuites: %v", err)
	}
	var names []string
	for _, s := range named {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"basic_boot", "lib"}, names); diff != "" {
		t.Errorf("selectSuites mismatch (-want +got):\n%s", diff)
	}

	if _, err := selectSuites([]string{"nope"}); err == nil {
		t.Errorf("selectSuites(nope) succeeded, want error")
	}
}

func TestReport(t *testing.T) {
	pass := &suiteResult{
		suite: ktest.Suite{Name: "good"},
		exit:  machine.Exit{Reason: machine.ExitDebugPort, Code: uint32(debugexit.Success)},
	}
	pass.output.WriteString("good output\n")
	fail := &suiteResult{
		suite: ktest.Suite{Name: "bad"},
		exit:  machine.Exit{Reason: machine.ExitDebugPort, Code: uint32(debugexit.Failed)},
	}
	fail.output.WriteString("bad output\n")

	var buf bytes.Buffer
	if got := report(&buf, []*suiteResult{pass, fail}, false); got != 1 {
		t.Errorf("report() = %d failures, want 1", got)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ok  \tgood\t") || !strings.Contains(out, "FAIL\tbad\t") {
		t.Errorf("unexpected verdicts:\n%s", out)
	}
	if strings.Contains(out, "good output") || !strings.Contains(out, "bad output") {
		t.Errorf("only failing output should be printed:\n%s", out)
	}

	buf.Reset()
	report(&buf, []*suiteResult{pass}, true)
	if !strings.Contains(buf.String(), "good output") {
		t.Errorf("verbose report omits output:\n%s", buf.String())
	}
}

func TestRunSuites(t *testing.T) {
	conf := testConfig(t)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd := &Test{}
	cmd.SetFlags(fs)
	if err := fs.Parse([]string{"basic_boot", "stack_overflow"}); err != nil {
		t.Fatal(err)
	}
	// Execute prints to stdout; only the status matters here.
	var ws unix.WaitStatus
	if got := cmd.Execute(testContext(t), fs, conf, &ws); got != 0 {
		t.Fatalf("Execute() = %v, want success", got)
	}
	if ws.ExitStatus() != 0 {
		t.Errorf("exit status = %d, want 0", ws.ExitStatus())
	}
}
