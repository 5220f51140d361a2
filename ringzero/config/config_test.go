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
package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if want := uint(18); c.TimerHz != want {
		t.Errorf("TimerHz=%v, want: %v", c.TimerHz, want)
	}
	if want := uint64(64 << 10); c.BootStackSize != want {
		t.Errorf("BootStackSize=%v, want: %v", c.BootStackSize, want)
	}
	if !c.TickDots {
		t.Errorf("TickDots=false, want: true")
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Lookup("debug").Value.Set("true"); err != nil {
		t.Errorf("Flag set: %v", err)
	}
	if err := testFlags.Lookup("timer-hz").Value.Set("100"); err != nil {
		t.Errorf("Flag set: %v", err)
	}
	if err := testFlags.Lookup("timeout").Value.Set("5s"); err != nil {
		t.Errorf("Flag set: %v", err)
	}
	if err := testFlags.Lookup("debug-log-format").Value.Set("json"); err != nil {
		t.Errorf("Flag set: %v", err)
	}

	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := uint(100); c.TimerHz != want {
		t.Errorf("TimerHz=%v, want: %v", c.TimerHz, want)
	}
	if want := 5 * time.Second; c.Timeout != want {
		t.Errorf("Timeout=%v, want: %v", c.Timeout, want)
	}
	if want := "json"; c.DebugLogFormat != want {
		t.Errorf("DebugLogFormat=%v, want: %v", c.DebugLogFormat, want)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	orig, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	orig.Debug = true
	orig.DebugLog = "/some/path/%COMMAND%.log"
	orig.TimerHz = 1000
	orig.Timeout = time.Minute
	orig.TickDots = false
	orig.MetricsFile = "/tmp/metrics.txt"

	if err := testFlags.Parse(orig.ToFlags()); err != nil {
		t.Fatal(err)
	}
	got, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(orig, got); diff != "" {
		t.Errorf("config round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationFail(t *testing.T) {
	for _, tc := range []struct {
		name  string
		flags map[string]string
		error string
	}{
		{
			name:  "debug-log-format",
			flags: map[string]string{"debug-log-format": "yaml"},
			error: "invalid log format",
		},
		{
			name:  "boot-stack-size-zero",
			flags: map[string]string{"boot-stack-size": "0"},
			error: "boot stack size",
		},
		{
			name:  "boot-stack-size-unaligned",
			flags: map[string]string{"boot-stack-size": "4100"},
			error: "boot stack size",
		},
		{
			name:  "timeout",
			flags: map[string]string{"timeout": "-1s"},
			error: "must not be negative",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			for name, val := range tc.flags {
				if err := testFlags.Lookup(name).Value.Set(val); err != nil {
					t.Errorf("%s=%q: %v", name, val, err)
				}
			}
			_, err := NewFromFlags(testFlags)
			if err == nil || !strings.Contains(err.Error(), tc.error) {
				t.Errorf("NewFromFlags() wrong error: %v, want: %q", err, tc.error)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ringzero.toml")
	const contents = `
debug = true
timer_hz = 250
timeout = "3s"
mirror_screen = true
tick_dots = false
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	testFlags := newFlagSet()
	// Flags given on the command line take precedence over the file.
	if err := testFlags.Parse([]string{"--config=" + path, "--timer-hz=500"}); err != nil {
		t.Fatal(err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:     path,
		Debug:          true,
		DebugLogFormat: "text",
		TimerHz:        500,
		BootStackSize:  64 << 10,
		Timeout:        3 * time.Second,
		MirrorScreen:   true,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("timer_hz = \"fast\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{bad, filepath.Join(dir, "missing.toml")} {
		testFlags := newFlagSet()
		if err := testFlags.Parse([]string{"--config=" + path}); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFromFlags(testFlags); err == nil || !strings.Contains(err.Error(), "loading config file") {
			t.Errorf("NewFromFlags(--config=%s) = %v, want loading error", path, err)
		}
	}
}
