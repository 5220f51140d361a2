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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

// messages returns the messages written so far, without their newlines. A
// message may arrive in more than one Write.
func (w *testWriter) messages() []string {
	all := strings.Join(w.lines, "")
	if all == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(all, "\n"), "\n")
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %v, expected: %v", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Fatalf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if got := strings.Join(tw.lines, ""); got != "no newline\n" {
		t.Errorf("got %q, want %q", got, "no newline\n")
	}
}

func TestGoogleEmitterHeader(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.May, 7, 13, 4, 5, 6000, time.UTC)
	e.Emit(0, Warning, ts, "vector %d", 8)

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0507 13:04:05.000006 ") {
		t.Errorf("bad header in %q", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("missing caller in %q", line)
	}
	if !strings.HasSuffix(line, "] vector 8\n") {
		t.Errorf("bad message in %q", line)
	}
}

func TestBasicLoggerLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("hidden")
	l.Infof("shown %d", 1)
	l.Warningf("shown %d", 2)
	if diff := cmp.Diff([]string{"shown 1", "shown 2"}, tw.messages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	rl := RateLimitedLogger(&BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}, time.Hour)
	for i := 0; i < 5; i++ {
		rl.Infof("port %#x", 0x80)
	}
	if diff := cmp.Diff([]string{"port 0x80"}, tw.messages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenFilePattern(t *testing.T) {
	dir := t.TempDir()
	opts := PatternOpts{Command: "boot", Timestamp: time.Unix(42, 0)}
	f, err := OpenFile(filepath.Join(dir, "sub", "%COMMAND%-%TIMESTAMP%.log"), os.O_WRONLY|os.O_CREATE, opts)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()
	if want := filepath.Join(dir, "sub", "boot-42.log"); f.Name() != want {
		t.Errorf("got %q, want %q", f.Name(), want)
	}
}
