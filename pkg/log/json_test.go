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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLevelJSON(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: `"warning"`, want: Warning},
		{in: `"info"`, want: Info},
		{in: `"Debug"`, want: Debug},
		{in: `0`, want: Warning},
		{in: `1`, want: Info},
		{in: `2`, want: Debug},
		{in: `3`, wantErr: true},
		{in: `"trace"`, wantErr: true},
		{in: `true`, wantErr: true},
	} {
		var got Level
		err := json.Unmarshal([]byte(tc.in), &got)
		if (err != nil) != tc.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, want error %t", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, lv := range levels {
		b, err := json.Marshal(lv)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", lv, err)
		}
		if want := `"` + strings.ToLower(lv.String()) + `"`; string(b) != want {
			t.Errorf("Marshal(%v) = %s, want %s", lv, b, want)
		}
	}
	if _, err := json.Marshal(Level(7)); err == nil {
		t.Errorf("Marshal(Level(7)) succeeded, want error")
	}
}

func TestJSONEmitters(t *testing.T) {
	ts := time.Date(2026, time.May, 7, 13, 4, 5, 0, time.UTC)
	for _, tc := range []struct {
		name   string
		emit   func(w *Writer) Emitter
		msgKey string
	}{
		{"json", func(w *Writer) Emitter { return JSONEmitter{w} }, "msg"},
		{"json-k8s", func(w *Writer) Emitter { return K8sJSONEmitter{w} }, "log"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tw := &testWriter{}
			tc.emit(&Writer{Next: tw}).Emit(0, Info, ts, "triple fault at %#x", 0x200000)

			var got map[string]string
			if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
				t.Fatalf("line %q is not JSON: %v", tw.lines[0], err)
			}
			msg := got[tc.msgKey]
			if !strings.HasPrefix(msg, "json_test.go:") || !strings.HasSuffix(msg, "] triple fault at 0x200000") {
				t.Errorf("%s = %q, want caller and message", tc.msgKey, msg)
			}
			delete(got, tc.msgKey)
			want := map[string]string{"level": "info", "time": "2026-05-07T13:04:05Z"}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
