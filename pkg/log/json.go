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
	"fmt"
	"strings"
	"time"
)

// levels lists every Level in order.
var levels = []Level{Warning, Info, Debug}

// MarshalJSON implements json.Marshaler.MarshalJSON. Levels are written as
// lower case names.
func (l Level) MarshalJSON() ([]byte, error) {
	if l > Debug {
		return nil, fmt.Errorf("unknown level %v", l)
	}
	return json.Marshal(strings.ToLower(l.String()))
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. It accepts both
// names and the integer values control interfaces use.
func (l *Level) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		for _, lv := range levels {
			if strings.EqualFold(name, lv.String()) {
				*l = lv
				return nil
			}
		}
		return fmt.Errorf("unknown level %q", name)
	}
	var n uint32
	if err := json.Unmarshal(b, &n); err != nil || Level(n) > Debug {
		return fmt.Errorf("unknown level %s", b)
	}
	*l = Level(n)
	return nil
}

// emitJSON writes one JSON object per message to w. The message, prefixed
// with its caller, is stored under msgKey.
func emitJSON(w *Writer, msgKey string, depth int, level Level, timestamp time.Time, format string, v ...any) {
	msg := appendCaller(nil, depth+1)
	msg = append(msg, "] "...)
	msg = fmt.Appendf(msg, format, v...)
	b, err := json.Marshal(map[string]any{
		msgKey:  string(msg),
		"level": level,
		"time":  timestamp,
	})
	if err != nil {
		panic(err)
	}
	w.Write(b)
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	emitJSON(e.Writer, "msg", depth+1, level, timestamp, format, v...)
}

// K8sJSONEmitter logs messages in json format that is compatible with
// Kubernetes fluent configuration: the message is under "log".
type K8sJSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e K8sJSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	emitJSON(e.Writer, "log", depth+1, level, timestamp, format, v...)
}
