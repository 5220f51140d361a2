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
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
//
// where L is the level letter (D, I or W).
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// glogTimestamp is the layout of the header's date and time.
const glogTimestamp = "0102 15:04:05.000000"

// pid fills the header's thread id column, right aligned in the 7 columns
// glog uses.
var pid = fmt.Sprintf("%7d", os.Getpid())

func levelLetter(l Level) byte {
	switch l {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	default:
		return 'W'
	}
}

// appendCaller appends the file:line of the caller depth frames up, or
// ???:0 if it is unknown.
func appendCaller(b []byte, depth int) []byte {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return append(b, "???:0"...)
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	b = append(b, file...)
	b = append(b, ':')
	return strconv.AppendInt(b, int64(line), 10)
}

// Emit implements Emitter.Emit.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	b := make([]byte, 0, 48+len(format))
	b = append(b, levelLetter(level))
	b = timestamp.AppendFormat(b, glogTimestamp)
	b = append(b, ' ')
	b = append(b, pid...)
	b = append(b, ' ')
	b = appendCaller(b, depth+1)
	b = append(b, "] "...)
	b = append(b, format...)
	b = append(b, '\n')

	g.Emitter.Emit(depth+1, level, timestamp, string(b), args...)
}
