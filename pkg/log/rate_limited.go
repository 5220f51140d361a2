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
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type rateLimitedLogger struct {
	logger Logger
	limit  *rate.Limiter

	// suppressed counts messages dropped since the last one emitted.
	suppressed atomic.Uint64
}

// allow reports whether a message may be emitted and, if so, appends the
// number of messages dropped before it to format.
func (rl *rateLimitedLogger) allow(format string, v []any) (string, []any, bool) {
	if !rl.limit.Allow() {
		rl.suppressed.Add(1)
		return "", nil, false
	}
	if n := rl.suppressed.Swap(0); n > 0 {
		return format + " (%d similar messages suppressed)", append(v, n), true
	}
	return format, v, true
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if !rl.logger.IsLogging(Debug) {
		return
	}
	if format, v, ok := rl.allow(format, v); ok {
		rl.logger.Debugf(format, v...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if !rl.logger.IsLogging(Info) {
		return
	}
	if format, v, ok := rl.allow(format, v); ok {
		rl.logger.Infof(format, v...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if format, v, ok := rl.allow(format, v); ok {
		rl.logger.Warningf(format, v...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}

// RateLimitedLogger returns a Logger that logs to the provided logger no more
// than once per the provided duration.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimitedLogger{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}
