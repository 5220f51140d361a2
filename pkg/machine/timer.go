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
	"context"
	"time"
)

// timerIRQ is the interrupt line of the interval timer.
const timerIRQ = 0

// timer is the interval timer in its power-on mode: a periodic edge on
// IRQ 0.
type timer struct {
	hz    uint
	pic   *pic8259
	stats *stats
}

func newTimer(hz uint, p *pic8259, s *stats) *timer {
	return &timer{hz: hz, pic: p, stats: s}
}

// run raises IRQ 0 periodically until ctx is done.
func (t *timer) run(ctx context.Context) error {
	if t.hz == 0 {
		return nil
	}
	ticker := time.NewTicker(time.Second / time.Duration(t.hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.stats.ticks.Add(1)
			t.pic.raise(timerIRQ)
		}
	}
}
