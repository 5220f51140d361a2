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
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
	"ringzero.dev/ringzero/pkg/ring0"
)

// Metric names.
const (
	MetricDeliveries    = "ringzero_interrupt_deliveries_total"
	MetricEscalations   = "ringzero_double_fault_escalations_total"
	MetricTripleFaults  = "ringzero_triple_faults_total"
	MetricEOIs          = "ringzero_pic_end_of_interrupts_total"
	MetricTicks         = "ringzero_timer_ticks_total"
	MetricKeyboardBytes = "ringzero_keyboard_bytes_total"
)

// stats are the machine's event counters.
type stats struct {
	deliveries    [256]atomic.Uint64
	escalations   atomic.Uint64
	tripleFaults  atomic.Uint64
	eois          [16]atomic.Uint64
	ticks         atomic.Uint64
	keyboardBytes atomic.Uint64
}

func counter(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

func counterValue(v uint64, labels ...string) *dto.Metric {
	m := &dto.Metric{Counter: &dto.Counter{Value: proto.Float64(float64(v))}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

// families returns the counters as metric families. Per-vector and per-line
// series are only present once non-zero.
func (s *stats) families() []*dto.MetricFamily {
	var deliveries []*dto.Metric
	for v := range s.deliveries {
		if n := s.deliveries[v].Load(); n > 0 {
			deliveries = append(deliveries, counterValue(n,
				"vector", strconv.Itoa(v),
				"name", ring0.Vector(v).String()))
		}
	}
	var eois []*dto.Metric
	for irq := range s.eois {
		if n := s.eois[irq].Load(); n > 0 {
			eois = append(eois, counterValue(n, "irq", strconv.Itoa(irq)))
		}
	}
	return []*dto.MetricFamily{
		counter(MetricDeliveries, "Interrupts and exceptions delivered to a handler.", deliveries...),
		counter(MetricEscalations, "Double faults raised by fault escalation.", counterValue(s.escalations.Load())),
		counter(MetricTripleFaults, "Triple faults.", counterValue(s.tripleFaults.Load())),
		counter(MetricEOIs, "End-of-interrupt commands that retired an interrupt line.", eois...),
		counter(MetricTicks, "Timer interrupts raised.", counterValue(s.ticks.Load())),
		counter(MetricKeyboardBytes, "Scancode bytes read by the kernel.", counterValue(s.keyboardBytes.Load())),
	}
}

// WriteMetrics writes the machine's counters to w in the Prometheus text
// exposition format.
func (m *Machine) WriteMetrics(w io.Writer) error {
	for _, f := range m.stats.families() {
		if len(f.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, f); err != nil {
			return fmt.Errorf("writing %s: %w", f.GetName(), err)
		}
	}
	return nil
}
