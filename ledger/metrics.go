// Copyright 2025 OpenMerit Labs
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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	opsTotal  *prometheus.CounterVec
	opErrors  *prometheus.CounterVec
	ledgerSeq prometheus.Gauge
}

func newStateMetrics(promRegistry prometheus.Registerer) *stateMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &stateMetrics{
		opsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meritd_ledger_ops_total",
				Help: "total ledger operations applied by name",
			},
			[]string{"op"},
		),
		opErrors: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meritd_ledger_op_errors_total",
				Help: "total ledger operations rejected by name",
			},
			[]string{"op"},
		),
		ledgerSeq: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meritd_ledger_seq",
				Help: "latest applied ledger log sequence number",
			},
		),
	}
}
