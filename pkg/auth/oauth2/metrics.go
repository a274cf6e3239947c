// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics counts token manager activity. A nil *Metrics records nothing.
type Metrics struct {
	cacheHits *prometheus.CounterVec
	fetches   *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewMetrics creates the token manager counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqauth",
			Subsystem: "oauth2",
			Name:      "cache_hits_total",
			Help:      "Token requests served from a valid cached credential.",
		}, []string{"grant_type"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqauth",
			Subsystem: "oauth2",
			Name:      "token_fetches_total",
			Help:      "Fresh token acquisitions by result.",
		}, []string{"grant_type", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqauth",
			Subsystem: "oauth2",
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"grant_type", "result"}),
	}
	for _, c := range []prometheus.Collector{m.cacheHits, m.fetches, m.refreshes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering oauth2 metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) cacheHit(g GrantType) {
	if m != nil {
		m.cacheHits.WithLabelValues(string(g)).Inc()
	}
}

func (m *Metrics) fetched(g GrantType, err error) {
	if m != nil {
		m.fetches.WithLabelValues(string(g), result(err)).Inc()
	}
}

func (m *Metrics) refreshed(g GrantType, err error) {
	if m != nil {
		m.refreshes.WithLabelValues(string(g), result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}
