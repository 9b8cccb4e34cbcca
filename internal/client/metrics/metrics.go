// Package metrics holds the prometheus counters the client records about
// session refreshes, authorization retries and responses.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshShared  = "shared"
)

// Retry outcomes.
const (
	RetrySuccess       = "success"
	RetryFailure       = "failure"
	RetryRefreshFailed = "refresh_failed"
	RetryNotReplayable = "not_replayable"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	// RefreshTotal counts refresh outcomes. "shared" counts callers that
	// joined an in-flight refresh instead of starting one.
	RefreshTotal *prometheus.CounterVec

	// AuthRetriesTotal counts 401 replays by outcome.
	AuthRetriesTotal *prometheus.CounterVec

	// ResponsesTotal counts responses by status class (2xx, 4xx, ...).
	ResponsesTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicedesk_session_refresh_total",
				Help: "Session refresh outcomes",
			},
			[]string{"result"},
		),
		AuthRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicedesk_auth_retries_total",
				Help: "Requests replayed after an unauthorized response, by outcome",
			},
			[]string{"result"},
		),
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicedesk_http_responses_total",
				Help: "HTTP responses received by status class",
			},
			[]string{"class"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRetry(result string) {
	if m == nil {
		return
	}
	m.AuthRetriesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveResponse(status int) {
	if m == nil {
		return
	}
	m.ResponsesTotal.WithLabelValues(StatusClass(status)).Inc()
}

// StatusClass maps 404 to "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// Lines renders every counter as `name{labels} value`, sorted, for display.
func (m *Metrics) Lines() ([]string, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	return lines, nil
}
