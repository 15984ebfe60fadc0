// Package metrics provides Prometheus metrics for the datashare services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by the event bus and the workflow
// runners. A nil *Metrics is valid and records nothing.
type Metrics struct {
	executionsStarted  *prometheus.CounterVec
	executionsFinished *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	eventsDropped      *prometheus.CounterVec
	eventsConsumed     *prometheus.CounterVec
	crawlPolls         prometheus.Counter
}

// New registers the datashare collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datashare_executions_started_total",
			Help: "Workflow executions started, by workflow.",
		}, []string{"workflow"}),
		executionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datashare_executions_finished_total",
			Help: "Workflow executions finished, by workflow and status.",
		}, []string{"workflow", "status"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datashare_events_published_total",
			Help: "Events published to the channel, by detail type.",
		}, []string{"detail_type"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datashare_events_dropped_total",
			Help: "Events silently dropped by the transport, by reason.",
		}, []string{"reason"}),
		eventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datashare_events_consumed_total",
			Help: "Events consumed from the channel, by detail type.",
		}, []string{"detail_type"}),
		crawlPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "datashare_crawl_polls_total",
			Help: "Crawl job status polls issued by the refresh workflow.",
		}),
	}
}

// ExecutionStarted records a started execution.
func (m *Metrics) ExecutionStarted(workflow string) {
	if m == nil {
		return
	}
	m.executionsStarted.WithLabelValues(workflow).Inc()
}

// ExecutionFinished records a finished execution.
func (m *Metrics) ExecutionFinished(workflow, status string) {
	if m == nil {
		return
	}
	m.executionsFinished.WithLabelValues(workflow, status).Inc()
}

// EventPublished records a published event.
func (m *Metrics) EventPublished(detailType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(detailType).Inc()
}

// EventDropped records an event dropped by the transport.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// EventConsumed records a consumed event.
func (m *Metrics) EventConsumed(detailType string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(detailType).Inc()
}

// CrawlPoll records one crawl job status poll.
func (m *Metrics) CrawlPoll() {
	if m == nil {
		return
	}
	m.crawlPolls.Inc()
}
