package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds the pipeline's instruments, backed by any go-utils
// MetricFactory (the forge-managed metrics system via fapp.Metrics(), or a
// standalone collector). A nil *Metrics records nothing.
type Metrics struct {
	EventsReceived  gu.Counter
	EventsRejected  gu.Counter
	EventsProcessed gu.Counter
	Decisions       gu.Counter
	Sends           gu.Counter
	ProcessLatency  gu.Histogram
	QueueDepth      gu.Gauge
	PendingDrained  gu.Counter
	SuggestionsSent gu.Counter
}

// NewMetrics creates the instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsReceived:  factory.Counter("replydesk_events_received_total"),
		EventsRejected:  factory.Counter("replydesk_events_rejected_total"),
		EventsProcessed: factory.Counter("replydesk_events_processed_total"),
		Decisions:       factory.Counter("replydesk_decisions_total"),
		Sends:           factory.Counter("replydesk_sends_total"),
		ProcessLatency:  factory.Histogram("replydesk_process_latency_seconds"),
		QueueDepth:      factory.Gauge("replydesk_queue_depth"),
		PendingDrained:  factory.Counter("replydesk_pending_drained_total"),
		SuggestionsSent: factory.Counter("replydesk_suggestions_sent_total"),
	}
}

// RecordReceived counts an accepted webhook event.
func (m *Metrics) RecordReceived() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

// RecordRejected counts a webhook rejected for reason (signature,
// rate_limit, duplicate).
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.EventsRejected.WithLabels(map[string]string{"reason": reason}).Inc()
}

// RecordProcessed counts a processed event by outcome and its latency.
func (m *Metrics) RecordProcessed(outcome string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.ProcessLatency.Observe(latencySeconds)
}

// RecordDecision counts a decision by action.
func (m *Metrics) RecordDecision(action string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabels(map[string]string{"action": action}).Inc()
}

// RecordSend counts an outbound send by status (sent, failed).
func (m *Metrics) RecordSend(status string) {
	if m == nil {
		return
	}
	m.Sends.WithLabels(map[string]string{"status": status}).Inc()
}

// RecordDrained counts an event re-run by a drain sweep.
func (m *Metrics) RecordDrained() {
	if m == nil {
		return
	}
	m.PendingDrained.Inc()
}

// RecordSuggestionSent counts an approved suggestion.
func (m *Metrics) RecordSuggestionSent() {
	if m == nil {
		return
	}
	m.SuggestionsSent.Inc()
}

// QueueIn tracks an event entering the in-process queue.
func (m *Metrics) QueueIn() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

// QueueOut tracks an event leaving the in-process queue.
func (m *Metrics) QueueOut() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}
