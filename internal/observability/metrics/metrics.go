package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters/histograms for the booking flow.
type FlowMetrics struct {
	widgetMessages      *prometheus.CounterVec
	availabilityTotal   *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	paymentChoices      *prometheus.CounterVec
	handoffDecodes      *prometheus.CounterVec
	submissions         *prometheus.CounterVec
	pagesOpen           prometheus.Gauge
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		widgetMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_flow",
			Name:      "widget_messages_total",
			Help:      "Inbound widget messages by widget, type and outcome",
		}, []string{"widget", "type", "outcome"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_flow",
			Name:      "availability_total",
			Help:      "Availability refreshes by result (success, error, stale)",
		}, []string{"status"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking_flow",
			Name:      "availability_latency_seconds",
			Help:      "Latency of backend availability lookups",
			Buckets:   prometheus.DefBuckets,
		}),
		paymentChoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_flow",
			Name:      "payment_choices_total",
			Help:      "Payment choices by type, requested destination and outcome",
		}, []string{"type", "destination", "outcome"}),
		handoffDecodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_flow",
			Name:      "handoff_decode_total",
			Help:      "Persisted handoff record loads by status",
		}, []string{"status"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking_flow",
			Name:      "submissions_total",
			Help:      "Booking submissions handed off by status",
		}, []string{"status"}),
		pagesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking_flow",
			Name:      "pages_open",
			Help:      "Page sessions currently open",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.widgetMessages,
		m.availabilityTotal,
		m.availabilityLatency,
		m.paymentChoices,
		m.handoffDecodes,
		m.submissions,
		m.pagesOpen,
	)
	return m
}

func (m *FlowMetrics) ObserveWidgetMessage(widget, msgType, outcome string) {
	if m == nil {
		return
	}
	m.widgetMessages.WithLabelValues(widget, msgType, outcome).Inc()
}

func (m *FlowMetrics) ObserveAvailability(status string, seconds float64) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		m.availabilityLatency.Observe(seconds)
	}
}

func (m *FlowMetrics) ObservePaymentChoice(paymentType, destination, outcome string) {
	if m == nil {
		return
	}
	m.paymentChoices.WithLabelValues(paymentType, destination, outcome).Inc()
}

func (m *FlowMetrics) ObserveHandoffDecode(status string) {
	if m == nil {
		return
	}
	m.handoffDecodes.WithLabelValues(status).Inc()
}

func (m *FlowMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

func (m *FlowMetrics) PageOpened() {
	if m == nil {
		return
	}
	m.pagesOpen.Inc()
}

func (m *FlowMetrics) PageClosed() {
	if m == nil {
		return
	}
	m.pagesOpen.Dec()
}
