package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	holdsTotal      *prometheus.CounterVec
	releasesTotal   *prometheus.CounterVec
	bookingDuration prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		holdsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "booking",
			Name:      "holds_total",
			Help:      "Slot hold attempts by outcome",
		}, []string{"outcome"}),
		releasesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "booking",
			Name:      "slot_releases_total",
			Help:      "Slot releases by reason",
		}, []string{"reason"}),
		bookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carebridge",
			Subsystem: "booking",
			Name:      "booking_duration_seconds",
			Help:      "End-to-end latency of the book operation",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.holdsTotal, m.releasesTotal, m.bookingDuration)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingDuration.Observe(seconds)
}

func (m *BookingMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveRelease(reason string) {
	if m == nil {
		return
	}
	m.releasesTotal.WithLabelValues(reason).Inc()
}

// MessagingMetrics exposes counters for message traffic and read state.
type MessagingMetrics struct {
	sentTotal *prometheus.CounterVec
	readTotal prometheus.Counter
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Message send attempts by outcome",
		}, []string{"outcome"}),
		readTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "messaging",
			Name:      "messages_read_total",
			Help:      "Messages marked read",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sentTotal, m.readTotal)
	return m
}

func (m *MessagingMetrics) ObserveSend(outcome string) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(outcome).Inc()
}

func (m *MessagingMetrics) ObserveRead() {
	if m == nil {
		return
	}
	m.readTotal.Inc()
}

// ReadCounter exposes the read counter for assertions.
func (m *MessagingMetrics) ReadCounter() prometheus.Counter {
	return m.readTotal
}
