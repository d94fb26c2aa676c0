package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "citascrit"

// Import outcomes.
const (
	ImportAccepted = "accepted"
	ImportRejected = "rejected"
	ImportFailed   = "failed"
)

// Alarm events.
const (
	AlarmArmed     = "armed"
	AlarmCancelled = "cancelled"
	AlarmFired     = "fired"
	AlarmFailed    = "failed"
)

// Metrics tracks imports, parsing and alarms. Every method is safe on a nil
// receiver so callers may run without metrics.
type Metrics struct {
	startTime time.Time
	gatherer  prometheus.Gatherer

	importsTotal     *prometheus.CounterVec
	importDuration   prometheus.Histogram
	recordsParsed    prometheus.Counter
	recordsSkipped   prometheus.Counter
	recordsDuplicate prometheus.Counter
	alarmsTotal      *prometheus.CounterVec
	alarmsPending    prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns a process-wide instance registered on the default
// prometheus registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(nil)
	})
	return defaultMetrics
}

// New creates metrics registered on reg, or on the default prometheus
// registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		startTime: time.Now(),
		gatherer:  gatherer,
		importsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "documents_total",
			Help:      "Agenda documents processed, by outcome",
		}, []string{"status"}),
		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Time spent extracting, parsing and storing a document",
			Buckets:   prometheus.DefBuckets,
		}),
		recordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "appointments_total",
			Help:      "Appointments extracted from documents",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "skipped_total",
			Help:      "Record candidates that produced no appointment",
		}),
		recordsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "duplicates_total",
			Help:      "Duplicate appointments dropped",
		}),
		alarmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "events_total",
			Help:      "Alarm lifecycle events, by kind and event",
		}, []string{"kind", "event"}),
		alarmsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "pending",
			Help:      "Alarms currently armed",
		}),
	}

	registerer.MustRegister(
		m.importsTotal,
		m.importDuration,
		m.recordsParsed,
		m.recordsSkipped,
		m.recordsDuplicate,
		m.alarmsTotal,
		m.alarmsPending,
	)
	return m
}

// Handler serves the metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordImport(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.importsTotal.WithLabelValues(status).Inc()
	m.importDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordParse(parsed, skipped, duplicates int) {
	if m == nil {
		return
	}
	m.recordsParsed.Add(float64(parsed))
	m.recordsSkipped.Add(float64(skipped))
	m.recordsDuplicate.Add(float64(duplicates))
}

func (m *Metrics) RecordAlarm(kind, event string) {
	if m == nil {
		return
	}
	m.alarmsTotal.WithLabelValues(kind, event).Inc()
}

func (m *Metrics) SetAlarmsPending(n int) {
	if m == nil {
		return
	}
	m.alarmsPending.Set(float64(n))
}

// Snapshot is a point-in-time summary of the collectors, served by the
// health endpoint and logged when the daemon stops.
type Snapshot struct {
	Uptime            time.Duration `json:"uptime"`
	ImportsAccepted   int64         `json:"imports_accepted"`
	ImportsRejected   int64         `json:"imports_rejected"`
	ImportsFailed     int64         `json:"imports_failed"`
	AppointmentsFound int64         `json:"appointments_found"`
	CandidatesSkipped int64         `json:"candidates_skipped"`
	DuplicatesDropped int64         `json:"duplicates_dropped"`
	AlarmsArmed       int64         `json:"alarms_armed"`
	AlarmsFired       int64         `json:"alarms_fired"`
	AlarmsPending     int64         `json:"alarms_pending"`
	AcceptRate        float64       `json:"accept_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	if m == nil {
		return &Snapshot{}
	}
	s := &Snapshot{
		Uptime:            time.Since(m.startTime),
		ImportsAccepted:   sum(m.importsTotal, withLabel("status", ImportAccepted)),
		ImportsRejected:   sum(m.importsTotal, withLabel("status", ImportRejected)),
		ImportsFailed:     sum(m.importsTotal, withLabel("status", ImportFailed)),
		AppointmentsFound: sum(m.recordsParsed, nil),
		CandidatesSkipped: sum(m.recordsSkipped, nil),
		DuplicatesDropped: sum(m.recordsDuplicate, nil),
		AlarmsArmed:       sum(m.alarmsTotal, withLabel("event", AlarmArmed)),
		AlarmsFired:       sum(m.alarmsTotal, withLabel("event", AlarmFired)),
		AlarmsPending:     sum(m.alarmsPending, nil),
	}

	total := s.ImportsAccepted + s.ImportsRejected + s.ImportsFailed
	if total > 0 {
		s.AcceptRate = float64(s.ImportsAccepted) / float64(total) * 100
	}
	return s
}

// sum adds up the counter and gauge values of the series c collects that
// keep accepts. A nil keep accepts every series.
func sum(c prometheus.Collector, keep func(*dto.Metric) bool) int64 {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil {
			continue
		}
		if keep != nil && !keep(&pb) {
			continue
		}
		total += pb.GetCounter().GetValue() + pb.GetGauge().GetValue()
	}
	return int64(total)
}

func withLabel(name, value string) func(*dto.Metric) bool {
	return func(pb *dto.Metric) bool {
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}
