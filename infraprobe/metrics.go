package infraprobe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	successHelp  = "Outcome of the last probe of a service (1 = succeeded, 0 = failed)"
	durationHelp = "Duration of service probes in seconds"
	statusHelp   = "Status category of the last probe of a service"
)

var defaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}

// labelNames is the order of metric labels.
var labelNames = []string{"probe", "kind", "host", "port"}

// MetricsExporter records probe outcomes as Prometheus metrics.
type MetricsExporter struct {
	success  *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	status   *prometheus.GaugeVec
}

// NewMetricsExporter creates the probe metrics and registers them with reg.
func NewMetricsExporter(reg prometheus.Registerer) (*MetricsExporter, error) {
	success := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "infraprobe_probe_success",
		Help: successHelp,
	}, labelNames)

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "infraprobe_probe_duration_seconds",
		Help:    durationHelp,
		Buckets: defaultDurationBuckets,
	}, labelNames)

	status := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "infraprobe_probe_status",
		Help: statusHelp,
	}, append(append([]string{}, labelNames...), "status"))

	for _, c := range []prometheus.Collector{success, duration, status} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &MetricsExporter{
		success:  success,
		duration: duration,
		status:   status,
	}, nil
}

// Record stores the outcome of one probe.
func (m *MetricsExporter) Record(t Target, r Result) {
	labels := m.labels(t)
	if r.Succeeded {
		m.success.With(labels).Set(1)
	} else {
		m.success.With(labels).Set(0)
	}
	m.ObserveDuration(t, r.Latency)
	m.SetStatus(t, r.Status)
}

// ObserveDuration adds a probe duration to the histogram.
func (m *MetricsExporter) ObserveDuration(t Target, d time.Duration) {
	m.duration.With(m.labels(t)).Observe(d.Seconds())
}

// SetStatus sets the enum gauge: 1 for category, 0 for every other one.
func (m *MetricsExporter) SetStatus(t Target, category StatusCategory) {
	for _, c := range AllStatusCategories {
		labels := m.labels(t)
		labels["status"] = string(c)
		v := 0.0
		if c == category {
			v = 1
		}
		m.status.With(labels).Set(v)
	}
}

func (m *MetricsExporter) labels(t Target) prometheus.Labels {
	return prometheus.Labels{
		"probe": t.Name,
		"kind":  string(t.Kind),
		"host":  t.Host,
		"port":  t.Port,
	}
}
