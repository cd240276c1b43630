// Prometheus instrumentation.
//
// Metrics are optional: every recording method is a no-op on a nil
// *Metrics, so readers and indexes built without one pay nothing.
package dsv

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for dsv_records_total and dsv_seeks_total.
const (
	opRead = "read"
	opSkip = "skip"

	seekBuffered = "buffered"
	seekReload   = "reload"
)

// Metrics holds the Prometheus metrics shared by readers and indexes.
type Metrics struct {
	BlocksRead  prometheus.Counter
	BytesRead   prometheus.Counter
	Records     *prometheus.CounterVec
	Seeks       *prometheus.CounterVec
	IndexGroups prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	blocksRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dsv_blocks_read_total",
		Help: "Total blocks read from input streams",
	})

	bytesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dsv_bytes_read_total",
		Help: "Total bytes read from input streams",
	})

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsv_records_total",
		Help: "Total records consumed, by operation",
	}, []string{"op"})

	seeks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsv_seeks_total",
		Help: "Total seeks, by whether the buffer was reused or reloaded",
	}, []string{"kind"})

	indexGroups := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dsv_index_groups",
		Help: "Number of groups in the most recently built or loaded index",
	})

	reg.MustRegister(blocksRead, bytesRead, records, seeks, indexGroups)

	return &Metrics{
		BlocksRead:  blocksRead,
		BytesRead:   bytesRead,
		Records:     records,
		Seeks:       seeks,
		IndexGroups: indexGroups,
	}
}

func (m *Metrics) block(n int) {
	if m == nil {
		return
	}
	m.BlocksRead.Inc()
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) record(op string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(op).Inc()
}

func (m *Metrics) seek(kind string) {
	if m == nil {
		return
	}
	m.Seeks.WithLabelValues(kind).Inc()
}

func (m *Metrics) groups(n int) {
	if m == nil {
		return
	}
	m.IndexGroups.Set(float64(n))
}
