package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(operationsMetric, storeDurationMetric, recordsMetric)
}

var operationsMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "savegame",
	Name:      "operations_total",
	Help:      "Total load and save operations by result code",
}, []string{"operation", "code"})

var storeDurationMetric = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "savegame",
	Name:      "store_duration_seconds",
	Help:      "Latency of document store calls",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var recordsMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "savegame",
	Name:      "records",
	Help:      "Number of stored save records",
})

// IncOperation counts a finished load or save.
func IncOperation(operation string, code int) {
	operationsMetric.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

// ObserveStore records the latency of a store call started at start.
func ObserveStore(operation string, start time.Time) {
	storeDurationMetric.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetRecords sets the record count gauge.
func SetRecords(n int64) {
	recordsMetric.Set(float64(n))
}
