// Package metrics defines the prometheus collectors of the codecs and the
// document store.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "visitor"

	formatLabelName = "format"
	opLabelName     = "op"

	OpEncode = "encode"
	OpDecode = "decode"
	OpPut    = "put"
	OpGet    = "get"
	OpDelete = "delete"
)

var (
	// sizeBuckets are document sizes in bytes, from 64B to 64MB.
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 11)

	Documents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "number of documents encoded or decoded",
		}, []string{formatLabelName, opLabelName})

	DocumentBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_bytes",
			Help:      "size of encoded or decoded documents",
			Buckets:   sizeBuckets,
		}, []string{formatLabelName, opLabelName})

	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "number of failed codec operations",
		}, []string{formatLabelName, opLabelName})

	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "number of document store operations",
		}, []string{opLabelName})

	registerOnce sync.Once
)

// Register registers all collectors with r. Only the first call has an
// effect.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(Documents)
		r.MustRegister(DocumentBytes)
		r.MustRegister(Errors)
		r.MustRegister(StoreOps)
	})
}

func ObserveEncode(format string, size int) {
	Documents.WithLabelValues(format, OpEncode).Inc()
	DocumentBytes.WithLabelValues(format, OpEncode).Observe(float64(size))
}

func ObserveDecode(format string, size int) {
	Documents.WithLabelValues(format, OpDecode).Inc()
	DocumentBytes.WithLabelValues(format, OpDecode).Observe(float64(size))
}

func ObserveError(format, op string) {
	Errors.WithLabelValues(format, op).Inc()
}
