package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(Documents.WithLabelValues("binary", OpEncode))
	ObserveEncode("binary", 100)
	ObserveEncode("binary", 200)
	assert.Equal(t, before+2, testutil.ToFloat64(Documents.WithLabelValues("binary", OpEncode)))

	errs := testutil.ToFloat64(Errors.WithLabelValues("ascii", OpDecode))
	ObserveError("ascii", OpDecode)
	assert.Equal(t, errs+1, testutil.ToFloat64(Errors.WithLabelValues("ascii", OpDecode)))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	ObserveDecode("ascii", 10)

	n, err := testutil.GatherAndCount(reg, "visitor_documents_total", "visitor_document_bytes")
	require.NoError(t, err)
	assert.Positive(t, n)
}
