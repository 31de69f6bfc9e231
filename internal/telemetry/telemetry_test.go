package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounts(t *testing.T) {
	p := NewPrometheus("test")

	p.Invocation("math.Sqrt", "success")
	p.Invocation("math.Sqrt", "success")
	p.Invocation("math.Sqrt", "domain")
	p.Target(StatusFuzzed)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.InvocationsTotal.WithLabelValues("math.Sqrt", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.InvocationsTotal.WithLabelValues("math.Sqrt", "domain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.TargetsTotal.WithLabelValues(StatusFuzzed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.TargetsTotal.WithLabelValues(StatusAbandoned)))
}

func TestPrometheusRegistriesAreIndependent(t *testing.T) {
	a := NewPrometheus("")
	b := NewPrometheus("")

	a.Target(StatusExcluded)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TargetsTotal.WithLabelValues(StatusExcluded)))
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus("callfuzz")
	p.Invocation("strings.Repeat", "panic")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `callfuzz_invocations_total{class="panic",target="strings.Repeat"} 1`)
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Invocation("x", "success")
	s.Target(StatusSkipped)
}
