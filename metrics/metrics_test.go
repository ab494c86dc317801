package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Allocated("local-callback")
	c.Allocated("local-callback")
	c.Generated("local-callback", false)
	c.Generated("local-callback", true)
	c.Injection(OutcomeInjected)
	c.Injection(OutcomeSkipped)
	c.Injection(OutcomeSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CarriersAllocated.WithLabelValues("local-callback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CarriersGenerated.WithLabelValues("local-callback", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Injections.WithLabelValues(OutcomeSkipped)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.Allocated("x")
		c.Generated("x", true)
		c.Injection(OutcomeFailed)
	})
}
