package metrics_collectors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCollector struct {
	name  string
	value float64
	err   error
}

func (s *staticCollector) Name() string { return s.name }

func (s *staticCollector) Collect(context.Context) (float64, error) { return s.value, s.err }

func (s *staticCollector) Description() string { return "Static " + s.name + "." }

func TestMetricsRegistry_Collect(t *testing.T) {
	r := NewMetricsRegistry(time.Second, zerolog.Nop())
	r.Register(&staticCollector{name: "load", value: 42})
	r.Register(&staticCollector{name: "broken", err: errors.New("unavailable")})

	expected := `
# HELP signal_agent_host_load Static load.
# TYPE signal_agent_host_load gauge
signal_agent_host_load 42
`
	require.NoError(t, testutil.CollectAndCompare(r, strings.NewReader(expected), "signal_agent_host_load"))
	assert.Equal(t, 1, testutil.CollectAndCount(r))
}

func TestMetricsRegistry_DuplicateName(t *testing.T) {
	r := NewMetricsRegistry(time.Second, zerolog.Nop())
	r.Register(&staticCollector{name: "load", value: 1})
	r.Register(&staticCollector{name: "load", value: 2})

	assert.Len(t, r.collectors, 1)
}

func TestHostRegistry_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewHostRegistry("/", time.Second, zerolog.Nop())))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), "signal_agent_host_"))
	}
}
