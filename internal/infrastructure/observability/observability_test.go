package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveStats struct {
	channels int
	dropped  uint64
}

func (s *liveStats) ChannelCount() int { return s.channels }
func (s *liveStats) Dropped() uint64   { return s.dropped }

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn")
	l.Info().Msg("hidden")
	l.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"component":"test"`)

	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestMetricsObserverAndLive(t *testing.T) {
	m := NewMetrics()
	stats := &liveStats{channels: 3, dropped: 7}
	m.BindLive(stats)

	m.ChannelsReaped(2)
	m.ChannelsReaped(1)
	m.StoreHealthy(true)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChannelsReapedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreHealthyGauge))
	m.StoreHealthy(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreHealthyGauge))

	m.CapturesRejectedTotal.WithLabelValues("rate_limit_exceeded").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapturesRejectedTotal.WithLabelValues("rate_limit_exceeded")))

	expected := `
# HELP echohook_live_channels Live distribution channels currently allocated
# TYPE echohook_live_channels gauge
echohook_live_channels 3
# HELP echohook_live_dropped_total Total captures skipped by lagging subscribers
# TYPE echohook_live_dropped_total counter
echohook_live_dropped_total 7
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "echohook_live_channels", "echohook_live_dropped_total"))
}

func TestVersionString(t *testing.T) {
	assert.True(t, strings.HasPrefix(VersionString(), "echohook "+Version))
}
