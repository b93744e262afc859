package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaintenanceInterval is the period of the background maintenance loop.
	MaintenanceInterval = 60 * time.Second
	// apiURLRefreshEvery refreshes the advertised API URL every N ticks.
	apiURLRefreshEvery = 10
)

// ChannelReaper reclaims distribution channels that have no subscribers.
type ChannelReaper interface {
	CleanupAll() int
	ChannelCount() int
}

// MaintenanceObserver receives the outcome of each maintenance pass.
type MaintenanceObserver interface {
	ChannelsReaped(n int)
	StoreHealthy(ok bool)
}

// Maintenance periodically reaps idle channels and probes the store. Nothing
// else depends on it for correctness; it only reclaims memory and reports.
type Maintenance struct {
	reaper   ChannelReaper
	store    HealthChecker
	disco    DiscoveryRepository
	apiURL   string
	interval time.Duration
	observer MaintenanceObserver
	logger   zerolog.Logger
	ticks    int
}

type MaintenanceOption func(*Maintenance)

func WithInterval(d time.Duration) MaintenanceOption {
	return func(m *Maintenance) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithAPIURLRefresh re-advertises url through disco every tenth pass.
func WithAPIURLRefresh(disco DiscoveryRepository, url string) MaintenanceOption {
	return func(m *Maintenance) {
		m.disco = disco
		m.apiURL = url
	}
}

func WithObserver(o MaintenanceObserver) MaintenanceOption {
	return func(m *Maintenance) { m.observer = o }
}

func NewMaintenance(reaper ChannelReaper, store HealthChecker, logger *zerolog.Logger, opts ...MaintenanceOption) *Maintenance {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "maintenance").Logger()
	}
	m := &Maintenance{reaper: reaper, store: store, interval: MaintenanceInterval, logger: l}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run blocks until ctx is done, performing one pass per interval.
func (m *Maintenance) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass: reap channels, then probe the store.
func (m *Maintenance) RunOnce(ctx context.Context) {
	removed := m.reaper.CleanupAll()
	m.logger.Debug().Int("removed", removed).Int("active_channels", m.reaper.ChannelCount()).Msg("channel cleanup completed")
	if m.observer != nil {
		m.observer.ChannelsReaped(removed)
	}

	ok, err := m.store.HealthCheck(ctx)
	switch {
	case err != nil:
		m.logger.Error().Err(err).Msg("store health check failed, client will reconnect on next use")
	case !ok:
		m.logger.Warn().Msg("store health check returned unexpected response")
	default:
		m.logger.Debug().Msg("store health check passed")
	}
	if m.observer != nil {
		m.observer.StoreHealthy(err == nil && ok)
	}

	m.ticks++
	if m.disco != nil && m.apiURL != "" && m.ticks >= apiURLRefreshEvery {
		m.ticks = 0
		if err := m.disco.SetAPIURL(ctx, m.apiURL); err != nil {
			m.logger.Warn().Err(err).Msg("failed to refresh API URL")
		} else {
			m.logger.Debug().Str("api_url", m.apiURL).Msg("refreshed API URL")
		}
	}
}
