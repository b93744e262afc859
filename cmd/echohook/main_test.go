package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BRAVO68WEB/echohook/internal/adapters/storage/memory"
	cfgpkg "github.com/BRAVO68WEB/echohook/internal/infrastructure/config"
	obs "github.com/BRAVO68WEB/echohook/internal/infrastructure/observability"
)

type flakyStore struct {
	failures int
	calls    int
}

func (s *flakyStore) HealthCheck(ctx context.Context) (bool, error) {
	s.calls++
	if s.calls <= s.failures {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func TestConnectWithRetry(t *testing.T) {
	logger := zerolog.Nop()
	s := &flakyStore{failures: 2}
	require.NoError(t, connectWithRetry(context.Background(), s, 5, time.Millisecond, &logger))
	assert.Equal(t, 3, s.calls)

	s = &flakyStore{failures: 10}
	err := connectWithRetry(context.Background(), s, 3, time.Millisecond, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, s.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = &flakyStore{failures: 10}
	assert.ErrorIs(t, connectWithRetry(ctx, s, 3, time.Hour, &logger), context.Canceled)
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	logger := zerolog.Nop()
	st, err := openStore(cfgpkg.Config{RedisURL: "memory://"}, nil, &logger)
	require.NoError(t, err)
	_, ok := st.(*memory.Store)
	assert.True(t, ok)

	_, err = openStore(cfgpkg.Config{RedisURL: "://bad"}, nil, &logger)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), obs.Version)
}

func TestHealthcheckCommand(t *testing.T) {
	status := "healthy"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q,"redis":"connected","version":"dev","uptime_seconds":3,"sse_channels":0}`, status)
	}))
	defer srv.Close()

	run := func() error {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"healthcheck", "--url", srv.URL + "/"})
		return cmd.Execute()
	}
	assert.NoError(t, run())
	status = "degraded"
	assert.Error(t, run())
}
