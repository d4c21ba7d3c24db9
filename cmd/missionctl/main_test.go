package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/skyfleet/missionctl/internal/api"
	"github.com/skyfleet/missionctl/internal/catalog"
	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/commands"
	"github.com/skyfleet/missionctl/internal/config"
	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/logging"
	"github.com/skyfleet/missionctl/internal/registry"
	"github.com/skyfleet/missionctl/internal/server"
	"github.com/skyfleet/missionctl/internal/validation"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, ".", o.configDir)
	assert.False(t, o.headless)
	assert.Equal(t, 1.0, o.speedup)
}

func TestParseFlags_Values(t *testing.T) {
	o, err := parseFlags([]string{"-headless", "-pattern", "orbit", "-profile", "thermal", "-speedup", "4"})
	require.NoError(t, err)
	assert.True(t, o.headless)
	assert.Equal(t, "orbit", o.pattern)
	assert.Equal(t, "thermal", o.profile)
	assert.Equal(t, 4.0, o.speedup)
}

func TestParseFlags_Env(t *testing.T) {
	t.Setenv("MISSIONCTL_CONFIG_DIR", "/etc/missionctl")
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/missionctl", o.configDir)
}

func TestParseFlags_RejectsBadSpeedup(t *testing.T) {
	_, err := parseFlags([]string{"-speedup", "0"})
	assert.Error(t, err)
}

func TestFlyMission(t *testing.T) {
	cat, err := catalog.Embedded()
	require.NoError(t, err)

	clk := clock.Real()
	c, err := controller.New(controller.Options{
		ID:           "headless",
		Clock:        clk,
		Catalog:      cat,
		Pattern:      core.PatternCorridor,
		ProfileID:    "inspection",
		Engine:       validation.NewEngine(clk, validation.Options{Latency: time.Millisecond}),
		TickInterval: time.Millisecond,
		PrepareDelay: time.Millisecond,
		LaunchDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	final, err := flyMission(ctx, c, logger)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.State.Status)
	assert.Equal(t, 100.0, final.State.Progress)
	assert.Equal(t, core.PhaseDocked, final.Phase.Kind)
}

func TestFlyRemote(t *testing.T) {
	cat, err := catalog.Embedded()
	require.NoError(t, err)

	clk := clock.Real()
	missions, err := registry.New(registry.Options{
		Catalog:      cat,
		Clock:        clk,
		Engine:       validation.NewEngine(clk, validation.Options{Latency: time.Millisecond}),
		TickInterval: time.Millisecond,
		PrepareDelay: time.Millisecond,
		LaunchDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	defer missions.Close()

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.New(io.Discard)))
	require.NoError(t, err)
	defer d.Close()
	commands.NewManager(missions).RegisterHandlers(d)

	metrics, err := server.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	srv, err := server.New(server.Options{Missions: missions, Catalog: cat, Dispatcher: d, Metrics: metrics})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	final, err := flyRemote(ctx, api.New(ts.URL), core.PatternFacade, "", logger, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.State.Status)
	assert.Equal(t, core.PatternFacade, final.Pattern)

	// The mission is removed once flown.
	assert.Zero(t, missions.Len())
}

func setupTestConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("logsDir", t.TempDir())
	viper.Set("graylog.enabled", true)
	viper.Set("graylog.address", "127.0.0.1:12201")
}

func TestNewApp_FailedSetupReturnsError(t *testing.T) {
	setupTestConfig(t)
	viper.Set("catalog.source", "file")
	viper.Set("catalog.path", filepath.Join(t.TempDir(), "missing.yaml"))

	a, err := newApp(options{speedup: 1})
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestApp_CloseReleasesLogWriters(t *testing.T) {
	setupTestConfig(t)

	a := &app{slogManager: logging.NewSlogManager()}
	require.NoError(t, a.setupLogging(false))
	require.NotNil(t, a.graylog)
	require.NotNil(t, a.logFile)

	a.close()

	_, err := a.graylog.Write([]byte(`{"short_message":"after close"}`))
	assert.Error(t, err, "graylog connection must be closed")
}

func TestApp_SlowSpeedupScalesClock(t *testing.T) {
	setupTestConfig(t)
	viper.Set("graylog.enabled", false)

	a, err := newApp(options{speedup: 0.5})
	require.NoError(t, err)
	defer a.close()

	assert.NotEqual(t, clock.Real(), a.clock)
}
