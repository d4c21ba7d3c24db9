package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/skyfleet/missionctl/internal/catalog"
	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/commands"
	"github.com/skyfleet/missionctl/internal/config"
	"github.com/skyfleet/missionctl/internal/database"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/internal/logging"
	"github.com/skyfleet/missionctl/internal/monitor"
	intOtel "github.com/skyfleet/missionctl/internal/otel"
	"github.com/skyfleet/missionctl/internal/publish/mqtt"
	"github.com/skyfleet/missionctl/internal/registry"
	"github.com/skyfleet/missionctl/internal/server"
	"github.com/skyfleet/missionctl/internal/validation"
	"github.com/skyfleet/missionctl/pkg/core"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

const flushTimeout = 5 * time.Second

// app holds the services wired together at startup.
type app struct {
	slogManager *logging.SlogManager
	logger      *slog.Logger
	zlog        zerolog.Logger
	logFile     *lumberjack.Logger
	graylog     *gelf.Writer
	otel        *intOtel.Provider

	catalog    *catalog.Catalog
	db         *database.Manager
	clock      clock.Clock
	missions   *registry.Registry
	dispatcher *dispatcher.Dispatcher
}

func newApp(opts options) (_ *app, err error) {
	a := &app{slogManager: logging.NewSlogManager()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.setupLogging(opts.headless || opts.remote != ""); err != nil {
		return nil, err
	}
	if err := a.setupMissions(opts.speedup); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogging(console bool) error {
	logCfg := config.GetLogConfig()
	logPath := logging.LogFilePath(logCfg.Dir, AppName, time.Now())
	a.logFile = logging.NewFileWriter(logPath, logCfg.MaxSizeMB, logCfg.MaxBackups)

	var out io.Writer = a.logFile
	if console {
		out = io.MultiWriter(os.Stdout, a.logFile)
	}
	a.zlog = logging.NewZerolog(a.logFile, logCfg.Level)

	var graylog io.Writer
	if logCfg.GraylogEnabled {
		w, err := logging.NewGraylogWriter(logCfg.GraylogAddress)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			a.graylog = w
			graylog = w
		}
	}

	var provider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      a.logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OTel provider: %w", err)
		}
		a.otel = p
		provider = p.LoggerProvider()
		p.InstallMeterProvider()
	}

	a.slogManager.Setup(logging.Options{
		File:     out,
		Level:    logCfg.Level,
		Provider: provider,
		Graylog:  graylog,
		Context: logging.MissionAttrs(func() []slog.Attr {
			if a.missions == nil {
				return nil
			}
			return []slog.Attr{slog.Int("views", a.missions.Len())}
		}),
	})
	a.logger = a.slogManager.Logger()
	a.logger.Info("Logging to file", "path", logPath)
	return nil
}

func (a *app) setupMissions(speedup float64) error {
	catCfg := config.GetCatalogConfig()
	dbCfg := config.GetDBConfig()
	cat, db, err := catalog.Open(catCfg.Source, catCfg.Path, database.Config{
		Driver:   dbCfg.Driver,
		Path:     dbCfg.Path,
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		Username: dbCfg.Username,
		Password: dbCfg.Password,
		Database: dbCfg.Database,
	}, a.zlog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	a.catalog, a.db = cat, db
	a.logger.Info("Catalog loaded", "source", catCfg.Source, "patterns", len(cat.Patterns()), "profiles", len(cat.Profiles()))

	a.clock = clock.Real()
	if speedup != 1 {
		a.clock = clock.Scaled(a.clock, speedup)
		a.logger.Info("Simulation clock scaled", "speedup", speedup)
	}

	missionCfg := config.GetMissionConfig()
	site := config.GetSiteConfig()
	engine := validation.NewEngine(a.clock, validation.Options{
		Latency:       missionCfg.ValidationLatency,
		MetersPerUnit: site.MetersPerUnit,
	})

	a.missions, err = registry.New(registry.Options{
		Catalog:      cat,
		Clock:        a.clock,
		Engine:       engine,
		TickInterval: missionCfg.TickInterval,
		PrepareDelay: missionCfg.PrepareDelay,
		LaunchDelay:  missionCfg.LaunchDelay,
		MaxViews:     missionCfg.MaxViews,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	commands.NewManager(a.missions).RegisterHandlers(a.dispatcher)
	a.logger.Debug("Commands registered", "commands", a.dispatcher.Commands())
	return nil
}

// serve runs the enabled network surfaces until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	started := 0

	if srvCfg := config.GetServerConfig(); srvCfg.Enabled {
		metrics, err := server.NewMetrics(nil)
		if err != nil {
			return err
		}
		srv, err := server.New(server.Options{
			Address:        srvCfg.Address,
			AllowedOrigins: srvCfg.AllowedOrigins,
			Missions:       a.missions,
			Catalog:        a.catalog,
			Dispatcher:     a.dispatcher,
			Metrics:        metrics,
			Logger:         a.logger,
			AccessLog:      a.logFile,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
		started++
	}

	var dropped func() uint64
	if mqttCfg := config.GetMQTTConfig(); mqttCfg.Enabled {
		pub, err := a.startMQTT(gctx, g, mqttCfg)
		if err != nil {
			return err
		}
		dropped = pub.Dropped
		started++
	}

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		statusFile := ""
		if monCfg.StatusFile {
			statusFile = filepath.Join(config.GetLogConfig().Dir, "status.json")
		}
		deps := monitor.Dependencies{
			Missions:   monitor.MissionsFunc(a.snapshots),
			Logger:     a.logger,
			Interval:   monCfg.Interval,
			StatusFile: statusFile,
			Dropped:    dropped,
		}
		if a.otel != nil {
			deps.Counters = a.otel.Counters
		}
		mon := monitor.NewService(deps)
		g.Go(func() error { return mon.Run(gctx) })
	}

	if started == 0 {
		a.logger.Warn("No network surface enabled; waiting for shutdown")
	}

	<-gctx.Done()
	a.logger.Info("Shutting down")
	a.missions.Close()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) snapshots() []core.Snapshot {
	views := a.missions.List()
	out := make([]core.Snapshot, 0, len(views))
	for _, c := range views {
		out = append(out, c.Snapshot())
	}
	return out
}

func (a *app) startMQTT(ctx context.Context, g *errgroup.Group, cfg config.MQTTConfig) (*mqtt.Publisher, error) {
	password := ""
	if cfg.PrivateKey != "" {
		var err error
		password, err = mqtt.PasswordFromKeyFile(cfg.PrivateKey, cfg.Audience, time.Now())
		if err != nil {
			return nil, err
		}
	}

	site := config.GetSiteConfig()
	client := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: AppName,
		Password: password,
	}, a.logger)

	pub, err := mqtt.New(mqtt.Options{
		Client:        client,
		TopicPrefix:   cfg.TopicPrefix,
		QoS:           cfg.QoS,
		Encoding:      cfg.Encoding,
		Georeferencer: geo.NewGeoreferencer(site.Longitude, site.Latitude, site.MetersPerUnit),
		Profiles:      a.catalog,
		Dispatch:      a.dispatcher.Dispatch,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.missions.OnCreate(pub.Attach)

	g.Go(func() error {
		if err := mqtt.Connect(ctx, client, a.logger); err != nil {
			return err
		}
		defer mqtt.Disconnect(client)
		return pub.Run(ctx)
	})
	return pub, nil
}

func (a *app) close() {
	if a.missions != nil {
		a.missions.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close catalog database", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.slogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down OTel: %v\n", err)
		}
	}
	if a.graylog != nil {
		_ = a.graylog.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
