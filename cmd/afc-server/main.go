package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache/keys"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache/lrustore"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache/redisstore"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/config"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/observability"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/router"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/server"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/engine"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/incumbents"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/logger"
	h3mapper "github.com/mohammed-shakir/afc-spectrum-engine/internal/mapper/h3"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/metrics"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/protocol"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "afc-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), cfg.Metrics.Enabled)
	observability.ExposeBuildInfo(Version)

	engFile, engCfg, err := loadEngineConfig(cfg)
	if err != nil {
		appLog.Error("engine config", "err", err)
		return 1
	}
	eng, err := engine.New(engCfg)
	if err != nil {
		appLog.Error("engine init", "err", err)
		return 1
	}
	m, err := h3mapper.New(cfg.H3Res, cfg.MaxEvalPoints)
	if err != nil {
		appLog.Error("h3 mapper", "err", err)
		return 1
	}
	opts := protocol.Options{
		Strict:           cfg.StrictSchema,
		AvailabilityTTL:  cfg.AvailabilityTTL,
		MaxRegionExtentM: float64(cfg.MaxRegionExtentM),
		Certification: protocol.NewCertPolicy(
			engFile.Certification.Certified,
			engFile.Certification.Disallowed,
			engFile.Certification.Pairs(),
		),
	}
	facade := protocol.New(eng, m, opts)
	configFP, err := cacheFingerprint(engCfg, opts)
	if err != nil {
		appLog.Error("config fingerprint", "err", err)
		return 1
	}

	store := incumbents.NewStore(incumbents.WithOnChange(func(s *incumbents.Snapshot) {
		observability.SetSnapshotVersion(s.Version)
		appLog.Info("incumbent snapshot published",
			"snapshot_version", s.Version,
			"incumbents", len(s.Incumbents),
			"receivers", len(s.Receivers))
	}))
	if cfg.IncumbentsFile != "" {
		incs, err := incumbents.LoadFile(cfg.IncumbentsFile)
		if err != nil {
			appLog.Error("load incumbents", "file", cfg.IncumbentsFile, "err", err)
			return 1
		}
		if _, err := store.Replace(incs); err != nil {
			appLog.Error("publish incumbents", "err", err)
			return 1
		}
	} else {
		appLog.Warn("no INCUMBENTS_FILE set; readiness waits for an update event")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, closeCache, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		appLog.Error("cache init", "driver", cfg.Cache.Driver, "err", err)
		return 1
	}
	defer closeCache()

	inquiry := router.NewInquiry(appLog, facade, store, router.Options{
		Cache:     c,
		CacheTTL:  cfg.Cache.TTL,
		OpTimeout: cfg.Cache.OpTimeout,
		ConfigFP:  configFP,
	})

	deps := server.Deps{
		Logger:    appLog,
		Inquiry:   inquiry,
		Readiness: store,
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		deps.Metrics = p.Handler()
		deps.MetricsPath = p.Path()
	}

	appLog.Info("starting afc-server",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.Cache.Driver,
		"h3_res", cfg.H3Res,
		"workers", engCfg.Workers,
		"invalidation", cfg.Invalidation.Enabled)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, cfg.Addr, appLog, server.Routes(deps)) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return p.Serve(gctx, appLog) })
	}
	if cfg.Invalidation.Enabled {
		cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, &zl, store)
		g.Go(func() error { return cons.Start(gctx) })
	}

	if err := g.Wait(); err != nil {
		appLog.Error("server exited", "err", err)
		return 1
	}
	appLog.Info("shutdown complete")
	return 0
}

// cacheFingerprint covers every setting that can change an answer. Worker
// count and availability TTL cannot.
func cacheFingerprint(eng engine.Config, opts protocol.Options) (uint64, error) {
	eng.Workers = 0
	return keys.Fingerprint(struct {
		Engine           engine.Config
		Strict           bool
		MaxRegionExtentM float64
		Certification    protocol.CertPolicy
	}{eng, opts.Strict, opts.MaxRegionExtentM, opts.Certification})
}

func loadEngineConfig(cfg config.Config) (config.EngineFile, engine.Config, error) {
	base := engine.DefaultConfig()
	if cfg.EngineWorkers > 0 {
		base.Workers = cfg.EngineWorkers
	}
	if cfg.EngineConfigFile == "" {
		f, err := config.ParseEngineFile(nil)
		if err != nil {
			return config.EngineFile{}, base, err
		}
		return f, base, nil
	}
	f, err := config.ReadEngineFile(cfg.EngineConfigFile)
	if err != nil {
		return config.EngineFile{}, base, err
	}
	out, err := f.Apply(base)
	if err != nil {
		return config.EngineFile{}, base, fmt.Errorf("%s: %w", cfg.EngineConfigFile, err)
	}
	return f, out, nil
}

func buildCache(ctx context.Context, c config.CacheCfg) (cache.Interface, func(), error) {
	noop := func() {}
	switch c.Driver {
	case "", "none":
		return nil, noop, nil
	case "lru":
		return lrustore.New(c.LRUSize, c.TTL), noop, nil
	case "redis":
		cli, err := redisstore.New(ctx, c.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		return cli, func() { _ = cli.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache driver %q", c.Driver)
	}
}
