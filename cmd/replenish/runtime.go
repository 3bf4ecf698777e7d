package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-replenish/internal/cache"
	"github.com/andresuchdata/autopo-replenish/internal/config"
	"github.com/andresuchdata/autopo-replenish/internal/ingest"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
	"github.com/andresuchdata/autopo-replenish/internal/repository/memory"
	"github.com/andresuchdata/autopo-replenish/internal/repository/postgres"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/andresuchdata/autopo-replenish/pkg/logger"
	"github.com/urfave/cli/v2"
)

type runtimeKey struct{}

// runtime holds what every command needs; it is built in Before and torn down in After
type runtime struct {
	cfg *config.Config
	svc *service.ReplenishmentService
	db  *postgres.DB
}

func fromContext(c *cli.Context) (*runtime, error) {
	rt, ok := c.Context.Value(runtimeKey{}).(*runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("runtime not initialised")
	}
	return rt, nil
}

func initRuntime(c *cli.Context) error {
	cfg := config.Load()
	logger.Configure(cfg.Log.Format, cfg.Log.Level)
	if lvl := c.String("log-level"); lvl != "" {
		logger.SetLevel(lvl)
	}

	coverageCfg, err := cfg.CoverageConfig()
	if err != nil {
		return err
	}

	rt := &runtime{cfg: cfg}
	opts := []service.Option{service.WithDefaults(cfg.RequirementConfig())}

	var history repository.HistoryRepository
	if c.Bool("memory") {
		store := memory.NewStore()
		history = store
		opts = append(opts, service.WithWriter(store), service.WithCoverageStore(store))
	} else {
		if url := c.String("db-url"); url != "" {
			cfg.Database.URLOverride = url
		}
		db, err := postgres.NewDB(&cfg.Database, postgres.DriverPGX)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.db = db
		repo := postgres.NewHistoryRepository(db)
		history = repo
		opts = append(opts, service.WithWriter(repo), service.WithCoverageStore(postgres.NewCoverageStore(db)))
	}

	// a one-shot process gains nothing from a shared cache unless redis is configured
	cacheCfg := cfg.Cache
	if cacheCfg.Backend != cache.BackendRedis {
		cacheCfg.Backend = cache.BackendMemory
	}
	coverageCache, err := cache.NewCoverageCache(cacheCfg)
	if err != nil {
		return err
	}

	rt.svc, err = service.NewReplenishmentService(history, coverageCache, coverageCfg, opts...)
	if err != nil {
		return err
	}

	if dir := c.String("seed-dir"); dir != "" {
		if err := seedFromDir(c.Context, rt.svc, dir); err != nil {
			return err
		}
	}

	c.Context = context.WithValue(c.Context, runtimeKey{}, rt)
	return nil
}

func closeRuntime(c *cli.Context) error {
	if rt, err := fromContext(c); err == nil && rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func seedFromDir(ctx context.Context, svc *service.ReplenishmentService, dir string) error {
	files, err := collectCSVFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV files found in %s", dir)
	}
	_, err = ingest.NewImporter(svc).ImportFiles(ctx, files)
	return err
}

func collectCSVFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
