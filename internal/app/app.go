package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zatobox/invoice-ocr/internal/archive"
	"github.com/zatobox/invoice-ocr/internal/auth"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/export"
	"github.com/zatobox/invoice-ocr/internal/inventory"
	"github.com/zatobox/invoice-ocr/internal/normalize"
	"github.com/zatobox/invoice-ocr/internal/ocr"
	"github.com/zatobox/invoice-ocr/internal/provider"
	"github.com/zatobox/invoice-ocr/internal/ratelimit"
	repo "github.com/zatobox/invoice-ocr/internal/repository"
	"github.com/zatobox/invoice-ocr/internal/server"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config     *common.Config
	DB         *repo.DB
	Results    repo.ResultRepository
	Provider   provider.Provider
	Normalizer *normalize.Normalizer
	OCR        *ocr.Service
	Exporter   *export.Service
	Inventory  *inventory.Client
	Callers    *auth.Identifier

	archiver *archive.GCSArchiver
	logger   *slog.Logger
}

// Options tweak wiring for a particular binary.
type Options struct {
	InMemoryDB  bool // sqlite :memory: regardless of DB_DRIVER
	NoRateLimit bool
}

// Build opens the store, runs migrations, and wires the OCR service.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbCfg := repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	if opts.InMemoryDB {
		dbCfg.Driver, dbCfg.DSN = repo.DriverSQLite, ":memory:"
	}
	db, err := repo.Open(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		DB:         db,
		Results:    repo.NewResultRepository(db, logger),
		Normalizer: normalize.New(normalize.WithTolerance(cfg.OCR.TotalTolerance)),
		Callers:    auth.NewIdentifier(cfg.Auth.JWTSecret),
		Inventory:  inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Timeout, logger),
		logger:     logger,
	}
	a.Exporter = export.NewService(a.Results, logger)

	a.Provider, err = provider.New(ctx, cfg.OCR, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	svcOpts := []ocr.Option{
		ocr.WithNormalizer(a.Normalizer),
		ocr.WithStore(a.Results),
		ocr.WithPrompt(cfg.OCR.Prompt),
		ocr.WithTimeout(cfg.OCR.Timeout),
		ocr.WithMaxPDFPages(cfg.OCR.MaxPDFPages),
	}
	if !opts.NoRateLimit {
		svcOpts = append(svcOpts, ocr.WithLimiter(ratelimit.NewWindowLimiter(cfg.RateLimit.Window)))
	}

	a.archiver, err = archive.NewGCSArchiver(ctx, cfg.Archive.Bucket, logger)
	if err != nil {
		logger.Warn("archive.disabled", "bucket", cfg.Archive.Bucket, "error", err)
	}
	if a.archiver != nil {
		svcOpts = append(svcOpts, ocr.WithArchiver(a.archiver))
	}

	a.OCR = ocr.NewService(a.Provider, logger, svcOpts...)
	return a, nil
}

// RouterDeps returns the HTTP wiring for this app.
func (a *App) RouterDeps() server.Deps {
	return server.Deps{
		OCR:            a.OCR,
		Results:        a.Results,
		Exporter:       a.Exporter,
		Inventory:      a.Inventory,
		Callers:        a.Callers,
		Normalizer:     a.Normalizer,
		MaxUploadBytes: a.Config.OCR.MaxUploadBytes,
		RPS:            a.Config.RateLimit.RPS,
		Burst:          a.Config.RateLimit.Burst,
		Logger:         a.logger,
	}
}

// Close releases the provider, archive client and database.
func (a *App) Close() {
	if a.Provider != nil {
		if err := a.Provider.Close(); err != nil {
			a.logger.Warn("provider.close.error", "error", err)
		}
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.logger.Warn("archive.close.error", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
