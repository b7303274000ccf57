// Package catalog stores the operator-defined formulas and serves them to
// simulations. Formulas can live in memory (seeded from the configuration
// file) or in PostgreSQL, optionally fronted by a Redis cache.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/loan-formulas/internal/config"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"go.uber.org/zap"
)

var (
	// ErrFormulaNotFound is returned when no formula has the requested id.
	ErrFormulaNotFound = errors.New("formula not found")

	// ErrInactiveFormula is returned when a simulation names a formula that
	// is switched off.
	ErrInactiveFormula = errors.New("formula is inactive")

	// ErrReadOnlyCatalog is returned by writes against a catalog that only
	// supports reads.
	ErrReadOnlyCatalog = errors.New("catalog is read-only")

	// ErrDuplicateFormula is returned when creating a formula whose id is
	// already taken.
	ErrDuplicateFormula = errors.New("formula id already exists")
)

// Reader is the read side of a formula catalog.
type Reader interface {
	FetchActiveFormulas(ctx context.Context) ([]formula.Formula, error)
	FetchFormulaByID(ctx context.Context, id string) (formula.Formula, error)
}

// Writer is implemented by catalogs that accept formula changes.
type Writer interface {
	CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error)
	UpdateFormula(ctx context.Context, f formula.Formula) error
	DeleteFormula(ctx context.Context, id string) error
}

// ReadWriter is a catalog supporting both reads and writes.
type ReadWriter interface {
	Reader
	Writer
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrFormulaNotFound, id)
}

func clone(f formula.Formula) formula.Formula {
	out := f
	if f.Variables != nil {
		out.Variables = make([]formula.Variable, len(f.Variables))
		copy(out.Variables, f.Variables)
	}
	return out
}

// Open builds the catalog described by conf: the configured source, wrapped
// in a Redis cache when an address is set. The returned function releases
// any pools or clients and must be called when the catalog is no longer used.
func Open(ctx context.Context, conf *config.Configuration, logger *zap.Logger) (Reader, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		reader  Reader
		closers []func()
	)

	switch conf.Catalog.Source {
	case "", constants.CatalogSourceMemory:
		memory, err := NewMemory(conf.Formulas)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed memory catalog: %w", err)
		}
		reader = memory
		logger.Info("using memory catalog",
			zap.String("op", "catalog.Open"),
			zap.Int("formulas", len(conf.Formulas)),
		)
	case constants.CatalogSourcePostgres:
		pg, err := Connect(ctx, conf.Catalog.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
		if conf.Catalog.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		reader = pg
		logger.Info("using postgres catalog", zap.String("op", "catalog.Open"))
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", conf.Catalog.Source)
	}

	if conf.Catalog.Redis.Address != "" {
		cache := NewRedisCache(conf.Catalog.Redis.Address, conf.Catalog.Redis.Password, conf.Catalog.Redis.DB)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, serving formulas uncached",
				zap.String("op", "catalog.Open"),
				zap.String("address", conf.Catalog.Redis.Address),
				zap.Error(err),
			)
			_ = cache.Close()
		} else {
			closers = append(closers, func() { _ = cache.Close() })
			reader = NewCached(reader, cache, conf.Catalog.Redis.TTL, logger)
			logger.Info("caching formulas in redis",
				zap.String("op", "catalog.Open"),
				zap.String("address", conf.Catalog.Redis.Address),
				zap.Duration("ttl", conf.Catalog.Redis.TTL),
			)
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return reader, closeAll, nil
}
