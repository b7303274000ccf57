package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iwvelando/loan-formulas/pkg/formula"
	"go.uber.org/zap"
)

const (
	formulaKeyPrefix = "formula:"
	activeListKey    = "formulas:active"
)

func formulaKey(id string) string {
	return formulaKeyPrefix + id
}

// Cached fronts a Reader with a Cache holding JSON-encoded formulas. Writes
// go to the wrapped catalog when it is a Writer and invalidate the entries
// they affect. Cache failures are logged and fall through to the source.
type Cached struct {
	source Reader
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps source with cache.
func NewCached(source Reader, cache Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) FetchActiveFormulas(ctx context.Context) ([]formula.Formula, error) {
	if raw, ok := c.cache.Get(ctx, activeListKey); ok {
		var formulas []formula.Formula
		if err := json.Unmarshal([]byte(raw), &formulas); err == nil {
			return formulas, nil
		}
		c.logger.Warn("discarding undecodable cache entry",
			zap.String("op", "catalog.Cached.FetchActiveFormulas"),
			zap.String("key", activeListKey),
		)
	}

	formulas, err := c.source.FetchActiveFormulas(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, activeListKey, formulas)
	return formulas, nil
}

func (c *Cached) FetchFormulaByID(ctx context.Context, id string) (formula.Formula, error) {
	key := formulaKey(id)
	if raw, ok := c.cache.Get(ctx, key); ok {
		var f formula.Formula
		if err := json.Unmarshal([]byte(raw), &f); err == nil {
			return f, nil
		}
		c.logger.Warn("discarding undecodable cache entry",
			zap.String("op", "catalog.Cached.FetchFormulaByID"),
			zap.String("key", key),
		)
	}

	f, err := c.source.FetchFormulaByID(ctx, id)
	if err != nil {
		return formula.Formula{}, err
	}
	c.store(ctx, key, f)
	return f, nil
}

func (c *Cached) CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error) {
	w, ok := c.source.(Writer)
	if !ok {
		return formula.Formula{}, ErrReadOnlyCatalog
	}
	created, err := w.CreateFormula(ctx, f)
	if err != nil {
		return formula.Formula{}, err
	}
	c.invalidate(ctx, created.ID)
	return created, nil
}

func (c *Cached) UpdateFormula(ctx context.Context, f formula.Formula) error {
	w, ok := c.source.(Writer)
	if !ok {
		return ErrReadOnlyCatalog
	}
	if err := w.UpdateFormula(ctx, f); err != nil {
		return err
	}
	c.invalidate(ctx, f.ID)
	return nil
}

func (c *Cached) DeleteFormula(ctx context.Context, id string) error {
	w, ok := c.source.(Writer)
	if !ok {
		return ErrReadOnlyCatalog
	}
	if err := w.DeleteFormula(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *Cached) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode cache entry",
			zap.String("op", "catalog.Cached.store"),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("failed to write cache entry",
			zap.String("op", "catalog.Cached.store"),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (c *Cached) invalidate(ctx context.Context, id string) {
	if err := c.cache.Delete(ctx, formulaKey(id), activeListKey); err != nil {
		c.logger.Warn("failed to invalidate cache entries",
			zap.String("op", "catalog.Cached.invalidate"),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
