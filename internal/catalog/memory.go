package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/iwvelando/loan-formulas/pkg/formula"
)

// Memory is an in-process catalog. It is safe for concurrent use and hands
// out copies, so callers cannot mutate stored formulas.
type Memory struct {
	mu       sync.RWMutex
	formulas map[string]formula.Formula
	order    []string
}

// NewMemory returns a catalog seeded with formulas. Seed formulas without an
// id are given one. Invalid formulas are kept so they can be fixed through
// UpdateFormula, but are never served as active.
func NewMemory(seed []formula.Formula) (*Memory, error) {
	m := &Memory{formulas: make(map[string]formula.Formula, len(seed))}
	for _, f := range seed {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if _, dup := m.formulas[f.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFormula, f.ID)
		}
		m.formulas[f.ID] = clone(f)
		m.order = append(m.order, f.ID)
	}
	return m, nil
}

// FetchActiveFormulas returns the valid active formulas in seed and creation order.
func (m *Memory) FetchActiveFormulas(ctx context.Context) ([]formula.Formula, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]formula.Formula, 0, len(m.order))
	for _, id := range m.order {
		f := m.formulas[id]
		if !f.Active || formula.Validate(f) != nil {
			continue
		}
		active = append(active, clone(f))
	}
	return active, nil
}

// FetchFormulaByID returns the formula with id whether or not it is active.
func (m *Memory) FetchFormulaByID(ctx context.Context, id string) (formula.Formula, error) {
	if err := ctx.Err(); err != nil {
		return formula.Formula{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.formulas[id]
	if !ok {
		return formula.Formula{}, notFound(id)
	}
	return clone(f), nil
}

// CreateFormula validates and stores f, assigning a uuid when it has no id.
func (m *Memory) CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error) {
	if err := ctx.Err(); err != nil {
		return formula.Formula{}, err
	}
	if err := formula.Validate(f); err != nil {
		return formula.Formula{}, err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.formulas[f.ID]; dup {
		return formula.Formula{}, fmt.Errorf("%w: %s", ErrDuplicateFormula, f.ID)
	}
	m.formulas[f.ID] = clone(f)
	m.order = append(m.order, f.ID)
	return clone(f), nil
}

// UpdateFormula replaces the stored formula with the same id.
func (m *Memory) UpdateFormula(ctx context.Context, f formula.Formula) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := formula.Validate(f); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.formulas[f.ID]; !ok {
		return notFound(f.ID)
	}
	m.formulas[f.ID] = clone(f)
	return nil
}

// DeleteFormula removes the formula with id.
func (m *Memory) DeleteFormula(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.formulas[id]; !ok {
		return notFound(id)
	}
	delete(m.formulas, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
