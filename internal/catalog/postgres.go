package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS formulas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	expression  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS formula_variables (
	formula_id    TEXT NOT NULL REFERENCES formulas(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	kind          TEXT NOT NULL DEFAULT 'numeric',
	description   TEXT NOT NULL DEFAULT '',
	default_value TEXT,
	required      BOOLEAN NOT NULL DEFAULT FALSE,
	position      INTEGER NOT NULL DEFAULT 0,
	unit          TEXT NOT NULL DEFAULT '',
	seq           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (formula_id, name)
);

ALTER TABLE formula_variables ADD COLUMN IF NOT EXISTS seq INTEGER NOT NULL DEFAULT 0;
`

const selectVariables = `
	SELECT formula_id, name, kind, description, default_value, required, position, unit
	FROM formula_variables
	WHERE formula_id = ANY($1)
	ORDER BY formula_id, seq
`

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Postgres is a catalog backed by the formulas and formula_variables tables.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool to databaseURL.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the catalog tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// FetchActiveFormulas returns active formulas ordered by name. Rows that no
// longer validate are skipped.
func (p *Postgres) FetchActiveFormulas(ctx context.Context) ([]formula.Formula, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, description, active, expression
		FROM formulas
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query formulas: %w", err)
	}

	var formulas []formula.Formula
	for rows.Next() {
		var f formula.Formula
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &f.Active, &f.Expression); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan formula: %w", err)
		}
		formulas = append(formulas, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read formulas: %w", err)
	}
	if len(formulas) == 0 {
		return []formula.Formula{}, nil
	}

	ids := make([]string, len(formulas))
	for i, f := range formulas {
		ids[i] = f.ID
	}
	vars, err := p.fetchVariables(ctx, ids)
	if err != nil {
		return nil, err
	}

	active := make([]formula.Formula, 0, len(formulas))
	for _, f := range formulas {
		f.Variables = vars[f.ID]
		if formula.Validate(f) != nil {
			continue
		}
		active = append(active, f)
	}
	return active, nil
}

// FetchFormulaByID returns the formula with id whether or not it is active.
func (p *Postgres) FetchFormulaByID(ctx context.Context, id string) (formula.Formula, error) {
	var f formula.Formula
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, description, active, expression
		FROM formulas
		WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.Description, &f.Active, &f.Expression)
	if errors.Is(err, pgx.ErrNoRows) {
		return formula.Formula{}, notFound(id)
	}
	if err != nil {
		return formula.Formula{}, fmt.Errorf("failed to query formula %s: %w", id, err)
	}

	vars, err := p.fetchVariables(ctx, []string{id})
	if err != nil {
		return formula.Formula{}, err
	}
	f.Variables = vars[id]
	return f, nil
}

func (p *Postgres) fetchVariables(ctx context.Context, ids []string) (map[string][]formula.Variable, error) {
	rows, err := p.pool.Query(ctx, selectVariables, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query formula variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string][]formula.Variable, len(ids))
	for rows.Next() {
		var (
			formulaID    string
			v            formula.Variable
			kind         string
			defaultValue *string
		)
		if err := rows.Scan(&formulaID, &v.Name, &kind, &v.Description, &defaultValue,
			&v.Required, &v.Order, &v.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan formula variable: %w", err)
		}
		v.Kind = formula.VariableKind(kind)
		if defaultValue != nil {
			if err := json.Unmarshal([]byte(*defaultValue), &v.Default); err != nil {
				return nil, fmt.Errorf("failed to decode default of %s.%s: %w", formulaID, v.Name, err)
			}
		}
		vars[formulaID] = append(vars[formulaID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read formula variables: %w", err)
	}
	return vars, nil
}

// CreateFormula validates and inserts f, assigning a uuid when it has no id.
func (p *Postgres) CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error) {
	if err := formula.Validate(f); err != nil {
		return formula.Formula{}, err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	err := p.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO formulas (id, name, description, active, expression)
			VALUES ($1, $2, $3, $4, $5)
		`, f.ID, f.Name, f.Description, f.Active, f.Expression)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", ErrDuplicateFormula, f.ID)
			}
			return fmt.Errorf("failed to insert formula: %w", err)
		}
		return insertVariables(ctx, tx, f)
	})
	if err != nil {
		return formula.Formula{}, err
	}
	return f, nil
}

// UpdateFormula replaces the stored formula and its variables.
func (p *Postgres) UpdateFormula(ctx context.Context, f formula.Formula) error {
	if err := formula.Validate(f); err != nil {
		return err
	}

	return p.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE formulas
			SET name = $2, description = $3, active = $4, expression = $5, updated_at = NOW()
			WHERE id = $1
		`, f.ID, f.Name, f.Description, f.Active, f.Expression)
		if err != nil {
			return fmt.Errorf("failed to update formula: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFound(f.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM formula_variables WHERE formula_id = $1`, f.ID); err != nil {
			return fmt.Errorf("failed to clear formula variables: %w", err)
		}
		return insertVariables(ctx, tx, f)
	})
}

// DeleteFormula removes the formula; its variables cascade.
func (p *Postgres) DeleteFormula(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM formulas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete formula: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertVariables(ctx context.Context, tx pgx.Tx, f formula.Formula) error {
	// seq keeps declaration order; position is the display order.
	for i, v := range f.Variables {
		defaultValue, err := encodeDefault(v.Default)
		if err != nil {
			return fmt.Errorf("failed to encode default of %s: %w", v.Name, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO formula_variables
				(formula_id, name, kind, description, default_value, required, position, unit, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, f.ID, v.Name, string(v.EffectiveKind()), v.Description, defaultValue, v.Required, v.Order, v.Unit, i)
		if err != nil {
			return fmt.Errorf("failed to insert variable %s: %w", v.Name, err)
		}
	}
	return nil
}

func encodeDefault(value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	encoded := string(data)
	return &encoded, nil
}
