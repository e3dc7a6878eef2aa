package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/takeoff-cli/internal/db"
)

// PostgresConfig configures the Postgres matcher.
type PostgresConfig struct {
	URL                 string
	SimilarityThreshold float64
	MaxCandidates       int
}

// Postgres matches against a products table in three tiers, returning the
// first tier that finds anything: exact CalTrans code, every keyword in the
// name, then pg_trgm similarity on the joined keywords.
type Postgres struct {
	pool  db.Pool
	cfg   PostgresConfig
	owned bool
}

var _ Matcher = (*Postgres)(nil)

// NewPostgres connects to the catalog database.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	p, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: connect")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "catalog: ping")
	}
	return &Postgres{pool: p, cfg: cfg.withDefaults(), owned: true}, nil
}

// NewPostgresFromPool shares an existing pool. Close leaves it open.
func NewPostgresFromPool(p db.Pool, cfg PostgresConfig) *Postgres {
	return &Postgres{pool: p, cfg: cfg.withDefaults()}
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 10
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.3
	}
	return c
}

// Close releases the pool if the matcher opened it.
func (m *Postgres) Close() {
	if m.owned {
		m.pool.Close()
	}
}

const productsMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS products (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	caltrans_code   TEXT,
	unit            TEXT,
	price           NUMERIC(12,2),
	estimated_price NUMERIC(12,2),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_products_caltrans_code ON products(caltrans_code);
CREATE INDEX IF NOT EXISTS idx_products_name_trgm ON products USING gin (UPPER(name) gin_trgm_ops);
`

// Migrate creates the products table and its indexes.
func (m *Postgres) Migrate(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, productsMigration)
	return eris.Wrap(err, "catalog: migrate")
}

var importColumns = []string{"id", "name", "category", "caltrans_code", "unit", "price", "estimated_price"}

// Import upserts products by id. Zero prices and empty codes are stored as
// NULL.
func (m *Postgres) Import(ctx context.Context, products []Product) (int64, error) {
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			return 0, eris.Errorf("catalog: product %q has no id", p.Name)
		}
		rows = append(rows, []any{p.ID, p.Name, p.Category, nullString(p.Code), nullString(p.Unit), nullPrice(p.Price), nullPrice(p.EstimatedPrice)})
	}
	n, err := db.BulkUpsert(ctx, m.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      importColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "catalog: import")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullPrice(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

var codeRe = regexp.MustCompile(`^\d{6}$`)

// Match runs the tiers in order.
func (m *Postgres) Match(ctx context.Context, terms []string, category string) ([]Product, error) {
	terms = normalizeTerms(terms)
	var codes, words []string
	for _, t := range terms {
		if codeRe.MatchString(t) {
			codes = append(codes, t)
		} else {
			words = append(words, t)
		}
	}
	var cat *string
	if category != "" {
		cat = &category
	}

	if len(codes) > 0 {
		products, err := m.query(ctx, codeSQL, "code", 1.0, codes, cat, m.cfg.MaxCandidates)
		if err != nil || len(products) > 0 {
			return products, err
		}
	}
	if len(words) == 0 {
		return nil, nil
	}

	patterns := make([]string, len(words))
	for i, w := range words {
		patterns[i] = "%" + escapeLike(w) + "%"
	}
	products, err := m.query(ctx, keywordSQL, "keyword", 0.8, patterns, cat, m.cfg.MaxCandidates)
	if err != nil || len(products) > 0 {
		return products, err
	}

	return m.query(ctx, trigramSQL, "trigram", -1, strings.Join(words, " "), cat, m.cfg.SimilarityThreshold, m.cfg.MaxCandidates)
}

const productColumns = `id, name, category, COALESCE(caltrans_code, ''), COALESCE(unit, ''),
       COALESCE(price, 0), COALESCE(estimated_price, 0)`

const codeSQL = `
SELECT ` + productColumns + `, 1.0 AS score
FROM products
WHERE caltrans_code = ANY($1)
  AND ($2::text IS NULL OR category ILIKE $2)
ORDER BY name
LIMIT $3`

const keywordSQL = `
SELECT ` + productColumns + `, 1.0 AS score
FROM products
WHERE name ILIKE ALL($1)
  AND ($2::text IS NULL OR category ILIKE $2)
ORDER BY name
LIMIT $3`

const trigramSQL = `
SELECT ` + productColumns + `, similarity(UPPER(name), $1) AS score
FROM products
WHERE ($2::text IS NULL OR category ILIKE $2)
  AND similarity(UPPER(name), $1) >= $3
ORDER BY score DESC, name
LIMIT $4`

// query runs one tier. A fixed score >= 0 replaces the row's score column.
func (m *Postgres) query(ctx context.Context, sql, tier string, score float64, args ...any) ([]Product, error) {
	rows, err := m.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: %s query", tier)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Code, &p.Unit, &p.Price, &p.EstimatedPrice, &p.MatchScore); err != nil {
			return nil, eris.Wrapf(err, "catalog: scan %s row", tier)
		}
		if score >= 0 {
			p.MatchScore = score
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "catalog: %s rows", tier)
	}
	sortProducts(out)
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
