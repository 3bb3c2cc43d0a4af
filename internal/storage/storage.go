// Package storage persists extracted products and crawl run summaries.
// The crawler treats this as an external collaborator: it hands over
// finished ScrapedProducts and never learns create-vs-update semantics.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"solarcrawl/internal/config"
)

// ProductRecord is the persisted shape of a scraped product. Upserts are
// keyed by (distributor_id, source_url).
type ProductRecord struct {
	DistributorID string
	RunID         string
	SourceURL     string
	Name          string
	Price         sql.NullFloat64
	Description   string
	Manufacturer  string
	ModelNumber   string
	SpecsJSON     []byte
	ImageURL      string
	DataSheetURL  string
	InStock       bool
	Category      string
	ScrapedAt     time.Time
}

// RunRecord summarises one finished crawl run.
type RunRecord struct {
	ID            string
	DistributorID string
	Seed          string
	PagesVisited  int
	CatalogPages  int
	ProductsFound int
	Termination   string
	Started       time.Time
	Finished      time.Time
}

// ProductStore persists product and run records.
type ProductStore interface {
	UpsertProduct(ctx context.Context, rec ProductRecord) error
	SaveRun(ctx context.Context, rec RunRecord) error
}

// SQLStore implements ProductStore over database/sql. Both the postgres and
// sqlite3 drivers are supported; the upsert statement is written to the
// dialect subset they share.
type SQLStore struct {
	db          *sql.DB
	autoMigrate bool
}

// NewSQLStore opens a connection from configuration, optionally creating
// the postgres database and migrating the schema.
func NewSQLStore(cfg config.SQLConfig) (*SQLStore, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(ctx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open sql connection: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping sql connection: %w", err)
			}
		} else {
			return nil, fmt.Errorf("ping sql connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	store := &SQLStore{db: db, autoMigrate: cfg.AutoMigrate}
	if cfg.AutoMigrate {
		if err := store.ensureSchema(context.Background()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// UpsertProduct inserts or refreshes a product row.
func (s *SQLStore) UpsertProduct(ctx context.Context, rec ProductRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	query := `
        INSERT INTO products (
            distributor_id, source_url, run_id, name, price, description,
            manufacturer, model_number, specifications, image_url,
            data_sheet_url, in_stock, category, scraped_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (distributor_id, source_url) DO UPDATE SET
            run_id = EXCLUDED.run_id,
            name = EXCLUDED.name,
            price = EXCLUDED.price,
            description = EXCLUDED.description,
            manufacturer = EXCLUDED.manufacturer,
            model_number = EXCLUDED.model_number,
            specifications = EXCLUDED.specifications,
            image_url = EXCLUDED.image_url,
            data_sheet_url = EXCLUDED.data_sheet_url,
            in_stock = EXCLUDED.in_stock,
            category = EXCLUDED.category,
            scraped_at = EXCLUDED.scraped_at
    `
	_, err := s.db.ExecContext(ctx, query,
		rec.DistributorID,
		rec.SourceURL,
		rec.RunID,
		rec.Name,
		rec.Price,
		rec.Description,
		rec.Manufacturer,
		rec.ModelNumber,
		rec.SpecsJSON,
		rec.ImageURL,
		rec.DataSheetURL,
		rec.InStock,
		rec.Category,
		rec.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// SaveRun inserts a crawl run summary row.
func (s *SQLStore) SaveRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	query := `
        INSERT INTO crawl_runs (
            id, distributor_id, seed, pages_visited, catalog_pages,
            products_found, termination, started_at, finished_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.DistributorID,
		rec.Seed,
		rec.PagesVisited,
		rec.CatalogPages,
		rec.ProductsFound,
		rec.Termination,
		rec.Started,
		rec.Finished,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil || !s.autoMigrate {
		return nil
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
            distributor_id TEXT NOT NULL,
            source_url TEXT NOT NULL,
            run_id TEXT,
            name TEXT,
            price DOUBLE PRECISION,
            description TEXT,
            manufacturer TEXT,
            model_number TEXT,
            specifications TEXT,
            image_url TEXT,
            data_sheet_url TEXT,
            in_stock BOOLEAN,
            category TEXT,
            scraped_at TIMESTAMP,
            PRIMARY KEY (distributor_id, source_url)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_products_model ON products (distributor_id, model_number)`,
		`CREATE TABLE IF NOT EXISTS crawl_runs (
            id TEXT PRIMARY KEY,
            distributor_id TEXT,
            seed TEXT,
            pages_visited INT,
            catalog_pages INT,
            products_found INT,
            termination TEXT,
            started_at TIMESTAMP,
            finished_at TIMESTAMP
        )`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.SQLConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDB, err := sql.Open(cfg.Driver, parsed.String())
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

// MarshalSpecs encodes a specifications map as JSON for storage.
func MarshalSpecs(specs map[string]string) []byte {
	if len(specs) == 0 {
		return nil
	}
	encoded, err := json.Marshal(specs)
	if err != nil {
		return nil
	}
	return encoded
}
