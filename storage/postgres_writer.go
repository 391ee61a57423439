package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"apartment-tracker/models"
	"apartment-tracker/utils"
)

const (
	insertBatchSize = 50
	insertColumns   = 11
)

// PostgresSink appends normalized units to the availabilities table.
type PostgresSink struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresSink opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations, and returns a ready-to-use sink.
func NewPostgresSink(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := pingRetry(logger)
	if err := retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps, err := NewPostgresSinkFromDB(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ps, nil
}

// pingRetry waits for the database at a fixed 2s interval, about 20s in all.
func pingRetry(logger *utils.Logger) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   2 * time.Second,
		MaxDelay:    2 * time.Second,
		Logger:      logger,
	}
}

// NewPostgresSinkFromDB wraps an open database and runs migrations.
func NewPostgresSinkFromDB(ctx context.Context, db *sql.DB, logger *utils.Logger) (*PostgresSink, error) {
	ps := &PostgresSink{db: db, logger: logger}
	if err := ps.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresSink) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS availabilities (
			id             SERIAL PRIMARY KEY,
			run_id         UUID,
			apartment      TEXT        NOT NULL,
			plan           TEXT        NOT NULL DEFAULT '',
			unit           TEXT        NOT NULL DEFAULT '',
			bedrooms       TEXT        NOT NULL DEFAULT '',
			beds           NUMERIC(4,1),
			baths          NUMERIC(4,1),
			sqft           NUMERIC(10,2),
			rent           NUMERIC(10,2),
			available_date DATE,
			retrieved      TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_availabilities_apartment ON availabilities(apartment);
		CREATE INDEX IF NOT EXISTS idx_availabilities_retrieved ON availabilities(retrieved);
	`)
	return err
}

// Persist inserts the batch in one transaction. Any failure rolls the whole
// batch back and returns an error wrapping ErrPersistence.
func (ps *PostgresSink) Persist(ctx context.Context, units []models.CanonicalUnit) error {
	if len(units) == 0 {
		return nil
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}

	for i := 0; i < len(units); i += insertBatchSize {
		end := min(i+insertBatchSize, len(units))
		if err := insertBatch(ctx, tx, units[i:end]); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				ps.logger.Error("[postgres] rollback: %v", rbErr)
			}
			return fmt.Errorf("%w: insert rows %d-%d: %v", ErrPersistence, i, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	ps.logger.Info("[postgres] Stored %d units", len(units))
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch []models.CanonicalUnit) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*insertColumns)

	for idx, u := range batch {
		base := idx * insertColumns
		placeholders := make([]string, insertColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, rowValues(u)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO availabilities (run_id, apartment, plan, unit, bedrooms, beds, baths, sqft, rent, available_date, retrieved)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

func rowValues(u models.CanonicalUnit) []interface{} {
	var runID interface{}
	if u.RunID != "" {
		runID = u.RunID
	}
	var available interface{}
	if u.Availability != nil {
		available = u.Availability.Format("2006-01-02")
	}
	return []interface{}{
		runID, u.Apartment, u.Plan, u.Unit, u.BedroomsLabel,
		nullFloat(u.Beds), nullFloat(u.Baths), nullFloat(u.Sqft), nullFloat(u.Rent),
		available, u.RetrievedAt,
	}
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func (ps *PostgresSink) Close() error {
	return ps.db.Close()
}
