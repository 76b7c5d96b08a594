package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"meetscribe/pkg/model"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStorage is the run ledger: one row per batch run and one per
// recording outcome.
type PostgresStorage struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// RunRecord is a ledger row for one batch run
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Processed      int
	AlreadyDone    int
	Failed         int
	RemainingQuota *float64
}

// outcomeRow is the column set of recording_outcomes
type outcomeRow struct {
	FileName     string
	State        string
	FailedStage  *string
	ErrorKind    *string
	ErrorText    *string
	AlreadyDone  bool
	Artifacts    []string
	InputTokens  int
	OutputTokens int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewPostgresStorage connects to the database and applies the embedded migrations
func NewPostgresStorage(ctx context.Context, databaseURL string, log *zap.Logger) (*PostgresStorage, error) {
	if log == nil {
		log = zap.NewNop()
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established")

	if err := runMigrations(config.ConnConfig, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStorage{pool: pool, log: log}, nil
}

func newMigrate(connConfig *pgx.ConnConfig) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	closeFn := func() {
		m.Close()
		db.Close()
	}
	return m, closeFn, nil
}

func runMigrations(connConfig *pgx.ConnConfig, log *zap.Logger) error {
	m, closeFn, err := newMigrate(connConfig)
	if err != nil {
		return err
	}
	defer closeFn()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("Migrations applied successfully")
	return nil
}

// ResetMigrations drops the ledger tables and re-runs migrations
func ResetMigrations(databaseURL string, log *zap.Logger) error {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	log.Warn("Resetting run ledger, all recorded runs will be dropped")

	m, closeFn, err := newMigrate(connConfig)
	if err != nil {
		return err
	}

	err = m.Drop()
	// Drop removes the migrate instance's own state, Up needs a fresh one
	closeFn()
	if err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	return runMigrations(connConfig, log)
}

func (s *PostgresStorage) Close() {
	s.pool.Close()
}

func (s *PostgresStorage) Name() string {
	return "postgres"
}

// Publish records the run and its outcomes in one transaction
func (s *PostgresStorage) Publish(ctx context.Context, report *model.BatchReport) error {
	processed, alreadyDone, failed := report.Counts()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batch_runs (
			id, started_at, finished_at, processed, already_done, failed, remaining_quota_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		processed,
		alreadyDone,
		failed,
		report.RemainingQuota,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range outcomeRows(report) {
		batch.Queue(`
			INSERT INTO recording_outcomes (
				run_id, file_name, state, failed_stage, error_kind, error_text,
				already_done, artifacts, input_tokens, output_tokens, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			report.RunID,
			row.FileName,
			row.State,
			row.FailedStage,
			row.ErrorKind,
			row.ErrorText,
			row.AlreadyDone,
			row.Artifacts,
			row.InputTokens,
			row.OutputTokens,
			row.StartedAt,
			row.FinishedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert outcomes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.log.Info("Run recorded in ledger",
		zap.String("run_id", report.RunID),
		zap.Int("outcomes", len(report.Outcomes)))

	return nil
}

// RecentRuns returns the latest runs, newest first
func (s *PostgresStorage) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, started_at, finished_at, processed, already_done, failed, remaining_quota_seconds
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID,
			&r.StartedAt,
			&r.FinishedAt,
			&r.Processed,
			&r.AlreadyDone,
			&r.Failed,
			&r.RemainingQuota,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func outcomeRows(report *model.BatchReport) []outcomeRow {
	rows := make([]outcomeRow, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		artifacts := o.Written
		if artifacts == nil {
			artifacts = []string{}
		}
		rows = append(rows, outcomeRow{
			FileName:     o.Recording.BaseName,
			State:        string(o.State),
			FailedStage:  nullable(string(o.FailedStage)),
			ErrorKind:    nullable(string(o.ErrorKind)),
			ErrorText:    o.ErrorText,
			AlreadyDone:  o.AlreadyDone,
			Artifacts:    artifacts,
			InputTokens:  o.InputTokens,
			OutputTokens: o.OutputTokens,
			StartedAt:    o.StartedAt,
			FinishedAt:   o.FinishedAt,
		})
	}
	return rows
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
