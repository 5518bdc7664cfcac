package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

// OfflineStore mirrors published feature tables into Postgres so batch
// consumers can query historical runs with plain SQL.
type OfflineStore struct {
	db      *sql.DB
	table   string
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

// NewOfflineStore opens the Postgres connection and makes sure the feature
// table exists.
func NewOfflineStore(dsn, table string, logger *slog.Logger) (*OfflineStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.NewPublicationError("failed to open offline store", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.NewPublicationError("failed to reach offline store", err)
	}

	s := &OfflineStore{
		db:      db,
		table:   table,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}

	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database connection.
func (s *OfflineStore) Close() error {
	return s.db.Close()
}

func (s *OfflineStore) ensureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id        TEXT             NOT NULL,
			group_version INTEGER          NOT NULL,
			id            BIGINT           NOT NULL,
			invoice_date  TIMESTAMPTZ      NOT NULL,
			country       SMALLINT         NOT NULL,
			total_price   DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, id)
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return apperrors.NewPublicationError("failed to create offline feature table", err)
	}
	return nil
}

// Append writes one run's rows in a single transaction; a failure leaves no
// partial run behind.
func (s *OfflineStore) Append(ctx context.Context, runID string, version int, table *domain.FeatureTable) error {
	if table.NumRows() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewPublicationError("failed to begin offline store transaction", err)
	}
	defer tx.Rollback()

	query, args, err := buildInsert(s.builder, s.table, runID, version, table)
	if err != nil {
		return apperrors.NewPublicationError("failed to build offline insert", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPublicationError("failed to write rows to offline store", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewPublicationError("failed to commit offline store transaction", err)
	}

	s.logger.InfoContext(ctx, "appended rows to offline store",
		slog.String("table", s.table),
		slog.Int("rows", table.NumRows()))
	return nil
}

func buildInsert(builder sq.StatementBuilderType, table, runID string, version int, features *domain.FeatureTable) (string, []interface{}, error) {
	insert := builder.
		Insert(table).
		Columns("run_id", "group_version", "id", "invoice_date", "country", "total_price")
	for _, row := range features.Rows {
		insert = insert.Values(runID, version, row.ID, row.InvoiceDate, int16(row.Country), row.TotalPrice)
	}
	return insert.ToSql()
}
