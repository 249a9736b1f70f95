package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"avaxdash/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository reads the validator registry from a shared MySQL database.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, dsn string, seed []domain.Validator) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &Repository{db: db}
	if err := r.seed(ctx, seed); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS validators (
			name VARCHAR(128) NOT NULL,
			stake BIGINT UNSIGNED NOT NULL,
			uptime DOUBLE NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (name),
			KEY validators_stake_idx (stake)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) seed(ctx context.Context, validators []domain.Validator) error {
	if len(validators) == 0 {
		return nil
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM validators`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.StoreValidators(ctx, validators)
}

func (r *Repository) StoreValidators(ctx context.Context, validators []domain.Validator) (err error) {
	if len(validators) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.StoreValidators",
		attribute.Int("validators.count", len(validators)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO validators (name, stake, uptime)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE stake = VALUES(stake), uptime = VALUES(uptime)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, v := range validators {
		var uptime sql.NullFloat64
		if v.Uptime != nil {
			uptime = sql.NullFloat64{Float64: *v.Uptime, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, v.Name, v.Stake, uptime); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListValidators(ctx context.Context) (validators []domain.Validator, err error) {
	ctx, span := startDBSpan(ctx, "mysql.ListValidators")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT name, stake, uptime FROM validators ORDER BY stake DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v      domain.Validator
			uptime sql.NullFloat64
		)
		if err = rows.Scan(&v.Name, &v.Stake, &uptime); err != nil {
			return nil, err
		}
		if uptime.Valid {
			value := uptime.Float64
			v.Uptime = &value
		}
		validators = append(validators, v)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("validators.count", len(validators)))
	return validators, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("avaxdash/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
