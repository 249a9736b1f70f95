package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"avaxdash/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository reads the validator registry from a local sqlite file.
type Repository struct {
	db *sql.DB
}

// NewRepository opens dbPath, creates the registry table and fills it with
// seed when it is empty.
func NewRepository(ctx context.Context, dbPath string, seed []domain.Validator) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
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
			name TEXT PRIMARY KEY,
			stake INTEGER NOT NULL CHECK (stake >= 0),
			uptime REAL NULL
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

// ErrStakeOutOfRange is returned for stakes above what an sqlite INTEGER holds.
var ErrStakeOutOfRange = errors.New("stake exceeds the storable range")

// StoreValidators inserts or replaces the given records. Nothing is written
// when any stake does not fit a signed 64-bit column.
func (r *Repository) StoreValidators(ctx context.Context, validators []domain.Validator) error {
	if len(validators) == 0 {
		return nil
	}
	for _, v := range validators {
		if v.Stake > math.MaxInt64 {
			return fmt.Errorf("validator %q stake %d: %w", v.Name, v.Stake, ErrStakeOutOfRange)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO validators (name, stake, uptime)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET stake = excluded.stake, uptime = excluded.uptime`)
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
		if _, err := stmt.ExecContext(ctx, v.Name, int64(v.Stake), uptime); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListValidators(ctx context.Context) ([]domain.Validator, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT name, stake, uptime FROM validators ORDER BY stake DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var validators []domain.Validator
	for rows.Next() {
		var (
			v      domain.Validator
			stake  int64
			uptime sql.NullFloat64
		)
		if err := rows.Scan(&v.Name, &stake, &uptime); err != nil {
			return nil, err
		}
		if stake < 0 {
			return nil, fmt.Errorf("validator %s has negative stake %d", v.Name, stake)
		}
		v.Stake = uint64(stake)
		if uptime.Valid {
			value := uptime.Float64
			v.Uptime = &value
		}
		validators = append(validators, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
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
