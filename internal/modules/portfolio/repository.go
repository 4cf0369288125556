package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository handles portfolio and version persistence in portfolio.db.
// Versions are insert-only.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Create inserts a portfolio together with its first version
func (r *Repository) Create(ctx context.Context, p domain.Portfolio, first domain.PortfolioVersion) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO portfolios (id, name, base_currency, allocation_type, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.BaseCurrency, string(p.Mode), p.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert portfolio %s: %w", p.ID, err)
		}
		return insertVersion(ctx, tx, first)
	})
}

// AppendVersion inserts version v. The (portfolio_id, version) key rejects
// concurrent writers racing for the same version number.
func (r *Repository) AppendVersion(ctx context.Context, v domain.PortfolioVersion) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return insertVersion(ctx, tx, v)
	})
}

func insertVersion(ctx context.Context, tx *sql.Tx, v domain.PortfolioVersion) error {
	blob, err := msgpack.Marshal(v.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_versions
			(portfolio_id, version, effective_at, allocation_type, positions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.PortfolioID, v.Version, domain.FormatDate(v.EffectiveAt), string(v.Mode), blob, v.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert version %d of %s: %w", v.Version, v.PortfolioID, err)
	}
	return nil
}

// Get returns a portfolio with all of its versions, ordered by version number
func (r *Repository) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, base_currency, allocation_type, created_at
		FROM portfolios WHERE id = ?
	`, id)

	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}

	versions, err := r.versions(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Versions = versions

	return &p, nil
}

// List returns all portfolios with their versions, oldest first
func (r *Repository) List(ctx context.Context) ([]domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, base_currency, allocation_type, created_at
		FROM portfolios ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}

	var portfolios []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	rows.Close()

	for i := range portfolios {
		versions, err := r.versions(ctx, portfolios[i].ID)
		if err != nil {
			return nil, err
		}
		portfolios[i].Versions = versions
	}

	return portfolios, nil
}

func (r *Repository) versions(ctx context.Context, id string) ([]domain.PortfolioVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT portfolio_id, version, effective_at, allocation_type, positions, created_at
		FROM portfolio_versions
		WHERE portfolio_id = ?
		ORDER BY version ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions of %s: %w", id, err)
	}
	defer rows.Close()

	var versions []domain.PortfolioVersion
	for rows.Next() {
		var (
			v           domain.PortfolioVersion
			effectiveAt string
			mode        string
			blob        []byte
			createdAt   int64
		)
		if err := rows.Scan(&v.PortfolioID, &v.Version, &effectiveAt, &mode, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		if v.EffectiveAt, err = domain.ParseDate(effectiveAt); err != nil {
			return nil, fmt.Errorf("version %d of %s: %w", v.Version, id, err)
		}
		if err := msgpack.Unmarshal(blob, &v.Positions); err != nil {
			return nil, fmt.Errorf("failed to decode positions of %s v%d: %w", id, v.Version, err)
		}
		v.Mode = domain.AllocationMode(mode)
		v.CreatedAt = time.Unix(createdAt, 0).UTC()

		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (domain.Portfolio, error) {
	var (
		p         domain.Portfolio
		mode      string
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.BaseCurrency, &mode, &createdAt); err != nil {
		return domain.Portfolio{}, err
	}
	p.Mode = domain.AllocationMode(mode)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return p, nil
}
