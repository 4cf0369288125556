// Package prices provides read access to the daily bar store filled by the
// external price provider, plus the ingestion entry point it writes through.
package prices

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// HistoryDB provides access to historical price data and security metadata
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// Security is a symbol's descriptive metadata
type Security struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// GetBars returns bars for symbol with from <= date <= to, ascending.
// A zero from or to leaves that side open.
func (h *HistoryDB) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, adjusted_close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	lower := "0000-01-01"
	if !from.IsZero() {
		lower = domain.FormatDate(from)
	}
	upper := "9999-12-31"
	if !to.IsZero() {
		upper = domain.FormatDate(to)
	}

	rows, err := h.db.QueryContext(ctx, query, domain.NormalizeSymbol(symbol), lower, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var (
			date                      string
			open, high, low, adjClose sql.NullFloat64
			closePrice                float64
			volume                    sql.NullInt64
		)
		if err := rows.Scan(&date, &open, &high, &low, &closePrice, &adjClose, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		day, err := domain.ParseDate(date)
		if err != nil {
			h.log.Warn().Str("symbol", symbol).Str("date", date).Msg("Skipping bar with unparsable date")
			continue
		}

		bars = append(bars, domain.PriceBar{
			Date:          day,
			Open:          open.Float64,
			High:          high.Float64,
			Low:           low.Float64,
			Close:         closePrice,
			AdjustedClose: adjClose.Float64,
			Volume:        volume.Int64,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return bars, nil
}

// StoreBars inserts bars for symbol. Existing (symbol, date) rows are kept
// as they are; returns the number of rows actually inserted.
func (h *HistoryDB) StoreBars(ctx context.Context, symbol string, bars []domain.PriceBar) (int, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, &domain.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	for i, b := range bars {
		if b.Date.IsZero() {
			return 0, &domain.ValidationError{Field: fmt.Sprintf("bars[%d].date", i), Reason: "missing"}
		}
		if b.Close <= 0 && b.AdjustedClose <= 0 {
			return 0, &domain.ValidationError{Field: fmt.Sprintf("bars[%d].close", i), Reason: "must be positive"}
		}
	}

	inserted := 0
	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO daily_prices
				(symbol, date, open, high, low, close, adjusted_close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			res, err := stmt.ExecContext(ctx, symbol, domain.FormatDate(b.Date),
				b.Open, b.High, b.Low, b.Close, nullIfZero(b.AdjustedClose), b.Volume)
			if err != nil {
				return fmt.Errorf("failed to insert bar %s %s: %w", symbol, domain.FormatDate(b.Date), err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	h.log.Debug().
		Str("symbol", symbol).
		Int("received", len(bars)).
		Int("inserted", inserted).
		Msg("Stored daily bars")

	return inserted, nil
}

// GetSectors returns the sector tag for each symbol that has one.
func (h *HistoryDB) GetSectors(ctx context.Context, symbols []string) (map[string]string, error) {
	sectors := make(map[string]string, len(symbols))
	if len(symbols) == 0 {
		return sectors, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		placeholders[i] = "?"
		args[i] = domain.NormalizeSymbol(s)
	}

	query := fmt.Sprintf(`
		SELECT symbol, sector
		FROM securities
		WHERE symbol IN (%s) AND sector IS NOT NULL AND sector != ''
	`, strings.Join(placeholders, ","))

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, sector string
		if err := rows.Scan(&symbol, &sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors[symbol] = sector
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sectors: %w", err)
	}

	return sectors, nil
}

// SetSecurity upserts a security's name and sector tag.
func (h *HistoryDB) SetSecurity(ctx context.Context, sec Security) error {
	sec.Symbol = domain.NormalizeSymbol(sec.Symbol)
	if sec.Symbol == "" {
		return &domain.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO securities (symbol, name, sector) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, sector = excluded.sector
	`, sec.Symbol, sec.Name, strings.TrimSpace(sec.Sector))
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", sec.Symbol, err)
	}
	return nil
}

func nullIfZero(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
