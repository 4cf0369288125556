package domain

import (
	"context"
	"time"
)

// PriceSource reads materialised daily bars from the external price store.
type PriceSource interface {
	// GetBars returns bars for symbol with from <= date <= to, ascending by date.
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]PriceBar, error)
}

// SectorSource resolves sector tags for symbols. Untagged symbols are absent from the map.
type SectorSource interface {
	GetSectors(ctx context.Context, symbols []string) (map[string]string, error)
}

// PortfolioReader is the read side of the portfolio store.
type PortfolioReader interface {
	Get(ctx context.Context, id string) (*Portfolio, error)
	List(ctx context.Context) ([]Portfolio, error)
}
