// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/prices"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories on top of the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.PortfolioDB == nil || container.HistoryDB == nil {
		return fmt.Errorf("container databases must be initialized first")
	}

	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn(), log)
	container.PriceStore = prices.NewHistoryDB(container.HistoryDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}
