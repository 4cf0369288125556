package portfolio

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.ApplySchema(db, "portfolio"))
	return NewRepository(db, zerolog.Nop())
}

func TestRepository_CreateGetAppend(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	p := domain.Portfolio{ID: "p1", Name: "Core", BaseCurrency: "USD", Mode: domain.AllocationWeight, CreatedAt: created}
	v1 := domain.PortfolioVersion{
		PortfolioID: "p1",
		Version:     1,
		EffectiveAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Mode:        domain.AllocationWeight,
		Positions:   []domain.Position{{Symbol: "MSFT", Value: 0.6}, {Symbol: "AAPL", Value: 0.4}},
		CreatedAt:   created,
	}
	require.NoError(t, repo.Create(ctx, p, v1))

	v2 := v1
	v2.Version = 2
	v2.EffectiveAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	v2.Positions = []domain.Position{{Symbol: "AAPL", Value: 1}}
	require.NoError(t, repo.AppendVersion(ctx, v2))

	// Same version number twice violates the primary key
	assert.Error(t, repo.AppendVersion(ctx, v2))

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Core", got.Name)
	assert.Equal(t, domain.AllocationWeight, got.Mode)
	assert.Equal(t, created, got.CreatedAt)
	require.Len(t, got.Versions, 2)
	assert.Equal(t, v1.Positions, got.Versions[0].Positions, "position order survives encoding")
	assert.Equal(t, v1.EffectiveAt, got.Versions[0].EffectiveAt)

	latest, ok := got.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest.Version)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := setupRepository(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_List(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i, id := range []string{"b", "a"} {
		created := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		p := domain.Portfolio{ID: id, Name: id, BaseCurrency: "EUR", Mode: domain.AllocationQuantity, CreatedAt: created}
		v := domain.PortfolioVersion{
			PortfolioID: id, Version: 1, EffectiveAt: created, Mode: domain.AllocationQuantity,
			Positions: []domain.Position{{Symbol: "SPY", Value: 10}}, CreatedAt: created,
		}
		require.NoError(t, repo.Create(ctx, p, v))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "oldest first")
	assert.Len(t, list[1].Versions, 1)
}
