package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock portfolio repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p domain.Portfolio, first domain.PortfolioVersion) error {
	args := m.Called(p, first)
	return args.Error(0)
}

func (m *MockRepository) AppendVersion(ctx context.Context, v domain.PortfolioVersion) error {
	args := m.Called(v)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Portfolio), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]domain.Portfolio, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Portfolio), args.Error(1)
}

func newTestService(repo RepositoryInterface) *Service {
	s := NewService(repo, 0.01, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC) }
	return s
}

func TestService_Create(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s := newTestService(repo)

	p, warnings, err := s.Create(context.Background(), CreateRequest{
		Name:           " Growth ",
		AllocationType: "weight",
		EffectiveAt:    "2024-01-02",
		Positions:      []domain.Position{{Symbol: " aapl", Value: 0.5}, {Symbol: "msft", Value: 0.5}},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Growth", p.Name)
	assert.Equal(t, "USD", p.BaseCurrency)
	require.Len(t, p.Versions, 1)
	assert.Equal(t, 1, p.Versions[0].Version)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Versions[0].Symbols())
	assert.Equal(t, "2024-01-02", domain.FormatDate(p.Versions[0].EffectiveAt))
	repo.AssertExpectations(t)
}

func TestService_CreateDefaultsEffectiveToToday(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s := newTestService(repo)

	p, _, err := s.Create(context.Background(), CreateRequest{
		Name: "Q", AllocationType: "quantity",
		Positions: []domain.Position{{Symbol: "SPY", Value: 12}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", domain.FormatDate(p.Versions[0].EffectiveAt))
}

func TestService_CreateWeightSumDrift(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s := newTestService(repo)

	p, warnings, err := s.Create(context.Background(), CreateRequest{
		Name: "Drift", AllocationType: "weight",
		Positions: []domain.Position{{Symbol: "A", Value: 0.5}, {Symbol: "B", Value: 0.45}},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarnWeightSumDrift, warnings[0].Code)
	// Never renormalised
	assert.Equal(t, 0.45, p.Versions[0].Positions[1].Value)
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty name", CreateRequest{AllocationType: "weight", Positions: []domain.Position{{Symbol: "A", Value: 1}}}},
		{"unknown mode", CreateRequest{Name: "x", AllocationType: "shares", Positions: []domain.Position{{Symbol: "A", Value: 1}}}},
		{"no positions", CreateRequest{Name: "x", AllocationType: "weight"}},
		{"blank symbol", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: " ", Value: 1}}}},
		{"duplicate symbol", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: "a", Value: 0.5}, {Symbol: "A", Value: 0.5}}}},
		{"weight above one", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: "A", Value: 1.2}}}},
		{"negative weight", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: "A", Value: -0.1}, {Symbol: "B", Value: 1}}}},
		{"quantities as weights", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: "A", Value: 1}, {Symbol: "B", Value: 1}}}},
		{"weights far below one", CreateRequest{Name: "x", AllocationType: "weight", Positions: []domain.Position{{Symbol: "A", Value: 0.2}}}},
		{"negative quantity", CreateRequest{Name: "x", AllocationType: "quantity", Positions: []domain.Position{{Symbol: "A", Value: -3}}}},
		{"all zero", CreateRequest{Name: "x", AllocationType: "quantity", Positions: []domain.Position{{Symbol: "A", Value: 0}}}},
		{"bad date", CreateRequest{Name: "x", AllocationType: "quantity", EffectiveAt: "June 1", Positions: []domain.Position{{Symbol: "A", Value: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			s := newTestService(repo)

			_, _, err := s.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func existingPortfolio() *domain.Portfolio {
	return &domain.Portfolio{
		ID:   "p1",
		Mode: domain.AllocationWeight,
		Versions: []domain.PortfolioVersion{
			{PortfolioID: "p1", Version: 1, EffectiveAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
			{PortfolioID: "p1", Version: 2, EffectiveAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestService_AddVersion(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", "p1").Return(existingPortfolio(), nil)
	repo.On("AppendVersion", mock.MatchedBy(func(v domain.PortfolioVersion) bool {
		return v.Version == 3 && v.Mode == domain.AllocationWeight
	})).Return(nil)
	s := newTestService(repo)

	v, _, err := s.AddVersion(context.Background(), "p1", VersionRequest{
		EffectiveAt: "2024-03-01", // same day as latest is allowed
		Positions:   []domain.Position{{Symbol: "X", Value: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Version)
	repo.AssertExpectations(t)
}

func TestService_AddVersionRejects(t *testing.T) {
	tests := []struct {
		name string
		req  VersionRequest
	}{
		{"mode switch", VersionRequest{AllocationType: "quantity", EffectiveAt: "2024-04-01", Positions: []domain.Position{{Symbol: "X", Value: 1}}}},
		{"before latest", VersionRequest{EffectiveAt: "2024-02-01", Positions: []domain.Position{{Symbol: "X", Value: 1}}}},
		{"invalid positions", VersionRequest{EffectiveAt: "2024-04-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("Get", "p1").Return(existingPortfolio(), nil)
			s := newTestService(repo)

			_, _, err := s.AddVersion(context.Background(), "p1", tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			repo.AssertNotCalled(t, "AppendVersion", mock.Anything)
		})
	}
}

func TestService_Lookups(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", "p1").Return(existingPortfolio(), nil)
	repo.On("Get", "nope").Return(nil, domain.ErrNotFound)
	s := newTestService(repo)
	ctx := context.Background()

	latest, err := s.Latest(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	v1, err := s.Version(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	_, err = s.Version(ctx, "p1", 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	versions, err := s.Versions(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	_, err = s.Latest(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
