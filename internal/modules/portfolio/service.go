// Package portfolio implements the portfolio store: boundary validation of
// user-defined allocations and their append-only version history.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Weight sums outside this range are quantities entered as weights
const (
	minWeightSum = 0.5
	maxWeightSum = 1.5
)

// RepositoryInterface is the persistence contract the service needs
type RepositoryInterface interface {
	Create(ctx context.Context, p domain.Portfolio, first domain.PortfolioVersion) error
	AppendVersion(ctx context.Context, v domain.PortfolioVersion) error
	Get(ctx context.Context, id string) (*domain.Portfolio, error)
	List(ctx context.Context) ([]domain.Portfolio, error)
}

// CreateRequest is the validated input for a new portfolio
type CreateRequest struct {
	Name           string            `json:"name"`
	BaseCurrency   string            `json:"base_currency"`
	AllocationType string            `json:"allocation_type"`
	EffectiveAt    string            `json:"effective_at"` // YYYY-MM-DD, defaults to today
	Positions      []domain.Position `json:"positions"`
}

// VersionRequest describes an edit, which always creates version N+1
type VersionRequest struct {
	AllocationType string            `json:"allocation_type,omitempty"` // must match the portfolio when set
	EffectiveAt    string            `json:"effective_at"`
	Positions      []domain.Position `json:"positions"`
}

// Service validates input at the boundary and manages version history
type Service struct {
	repo               RepositoryInterface
	weightSumTolerance float64
	now                func() time.Time
	log                zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo RepositoryInterface, weightSumTolerance float64, log zerolog.Logger) *Service {
	return &Service{
		repo:               repo,
		weightSumTolerance: weightSumTolerance,
		now:                time.Now,
		log:                log.With().Str("service", "portfolio").Logger(),
	}
}

// Create validates req and stores a portfolio with version 1
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Portfolio, []domain.Warning, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	mode, err := domain.ParseAllocationMode(req.AllocationType)
	if err != nil {
		return nil, nil, err
	}

	effectiveAt, err := s.effectiveDate(req.EffectiveAt)
	if err != nil {
		return nil, nil, err
	}

	positions, warnings, err := s.validatePositions(mode, req.Positions)
	if err != nil {
		return nil, nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.BaseCurrency))
	if currency == "" {
		currency = "USD"
	}

	now := s.now().UTC()
	p := domain.Portfolio{
		ID:           uuid.New().String(),
		Name:         name,
		BaseCurrency: currency,
		Mode:         mode,
		CreatedAt:    now,
	}
	first := domain.PortfolioVersion{
		PortfolioID: p.ID,
		Version:     1,
		EffectiveAt: effectiveAt,
		Mode:        mode,
		Positions:   positions,
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, p, first); err != nil {
		return nil, nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.Versions = []domain.PortfolioVersion{first}

	s.log.Info().
		Str("portfolio_id", p.ID).
		Str("mode", string(mode)).
		Int("positions", len(positions)).
		Int("warnings", len(warnings)).
		Msg("Created portfolio")

	return &p, warnings, nil
}

// AddVersion validates req against the portfolio and appends version N+1
func (s *Service) AddVersion(ctx context.Context, id string, req VersionRequest) (*domain.PortfolioVersion, []domain.Warning, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if req.AllocationType != "" {
		mode, err := domain.ParseAllocationMode(req.AllocationType)
		if err != nil {
			return nil, nil, err
		}
		if mode != p.Mode {
			return nil, nil, &domain.ValidationError{
				Field:  "allocation_type",
				Reason: fmt.Sprintf("portfolio uses %s allocation, cannot switch to %s", p.Mode, mode),
			}
		}
	}

	effectiveAt, err := s.effectiveDate(req.EffectiveAt)
	if err != nil {
		return nil, nil, err
	}

	nextVersion := 1
	if latest, ok := p.Latest(); ok {
		if effectiveAt.Before(latest.EffectiveAt) {
			return nil, nil, &domain.ValidationError{
				Field: "effective_at",
				Reason: fmt.Sprintf("%s is before the latest version's %s",
					domain.FormatDate(effectiveAt), domain.FormatDate(latest.EffectiveAt)),
			}
		}
		for _, v := range p.Versions {
			if v.Version >= nextVersion {
				nextVersion = v.Version + 1
			}
		}
	}

	positions, warnings, err := s.validatePositions(p.Mode, req.Positions)
	if err != nil {
		return nil, nil, err
	}

	v := domain.PortfolioVersion{
		PortfolioID: p.ID,
		Version:     nextVersion,
		EffectiveAt: effectiveAt,
		Mode:        p.Mode,
		Positions:   positions,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.AppendVersion(ctx, v); err != nil {
		return nil, nil, fmt.Errorf("failed to append version: %w", err)
	}

	s.log.Info().
		Str("portfolio_id", p.ID).
		Int("version", v.Version).
		Str("effective_at", domain.FormatDate(effectiveAt)).
		Msg("Added portfolio version")

	return &v, warnings, nil
}

// Get returns a portfolio with its version history
func (s *Service) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	return s.repo.Get(ctx, id)
}

// List returns all portfolios
func (s *Service) List(ctx context.Context) ([]domain.Portfolio, error) {
	return s.repo.List(ctx)
}

// Versions returns the version history ordered by version number
func (s *Service) Versions(ctx context.Context, id string) ([]domain.PortfolioVersion, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SortVersions()
	return p.Versions, nil
}

// Version returns version n of a portfolio
func (s *Service) Version(ctx context.Context, id string, n int) (*domain.PortfolioVersion, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, ok := p.Version(n)
	if !ok {
		return nil, fmt.Errorf("version %d of portfolio %s: %w", n, id, domain.ErrNotFound)
	}
	return &v, nil
}

// Latest returns the version with the highest effective date
func (s *Service) Latest(ctx context.Context, id string) (*domain.PortfolioVersion, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, ok := p.Latest()
	if !ok {
		return nil, fmt.Errorf("portfolio %s has no versions: %w", id, domain.ErrNotFound)
	}
	return &v, nil
}

func (s *Service) effectiveDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.NormalizeDate(s.now()), nil
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "effective_at", Reason: err.Error()}
	}
	return t, nil
}

// validatePositions normalizes symbols and applies the mode's value rules.
// Weight sums that drift past the tolerance are kept as entered and flagged.
func (s *Service) validatePositions(mode domain.AllocationMode, in []domain.Position) ([]domain.Position, []domain.Warning, error) {
	if len(in) == 0 {
		return nil, nil, &domain.ValidationError{Field: "positions", Reason: "at least one position is required"}
	}

	out := make([]domain.Position, 0, len(in))
	seen := make(map[string]bool, len(in))
	var sum float64

	for i, p := range in {
		field := fmt.Sprintf("positions[%d]", i)
		symbol := domain.NormalizeSymbol(p.Symbol)
		if symbol == "" {
			return nil, nil, &domain.ValidationError{Field: field + ".symbol", Reason: "must not be empty"}
		}
		if seen[symbol] {
			return nil, nil, &domain.ValidationError{Field: field + ".symbol", Reason: fmt.Sprintf("duplicate symbol %s", symbol)}
		}
		seen[symbol] = true

		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, nil, &domain.ValidationError{Field: field + ".value", Reason: "must be a finite number"}
		}
		switch mode {
		case domain.AllocationWeight:
			if p.Value < 0 || p.Value > 1 {
				return nil, nil, &domain.ValidationError{Field: field + ".value", Reason: fmt.Sprintf("weight %v outside [0,1]", p.Value)}
			}
		case domain.AllocationQuantity:
			if p.Value < 0 {
				return nil, nil, &domain.ValidationError{Field: field + ".value", Reason: fmt.Sprintf("quantity %v is negative", p.Value)}
			}
		}

		sum += p.Value
		out = append(out, domain.Position{Symbol: symbol, Value: p.Value})
	}

	if sum == 0 {
		return nil, nil, &domain.ValidationError{Field: "positions", Reason: "all position values are zero"}
	}

	var warnings []domain.Warning
	if mode == domain.AllocationWeight {
		if sum < minWeightSum || sum > maxWeightSum {
			return nil, nil, &domain.ValidationError{
				Field:  "positions",
				Reason: fmt.Sprintf("weights sum to %.4f, which looks like quantities in a weight-mode portfolio", sum),
			}
		}
		if math.Abs(sum-1) > s.weightSumTolerance {
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarnWeightSumDrift,
				Message: fmt.Sprintf("weights sum to %.4f, more than %.2f%% away from 1.0; stored as entered", sum, s.weightSumTolerance*100),
			})
		}
	}

	return out, warnings, nil
}
