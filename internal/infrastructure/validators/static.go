package validators

import (
	"context"
	"slices"

	"avaxdash/internal/domain"
)

// Placeholder returns the fixed validator set shown when no registry is
// configured.
func Placeholder() []domain.Validator {
	return []domain.Validator{
		{Name: "Validator A", Stake: 50000, Uptime: uptime(99.9)},
		{Name: "Validator B", Stake: 40000, Uptime: uptime(98.7)},
		{Name: "Validator C", Stake: 30000, Uptime: uptime(97.5)},
	}
}

func uptime(v float64) *float64 {
	return &v
}

// Static serves a fixed validator list.
type Static struct {
	validators []domain.Validator
}

func NewStatic(validators []domain.Validator) *Static {
	return &Static{validators: slices.Clone(validators)}
}

func (s *Static) ListValidators(ctx context.Context) ([]domain.Validator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.validators), nil
}
