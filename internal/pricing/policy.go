package pricing

import (
	"errors"
	"fmt"
	"sort"
)

// Money represents a monetary value in whole currency units (KRW has no minor unit).
type Money = int64

// ErrInvalidPolicy is returned when a pricing policy cannot produce sane quotes.
var ErrInvalidPolicy = errors.New("pricing: invalid policy")

// Policy holds the advertising price list parameters.
type Policy struct {
	// BasePrice is the monthly supply price of a one-month contract.
	BasePrice Money `yaml:"base_price"`
	// FloorPrice is the monthly supply price of a MaxMonths contract.
	FloorPrice Money `yaml:"floor_price"`
	// MaxMonths is the longest contract; the discount is spread linearly over MaxMonths-1 steps.
	MaxMonths int `yaml:"max_months"`
	// RoundingUnit is the granularity of monthly prices.
	RoundingUnit Money `yaml:"rounding_unit"`
	// TaxRateBps is the VAT rate in basis points.
	TaxRateBps int `yaml:"tax_rate_bps"`
	// Terms lists the contract lengths offered to sellers.
	Terms []int `yaml:"terms"`
}

// DefaultPolicy returns the launch price list: 200,000 for one month down to 100,000 at twelve.
func DefaultPolicy() Policy {
	return Policy{
		BasePrice:    200_000,
		FloorPrice:   100_000,
		MaxMonths:    12,
		RoundingUnit: 1_000,
		TaxRateBps:   1_000,
		Terms:        []int{1, 3, 6, 12},
	}
}

// Validate reports whether the policy is usable by a Calculator.
func (p Policy) Validate() error {
	if p.BasePrice <= 0 || p.FloorPrice <= 0 {
		return fmt.Errorf("%w: prices must be positive", ErrInvalidPolicy)
	}
	if p.FloorPrice > p.BasePrice {
		return fmt.Errorf("%w: floor price %d exceeds base price %d", ErrInvalidPolicy, p.FloorPrice, p.BasePrice)
	}
	if p.MaxMonths < 2 {
		return fmt.Errorf("%w: max months must be at least 2", ErrInvalidPolicy)
	}
	if p.RoundingUnit <= 0 {
		return fmt.Errorf("%w: rounding unit must be positive", ErrInvalidPolicy)
	}
	if p.TaxRateBps < 0 || p.TaxRateBps > 10_000 {
		return fmt.Errorf("%w: tax rate %d bps out of range", ErrInvalidPolicy, p.TaxRateBps)
	}
	if len(p.Terms) == 0 {
		return fmt.Errorf("%w: at least one contract term is required", ErrInvalidPolicy)
	}
	for _, term := range p.Terms {
		if term < 1 || term > p.MaxMonths {
			return fmt.Errorf("%w: term %d outside [1,%d]", ErrInvalidPolicy, term, p.MaxMonths)
		}
	}
	return nil
}

func normaliseTerms(terms []int) []int {
	out := make([]int, 0, len(terms))
	seen := make(map[int]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}
