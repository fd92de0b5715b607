package pricing

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidArgument is returned for contract lengths outside [1, MaxMonths].
	ErrInvalidArgument = errors.New("pricing: invalid argument")
	// ErrUnsupportedTerm is returned when a valid length is not one of the offered terms.
	ErrUnsupportedTerm = errors.New("pricing: contract term not offered")
)

// Months is a contract length checked against a policy. Obtain one through Calculator.ParseMonths.
type Months struct {
	n int
}

// Int returns the number of months.
func (m Months) Int() int { return m.n }

// Quote is the itemised price of an advertising contract.
type Quote struct {
	Months              int   `json:"months"`
	MonthlySupplyPrice  Money `json:"monthlySupplyPrice"`
	TotalSupplyPrice    Money `json:"totalSupplyPrice"`
	TaxAmount           Money `json:"taxAmount"`
	TotalPrice          Money `json:"totalPrice"`
	DiscountRatePercent int64 `json:"discountRatePercent"`
}

// Calculator computes quotes for a fixed policy. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	policy Policy
	terms  []int
}

// NewCalculator validates the policy and returns a calculator bound to it.
func NewCalculator(p Policy) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	terms := normaliseTerms(p.Terms)
	p.Terms = slices.Clone(terms)
	return &Calculator{policy: p, terms: terms}, nil
}

// MustCalculator is NewCalculator that panics on an invalid policy.
func MustCalculator(p Policy) *Calculator {
	c, err := NewCalculator(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Policy returns a copy of the calculator policy.
func (c *Calculator) Policy() Policy {
	p := c.policy
	p.Terms = slices.Clone(c.terms)
	return p
}

// Terms returns the offered contract lengths in ascending order.
func (c *Calculator) Terms() []int {
	return slices.Clone(c.terms)
}

// ParseMonths checks n against [1, MaxMonths].
func (c *Calculator) ParseMonths(n int) (Months, error) {
	if n < 1 || n > c.policy.MaxMonths {
		return Months{}, fmt.Errorf("%w: months must be between 1 and %d, got %d", ErrInvalidArgument, c.policy.MaxMonths, n)
	}
	return Months{n: n}, nil
}

// MonthlyPrice returns the per-month supply price for the contract length,
// interpolated linearly from BasePrice to FloorPrice and rounded to RoundingUnit.
func (c *Calculator) MonthlyPrice(m Months) (Money, error) {
	if _, err := c.ParseMonths(m.n); err != nil {
		return 0, err
	}
	p := c.policy
	steps := Money(p.MaxMonths - 1)
	// raw = base - (base-floor)/steps*(m-1), kept as a fraction over steps.
	numerator := p.BasePrice*steps - (p.BasePrice-p.FloorPrice)*Money(m.n-1)
	return roundHalfAwayFromZero(numerator, steps*p.RoundingUnit) * p.RoundingUnit, nil
}

// Quote returns the itemised price for the contract length.
func (c *Calculator) Quote(m Months) (Quote, error) {
	monthly, err := c.MonthlyPrice(m)
	if err != nil {
		return Quote{}, err
	}
	months := Money(m.n)
	supply := monthly * months
	tax := c.Tax(supply)
	q := Quote{
		Months:             m.n,
		MonthlySupplyPrice: monthly,
		TotalSupplyPrice:   supply,
		TaxAmount:          tax,
		TotalPrice:         supply + tax,
	}
	if m.n > 1 {
		baseline := c.policy.BasePrice * months
		q.DiscountRatePercent = roundHalfAwayFromZero((baseline-supply)*100, baseline)
	}
	return q, nil
}

// QuoteFor parses n and returns its quote.
func (c *Calculator) QuoteFor(n int) (Quote, error) {
	m, err := c.ParseMonths(n)
	if err != nil {
		return Quote{}, err
	}
	return c.Quote(m)
}

// QuoteOffered is QuoteFor restricted to the offered terms.
func (c *Calculator) QuoteOffered(n int) (Quote, error) {
	m, err := c.ParseMonths(n)
	if err != nil {
		return Quote{}, err
	}
	if !slices.Contains(c.terms, n) {
		return Quote{}, fmt.Errorf("%w: %d months", ErrUnsupportedTerm, n)
	}
	return c.Quote(m)
}

// Table returns the quotes of every offered term.
func (c *Calculator) Table() []Quote {
	out := make([]Quote, 0, len(c.terms))
	for _, n := range c.terms {
		q, err := c.QuoteFor(n)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Tax returns the VAT owed on a supply amount.
func (c *Calculator) Tax(supply Money) Money {
	return roundHalfAwayFromZero(supply*Money(c.policy.TaxRateBps), 10_000)
}

// roundHalfAwayFromZero returns n/d rounded to the nearest integer, ties away from zero. d must be positive.
func roundHalfAwayFromZero(n, d Money) Money {
	q := n / d
	r := n % d
	if r < 0 {
		r = -r
	}
	if 2*r >= d {
		if n < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}
