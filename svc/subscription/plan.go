package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Plan is one purchasable subscription period.
type Plan struct {
	Name     string  `yaml:"name"`
	Months   int     `yaml:"months"`
	PriceUSD float64 `yaml:"price_usd"`
}

// PlansListSource defines how plans are loaded into the service.
type PlansListSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

// PlanSet is a validated, months-indexed set of plans.
type PlanSet struct {
	plans map[int]Plan
}

// LoadPlans reads and validates plans from the source.
func LoadPlans(ctx context.Context, src PlansListSource) (*PlanSet, error) {
	if src == nil {
		panic("subscription: PlansListSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(plans) == 0 {
		return nil, ErrNoPlans
	}

	byMonths := make(map[int]Plan, len(plans))
	for _, p := range plans {
		if p.Months <= 0 {
			return nil, fmt.Errorf("%w: plan %q has non-positive months", ErrFailedToLoadPlans, p.Name)
		}
		if p.PriceUSD <= 0 {
			return nil, fmt.Errorf("%w: plan %q has non-positive price", ErrFailedToLoadPlans, p.Name)
		}
		if _, dup := byMonths[p.Months]; dup {
			return nil, fmt.Errorf("%w: duplicate plan for %d months", ErrFailedToLoadPlans, p.Months)
		}
		byMonths[p.Months] = p
	}

	return &PlanSet{plans: byMonths}, nil
}

// ByMonths returns the plan for the given period.
func (s *PlanSet) ByMonths(months int) (Plan, bool) {
	p, ok := s.plans[months]
	return p, ok
}

// List returns all plans ordered by period length.
func (s *PlanSet) List() []Plan {
	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Months < out[j].Months })
	return out
}

// YAMLPlansSource loads plans from a YAML file:
//
//	plans:
//	  - name: monthly
//	    months: 1
//	    price_usd: 15.00
type YAMLPlansSource struct {
	Path string
}

func (s YAMLPlansSource) Load(_ context.Context) ([]Plan, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Plans, nil
}

// StaticPlansSource serves a fixed plan list, for tests and defaults.
type StaticPlansSource []Plan

func (s StaticPlansSource) Load(_ context.Context) ([]Plan, error) {
	return s, nil
}

// DefaultPlans returns the built-in plan list used when no plans file is
// configured: a single monthly plan at the configured price.
func DefaultPlans(priceUSD float64) StaticPlansSource {
	return StaticPlansSource{
		{Name: "monthly", Months: 1, PriceUSD: priceUSD},
	}
}
