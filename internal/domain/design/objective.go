// Package design implements the evolutionary anti-metabolite design loop:
// candidate evaluation through scoped model transactions, the seeded
// genetic knockout search over the species universe, greedy solution
// minimization, and replacement of reaction targets by metabolite targets.
package design

import (
	"math"

	"github.com/turtacn/antimet/internal/domain/metabolic"
)

// ObjectiveFunction scores a flux distribution for the strain design goal.
// Scores are non-negative; higher is better.
type ObjectiveFunction interface {
	Name() string
	Score(model *metabolic.Model, dist *metabolic.FluxDistribution) float64
}

// BiomassProductCoupledYield scores (growth * product flux) / |substrate
// uptake|, rewarding designs where making the product is coupled to
// growing.  Zero substrate uptake scores zero.
type BiomassProductCoupledYield struct {
	Biomass   string
	Product   string
	Substrate string
}

func (o BiomassProductCoupledYield) Name() string { return "biomass_product_coupled_yield" }

func (o BiomassProductCoupledYield) Score(_ *metabolic.Model, dist *metabolic.FluxDistribution) float64 {
	uptake := math.Abs(dist.Flux(o.Substrate))
	if uptake == 0 {
		return 0
	}
	score := dist.Flux(o.Biomass) * dist.Flux(o.Product) / uptake
	if score < 0 {
		return 0
	}
	return score
}

// ProductYield scores product flux per unit of substrate uptake,
// independent of growth.
type ProductYield struct {
	Product   string
	Substrate string
}

func (o ProductYield) Name() string { return "product_yield" }

func (o ProductYield) Score(_ *metabolic.Model, dist *metabolic.FluxDistribution) float64 {
	uptake := math.Abs(dist.Flux(o.Substrate))
	if uptake == 0 {
		return 0
	}
	yield := dist.Flux(o.Product) / uptake
	if yield < 0 {
		return 0
	}
	return yield
}
