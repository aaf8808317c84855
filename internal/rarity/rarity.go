package rarity

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/pompom/go-box-store/internal/models"
)

// tierOrder fixes the cumulative bucketing order. Changing it changes which
// tier a boundary draw lands in, so it is part of the selection contract.
var tierOrder = [4]models.Rarity{
	models.RarityCommon,
	models.RarityUncommon,
	models.RarityRare,
	models.RarityUltra,
}

// Weights holds the proportional share of each tier. Weights need not sum
// to 100; they are normalized by their total.
type Weights struct {
	Common   float64
	Uncommon float64
	Rare     float64
	Ultra    float64
}

func (w Weights) Total() float64 {
	return w.Common + w.Uncommon + w.Rare + w.Ultra
}

func (w Weights) of(tier models.Rarity) float64 {
	switch tier {
	case models.RarityCommon:
		return w.Common
	case models.RarityUncommon:
		return w.Uncommon
	case models.RarityRare:
		return w.Rare
	default:
		return w.Ultra
	}
}

// Picker draws rarity tiers and product indexes from a seedable source, so
// the whole selection path is deterministic under test. Safe for concurrent
// use.
type Picker struct {
	weights Weights

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(weights Weights, src rand.Source) (*Picker, error) {
	if weights.Total() <= 0 {
		return nil, fmt.Errorf("rarity weights must have a positive total, got %v", weights.Total())
	}
	if weights.Common < 0 || weights.Uncommon < 0 || weights.Rare < 0 || weights.Ultra < 0 {
		return nil, fmt.Errorf("rarity weights must be non-negative")
	}
	return &Picker{
		weights: weights,
		rng:     rand.New(src),
	}, nil
}

// Pick draws a tier with probability proportional to its weight.
func (p *Picker) Pick() models.Rarity {
	p.mu.Lock()
	draw := p.rng.Float64() * p.weights.Total()
	p.mu.Unlock()
	return p.PickFrom(draw)
}

// PickFrom maps a draw in [0, total) to a tier by cumulative-sum bucketing
// in common→uncommon→rare→ultra order. The comparison is strictly `draw <
// cumulative`, so a draw exactly on a bucket boundary belongs to the later
// tier: with weights 73/20/6/1 a draw of 73.0 selects uncommon. Draws at or
// above the total clamp to the last tier.
func (p *Picker) PickFrom(draw float64) models.Rarity {
	cumulative := 0.0
	for _, tier := range tierOrder {
		cumulative += p.weights.of(tier)
		if draw < cumulative {
			return tier
		}
	}
	return tierOrder[len(tierOrder)-1]
}

// Intn draws a uniform index in [0, n). Used to pick one product among the
// in-stock candidates of the selected tier.
func (p *Picker) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

// Weights returns the configured weight table.
func (p *Picker) Weights() Weights {
	return p.weights
}
