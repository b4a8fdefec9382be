package synth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rustyeddy/backsim/market"
)

// Config controls how many ticks a bar expands into and how the bar is
// classified.
type Config struct {
	// MinTicks / MaxTicks bound the tick count per bar. The actual count is
	// derived from bar volume.
	MinTicks int
	MaxTicks int

	// VolumePerTick is how much bar volume one tick represents when deriving
	// the tick count.
	VolumePerTick float64

	// ConsolidationBodyMax is the body-to-range ratio below which a bar is
	// treated as consolidation.
	ConsolidationBodyMax float64

	// BarDuration spaces tick timestamps inside the bar.
	BarDuration time.Duration
}

// DefaultConfig returns the synthesizer defaults used by the engine.
func DefaultConfig() Config {
	return Config{
		MinTicks:             8,
		MaxTicks:             64,
		VolumePerTick:        10,
		ConsolidationBodyMax: 0.25,
		BarDuration:          time.Hour,
	}
}

// Synthesizer expands OHLC bars into ordered synthetic tick sequences.
//
// All randomness (the consolidation walk) comes from the rng handed in by
// the owning engine, so a fixed seed yields a byte-identical sequence for
// the same bar.
type Synthesizer struct {
	cfg Config
	rng *rand.Rand
}

func NewSynthesizer(cfg Config, rng *rand.Rand) *Synthesizer {
	if cfg.MinTicks < 4 {
		cfg.MinTicks = 4
	}
	if cfg.MaxTicks < cfg.MinTicks {
		cfg.MaxTicks = cfg.MinTicks
	}
	if cfg.VolumePerTick <= 0 {
		cfg.VolumePerTick = 10
	}
	if cfg.ConsolidationBodyMax <= 0 {
		cfg.ConsolidationBodyMax = 0.25
	}
	if cfg.BarDuration <= 0 {
		cfg.BarDuration = time.Hour
	}
	return &Synthesizer{cfg: cfg, rng: rng}
}

// Expand produces the ordered tick sequence for one bar.
func (s *Synthesizer) Expand(b market.Bar) ([]Tick, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}

	n := s.tickCount(b)
	shape := Classify(b, s.cfg.ConsolidationBodyMax)

	var ticks []Tick
	if shape == ShapeConsolidation {
		ticks = s.randomWalk(b, n)
	} else {
		ticks = s.trendPath(b, shape, n)
	}

	s.stamp(b, ticks)
	return ticks, nil
}

// tickCount derives the per-bar tick count from volume, clamped to the
// configured bounds. Bars without volume get the minimum.
func (s *Synthesizer) tickCount(b market.Bar) int {
	n := int(b.Volume / s.cfg.VolumePerTick)
	if n < s.cfg.MinTicks {
		n = s.cfg.MinTicks
	}
	if n > s.cfg.MaxTicks {
		n = s.cfg.MaxTicks
	}
	return n
}

// trendPath walks the canonical anchor order for the shape and interpolates
// interior ticks between anchors, weighting the dominant leg higher in both
// tick density and volume share.
func (s *Synthesizer) trendPath(b market.Bar, shape Shape, n int) []Tick {
	prices, anchors, legWeights := anchorPath(shape, b)

	interior := n - 4
	legTicks := splitByWeight(interior, legWeights)

	ticks := make([]Tick, 0, n)
	ticks = append(ticks, Tick{Price: prices[0], Anchor: anchors[0]})

	weights := make([]float64, 1, n)
	weights[0] = legWeights[0] / float64(legTicks[0]+1)

	for leg := 0; leg < 3; leg++ {
		from, to := prices[leg], prices[leg+1]
		steps := legTicks[leg] + 1 // interior ticks plus the destination anchor
		perTick := legWeights[leg] / float64(steps)

		for k := 1; k <= steps; k++ {
			frac := float64(k) / float64(steps)
			tick := Tick{
				Price:  from + (to-from)*frac,
				Anchor: AnchorInterior,
			}
			if k == steps {
				tick.Price = to
				tick.Anchor = anchors[leg+1]
			}
			ticks = append(ticks, tick)
			weights = append(weights, perTick)
		}
	}

	normalizeShares(ticks, weights)
	return ticks
}

// randomWalk models a consolidation bar: a seeded walk bounded by [low,
// high], pinned to open and close, with the exact high and low injected so
// the path stays consistent with the bar.
func (s *Synthesizer) randomWalk(b market.Bar, n int) []Tick {
	if n < 4 {
		n = 4
	}

	ticks := make([]Tick, n)
	ticks[0] = Tick{Price: b.Open, Anchor: AnchorOpen}
	ticks[n-1] = Tick{Price: b.Close, Anchor: AnchorClose}

	step := b.Range() / 4
	price := b.Open
	for i := 1; i < n-1; i++ {
		price += (s.rng.Float64()*2 - 1) * step
		if price > b.High {
			price = b.High
		}
		if price < b.Low {
			price = b.Low
		}
		ticks[i] = Tick{Price: price, Anchor: AnchorInterior}
	}

	// Pin the extremes at two distinct interior positions; which extreme
	// comes first is part of the seeded path.
	if n >= 4 {
		// Interior positions are 1..n-2.
		i := 1 + s.rng.Intn(n-2)
		j := 1 + s.rng.Intn(n-2)
		for j == i {
			j = 1 + s.rng.Intn(n-2)
		}
		if i > j {
			i, j = j, i
		}
		first, second := AnchorHigh, AnchorLow
		firstPx, secondPx := b.High, b.Low
		if s.rng.Intn(2) == 0 {
			first, second = second, first
			firstPx, secondPx = secondPx, firstPx
		}
		ticks[i] = Tick{Price: firstPx, Anchor: first}
		ticks[j] = Tick{Price: secondPx, Anchor: second}
	}

	share := 1 / float64(n)
	for i := range ticks {
		ticks[i].VolumeShare = share
	}
	return ticks
}

// stamp assigns sequence indexes and timestamps spread across the bar.
func (s *Synthesizer) stamp(b market.Bar, ticks []Tick) {
	n := len(ticks)
	for i := range ticks {
		ticks[i].Seq = i
		ticks[i].Time = b.Time.Add(s.cfg.BarDuration * time.Duration(i) / time.Duration(n))
	}
}

// splitByWeight distributes count items across three legs proportionally,
// assigning remainders to the heaviest legs first.
func splitByWeight(count int, weights [3]float64) [3]int {
	var total float64
	for _, w := range weights {
		total += w
	}

	var out [3]int
	assigned := 0
	for i, w := range weights {
		out[i] = int(float64(count) * w / total)
		assigned += out[i]
	}
	for rem := count - assigned; rem > 0; rem-- {
		best := 0
		for i := 1; i < 3; i++ {
			if weights[i] > weights[best] {
				best = i
			}
		}
		out[best]++
		weights[best] = 0 // spread ties across legs
	}
	return out
}

// normalizeShares scales raw weights so the volume shares sum to one.
func normalizeShares(ticks []Tick, weights []float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		share := 1 / float64(len(ticks))
		for i := range ticks {
			ticks[i].VolumeShare = share
		}
		return
	}
	for i := range ticks {
		ticks[i].VolumeShare = weights[i] / total
	}
}
