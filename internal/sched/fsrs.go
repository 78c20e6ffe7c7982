package sched

import (
	"math"
)

// Rating is the grade given to a card review.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// Params holds the parameters for the FSRS memory model.
type Params struct {
	A                 float64 // scales the overall memory increase
	B                 float64 // difficulty exponent
	C                 float64 // stability exponent
	D                 float64 // retention effect scaler
	DesiredRetention  float64 // desired retention rate (e.g., 0.9 for 90%)
	InitialDifficulty float64 // difficulty assumed for cards with no review history
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		A:                 0.2,
		B:                 0.5,
		C:                 0.1,
		D:                 4.0,
		DesiredRetention:  0.9,
		InitialDifficulty: 5.0,
	}
}

const (
	// MaxSeedReviews bounds how many prior reviews Seed replays.
	MaxSeedReviews = 100
	// MaxStability caps a seeded stability, in days.
	MaxStability = 36500.0
)

// Memory holds the FSRS memory state of a card.
type Memory struct {
	Stability  float64
	Difficulty float64
}

// Next calculates the memory state after one review.
func (p *Params) Next(m Memory, rating Rating) Memory {
	if rating == Again {
		return Memory{
			Stability:  1,
			Difficulty: math.Min(10, m.Difficulty+0.5),
		}
	}

	difficulty := m.Difficulty
	if rating == Hard {
		difficulty = math.Min(10, difficulty+0.1)
	}
	return Memory{
		Stability:  p.calculateNewStability(m.Stability, m.Difficulty),
		Difficulty: difficulty,
	}
}

// Seed derives the starting memory state of an imported card.
// Cards that never passed a review start empty, the same as a freshly
// created card. Otherwise the prior successful reviews are replayed as
// "Good" answers.
func (p *Params) Seed(state State, successive int) Memory {
	if state != Review || successive <= 0 {
		return Memory{}
	}
	m := Memory{Stability: 1, Difficulty: p.InitialDifficulty}
	for i := 0; i < min(successive, MaxSeedReviews); i++ {
		next := p.Next(m, Good)
		if next.Stability > MaxStability || math.IsInf(next.Stability, 0) || math.IsNaN(next.Stability) {
			m.Stability = MaxStability
			break
		}
		m = next
	}
	return m
}

// calculateNewStability applies the core FSRS formula for a successful review.
func (p *Params) calculateNewStability(stability, difficulty float64) float64 {
	// Formula: S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1))
	if stability < 1 {
		stability = 1
	}
	if difficulty < 1 {
		difficulty = 1
	}

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	exponent := p.D * (1 - p.DesiredRetention)
	multiplier := math.Exp(exponent) - 1

	return stability * (1 + factor*multiplier)
}
