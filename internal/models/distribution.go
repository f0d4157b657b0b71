// Package models implements the pluggable character model backends the
// hub mixes: a uniform fallback, a static character n-gram with suffix
// backoff, and an adaptive PPM (prediction by partial matching) model.
package models

import (
	"math"
	"sort"

	"github.com/RajanChettri/mozolm/internal/lmerror"
)

// EndOfSequence is the reserved end-of-sequence symbol. The empty string
// can never collide with a real character token.
const EndOfSequence = ""

// SumTolerance is the numerical tolerance on total probability mass.
const SumTolerance = 1e-6

// Distribution maps characters (plus EndOfSequence) to probabilities.
// It is recomputed per query and never persisted.
type Distribution map[string]float64

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	total := 0.0
	for _, p := range d {
		total += p
	}
	return total
}

// Normalize scales the distribution to unit mass, correcting floating
// point drift. Zero or non-finite total mass is a computation error: a
// degenerate distribution must never leave the hub looking valid.
func (d Distribution) Normalize() error {
	total := d.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return lmerror.Errorf(lmerror.KindComputation,
			"degenerate distribution: total mass %v", total)
	}
	for sym := range d {
		d[sym] /= total
	}
	return nil
}

// Symbols returns the support sorted by ascending code point, with
// EndOfSequence (the empty string) first. The fixed order makes sampling
// reproducible under a seeded random source.
func (d Distribution) Symbols() []string {
	syms := make([]string, 0, len(d))
	for sym := range d {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// TopK returns the k highest-probability symbols, ties broken by
// ascending code point. k is clamped to the support size.
func (d Distribution) TopK(k int) []string {
	syms := d.Symbols()
	sort.SliceStable(syms, func(i, j int) bool {
		pi, pj := d[syms[i]], d[syms[j]]
		if pi != pj {
			return pi > pj
		}
		return syms[i] < syms[j]
	})
	if k > len(syms) {
		k = len(syms)
	}
	return syms[:k]
}
