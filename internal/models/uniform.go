package models

import "sync"

// Uniform spreads probability evenly over its alphabet plus the
// end-of-sequence symbol. The alphabet is either injected (fixed, static
// backend) or discovered lazily from observed characters (adaptive).
type Uniform struct {
	mu       sync.Mutex
	alphabet map[string]struct{}
	fixed    bool
}

// NewUniform builds a uniform backend. A non-empty alphabet freezes the
// support; nil or empty means discover characters as they are observed.
func NewUniform(alphabet []string) *Uniform {
	set := make(map[string]struct{}, len(alphabet))
	for _, ch := range alphabet {
		set[ch] = struct{}{}
	}
	return &Uniform{alphabet: set, fixed: len(set) > 0}
}

func (u *Uniform) Name() string { return "uniform" }

// Adaptive reports true while the alphabet is still being discovered.
func (u *Uniform) Adaptive() bool { return !u.fixed }

// Score ignores the context entirely: 1/(|alphabet|+1) for every
// character and for end-of-sequence. Before any character has been seen
// the whole mass sits on end-of-sequence.
func (u *Uniform) Score(context []string) (Distribution, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := 1.0 / float64(len(u.alphabet)+1)
	dist := make(Distribution, len(u.alphabet)+1)
	dist[EndOfSequence] = p
	for ch := range u.alphabet {
		dist[ch] = p
	}
	return dist, nil
}

// Observe grows the alphabet when it is lazily discovered, otherwise it
// is a no-op.
func (u *Uniform) Observe(context []string, char string) error {
	if u.fixed || char == EndOfSequence {
		return nil
	}
	u.mu.Lock()
	u.alphabet[char] = struct{}{}
	u.mu.Unlock()
	return nil
}
