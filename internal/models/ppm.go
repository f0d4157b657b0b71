package models

import (
	"bufio"
	"os"
	"sync"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/utf8x"
)

// ppmNode holds the next-character counts for one context suffix.
// Children are keyed by the context character one step further back, so
// the path root -> "b" -> "a" is the node conditioning on context "ab".
type ppmNode struct {
	children map[string]*ppmNode
	counts   map[string]int
	total    int
}

func newPPMNode() *ppmNode {
	return &ppmNode{
		children: make(map[string]*ppmNode),
		counts:   make(map[string]int),
	}
}

// PPM is a prediction-by-partial-matching model. Scoring blends the
// count tables of every context order from the longest available suffix
// down to the empty context, reserving an escape probability at each
// order for continuations that order has not seen (method C: escape mass
// proportional to the number of distinct continuations). The bottom of
// the chain is a uniform distribution over the seen alphabet plus
// end-of-sequence.
//
// The mutex covers both Score and Observe: a distribution computed under
// it is always consistent with the most recent completed observation.
type PPM struct {
	mu       sync.Mutex
	maxOrder int
	static   bool
	alphabet map[string]struct{}
	root     *ppmNode
}

// NewPPM builds an empty PPM model with the given maximum context order.
func NewPPM(maxOrder int) *PPM {
	if maxOrder < 0 {
		maxOrder = 0
	}
	return &PPM{
		maxOrder: maxOrder,
		alphabet: make(map[string]struct{}),
		root:     newPPMNode(),
	}
}

// LoadPPM trains a PPM model on the plain-text training file named by
// modelFile (the storage locator for this model type), then freezes it
// when opts.StaticModel is set. An empty modelFile yields an untrained
// model, which only makes sense in the adaptive case.
func LoadPPM(modelFile string, opts config.PPMOptions) (*PPM, error) {
	m := NewPPM(opts.MaxOrder)
	if modelFile != "" {
		f, err := os.Open(modelFile)
		if err != nil {
			return nil, lmerror.New(lmerror.KindIO, err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			chars, err := utf8x.DecodeString(line)
			if err != nil {
				return nil, err
			}
			for i, ch := range chars {
				m.observe(chars[:i], ch)
			}
			// Line ends count as end-of-sequence events; without them
			// generation would never learn to stop.
			m.observe(chars, EndOfSequence)
		}
		if err := scanner.Err(); err != nil {
			return nil, lmerror.New(lmerror.KindIO, err)
		}
	}
	m.static = opts.StaticModel
	return m, nil
}

func (m *PPM) Name() string { return "ppm" }

// Adaptive reports whether Observe still mutates the counts.
func (m *PPM) Adaptive() bool { return !m.static }

// Score returns the blended distribution for the context.
func (m *PPM) Score(context []string) (Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Uniform base over alphabet plus end-of-sequence.
	base := 1.0 / float64(len(m.alphabet)+1)
	dist := make(Distribution, len(m.alphabet)+1)
	dist[EndOfSequence] = base
	for ch := range m.alphabet {
		dist[ch] = base
	}

	// Refine from the empty context upward; each matched order keeps its
	// own counts and escapes the remaining mass to the blend built so
	// far, so the longest suffix dominates.
	node := m.root
	for order := 0; ; order++ {
		if node.total > 0 {
			distinct := len(node.counts)
			denom := float64(node.total + distinct)
			escape := float64(distinct) / denom
			for sym, p := range dist {
				dist[sym] = escape * p
			}
			for sym, count := range node.counts {
				dist[sym] += float64(count) / denom
			}
		}
		if order >= m.maxOrder || order >= len(context) {
			break
		}
		child, ok := node.children[context[len(context)-1-order]]
		if !ok {
			break
		}
		node = child
	}
	return dist, nil
}

// Observe increments the count for the realized character at every
// context order up to the maximum. Frozen models ignore observations.
func (m *PPM) Observe(context []string, char string) error {
	if m.static {
		return nil
	}
	m.mu.Lock()
	m.observe(context, char)
	m.mu.Unlock()
	return nil
}

// observe does the real update; callers hold the mutex (or own the model
// exclusively during training).
func (m *PPM) observe(context []string, char string) {
	if char != EndOfSequence {
		m.alphabet[char] = struct{}{}
	}
	node := m.root
	for order := 0; ; order++ {
		node.counts[char]++
		node.total++
		if order >= m.maxOrder || order >= len(context) {
			break
		}
		ch := context[len(context)-1-order]
		child, ok := node.children[ch]
		if !ok {
			child = newPPMNode()
			node.children[ch] = child
		}
		node = child
	}
}

var _ Backend = (*PPM)(nil)
