package models

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/utf8x"
)

// ngramNode holds next-character counts for one context suffix. Children
// are keyed by the context character one step further back.
type ngramNode struct {
	children map[string]*ngramNode
	counts   map[string]int
	total    int
}

func newNgramNode() *ngramNode {
	return &ngramNode{
		children: make(map[string]*ngramNode),
		counts:   make(map[string]int),
	}
}

// Ngram is a static character n-gram model. Scoring walks from the
// longest context suffix the table knows down to the unigram level and
// applies add-one smoothing over the vocabulary plus end-of-sequence, so
// every query yields a proper distribution. The table is immutable after
// load; Observe is a no-op.
type Ngram struct {
	root     *ngramNode
	alphabet map[string]struct{}
	maxOrder int
}

// defaultAlphabet is the printable ASCII range, used when a model is
// configured with neither count data nor a vocabulary. Such a model
// degrades to uniform estimates, matching the bigram flavor that can run
// entirely without data files.
func defaultAlphabet() map[string]struct{} {
	set := make(map[string]struct{}, 95)
	for b := byte(' '); b <= '~'; b++ {
		set[string(b)] = struct{}{}
	}
	return set
}

// LoadNgram reads an n-gram count table. The model file carries one
// n-gram per line as "<chars>\t<count>"; the last character of each
// n-gram is the predicted one. The vocabulary file lists one character
// per line. Either may be empty.
func LoadNgram(modelFile, vocabularyFile string) (*Ngram, error) {
	alphabet, err := loadVocabulary(vocabularyFile)
	if err != nil {
		return nil, err
	}
	m := &Ngram{
		root:     newNgramNode(),
		alphabet: make(map[string]struct{}, len(alphabet)),
		maxOrder: 1,
	}
	for _, ch := range alphabet {
		m.alphabet[ch] = struct{}{}
	}

	if modelFile != "" {
		if err := m.loadCounts(modelFile); err != nil {
			return nil, err
		}
	}
	if len(m.alphabet) == 0 {
		m.alphabet = defaultAlphabet()
	}
	return m, nil
}

func (m *Ngram) loadCounts(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return lmerror.New(lmerror.KindIO, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, '\t')
		if idx < 0 {
			return lmerror.Errorf(lmerror.KindIO,
				"%s:%d: missing count column", path, lineNo)
		}
		count, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil || count < 0 {
			return lmerror.Errorf(lmerror.KindIO,
				"%s:%d: bad count %q", path, lineNo, line[idx+1:])
		}
		chars, err := utf8x.DecodeString(line[:idx])
		if err != nil {
			return err
		}
		if len(chars) == 0 {
			return lmerror.Errorf(lmerror.KindIO,
				"%s:%d: empty n-gram", path, lineNo)
		}
		m.addNgram(chars, count)
	}
	if err := scanner.Err(); err != nil {
		return lmerror.New(lmerror.KindIO, err)
	}
	return nil
}

// addNgram credits count to the (context, next) pair encoded by chars.
func (m *Ngram) addNgram(chars []string, count int) {
	next := chars[len(chars)-1]
	context := chars[:len(chars)-1]
	for _, ch := range chars {
		m.alphabet[ch] = struct{}{}
	}
	if len(chars) > m.maxOrder {
		m.maxOrder = len(chars)
	}

	node := m.root
	// Walk the context most-recent-first so deeper nodes mean longer
	// suffixes.
	for i := len(context) - 1; i >= 0; i-- {
		child, ok := node.children[context[i]]
		if !ok {
			child = newNgramNode()
			node.children[context[i]] = child
		}
		node = child
	}
	node.counts[next] += count
	node.total += count
}

func (m *Ngram) Name() string { return "char_ngram" }

func (m *Ngram) Adaptive() bool { return false }

// Observe is a no-op: the table is frozen at load time.
func (m *Ngram) Observe(context []string, char string) error { return nil }

// Score finds the longest context suffix with observed counts and
// add-one smooths its counts over the vocabulary plus end-of-sequence.
// With no usable suffix at all the result is uniform.
func (m *Ngram) Score(context []string) (Distribution, error) {
	node := m.bestNode(context)
	v := float64(len(m.alphabet) + 1)
	dist := make(Distribution, len(m.alphabet)+1)
	if node == nil || node.total == 0 {
		p := 1.0 / v
		dist[EndOfSequence] = p
		for ch := range m.alphabet {
			dist[ch] = p
		}
		return dist, nil
	}
	denom := float64(node.total) + v
	dist[EndOfSequence] = (float64(node.counts[EndOfSequence]) + 1) / denom
	for ch := range m.alphabet {
		dist[ch] = (float64(node.counts[ch]) + 1) / denom
	}
	return dist, nil
}

// bestNode walks the context most-recent-first and returns the deepest
// node that has predictions, backing off toward the root.
func (m *Ngram) bestNode(context []string) *ngramNode {
	best := m.root
	node := m.root
	limit := m.maxOrder - 1
	for i := len(context) - 1; i >= 0 && len(context)-1-i < limit; i-- {
		child, ok := node.children[context[i]]
		if !ok {
			break
		}
		node = child
		if node.total > 0 {
			best = node
		}
	}
	return best
}

var _ Backend = (*Ngram)(nil)
