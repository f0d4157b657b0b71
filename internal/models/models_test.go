package models

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
)

func checkUnitMass(t *testing.T, dist Distribution) {
	t.Helper()
	if got := dist.Sum(); math.Abs(got-1.0) > SumTolerance {
		t.Errorf("distribution mass = %v, want 1 within %v", got, SumTolerance)
	}
}

func TestUniformLazyAlphabet(t *testing.T) {
	u := NewUniform(nil)
	if !u.Adaptive() {
		t.Error("lazily discovered uniform should be adaptive")
	}

	dist, err := u.Score(nil)
	if err != nil {
		t.Fatal(err)
	}
	if dist[EndOfSequence] != 1.0 {
		t.Errorf("empty alphabet: P(EOS) = %v, want 1", dist[EndOfSequence])
	}

	for _, ch := range []string{"a", "b", "c"} {
		if err := u.Observe(nil, ch); err != nil {
			t.Fatal(err)
		}
	}
	dist, err = u.Score([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, dist)
	if want := 0.25; dist["a"] != want || dist[EndOfSequence] != want {
		t.Errorf("P(a) = %v, P(EOS) = %v, want both %v",
			dist["a"], dist[EndOfSequence], want)
	}
}

func TestUniformFixedAlphabet(t *testing.T) {
	u := NewUniform([]string{"x", "y"})
	if u.Adaptive() {
		t.Error("injected alphabet should make the backend static")
	}
	if err := u.Observe(nil, "z"); err != nil {
		t.Fatal(err)
	}
	dist, err := u.Score(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dist["z"]; ok {
		t.Error("fixed alphabet grew on Observe")
	}
	checkUnitMass(t, dist)
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNgramBackoff(t *testing.T) {
	// Trigram table: after "ab" the continuation is always "c"; after
	// just "b" both "c" and "d" occur.
	model := writeFile(t, "ngrams.tsv",
		"abc\t8\nbd\t2\nbc\t2\na\t4\nb\t4\nc\t5\nd\t3\n")
	vocab := writeFile(t, "vocab.txt", "a\nb\nc\nd\n")
	m, err := LoadNgram(model, vocab)
	if err != nil {
		t.Fatal(err)
	}

	full, err := m.Score([]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, full)
	if full["c"] <= full["d"] {
		t.Errorf("after 'ab': P(c)=%v should dominate P(d)=%v",
			full["c"], full["d"])
	}

	// Unseen context "xb" backs off to the "b" suffix.
	backoff, err := m.Score([]string{"x", "b"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, backoff)
	if backoff["c"] <= backoff["a"] {
		t.Errorf("suffix backoff lost counts: P(c)=%v vs P(a)=%v",
			backoff["c"], backoff["a"])
	}

	// Fully unknown context falls back to the unigram table.
	uni, err := m.Score([]string{"q"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, uni)
	if uni["c"] <= uni["d"] {
		t.Errorf("unigram fallback: P(c)=%v should exceed P(d)=%v",
			uni["c"], uni["d"])
	}
}

func TestNgramDeterministic(t *testing.T) {
	model := writeFile(t, "ngrams.tsv", "ab\t3\nac\t1\n")
	m, err := LoadNgram(model, "")
	if err != nil {
		t.Fatal(err)
	}
	first, err := m.Score([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := m.Score([]string{"a"})
		if err != nil {
			t.Fatal(err)
		}
		for sym, p := range first {
			if again[sym] != p {
				t.Fatalf("score changed between calls for %q: %v vs %v",
					sym, p, again[sym])
			}
		}
	}
}

func TestNgramWithoutDataIsUniform(t *testing.T) {
	m, err := LoadNgram("", "")
	if err != nil {
		t.Fatal(err)
	}
	dist, err := m.Score([]string{"h"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, dist)
	if dist["a"] != dist["z"] || dist["a"] != dist[EndOfSequence] {
		t.Errorf("dataless n-gram should be uniform, got P(a)=%v P(z)=%v P(EOS)=%v",
			dist["a"], dist["z"], dist[EndOfSequence])
	}
}

func TestPPMTrainsAndBlends(t *testing.T) {
	corpus := writeFile(t, "corpus.txt", "abab\nabab\nabac\n")
	m, err := LoadPPM(corpus, config.PPMOptions{MaxOrder: 2})
	if err != nil {
		t.Fatal(err)
	}

	dist, err := m.Score([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, dist)
	if dist["b"] <= dist["c"] {
		t.Errorf("after 'a': P(b)=%v should dominate P(c)=%v",
			dist["b"], dist["c"])
	}
	// An unseen continuation still gets escape mass.
	if dist["a"] <= 0 {
		t.Errorf("escape should leave P(a) > 0, got %v", dist["a"])
	}
}

func TestPPMObserveShiftsMass(t *testing.T) {
	m := NewPPM(2)
	ctx := []string{"a"}
	for i := 0; i < 20; i++ {
		if err := m.Observe(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Observe(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	dist, err := m.Score(ctx)
	if err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, dist)
	if dist["b"] <= dist["c"] {
		t.Errorf("P(b)=%v should exceed P(c)=%v after 20:1 observations",
			dist["b"], dist["c"])
	}
}

func TestPPMStaticModelFreezesCounts(t *testing.T) {
	corpus := writeFile(t, "corpus.txt", "abc\n")
	m, err := LoadPPM(corpus, config.PPMOptions{MaxOrder: 2, StaticModel: true})
	if err != nil {
		t.Fatal(err)
	}
	if m.Adaptive() {
		t.Error("static_model should report non-adaptive")
	}
	before, err := m.Score([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if err := m.Observe([]string{"a"}, "z"); err != nil {
			t.Fatal(err)
		}
	}
	after, err := m.Score([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	for sym, p := range before {
		if after[sym] != p {
			t.Fatalf("frozen model drifted on %q: %v -> %v", sym, p, after[sym])
		}
	}
}

// Final counts after a fixed multiset of (context, char) observations
// must not depend on the order of the calls.
func TestPPMObservationOrderCommutes(t *testing.T) {
	type obs struct {
		ctx []string
		ch  string
	}
	observations := []obs{
		{[]string{"a"}, "b"},
		{[]string{"a"}, "c"},
		{[]string{"a", "b"}, "c"},
		{[]string{"x"}, "y"},
	}

	forward := NewPPM(2)
	for _, o := range observations {
		if err := forward.Observe(o.ctx, o.ch); err != nil {
			t.Fatal(err)
		}
	}
	backward := NewPPM(2)
	for i := len(observations) - 1; i >= 0; i-- {
		if err := backward.Observe(observations[i].ctx, observations[i].ch); err != nil {
			t.Fatal(err)
		}
	}

	contexts := [][]string{nil, {"a"}, {"a", "b"}, {"x"}, {"q"}}
	for _, ctx := range contexts {
		fd, err := forward.Score(ctx)
		if err != nil {
			t.Fatal(err)
		}
		bd, err := backward.Score(ctx)
		if err != nil {
			t.Fatal(err)
		}
		for sym, p := range fd {
			if math.Abs(bd[sym]-p) > 1e-12 {
				t.Fatalf("context %v symbol %q: %v vs %v (order dependent)",
					ctx, sym, p, bd[sym])
			}
		}
	}
}

func TestLoadUnsupportedType(t *testing.T) {
	_, err := Load(config.ModelConfig{Type: "transformer"})
	if lmerror.KindOf(err) != lmerror.KindConfig {
		t.Errorf("error kind = %v, want config", lmerror.KindOf(err))
	}
}

func TestLoadMissingStorage(t *testing.T) {
	_, err := Load(config.ModelConfig{
		Type: config.ModelPPM,
		Storage: config.StorageConfig{
			ModelFile:  filepath.Join(t.TempDir(), "missing.txt"),
			PPMOptions: config.PPMOptions{MaxOrder: 2},
		},
	})
	if lmerror.KindOf(err) != lmerror.KindIO {
		t.Errorf("error kind = %v, want io", lmerror.KindOf(err))
	}
}

func TestDistributionTopK(t *testing.T) {
	dist := Distribution{"a": 0.2, "b": 0.4, "c": 0.2, EndOfSequence: 0.2}
	top := dist.TopK(2)
	if len(top) != 2 || top[0] != "b" {
		t.Fatalf("TopK(2) = %v, want b first", top)
	}
	// Tie between "a", "c" and EOS resolves by ascending code point, so
	// EOS (empty string) precedes "a".
	if top[1] != EndOfSequence {
		t.Errorf("TopK tie-break = %q, want end-of-sequence", top[1])
	}
	if got := dist.TopK(10); len(got) != 4 {
		t.Errorf("TopK over support size returned %d symbols, want 4", len(got))
	}
}

func TestDistributionNormalize(t *testing.T) {
	d := Distribution{"a": 2, "b": 2}
	if err := d.Normalize(); err != nil {
		t.Fatal(err)
	}
	checkUnitMass(t, d)

	empty := Distribution{"a": 0}
	if err := empty.Normalize(); lmerror.KindOf(err) != lmerror.KindComputation {
		t.Errorf("zero-mass Normalize kind = %v, want computation",
			lmerror.KindOf(err))
	}
}
