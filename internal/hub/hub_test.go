package hub

import (
	"math"
	"sync"
	"testing"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/models"
)

// fakeBackend serves a canned distribution and records observations.
type fakeBackend struct {
	mu       sync.Mutex
	name     string
	dist     models.Distribution
	adaptive bool
	observed []string
}

func (f *fakeBackend) Name() string   { return f.name }
func (f *fakeBackend) Adaptive() bool { return f.adaptive }

func (f *fakeBackend) Score(context []string) (models.Distribution, error) {
	out := make(models.Distribution, len(f.dist))
	for sym, p := range f.dist {
		out[sym] = p
	}
	return out, nil
}

func (f *fakeBackend) Observe(context []string, char string) error {
	f.mu.Lock()
	f.observed = append(f.observed, char)
	f.mu.Unlock()
	return nil
}

func loaderFor(backends ...models.Backend) (Loader, config.ModelHubConfig) {
	i := 0
	load := func(config.ModelConfig) (models.Backend, error) {
		b := backends[i]
		i++
		return b, nil
	}
	cfg := config.ModelHubConfig{MixtureType: config.MixtureInterpolation}
	if len(backends) == 1 {
		cfg.MixtureType = config.MixtureSingle
	}
	for range backends {
		cfg.Models = append(cfg.Models, config.ModelConfig{Type: config.ModelUniform})
	}
	return load, cfg
}

func TestUnsupportedModelTypeFailsConstruction(t *testing.T) {
	cfg := config.ModelHubConfig{
		MixtureType: config.MixtureSingle,
		Models:      []config.ModelConfig{{Type: "lstm"}},
	}
	_, err := New(cfg)
	if lmerror.KindOf(err) != lmerror.KindConfig {
		t.Errorf("error kind = %v, want config", lmerror.KindOf(err))
	}
}

func TestSingleModeVerbatim(t *testing.T) {
	b := &fakeBackend{name: "peaked", dist: models.Distribution{
		"a": 0.7, "b": 0.2, models.EndOfSequence: 0.1}}
	load, cfg := loaderFor(b)
	h, err := NewWithLoader(cfg, load)
	if err != nil {
		t.Fatal(err)
	}
	dist, err := h.Distribution(nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dist["a"]-0.7) > 1e-12 {
		t.Errorf("P(a) = %v, want 0.7", dist["a"])
	}
}

// Equal-weight interpolation of a uniform and a peaked backend must give
// each character the simple average of the two individual probabilities.
func TestInterpolationAveragesEqualWeights(t *testing.T) {
	uniform := &fakeBackend{name: "uniform", dist: models.Distribution{
		"a": 0.25, "b": 0.25, "c": 0.25, models.EndOfSequence: 0.25}}
	peaked := &fakeBackend{name: "peaked", dist: models.Distribution{
		"a": 0.9, "b": 0.05, "c": 0.05}}
	load, cfg := loaderFor(uniform, peaked)
	h, err := NewWithLoader(cfg, load)
	if err != nil {
		t.Fatal(err)
	}
	dist, err := h.Distribution([]string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if want := (0.25 + 0.9) / 2; math.Abs(dist["a"]-want) > 1e-9 {
		t.Errorf("P(a) = %v, want simple average %v", dist["a"], want)
	}
	if got := dist.Sum(); math.Abs(got-1.0) > models.SumTolerance {
		t.Errorf("combined mass = %v, want 1", got)
	}
}

func TestConfiguredWeightsNormalized(t *testing.T) {
	a := &fakeBackend{name: "a", dist: models.Distribution{"x": 1}}
	b := &fakeBackend{name: "b", dist: models.Distribution{"y": 1}}
	load, cfg := loaderFor(a, b)
	cfg.Weights = []float64{3, 1}
	h, err := NewWithLoader(cfg, load)
	if err != nil {
		t.Fatal(err)
	}
	w := h.Weights()
	if math.Abs(w[0]-0.75) > 1e-12 || math.Abs(w[1]-0.25) > 1e-12 {
		t.Errorf("weights = %v, want [0.75 0.25]", w)
	}
	dist, err := h.Distribution(nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dist["x"]-0.75) > 1e-9 {
		t.Errorf("P(x) = %v, want 0.75", dist["x"])
	}
}

func TestZeroMassDistributionFails(t *testing.T) {
	dead := &fakeBackend{name: "dead", dist: models.Distribution{"a": 0}}
	load, cfg := loaderFor(dead)
	h, err := NewWithLoader(cfg, load)
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.Distribution(nil)
	if lmerror.KindOf(err) != lmerror.KindComputation {
		t.Errorf("error kind = %v, want computation", lmerror.KindOf(err))
	}
}

func TestAdvanceReachesOnlyAdaptiveBackends(t *testing.T) {
	static := &fakeBackend{name: "static", dist: models.Distribution{"a": 1}}
	adaptive := &fakeBackend{name: "adaptive", adaptive: true,
		dist: models.Distribution{"a": 1}}
	load, cfg := loaderFor(static, adaptive)
	h, err := NewWithLoader(cfg, load)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Advance([]string{"a"}, "b"); err != nil {
		t.Fatal(err)
	}
	if len(static.observed) != 0 {
		t.Errorf("static backend observed %v, want nothing", static.observed)
	}
	if len(adaptive.observed) != 1 || adaptive.observed[0] != "b" {
		t.Errorf("adaptive backend observed %v, want [b]", adaptive.observed)
	}
	if !h.HasAdaptive() {
		t.Error("HasAdaptive() = false with an adaptive backend present")
	}
}

// Learning state is keyed by nothing but the backend itself: an Advance
// from one "caller" is visible to a subsequent caller's Distribution.
func TestLearningVisibleAcrossCallers(t *testing.T) {
	cfg := config.ModelHubConfig{
		MixtureType: config.MixtureSingle,
		Models: []config.ModelConfig{{
			Type: config.ModelPPM,
			Storage: config.StorageConfig{
				PPMOptions: config.PPMOptions{MaxOrder: 2},
			},
		}},
	}
	h, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := []string{"a"}
	for i := 0; i < 10; i++ {
		if err := h.Advance(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	dist, err := h.Distribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dist["b"] <= dist[models.EndOfSequence] {
		t.Errorf("P(b)=%v should dominate P(EOS)=%v after training",
			dist["b"], dist[models.EndOfSequence])
	}
}

func TestConcurrentQueryAndAdvance(t *testing.T) {
	cfg := config.ModelHubConfig{
		MixtureType: config.MixtureSingle,
		Models: []config.ModelConfig{{
			Type: config.ModelPPM,
			Storage: config.StorageConfig{
				PPMOptions: config.PPMOptions{MaxOrder: 3},
			},
		}},
	}
	h, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := []string{"a", "b"}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if w%2 == 0 {
					if err := h.Advance(ctx, "c"); err != nil {
						t.Error(err)
						return
					}
				} else if _, err := h.Distribution(ctx); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	dist, err := h.Distribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := dist.Sum(); math.Abs(got-1.0) > models.SumTolerance {
		t.Errorf("mass after concurrent updates = %v, want 1", got)
	}
}
