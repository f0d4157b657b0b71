// Package hub owns the ordered model backend collection and is the
// single authority the protocol layer queries. It combines backend
// distributions per the configured mixture mode and fans observations
// out to every adaptive backend so online learning stays consistent
// across the whole mixture.
package hub

import (
	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/metrics"
	"github.com/RajanChettri/mozolm/internal/models"
)

// Loader turns one model configuration into a ready backend. The default
// is models.Load; tests inject their own to construct hubs around
// in-memory backends.
type Loader func(config.ModelConfig) (models.Backend, error)

// Hub mixes the configured backends. The backends slice and weights are
// immutable after construction; mutable state lives inside the adaptive
// backends, each behind its own mutex.
type Hub struct {
	cfg      config.ModelHubConfig
	backends []models.Backend
	weights  []float64
	log      *logger.Logger
}

// New builds a hub from configuration using the standard backend loader.
func New(cfg config.ModelHubConfig) (*Hub, error) {
	return NewWithLoader(cfg, models.Load)
}

// NewWithLoader builds a hub with a custom backend loader.
func NewWithLoader(cfg config.ModelHubConfig, load Loader) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hub{
		cfg: cfg,
		log: logger.Log.Component("hub"),
	}
	for i, mc := range cfg.Models {
		backend, err := load(mc)
		if err != nil {
			return nil, err
		}
		h.backends = append(h.backends, backend)
		h.log.Info("loaded model backend",
			"index", i, "type", string(mc.Type), "adaptive", backend.Adaptive())
	}
	h.weights = normalizedWeights(cfg.Weights, len(h.backends))
	return h, nil
}

// normalizedWeights returns unit-sum weights, equal when none are
// configured. Validation has already rejected negative or zero-mass
// weight vectors.
func normalizedWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	if len(weights) != n {
		for i := range out {
			out[i] = 1.0 / float64(n)
		}
		return out
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}

// Weights exposes the effective normalized mixture weights.
func (h *Hub) Weights() []float64 {
	out := make([]float64, len(h.weights))
	copy(out, h.weights)
	return out
}

// Distribution computes the combined next-character distribution for the
// context. Single mode returns the lone backend's distribution verbatim
// (renormalized for drift); interpolation takes the weighted sum. A
// combined distribution with zero mass is a computation error.
func (h *Hub) Distribution(context []string) (models.Distribution, error) {
	metrics.HubQueriesTotal.Inc()

	if h.cfg.MixtureType == config.MixtureSingle {
		dist, err := h.backends[0].Score(context)
		if err != nil {
			return nil, err
		}
		if err := dist.Normalize(); err != nil {
			return nil, err
		}
		return dist, nil
	}

	combined := make(models.Distribution)
	for i, backend := range h.backends {
		dist, err := backend.Score(context)
		if err != nil {
			return nil, lmerror.Errorf(lmerror.KindComputation,
				"backend %s: %w", backend.Name(), err)
		}
		w := h.weights[i]
		for sym, p := range dist {
			combined[sym] += w * p
		}
	}
	if err := combined.Normalize(); err != nil {
		return nil, err
	}
	return combined, nil
}

// Advance forwards the realized character to every adaptive backend,
// regardless of which backend carried the probability mass for the step.
// Updates run to completion once started; they are short and never
// block on anything but the backend mutex.
func (h *Hub) Advance(context []string, char string) error {
	metrics.HubAdvancesTotal.Inc()
	for _, backend := range h.backends {
		if !backend.Adaptive() {
			continue
		}
		if err := backend.Observe(context, char); err != nil {
			return err
		}
	}
	return nil
}

// HasAdaptive reports whether any backend learns online.
func (h *Hub) HasAdaptive() bool {
	for _, backend := range h.backends {
		if backend.Adaptive() {
			return true
		}
	}
	return false
}
