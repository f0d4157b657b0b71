package server

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RajanChettri/mozolm/internal/hub"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/lmrpc"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/metrics"
	"github.com/RajanChettri/mozolm/internal/models"
	"github.com/RajanChettri/mozolm/internal/utf8x"
)

// DefaultGenerationCap bounds the random generation loop so it always
// terminates even when a model never puts mass on end-of-sequence.
const DefaultGenerationCap = 128

// lmService implements the four protocol operations against the hub.
// Contexts arrive on every request; no per-connection state is kept.
type lmService struct {
	hub    *hub.Hub
	genCap int
	log    *logger.Logger

	// rngMu guards the shared random source; draws are short and the
	// generation loop takes it once per step.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func newLMService(h *hub.Hub, seed int64) *lmService {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lmService{
		hub:    h,
		genCap: DefaultGenerationCap,
		log:    logger.Log.Component("lmservice"),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// draw samples one symbol proportionally to its probability. Symbols are
// visited in their fixed sorted order so a seeded source reproduces.
func (s *lmService) draw(dist models.Distribution) string {
	s.rngMu.Lock()
	r := s.rng.Float64() * dist.Sum()
	s.rngMu.Unlock()

	syms := dist.Symbols()
	acc := 0.0
	for _, sym := range syms {
		acc += dist[sym]
		if r < acc {
			return sym
		}
	}
	return syms[len(syms)-1]
}

func (s *lmService) observeRequest(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = lmerror.KindOf(err).String()
	}
	metrics.RequestsTotal.WithLabelValues(op, status).Inc()
	metrics.RequestDuration.WithLabelValues(op).Observe(
		time.Since(start).Seconds())
}

// GetLMScores returns the combined next-character distribution for the
// request context. Pure read.
func (s *lmService) GetLMScores(ctx context.Context,
	req *lmrpc.ScoresRequest) (resp *lmrpc.ScoresResponse, err error) {
	start := time.Now()
	defer func() { s.observeRequest("get_lm_scores", start, err) }()

	context, err := utf8x.DecodeString(req.Context)
	if err != nil {
		return nil, err
	}
	metrics.ContextLength.Observe(float64(len(context)))

	dist, err := s.hub.Distribution(context)
	if err != nil {
		return nil, err
	}
	syms := dist.Symbols()
	resp = &lmrpc.ScoresResponse{
		Symbols: syms,
		Probs:   make([]float64, len(syms)),
	}
	for i, sym := range syms {
		resp.Probs[i] = dist[sym]
	}
	return resp, nil
}

// Generate extends the context one drawn character at a time, advancing
// the hub after every draw, until end-of-sequence or the length cap.
// End-of-sequence on the first draw yields an empty continuation, which
// is a valid degenerate result.
func (s *lmService) Generate(ctx context.Context,
	req *lmrpc.GenerateRequest) (resp *lmrpc.GenerateResponse, err error) {
	start := time.Now()
	reqID := uuid.NewString()
	defer func() { s.observeRequest("generate", start, err) }()

	work, err := utf8x.DecodeString(req.Context)
	if err != nil {
		return nil, err
	}
	metrics.ContextLength.Observe(float64(len(work)))

	var out strings.Builder
	for step := 0; step < s.genCap; step++ {
		// A dropped client stops the loop between steps; an advance that
		// has started always runs to completion.
		if err := ctx.Err(); err != nil {
			return nil, lmerror.New(lmerror.KindNetwork, err)
		}
		dist, err := s.hub.Distribution(work)
		if err != nil {
			return nil, err
		}
		char := s.draw(dist)
		if char == models.EndOfSequence {
			break
		}
		if err := s.hub.Advance(work, char); err != nil {
			return nil, err
		}
		work = append(work, char)
		out.WriteString(char)
		metrics.GeneratedCharsTotal.Inc()
	}
	s.log.Debug("generated continuation",
		"request_id", reqID, "chars", out.Len())
	return &lmrpc.GenerateResponse{Text: out.String()}, nil
}

// SampleTopK draws one character from the renormalized top-k slice of
// the distribution. k above the support size clamps; non-positive k is
// an error.
func (s *lmService) SampleTopK(ctx context.Context,
	req *lmrpc.TopKRequest) (resp *lmrpc.TopKResponse, err error) {
	start := time.Now()
	defer func() { s.observeRequest("sample_top_k", start, err) }()

	if req.K <= 0 {
		return nil, lmerror.Errorf(lmerror.KindComputation,
			"k must be positive, got %d", req.K)
	}
	context, err := utf8x.DecodeString(req.Context)
	if err != nil {
		return nil, err
	}
	dist, err := s.hub.Distribution(context)
	if err != nil {
		return nil, err
	}
	top := dist.TopK(req.K)
	sub := make(models.Distribution, len(top))
	for _, sym := range top {
		sub[sym] = dist[sym]
	}
	if err := sub.Normalize(); err != nil {
		return nil, err
	}
	return &lmrpc.TopKResponse{Symbol: s.draw(sub)}, nil
}

// BitsPerCharacter walks the corpus text left to right, scoring each
// character under the growing history and then advancing the hub with
// it, so adaptive models learn as they read. The whole text is decoded
// before any scoring: a malformed byte sequence must abort the request
// before adaptive backends have learned from its prefix.
func (s *lmService) BitsPerCharacter(ctx context.Context,
	req *lmrpc.EntropyRequest) (resp *lmrpc.EntropyResponse, err error) {
	start := time.Now()
	defer func() { s.observeRequest("bits_per_character", start, err) }()

	chars, err := utf8x.DecodeString(req.Text)
	if err != nil {
		return nil, err
	}
	var history []string
	totalBits := 0.0
	scored := int64(0)
	for _, char := range chars {
		dist, err := s.hub.Distribution(history)
		if err != nil {
			return nil, err
		}
		p := dist[char]
		if p <= 0 {
			return nil, lmerror.Errorf(lmerror.KindComputation,
				"character %q has zero probability at offset %d", char, scored)
		}
		totalBits += -math.Log2(p)
		if err := s.hub.Advance(history, char); err != nil {
			return nil, err
		}
		history = append(history, char)
		scored++
	}
	if scored == 0 {
		return nil, lmerror.Errorf(lmerror.KindComputation,
			"empty corpus: nothing to score")
	}
	bpc := totalBits / float64(scored)
	metrics.BitsPerChar.Observe(bpc)
	return &lmrpc.EntropyResponse{BitsPerChar: bpc, CharsScored: scored}, nil
}

var _ lmrpc.Service = (*lmService)(nil)
