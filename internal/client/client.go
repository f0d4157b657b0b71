// Package client is the caller-side helper for the language model
// protocol: it negotiates the channel once and exposes the four
// operations as synchronous calls with a per-call timeout.
package client

import (
	"context"
	"os"
	"time"

	"google.golang.org/grpc"

	"github.com/RajanChettri/mozolm/internal/auth"
	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/lmrpc"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/models"
	"github.com/RajanChettri/mozolm/internal/utf8x"
)

// Client owns one negotiated channel to a server. It is safe for
// concurrent use; the channel multiplexes requests.
type Client struct {
	conn    *grpc.ClientConn
	stub    *lmrpc.Stub
	timeout time.Duration
	log     *logger.Logger
}

// New fills configuration defaults, walks the channel negotiation state
// machine and returns a ready client. Transport failures surface as
// network errors, credential failures as auth errors; neither retries.
func New(cfg config.ClientConfig) (*Client, error) {
	config.InitClientDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSec * float64(time.Second))

	negotiator := auth.NewClientNegotiator(cfg.Server.Auth, cfg.Auth, timeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := negotiator.Establish(cfg.Server.AddressURI); err != nil {
		return nil, err
	}
	if err := negotiator.Negotiate(ctx); err != nil {
		return nil, err
	}
	conn, err := negotiator.Finish(
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(lmrpc.CodecName)))
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:    conn,
		stub:    lmrpc.NewStub(conn),
		timeout: timeout,
		log:     logger.Log.Component("client"),
	}, nil
}

// Close releases the channel.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// checkContext rejects malformed request text before it reaches the
// wire; context integrity is required for coherent model history.
func checkContext(s string) error {
	if !utf8x.Valid(s) {
		return lmerror.Errorf(lmerror.KindEncoding,
			"request context is not valid UTF-8")
	}
	return nil
}

// GetLMScores fetches the combined next-character distribution for the
// given context string.
func (c *Client) GetLMScores(contextStr string) (models.Distribution, error) {
	if err := checkContext(contextStr); err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	resp, err := c.stub.GetLMScores(ctx, &lmrpc.ScoresRequest{Context: contextStr})
	if err != nil {
		return nil, err
	}
	if len(resp.Symbols) != len(resp.Probs) {
		return nil, lmerror.Errorf(lmerror.KindComputation,
			"malformed response: %d symbols, %d probabilities",
			len(resp.Symbols), len(resp.Probs))
	}
	dist := make(models.Distribution, len(resp.Symbols))
	for i, sym := range resp.Symbols {
		dist[sym] = resp.Probs[i]
	}
	return dist, nil
}

// RandGen asks the server to generate a random continuation of the
// context. An empty result means the model chose to stop immediately.
func (c *Client) RandGen(contextStr string) (string, error) {
	if err := checkContext(contextStr); err != nil {
		return "", err
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	resp, err := c.stub.Generate(ctx, &lmrpc.GenerateRequest{Context: contextStr})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// OneKbestSample draws a single character from the renormalized top-k
// slice of the distribution for the context.
func (c *Client) OneKbestSample(k int, contextStr string) (string, error) {
	if err := checkContext(contextStr); err != nil {
		return "", err
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	resp, err := c.stub.SampleTopK(ctx, &lmrpc.TopKRequest{
		Context: contextStr, K: k})
	if err != nil {
		return "", err
	}
	return resp.Symbol, nil
}

// CalcBitsPerCharacter reads the text file at path and has the server
// score it, returning bits per character and the number of characters
// scored. An unreadable file is an IO error surfaced before any network
// traffic.
func (c *Client) CalcBitsPerCharacter(path string) (float64, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, lmerror.New(lmerror.KindIO, err)
	}
	if !utf8x.Valid(string(data)) {
		return 0, 0, lmerror.Errorf(lmerror.KindEncoding,
			"corpus file %s is not valid UTF-8", path)
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	resp, err := c.stub.BitsPerCharacter(ctx, &lmrpc.EntropyRequest{
		Text: string(data)})
	if err != nil {
		return 0, 0, err
	}
	c.log.Debug("scored corpus",
		"path", path, "bits_per_char", resp.BitsPerChar,
		"chars", resp.CharsScored)
	return resp.BitsPerChar, resp.CharsScored, nil
}
