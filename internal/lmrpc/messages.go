// Package lmrpc defines the wire protocol shared by the server and the
// client: the message types for the four model operations, the gRPC
// service descriptor with hand-rolled handlers, and the JSON codec the
// messages travel under.
package lmrpc

// ScoresRequest asks for the combined next-character distribution given
// a context. The context travels as a plain UTF-8 string; the server
// segments it and rejects malformed encodings.
type ScoresRequest struct {
	Context string `json:"context"`
}

// ScoresResponse carries the distribution as parallel symbol/probability
// slices. The end-of-sequence symbol is the empty string.
type ScoresResponse struct {
	Symbols []string  `json:"symbols"`
	Probs   []float64 `json:"probs"`
}

// GenerateRequest asks the server to extend the context with randomly
// drawn characters until end-of-sequence or the server's length cap.
type GenerateRequest struct {
	Context string `json:"context"`
}

// GenerateResponse carries the generated continuation, not including the
// request context. Empty means end-of-sequence came up on the first
// draw, which is a valid degenerate result rather than an error.
type GenerateResponse struct {
	Text string `json:"text"`
}

// TopKRequest asks for one character sampled from the renormalized top-k
// slice of the distribution.
type TopKRequest struct {
	Context string `json:"context"`
	K       int    `json:"k"`
}

// TopKResponse carries the sampled character.
type TopKResponse struct {
	Symbol string `json:"symbol"`
}

// EntropyRequest carries corpus text to score. The client owns reading
// the text source; unreadable sources never reach the wire.
type EntropyRequest struct {
	Text string `json:"text"`
}

// EntropyResponse reports the cross-entropy of the corpus under the hub.
type EntropyResponse struct {
	BitsPerChar float64 `json:"bits_per_char"`
	CharsScored int64   `json:"chars_scored"`
}
