package lmrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Stub is the client-side counterpart of Service: thin typed wrappers
// over conn.Invoke, the way generated client code would do it.
type Stub struct {
	conn grpc.ClientConnInterface
}

// NewStub wraps an established connection. The connection must have been
// dialed with the JSON content subtype as a default call option.
func NewStub(conn grpc.ClientConnInterface) *Stub {
	return &Stub{conn: conn}
}

func (s *Stub) GetLMScores(ctx context.Context, req *ScoresRequest) (*ScoresResponse, error) {
	out := new(ScoresResponse)
	if err := s.conn.Invoke(ctx, MethodGetLMScores, req, out); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (s *Stub) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	out := new(GenerateResponse)
	if err := s.conn.Invoke(ctx, MethodGenerate, req, out); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (s *Stub) SampleTopK(ctx context.Context, req *TopKRequest) (*TopKResponse, error) {
	out := new(TopKResponse)
	if err := s.conn.Invoke(ctx, MethodSampleTopK, req, out); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (s *Stub) BitsPerCharacter(ctx context.Context, req *EntropyRequest) (*EntropyResponse, error) {
	out := new(EntropyResponse)
	if err := s.conn.Invoke(ctx, MethodBitsPerCharacter, req, out); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}
