package lmrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mozolm.LMService"

// Method names, as they appear on the wire.
const (
	MethodGetLMScores      = "/" + ServiceName + "/GetLMScores"
	MethodGenerate         = "/" + ServiceName + "/Generate"
	MethodSampleTopK       = "/" + ServiceName + "/SampleTopK"
	MethodBitsPerCharacter = "/" + ServiceName + "/BitsPerCharacter"
)

// Service is the server-side contract for the four model operations.
type Service interface {
	// GetLMScores returns the combined next-character distribution.
	GetLMScores(ctx context.Context, req *ScoresRequest) (*ScoresResponse, error)
	// Generate draws characters until end-of-sequence or the length cap.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	// SampleTopK draws one character from the renormalized top-k slice.
	SampleTopK(ctx context.Context, req *TopKRequest) (*TopKResponse, error)
	// BitsPerCharacter scores corpus text and reports cross-entropy.
	BitsPerCharacter(ctx context.Context, req *EntropyRequest) (*EntropyResponse, error)
}

// Register attaches the service implementation to a gRPC server. The
// descriptor below plays the role protoc-generated registration code
// would; the messages travel under the JSON codec instead of protobuf.
func Register(s *grpc.Server, srv Service) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetLMScores", Handler: getLMScoresHandler},
		{MethodName: "Generate", Handler: generateHandler},
		{MethodName: "SampleTopK", Handler: sampleTopKHandler},
		{MethodName: "BitsPerCharacter", Handler: bitsPerCharacterHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mozolm/lmrpc",
}

func getLMScoresHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScoresRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(Service).GetLMScores(ctx, in)
		return resp, ToStatus(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetLMScores}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(Service).GetLMScores(ctx, req.(*ScoresRequest))
		return resp, ToStatus(err)
	}
	return interceptor(ctx, in, info, handler)
}

func generateHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GenerateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(Service).Generate(ctx, in)
		return resp, ToStatus(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGenerate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(Service).Generate(ctx, req.(*GenerateRequest))
		return resp, ToStatus(err)
	}
	return interceptor(ctx, in, info, handler)
}

func sampleTopKHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TopKRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(Service).SampleTopK(ctx, in)
		return resp, ToStatus(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSampleTopK}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(Service).SampleTopK(ctx, req.(*TopKRequest))
		return resp, ToStatus(err)
	}
	return interceptor(ctx, in, info, handler)
}

func bitsPerCharacterHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EntropyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(Service).BitsPerCharacter(ctx, in)
		return resp, ToStatus(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodBitsPerCharacter}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(Service).BitsPerCharacter(ctx, req.(*EntropyRequest))
		return resp, ToStatus(err)
	}
	return interceptor(ctx, in, info, handler)
}
