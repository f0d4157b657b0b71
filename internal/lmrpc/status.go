package lmrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RajanChettri/mozolm/internal/lmerror"
)

// kindToCode maps each error kind onto a distinct gRPC status code so
// the client can recover the kind from a wire failure.
var kindToCode = map[lmerror.Kind]codes.Code{
	lmerror.KindConfig:      codes.FailedPrecondition,
	lmerror.KindIO:          codes.NotFound,
	lmerror.KindNetwork:     codes.Unavailable,
	lmerror.KindAuth:        codes.Unauthenticated,
	lmerror.KindEncoding:    codes.InvalidArgument,
	lmerror.KindComputation: codes.OutOfRange,
}

var codeToKind = map[codes.Code]lmerror.Kind{
	codes.FailedPrecondition: lmerror.KindConfig,
	codes.NotFound:           lmerror.KindIO,
	codes.Unavailable:        lmerror.KindNetwork,
	codes.Unauthenticated:    lmerror.KindAuth,
	codes.InvalidArgument:    lmerror.KindEncoding,
	codes.OutOfRange:         lmerror.KindComputation,
	codes.DeadlineExceeded:   lmerror.KindNetwork,
}

// ToStatus converts a server-side error into the gRPC status the client
// will see. Unkinded errors become Internal.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	code, ok := kindToCode[lmerror.KindOf(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// FromStatus converts a client-visible RPC failure back into a kinded
// error. Timeouts surface as network errors: the caller owns retries.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return lmerror.New(lmerror.KindNetwork, err)
	}
	s, ok := status.FromError(err)
	if !ok {
		return lmerror.New(lmerror.KindNetwork, err)
	}
	if kind, ok := codeToKind[s.Code()]; ok {
		return lmerror.New(kind, err)
	}
	return err
}
