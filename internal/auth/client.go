package auth

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/metrics"
)

// ClientNegotiator walks one connection attempt through the state
// machine. Establish makes a raw transport connection (so bind and
// routing problems surface as network errors), Negotiate performs the
// credential handshake on that probe connection (so certificate problems
// surface as auth errors, distinct from timeouts), and Finish builds the
// gRPC channel the protocol layer will actually use.
type ClientNegotiator struct {
	serverAuth config.ServerAuthConfig
	clientAuth config.ClientAuthConfig
	timeout    time.Duration
	state      State
	log        *logger.Logger

	endpoint Endpoint
	rawConn  net.Conn
}

func NewClientNegotiator(server config.ServerAuthConfig,
	client config.ClientAuthConfig, timeout time.Duration) *ClientNegotiator {
	return &ClientNegotiator{
		serverAuth: server,
		clientAuth: client,
		timeout:    timeout,
		state:      Unconnected,
		log:        logger.Log.Component("negotiator"),
	}
}

func (n *ClientNegotiator) State() State { return n.state }

func (n *ClientNegotiator) fail(stage string, err error) error {
	n.state = Failed
	if n.rawConn != nil {
		n.rawConn.Close()
		n.rawConn = nil
	}
	metrics.HandshakeFailures.WithLabelValues(
		credentialMode(n.serverAuth.CredentialType), stage).Inc()
	n.log.Warn("negotiation failed", "stage", stage, "error", err.Error())
	return err
}

// Establish opens the raw transport: Unconnected -> TransportEstablished.
func (n *ClientNegotiator) Establish(addressURI string) error {
	if n.state != Unconnected {
		return lmerror.Errorf(lmerror.KindNetwork,
			"establish in state %v", n.state)
	}
	endpoint, err := ParseAddress(addressURI)
	if err != nil {
		return n.fail("transport", err)
	}
	conn, err := net.DialTimeout(endpoint.Network, endpoint.Addr, n.timeout)
	if err != nil {
		return n.fail("transport", lmerror.Errorf(lmerror.KindNetwork,
			"connecting to %s %s: %w", endpoint.Network, endpoint.Addr, err))
	}
	n.endpoint = endpoint
	n.rawConn = conn
	n.state = TransportEstablished
	return nil
}

// Negotiate validates credentials on the probe connection:
// TransportEstablished -> CredentialNegotiated.
//
// For SSL this runs a full TLS handshake and then waits for the server's
// first bytes. The wait matters for mutual TLS: with TLS 1.3 the client
// half of the handshake can complete before the server has judged the
// client certificate, and the rejection only shows up as the connection
// closing instead of the server speaking first.
func (n *ClientNegotiator) Negotiate(ctx context.Context) error {
	if n.state != TransportEstablished {
		return lmerror.Errorf(lmerror.KindAuth,
			"negotiate in state %v", n.state)
	}
	if n.serverAuth.CredentialType != config.CredentialSSL {
		n.rawConn.Close()
		n.rawConn = nil
		n.state = CredentialNegotiated
		return nil
	}

	tlsCfg, err := clientTLSConfig(n.serverAuth, n.clientAuth, n.endpoint)
	if err != nil {
		return n.fail("credential", err)
	}
	tlsConn := tls.Client(n.rawConn, tlsCfg)
	deadline := time.Now().Add(n.timeout)
	tlsConn.SetDeadline(deadline)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return n.fail("credential", lmerror.Errorf(lmerror.KindAuth,
			"tls handshake: %w", err))
	}
	var buf [1]byte
	if _, err := tlsConn.Read(buf[:]); err != nil {
		return n.fail("credential", lmerror.Errorf(lmerror.KindAuth,
			"server rejected credentials: %w", err))
	}
	tlsConn.Close()
	n.rawConn = nil
	n.state = CredentialNegotiated
	return nil
}

// Finish builds the channel: CredentialNegotiated -> Ready.
func (n *ClientNegotiator) Finish(extraOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if n.state != CredentialNegotiated {
		return nil, lmerror.Errorf(lmerror.KindAuth,
			"finish in state %v", n.state)
	}
	var creds credentials.TransportCredentials
	if n.serverAuth.CredentialType == config.CredentialSSL {
		tlsCfg, err := clientTLSConfig(n.serverAuth, n.clientAuth, n.endpoint)
		if err != nil {
			return nil, n.fail("credential", err)
		}
		creds = credentials.NewTLS(tlsCfg)
	} else {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
	}, extraOpts...)
	conn, err := grpc.NewClient(n.endpoint.Target, opts...)
	if err != nil {
		return nil, n.fail("channel", lmerror.New(lmerror.KindNetwork, err))
	}
	n.state = Ready
	return conn, nil
}
