package auth

import (
	"net"

	"google.golang.org/grpc/credentials"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/lmerror"
	"github.com/RajanChettri/mozolm/internal/metrics"
)

// ServerNegotiator binds the listening transport and prepares the
// credentials the server accepts connections under.
type ServerNegotiator struct {
	cfg   config.ServerAuthConfig
	state State

	endpoint Endpoint
	listener net.Listener
	creds    credentials.TransportCredentials
}

func NewServerNegotiator(cfg config.ServerAuthConfig) *ServerNegotiator {
	return &ServerNegotiator{cfg: cfg, state: Unconnected}
}

func (n *ServerNegotiator) State() State { return n.state }

func (n *ServerNegotiator) fail(stage string, err error) error {
	n.state = Failed
	metrics.HandshakeFailures.WithLabelValues(
		credentialMode(n.cfg.CredentialType), stage).Inc()
	return err
}

// Establish binds the listening socket: Unconnected -> TransportEstablished.
// Bind errors are fatal network errors; nothing here retries.
func (n *ServerNegotiator) Establish(addressURI string) error {
	if n.state != Unconnected {
		return lmerror.Errorf(lmerror.KindNetwork,
			"establish in state %v", n.state)
	}
	endpoint, err := ParseAddress(addressURI)
	if err != nil {
		return n.fail("transport", err)
	}
	lis, err := net.Listen(endpoint.Network, endpoint.Addr)
	if err != nil {
		return n.fail("transport", lmerror.Errorf(lmerror.KindNetwork,
			"binding %s %s: %w", endpoint.Network, endpoint.Addr, err))
	}
	n.endpoint = endpoint
	n.listener = lis
	n.state = TransportEstablished
	return nil
}

// Negotiate prepares transport credentials:
// TransportEstablished -> CredentialNegotiated.
func (n *ServerNegotiator) Negotiate() error {
	if n.state != TransportEstablished {
		return lmerror.Errorf(lmerror.KindAuth,
			"negotiate in state %v", n.state)
	}
	creds, err := ServerCredentials(n.cfg)
	if err != nil {
		n.listener.Close()
		return n.fail("credential", err)
	}
	n.creds = creds
	n.state = CredentialNegotiated
	return nil
}

// Finish hands the channel over: CredentialNegotiated -> Ready.
func (n *ServerNegotiator) Finish() (net.Listener, credentials.TransportCredentials, error) {
	if n.state != CredentialNegotiated {
		return nil, nil, lmerror.Errorf(lmerror.KindAuth,
			"finish in state %v", n.state)
	}
	n.state = Ready
	return n.listener, n.creds, nil
}

// SelectedPort reports the bound TCP port, needed when the address asked
// for an ephemeral one. Zero for local sockets or before Establish.
func (n *ServerNegotiator) SelectedPort() int {
	if n.listener == nil {
		return 0
	}
	if addr, ok := n.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
